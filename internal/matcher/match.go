package matcher

import (
	"sort"

	"github.com/medicobot/medicobot/internal/corpus"
)

// Match is one ranked candidate: the matched disease record and the cosine
// similarity between its symptom vector and the query, in [0, 1].
type Match struct {
	Disease    corpus.Disease `json:"disease"`
	Confidence float64        `json:"confidence"`
}

// Match ranks the indexed diseases against a free-text symptom query and
// returns at most topK results with confidence strictly above minConfidence,
// in descending confidence order. Equal confidences keep corpus order. An
// empty or fully out-of-vocabulary query is not an error: every similarity
// is 0 and the threshold filters the results.
//
// Match is a pure read of the index; concurrent calls are safe.
func (ix *Index) Match(query string, topK int, minConfidence float64) ([]Match, error) {
	if ix == nil || len(ix.records) == 0 {
		return nil, ErrIndexNotBuilt
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	qvec := make(termVector)
	for _, t := range terms(query) {
		pos, ok := ix.vocab[t]
		if !ok {
			continue
		}
		qvec[pos] += ix.idf[pos]
	}
	qnorm := norm(qvec)

	sims := make([]float64, len(ix.records))
	if qnorm > 0 {
		for i, vec := range ix.vectors {
			if ix.norms[i] == 0 {
				continue
			}
			var dot float64
			for pos, w := range qvec {
				dot += w * vec[pos]
			}
			sims[i] = dot / (qnorm * ix.norms[i])
		}
	}

	order := make([]int, len(sims))
	for i := range order {
		order[i] = i
	}
	// Stable sort: for equal similarity the lower corpus index wins.
	sort.SliceStable(order, func(a, b int) bool {
		return sims[order[a]] > sims[order[b]]
	})
	if len(order) > topK {
		order = order[:topK]
	}

	results := make([]Match, 0, len(order))
	for _, i := range order {
		if sims[i] > minConfidence {
			results = append(results, Match{
				Disease:    ix.records[i],
				Confidence: sims[i],
			})
		}
	}
	return results, nil
}

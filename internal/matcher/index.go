// Package matcher implements the symptom-to-disease matching engine. Build
// turns the disease corpus into a TF-IDF index over a shared vocabulary, and
// Match ranks the corpus against a free-text symptom query by cosine
// similarity with a confidence threshold and top-k selection.
//
// A built Index is immutable; concurrent Match calls need no synchronisation.
// Corpus changes require a full rebuild — there is no incremental update.
package matcher

import (
	"errors"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/medicobot/medicobot/internal/corpus"
)

var (
	// ErrEmptyCorpus is returned by Build when given zero disease records.
	ErrEmptyCorpus = errors.New("matcher: empty corpus")
	// ErrIndexNotBuilt is returned by Match when the index was never built.
	ErrIndexNotBuilt = errors.New("matcher: index not built")
)

// Defaults matching the serving layer's standard query parameters.
const (
	DefaultTopK          = 3
	DefaultMinConfidence = 0.1
)

// termVector is a sparse vector over vocabulary positions.
type termVector map[int]float64

// Index holds the vocabulary, per-disease TF-IDF vectors, and the backing
// records in vector order. All fields are fixed after Build returns.
type Index struct {
	records []corpus.Disease
	vocab   map[string]int
	idf     []float64
	vectors []termVector
	norms   []float64
}

// Build constructs an Index from the given disease records. A record with an
// empty symptom description contributes no terms and ends up with a zero
// vector. Vocabulary positions are assigned in sorted term order, so two
// builds over the same records produce identical indexes.
func Build(records []corpus.Disease) (*Index, error) {
	if len(records) == 0 {
		return nil, ErrEmptyCorpus
	}

	docTerms := make([][]string, len(records))
	df := make(map[string]int)
	for i, rec := range records {
		docTerms[i] = terms(rec.Symptoms)
		seen := make(map[string]struct{}, len(docTerms[i]))
		for _, t := range docTerms[i] {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}

	vocabTerms := make([]string, 0, len(df))
	for t := range df {
		vocabTerms = append(vocabTerms, t)
	}
	sort.Strings(vocabTerms)

	ix := &Index{
		records: records,
		vocab:   make(map[string]int, len(vocabTerms)),
		idf:     make([]float64, len(vocabTerms)),
		vectors: make([]termVector, len(records)),
		norms:   make([]float64, len(records)),
	}
	n := float64(len(records))
	for pos, t := range vocabTerms {
		ix.vocab[t] = pos
		// df >= 1 by construction; a term present in every record gets 0.
		ix.idf[pos] = math.Log(n / float64(df[t]))
	}

	for i, toks := range docTerms {
		vec := make(termVector, len(toks))
		for _, t := range toks {
			pos := ix.vocab[t]
			vec[pos] += ix.idf[pos]
		}
		ix.vectors[i] = vec
		ix.norms[i] = norm(vec)
	}
	return ix, nil
}

// DocCount returns the number of indexed disease records.
func (ix *Index) DocCount() int {
	if ix == nil {
		return 0
	}
	return len(ix.records)
}

// VocabSize returns the number of distinct terms in the vocabulary.
func (ix *Index) VocabSize() int {
	if ix == nil {
		return 0
	}
	return len(ix.vocab)
}

// terms splits symptom text into case-folded terms. Corpus symptom
// descriptions are comma- or whitespace-delimited, so both act as
// boundaries; terms never expand beyond what the corpus contains.
func terms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

func norm(vec termVector) float64 {
	var sum float64
	for _, w := range vec {
		sum += w * w
	}
	return math.Sqrt(sum)
}

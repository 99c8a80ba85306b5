package matcher_test

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/medicobot/medicobot/internal/corpus"
	"github.com/medicobot/medicobot/internal/matcher"
)

func smallCorpus() []corpus.Disease {
	return []corpus.Disease{
		{Name: "Flu", Symptoms: "fever cough fatigue"},
		{Name: "Cold", Symptoms: "cough sneeze"},
	}
}

func TestBuildEmptyCorpus(t *testing.T) {
	if _, err := matcher.Build(nil); !errors.Is(err, matcher.ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
	if _, err := matcher.Build([]corpus.Disease{}); !errors.Is(err, matcher.ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus for empty slice, got %v", err)
	}
}

func TestBuildCounts(t *testing.T) {
	records := []corpus.Disease{
		{Name: "A", Symptoms: "Fever, COUGH"},
		{Name: "B", Symptoms: "cough headache"},
		{Name: "C", Symptoms: ""},
	}
	ix, err := matcher.Build(records)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if got := ix.DocCount(); got != len(records) {
		t.Errorf("DocCount = %d, want %d", got, len(records))
	}
	// Distinct case-folded terms: fever, cough, headache.
	if got := ix.VocabSize(); got != 3 {
		t.Errorf("VocabSize = %d, want 3", got)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	records := smallCorpus()
	ix1, err := matcher.Build(records)
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	ix2, err := matcher.Build(records)
	if err != nil {
		t.Fatalf("second build failed: %v", err)
	}
	if ix1.DocCount() != ix2.DocCount() || ix1.VocabSize() != ix2.VocabSize() {
		t.Fatalf("index shape differs between builds")
	}
	r1, err := ix1.Match("fever cough", 3, 0)
	if err != nil {
		t.Fatalf("match on first index: %v", err)
	}
	r2, err := ix2.Match("fever cough", 3, 0)
	if err != nil {
		t.Fatalf("match on second index: %v", err)
	}
	if !reflect.DeepEqual(r1, r2) {
		t.Errorf("results differ between identical builds:\n%v\n%v", r1, r2)
	}
}

func TestMatchNotBuilt(t *testing.T) {
	var nilIndex *matcher.Index
	if _, err := nilIndex.Match("fever", 3, 0.1); !errors.Is(err, matcher.ErrIndexNotBuilt) {
		t.Errorf("nil index: expected ErrIndexNotBuilt, got %v", err)
	}
	if _, err := (&matcher.Index{}).Match("fever", 3, 0.1); !errors.Is(err, matcher.ErrIndexNotBuilt) {
		t.Errorf("zero index: expected ErrIndexNotBuilt, got %v", err)
	}
}

func TestMatchEmptyAndUnknownQueries(t *testing.T) {
	ix, err := matcher.Build(smallCorpus())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	for _, query := range []string{"", "   ", "unknown terms only"} {
		results, err := ix.Match(query, 3, 0.1)
		if err != nil {
			t.Fatalf("query %q: unexpected error %v", query, err)
		}
		if len(results) != 0 {
			t.Errorf("query %q: expected no results, got %d", query, len(results))
		}
	}
}

// Shared terms with the rarer "fever" must rank Flu above Cold.
func TestMatchRanksSharedRareTermsFirst(t *testing.T) {
	ix, err := matcher.Build(smallCorpus())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	results, err := ix.Match("fever cough", 3, 0.1)
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].Disease.Name != "Flu" {
		t.Errorf("top result = %q, want Flu", results[0].Disease.Name)
	}
	for _, r := range results {
		if r.Disease.Name == "Cold" && r.Confidence >= results[0].Confidence {
			t.Errorf("Cold ranked at or above Flu (%.4f >= %.4f)", r.Confidence, results[0].Confidence)
		}
	}
}

// A query identical to one disease's symptom text is a perfect match.
func TestMatchExactSymptomText(t *testing.T) {
	records := []corpus.Disease{
		{Name: "Migraine", Symptoms: "headache nausea light sensitivity"},
		{Name: "Gastritis", Symptoms: "stomach pain nausea bloating"},
		{Name: "Dermatitis", Symptoms: "rash itching redness"},
	}
	ix, err := matcher.Build(records)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	results, err := ix.Match("rash itching redness", 3, 0.1)
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected a result for an exact symptom match")
	}
	if results[0].Disease.Name != "Dermatitis" {
		t.Errorf("top result = %q, want Dermatitis", results[0].Disease.Name)
	}
	if math.Abs(results[0].Confidence-1.0) > 1e-9 {
		t.Errorf("exact match confidence = %v, want 1.0", results[0].Confidence)
	}
}

// A high threshold filters out a candidate that top-k alone would select.
func TestMatchThresholdFiltersBestCandidate(t *testing.T) {
	ix, err := matcher.Build(smallCorpus())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	// "fever" alone scores Flu well below 0.9.
	results, err := ix.Match("fever", 1, 0.9)
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty results above threshold 0.9, got %v", results)
	}
}

// The threshold is strict: a confidence exactly at minConfidence is dropped.
func TestMatchThresholdIsStrict(t *testing.T) {
	ix, err := matcher.Build(smallCorpus())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	results, err := ix.Match("fever cough", 3, -1)
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results with threshold disabled")
	}
	top := results[0].Confidence
	again, err := ix.Match("fever cough", 3, top)
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	for _, r := range again {
		if r.Confidence == top {
			t.Errorf("confidence %v equal to threshold was not dropped", top)
		}
	}
}

func TestMatchOrderingAndLimit(t *testing.T) {
	records := []corpus.Disease{
		{Name: "First", Symptoms: "fever chills"},
		{Name: "Second", Symptoms: "fever chills"},
		{Name: "Other", Symptoms: "rash"},
		{Name: "Third", Symptoms: "fever chills"},
		{Name: "Fourth", Symptoms: "fever chills sweating"},
	}
	ix, err := matcher.Build(records)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	results, err := ix.Match("fever chills", 3, 0)
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if len(results) > 3 {
		t.Fatalf("got %d results, topK=3", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Confidence > results[i-1].Confidence {
			t.Errorf("results not in non-increasing order at %d", i)
		}
	}
	// First/Second/Third have identical vectors: ties keep corpus order.
	if len(results) < 2 || results[0].Disease.Name != "First" || results[1].Disease.Name != "Second" {
		t.Errorf("tie-break violated corpus order: %v", names(results))
	}
}

func TestMatchDefaultTopK(t *testing.T) {
	records := []corpus.Disease{
		{Name: "A", Symptoms: "fever aches"},
		{Name: "B", Symptoms: "fever chills"},
		{Name: "C", Symptoms: "fever sweating"},
		{Name: "D", Symptoms: "fever cough"},
		{Name: "E", Symptoms: "rash"},
	}
	ix, err := matcher.Build(records)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	results, err := ix.Match("fever", 0, 0)
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if len(results) > matcher.DefaultTopK {
		t.Errorf("topK=0 returned %d results, want at most %d", len(results), matcher.DefaultTopK)
	}
}

func TestMatchEmptySymptomRecordNeverReturned(t *testing.T) {
	records := []corpus.Disease{
		{Name: "Documented", Symptoms: "fever cough"},
		{Name: "Undocumented", Symptoms: ""},
	}
	ix, err := matcher.Build(records)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	results, err := ix.Match("fever cough", 3, 0)
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	for _, r := range results {
		if r.Disease.Name == "Undocumented" {
			t.Errorf("zero-vector record was returned with confidence %v", r.Confidence)
		}
	}
}

func names(results []matcher.Match) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Disease.Name
	}
	return out
}

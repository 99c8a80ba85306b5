package corpus_test

import (
	"strings"
	"testing"

	"github.com/medicobot/medicobot/internal/corpus"
)

func TestReadCSV(t *testing.T) {
	data := `name,symptoms,description,treatments,precautions
Flu,"fever cough fatigue",A viral infection,Rest and fluids,Wash hands
Cold,"cough sneeze",,,
`
	diseases, err := corpus.ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(diseases) != 2 {
		t.Fatalf("got %d records, want 2", len(diseases))
	}
	flu := diseases[0]
	if flu.Name != "Flu" || flu.Symptoms != "fever cough fatigue" {
		t.Errorf("unexpected first record: %+v", flu)
	}
	if flu.Description != "A viral infection" || flu.Treatments != "Rest and fluids" || flu.Precautions != "Wash hands" {
		t.Errorf("payload columns not preserved: %+v", flu)
	}
	cold := diseases[1]
	if cold.Description != "" || cold.Treatments != "" || cold.Precautions != "" {
		t.Errorf("optional columns should be empty: %+v", cold)
	}
}

func TestReadCSVHeaderIsCaseInsensitive(t *testing.T) {
	data := "Name,SYMPTOMS\nFlu,fever\n"
	diseases, err := corpus.ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(diseases) != 1 || diseases[0].Symptoms != "fever" {
		t.Errorf("unexpected records: %+v", diseases)
	}
}

func TestReadCSVMissingRequiredColumn(t *testing.T) {
	data := "name,description\nFlu,viral\n"
	if _, err := corpus.ReadCSV(strings.NewReader(data)); err == nil {
		t.Fatal("expected error for missing symptoms column")
	}
}

func TestReadCSVEmptyName(t *testing.T) {
	data := "name,symptoms\n,fever\n"
	_, err := corpus.ReadCSV(strings.NewReader(data))
	if err == nil {
		t.Fatal("expected error for empty disease name")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error should carry the line number, got: %v", err)
	}
}

func TestReadCSVExtraColumnsIgnored(t *testing.T) {
	data := "name,symptoms,icd_code\nFlu,fever,J11\n"
	diseases, err := corpus.ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(diseases) != 1 || diseases[0].Name != "Flu" {
		t.Errorf("unexpected records: %+v", diseases)
	}
}

package corpus

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadCSV reads disease records from a CSV file with a header row. The name
// and symptoms columns are required; description, treatments, and
// precautions are optional payload columns.
func LoadCSV(path string) ([]Disease, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus file %s: %w", path, err)
	}
	defer f.Close()
	records, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("reading corpus file %s: %w", path, err)
	}
	return records, nil
}

// ReadCSV parses disease records from CSV data with a header row.
func ReadCSV(r io.Reader) ([]Disease, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"name", "symptoms"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var diseases []Disease
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		name := field(row, "name")
		if name == "" {
			return nil, fmt.Errorf("line %d: empty disease name", line)
		}
		diseases = append(diseases, Disease{
			Name:        name,
			Symptoms:    field(row, "symptoms"),
			Description: field(row, "description"),
			Treatments:  field(row, "treatments"),
			Precautions: field(row, "precautions"),
		})
	}
	return diseases, nil
}

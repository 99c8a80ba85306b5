package server

import (
	"strings"
	"testing"
)

func TestSanitizeMessage(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		maxLen  int
		want    string
		wantErr bool
	}{
		{name: "plain", in: "fever and cough", maxLen: 100, want: "fever and cough"},
		{name: "trims and collapses whitespace", in: "  fever \t and\n cough  ", maxLen: 100, want: "fever and cough"},
		{name: "strips control characters", in: "fever\x00 cough", maxLen: 100, want: "fever cough"},
		{name: "empty", in: "", maxLen: 100, wantErr: true},
		{name: "whitespace only", in: " \t\n ", maxLen: 100, wantErr: true},
		{name: "truncates at limit", in: strings.Repeat("a", 50), maxLen: 10, want: strings.Repeat("a", 10)},
		{name: "no limit", in: strings.Repeat("a", 50), maxLen: 0, want: strings.Repeat("a", 50)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sanitizeMessage(tt.in, tt.maxLen)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("sanitizeMessage: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

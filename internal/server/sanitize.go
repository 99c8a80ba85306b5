package server

import (
	"net/http"
	"strings"
	"unicode"

	apperrors "github.com/medicobot/medicobot/pkg/errors"
)

// sanitizeMessage normalises an incoming chat message: control characters are
// stripped, whitespace is trimmed and collapsed, and the result is truncated
// to maxLen runes. An empty result is rejected.
func sanitizeMessage(message string, maxLen int) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, message)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return "", apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "message is empty")
	}
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return cleaned, nil
}

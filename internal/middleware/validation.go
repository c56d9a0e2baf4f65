package middleware

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"
)

const (
	maxTextLength = 10000
	maxIDLength   = 128
)

// ValidateText validates user supplied text such as messages and comments.
func ValidateText(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("content cannot be empty")
	}
	if len(content) > maxTextLength {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateID validates a path id: a document id or a user id.
func ValidateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}
	if len(id) > maxIDLength {
		return errors.New("id exceeds maximum length")
	}
	if strings.ContainsAny(id, "/.") || strings.HasPrefix(id, "$") {
		return errors.New("id contains invalid characters")
	}
	return nil
}

// SecurityHeaders sets conservative response headers on every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

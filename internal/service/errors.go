// Package service implements the community core: the conversation
// directory, message channel, read state, reactions, comments,
// notifications, posts and the follow graph.
package service

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by the services. Callers test them with errors.Is; store
// and network errors are wrapped and passed through.
var (
	ErrUnauthenticated = errors.New("user not authenticated")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
	ErrRejectedContent = errors.New("content rejected")
)

func notFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// validateKey checks a value used as a field-path segment: user ids in
// readBy and emoji in reactions.
func validateKey(kind, v string) error {
	switch {
	case v == "":
		return invalid("%s is required", kind)
	case strings.ContainsAny(v, "./"):
		return invalid("%s %q contains a reserved character", kind, v)
	case strings.HasPrefix(v, "$"):
		return invalid("%s %q must not start with $", kind, v)
	case len(v) > 128:
		return invalid("%s is too long", kind)
	}
	return nil
}

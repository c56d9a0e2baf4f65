// Package docstore defines the document-store capability the community core
// is written against, plus the value helpers shared by its backends.
package docstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when the target document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned by Create when the id is taken.
	ErrAlreadyExists = errors.New("document already exists")
	// ErrPreconditionFailed is returned by Update when a precondition does not hold.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrInvalidPath is returned for malformed collection or field paths.
	ErrInvalidPath = errors.New("invalid path")
)

// Document is a single stored document.
type Document struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	Data       map[string]any `json:"data"`
}

// Update targets one dotted field path. Value is a plain value or one of the
// transforms (Increment, ArrayUnion, ArrayRemove, ServerTimestamp, DeleteField).
type Update struct {
	Path  string
	Value any
}

// Subscription is the release handle of a live listener.
type Subscription interface {
	// Unsubscribe stops the listener. It is safe to call more than once, and
	// no callback starts after it returns. It waits for a callback already
	// running, so a callback must not release its own subscription.
	Unsubscribe()
}

// QueryFunc receives the full result set of a live query.
type QueryFunc func(docs []Document, err error)

// DocFunc receives the current state of a live document. doc is nil when the
// document does not exist.
type DocFunc func(doc *Document, err error)

// Store is the document-store capability.
type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	Set(ctx context.Context, collection, id string, data map[string]any) error
	Create(ctx context.Context, collection, id string, data map[string]any) error
	Update(ctx context.Context, collection, id string, updates []Update, preconditions ...Precondition) error
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q Query) ([]Document, error)
	SubscribeQuery(ctx context.Context, q Query, fn QueryFunc) (Subscription, error)
	SubscribeDoc(ctx context.Context, collection, id string, fn DocFunc) (Subscription, error)
	Close() error
}

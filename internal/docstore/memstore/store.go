// Package memstore is an in-process docstore.Store with snapshot listeners.
// It backs local development and the test suites.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/community-platform/internal/docstore"
)

var errClosed = errors.New("memstore: store closed")

type entry struct {
	data map[string]any
	seq  uint64
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to resolve server timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// WithIDGenerator sets the generator used by Add.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// Store keeps every collection in memory.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]*entry
	seq         uint64
	last        time.Time
	clock       func() time.Time
	newID       func() string
	listeners   map[*listener]struct{}
	closed      bool
}

var _ docstore.Store = (*Store)(nil)

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string]map[string]*entry),
		clock:       time.Now,
		newID:       func() string { return uuid.Must(uuid.NewV7()).String() },
		listeners:   make(map[*listener]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// now returns a non-decreasing timestamp. Callers hold s.mu.
func (s *Store) now() time.Time {
	t := s.clock().UTC()
	if t.Before(s.last) {
		t = s.last
	}
	s.last = t
	return t
}

func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	if err := validateRef(collection, id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	e, ok := s.collections[collection][id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return &docstore.Document{ID: id, Collection: collection, Data: docstore.CloneMap(e.data)}, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data map[string]any) error {
	if err := validateRef(collection, id); err != nil {
		return err
	}
	return s.write(collection, func(coll map[string]*entry, now time.Time) error {
		body := docstore.NormalizeMap(data)
		docstore.ResolveSentinels(body, now)
		if e, ok := coll[id]; ok {
			e.data = body
			return nil
		}
		coll[id] = s.newEntry(body)
		return nil
	})
}

func (s *Store) Create(ctx context.Context, collection, id string, data map[string]any) error {
	if err := validateRef(collection, id); err != nil {
		return err
	}
	return s.write(collection, func(coll map[string]*entry, now time.Time) error {
		if _, ok := coll[id]; ok {
			return docstore.ErrAlreadyExists
		}
		body := docstore.NormalizeMap(data)
		docstore.ResolveSentinels(body, now)
		coll[id] = s.newEntry(body)
		return nil
	})
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return "", err
	}
	var id string
	err := s.write(collection, func(coll map[string]*entry, now time.Time) error {
		id = s.newID()
		if _, ok := coll[id]; ok {
			return docstore.ErrAlreadyExists
		}
		body := docstore.NormalizeMap(data)
		docstore.ResolveSentinels(body, now)
		coll[id] = s.newEntry(body)
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, updates []docstore.Update, preconditions ...docstore.Precondition) error {
	if err := validateRef(collection, id); err != nil {
		return err
	}
	if len(updates) == 0 {
		return errors.New("memstore: empty update")
	}
	return s.write(collection, func(coll map[string]*entry, now time.Time) error {
		e, ok := coll[id]
		if !ok {
			return docstore.ErrNotFound
		}
		if !docstore.CheckPreconditions(e.data, preconditions) {
			return docstore.ErrPreconditionFailed
		}
		// apply to a copy so a failing update leaves the document untouched
		next := docstore.CloneMap(e.data)
		if err := docstore.ApplyUpdates(next, updates, now); err != nil {
			return err
		}
		e.data = next
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := validateRef(collection, id); err != nil {
		return err
	}
	return s.write(collection, func(coll map[string]*entry, _ time.Time) error {
		delete(coll, id)
		return nil
	})
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	return s.evaluate(q), nil
}

// Close releases every listener. Further calls fail.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ls := make([]*listener, 0, len(s.listeners))
	for l := range s.listeners {
		ls = append(ls, l)
	}
	s.mu.Unlock()

	for _, l := range ls {
		l.Unsubscribe()
	}
	return nil
}

func (s *Store) newEntry(data map[string]any) *entry {
	s.seq++
	return &entry{data: data, seq: s.seq}
}

// write runs fn under the write lock and wakes the collection's listeners
// when fn succeeds.
func (s *Store) write(collection string, fn func(coll map[string]*entry, now time.Time) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]*entry)
		s.collections[collection] = coll
	}
	if err := fn(coll, s.now()); err != nil {
		return err
	}
	for l := range s.listeners {
		if l.collection == collection {
			l.wake()
		}
	}
	return nil
}

// evaluate runs q against the current state. Callers hold s.mu.
func (s *Store) evaluate(q docstore.Query) []docstore.Document {
	coll := s.collections[q.Collection]
	type hit struct {
		doc docstore.Document
		seq uint64
	}
	hits := make([]hit, 0, len(coll))
	for id, e := range coll {
		if !docstore.Match(e.data, q.Filters) {
			continue
		}
		hits = append(hits, hit{
			doc: docstore.Document{ID: id, Collection: q.Collection, Data: docstore.CloneMap(e.data)},
			seq: e.seq,
		})
	}
	// insertion order is the tie breaker
	sort.Slice(hits, func(i, j int) bool { return hits[i].seq < hits[j].seq })

	docs := make([]docstore.Document, len(hits))
	for i, h := range hits {
		docs[i] = h.doc
	}
	docs = docstore.SortDocuments(docs, q.Order)
	if q.Max > 0 && len(docs) > q.Max {
		docs = docs[:q.Max]
	}
	return docs
}

func validateRef(collection, id string) error {
	if err := docstore.ValidateCollection(collection); err != nil {
		return err
	}
	return docstore.ValidateID(id)
}

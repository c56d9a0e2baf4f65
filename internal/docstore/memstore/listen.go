package memstore

import (
	"context"
	"sync"

	"github.com/capitalize-ai/community-platform/internal/docstore"
)

// listener owns one goroutine. Writes only raise a coalescing signal, so a
// slow callback never blocks the store and always sees the latest state.
type listener struct {
	store      *Store
	collection string
	query      docstore.Query
	docID      string
	onQuery    docstore.QueryFunc
	onDoc      docstore.DocFunc

	signal chan struct{}
	done   chan struct{}
	once   sync.Once
	gate   docstore.Gate
}

func (l *listener) wake() {
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// Unsubscribe implements docstore.Subscription. It waits for a callback in
// progress.
func (l *listener) Unsubscribe() {
	l.once.Do(func() {
		l.gate.Close()
		close(l.done)
		l.store.mu.Lock()
		delete(l.store.listeners, l)
		l.store.mu.Unlock()
	})
}

func (l *listener) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.Unsubscribe()
			return
		case <-l.done:
			return
		case <-l.signal:
			l.deliver()
		}
	}
}

func (l *listener) deliver() {
	s := l.store
	s.mu.RLock()
	var (
		docs []docstore.Document
		doc  *docstore.Document
	)
	if l.onQuery != nil {
		docs = s.evaluate(l.query)
	} else if e, ok := s.collections[l.collection][l.docID]; ok {
		doc = &docstore.Document{ID: l.docID, Collection: l.collection, Data: docstore.CloneMap(e.data)}
	}
	s.mu.RUnlock()

	l.gate.Do(func() {
		if l.onQuery != nil {
			l.onQuery(docs, nil)
			return
		}
		l.onDoc(doc, nil)
	})
}

func (s *Store) SubscribeQuery(ctx context.Context, q docstore.Query, fn docstore.QueryFunc) (docstore.Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return s.register(ctx, &listener{collection: q.Collection, query: q, onQuery: fn})
}

func (s *Store) SubscribeDoc(ctx context.Context, collection, id string, fn docstore.DocFunc) (docstore.Subscription, error) {
	if err := validateRef(collection, id); err != nil {
		return nil, err
	}
	return s.register(ctx, &listener{collection: collection, docID: id, onDoc: fn})
}

func (s *Store) register(ctx context.Context, l *listener) (docstore.Subscription, error) {
	l.store = s
	l.signal = make(chan struct{}, 1)
	l.done = make(chan struct{})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errClosed
	}
	s.listeners[l] = struct{}{}
	s.mu.Unlock()

	// the initial snapshot
	l.wake()
	go l.run(ctx)
	return l, nil
}

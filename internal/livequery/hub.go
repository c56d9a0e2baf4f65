// Package livequery shares live listeners between subscribers. A Hub wraps
// a docstore.Store: identical queries (and documents) ride on one upstream
// listener, every subscriber gets the latest snapshot through its own
// mailbox, and the last snapshot of each feed is kept in a Cache.
package livequery

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/community-platform/internal/docstore"
	"github.com/capitalize-ai/community-platform/pkg/logger"
	"github.com/capitalize-ai/community-platform/pkg/metrics"
)

const (
	kindQuery = "query"
	kindDoc   = "doc"
)

type snapshot struct {
	docs []docstore.Document
	err  error
}

// Hub is a docstore.Store whose subscriptions are shared.
type Hub struct {
	docstore.Store
	cache Cache
	log   *logger.Logger

	mu    sync.Mutex
	feeds map[string]*feed
}

var _ docstore.Store = (*Hub)(nil)

// NewHub wraps store. cache may be nil.
func NewHub(store docstore.Store, cache Cache, log *logger.Logger) *Hub {
	return &Hub{Store: store, cache: cache, log: log, feeds: make(map[string]*feed)}
}

// Feeds returns the number of open upstream listeners.
func (h *Hub) Feeds() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.feeds)
}

func (h *Hub) SubscribeQuery(ctx context.Context, q docstore.Query, fn docstore.QueryFunc) (docstore.Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	open := func(emit func(snapshot)) (docstore.Subscription, error) {
		return h.Store.SubscribeQuery(context.Background(), q, func(docs []docstore.Document, err error) {
			emit(snapshot{docs: docs, err: err})
		})
	}
	return h.subscribe(ctx, kindQuery, "q|"+q.Key(), open, func(s snapshot) {
		fn(s.docs, s.err)
	})
}

func (h *Hub) SubscribeDoc(ctx context.Context, collection, id string, fn docstore.DocFunc) (docstore.Subscription, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if err := docstore.ValidateID(id); err != nil {
		return nil, err
	}
	open := func(emit func(snapshot)) (docstore.Subscription, error) {
		return h.Store.SubscribeDoc(context.Background(), collection, id, func(doc *docstore.Document, err error) {
			s := snapshot{err: err, docs: []docstore.Document{}}
			if doc != nil {
				s.docs = []docstore.Document{*doc}
			}
			emit(s)
		})
	}
	return h.subscribe(ctx, kindDoc, "d|"+collection+"/"+id, open, func(s snapshot) {
		if s.err != nil || len(s.docs) == 0 {
			fn(nil, s.err)
			return
		}
		fn(&s.docs[0], nil)
	})
}

// Close releases every feed and closes the wrapped store.
func (h *Hub) Close() error {
	h.mu.Lock()
	feeds := h.feeds
	h.feeds = make(map[string]*feed)
	h.mu.Unlock()
	for _, f := range feeds {
		f.close()
	}
	return h.Store.Close()
}

// subscribe joins the feed of key, opening it when none exists. The cache
// read and the upstream open run without the hub lock; when two callers race
// to open the same key the loser closes its listener and joins the winner.
func (h *Hub) subscribe(ctx context.Context, kind, key string, open func(func(snapshot)) (docstore.Subscription, error), deliver func(snapshot)) (docstore.Subscription, error) {
	sub := &subscriber{
		kind:    kind,
		deliver: deliver,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	f, ok := h.feeds[key]
	if ok {
		h.join(f, sub)
		h.mu.Unlock()
		return h.start(ctx, sub), nil
	}
	h.mu.Unlock()

	fresh := &feed{hub: h, key: key, subs: make(map[*subscriber]struct{})}
	h.prime(ctx, fresh)
	upstream, err := open(fresh.emit)
	if err != nil {
		return nil, err
	}
	fresh.setUpstream(upstream)

	h.mu.Lock()
	f, ok = h.feeds[key]
	if !ok {
		f = fresh
		if !fresh.failed() {
			h.feeds[key] = fresh
		}
	}
	h.join(f, sub)
	h.mu.Unlock()

	if f != fresh {
		fresh.close()
	}
	return h.start(ctx, sub), nil
}

// join attaches sub to f. Called with h.mu held.
func (h *Hub) join(f *feed, sub *subscriber) {
	sub.feed = f
	f.add(sub)
}

func (h *Hub) start(ctx context.Context, sub *subscriber) *subscriber {
	metrics.IncrementSubscriptions(sub.kind)
	go sub.run(ctx)
	return sub
}

// prime seeds a fresh feed from the cache.
func (h *Hub) prime(ctx context.Context, f *feed) {
	if h.cache == nil {
		return
	}
	docs, ok, err := h.cache.Get(ctx, f.key)
	if err != nil {
		h.log.Warn("failed to read snapshot cache", zap.String("key", f.key), zap.Error(err))
		return
	}
	if ok {
		f.latest = &snapshot{docs: docs}
	}
}

func (h *Hub) remember(f *feed, docs []docstore.Document) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Set(context.Background(), f.key, docs); err != nil {
		h.log.Warn("failed to write snapshot cache", zap.String("key", f.key), zap.Error(err))
	}
}

// release drops sub and closes the feed when it was the last subscriber.
func (h *Hub) release(f *feed, sub *subscriber) {
	h.mu.Lock()
	last := f.remove(sub)
	if last && h.feeds[f.key] == f {
		delete(h.feeds, f.key)
	}
	h.mu.Unlock()
	if last {
		f.close()
	}
}

// drop forgets a failed feed so the next subscriber opens a new one.
func (h *Hub) drop(f *feed) {
	h.mu.Lock()
	if h.feeds[f.key] == f {
		delete(h.feeds, f.key)
	}
	h.mu.Unlock()
}

type feed struct {
	hub *Hub
	key string

	mu       sync.Mutex
	upstream docstore.Subscription
	subs     map[*subscriber]struct{}
	latest   *snapshot
	closed   bool
	dead     bool
}

func (f *feed) setUpstream(s docstore.Subscription) {
	f.mu.Lock()
	f.upstream = s
	f.mu.Unlock()
}

func (f *feed) add(sub *subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[sub] = struct{}{}
	if f.latest != nil {
		sub.offer(*f.latest)
	}
}

// failed reports whether the upstream listener reported an error.
func (f *feed) failed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dead
}

func (f *feed) remove(sub *subscriber) (last bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, sub)
	return len(f.subs) == 0
}

func (f *feed) emit(s snapshot) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	if s.err == nil {
		f.latest = &s
	} else {
		f.dead = true
	}
	for sub := range f.subs {
		sub.offer(s)
	}
	f.mu.Unlock()

	if s.err != nil {
		f.hub.log.Warn("live query failed", zap.String("key", f.key), zap.Error(s.err))
		f.hub.drop(f)
		return
	}
	f.hub.remember(f, s.docs)
}

func (f *feed) close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	upstream := f.upstream
	f.mu.Unlock()
	if upstream != nil {
		upstream.Unsubscribe()
	}
}

// subscriber holds at most one pending snapshot; a newer one replaces it,
// so a slow consumer skips intermediate states instead of backing up.
type subscriber struct {
	feed    *feed
	kind    string
	deliver func(snapshot)

	mu      sync.Mutex
	pending *snapshot
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
	gate   docstore.Gate
}

func (s *subscriber) offer(snap snapshot) {
	snap.docs = cloneDocs(snap.docs)
	s.mu.Lock()
	s.pending = &snap
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Unsubscribe implements docstore.Subscription.
func (s *subscriber) Unsubscribe() {
	s.once.Do(func() {
		s.gate.Close()
		close(s.done)
		metrics.DecrementSubscriptions(s.kind)
		s.feed.hub.release(s.feed, s)
	})
}

func (s *subscriber) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.Unsubscribe()
			return
		case <-s.done:
			return
		case <-s.signal:
			s.mu.Lock()
			snap := s.pending
			s.pending = nil
			s.mu.Unlock()
			if snap == nil {
				continue
			}
			if snap.docs == nil && snap.err == nil {
				snap.docs = []docstore.Document{}
			}
			s.gate.Do(func() { s.deliver(*snap) })
		}
	}
}

package mongostore

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/capitalize-ai/community-platform/internal/docstore"
)

type watcher struct {
	cancel context.CancelFunc
	once   sync.Once
	gate   docstore.Gate
}

func (w *watcher) Unsubscribe() {
	w.once.Do(func() {
		w.cancel()
		w.gate.Close()
	})
}

// SubscribeQuery opens a change stream on the collection and re-runs q on
// every change, delivering the full result set.
func (s *Store) SubscribeQuery(ctx context.Context, q docstore.Query, fn docstore.QueryFunc) (docstore.Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return s.watch(ctx, q.Collection, bson.D{}, func(ctx context.Context) func() {
		docs, err := s.Query(ctx, q)
		return func() { fn(docs, err) }
	}, func(err error) { fn(nil, err) })
}

// SubscribeDoc watches a single document.
func (s *Store) SubscribeDoc(ctx context.Context, collection, id string, fn docstore.DocFunc) (docstore.Subscription, error) {
	if err := docstore.ValidateID(id); err != nil {
		return nil, err
	}
	t, err := resolve(collection)
	if err != nil {
		return nil, err
	}
	match := bson.D{{Key: "documentKey._id", Value: t.key(id)}}
	return s.watch(ctx, collection, match, func(ctx context.Context) func() {
		doc, err := s.Get(ctx, collection, id)
		if errors.Is(err, docstore.ErrNotFound) {
			doc, err = nil, nil
		}
		return func() { fn(doc, err) }
	}, func(err error) { fn(nil, err) })
}

// watch reads the current state through refresh after every change and
// delivers it unless the watcher was released during the read.
func (s *Store) watch(ctx context.Context, collection string, match bson.D, refresh func(context.Context) func(), fail func(error)) (docstore.Subscription, error) {
	c, _, err := s.coll(collection)
	if err != nil {
		return nil, err
	}

	wctx, cancel := context.WithCancel(ctx)
	pipeline := mongo.Pipeline{}
	if len(match) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	}
	// open the stream before the initial read so no change is missed
	cs, err := c.Watch(wctx, pipeline, options.ChangeStream())
	if err != nil {
		cancel()
		return nil, err
	}

	w := &watcher{cancel: cancel}
	deliver := func() bool {
		d := refresh(wctx)
		if wctx.Err() != nil {
			return false
		}
		return w.gate.Do(d)
	}
	go func() {
		defer cs.Close(context.Background())
		if !deliver() {
			return
		}
		for cs.Next(wctx) {
			if !deliver() {
				return
			}
		}
		if err := cs.Err(); err != nil && wctx.Err() == nil {
			w.gate.Do(func() { fail(err) })
		}
	}()
	return w, nil
}

// Package firestore adapts Cloud Firestore to docstore.Store.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/capitalize-ai/community-platform/internal/docstore"
)

// Store is a Firestore backed document store.
type Store struct {
	client *firestore.Client
}

var _ docstore.Store = (*Store)(nil)

// New wraps a Firestore client.
func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

// FromApp opens the Firestore client of a Firebase app.
func FromApp(ctx context.Context, app *firebase.App) (*Store, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open Firestore: %w", err)
	}
	return New(client), nil
}

func (s *Store) doc(collection, id string) (*firestore.DocumentRef, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if err := docstore.ValidateID(id); err != nil {
		return nil, err
	}
	return s.client.Collection(collection).Doc(id), nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	ref, err := s.doc(collection, id)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return fromSnapshot(collection, snap), nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data map[string]any) error {
	ref, err := s.doc(collection, id)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, toFirestore(data))
	return mapError(err)
}

func (s *Store) Create(ctx context.Context, collection, id string, data map[string]any) error {
	ref, err := s.doc(collection, id)
	if err != nil {
		return err
	}
	_, err = ref.Create(ctx, toFirestore(data))
	return mapError(err)
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return "", err
	}
	ref, _, err := s.client.Collection(collection).Add(ctx, toFirestore(data))
	if err != nil {
		return "", mapError(err)
	}
	return ref.ID, nil
}

// Update applies the updates directly, or inside a transaction when
// preconditions must be checked against the current document.
func (s *Store) Update(ctx context.Context, collection, id string, updates []docstore.Update, preconditions ...docstore.Precondition) error {
	ref, err := s.doc(collection, id)
	if err != nil {
		return err
	}
	ups, err := translateUpdates(updates)
	if err != nil {
		return err
	}
	if len(preconditions) == 0 {
		_, err = ref.Update(ctx, ups)
		return mapError(err)
	}

	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		if !docstore.CheckPreconditions(docstore.NormalizeMap(snap.Data()), preconditions) {
			return docstore.ErrPreconditionFailed
		}
		return tx.Update(ref, ups)
	})
	return mapError(err)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	ref, err := s.doc(collection, id)
	if err != nil {
		return err
	}
	_, err = ref.Delete(ctx)
	return mapError(err)
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	fq, err := s.query(q)
	if err != nil {
		return nil, err
	}
	snaps, err := fq.Documents(ctx).GetAll()
	if err != nil {
		return nil, mapError(err)
	}
	return fromSnapshots(q.Collection, snaps), nil
}

func (s *Store) query(q docstore.Query) (firestore.Query, error) {
	if err := q.Validate(); err != nil {
		return firestore.Query{}, err
	}
	fq := s.client.Collection(q.Collection).Query
	for _, f := range q.Filters {
		fq = fq.Where(f.Path, string(f.Op), docstore.Normalize(f.Value))
	}
	if q.Order != nil {
		dir := firestore.Asc
		if q.Order.Direction == docstore.Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.Order.Path, dir)
	}
	if q.Max > 0 {
		fq = fq.Limit(q.Max)
	}
	return fq, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

type listener struct {
	cancel context.CancelFunc
	once   sync.Once
	gate   docstore.Gate
}

func (l *listener) Unsubscribe() {
	l.once.Do(func() {
		l.cancel()
		l.gate.Close()
	})
}

func (s *Store) SubscribeQuery(ctx context.Context, q docstore.Query, fn docstore.QueryFunc) (docstore.Subscription, error) {
	fq, err := s.query(q)
	if err != nil {
		return nil, err
	}
	lctx, cancel := context.WithCancel(ctx)
	l := &listener{cancel: cancel}
	it := fq.Snapshots(lctx)
	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if lctx.Err() != nil {
				return
			}
			if err != nil {
				l.gate.Do(func() { fn(nil, mapError(err)) })
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				l.gate.Do(func() { fn(nil, mapError(err)) })
				return
			}
			if !l.gate.Do(func() { fn(fromSnapshots(q.Collection, docs), nil) }) {
				return
			}
		}
	}()
	return l, nil
}

func (s *Store) SubscribeDoc(ctx context.Context, collection, id string, fn docstore.DocFunc) (docstore.Subscription, error) {
	ref, err := s.doc(collection, id)
	if err != nil {
		return nil, err
	}
	lctx, cancel := context.WithCancel(ctx)
	l := &listener{cancel: cancel}
	it := ref.Snapshots(lctx)
	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if lctx.Err() != nil {
				return
			}
			if err != nil && status.Code(err) != codes.NotFound {
				l.gate.Do(func() { fn(nil, mapError(err)) })
				return
			}
			var doc *docstore.Document
			if snap != nil && snap.Exists() {
				doc = fromSnapshot(collection, snap)
			}
			if !l.gate.Do(func() { fn(doc, nil) }) {
				return
			}
		}
	}()
	return l, nil
}

func translateUpdates(updates []docstore.Update) ([]firestore.Update, error) {
	if len(updates) == 0 {
		return nil, errors.New("empty update")
	}
	out := make([]firestore.Update, 0, len(updates))
	for _, u := range updates {
		if err := docstore.ValidateField(u.Path); err != nil {
			return nil, err
		}
		out = append(out, firestore.Update{
			FieldPath: firestore.FieldPath(strings.Split(u.Path, ".")),
			Value:     toFirestoreValue(u.Value),
		})
	}
	return out, nil
}

func toFirestore(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = toFirestoreValue(v)
	}
	return out
}

func toFirestoreValue(v any) any {
	switch t := v.(type) {
	case docstore.Sentinel:
		if t == docstore.ServerTimestamp {
			return firestore.ServerTimestamp
		}
		return firestore.Delete
	case docstore.Incr:
		return firestore.Increment(t.By)
	case docstore.Union:
		return firestore.ArrayUnion(normalizeElems(t.Elems)...)
	case docstore.Remove:
		return firestore.ArrayRemove(normalizeElems(t.Elems)...)
	}
	switch n := docstore.Normalize(v).(type) {
	case map[string]any:
		return toFirestore(n)
	default:
		return n
	}
}

func normalizeElems(elems []any) []any {
	out := make([]any, len(elems))
	for i, e := range elems {
		out[i] = docstore.Normalize(e)
	}
	return out
}

func fromSnapshot(collection string, snap *firestore.DocumentSnapshot) *docstore.Document {
	return &docstore.Document{
		ID:         snap.Ref.ID,
		Collection: collection,
		Data:       docstore.NormalizeMap(snap.Data()),
	}
}

func fromSnapshots(collection string, snaps []*firestore.DocumentSnapshot) []docstore.Document {
	docs := make([]docstore.Document, len(snaps))
	for i, snap := range snaps {
		docs[i] = *fromSnapshot(collection, snap)
	}
	return docs
}

func mapError(err error) error {
	if err == nil || errors.Is(err, docstore.ErrPreconditionFailed) {
		return err
	}
	if errors.Is(err, iterator.Done) {
		return err
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", docstore.ErrNotFound, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", docstore.ErrAlreadyExists, err)
	}
	return err
}

// Package mongostore implements docstore.Store on MongoDB. Counters and
// membership sets use $inc, $addToSet and $pull so concurrent writers never
// lose updates; live queries ride on change streams and therefore need a
// replica set.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/capitalize-ai/community-platform/internal/docstore"
)

// Options holds the connection settings.
type Options struct {
	URI      string
	Database string
	Username string
	Password string
}

// Store is a MongoDB backed document store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	newID  func() string
}

var _ docstore.Store = (*Store)(nil)

// Connect dials MongoDB and verifies the connection.
func Connect(ctx context.Context, opt Options) (*Store, error) {
	clientOpts := options.Client().ApplyURI(opt.URI)
	if opt.Username != "" && opt.Password != "" {
		clientOpts.SetAuth(options.Credential{
			Username: opt.Username,
			Password: opt.Password,
		})
	}
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	s := New(client.Database(opt.Database))
	s.client = client
	return s, nil
}

// New wraps an existing database handle.
func New(db *mongo.Database) *Store {
	return &Store{
		db:    db,
		newID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// Ping checks the server connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

func (s *Store) coll(path string) (*mongo.Collection, target, error) {
	t, err := resolve(path)
	if err != nil {
		return nil, target{}, err
	}
	return s.db.Collection(t.collection), t, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	if err := docstore.ValidateID(id); err != nil {
		return nil, err
	}
	c, t, err := s.coll(collection)
	if err != nil {
		return nil, err
	}
	var raw bson.M
	if err := c.FindOne(ctx, t.byID(id)).Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, docstore.ErrNotFound
		}
		return nil, err
	}
	doc := fromBSON(collection, raw)
	return &doc, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data map[string]any) error {
	if err := docstore.ValidateID(id); err != nil {
		return err
	}
	c, t, err := s.coll(collection)
	if err != nil {
		return err
	}
	_, err = c.ReplaceOne(ctx, t.byID(id), t.toBSON(id, data, time.Now().UTC()), options.Replace().SetUpsert(true))
	return err
}

func (s *Store) Create(ctx context.Context, collection, id string, data map[string]any) error {
	if err := docstore.ValidateID(id); err != nil {
		return err
	}
	c, t, err := s.coll(collection)
	if err != nil {
		return err
	}
	if _, err := c.InsertOne(ctx, t.toBSON(id, data, time.Now().UTC())); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return docstore.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := s.newID()
	if err := s.Create(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, updates []docstore.Update, preconditions ...docstore.Precondition) error {
	if err := docstore.ValidateID(id); err != nil {
		return err
	}
	c, t, err := s.coll(collection)
	if err != nil {
		return err
	}
	update, err := translateUpdates(updates)
	if err != nil {
		return err
	}
	pre, err := translatePreconditions(preconditions)
	if err != nil {
		return err
	}

	res, err := c.UpdateOne(ctx, append(t.byID(id), pre...), update)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// nothing matched: tell a missing document apart from a failed check
	n, err := c.CountDocuments(ctx, t.byID(id), options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return docstore.ErrNotFound
	}
	return docstore.ErrPreconditionFailed
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := docstore.ValidateID(id); err != nil {
		return err
	}
	c, t, err := s.coll(collection)
	if err != nil {
		return err
	}
	_, err = c.DeleteOne(ctx, t.byID(id))
	return err
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	c, t, err := s.coll(q.Collection)
	if err != nil {
		return nil, err
	}
	filter, sort, err := translateQuery(t, q)
	if err != nil {
		return nil, err
	}

	opts := options.Find()
	if sort != nil {
		opts.SetSort(sort)
	}
	if q.Max > 0 {
		opts.SetLimit(int64(q.Max))
	}

	cur, err := c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var raws []bson.M
	if err := cur.All(ctx, &raws); err != nil {
		return nil, err
	}
	docs := make([]docstore.Document, len(raws))
	for i, raw := range raws {
		docs[i] = fromBSON(q.Collection, raw)
	}
	return docs, nil
}

// Close disconnects the client when the store owns it.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the community queries rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		"conversations": {
			{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "lastMessageTimestamp", Value: -1}}},
		},
		"conversations.messages": {
			{Keys: bson.D{{Key: fieldParent, Value: 1}, {Key: "timestamp", Value: 1}}},
		},
		"notifications": {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		"comments": {
			{Keys: bson.D{{Key: "postId", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		"posts": {
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}
	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", strings.ReplaceAll(name, ".", "/"), err)
		}
	}
	return nil
}

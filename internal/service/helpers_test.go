package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/community-platform/internal/docstore"
	"github.com/capitalize-ai/community-platform/internal/docstore/memstore"
	"github.com/capitalize-ai/community-platform/internal/model"
	"github.com/capitalize-ai/community-platform/pkg/logger"
)

var errBoom = errors.New("boom")

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev *model.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *ev)
	return nil
}

func (p *recordingPublisher) ofType(t model.EventType) []model.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []model.Event
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type moderatorFunc func(ctx context.Context, text string) (Verdict, error)

func (f moderatorFunc) Moderate(ctx context.Context, text string) (Verdict, error) {
	return f(ctx, text)
}

// faultyStore fails every Update on one collection.
type faultyStore struct {
	docstore.Store
	failUpdates string
}

func (f faultyStore) Update(ctx context.Context, collection, id string, updates []docstore.Update, pre ...docstore.Precondition) error {
	if collection == f.failUpdates {
		return errBoom
	}
	return f.Store.Update(ctx, collection, id, updates, pre...)
}

// tickingClock advances one millisecond per reading.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Millisecond)
		return now
	}
}

type env struct {
	store         *memstore.Store
	events        *recordingPublisher
	conversations *ConversationService
	messages      *MessageService
	notifications *NotificationService
	reactions     *ReactionService
	comments      *CommentService
	posts         *PostService
	users         *UserService
	devices       *DeviceService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memstore.New(memstore.WithClock(tickingClock()))
	t.Cleanup(func() { _ = store.Close() })
	return newEnvWithStore(store, store)
}

// newEnvWithStore builds the services on backing, keeping mem for direct
// inspection in assertions.
func newEnvWithStore(mem *memstore.Store, backing docstore.Store) *env {
	log := logger.Nop()
	events := &recordingPublisher{}
	conversations := NewConversationService(backing, log)
	notifications := NewNotificationService(backing, events, log, 0)
	return &env{
		store:         mem,
		events:        events,
		conversations: conversations,
		messages:      NewMessageService(backing, conversations, events, log),
		notifications: notifications,
		reactions:     NewReactionService(backing, notifications, events, log),
		comments:      NewCommentService(backing, notifications, events, nil, log),
		posts:         NewPostService(backing, nil, log),
		users:         NewUserService(backing, notifications, log),
		devices:       NewDeviceService(backing, log),
	}
}

func (e *env) createPost(t *testing.T, author string) string {
	t.Helper()
	id, err := e.posts.Create(context.Background(), NewSession(author), &model.CreatePostRequest{
		Title:    "Launch week",
		Content:  "We shipped.",
		Category: "news",
	})
	require.NoError(t, err)
	return id
}

func (e *env) post(t *testing.T, id string) *model.Post {
	t.Helper()
	p, err := e.posts.Get(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (e *env) conversation(t *testing.T, id string) map[string]any {
	t.Helper()
	doc, err := e.store.Get(context.Background(), model.ConversationsCollection, id)
	require.NoError(t, err)
	return doc.Data
}

func (e *env) notificationsFor(t *testing.T, userID string) []model.Notification {
	t.Helper()
	list, err := e.notifications.List(context.Background(), NewSession(userID))
	require.NoError(t, err)
	return list
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a snapshot")
	}
	var zero T
	return zero
}

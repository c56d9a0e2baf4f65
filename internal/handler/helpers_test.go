package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/community-platform/internal/docstore/memstore"
	"github.com/capitalize-ai/community-platform/internal/service"
	"github.com/capitalize-ai/community-platform/pkg/logger"
)

// tokens maps bearer tokens to user ids; the token is the user id.
type tokens map[string]bool

func (t tokens) Verify(_ context.Context, token string) (string, error) {
	if !t[token] {
		return "", errors.New("unknown token")
	}
	return token, nil
}

type testAPI struct {
	server *httptest.Server
	store  *memstore.Store
}

func newTestAPI(t *testing.T, checks map[string]Check) *testAPI {
	t.Helper()
	log := logger.Nop()
	store := memstore.New()
	events := service.NopPublisher{}

	conversations := service.NewConversationService(store, log)
	notifications := service.NewNotificationService(store, events, log, 50)
	svc := Services{
		Conversations: conversations,
		Messages:      service.NewMessageService(store, conversations, events, log),
		Notifications: notifications,
		Reactions:     service.NewReactionService(store, notifications, events, log),
		Comments:      service.NewCommentService(store, notifications, events, nil, log),
		Posts:         service.NewPostService(store, nil, log),
		Users:         service.NewUserService(store, notifications, log),
		Devices:       service.NewDeviceService(store, log),
	}

	router := NewRouter(svc, RouterOptions{
		Verifier:  tokens{"alice": true, "bob": true, "carol": true},
		Heartbeat: time.Second,
		Checks:    checks,
	}, log)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testAPI{server: server, store: store}
}

// do sends a request as user, who may be empty for an anonymous call.
func (a *testAPI) do(t *testing.T, method, path, user string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+user)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

// decode unmarshals a JSON body into T.
func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func (a *testAPI) createPost(t *testing.T, author string) string {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/api/v1/posts", author, map[string]any{
		"title":    "Launch notes",
		"content":  "We shipped the beta",
		"category": "news",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	return decode[map[string]string](t, body)["id"]
}

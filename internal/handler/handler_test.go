package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/community-platform/internal/model"
	"github.com/capitalize-ai/community-platform/internal/service"
)

func TestHealth(t *testing.T) {
	api := newTestAPI(t, map[string]Check{
		"store": func(context.Context) error { return nil },
	})

	status, body := api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"healthy"}`, string(body))

	status, _ = api.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestReady_FailingCheck(t *testing.T) {
	api := newTestAPI(t, map[string]Check{
		"store": func(context.Context) error { return nil },
		"nats":  func(context.Context) error { return errors.New("disconnected") },
	})

	status, body := api.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.JSONEq(t, `{"status":"not ready","reason":"nats: disconnected"}`, string(body))
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t, nil)

	status, _ := api.do(t, http.MethodGet, "/api/v1/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = api.do(t, http.MethodGet, "/api/v1/conversations", "mallory", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{service.ErrUnauthenticated, http.StatusUnauthorized},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrNotFound, http.StatusNotFound},
		{service.ErrInvalidArgument, http.StatusBadRequest},
		{service.ErrRejectedContent, http.StatusBadRequest},
		{service.ErrConflict, http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, text := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		if status == http.StatusInternalServerError {
			assert.Equal(t, "internal server error", text)
		}
	}
}

func TestConversationFlow(t *testing.T) {
	api := newTestAPI(t, nil)

	status, body := api.do(t, http.MethodPost, "/api/v1/conversations", "alice", model.CreateConversationRequest{UserID: "bob"})
	require.Equal(t, http.StatusCreated, status, string(body))
	convID := decode[model.CreateConversationResponse](t, body).ID
	require.NotEmpty(t, convID)

	// the other side resolves to the same conversation
	status, body = api.do(t, http.MethodPost, "/api/v1/conversations", "bob", model.CreateConversationRequest{UserID: "alice"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, convID, decode[model.CreateConversationResponse](t, body).ID)

	status, body = api.do(t, http.MethodPost, "/api/v1/conversations/"+convID+"/messages", "alice", model.SendMessageRequest{
		ReceiverID: "bob",
		Text:       "hello bob",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	assert.NotEmpty(t, decode[model.SendMessageResponse](t, body).ID)

	status, body = api.do(t, http.MethodGet, "/api/v1/conversations/"+convID+"/messages", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	page := decode[model.ListMessagesResponse](t, body)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "hello bob", page.Messages[0].Text)
	assert.False(t, page.Messages[0].Read)
	assert.False(t, page.HasMore)

	status, body = api.do(t, http.MethodGet, "/api/v1/conversations", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	list := decode[model.ListConversationsResponse](t, body)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "hello bob", list.Conversations[0].LastMessage)
	assert.False(t, list.Conversations[0].ReadBy["bob"])

	status, _ = api.do(t, http.MethodPost, "/api/v1/conversations/"+convID+"/read", "bob", nil)
	require.Equal(t, http.StatusNoContent, status)

	status, body = api.do(t, http.MethodGet, "/api/v1/conversations/"+convID, "bob", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[model.Conversation](t, body).ReadBy["bob"])

	_, body = api.do(t, http.MethodGet, "/api/v1/conversations/"+convID+"/messages", "alice", nil)
	assert.True(t, decode[model.ListMessagesResponse](t, body).Messages[0].Read)
}

func TestConversation_Errors(t *testing.T) {
	api := newTestAPI(t, nil)

	status, _ := api.do(t, http.MethodPost, "/api/v1/conversations", "alice", model.CreateConversationRequest{UserID: "alice"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(t, http.MethodPost, "/api/v1/conversations", "alice", model.CreateConversationRequest{})
	assert.Equal(t, http.StatusBadRequest, status)

	_, body := api.do(t, http.MethodPost, "/api/v1/conversations", "alice", model.CreateConversationRequest{UserID: "bob"})
	convID := decode[model.CreateConversationResponse](t, body).ID

	// outsiders cannot see the conversation nor write to it
	status, _ = api.do(t, http.MethodGet, "/api/v1/conversations/"+convID, "carol", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = api.do(t, http.MethodPost, "/api/v1/conversations/"+convID+"/messages", "carol", model.SendMessageRequest{
		ReceiverID: "bob",
		Text:       "hi",
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = api.do(t, http.MethodPost, "/api/v1/conversations/"+convID+"/messages", "alice", model.SendMessageRequest{
		ReceiverID: "bob",
		Text:       "   ",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(t, http.MethodGet, "/api/v1/conversations/missing", "alice", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPosts(t *testing.T) {
	api := newTestAPI(t, nil)
	postID := api.createPost(t, "alice")

	status, body := api.do(t, http.MethodGet, "/api/v1/posts?category=news", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	posts := decode[model.ListPostsResponse](t, body).Posts
	require.Len(t, posts, 1)
	assert.Equal(t, postID, posts[0].ID)

	status, body = api.do(t, http.MethodPost, "/api/v1/posts/"+postID+"/reactions", "bob", model.ToggleReactionRequest{Emoji: "🔥"})
	require.Equal(t, http.StatusOK, status, string(body))
	res := decode[model.ReactionResult](t, body)
	assert.Equal(t, model.ReactionAdded, res.Action)
	assert.Equal(t, 1, res.Reaction.Count)

	status, body = api.do(t, http.MethodPost, "/api/v1/posts/"+postID+"/bookmark", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[model.BookmarkResult](t, body).Bookmarked)

	status, _ = api.do(t, http.MethodPost, "/api/v1/posts/"+postID+"/views", "bob", nil)
	require.Equal(t, http.StatusNoContent, status)

	status, body = api.do(t, http.MethodGet, "/api/v1/posts/"+postID, "bob", nil)
	require.Equal(t, http.StatusOK, status)
	post := decode[model.Post](t, body)
	assert.Equal(t, 1, post.Views)
	assert.Equal(t, []string{"bob"}, post.BookmarkedBy)
	assert.Equal(t, []string{"bob"}, post.Reactions["🔥"].Users)

	// the author hears about the reaction
	_, body = api.do(t, http.MethodGet, "/api/v1/notifications", "alice", nil)
	notes := decode[model.ListNotificationsResponse](t, body)
	require.Len(t, notes.Notifications, 1)
	assert.Equal(t, model.NotificationReaction, notes.Notifications[0].Type)
	assert.Equal(t, 1, notes.Unread)
}

func TestPosts_UpdateDelete(t *testing.T) {
	api := newTestAPI(t, nil)
	postID := api.createPost(t, "alice")
	title := "Launch notes, revised"

	status, _ := api.do(t, http.MethodPut, "/api/v1/posts/"+postID, "bob", model.UpdatePostRequest{Title: &title})
	assert.Equal(t, http.StatusForbidden, status)

	status, body := api.do(t, http.MethodPut, "/api/v1/posts/"+postID, "alice", model.UpdatePostRequest{Title: &title})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, title, decode[model.Post](t, body).Title)

	status, _ = api.do(t, http.MethodDelete, "/api/v1/posts/"+postID, "bob", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = api.do(t, http.MethodDelete, "/api/v1/posts/"+postID, "alice", nil)
	require.Equal(t, http.StatusNoContent, status)

	status, _ = api.do(t, http.MethodGet, "/api/v1/posts/"+postID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPosts_BadInput(t *testing.T) {
	api := newTestAPI(t, nil)

	status, _ := api.do(t, http.MethodPost, "/api/v1/posts", "alice", map[string]any{"title": "t", "content": ""})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(t, http.MethodPost, "/api/v1/posts", "alice", map[string]any{"title": "", "content": "body"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(t, http.MethodPost, "/api/v1/posts/missing/reactions", "alice", model.ToggleReactionRequest{Emoji: "👍"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestComments(t *testing.T) {
	api := newTestAPI(t, nil)
	postID := api.createPost(t, "alice")

	// mentions only reach members with a profile
	status, _ := api.do(t, http.MethodGet, "/api/v1/users/me", "carol", nil)
	require.Equal(t, http.StatusOK, status)

	status, body := api.do(t, http.MethodPost, "/api/v1/posts/"+postID+"/comments", "bob", model.AddCommentRequest{Content: "congrats @carol"})
	require.Equal(t, http.StatusCreated, status, string(body))
	commentID := decode[map[string]string](t, body)["id"]

	status, body = api.do(t, http.MethodPost, "/api/v1/posts/"+postID+"/comments", "alice", model.AddCommentRequest{
		Content:  "thanks!",
		ParentID: &commentID,
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	status, body = api.do(t, http.MethodGet, "/api/v1/posts/"+postID+"/comments", "carol", nil)
	require.Equal(t, http.StatusOK, status)
	thread := decode[model.ListCommentsResponse](t, body).Comments
	require.Len(t, thread, 1)
	assert.Equal(t, commentID, thread[0].ID)
	require.Len(t, thread[0].Replies, 1)
	assert.Equal(t, "thanks!", thread[0].Replies[0].Content)

	status, body = api.do(t, http.MethodPost, "/api/v1/comments/"+commentID+"/like", "alice", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, model.ReactionAdded, decode[model.ReactionResult](t, body).Action)

	status, _ = api.do(t, http.MethodPut, "/api/v1/comments/"+commentID, "alice", model.EditCommentRequest{Content: "hijack"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = api.do(t, http.MethodPut, "/api/v1/comments/"+commentID, "bob", model.EditCommentRequest{Content: "congrats all"})
	require.Equal(t, http.StatusNoContent, status)

	_, body = api.do(t, http.MethodGet, "/api/v1/posts/"+postID+"/comments", "carol", nil)
	edited := decode[model.ListCommentsResponse](t, body).Comments[0]
	assert.Equal(t, "congrats all", edited.Content)
	assert.True(t, edited.Edited)

	// carol was mentioned
	_, body = api.do(t, http.MethodGet, "/api/v1/notifications", "carol", nil)
	notes := decode[model.ListNotificationsResponse](t, body)
	require.Len(t, notes.Notifications, 1)
	assert.Equal(t, model.NotificationMention, notes.Notifications[0].Type)

	status, _ = api.do(t, http.MethodPost, "/api/v1/notifications/"+notes.Notifications[0].ID+"/read", "bob", nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = api.do(t, http.MethodPost, "/api/v1/notifications/"+notes.Notifications[0].ID+"/read", "carol", nil)
	require.Equal(t, http.StatusNoContent, status)
	_, body = api.do(t, http.MethodGet, "/api/v1/notifications", "carol", nil)
	assert.Equal(t, 0, decode[model.ListNotificationsResponse](t, body).Unread)

	status, _ = api.do(t, http.MethodDelete, "/api/v1/comments/"+commentID, "bob", nil)
	require.Equal(t, http.StatusNoContent, status)
}

func TestUsers(t *testing.T) {
	api := newTestAPI(t, nil)

	status, body := api.do(t, http.MethodPut, "/api/v1/users/me", "alice", model.UpdateProfileRequest{DisplayName: "Alice"})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "Alice", decode[model.User](t, body).DisplayName)

	status, body = api.do(t, http.MethodGet, "/api/v1/users/me", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "bob", decode[model.User](t, body).ID)

	status, body = api.do(t, http.MethodPost, "/api/v1/users/alice/follow", "bob", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, model.FollowResult{Following: true, Changed: true}, decode[model.FollowResult](t, body))

	status, body = api.do(t, http.MethodGet, "/api/v1/users/alice", "carol", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"bob"}, decode[model.User](t, body).Followers)

	status, _ = api.do(t, http.MethodPost, "/api/v1/users/bob/follow", "bob", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(t, http.MethodGet, "/api/v1/users/nobody", "bob", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDevices(t *testing.T) {
	api := newTestAPI(t, nil)

	status, _ := api.do(t, http.MethodPost, "/api/v1/devices", "alice", model.RegisterDeviceRequest{Token: "fcm-token-1", Platform: "ios"})
	require.Equal(t, http.StatusNoContent, status)

	status, _ = api.do(t, http.MethodPost, "/api/v1/devices", "alice", model.RegisterDeviceRequest{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestInvalidBody(t *testing.T) {
	api := newTestAPI(t, nil)

	req, err := http.NewRequest(http.MethodPost, api.server.URL+"/api/v1/posts", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer alice")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

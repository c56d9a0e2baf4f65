package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/community-platform/internal/model"
)

func ptr(s string) *string { return &s }

func TestMentions(t *testing.T) {
	tests := []struct {
		content string
		want    []string
	}{
		{"no mentions here", nil},
		{"@alice look", []string{"alice"}},
		{"hey @bob and @carol-d, also @bob", []string{"bob", "carol-d"}},
		{"mail me at me@example.com", nil},
		{"(@dave) @@eve", []string{"dave"}},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			assert.Equal(t, tt.want, mentions(tt.content))
		})
	}
}

func TestAddComment_CountsAndNotifiesAuthor(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.createPost(t, "author")

	id, err := e.comments.Add(ctx, NewSession("u1"), p, "  nice work  ", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	assert.Equal(t, 1, e.post(t, p).CommentCount)
	notes := e.notificationsFor(t, "author")
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotificationComment, notes[0].Type)
	assert.Equal(t, id, notes[0].CommentID)
	assert.Equal(t, "u1", notes[0].FromUserID)

	created := e.events.ofType(model.EventCommentCreated)
	require.Len(t, created, 1)
	assert.Equal(t, id, created[0].SubjectID)

	list, err := e.comments.ListThreaded(ctx, p)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "nice work", list[0].Content)
	assert.Nil(t, list[0].ParentID)
	assert.Empty(t, list[0].Replies)
}

func TestAddComment_OwnPostDoesNotNotify(t *testing.T) {
	e := newEnv(t)
	p := e.createPost(t, "author")

	_, err := e.comments.Add(context.Background(), NewSession("author"), p, "bump", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, e.post(t, p).CommentCount)
	assert.Empty(t, e.notificationsFor(t, "author"))
}

func TestAddComment_ReplyNotifiesParentAuthor(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.createPost(t, "author")

	parent, err := e.comments.Add(ctx, NewSession("u1"), p, "first", nil)
	require.NoError(t, err)
	reply, err := e.comments.Add(ctx, NewSession("u2"), p, "agreed", ptr(parent))
	require.NoError(t, err)

	assert.Equal(t, 2, e.post(t, p).CommentCount)
	assert.Len(t, e.notificationsFor(t, "author"), 2)
	toU1 := e.notificationsFor(t, "u1")
	require.Len(t, toU1, 1)
	assert.Equal(t, reply, toU1[0].CommentID)
	assert.Equal(t, true, toU1[0].Data["reply"])

	list, err := e.comments.ListThreaded(ctx, p)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Len(t, list[0].Replies, 1)
	assert.Equal(t, reply, list[0].Replies[0].ID)
	assert.Equal(t, parent, *list[0].Replies[0].ParentID)
}

func TestAddComment_Mentions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.createPost(t, "author")
	_, err := e.users.EnsureProfile(ctx, NewSession("alice"), "Alice")
	require.NoError(t, err)
	_, err = e.users.EnsureProfile(ctx, NewSession("author"), "")
	require.NoError(t, err)

	_, err = e.comments.Add(ctx, NewSession("u1"), p, "@alice @ghost @author @u1 @alice", nil)
	require.NoError(t, err)

	toAlice := e.notificationsFor(t, "alice")
	require.Len(t, toAlice, 1)
	assert.Equal(t, model.NotificationMention, toAlice[0].Type)
	assert.Empty(t, e.notificationsFor(t, "ghost"))
	assert.Empty(t, e.notificationsFor(t, "u1"))

	// the post author already got the comment notification
	toAuthor := e.notificationsFor(t, "author")
	require.Len(t, toAuthor, 1)
	assert.Equal(t, model.NotificationComment, toAuthor[0].Type)
}

func TestAddComment_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.createPost(t, "author")
	other := e.createPost(t, "author")
	foreign, err := e.comments.Add(ctx, NewSession("u1"), other, "elsewhere", nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		sess    *Session
		postID  string
		content string
		parent  *string
		wantErr error
	}{
		{"unauthenticated", nil, p, "hi", nil, ErrUnauthenticated},
		{"empty content", NewSession("u1"), p, "   ", nil, ErrInvalidArgument},
		{"missing post", NewSession("u1"), "missing", "hi", nil, ErrNotFound},
		{"missing parent", NewSession("u1"), p, "hi", ptr("nope"), ErrNotFound},
		{"parent on another post", NewSession("u1"), p, "hi", ptr(foreign), ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.comments.Add(ctx, tt.sess, tt.postID, tt.content, tt.parent)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, 0, e.post(t, p).CommentCount)
}

func TestAddComment_Moderation(t *testing.T) {
	e := newEnv(t)
	log := e.comments.logger
	e.comments = NewCommentService(e.store, e.notifications, e.events, moderatorFunc(func(_ context.Context, text string) (Verdict, error) {
		return Verdict{Allowed: text != "spam", Reason: "spam"}, nil
	}), log)
	p := e.createPost(t, "author")

	_, err := e.comments.Add(context.Background(), NewSession("u1"), p, "spam", nil)
	assert.ErrorIs(t, err, ErrRejectedContent)
	assert.Equal(t, 0, e.post(t, p).CommentCount)
}

func TestAddComment_CountFailureKeepsComment(t *testing.T) {
	mem := newEnv(t).store
	e := newEnvWithStore(mem, faultyStore{Store: mem, failUpdates: model.PostsCollection})
	p := e.createPost(t, "author")

	id, err := e.comments.Add(context.Background(), NewSession("u1"), p, "hello", nil)
	assert.ErrorIs(t, err, errBoom)
	assert.NotEmpty(t, id)
	_, err = mem.Get(context.Background(), model.CommentsCollection, id)
	assert.NoError(t, err)
}

func TestEditAndDeleteComment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.createPost(t, "author")
	id, err := e.comments.Add(ctx, NewSession("u1"), p, "draft", nil)
	require.NoError(t, err)

	assert.ErrorIs(t, e.comments.Edit(ctx, NewSession("u2"), id, "hijack"), ErrForbidden)
	assert.ErrorIs(t, e.comments.Edit(ctx, NewSession("u1"), id, " "), ErrInvalidArgument)
	assert.ErrorIs(t, e.comments.Edit(ctx, NewSession("u1"), "missing", "x"), ErrNotFound)
	require.NoError(t, e.comments.Edit(ctx, NewSession("u1"), id, "final"))

	list, err := e.comments.ListThreaded(ctx, p)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "final", list[0].Content)
	assert.True(t, list[0].Edited)
	require.NotNil(t, list[0].UpdatedAt)

	assert.ErrorIs(t, e.comments.Delete(ctx, NewSession("u2"), id), ErrForbidden)
	require.NoError(t, e.comments.Delete(ctx, NewSession("u1"), id))
	list, err = e.comments.ListThreaded(ctx, p)
	require.NoError(t, err)
	assert.Empty(t, list)
	// the count is not decremented
	assert.Equal(t, 1, e.post(t, p).CommentCount)
}

func TestToggleLike(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.createPost(t, "author")
	id, err := e.comments.Add(ctx, NewSession("u1"), p, "like me", nil)
	require.NoError(t, err)

	res, err := e.comments.ToggleLike(ctx, NewSession("u2"), id)
	require.NoError(t, err)
	assert.Equal(t, model.ReactionAdded, res.Action)
	assert.Equal(t, model.Reaction{Count: 1, Users: []string{"u2"}}, res.Reaction)

	res, err = e.comments.ToggleLike(ctx, NewSession("u2"), id)
	require.NoError(t, err)
	assert.Equal(t, model.ReactionRemoved, res.Action)
	assert.Equal(t, model.Reaction{Count: 0, Users: []string{}}, res.Reaction)

	_, err = e.comments.ToggleLike(ctx, NewSession("u2"), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.comments.ToggleLike(ctx, nil, id)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestThread(t *testing.T) {
	c := func(id string, parent *string) model.Comment { return model.Comment{ID: id, ParentID: parent} }
	got := thread([]model.Comment{
		c("a", nil),
		c("a1", ptr("a")),
		c("b", nil),
		c("a1x", ptr("a1")),
		c("b1", ptr("b")),
		c("a2", ptr("a")),
	})
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, []model.Comment{c("a1", ptr("a")), c("a2", ptr("a"))}, got[0].Replies)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, []model.Comment{c("b1", ptr("b"))}, got[1].Replies)

	assert.Equal(t, []model.ThreadedComment{}, thread(nil))
}

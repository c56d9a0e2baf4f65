package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/community-platform/internal/model"
)

func TestCreatePost(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	id, err := e.posts.Create(ctx, NewSession("author"), &model.CreatePostRequest{
		Title:    " Hello ",
		Content:  "World",
		Category: "general",
		Tags:     []string{"Go", "go ", "", "nats"},
	})
	require.NoError(t, err)

	p := e.post(t, id)
	assert.Equal(t, "author", p.AuthorID)
	assert.Equal(t, "Hello", p.Title)
	assert.Equal(t, []string{"go", "nats"}, p.Tags)
	assert.Zero(t, p.CommentCount)
	assert.Empty(t, p.Reactions)
	assert.False(t, p.CreatedAt.IsZero())

	_, err = e.posts.Create(ctx, NewSession("author"), &model.CreatePostRequest{Title: "x"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = e.posts.Create(ctx, nil, &model.CreatePostRequest{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestListPosts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	var news []string
	for i := 0; i < 3; i++ {
		news = append(news, e.createPost(t, "author"))
	}
	_, err := e.posts.Create(ctx, NewSession("author"), &model.CreatePostRequest{Title: "t", Content: "c", Category: "help"})
	require.NoError(t, err)

	all, err := e.posts.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	got, err := e.posts.List(ctx, "news", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, news[2], got[0].ID)
	assert.Equal(t, news[1], got[1].ID)
}

func TestUpdatePost(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.createPost(t, "author")
	title := "Renamed"
	empty := " "

	assert.ErrorIs(t, e.posts.Update(ctx, NewSession("u1"), id, &model.UpdatePostRequest{Title: &title}), ErrForbidden)
	assert.ErrorIs(t, e.posts.Update(ctx, NewSession("author"), id, &model.UpdatePostRequest{Title: &empty}), ErrInvalidArgument)
	assert.ErrorIs(t, e.posts.Update(ctx, NewSession("author"), "missing", &model.UpdatePostRequest{Title: &title}), ErrNotFound)

	require.NoError(t, e.posts.Update(ctx, NewSession("author"), id, &model.UpdatePostRequest{Title: &title}))
	p := e.post(t, id)
	assert.Equal(t, "Renamed", p.Title)
	assert.Equal(t, "We shipped.", p.Content)
	assert.True(t, p.UpdatedAt.After(p.CreatedAt))
}

func TestDeletePost(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.createPost(t, "author")

	assert.ErrorIs(t, e.posts.Delete(ctx, NewSession("u1"), id), ErrForbidden)
	require.NoError(t, e.posts.Delete(ctx, NewSession("author"), id))
	_, err := e.posts.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleBookmark(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.createPost(t, "author")

	res, err := e.posts.ToggleBookmark(ctx, NewSession("u1"), id)
	require.NoError(t, err)
	assert.Equal(t, model.BookmarkResult{Bookmarked: true, Changed: true}, res)
	assert.Equal(t, []string{"u1"}, e.post(t, id).BookmarkedBy)

	res, err = e.posts.ToggleBookmark(ctx, NewSession("u1"), id)
	require.NoError(t, err)
	assert.Equal(t, model.BookmarkResult{Bookmarked: false, Changed: true}, res)
	assert.Empty(t, e.post(t, id).BookmarkedBy)

	_, err = e.posts.ToggleBookmark(ctx, NewSession("u1"), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordView(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.createPost(t, "author")

	require.NoError(t, e.posts.RecordView(ctx, id))
	require.NoError(t, e.posts.RecordView(ctx, id))
	p := e.post(t, id)
	assert.Equal(t, 2, p.Views)
	assert.Equal(t, 2, p.Score)

	assert.ErrorIs(t, e.posts.RecordView(ctx, "missing"), ErrNotFound)
}

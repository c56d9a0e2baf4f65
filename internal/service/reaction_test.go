package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/community-platform/internal/docstore"
	"github.com/capitalize-ai/community-platform/internal/model"
)

func TestScenario_ReactThenUnreact(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.createPost(t, "author")
	u1 := NewSession("u1")

	res, err := e.reactions.Toggle(ctx, u1, p, "👍")
	require.NoError(t, err)
	assert.Equal(t, model.ReactionAdded, res.Action)
	assert.True(t, res.Changed)
	assert.Equal(t, model.Reaction{Emoji: "👍", Count: 1, Users: []string{"u1"}}, res.Reaction)
	assert.Equal(t, model.Reaction{Emoji: "👍", Count: 1, Users: []string{"u1"}}, e.post(t, p).Reactions["👍"])

	notes := e.notificationsFor(t, "author")
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotificationReaction, notes[0].Type)
	assert.Equal(t, "u1", notes[0].FromUserID)
	assert.Equal(t, p, notes[0].PostID)
	assert.False(t, notes[0].Read)

	res, err = e.reactions.Toggle(ctx, u1, p, "👍")
	require.NoError(t, err)
	assert.Equal(t, model.ReactionRemoved, res.Action)
	r := e.post(t, p).Reactions["👍"]
	assert.Equal(t, 0, r.Count)
	assert.Empty(t, r.Users)
	assert.Len(t, e.notificationsFor(t, "author"), 1)
}

func TestToggle_Symmetry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.createPost(t, "author")

	// a background of other reactions
	for _, u := range []string{"a", "b"} {
		_, err := e.reactions.Toggle(ctx, NewSession(u), p, "🔥")
		require.NoError(t, err)
	}
	before := e.post(t, p).Reactions

	for _, emoji := range []string{"🔥", "👍", "🎉"} {
		for _, user := range []string{"a", "u1", "author"} {
			t.Run(emoji+"/"+user, func(t *testing.T) {
				sess := NewSession(user)
				_, err := e.reactions.Toggle(ctx, sess, p, emoji)
				require.NoError(t, err)
				_, err = e.reactions.Toggle(ctx, sess, p, emoji)
				require.NoError(t, err)

				after := e.post(t, p).Reactions[emoji]
				prior := before[emoji]
				assert.Equal(t, prior.Count, after.Count)
				assert.ElementsMatch(t, prior.Users, after.Users)
			})
		}
	}
}

func TestToggle_NotificationOncePerAdd(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.createPost(t, "author")
	u1 := NewSession("u1")

	for i := 0; i < 3; i++ {
		_, err := e.reactions.Toggle(ctx, u1, p, "❤️")
		require.NoError(t, err)
	}
	// add, remove, add
	assert.Len(t, e.notificationsFor(t, "author"), 2)
	assert.Len(t, e.events.ofType(model.EventReactionToggled), 3)
}

func TestToggle_SelfReactionDoesNotNotify(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.createPost(t, "author")

	res, err := e.reactions.Toggle(ctx, NewSession("author"), p, "👍")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reaction.Count)
	assert.Empty(t, e.notificationsFor(t, "author"))
}

func TestToggle_CountMatchesUsersUnderConcurrency(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.createPost(t, "author")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		user := fmt.Sprintf("u%d", i)
		// even users toggle once, odd users toggle twice
		times := 1 + i%2
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < times; j++ {
				_, err := e.reactions.Toggle(ctx, NewSession(user), p, "👍")
				assert.NoError(t, err)
			}
		}()
	}
	// one user racing against itself
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.reactions.Toggle(ctx, NewSession("racer"), p, "🎉")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	reactions := e.post(t, p).Reactions
	thumbs := reactions["👍"]
	assert.Equal(t, len(thumbs.Users), thumbs.Count)
	assert.Len(t, thumbs.Users, 10)
	for _, u := range thumbs.Users {
		var n int
		fmt.Sscanf(u, "u%d", &n)
		assert.Equal(t, 0, n%2, "odd users toggled twice and must be absent")
	}

	party := reactions["🎉"]
	assert.Equal(t, len(party.Users), party.Count)
	assert.LessOrEqual(t, party.Count, 1)
}

func TestToggle_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.createPost(t, "author")

	_, err := e.reactions.Toggle(ctx, nil, p, "👍")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.EqualError(t, err, "user not authenticated")

	_, err = e.reactions.Toggle(ctx, NewSession("u1"), "missing", "👍")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "post not found")

	for _, emoji := range []string{"", "  ", "a.b", "$set"} {
		_, err = e.reactions.Toggle(ctx, NewSession("u1"), p, emoji)
		assert.ErrorIs(t, err, ErrInvalidArgument, emoji)
	}
}

func TestToggle_NotificationFailureIsReported(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.createPost(t, "author")

	// a recipient id that cannot be a field key makes Emit fail validation
	require.NoError(t, e.store.Update(ctx, model.PostsCollection, p, []docstore.Update{{Path: "authorId", Value: "bad.author"}}))

	res, err := e.reactions.Toggle(ctx, NewSession("u1"), p, "👍")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.True(t, res.Changed)
	assert.Equal(t, 1, e.post(t, p).Reactions["👍"].Count)
}

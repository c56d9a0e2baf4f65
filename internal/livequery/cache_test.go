package livequery

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/community-platform/internal/docstore"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(time.Minute)
	c.now = func() time.Time { return now }

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	in := []docstore.Document{{ID: "p1", Collection: "posts", Data: map[string]any{"title": "a"}}}
	require.NoError(t, c.Set(ctx, "k", in))
	in[0].Data["title"] = "changed"

	docs, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", docs[0].Data["title"])

	now = now.Add(time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCacheFromClient(client, time.Minute)
	defer c.Close()
	require.NoError(t, c.Ping(ctx))

	_, ok, err := c.Get(ctx, "q|posts")
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, c.Set(ctx, "q|posts", []docstore.Document{{
		ID:         "p1",
		Collection: "posts",
		Data:       map[string]any{"title": "a", "views": int64(3), "createdAt": at},
	}}))
	assert.True(t, mr.Exists("livequery:q|posts"))

	docs, ok, err := c.Get(ctx, "q|posts")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, docs, 1)
	assert.Equal(t, "p1", docs[0].ID)
	assert.Equal(t, float64(3), docs[0].Data["views"])

	// cached bodies still decode into the typed models
	var out struct {
		Views     int       `doc:"views"`
		CreatedAt time.Time `doc:"createdAt"`
	}
	require.NoError(t, docstore.Decode(docs[0].Data, &out))
	assert.Equal(t, 3, out.Views)
	assert.True(t, at.Equal(out.CreatedAt))

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "q|posts")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_CorruptEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("livequery:k", "not json"))
	c := NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 0)
	defer c.Close()

	_, _, err := c.Get(context.Background(), "k")
	assert.Error(t, err)
}

package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleReaction struct {
	Emoji string   `doc:"emoji"`
	Count int      `doc:"count"`
	Users []string `doc:"users"`
}

type samplePost struct {
	ID        string                    `doc:"-"`
	Title     string                    `doc:"title"`
	Views     int                       `doc:"views"`
	Reactions map[string]sampleReaction `doc:"reactions"`
	ReadBy    map[string]bool           `doc:"readBy"`
	ParentID  *string                   `doc:"parentId"`
	CreatedAt time.Time                 `doc:"createdAt"`
	ReadAt    *time.Time                `doc:"readAt"`
}

func TestDecode(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	data := NormalizeMap(map[string]any{
		"title": "launch",
		"views": int64(7),
		"reactions": map[string]any{
			"🔥": map[string]any{"emoji": "🔥", "count": int64(2), "users": []any{"u1", "u2"}},
		},
		"readBy":    map[string]any{"u1": true},
		"parentId":  nil,
		"createdAt": at,
		"readAt":    at,
	})

	var p samplePost
	require.NoError(t, Decode(data, &p))
	assert.Equal(t, "launch", p.Title)
	assert.Equal(t, 7, p.Views)
	assert.Equal(t, sampleReaction{Emoji: "🔥", Count: 2, Users: []string{"u1", "u2"}}, p.Reactions["🔥"])
	assert.True(t, p.ReadBy["u1"])
	assert.Nil(t, p.ParentID)
	assert.True(t, at.Equal(p.CreatedAt))
	require.NotNil(t, p.ReadAt)
	assert.True(t, at.Equal(*p.ReadAt))
}

func TestDecode_FromCachedJSONShapes(t *testing.T) {
	data := map[string]any{
		"views":     float64(3),
		"createdAt": "2024-03-01T10:00:00.5Z",
	}
	var p samplePost
	require.NoError(t, Decode(data, &p))
	assert.Equal(t, 3, p.Views)
	assert.Equal(t, 500*time.Millisecond, time.Duration(p.CreatedAt.Nanosecond()))
}

func TestDecode_UnresolvedTimestamp(t *testing.T) {
	var p samplePost
	require.NoError(t, Decode(map[string]any{"createdAt": ServerTimestamp}, &p))
	assert.True(t, p.CreatedAt.IsZero())
}

package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedType string

func TestNormalize(t *testing.T) {
	got := Normalize(map[string]any{
		"n":     3,
		"f":     float32(1.5),
		"tags":  []string{"a", "b"},
		"read":  map[string]bool{"u1": true},
		"kind":  namedType("reaction"),
		"inner": map[string]any{"count": int32(2)},
	})
	assert.Equal(t, map[string]any{
		"n":     int64(3),
		"f":     float64(1.5),
		"tags":  []any{"a", "b"},
		"read":  map[string]any{"u1": true},
		"kind":  "reaction",
		"inner": map[string]any{"count": int64(2)},
	}, got)
}

func TestApplyUpdates(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	data := NormalizeMap(map[string]any{
		"count":  1,
		"users":  []string{"u1", "u2"},
		"readBy": map[string]bool{"u1": false},
		"stale":  "x",
	})

	err := ApplyUpdates(data, []Update{
		{Path: "count", Value: Increment(-1)},
		{Path: "users", Value: ArrayRemove("u1")},
		{Path: "users", Value: ArrayUnion("u2", "u3")},
		{Path: "readBy.u1", Value: true},
		{Path: "readBy.u2", Value: false},
		{Path: "stale", Value: DeleteField},
		{Path: "updatedAt", Value: ServerTimestamp},
		{Path: "new.deep.counter", Value: Increment(2)},
	}, now)
	require.NoError(t, err)

	assert.Equal(t, int64(0), data["count"])
	assert.Equal(t, []any{"u2", "u3"}, data["users"])
	assert.Equal(t, map[string]any{"u1": true, "u2": false}, data["readBy"])
	assert.NotContains(t, data, "stale")
	assert.Equal(t, now, data["updatedAt"])
	v, ok := Lookup(data, "new.deep.counter")
	assert.True(t, ok)
	assert.Equal(t, int64(2), v)
}

func TestApplyUpdates_Errors(t *testing.T) {
	data := NormalizeMap(map[string]any{"title": "x"})
	assert.Error(t, ApplyUpdates(data, []Update{{Path: "title", Value: Increment(1)}}, time.Now()))
	assert.ErrorIs(t, ApplyUpdates(data, []Update{{Path: "title.x", Value: 1}}, time.Now()), ErrInvalidPath)
	assert.ErrorIs(t, ApplyUpdates(data, []Update{{Path: "a..b", Value: 1}}, time.Now()), ErrInvalidPath)
}

func TestCheckPreconditions(t *testing.T) {
	data := NormalizeMap(map[string]any{"likedBy": []string{"u1"}})

	tests := []struct {
		name string
		pre  []Precondition
		want bool
	}{
		{name: "contains present", pre: []Precondition{Contains("likedBy", "u1")}, want: true},
		{name: "contains absent", pre: []Precondition{Contains("likedBy", "u2")}, want: false},
		{name: "not contains absent", pre: []Precondition{NotContains("likedBy", "u2")}, want: true},
		{name: "not contains present", pre: []Precondition{NotContains("likedBy", "u1")}, want: false},
		{name: "missing field", pre: []Precondition{NotContains("reactions.x.users", "u1")}, want: true},
		{name: "none", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckPreconditions(data, tt.pre))
		})
	}
}

func TestMatch(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data := NormalizeMap(map[string]any{
		"userId":       "u1",
		"participants": []string{"u1", "u2"},
		"views":        10,
		"createdAt":    at,
		"read":         false,
	})

	tests := []struct {
		name    string
		filters []Filter
		want    bool
	}{
		{name: "equal", filters: []Filter{{"userId", OpEqual, "u1"}}, want: true},
		{name: "equal mismatch", filters: []Filter{{"userId", OpEqual, "u2"}}, want: false},
		{name: "not equal", filters: []Filter{{"userId", OpNotEqual, "u2"}}, want: true},
		{name: "array contains", filters: []Filter{{"participants", OpArrayContains, "u2"}}, want: true},
		{name: "array contains miss", filters: []Filter{{"participants", OpArrayContains, "u3"}}, want: false},
		{name: "numeric widths", filters: []Filter{{"views", OpEqual, 10.0}}, want: true},
		{name: "greater", filters: []Filter{{"views", OpGreater, 5}}, want: true},
		{name: "less equal", filters: []Filter{{"views", OpLessEqual, 9}}, want: false},
		{name: "time", filters: []Filter{{"createdAt", OpGreaterEqual, at}}, want: true},
		{name: "bool", filters: []Filter{{"read", OpEqual, false}}, want: true},
		{name: "missing field", filters: []Filter{{"nope", OpEqual, "x"}}, want: false},
		{name: "conjunction", filters: []Filter{{"userId", OpEqual, "u1"}, {"read", OpEqual, true}}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(data, tt.filters))
		})
	}
}

func TestSortDocuments(t *testing.T) {
	docs := []Document{
		{ID: "a", Data: map[string]any{"n": int64(2)}},
		{ID: "b", Data: map[string]any{}},
		{ID: "c", Data: map[string]any{"n": int64(1)}},
		{ID: "d", Data: map[string]any{"n": int64(2)}},
	}
	got := SortDocuments(docs, &Order{Path: "n", Direction: Desc})
	ids := make([]string, len(got))
	for i, d := range got {
		ids[i] = d.ID
	}
	assert.Equal(t, []string{"a", "d", "c"}, ids)
}

func TestQueryKey(t *testing.T) {
	base := NewQuery("notifications").Where("userId", OpEqual, "u1")
	a := base.OrderBy("createdAt", Desc).Limit(50)
	b := base.Where("read", OpEqual, false)

	assert.Equal(t, "notifications|userId==u1|order:createdAt:desc|limit:50", a.Key())
	assert.NotEqual(t, a.Key(), b.Key())
	assert.Len(t, base.Filters, 1, "builders must not alias the base query")
}

func TestValidate(t *testing.T) {
	assert.NoError(t, ValidateCollection("conversations/c1/messages"))
	assert.ErrorIs(t, ValidateCollection("conversations/c1"), ErrInvalidPath)
	assert.ErrorIs(t, ValidateCollection(""), ErrInvalidPath)
	assert.ErrorIs(t, ValidateID("a/b"), ErrInvalidPath)
	assert.Error(t, NewQuery("posts").Where("x", Op("like"), 1).Validate())
}

func TestSplitCollection(t *testing.T) {
	parent, group := SplitCollection("conversations/c1/messages")
	assert.Equal(t, "conversations/c1", parent)
	assert.Equal(t, "conversations.messages", group)

	parent, group = SplitCollection("posts")
	assert.Empty(t, parent)
	assert.Equal(t, "posts", group)
}

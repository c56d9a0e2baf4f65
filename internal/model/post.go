package model

import "time"

// Reaction tallies one emoji on a post. Count always equals len(Users).
type Reaction struct {
	Emoji string   `doc:"emoji" json:"emoji"`
	Count int      `doc:"count" json:"count"`
	Users []string `doc:"users" json:"users"`
}

// HasUser reports whether userID reacted with this emoji.
func (r Reaction) HasUser(userID string) bool {
	for _, u := range r.Users {
		if u == userID {
			return true
		}
	}
	return false
}

// Post is a feed entry.
type Post struct {
	ID           string              `doc:"-" json:"id"`
	AuthorID     string              `doc:"authorId" json:"authorId"`
	Title        string              `doc:"title" json:"title"`
	Content      string              `doc:"content" json:"content"`
	Category     string              `doc:"category" json:"category"`
	Tags         []string            `doc:"tags" json:"tags"`
	Reactions    map[string]Reaction `doc:"reactions" json:"reactions"`
	CommentCount int                 `doc:"commentCount" json:"commentCount"`
	BookmarkedBy []string            `doc:"bookmarkedBy" json:"bookmarkedBy"`
	Views        int                 `doc:"views" json:"views"`
	Score        int                 `doc:"score" json:"score"`
	CreatedAt    time.Time           `doc:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time           `doc:"updatedAt" json:"updatedAt"`
}

// ReactionAction says which branch a toggle took.
type ReactionAction string

const (
	ReactionAdded   ReactionAction = "added"
	ReactionRemoved ReactionAction = "removed"
)

// ReactionResult is the outcome of a reaction or like toggle. Changed is
// false when a concurrent toggle by the same user already moved the state.
type ReactionResult struct {
	Action   ReactionAction `json:"action"`
	Changed  bool           `json:"changed"`
	Reaction Reaction       `json:"reaction"`
}

// CreatePostRequest is the request to publish a post.
type CreatePostRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

// UpdatePostRequest edits a post. Nil fields are left unchanged.
type UpdatePostRequest struct {
	Title    *string  `json:"title,omitempty"`
	Content  *string  `json:"content,omitempty"`
	Category *string  `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// ToggleReactionRequest is the body of a reaction toggle.
type ToggleReactionRequest struct {
	Emoji string `json:"emoji"`
}

// BookmarkResult reports the bookmark state after a toggle.
type BookmarkResult struct {
	Bookmarked bool `json:"bookmarked"`
	Changed    bool `json:"changed"`
}

// ListPostsResponse is the response for listing posts.
type ListPostsResponse struct {
	Posts []Post `json:"posts"`
}

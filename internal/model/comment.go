package model

import "time"

// Comment belongs to a post. A nil ParentID marks a top-level comment.
type Comment struct {
	ID        string     `doc:"-" json:"id"`
	PostID    string     `doc:"postId" json:"postId"`
	AuthorID  string     `doc:"authorId" json:"authorId"`
	Content   string     `doc:"content" json:"content"`
	ParentID  *string    `doc:"parentId" json:"parentId"`
	Likes     int        `doc:"likes" json:"likes"`
	LikedBy   []string   `doc:"likedBy" json:"likedBy"`
	Edited    bool       `doc:"edited" json:"edited"`
	CreatedAt time.Time  `doc:"createdAt" json:"createdAt"`
	UpdatedAt *time.Time `doc:"updatedAt" json:"updatedAt,omitempty"`
}

// ThreadedComment is a top-level comment with its direct replies.
type ThreadedComment struct {
	Comment
	Replies []Comment `json:"replies"`
}

// AddCommentRequest is the request to comment on a post.
type AddCommentRequest struct {
	Content  string  `json:"content"`
	ParentID *string `json:"parentId,omitempty"`
}

// EditCommentRequest replaces a comment's content.
type EditCommentRequest struct {
	Content string `json:"content"`
}

// ListCommentsResponse is the threaded comment view of a post.
type ListCommentsResponse struct {
	Comments []ThreadedComment `json:"comments"`
}

package model

import "time"

// NotificationType is what triggered a notification.
type NotificationType string

const (
	NotificationReaction NotificationType = "reaction"
	NotificationComment  NotificationType = "comment"
	NotificationMention  NotificationType = "mention"
	NotificationFollow   NotificationType = "follow"
)

// Notification is addressed to UserID. Read flips only through an explicit
// mark-as-read by the recipient.
type Notification struct {
	ID         string           `doc:"-" json:"id"`
	UserID     string           `doc:"userId" json:"userId"`
	Type       NotificationType `doc:"type" json:"type"`
	FromUserID string           `doc:"fromUserId" json:"fromUserId"`
	PostID     string           `doc:"postId" json:"postId,omitempty"`
	CommentID  string           `doc:"commentId" json:"commentId,omitempty"`
	Read       bool             `doc:"read" json:"read"`
	Data       map[string]any   `doc:"data" json:"data,omitempty"`
	CreatedAt  time.Time        `doc:"createdAt" json:"createdAt"`
	ReadAt     *time.Time       `doc:"readAt" json:"readAt,omitempty"`
}

// ListNotificationsResponse is the response for listing notifications.
type ListNotificationsResponse struct {
	Notifications []Notification `json:"notifications"`
	Unread        int            `json:"unread"`
}

// Package model defines the records of the community platform and the
// collections they live in.
package model

import "path"

// Top-level collections.
const (
	ConversationsCollection = "conversations"
	PostsCollection         = "posts"
	CommentsCollection      = "comments"
	NotificationsCollection = "notifications"
	UsersCollection         = "users"
	DeviceTokensCollection  = "deviceTokens"
)

// MessagesCollection is the message log of one conversation.
func MessagesCollection(conversationID string) string {
	return path.Join(ConversationsCollection, conversationID, "messages")
}

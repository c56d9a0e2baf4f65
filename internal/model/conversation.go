package model

import (
	"sort"
	"strings"
	"time"
)

// Conversation is the summary document of a two-party thread.
type Conversation struct {
	ID                   string          `doc:"-" json:"id"`
	Participants         []string        `doc:"participants" json:"participants"`
	LastMessage          string          `doc:"lastMessage" json:"lastMessage"`
	LastSenderID         string          `doc:"lastSenderId" json:"lastSenderId"`
	LastMessageTimestamp time.Time       `doc:"lastMessageTimestamp" json:"lastMessageTimestamp"`
	ReadBy               map[string]bool `doc:"readBy" json:"readBy"`
	CreatedAt            time.Time       `doc:"createdAt" json:"createdAt"`
}

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// pairEscaper keeps "_" free for the separator. Ids without "_" or "~" are
// written unchanged, so every pair maps to a distinct id.
var pairEscaper = strings.NewReplacer("~", "~~", "_", "~_")

// ConversationID derives the canonical id of the unordered pair {a, b}.
func ConversationID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pairEscaper.Replace(pair[0]) + "_" + pairEscaper.Replace(pair[1])
}

// CreateConversationRequest opens, or finds, the thread with UserID.
type CreateConversationRequest struct {
	UserID string `json:"userId"`
}

// CreateConversationResponse carries the canonical conversation id.
type CreateConversationResponse struct {
	ID string `json:"id"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
}

package model

import (
	"time"
)

// EventType is the kind of domain event published after a state change.
type EventType string

const (
	EventMessageSent         EventType = "message.sent"
	EventConversationRead    EventType = "conversation.read"
	EventReactionToggled     EventType = "reaction.toggled"
	EventCommentCreated      EventType = "comment.created"
	EventNotificationCreated EventType = "notification.created"
)

// Event is a domain event. SubjectID is the id of the record it concerns.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	SubjectID string         `json:"subjectId"`
	ActorID   string         `json:"actorId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	Sequence  uint64         `json:"sequence,omitempty"`
}

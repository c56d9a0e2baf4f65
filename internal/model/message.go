package model

import (
	"time"
)

// Message is one entry of a conversation's append-only log.
type Message struct {
	ID        string    `doc:"-" json:"id"`
	SenderID  string    `doc:"senderId" json:"senderId"`
	Text      string    `doc:"text" json:"text"`
	Timestamp time.Time `doc:"timestamp" json:"timestamp"`
	Read      bool      `doc:"read" json:"read"`
}

// SendMessageRequest is the request to send a new message.
type SendMessageRequest struct {
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text"`
}

// SendMessageResponse is the response after sending a message.
type SendMessageResponse struct {
	ID string `json:"id"`
}

// ListMessagesResponse is the response for listing messages.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"hasMore"`
}

// HeartbeatEvent keeps idle live streams open through proxies.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// ErrorEvent represents an error pushed over a live stream.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/capitalize-ai/community-platform/internal/model"
)

func TestEventSubject(t *testing.T) {
	tests := []struct {
		eventType model.EventType
		id        string
		want      string
	}{
		{model.EventMessageSent, "u1_u2", "community.message.sent.u1_u2"},
		{model.EventNotificationCreated, "n1", "community.notification.created.n1"},
		{model.EventReactionToggled, "post.with*odd>chars", "community.reaction.toggled.post_with_odd_chars"},
		{model.EventConversationRead, "", "community.conversation.read._"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EventSubject(tt.eventType, tt.id))
	}
}

func TestEventFilter(t *testing.T) {
	assert.Equal(t, "community.notification.created.>", EventFilter(model.EventNotificationCreated))
}

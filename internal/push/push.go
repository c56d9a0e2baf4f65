// Package push delivers notifications to members' devices through Firebase
// Cloud Messaging. It consumes notification.created events from JetStream.
package push

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/community-platform/internal/model"
	natsclient "github.com/capitalize-ai/community-platform/internal/nats"
	"github.com/capitalize-ai/community-platform/pkg/logger"
	"github.com/capitalize-ai/community-platform/pkg/metrics"
)

// Durable is the JetStream consumer name of the dispatcher.
const Durable = "push-dispatcher"

// Sender sends one message to many devices. *messaging.Client implements it.
type Sender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// TokenStore lists and prunes device registrations.
type TokenStore interface {
	Tokens(ctx context.Context, userID string) ([]model.DeviceToken, error)
	Remove(ctx context.Context, ids ...string) error
}

// EventSource attaches event consumers.
type EventSource interface {
	Consume(ctx context.Context, durable string, eventType model.EventType, handle natsclient.EventHandler) (jetstream.ConsumeContext, error)
}

// Dispatcher turns notification events into push messages.
type Dispatcher struct {
	sender       Sender
	tokens       TokenStore
	logger       *logger.Logger
	unregistered func(error) bool
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(sender Sender, tokens TokenStore, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		sender:       sender,
		tokens:       tokens,
		logger:       log,
		unregistered: messaging.IsUnregistered,
	}
}

// Start consumes notification events until ctx is done.
func (d *Dispatcher) Start(ctx context.Context, src EventSource) (jetstream.ConsumeContext, error) {
	return src.Consume(ctx, Durable, model.EventNotificationCreated, d.Handle)
}

// Handle pushes one notification event to every device of its recipient.
// Devices FCM reports as unregistered are removed. Only a failure of the
// whole batch is returned, so the event is redelivered.
func (d *Dispatcher) Handle(ctx context.Context, event *model.Event) error {
	userID, _ := event.Data["userId"].(string)
	if userID == "" {
		d.logger.Warn("notification event without recipient", zap.String("event_id", event.ID))
		return nil
	}
	log := d.logger.With(zap.String("user_id", userID), zap.String("notification_id", event.SubjectID))

	devices, err := d.tokens.Tokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load device tokens: %w", err)
	}
	if len(devices) == 0 {
		return nil
	}

	tokens := make([]string, len(devices))
	for i, dev := range devices {
		tokens[i] = dev.Token
	}
	resp, err := d.sender.SendEachForMulticast(ctx, buildMessage(event, tokens))
	if err != nil {
		metrics.PushDeliveries.WithLabelValues("error").Add(float64(len(tokens)))
		log.Error("push batch failed", zap.Int("devices", len(tokens)), zap.Error(err))
		return fmt.Errorf("failed to send push: %w", err)
	}

	var stale []string
	for i, r := range resp.Responses {
		if i >= len(devices) {
			break
		}
		switch {
		case r.Success:
			metrics.PushDeliveries.WithLabelValues("sent").Inc()
		case d.unregistered(r.Error):
			metrics.PushDeliveries.WithLabelValues("unregistered").Inc()
			stale = append(stale, devices[i].ID)
		default:
			metrics.PushDeliveries.WithLabelValues("failed").Inc()
			log.Warn("push to device failed", zap.String("platform", devices[i].Platform), zap.Error(r.Error))
		}
	}

	if len(stale) > 0 {
		if err := d.tokens.Remove(ctx, stale...); err != nil {
			log.Warn("failed to remove unregistered devices", zap.Int("count", len(stale)), zap.Error(err))
		}
	}
	log.Debug("push delivered",
		zap.Int("success", resp.SuccessCount),
		zap.Int("failure", resp.FailureCount),
	)
	return nil
}

func buildMessage(event *model.Event, tokens []string) *messaging.MulticastMessage {
	kind, _ := event.Data["type"].(string)
	data := map[string]string{
		"notificationId": event.SubjectID,
		"type":           kind,
		"fromUserId":     event.ActorID,
	}
	if postID, ok := event.Data["postId"].(string); ok && postID != "" {
		data["postId"] = postID
	}
	title, body := describe(model.NotificationType(kind), event.ActorID)
	return &messaging.MulticastMessage{
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data:   data,
		Tokens: tokens,
	}
}

func describe(kind model.NotificationType, actor string) (string, string) {
	switch kind {
	case model.NotificationReaction:
		return "New reaction", actor + " reacted to your post"
	case model.NotificationComment:
		return "New comment", actor + " commented on your post"
	case model.NotificationMention:
		return "You were mentioned", actor + " mentioned you in a comment"
	case model.NotificationFollow:
		return "New follower", actor + " started following you"
	}
	return "New activity", "You have a new notification"
}

package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/community-platform/internal/model"
	"github.com/capitalize-ai/community-platform/pkg/logger"
)

// EventPublisher delivers domain events after a state change.
type EventPublisher interface {
	Publish(ctx context.Context, event *model.Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *model.Event) error { return nil }

// publish is best effort: a failed publish is logged and never fails the
// operation that produced the event.
func publish(ctx context.Context, pub EventPublisher, log *logger.Logger, ev *model.Event) {
	if pub == nil {
		return
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if err := pub.Publish(ctx, ev); err != nil {
		log.WithContext(ctx).Warn("failed to publish event",
			zap.String("type", string(ev.Type)),
			zap.String("subject_id", ev.SubjectID),
			zap.Error(err),
		)
	}
}

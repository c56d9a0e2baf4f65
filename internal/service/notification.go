package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/capitalize-ai/community-platform/internal/docstore"
	"github.com/capitalize-ai/community-platform/internal/model"
	"github.com/capitalize-ai/community-platform/pkg/logger"
	"github.com/capitalize-ai/community-platform/pkg/metrics"
)

// DefaultNotificationLimit is the size of the notification read surface.
const DefaultNotificationLimit = 50

// NotificationService emits notifications and serves the recipient's list.
type NotificationService struct {
	store  docstore.Store
	events EventPublisher
	logger *logger.Logger
	limit  int
}

// NewNotificationService creates a notification service. limit caps List;
// zero means DefaultNotificationLimit.
func NewNotificationService(store docstore.Store, events EventPublisher, log *logger.Logger, limit int) *NotificationService {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	return &NotificationService{store: store, events: events, logger: log, limit: limit}
}

// Emit stores a notification for n.UserID.
func (s *NotificationService) Emit(ctx context.Context, n model.Notification) (id string, err error) {
	ctx, span := startSpan(ctx, "NotificationService.Emit", attribute.String("type", string(n.Type)))
	defer endSpan(span, &err)

	if err := validateKey("recipient", n.UserID); err != nil {
		return "", err
	}
	if n.Type == "" {
		return "", invalid("notification type is required")
	}

	data := map[string]any{
		"userId":     n.UserID,
		"type":       string(n.Type),
		"fromUserId": n.FromUserID,
		"postId":     n.PostID,
		"commentId":  n.CommentID,
		"read":       false,
		"data":       n.Data,
		"createdAt":  docstore.ServerTimestamp,
	}
	if n.Data == nil {
		data["data"] = map[string]any{}
	}

	id, err = s.store.Add(ctx, model.NotificationsCollection, data)
	if err != nil {
		s.logger.WithContext(ctx).Error("failed to create notification",
			zap.String("recipient", n.UserID),
			zap.String("type", string(n.Type)),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to create notification: %w", err)
	}
	metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()

	publish(ctx, s.events, s.logger, &model.Event{
		Type:      model.EventNotificationCreated,
		SubjectID: id,
		ActorID:   n.FromUserID,
		Data: map[string]any{
			"userId": n.UserID,
			"type":   string(n.Type),
			"postId": n.PostID,
		},
	})
	return id, nil
}

// MarkAsRead flips a notification to read. Only its recipient may do so.
func (s *NotificationService) MarkAsRead(ctx context.Context, sess *Session, id string) (err error) {
	ctx, span := startSpan(ctx, "NotificationService.MarkAsRead")
	defer endSpan(span, &err)

	userID, err := sess.user()
	if err != nil {
		return err
	}
	doc, err := s.store.Get(ctx, model.NotificationsCollection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return notFound("notification")
	}
	if err != nil {
		return fmt.Errorf("failed to load notification: %w", err)
	}
	n, err := decodeNotification(*doc)
	if err != nil {
		return err
	}
	if n.UserID != userID {
		return fmt.Errorf("%w: notification belongs to another user", ErrForbidden)
	}
	if n.Read {
		return nil
	}

	err = s.store.Update(ctx, model.NotificationsCollection, id, []docstore.Update{
		{Path: "read", Value: true},
		{Path: "readAt", Value: docstore.ServerTimestamp},
	})
	if err != nil {
		s.logger.WithContext(ctx).Error("failed to mark notification read", zap.String("notification_id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

func (s *NotificationService) query(userID string) docstore.Query {
	return docstore.NewQuery(model.NotificationsCollection).
		Where("userId", docstore.OpEqual, userID).
		OrderBy("createdAt", docstore.Desc).
		Limit(s.limit)
}

// List returns the most recent notifications of the session user, newest first.
func (s *NotificationService) List(ctx context.Context, sess *Session) (_ []model.Notification, err error) {
	ctx, span := startSpan(ctx, "NotificationService.List")
	defer endSpan(span, &err)

	userID, err := sess.user()
	if err != nil {
		return nil, err
	}
	docs, err := s.store.Query(ctx, s.query(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return decodeAll(docs, decodeNotification)
}

// Subscribe is the live form of List.
func (s *NotificationService) Subscribe(ctx context.Context, sess *Session, fn func([]model.Notification, error)) (docstore.Subscription, error) {
	userID, err := sess.user()
	if err != nil {
		return nil, err
	}
	return s.store.SubscribeQuery(ctx, s.query(userID), func(docs []docstore.Document, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(decodeAll(docs, decodeNotification))
	})
}

// notifyOther emits n unless the recipient is the actor. Self-notifications
// are suppressed.
func (s *NotificationService) notifyOther(ctx context.Context, n model.Notification) error {
	if n.UserID == "" || n.UserID == n.FromUserID {
		return nil
	}
	_, err := s.Emit(ctx, n)
	return err
}

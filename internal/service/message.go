package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/capitalize-ai/community-platform/internal/docstore"
	"github.com/capitalize-ai/community-platform/internal/model"
	"github.com/capitalize-ai/community-platform/pkg/logger"
	"github.com/capitalize-ai/community-platform/pkg/metrics"
)

// DefaultMessagePageLimit is how many of the latest messages List returns.
const DefaultMessagePageLimit = 200

// MessageService appends to conversation logs and tracks read state.
type MessageService struct {
	store         docstore.Store
	conversations *ConversationService
	events        EventPublisher
	moderator     Moderator
	logger        *logger.Logger
	pageLimit     int
}

// MessageOption configures a MessageService.
type MessageOption func(*MessageService)

// WithMessageModerator screens message text before it is stored.
func WithMessageModerator(m Moderator) MessageOption {
	return func(s *MessageService) { s.moderator = m }
}

// WithMessagePageLimit sets how many of the latest messages List returns.
func WithMessagePageLimit(n int) MessageOption {
	return func(s *MessageService) {
		if n > 0 {
			s.pageLimit = n
		}
	}
}

// NewMessageService creates a new message service.
func NewMessageService(
	store docstore.Store,
	conversations *ConversationService,
	events EventPublisher,
	log *logger.Logger,
	opts ...MessageOption,
) *MessageService {
	s := &MessageService{
		store:         store,
		conversations: conversations,
		events:        events,
		logger:        log,
		pageLimit:     DefaultMessagePageLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send appends a message from the session user to receiverID and updates
// the conversation summary. The append and the summary update are two
// separate writes: if the second fails the message stays in the log with a
// stale summary, and the error is returned together with the message id.
func (s *MessageService) Send(ctx context.Context, sess *Session, convID, receiverID, text string) (id string, err error) {
	ctx, span := startSpan(ctx, "MessageService.Send", attribute.String("conversation_id", convID))
	defer endSpan(span, &err)

	senderID, err := sess.user()
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", invalid("message text is empty")
	}
	if err := validateKey("receiver id", receiverID); err != nil {
		return "", err
	}
	if receiverID == senderID {
		return "", invalid("receiver must be the other participant")
	}

	conv, err := s.conversations.load(ctx, convID)
	if err != nil {
		return "", err
	}
	if !conv.HasParticipant(senderID) || !conv.HasParticipant(receiverID) {
		return "", fmt.Errorf("%w: sender and receiver must both take part in the conversation", ErrForbidden)
	}
	if err := screen(ctx, s.moderator, s.logger, text); err != nil {
		return "", err
	}

	log := s.logger.WithContext(ctx).With(zap.String("conversation_id", convID))

	id, err = s.store.Add(ctx, model.MessagesCollection(convID), map[string]any{
		"senderId":  senderID,
		"text":      text,
		"timestamp": docstore.ServerTimestamp,
		"read":      false,
	})
	if err != nil {
		log.Error("failed to append message", zap.Error(err))
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	metrics.MessagesSent.Inc()

	err = s.store.Update(ctx, model.ConversationsCollection, convID, []docstore.Update{
		{Path: "lastMessage", Value: text},
		{Path: "lastMessageTimestamp", Value: docstore.ServerTimestamp},
		{Path: "lastSenderId", Value: senderID},
		{Path: "readBy." + senderID, Value: true},
		{Path: "readBy." + receiverID, Value: false},
	})
	if err != nil {
		log.Error("message stored but summary update failed", zap.String("message_id", id), zap.Error(err))
		return id, fmt.Errorf("failed to update conversation summary: %w", err)
	}

	publish(ctx, s.events, s.logger, &model.Event{
		Type:      model.EventMessageSent,
		SubjectID: convID,
		ActorID:   senderID,
		Data: map[string]any{
			"messageId":  id,
			"receiverId": receiverID,
		},
	})
	return id, nil
}

// messageQuery selects the latest limit messages of a conversation, newest
// first. Callers reverse the result to get timestamp order.
func (s *MessageService) messageQuery(convID string, limit int) docstore.Query {
	return docstore.NewQuery(model.MessagesCollection(convID)).
		OrderBy("timestamp", docstore.Desc).
		Limit(limit)
}

func (s *MessageService) decodePage(docs []docstore.Document) ([]model.Message, error) {
	msgs, err := decodeAll(docs, decodeMessage)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// List returns the latest messages of a conversation in timestamp order.
// hasMore reports whether older messages exist beyond the page.
func (s *MessageService) List(ctx context.Context, sess *Session, convID string) (_ []model.Message, hasMore bool, err error) {
	ctx, span := startSpan(ctx, "MessageService.List", attribute.String("conversation_id", convID))
	defer endSpan(span, &err)

	if _, err := s.conversations.Get(ctx, sess, convID); err != nil {
		return nil, false, err
	}
	// one extra message tells whether an older page exists
	docs, err := s.store.Query(ctx, s.messageQuery(convID, s.pageLimit+1))
	if err != nil {
		return nil, false, fmt.Errorf("failed to list messages: %w", err)
	}
	if len(docs) > s.pageLimit {
		docs, hasMore = docs[:s.pageLimit], true
	}
	msgs, err := s.decodePage(docs)
	if err != nil {
		return nil, false, err
	}
	return msgs, hasMore, nil
}

// Subscribe is the live form of List.
func (s *MessageService) Subscribe(ctx context.Context, sess *Session, convID string, fn func([]model.Message, error)) (docstore.Subscription, error) {
	if _, err := s.conversations.Get(ctx, sess, convID); err != nil {
		return nil, err
	}
	return s.store.SubscribeQuery(ctx, s.messageQuery(convID, s.pageLimit), func(docs []docstore.Document, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(s.decodePage(docs))
	})
}

// MarkConversationAsRead sets the session user's read flag on the summary
// and flips the read flag of every unread message the other participant
// sent. The conversation.read event is only published when something was
// unread.
func (s *MessageService) MarkConversationAsRead(ctx context.Context, sess *Session, convID string) (err error) {
	ctx, span := startSpan(ctx, "MessageService.MarkConversationAsRead", attribute.String("conversation_id", convID))
	defer endSpan(span, &err)

	conv, err := s.conversations.Get(ctx, sess, convID)
	if err != nil {
		return err
	}
	userID := sess.UserID
	log := s.logger.WithContext(ctx).With(zap.String("conversation_id", convID))

	// written even when conv shows it set: a Send may have cleared it since
	changed := !conv.ReadBy[userID]
	err = s.store.Update(ctx, model.ConversationsCollection, convID, []docstore.Update{
		{Path: "readBy." + userID, Value: true},
	})
	if err != nil {
		log.Error("failed to mark conversation read", zap.Error(err))
		return fmt.Errorf("failed to mark conversation read: %w", err)
	}

	unread, err := s.store.Query(ctx, docstore.NewQuery(model.MessagesCollection(convID)).
		Where("senderId", docstore.OpEqual, conv.Other(userID)).
		Where("read", docstore.OpEqual, false))
	if err != nil {
		return fmt.Errorf("failed to list unread messages: %w", err)
	}
	for _, doc := range unread {
		err := s.store.Update(ctx, model.MessagesCollection(convID), doc.ID, []docstore.Update{
			{Path: "read", Value: true},
		})
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			log.Error("failed to mark message read", zap.String("message_id", doc.ID), zap.Error(err))
			return fmt.Errorf("failed to mark message read: %w", err)
		}
		changed = true
	}

	if changed {
		publish(ctx, s.events, s.logger, &model.Event{
			Type:      model.EventConversationRead,
			SubjectID: convID,
			ActorID:   userID,
			Data:      map[string]any{"messages": len(unread)},
		})
	}
	return nil
}

// SubscribeAndMarkRead opens the live message list of a conversation and
// keeps it read for the session user while open: every message snapshot,
// and every summary change that clears the user's read flag, marks the
// conversation read. The caller releases the returned subscription.
func (s *MessageService) SubscribeAndMarkRead(ctx context.Context, sess *Session, convID string, fn func([]model.Message, error)) (docstore.Subscription, error) {
	markRead := func() {
		if ctx.Err() != nil {
			return
		}
		if err := s.MarkConversationAsRead(ctx, sess, convID); err != nil && ctx.Err() == nil {
			s.logger.WithContext(ctx).Warn("failed to mark conversation read", zap.String("conversation_id", convID), zap.Error(err))
		}
	}

	msgs, err := s.Subscribe(ctx, sess, convID, func(msgs []model.Message, err error) {
		fn(msgs, err)
		if err == nil {
			markRead()
		}
	})
	if err != nil {
		return nil, err
	}
	summary, err := s.store.SubscribeDoc(ctx, model.ConversationsCollection, convID, func(doc *docstore.Document, err error) {
		if err != nil || doc == nil {
			return
		}
		if readBy, _ := doc.Data["readBy"].(map[string]any); readBy[sess.UserID] != true {
			markRead()
		}
	})
	if err != nil {
		msgs.Unsubscribe()
		return nil, err
	}
	return subscriptions{msgs, summary}, nil
}

// subscriptions releases several listeners as one.
type subscriptions []docstore.Subscription

func (ss subscriptions) Unsubscribe() {
	for _, sub := range ss {
		sub.Unsubscribe()
	}
}

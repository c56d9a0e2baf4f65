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

// ConversationService resolves user pairs to their canonical conversation.
type ConversationService struct {
	store  docstore.Store
	logger *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(store docstore.Store, log *logger.Logger) *ConversationService {
	return &ConversationService{store: store, logger: log}
}

// GetOrCreate returns the id of the conversation between the session user
// and otherUserID, creating it on first contact. The id is derived from the
// sorted pair and created conditionally, so concurrent first calls from
// either side resolve to the same conversation.
func (s *ConversationService) GetOrCreate(ctx context.Context, sess *Session, otherUserID string) (id string, err error) {
	ctx, span := startSpan(ctx, "ConversationService.GetOrCreate")
	defer endSpan(span, &err)

	userID, err := sess.user()
	if err != nil {
		return "", err
	}
	if err := validateKey("user id", otherUserID); err != nil {
		return "", err
	}
	if userID == otherUserID {
		return "", invalid("cannot open a conversation with yourself")
	}

	id = model.ConversationID(userID, otherUserID)
	span.SetAttributes(attribute.String("conversation_id", id))
	log := s.logger.WithContext(ctx).With(zap.String("conversation_id", id))

	doc, err := s.store.Get(ctx, model.ConversationsCollection, id)
	switch {
	case err == nil:
		return id, checkPair(doc, userID, otherUserID)
	case !errors.Is(err, docstore.ErrNotFound):
		log.Error("failed to look up conversation", zap.Error(err))
		return "", fmt.Errorf("failed to look up conversation: %w", err)
	}

	err = s.store.Create(ctx, model.ConversationsCollection, id, map[string]any{
		"participants":         []any{userID, otherUserID},
		"readBy":               map[string]any{userID: true, otherUserID: false},
		"lastMessage":          "",
		"lastSenderId":         "",
		"lastMessageTimestamp": docstore.ServerTimestamp,
		"createdAt":            docstore.ServerTimestamp,
	})
	switch {
	case err == nil:
		metrics.ConversationsCreated.Inc()
		log.Info("conversation created", zap.String("user_id", userID), zap.String("other_user_id", otherUserID))
		return id, nil
	case errors.Is(err, docstore.ErrAlreadyExists):
		// lost the first-contact race; the winner's document is ours too
		doc, err := s.store.Get(ctx, model.ConversationsCollection, id)
		if err != nil {
			return "", fmt.Errorf("failed to look up conversation: %w", err)
		}
		return id, checkPair(doc, userID, otherUserID)
	default:
		log.Error("failed to create conversation", zap.Error(err))
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
}

// checkPair rejects a stored document under id whose participants are not
// the pair; such a document was not written by GetOrCreate.
func checkPair(doc *docstore.Document, a, b string) error {
	conv, err := decodeConversation(*doc)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(a) || !conv.HasParticipant(b) {
		return fmt.Errorf("%w: conversation id %s belongs to another pair", ErrConflict, doc.ID)
	}
	return nil
}

// Get returns a conversation the session user takes part in. Other users'
// conversations are reported as not found.
func (s *ConversationService) Get(ctx context.Context, sess *Session, convID string) (_ *model.Conversation, err error) {
	ctx, span := startSpan(ctx, "ConversationService.Get", attribute.String("conversation_id", convID))
	defer endSpan(span, &err)

	userID, err := sess.user()
	if err != nil {
		return nil, err
	}
	conv, err := s.load(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, notFound("conversation")
	}
	return conv, nil
}

func (s *ConversationService) load(ctx context.Context, convID string) (*model.Conversation, error) {
	if convID == "" {
		return nil, invalid("conversation id is required")
	}
	doc, err := s.store.Get(ctx, model.ConversationsCollection, convID)
	if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrInvalidPath) {
		return nil, notFound("conversation")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	conv, err := decodeConversation(*doc)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *ConversationService) userQuery(userID string) docstore.Query {
	return docstore.NewQuery(model.ConversationsCollection).
		Where("participants", docstore.OpArrayContains, userID).
		OrderBy("lastMessageTimestamp", docstore.Desc)
}

// ListForUser returns the session user's conversations, most recently
// active first.
func (s *ConversationService) ListForUser(ctx context.Context, sess *Session) (_ []model.Conversation, err error) {
	ctx, span := startSpan(ctx, "ConversationService.ListForUser")
	defer endSpan(span, &err)

	userID, err := sess.user()
	if err != nil {
		return nil, err
	}
	docs, err := s.store.Query(ctx, s.userQuery(userID))
	if err != nil {
		s.logger.WithContext(ctx).Error("failed to list conversations", zap.Error(err))
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return decodeAll(docs, decodeConversation)
}

// SubscribeForUser is the live form of ListForUser.
func (s *ConversationService) SubscribeForUser(ctx context.Context, sess *Session, fn func([]model.Conversation, error)) (docstore.Subscription, error) {
	userID, err := sess.user()
	if err != nil {
		return nil, err
	}
	return s.store.SubscribeQuery(ctx, s.userQuery(userID), func(docs []docstore.Document, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(decodeAll(docs, decodeConversation))
	})
}

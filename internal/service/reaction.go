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

// ReactionService toggles emoji reactions on posts.
type ReactionService struct {
	store         docstore.Store
	notifications *NotificationService
	events        EventPublisher
	logger        *logger.Logger
}

// NewReactionService creates a new reaction service.
func NewReactionService(store docstore.Store, notifications *NotificationService, events EventPublisher, log *logger.Logger) *ReactionService {
	return &ReactionService{store: store, notifications: notifications, events: events, logger: log}
}

// Toggle adds the session user's emoji reaction to a post, or removes it
// when already present. Only an add notifies the post author, and never
// when the author reacts to their own post.
//
// If the notification fails after the reaction was stored, the result is
// returned together with the error.
func (s *ReactionService) Toggle(ctx context.Context, sess *Session, postID, emoji string) (res model.ReactionResult, err error) {
	ctx, span := startSpan(ctx, "ReactionService.Toggle", attribute.String("post_id", postID))
	defer endSpan(span, &err)

	userID, err := sess.user()
	if err != nil {
		return res, err
	}
	emoji = strings.TrimSpace(emoji)
	if err := validateKey("emoji", emoji); err != nil {
		return res, err
	}

	post, err := loadPost(ctx, s.store, postID)
	if err != nil {
		return res, err
	}

	base := "reactions." + emoji
	toggle := membershipToggle{
		collection: model.PostsCollection,
		id:         postID,
		setPath:    base + ".users",
		countPath:  base + ".count",
		member:     userID,
		present:    post.Reactions[emoji].HasUser(userID),
		onAdd:      []docstore.Update{{Path: base + ".emoji", Value: emoji}},
	}
	added, changed, err := toggle.apply(ctx, s.store)
	if errors.Is(err, docstore.ErrNotFound) {
		return res, notFound("post")
	}
	if err != nil {
		s.logger.WithContext(ctx).Error("failed to toggle reaction", zap.String("post_id", postID), zap.Error(err))
		return res, fmt.Errorf("failed to toggle reaction: %w", err)
	}

	res.Action = model.ReactionRemoved
	if added {
		res.Action = model.ReactionAdded
	}
	res.Changed = changed

	current, err := loadPost(ctx, s.store, postID)
	if err != nil {
		return res, err
	}
	res.Reaction = current.Reactions[emoji]
	if res.Reaction.Emoji == "" {
		res.Reaction.Emoji = emoji
	}
	if res.Reaction.Users == nil {
		res.Reaction.Users = []string{}
	}

	if !changed {
		return res, nil
	}
	metrics.ReactionsToggled.WithLabelValues(string(res.Action)).Inc()
	publish(ctx, s.events, s.logger, &model.Event{
		Type:      model.EventReactionToggled,
		SubjectID: postID,
		ActorID:   userID,
		Data:      map[string]any{"emoji": emoji, "action": string(res.Action)},
	})

	if added {
		err := s.notifications.notifyOther(ctx, model.Notification{
			UserID:     post.AuthorID,
			Type:       model.NotificationReaction,
			FromUserID: userID,
			PostID:     postID,
			Data:       map[string]any{"emoji": emoji, "postTitle": post.Title},
		})
		if err != nil {
			return res, fmt.Errorf("reaction saved but notification failed: %w", err)
		}
	}
	return res, nil
}

func loadPost(ctx context.Context, store docstore.Store, postID string) (*model.Post, error) {
	if postID == "" {
		return nil, invalid("post id is required")
	}
	doc, err := store.Get(ctx, model.PostsCollection, postID)
	if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrInvalidPath) {
		return nil, notFound("post")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}
	post, err := decodePost(*doc)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

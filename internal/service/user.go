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
)

// UserService manages member profiles and the follow graph.
type UserService struct {
	store         docstore.Store
	notifications *NotificationService
	logger        *logger.Logger
}

// NewUserService creates a user service.
func NewUserService(store docstore.Store, notifications *NotificationService, log *logger.Logger) *UserService {
	return &UserService{store: store, notifications: notifications, logger: log}
}

// EnsureProfile creates the session user's profile when it does not exist
// and sets the display name when one is given.
func (s *UserService) EnsureProfile(ctx context.Context, sess *Session, displayName string) (_ *model.User, err error) {
	ctx, span := startSpan(ctx, "UserService.EnsureProfile")
	defer endSpan(span, &err)

	userID, err := sess.user()
	if err != nil {
		return nil, err
	}
	displayName = strings.TrimSpace(displayName)
	if err := s.ensure(ctx, userID, displayName); err != nil {
		return nil, err
	}
	if displayName != "" {
		err := s.store.Update(ctx, model.UsersCollection, userID, []docstore.Update{
			{Path: "displayName", Value: displayName},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to update profile: %w", err)
		}
	}
	return s.Get(ctx, userID)
}

func (s *UserService) ensure(ctx context.Context, userID, displayName string) error {
	err := s.store.Create(ctx, model.UsersCollection, userID, map[string]any{
		"displayName": displayName,
		"followers":   []any{},
		"following":   []any{},
		"createdAt":   docstore.ServerTimestamp,
	})
	if err != nil && !errors.Is(err, docstore.ErrAlreadyExists) {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// Get returns a profile.
func (s *UserService) Get(ctx context.Context, userID string) (*model.User, error) {
	if err := validateKey("user id", userID); err != nil {
		return nil, err
	}
	doc, err := s.store.Get(ctx, model.UsersCollection, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, notFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	u, err := decodeUser(*doc)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ToggleFollow makes the session user follow targetID, or unfollow when
// already following. A new follow notifies the target.
func (s *UserService) ToggleFollow(ctx context.Context, sess *Session, targetID string) (res model.FollowResult, err error) {
	ctx, span := startSpan(ctx, "UserService.ToggleFollow", attribute.String("target_id", targetID))
	defer endSpan(span, &err)

	userID, err := sess.user()
	if err != nil {
		return res, err
	}
	if userID == targetID {
		return res, invalid("cannot follow yourself")
	}
	target, err := s.Get(ctx, targetID)
	if err != nil {
		return res, err
	}
	present := false
	for _, f := range target.Followers {
		if f == userID {
			present = true
			break
		}
	}

	added, changed, err := membershipToggle{
		collection: model.UsersCollection,
		id:         targetID,
		setPath:    "followers",
		member:     userID,
		present:    present,
	}.apply(ctx, s.store)
	if errors.Is(err, docstore.ErrNotFound) {
		return res, notFound("user")
	}
	if err != nil {
		return res, fmt.Errorf("failed to toggle follow: %w", err)
	}
	res = model.FollowResult{Following: added, Changed: changed}
	if !changed {
		return res, nil
	}

	// mirror the edge on the actor's profile
	if err := s.ensure(ctx, userID, ""); err != nil {
		return res, err
	}
	var edge any = docstore.ArrayRemove(targetID)
	if added {
		edge = docstore.ArrayUnion(targetID)
	}
	if err := s.store.Update(ctx, model.UsersCollection, userID, []docstore.Update{{Path: "following", Value: edge}}); err != nil {
		s.logger.WithContext(ctx).Error("follower stored but following update failed", zap.String("target_id", targetID), zap.Error(err))
		return res, fmt.Errorf("failed to update following: %w", err)
	}

	if added {
		err := s.notifications.notifyOther(ctx, model.Notification{
			UserID:     targetID,
			Type:       model.NotificationFollow,
			FromUserID: userID,
		})
		if err != nil {
			return res, fmt.Errorf("follow saved but notification failed: %w", err)
		}
	}
	return res, nil
}

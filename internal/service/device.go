package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/capitalize-ai/community-platform/internal/docstore"
	"github.com/capitalize-ai/community-platform/internal/model"
	"github.com/capitalize-ai/community-platform/pkg/logger"
)

// DeviceService keeps the push tokens of each user's devices.
type DeviceService struct {
	store  docstore.Store
	logger *logger.Logger
}

// NewDeviceService creates a device service.
func NewDeviceService(store docstore.Store, log *logger.Logger) *DeviceService {
	return &DeviceService{store: store, logger: log}
}

// tokenID derives a stable document id from a push token, which may hold
// characters document ids cannot.
func tokenID(token string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("fcm:"+token)).String()
}

// Register stores token for the session user. Registering a token again
// moves it to the current user.
func (s *DeviceService) Register(ctx context.Context, sess *Session, token, platform string) error {
	userID, err := sess.user()
	if err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return invalid("device token is required")
	}
	err = s.store.Set(ctx, model.DeviceTokensCollection, tokenID(token), map[string]any{
		"userId":    userID,
		"token":     token,
		"platform":  strings.ToLower(strings.TrimSpace(platform)),
		"createdAt": docstore.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

// Tokens returns the registered devices of userID.
func (s *DeviceService) Tokens(ctx context.Context, userID string) ([]model.DeviceToken, error) {
	docs, err := s.store.Query(ctx, docstore.NewQuery(model.DeviceTokensCollection).
		Where("userId", docstore.OpEqual, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return decodeAll(docs, decodeDeviceToken)
}

// Remove deletes device registrations by id.
func (s *DeviceService) Remove(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if err := s.store.Delete(ctx, model.DeviceTokensCollection, id); err != nil {
			return fmt.Errorf("failed to remove device %s: %w", id, err)
		}
	}
	return nil
}

package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/community-platform/pkg/logger"
)

// Verdict is the outcome of screening a piece of user content.
type Verdict struct {
	Allowed bool
	Reason  string
}

// Moderator screens user content before it is written.
type Moderator interface {
	Moderate(ctx context.Context, text string) (Verdict, error)
}

// screen runs m over text. A nil Moderator allows everything; a moderator
// failure blocks the write.
func screen(ctx context.Context, m Moderator, log *logger.Logger, text string) error {
	if m == nil {
		return nil
	}
	v, err := m.Moderate(ctx, text)
	if err != nil {
		log.WithContext(ctx).Error("moderation failed", zap.Error(err))
		return fmt.Errorf("failed to screen content: %w", err)
	}
	if !v.Allowed {
		if v.Reason == "" {
			return ErrRejectedContent
		}
		return fmt.Errorf("%w: %s", ErrRejectedContent, v.Reason)
	}
	return nil
}

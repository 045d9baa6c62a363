package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/algogenius-api/internal/dto"
	"github.com/noah-isme/algogenius-api/pkg/asynctask"
)

// Notifier delivers a notification to a user.
type Notifier interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
}

// DashboardInvalidator drops cached dashboards after writes that change them.
type DashboardInvalidator interface {
	InvalidateStudent(ctx context.Context, studentID string)
	InvalidateEducator(ctx context.Context, educatorID string)
}

// notifyAsync publishes in the background and logs the outcome.
func notifyAsync(ctx context.Context, notifier Notifier, logger zerolog.Logger, payload dto.NotificationCreateRequest) *asynctask.Task {
	if notifier == nil {
		return asynctask.Completed("notify", nil)
	}
	return asynctask.Go(ctx, "notify", func(ctx context.Context) error {
		_, err := notifier.Publish(ctx, payload)
		return err
	}, func(name string, err error, elapsed time.Duration) {
		if err != nil {
			logger.Warn().Err(err).Str("user_id", payload.UserID).Str("type", payload.Type).Msg("notification not delivered")
			return
		}
		logger.Debug().Str("user_id", payload.UserID).Str("type", payload.Type).Dur("elapsed", elapsed).Msg("notification delivered")
	})
}

package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/soundcrate/backend/internal/notifications"
	"github.com/soundcrate/backend/pkg/logger"
)

const retentionUserBatch = 500

type retentionRepo interface {
	ListUsersOverCap(ctx context.Context, cap, limit int) ([]uuid.UUID, error)
	PruneToCap(ctx context.Context, userID uuid.UUID, cap int) (int64, error)
}

// NotificationRetentionJobParams configure the notification sweeper.
type NotificationRetentionJobParams struct {
	Logger       *logger.Logger
	Repository   retentionRepo
	RetentionCap int
}

// NewNotificationRetentionJob builds the cron job that re-applies the
// per-user retention cap. Normally pruning happens on write; this sweep is
// the safety net for rows created while pruning was skipped on contention.
func NewNotificationRetentionJob(params NotificationRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	cap := params.RetentionCap
	if cap <= 0 {
		cap = notifications.DefaultRetentionCap
	}
	return &notificationRetentionJob{
		logg: params.Logger,
		repo: params.Repository,
		cap:  cap,
	}, nil
}

type notificationRetentionJob struct {
	logg *logger.Logger
	repo retentionRepo
	cap  int
}

func (j *notificationRetentionJob) Name() string { return "notification-retention" }

func (j *notificationRetentionJob) Run(ctx context.Context) error {
	users, err := j.repo.ListUsersOverCap(ctx, j.cap, retentionUserBatch)
	if err != nil {
		return fmt.Errorf("list users over cap: %w", err)
	}

	var errs error
	var pruned int64
	for _, userID := range users {
		rows, err := j.repo.PruneToCap(ctx, userID, j.cap)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("prune notifications for %s: %w", userID, err))
			continue
		}
		pruned += rows
	}
	if errs != nil {
		return errs
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"users_swept": len(users),
		"rows_pruned": pruned,
		"retention":   j.cap,
	})
	j.logg.Info(logCtx, "notification retention sweep complete")
	return nil
}

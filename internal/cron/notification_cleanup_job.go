package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ovrpay/ovrpay-backend/internal/notifications"
	"github.com/ovrpay/ovrpay-backend/pkg/logger"
)

const defaultNotificationRetention = 90 * 24 * time.Hour

// NotificationCleanupJob purges read notifications past the retention
// window so the inbox table does not grow without bound.
type NotificationCleanupJob struct {
	repo      notifications.Repository
	logg      *logger.Logger
	retention time.Duration
	now       func() time.Time
}

// NewNotificationCleanupJob builds the cleanup job. A non-positive
// retention falls back to 90 days.
func NewNotificationCleanupJob(repo notifications.Repository, logg *logger.Logger, retention time.Duration) (*NotificationCleanupJob, error) {
	if repo == nil {
		return nil, errors.New("notifications repository required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if retention <= 0 {
		retention = defaultNotificationRetention
	}
	return &NotificationCleanupJob{
		repo:      repo,
		logg:      logg,
		retention: retention,
		now:       time.Now,
	}, nil
}

// Name implements Job.
func (j *NotificationCleanupJob) Name() string { return "notification_cleanup" }

// Run implements Job.
func (j *NotificationCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.repo.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete read notifications: %w", err)
	}
	ctx = j.logg.WithField(ctx, "deleted", deleted)
	j.logg.Info(ctx, "notification cleanup complete")
	return nil
}

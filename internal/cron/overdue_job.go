package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ovrpay/ovrpay-backend/internal/violations"
	"github.com/ovrpay/ovrpay-backend/pkg/db/models"
	"github.com/ovrpay/ovrpay-backend/pkg/enums"
	"github.com/ovrpay/ovrpay-backend/pkg/logger"
)

const overdueBatchSize = 500

// overdueNotifier fans out deadline-passed notices.
type overdueNotifier interface {
	ViolationOverdue(ctx context.Context, record *models.ViolationRecord)
}

// OverdueSweepJob materializes the overdue status on pending violations
// whose payment deadline has passed. Reads already derive overdue on the
// fly; the sweep makes the stored status match and triggers notices.
type OverdueSweepJob struct {
	repo     violations.Repository
	notifier overdueNotifier
	logg     *logger.Logger
	now      func() time.Time
}

// NewOverdueSweepJob builds the sweep job.
func NewOverdueSweepJob(repo violations.Repository, notifier overdueNotifier, logg *logger.Logger) (*OverdueSweepJob, error) {
	if repo == nil {
		return nil, errors.New("violations repository required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &OverdueSweepJob{
		repo:     repo,
		notifier: notifier,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// Name implements Job.
func (j *OverdueSweepJob) Name() string { return "overdue_sweep" }

// Run implements Job.
func (j *OverdueSweepJob) Run(ctx context.Context) error {
	now := j.now().UTC()

	due, err := j.repo.ListPendingPastDeadline(ctx, now, overdueBatchSize)
	if err != nil {
		return fmt.Errorf("list due violations: %w", err)
	}

	flipped, err := j.repo.MarkOverdue(ctx, now)
	if err != nil {
		return fmt.Errorf("mark overdue: %w", err)
	}

	ctx = j.logg.WithField(ctx, "flipped", flipped)
	j.logg.Info(ctx, "overdue sweep flipped violations")

	if j.notifier == nil {
		return nil
	}
	for i := range due {
		record := due[i]
		record.Status = enums.ViolationStatusOverdue
		j.notifier.ViolationOverdue(ctx, &record)
	}
	return nil
}

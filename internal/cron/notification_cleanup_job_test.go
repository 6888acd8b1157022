package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ovrpay/ovrpay-backend/internal/notifications"
	"github.com/ovrpay/ovrpay-backend/pkg/db/models"
	"github.com/ovrpay/ovrpay-backend/pkg/pagination"
)

type fakeNotificationRepo struct {
	rows []models.Notification
}

func (f *fakeNotificationRepo) WithTx(tx *gorm.DB) notifications.Repository { return f }

func (f *fakeNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	n.ID = uuid.New()
	f.rows = append(f.rows, *n)
	return nil
}

func (f *fakeNotificationRepo) List(context.Context, notifications.ListQuery) ([]models.Notification, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (f *fakeNotificationRepo) MarkRead(context.Context, uuid.UUID, uuid.UUID, time.Time) (bool, error) {
	return false, nil
}

func (f *fakeNotificationRepo) MarkAllRead(context.Context, uuid.UUID, time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeNotificationRepo) CountUnread(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeNotificationRepo) DeleteReadBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []models.Notification
	var deleted int64
	for _, n := range f.rows {
		if n.ReadAt != nil && n.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	f.rows = kept
	return deleted, nil
}

func TestNotificationCleanup(t *testing.T) {
	repo := &fakeNotificationRepo{}
	readAt := time.Now().Add(-100 * 24 * time.Hour)
	repo.rows = []models.Notification{
		{ID: uuid.New(), CreatedAt: time.Now().Add(-120 * 24 * time.Hour), ReadAt: &readAt},
		{ID: uuid.New(), CreatedAt: time.Now().Add(-120 * 24 * time.Hour)},
		{ID: uuid.New(), CreatedAt: time.Now().Add(-24 * time.Hour), ReadAt: &readAt},
	}

	job, err := NewNotificationCleanupJob(repo, testCronLogger(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.rows) != 2 {
		t.Fatalf("only old read notifications should be purged, %d rows left", len(repo.rows))
	}
}

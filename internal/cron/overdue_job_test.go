package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ovrpay/ovrpay-backend/internal/violations"
	"github.com/ovrpay/ovrpay-backend/pkg/db/models"
	"github.com/ovrpay/ovrpay-backend/pkg/enums"
	"github.com/ovrpay/ovrpay-backend/pkg/pagination"
)

type fakeViolationRepo struct {
	records map[uuid.UUID]*models.ViolationRecord
}

func newFakeViolationRepo() *fakeViolationRepo {
	return &fakeViolationRepo{records: map[uuid.UUID]*models.ViolationRecord{}}
}

func (f *fakeViolationRepo) WithTx(tx *gorm.DB) violations.Repository { return f }

func (f *fakeViolationRepo) Create(_ context.Context, record *models.ViolationRecord) error {
	record.ID = uuid.New()
	f.records[record.ID] = record
	return nil
}

func (f *fakeViolationRepo) GetByID(_ context.Context, id uuid.UUID) (*models.ViolationRecord, error) {
	return f.records[id], nil
}

func (f *fakeViolationRepo) GetByOVRNumber(context.Context, string) (*models.ViolationRecord, error) {
	return nil, nil
}

func (f *fakeViolationRepo) List(context.Context, violations.ListQuery) ([]models.ViolationRecord, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (f *fakeViolationRepo) SaveTransition(_ context.Context, record *models.ViolationRecord, _ enums.ViolationStatus) (bool, error) {
	f.records[record.ID] = record
	return true, nil
}

func (f *fakeViolationRepo) MarkOverdue(_ context.Context, now time.Time) (int64, error) {
	var count int64
	for _, record := range f.records {
		if record.Status == enums.ViolationStatusPending && record.PaymentDeadline.Before(now) {
			record.Status = enums.ViolationStatusOverdue
			count++
		}
	}
	return count, nil
}

func (f *fakeViolationRepo) ListPendingPastDeadline(_ context.Context, now time.Time, _ int) ([]models.ViolationRecord, error) {
	var out []models.ViolationRecord
	for _, record := range f.records {
		if record.Status == enums.ViolationStatusPending && record.PaymentDeadline.Before(now) {
			out = append(out, *record)
		}
	}
	return out, nil
}

type fakeOverdueNotifier struct {
	notified []*models.ViolationRecord
}

func (f *fakeOverdueNotifier) ViolationOverdue(_ context.Context, record *models.ViolationRecord) {
	f.notified = append(f.notified, record)
}

func TestOverdueSweep(t *testing.T) {
	repo := newFakeViolationRepo()
	notifier := &fakeOverdueNotifier{}

	past := &models.ViolationRecord{
		ID:              uuid.New(),
		OVRNumber:       "OVR2026011111",
		Status:          enums.ViolationStatusPending,
		PaymentDeadline: time.Now().Add(-24 * time.Hour),
	}
	fresh := &models.ViolationRecord{
		ID:              uuid.New(),
		OVRNumber:       "OVR2026022222",
		Status:          enums.ViolationStatusPending,
		PaymentDeadline: time.Now().Add(240 * time.Hour),
	}
	repo.records[past.ID] = past
	repo.records[fresh.ID] = fresh

	job, err := NewOverdueSweepJob(repo, notifier, testCronLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if past.Status != enums.ViolationStatusOverdue {
		t.Fatalf("expected past-deadline violation to flip, got %s", past.Status)
	}
	if fresh.Status != enums.ViolationStatusPending {
		t.Fatalf("fresh violation must stay pending, got %s", fresh.Status)
	}
	if len(notifier.notified) != 1 {
		t.Fatalf("expected one overdue notice, got %d", len(notifier.notified))
	}
	if notifier.notified[0].OVRNumber != past.OVRNumber {
		t.Fatal("notice should reference the flipped violation")
	}
	if notifier.notified[0].Status != enums.ViolationStatusOverdue {
		t.Fatal("notice should carry the overdue status")
	}
}

func TestOverdueSweepWithoutNotifier(t *testing.T) {
	repo := newFakeViolationRepo()
	job, err := NewOverdueSweepJob(repo, nil, testCronLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

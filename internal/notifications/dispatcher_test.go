package notifications

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ovrpay/ovrpay-backend/pkg/db/models"
	"github.com/ovrpay/ovrpay-backend/pkg/enums"
	"github.com/ovrpay/ovrpay-backend/pkg/logger"
	"github.com/ovrpay/ovrpay-backend/pkg/pagination"
)

type fakeRepo struct {
	created   []models.Notification
	createErr error
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(_ context.Context, notification *models.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	notification.ID = uuid.New()
	notification.CreatedAt = time.Now().UTC()
	f.created = append(f.created, *notification)
	return nil
}

func (f *fakeRepo) List(_ context.Context, query ListQuery) ([]models.Notification, *pagination.Cursor, error) {
	var out []models.Notification
	for _, n := range f.created {
		if n.UserID == nil || *n.UserID != query.UserID {
			continue
		}
		if query.UnreadOnly && n.ReadAt != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil, nil
}

func (f *fakeRepo) MarkRead(_ context.Context, id, userID uuid.UUID, at time.Time) (bool, error) {
	for i := range f.created {
		n := &f.created[i]
		if n.ID == id && n.UserID != nil && *n.UserID == userID && n.ReadAt == nil {
			n.ReadAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) MarkAllRead(_ context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	var count int64
	for i := range f.created {
		n := &f.created[i]
		if n.UserID != nil && *n.UserID == userID && n.ReadAt == nil {
			n.ReadAt = &at
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) CountUnread(_ context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	for _, n := range f.created {
		if n.UserID != nil && *n.UserID == userID && n.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) DeleteReadBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []models.Notification
	var deleted int64
	for _, n := range f.created {
		if n.ReadAt != nil && n.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	f.created = kept
	return deleted, nil
}

type fakePublisher struct {
	events []Event
	err    error
}

func (f *fakePublisher) PublishEvent(_ context.Context, event Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testViolation(owner *uuid.UUID) *models.ViolationRecord {
	return &models.ViolationRecord{
		ID:              uuid.New(),
		OVRNumber:       "OVR2026031234",
		PlateNumber:     "ABC1234",
		OwnerUserID:     owner,
		TotalFine:       decimal.RequireFromString("1500.00"),
		PaymentDeadline: time.Now().Add(720 * time.Hour),
	}
}

func TestDispatcherViolationIssued(t *testing.T) {
	repo := &fakeRepo{}
	publisher := &fakePublisher{}
	dispatcher, err := NewDispatcher(repo, publisher, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	owner := uuid.New()
	dispatcher.ViolationIssued(context.Background(), testViolation(&owner))

	if len(repo.created) != 1 {
		t.Fatalf("expected one stored notification, got %d", len(repo.created))
	}
	stored := repo.created[0]
	if stored.Type != enums.NotificationTypeViolationIssued {
		t.Fatalf("unexpected type %s", stored.Type)
	}
	if stored.UserID == nil || *stored.UserID != owner {
		t.Fatal("notification should target the vehicle owner")
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected one published event, got %d", len(publisher.events))
	}
	if publisher.events[0].ReferenceNumber != "OVR2026031234" {
		t.Fatalf("unexpected event reference %s", publisher.events[0].ReferenceNumber)
	}
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	repo := &fakeRepo{createErr: errors.New("db down")}
	publisher := &fakePublisher{err: errors.New("pubsub down")}
	dispatcher, err := NewDispatcher(repo, publisher, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	owner := uuid.New()
	dispatcher.ViolationIssued(context.Background(), testViolation(&owner))
	dispatcher.DisputeSubmitted(context.Background(), testViolation(&owner))
}

func TestDispatcherWithoutPublisher(t *testing.T) {
	repo := &fakeRepo{}
	dispatcher, err := NewDispatcher(repo, nil, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dispatcher.ViolationOverdue(context.Background(), testViolation(nil))
	if len(repo.created) != 1 {
		t.Fatalf("expected one stored notification, got %d", len(repo.created))
	}
}

func TestDispatcherDisputeResolvedMessages(t *testing.T) {
	repo := &fakeRepo{}
	dispatcher, err := NewDispatcher(repo, nil, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	owner := uuid.New()
	dispatcher.DisputeResolved(context.Background(), testViolation(&owner), true)
	dispatcher.DisputeResolved(context.Background(), testViolation(&owner), false)

	if len(repo.created) != 2 {
		t.Fatalf("expected two notifications, got %d", len(repo.created))
	}
	if repo.created[0].Message == repo.created[1].Message {
		t.Fatal("approved and rejected resolutions should read differently")
	}
}

func TestDispatcherPaymentReceipt(t *testing.T) {
	repo := &fakeRepo{}
	publisher := &fakePublisher{}
	dispatcher, err := NewDispatcher(repo, publisher, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payer := uuid.New()
	dispatcher.PaymentReceipt(context.Background(), &models.PaymentTransaction{
		ID:            uuid.New(),
		OVRNumber:     "OVR2026031234",
		ReceiptNumber: "RCP2026031234",
		PayerUserID:   &payer,
		TotalAmount:   decimal.RequireFromString("1525.00"),
	})

	if len(repo.created) != 1 || repo.created[0].Type != enums.NotificationTypePaymentReceipt {
		t.Fatal("expected a payment receipt notification")
	}
	if publisher.events[0].ReferenceNumber != "RCP2026031234" {
		t.Fatal("receipt events should carry the receipt number")
	}
}

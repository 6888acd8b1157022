package violations

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ovrpay/ovrpay-backend/pkg/db/models"
	"github.com/ovrpay/ovrpay-backend/pkg/enums"
	pkgerrors "github.com/ovrpay/ovrpay-backend/pkg/errors"
	"github.com/ovrpay/ovrpay-backend/pkg/fines"
	"github.com/ovrpay/ovrpay-backend/pkg/pagination"
	"github.com/ovrpay/ovrpay-backend/pkg/refnum"
)

type fakeRepo struct {
	records       map[uuid.UUID]*models.ViolationRecord
	byOVR         map[string]*models.ViolationRecord
	createErrs    []error
	createCalls   int
	transitionErr error
	transitionOK  bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		records:      map[uuid.UUID]*models.ViolationRecord{},
		byOVR:        map[string]*models.ViolationRecord{},
		transitionOK: true,
	}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(_ context.Context, record *models.ViolationRecord) error {
	f.createCalls++
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	record.ID = uuid.New()
	record.CreatedAt = time.Now()
	f.records[record.ID] = record
	f.byOVR[record.OVRNumber] = record
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*models.ViolationRecord, error) {
	return f.records[id], nil
}

func (f *fakeRepo) GetByOVRNumber(_ context.Context, ovr string) (*models.ViolationRecord, error) {
	return f.byOVR[ovr], nil
}

func (f *fakeRepo) List(_ context.Context, params ListQuery) ([]models.ViolationRecord, *pagination.Cursor, error) {
	out := []models.ViolationRecord{}
	for _, record := range f.records {
		if params.PlateNumber != "" && record.PlateNumber != params.PlateNumber {
			continue
		}
		if params.Status != nil && record.Status != *params.Status {
			continue
		}
		out = append(out, *record)
	}
	return out, nil, nil
}

func (f *fakeRepo) SaveTransition(_ context.Context, record *models.ViolationRecord, _ enums.ViolationStatus) (bool, error) {
	if f.transitionErr != nil {
		return false, f.transitionErr
	}
	if !f.transitionOK {
		return false, nil
	}
	f.records[record.ID] = record
	f.byOVR[record.OVRNumber] = record
	return true, nil
}

func (f *fakeRepo) MarkOverdue(_ context.Context, now time.Time) (int64, error) {
	var count int64
	for _, record := range f.records {
		if record.Status == enums.ViolationStatusPending && record.PaymentDeadline.Before(now) {
			record.Status = enums.ViolationStatusOverdue
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) ListPendingPastDeadline(_ context.Context, now time.Time, _ int) ([]models.ViolationRecord, error) {
	var out []models.ViolationRecord
	for _, record := range f.records {
		if record.Status == enums.ViolationStatusPending && record.PaymentDeadline.Before(now) {
			out = append(out, *record)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	issued int
}

func (f *fakeNotifier) ViolationIssued(context.Context, *models.ViolationRecord) { f.issued++ }

func newTestService(t *testing.T, repo Repository) (Service, *fakeNotifier) {
	t.Helper()
	notifier := &fakeNotifier{}
	svc, err := NewService(repo, refnum.NewGenerator(), fines.NewCalculator(), notifier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc, notifier
}

func validInput() CreateViolationInput {
	return CreateViolationInput{
		PlateNumber:   "ABC1234",
		VehicleType:   "car",
		ViolationType: "illegal_parking",
		Description:   "parked in a no-parking zone",
		Location:      "Session Road corner Magsaysay Ave",
		ViolationDate: time.Now().Add(-2 * time.Hour),
		ViolationTime: "08:45",
		BaseFine:      decimal.NewFromInt(500),
		DemeritPoints: 2,
		EnforcerID:    uuid.New(),
		EnforcerName:  "J. Cruz",
		EnforcerBadge: "E-1042",
	}
}

func TestCreateViolation(t *testing.T) {
	repo := newFakeRepo()
	svc, notifier := newTestService(t, repo)

	view, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(view.OVRNumber, "OVR") {
		t.Fatalf("unexpected ovr number %q", view.OVRNumber)
	}
	if !strings.HasPrefix(view.CitationNumber, "CIT") {
		t.Fatalf("unexpected citation number %q", view.CitationNumber)
	}
	if view.Status != enums.ViolationStatusPending {
		t.Fatalf("new violations start pending, got %s", view.Status)
	}
	if !view.TotalFine.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("total fine mismatch: %s", view.TotalFine)
	}
	wantDeadline := view.ViolationDate.Add(30 * 24 * time.Hour)
	if !view.PaymentDeadline.Equal(wantDeadline) {
		t.Fatalf("deadline should be 30 days out, got %s", view.PaymentDeadline)
	}
	if notifier.issued != 1 {
		t.Fatalf("expected one issued notification, got %d", notifier.issued)
	}
}

func TestCreateViolationValidation(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	future := validInput()
	future.ViolationDate = time.Now().Add(time.Hour)
	if _, err := svc.Create(ctx, future); err == nil {
		t.Fatal("expected error for future violation date")
	}

	badTime := validInput()
	badTime.ViolationTime = "8:45am"
	if _, err := svc.Create(ctx, badTime); err == nil {
		t.Fatal("expected error for malformed time")
	}

	badType := validInput()
	badType.ViolationType = "flying"
	if _, err := svc.Create(ctx, badType); err == nil {
		t.Fatal("expected error for unknown violation type")
	}

	negative := validInput()
	negative.BaseFine = decimal.NewFromInt(-100)
	if _, err := svc.Create(ctx, negative); err == nil {
		t.Fatal("expected error for negative fine")
	}
}

func TestCreateViolationRetriesOnNumberCollision(t *testing.T) {
	repo := newFakeRepo()
	repo.createErrs = []error{errors.New(`duplicate key value violates unique constraint "uniq_violations_ovr_number"`)}
	svc, _ := newTestService(t, repo)

	view, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.createCalls != 2 {
		t.Fatalf("expected a retry after collision, got %d calls", repo.createCalls)
	}
	if view.OVRNumber == "" {
		t.Fatal("expected a minted ovr number")
	}
}

func TestCreateViolationDoesNotRetryOtherErrors(t *testing.T) {
	repo := newFakeRepo()
	repo.createErrs = []error{errors.New("connection reset")}
	svc, _ := newTestService(t, repo)

	if _, err := svc.Create(context.Background(), validInput()); err == nil {
		t.Fatal("expected error")
	}
	if repo.createCalls != 1 {
		t.Fatalf("non-collision errors must not retry, got %d calls", repo.createCalls)
	}
}

func TestLookupByOVR(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	view, err := svc.LookupByOVR(ctx, created.OVRNumber)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.ID != created.ID {
		t.Fatal("lookup returned the wrong record")
	}

	if _, err := svc.LookupByOVR(ctx, "not-a-number"); err == nil {
		t.Fatal("expected validation error for malformed number")
	}
	if _, err := svc.LookupByOVR(ctx, "OVR2026039999"); err == nil {
		t.Fatal("expected not found")
	}
}

func TestLookupRecomputesOverdue(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Age the stored row past its deadline without running the sweep.
	record := repo.byOVR[created.OVRNumber]
	record.PaymentDeadline = time.Now().Add(-time.Hour)
	record.DueDate = record.PaymentDeadline

	view, err := svc.LookupByOVR(ctx, created.OVRNumber)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !view.IsOverdue {
		t.Fatal("read path must derive overdue from the deadline")
	}
	if view.Status != enums.ViolationStatusOverdue {
		t.Fatalf("view status should report overdue, got %s", view.Status)
	}
	if view.DaysUntilDue >= 0 {
		t.Fatalf("expected negative days until due, got %d", view.DaysUntilDue)
	}
}

func TestCancelViolation(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	view, err := svc.Cancel(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Status != enums.ViolationStatusCancelled {
		t.Fatalf("expected cancelled, got %s", view.Status)
	}

	if _, err := svc.Cancel(ctx, created.ID); err == nil {
		t.Fatal("expected state conflict cancelling twice")
	}
}

func TestCancelConcurrentChange(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	repo.transitionOK = false
	_, err = svc.Cancel(ctx, created.ID)
	if err == nil {
		t.Fatal("expected conflict when the row changed underneath")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict code, got %v", err)
	}
}

package payments

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ovrpay/ovrpay-backend/internal/gateway"
	"github.com/ovrpay/ovrpay-backend/internal/violations"
	"github.com/ovrpay/ovrpay-backend/pkg/db/models"
	"github.com/ovrpay/ovrpay-backend/pkg/enums"
	pkgerrors "github.com/ovrpay/ovrpay-backend/pkg/errors"
	"github.com/ovrpay/ovrpay-backend/pkg/fines"
	"github.com/ovrpay/ovrpay-backend/pkg/metrics"
	"github.com/ovrpay/ovrpay-backend/pkg/pagination"
	"github.com/ovrpay/ovrpay-backend/pkg/receipt"
	"github.com/ovrpay/ovrpay-backend/pkg/refnum"
)

type fakePaymentRepo struct {
	payments    map[uuid.UUID]*models.PaymentTransaction
	createErrs  []error
	createCalls int
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: map[uuid.UUID]*models.PaymentTransaction{}}
}

func (f *fakePaymentRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakePaymentRepo) Create(_ context.Context, payment *models.PaymentTransaction) error {
	f.createCalls++
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		return err
	}
	payment.ID = uuid.New()
	payment.CreatedAt = time.Now().UTC()
	stored := *payment
	f.payments[payment.ID] = &stored
	return nil
}

func (f *fakePaymentRepo) GetByID(_ context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	if stored, ok := f.payments[id]; ok {
		copied := *stored
		return &copied, nil
	}
	return nil, nil
}

func (f *fakePaymentRepo) GetByPaymentNumber(_ context.Context, paymentNumber string) (*models.PaymentTransaction, error) {
	for _, stored := range f.payments {
		if stored.PaymentNumber == paymentNumber {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakePaymentRepo) ListByViolation(_ context.Context, violationID uuid.UUID, _ int, _ *pagination.Cursor) ([]models.PaymentTransaction, *pagination.Cursor, error) {
	var out []models.PaymentTransaction
	for _, stored := range f.payments {
		if stored.ViolationID == violationID {
			out = append(out, *stored)
		}
	}
	return out, nil, nil
}

func (f *fakePaymentRepo) SaveTransition(_ context.Context, payment *models.PaymentTransaction, fromStatuses ...enums.PaymentStatus) (bool, error) {
	stored, ok := f.payments[payment.ID]
	if !ok {
		return false, nil
	}
	matched := false
	for _, from := range fromStatuses {
		if stored.Status == from {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	copied := *payment
	f.payments[payment.ID] = &copied
	return true, nil
}

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

func (f *fakeViolationRepo) GetByOVRNumber(_ context.Context, ovr string) (*models.ViolationRecord, error) {
	for _, record := range f.records {
		if record.OVRNumber == ovr {
			copied := *record
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeViolationRepo) List(context.Context, violations.ListQuery) ([]models.ViolationRecord, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (f *fakeViolationRepo) SaveTransition(_ context.Context, record *models.ViolationRecord, fromStatus enums.ViolationStatus) (bool, error) {
	stored, ok := f.records[record.ID]
	if !ok || stored.Status != fromStatus {
		return false, nil
	}
	copied := *record
	f.records[record.ID] = &copied
	return true, nil
}

func (f *fakeViolationRepo) MarkOverdue(context.Context, time.Time) (int64, error) { return 0, nil }

func (f *fakeViolationRepo) ListPendingPastDeadline(context.Context, time.Time, int) ([]models.ViolationRecord, error) {
	return nil, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type fakeGateway struct {
	chargeErr   error
	refundErr   error
	chargeCalls int
	refundCalls int
	lastCharge  gateway.ChargeRequest
	lastRefund  gateway.RefundRequest
}

func (f *fakeGateway) Charge(_ context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	f.chargeCalls++
	f.lastCharge = req
	if f.chargeErr != nil {
		return nil, f.chargeErr
	}
	return &gateway.ChargeResult{TransactionID: "gw-tx-1", Reference: "gw-ref-1"}, nil
}

func (f *fakeGateway) Refund(_ context.Context, req gateway.RefundRequest) (*gateway.RefundResult, error) {
	f.refundCalls++
	f.lastRefund = req
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	return &gateway.RefundResult{RefundID: "gw-refund-1"}, nil
}

type fakeNotifier struct {
	receipts int
}

func (f *fakeNotifier) PaymentReceipt(context.Context, *models.PaymentTransaction) { f.receipts++ }

type harness struct {
	svc        Service
	payments   *fakePaymentRepo
	violations *fakeViolationRepo
	gateway    *fakeGateway
	notifier   *fakeNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithEncoder(t, receipt.NewEncoder())
}

func newHarnessWithEncoder(t *testing.T, encoder receiptEncoder) *harness {
	t.Helper()
	h := &harness{
		payments:   newFakePaymentRepo(),
		violations: newFakeViolationRepo(),
		gateway:    &fakeGateway{},
		notifier:   &fakeNotifier{},
	}
	svc, err := NewService(
		h.payments,
		h.violations,
		fakeTxRunner{},
		h.gateway,
		refnum.NewGenerator(),
		fines.NewCalculator(),
		encoder,
		h.notifier,
		metrics.NewPaymentMetrics(nil),
		Config{Currency: "PHP"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.svc = svc
	return h
}

func (h *harness) seedViolation(status enums.ViolationStatus) *models.ViolationRecord {
	record := &models.ViolationRecord{
		ID:              uuid.New(),
		OVRNumber:       "OVR2026031234",
		CitationNumber:  "CIT2026031234",
		Status:          status,
		TotalFine:       decimal.RequireFromString("1500.00"),
		PaymentDeadline: time.Now().Add(720 * time.Hour),
	}
	h.violations.records[record.ID] = record
	return record
}

func validInput() InitiateInput {
	return InitiateInput{
		OVRNumber:     "OVR2026031234",
		PayerName:     "Maria Santos",
		PayerEmail:    "maria@example.com",
		Amount:        decimal.RequireFromString("1500.00"),
		PaymentMethod: string(enums.PaymentMethodCard),
		SourceToken:   "tok-ok-visa",
	}
}

func TestInitiateHappyPath(t *testing.T) {
	h := newHarness(t)
	record := h.seedViolation(enums.ViolationStatusPending)

	view, err := h.svc.Initiate(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed, got %s", view.Status)
	}
	if !strings.HasPrefix(view.PaymentNumber, "PAY") || !strings.HasPrefix(view.ReceiptNumber, "RCP") {
		t.Fatalf("unexpected reference numbers %s / %s", view.PaymentNumber, view.ReceiptNumber)
	}
	wantTotal := decimal.RequireFromString("1525.00")
	if !view.TotalAmount.Equal(wantTotal) {
		t.Fatalf("expected total %s, got %s", wantTotal, view.TotalAmount)
	}
	if view.QRPayload == nil || !strings.HasPrefix(*view.QRPayload, "data:application/json;base64,") {
		t.Fatal("expected an encoded receipt payload")
	}
	if h.notifier.receipts != 1 {
		t.Fatalf("expected one receipt notification, got %d", h.notifier.receipts)
	}

	settled := h.violations.records[record.ID]
	if settled.Status != enums.ViolationStatusPaid {
		t.Fatalf("violation should be paid, got %s", settled.Status)
	}
	if settled.PaymentReference == nil || *settled.PaymentReference != view.PaymentNumber {
		t.Fatal("violation should reference the settling payment")
	}
	if h.gateway.lastCharge.IdempotencyKey != view.PaymentNumber {
		t.Fatal("charge idempotency key should be the payment number")
	}
}

func TestInitiateOverdueViolationIsPayable(t *testing.T) {
	h := newHarness(t)
	record := h.seedViolation(enums.ViolationStatusOverdue)
	record.PaymentDeadline = time.Now().Add(-48 * time.Hour)

	view, err := h.svc.Initiate(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed, got %s", view.Status)
	}
	if h.violations.records[record.ID].Status != enums.ViolationStatusPaid {
		t.Fatal("overdue violation should settle to paid")
	}
}

func TestInitiateAmountMismatch(t *testing.T) {
	h := newHarness(t)
	h.seedViolation(enums.ViolationStatusPending)

	input := validInput()
	input.Amount = decimal.RequireFromString("1000.00")
	_, err := h.svc.Initiate(context.Background(), input)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if h.gateway.chargeCalls != 0 {
		t.Fatal("gateway must not be charged on a rejected amount")
	}
}

func TestInitiateAlreadyPaid(t *testing.T) {
	h := newHarness(t)
	h.seedViolation(enums.ViolationStatusPaid)

	_, err := h.svc.Initiate(context.Background(), validInput())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestInitiateDisputedViolationStillPayable(t *testing.T) {
	h := newHarness(t)
	record := h.seedViolation(enums.ViolationStatusPending)
	if err := record.SubmitDispute("the posted signage was removed weeks before", time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	view, err := h.svc.Initiate(context.Background(), validInput())
	if err != nil {
		t.Fatalf("an open dispute must not block payment: %v", err)
	}
	if view.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed, got %s", view.Status)
	}

	settled := h.violations.records[record.ID]
	if settled.Status != enums.ViolationStatusPaid {
		t.Fatalf("violation should settle to paid, got %s", settled.Status)
	}
	if !settled.IsDisputed {
		t.Fatal("settlement should not erase the dispute record")
	}
}

func TestInitiateUnknownViolation(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Initiate(context.Background(), validInput())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInitiateGatewayDeclineAbsorbed(t *testing.T) {
	h := newHarness(t)
	record := h.seedViolation(enums.ViolationStatusPending)
	h.gateway.chargeErr = pkgerrors.New(pkgerrors.CodeGateway, "card declined")

	view, err := h.svc.Initiate(context.Background(), validInput())
	if err != nil {
		t.Fatalf("declines must surface as a failed transaction, not an error: %v", err)
	}
	if view.Status != enums.PaymentStatusFailed {
		t.Fatalf("expected failed, got %s", view.Status)
	}
	if view.ErrorCode == nil || *view.ErrorCode != string(pkgerrors.CodeGateway) {
		t.Fatal("failed view should carry the gateway error code")
	}
	if view.QRPayload != nil {
		t.Fatal("failed payments must not carry a receipt")
	}
	if h.violations.records[record.ID].Status != enums.ViolationStatusPending {
		t.Fatal("a declined charge must leave the violation pending")
	}
	if h.notifier.receipts != 0 {
		t.Fatal("no receipt notification on decline")
	}
}

type failingEncoder struct{}

func (failingEncoder) Encode(receipt.Payload) (string, error) {
	return "", errors.New("encoder offline")
}

func TestInitiateSettlesWhenReceiptEncodingFails(t *testing.T) {
	h := newHarnessWithEncoder(t, failingEncoder{})
	record := h.seedViolation(enums.ViolationStatusPending)

	view, err := h.svc.Initiate(context.Background(), validInput())
	if err != nil {
		t.Fatalf("a broken receipt encoder must not abort settlement: %v", err)
	}
	if view.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed, got %s", view.Status)
	}
	if view.QRPayload != nil {
		t.Fatal("no receipt payload should be recorded when encoding fails")
	}
	if h.violations.records[record.ID].Status != enums.ViolationStatusPaid {
		t.Fatal("the violation should still settle to paid")
	}
	if h.notifier.receipts != 1 {
		t.Fatalf("expected one receipt notification, got %d", h.notifier.receipts)
	}
}

func TestInitiateRetriesOnNumberCollision(t *testing.T) {
	h := newHarness(t)
	h.seedViolation(enums.ViolationStatusPending)
	h.payments.createErrs = []error{errors.New(`duplicate key value violates unique constraint "uniq_payments_payment_number"`)}

	view, err := h.svc.Initiate(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.payments.createCalls != 2 {
		t.Fatalf("expected a retry with fresh numbers, got %d create calls", h.payments.createCalls)
	}
	if view.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed, got %s", view.Status)
	}
}

func TestRefundHappyPath(t *testing.T) {
	h := newHarness(t)
	h.seedViolation(enums.ViolationStatusPending)
	view, err := h.svc.Initiate(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	admin := uuid.New()
	refunded, err := h.svc.Refund(context.Background(), RefundInput{
		PaymentID:  view.ID,
		Reason:     "dispute upheld after payment",
		RefundedBy: admin,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refunded.Status != enums.PaymentStatusRefunded {
		t.Fatalf("expected refunded, got %s", refunded.Status)
	}
	if refunded.RefundAmount == nil || !refunded.RefundAmount.Equal(view.TotalAmount) {
		t.Fatal("refunds default to the full total amount")
	}
	if h.gateway.refundCalls != 1 {
		t.Fatalf("expected one gateway refund, got %d", h.gateway.refundCalls)
	}
}

func TestRefundPartialAmount(t *testing.T) {
	h := newHarness(t)
	h.seedViolation(enums.ViolationStatusPending)
	view, err := h.svc.Initiate(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	partial := decimal.RequireFromString("25.00")
	refunded, err := h.svc.Refund(context.Background(), RefundInput{
		PaymentID:  view.ID,
		Amount:     &partial,
		Reason:     "processing fee waived on appeal",
		RefundedBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refunded.RefundAmount == nil || !refunded.RefundAmount.Equal(partial) {
		t.Fatal("partial refund amount should be recorded")
	}
	if h.gateway.lastRefund.Amount.String() != partial.String() {
		t.Fatalf("gateway should be asked for the partial amount, got %s", h.gateway.lastRefund.Amount)
	}
}

func TestRefundAmountAboveCharge(t *testing.T) {
	h := newHarness(t)
	h.seedViolation(enums.ViolationStatusPending)
	view, err := h.svc.Initiate(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	over := view.TotalAmount.Add(decimal.NewFromInt(1))
	_, err = h.svc.Refund(context.Background(), RefundInput{
		PaymentID:  view.ID,
		Amount:     &over,
		Reason:     "asking for more than was charged",
		RefundedBy: uuid.New(),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if h.gateway.refundCalls != 0 {
		t.Fatal("an invalid amount must not reach the gateway")
	}
}

func TestRefundOnlyOnce(t *testing.T) {
	h := newHarness(t)
	h.seedViolation(enums.ViolationStatusPending)
	view, err := h.svc.Initiate(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input := RefundInput{PaymentID: view.ID, Reason: "dispute upheld after payment", RefundedBy: uuid.New()}
	if _, err := h.svc.Refund(context.Background(), input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = h.svc.Refund(context.Background(), input)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeCannotRefund {
		t.Fatalf("expected CANNOT_REFUND on second refund, got %v", err)
	}
	if h.gateway.refundCalls != 1 {
		t.Fatal("second refund must not reach the gateway")
	}
}

func TestRefundNonCompletedPayment(t *testing.T) {
	h := newHarness(t)
	h.seedViolation(enums.ViolationStatusPending)
	h.gateway.chargeErr = pkgerrors.New(pkgerrors.CodeGateway, "card declined")
	view, err := h.svc.Initiate(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = h.svc.Refund(context.Background(), RefundInput{
		PaymentID:  view.ID,
		Reason:     "attempting to refund a failed charge",
		RefundedBy: uuid.New(),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeCannotRefund {
		t.Fatalf("expected CANNOT_REFUND, got %v", err)
	}
}

func TestRefundGatewayErrorSurfaces(t *testing.T) {
	h := newHarness(t)
	record := h.seedViolation(enums.ViolationStatusPending)
	view, err := h.svc.Initiate(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h.gateway.refundErr = pkgerrors.New(pkgerrors.CodeGateway, "gateway unavailable")
	_, err = h.svc.Refund(context.Background(), RefundInput{
		PaymentID:  view.ID,
		Reason:     "dispute upheld after payment",
		RefundedBy: uuid.New(),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeGateway {
		t.Fatalf("refund gateway failures must surface, got %v", err)
	}

	stored, _ := h.payments.GetByID(context.Background(), view.ID)
	if stored.Status != enums.PaymentStatusCompleted {
		t.Fatalf("payment must stay completed on a failed refund, got %s", stored.Status)
	}
	if h.violations.records[record.ID].Status != enums.ViolationStatusPaid {
		t.Fatal("violation must stay paid on a failed refund")
	}
}

func TestCancelPendingPayment(t *testing.T) {
	h := newHarness(t)
	record := h.seedViolation(enums.ViolationStatusPending)
	payment := &models.PaymentTransaction{
		ViolationID:   record.ID,
		OVRNumber:     record.OVRNumber,
		PaymentNumber: "PAY20260312345",
		ReceiptNumber: "RCP2026031234",
		Status:        enums.PaymentStatusPending,
		TotalAmount:   decimal.RequireFromString("1525.00"),
		InitiatedAt:   time.Now().UTC(),
	}
	if err := h.payments.Create(context.Background(), payment); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	view, err := h.svc.Cancel(context.Background(), payment.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Status != enums.PaymentStatusCancelled {
		t.Fatalf("expected cancelled, got %s", view.Status)
	}
}

func TestCancelCompletedPayment(t *testing.T) {
	h := newHarness(t)
	h.seedViolation(enums.ViolationStatusPending)
	view, err := h.svc.Initiate(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = h.svc.Cancel(context.Background(), view.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestGetByPaymentNumber(t *testing.T) {
	h := newHarness(t)
	h.seedViolation(enums.ViolationStatusPending)
	view, err := h.svc.Initiate(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found, err := h.svc.GetByPaymentNumber(context.Background(), view.PaymentNumber)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.ID != view.ID {
		t.Fatal("lookup returned the wrong payment")
	}

	if _, err := h.svc.GetByPaymentNumber(context.Background(), "not-a-number"); err == nil {
		t.Fatal("expected validation error for a malformed payment number")
	}
}

package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ovrpay/ovrpay-backend/internal/gateway"
	"github.com/ovrpay/ovrpay-backend/internal/violations"
	"github.com/ovrpay/ovrpay-backend/pkg/db"
	"github.com/ovrpay/ovrpay-backend/pkg/db/models"
	"github.com/ovrpay/ovrpay-backend/pkg/enums"
	pkgerrors "github.com/ovrpay/ovrpay-backend/pkg/errors"
	"github.com/ovrpay/ovrpay-backend/pkg/fines"
	"github.com/ovrpay/ovrpay-backend/pkg/logger"
	"github.com/ovrpay/ovrpay-backend/pkg/metrics"
	"github.com/ovrpay/ovrpay-backend/pkg/pagination"
	"github.com/ovrpay/ovrpay-backend/pkg/receipt"
	"github.com/ovrpay/ovrpay-backend/pkg/refnum"
)

const refnumMaxRetries = 3

// ProcessingFee is the flat convenience fee added to every online
// settlement, set by city ordinance.
var ProcessingFee = decimal.RequireFromString("25.00")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Notifier fans out payment lifecycle events.
type Notifier interface {
	PaymentReceipt(ctx context.Context, payment *models.PaymentTransaction)
}

type receiptEncoder interface {
	Encode(payload receipt.Payload) (string, error)
}

// Config carries the gateway call parameters the service needs.
type Config struct {
	Currency      string
	ChargeTimeout time.Duration
	RefundTimeout time.Duration
	Logger        *logger.Logger
}

// ListResult wraps returned payments and the cursor for the next page.
type ListResult struct {
	Items  []*PaymentView `json:"items"`
	Cursor string         `json:"cursor"`
}

// Service defines payment settlement operations.
type Service interface {
	Initiate(ctx context.Context, input InitiateInput) (*PaymentView, error)
	GetByID(ctx context.Context, id uuid.UUID) (*PaymentView, error)
	GetByPaymentNumber(ctx context.Context, paymentNumber string) (*PaymentView, error)
	ListByViolation(ctx context.Context, violationID uuid.UUID, limit int, cursor string) (*ListResult, error)
	Cancel(ctx context.Context, id uuid.UUID) (*PaymentView, error)
	Refund(ctx context.Context, input RefundInput) (*PaymentView, error)
}

type service struct {
	repo          Repository
	violationRepo violations.Repository
	tx            txRunner
	processor     gateway.Adapter
	refnums       *refnum.Generator
	fines         *fines.Calculator
	receipts      receiptEncoder
	notifier      Notifier
	metrics       *metrics.PaymentMetrics
	cfg           Config
	now           func() time.Time
}

// NewService wires payment dependencies.
func NewService(
	repo Repository,
	violationRepo violations.Repository,
	tx txRunner,
	processor gateway.Adapter,
	refnums *refnum.Generator,
	calc *fines.Calculator,
	receipts receiptEncoder,
	notifier Notifier,
	paymentMetrics *metrics.PaymentMetrics,
	cfg Config,
) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments repository required")
	}
	if violationRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "violations repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if processor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway required")
	}
	if refnums == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "reference number generator required")
	}
	if calc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "fine calculator required")
	}
	if receipts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "receipt encoder required")
	}
	if notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	if cfg.Currency == "" {
		cfg.Currency = "PHP"
	}
	if cfg.ChargeTimeout <= 0 {
		cfg.ChargeTimeout = 30 * time.Second
	}
	if cfg.RefundTimeout <= 0 {
		cfg.RefundTimeout = 30 * time.Second
	}
	return &service{
		repo:          repo,
		violationRepo: violationRepo,
		tx:            tx,
		processor:     processor,
		refnums:       refnums,
		fines:         calc,
		receipts:      receipts,
		notifier:      notifier,
		metrics:       paymentMetrics,
		cfg:           cfg,
		now:           time.Now,
	}, nil
}

// Initiate runs the whole settlement flow. Gateway declines are absorbed
// into a failed transaction and returned without error so the payer sees
// the terminal state and can retry with a fresh transaction.
func (s *service) Initiate(ctx context.Context, input InitiateInput) (*PaymentView, error) {
	method, err := enums.ParsePaymentMethod(input.PaymentMethod)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}
	if !refnum.Validate(refnum.KindViolation, input.OVRNumber) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid OVR number")
	}

	violation, err := s.violationRepo.GetByOVRNumber(ctx, input.OVRNumber)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup violation")
	}
	if violation == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "violation not found")
	}
	if !violation.CanBePaid() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "violation cannot be paid").
			WithDetails(map[string]any{"status": violation.Status})
	}
	if !input.Amount.Equal(violation.TotalFine) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must equal the total fine").
			WithDetails(map[string]any{"expected": violation.TotalFine.String()})
	}

	totalAmount, err := s.fines.TotalAmount(input.Amount, ProcessingFee)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment amounts")
	}

	payment := &models.PaymentTransaction{
		ViolationID:    violation.ID,
		OVRNumber:      violation.OVRNumber,
		CitationNumber: violation.CitationNumber,

		PayerName:   input.PayerName,
		PayerEmail:  input.PayerEmail,
		PayerPhone:  input.PayerPhone,
		PayerUserID: input.PayerUser,

		Amount:        input.Amount,
		ProcessingFee: ProcessingFee,
		TotalAmount:   totalAmount,
		PaymentMethod: method,

		Status:      enums.PaymentStatusPending,
		InitiatedAt: s.now().UTC(),
	}
	if err := s.createWithFreshNumbers(ctx, payment); err != nil {
		return nil, err
	}

	if err := payment.MarkAsProcessing(s.now().UTC()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "start processing")
	}
	updated, err := s.repo.SaveTransition(ctx, payment, enums.PaymentStatusPending)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "start processing")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment changed concurrently")
	}

	result, chargeErr := s.charge(ctx, payment, input.SourceToken)
	if chargeErr != nil {
		return s.absorbChargeFailure(ctx, payment, chargeErr)
	}

	return s.settle(ctx, payment, violation, result)
}

func (s *service) charge(ctx context.Context, payment *models.PaymentTransaction, sourceToken string) (*gateway.ChargeResult, error) {
	chargeCtx, cancel := context.WithTimeout(ctx, s.cfg.ChargeTimeout)
	defer cancel()

	started := s.now()
	result, err := s.processor.Charge(chargeCtx, gateway.ChargeRequest{
		SourceToken:     sourceToken,
		Amount:          payment.TotalAmount,
		Currency:        s.cfg.Currency,
		ReferenceNumber: payment.PaymentNumber,
		Note:            "traffic violation " + payment.OVRNumber,
		IdempotencyKey:  payment.PaymentNumber,
	})
	s.metrics.ObserveGatewayCall("charge", s.now().Sub(started))
	return result, err
}

func (s *service) absorbChargeFailure(ctx context.Context, payment *models.PaymentTransaction, chargeErr error) (*PaymentView, error) {
	code := string(pkgerrors.CodeGateway)
	if typed := pkgerrors.As(chargeErr); typed != nil {
		code = string(typed.Code())
	}
	if err := payment.MarkAsFailed(code, chargeErr.Error(), s.now().UTC()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "record charge failure")
	}

	updated, err := s.repo.SaveTransition(ctx, payment, enums.PaymentStatusProcessing)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record charge failure")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment changed concurrently")
	}

	s.metrics.IncOutcome(string(enums.PaymentStatusFailed))
	return NewView(payment), nil
}

func (s *service) settle(ctx context.Context, payment *models.PaymentTransaction, violation *models.ViolationRecord, result *gateway.ChargeResult) (*PaymentView, error) {
	completedAt := s.now().UTC()
	if err := payment.MarkAsCompleted(result.TransactionID, result.Reference, completedAt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "complete payment")
	}
	if result.RawResponse != "" {
		raw := result.RawResponse
		payment.GatewayResponse = &raw
	}

	// The charge already succeeded. A broken QR payload must not leave
	// the payment stuck in processing, so encode failures only log.
	qr, err := s.receipts.Encode(receipt.Payload{
		ReceiptNumber: payment.ReceiptNumber,
		PaymentID:     payment.ID,
		OVRNumber:     payment.OVRNumber,
		TotalAmount:   payment.TotalAmount,
		CompletedAt:   completedAt,
	})
	if err != nil {
		if s.cfg.Logger != nil {
			s.cfg.Logger.Error(s.cfg.Logger.WithPaymentNumber(ctx, payment.PaymentNumber), "encode receipt payload", err)
		}
	} else {
		payment.QRPayload = &qr
	}

	violationFrom := violation.Status
	if err := violation.MarkAsPaid(payment.PaymentMethod, payment.PaymentNumber, completedAt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "mark violation paid")
	}

	// The completed flip and the violation flip commit together. The
	// partial unique index on violation_id backstops the conditional
	// updates if two charges race.
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		updated, err := s.repo.WithTx(tx).SaveTransition(ctx, payment, enums.PaymentStatusProcessing)
		if err != nil {
			return err
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeConflict, "payment changed concurrently")
		}

		flipped, err := s.violationRepo.WithTx(tx).SaveTransition(ctx, violation, violationFrom)
		if err != nil {
			return err
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeConflict, "violation was settled concurrently")
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle payment")
	}

	s.metrics.IncOutcome(string(enums.PaymentStatusCompleted))
	s.notifier.PaymentReceipt(ctx, payment)
	return NewView(payment), nil
}

func (s *service) createWithFreshNumbers(ctx context.Context, payment *models.PaymentTransaction) error {
	backoff := retry.WithMaxRetries(refnumMaxRetries, retry.NewConstant(25*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		pay, err := s.refnums.Generate(refnum.KindPayment)
		if err != nil {
			return err
		}
		rcp, err := s.refnums.Generate(refnum.KindReceipt)
		if err != nil {
			return err
		}
		payment.ID = uuid.Nil
		payment.PaymentNumber = pay
		payment.ReceiptNumber = rcp

		if err := s.repo.Create(ctx, payment); err != nil {
			if db.IsUniqueViolation(err, "") {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}
	return nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*PaymentView, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get payment")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return NewView(payment), nil
}

func (s *service) GetByPaymentNumber(ctx context.Context, paymentNumber string) (*PaymentView, error) {
	if !refnum.Validate(refnum.KindPayment, paymentNumber) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment number")
	}
	payment, err := s.repo.GetByPaymentNumber(ctx, paymentNumber)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get payment")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return NewView(payment), nil
}

func (s *service) ListByViolation(ctx context.Context, violationID uuid.UUID, limit int, cursor string) (*ListResult, error) {
	if violationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "violation id required")
	}

	var parsed *pagination.Cursor
	if cursor != "" {
		var err error
		parsed, err = pagination.ParseCursor(cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
	}

	rows, next, err := s.repo.ListByViolation(ctx, violationID, limit, parsed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}

	items := make([]*PaymentView, 0, len(rows))
	for i := range rows {
		items = append(items, NewView(&rows[i]))
	}
	out := &ListResult{Items: items}
	if next != nil {
		out.Cursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID) (*PaymentView, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get payment")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}

	fromStatus := payment.Status
	if err := payment.MarkAsCancelled(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "cancel payment")
	}
	updated, err := s.repo.SaveTransition(ctx, payment, fromStatus)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel payment")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment changed concurrently")
	}

	s.metrics.IncOutcome(string(enums.PaymentStatusCancelled))
	return NewView(payment), nil
}

// Refund reverses a completed payment, in full unless the caller asks
// for a smaller amount. Unlike charges, gateway failures here surface
// to the caller and leave the payment completed.
func (s *service) Refund(ctx context.Context, input RefundInput) (*PaymentView, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if input.RefundedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refunding user required")
	}

	payment, err := s.repo.GetByID(ctx, input.PaymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get payment")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	if !payment.CanBeRefunded() {
		return nil, pkgerrors.New(pkgerrors.CodeCannotRefund, "only completed payments can be refunded").
			WithDetails(map[string]any{"status": payment.Status})
	}
	if payment.GatewayTransactionID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment has no gateway transaction")
	}

	amount := payment.TotalAmount
	if input.Amount != nil {
		amount = *input.Amount
		if !amount.IsPositive() || amount.GreaterThan(payment.TotalAmount) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive and at most the amount charged").
				WithDetails(map[string]any{"max": payment.TotalAmount.String()})
		}
	}

	refundCtx, cancel := context.WithTimeout(ctx, s.cfg.RefundTimeout)
	defer cancel()

	started := s.now()
	_, err = s.processor.Refund(refundCtx, gateway.RefundRequest{
		TransactionID:  *payment.GatewayTransactionID,
		Amount:         amount,
		Currency:       s.cfg.Currency,
		Reason:         input.Reason,
		IdempotencyKey: payment.PaymentNumber + "-refund",
	})
	s.metrics.ObserveGatewayCall("refund", s.now().Sub(started))
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "refund payment")
	}

	if err := payment.ProcessRefund(amount, input.Reason, input.RefundedBy, s.now().UTC()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeCannotRefund, err, "record refund")
	}
	updated, err := s.repo.SaveTransition(ctx, payment, enums.PaymentStatusCompleted)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment changed concurrently")
	}

	s.metrics.IncOutcome(string(enums.PaymentStatusRefunded))
	return NewView(payment), nil
}

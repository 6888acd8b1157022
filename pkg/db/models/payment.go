package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ovrpay/ovrpay-backend/pkg/enums"
)

// PaymentTransaction is an attempt to settle a violation through the
// payment gateway. At most one transaction per violation ever reaches
// the completed state; the partial unique index on violation_id
// enforces that at the database level.
type PaymentTransaction struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentNumber string    `gorm:"column:payment_number;not null;uniqueIndex:uniq_payments_payment_number"`
	ReceiptNumber string    `gorm:"column:receipt_number;not null;uniqueIndex:uniq_payments_receipt_number"`

	ViolationID    uuid.UUID `gorm:"column:violation_id;type:uuid;not null"`
	OVRNumber      string    `gorm:"column:ovr_number;not null"`
	CitationNumber string    `gorm:"column:citation_number;not null"`

	PayerName   string     `gorm:"column:payer_name;not null"`
	PayerEmail  string     `gorm:"column:payer_email;not null"`
	PayerPhone  *string    `gorm:"column:payer_phone"`
	PayerUserID *uuid.UUID `gorm:"column:payer_user_id;type:uuid"`

	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	ProcessingFee decimal.Decimal     `gorm:"column:processing_fee;type:numeric(12,2);not null;default:0"`
	TotalAmount   decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	RefundAmount  *decimal.Decimal    `gorm:"column:refund_amount;type:numeric(12,2)"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;not null"`

	Status enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`

	GatewayTransactionID *string `gorm:"column:gateway_transaction_id"`
	GatewayReference     *string `gorm:"column:gateway_reference"`
	GatewayResponse      *string `gorm:"column:gateway_response"`
	ErrorCode            *string `gorm:"column:error_code"`
	ErrorMessage         *string `gorm:"column:error_message"`

	QRPayload *string `gorm:"column:qr_payload"`

	RefundReason *string    `gorm:"column:refund_reason"`
	RefundedBy   *uuid.UUID `gorm:"column:refunded_by;type:uuid"`

	InitiatedAt time.Time  `gorm:"column:initiated_at;not null"`
	ProcessedAt *time.Time `gorm:"column:processed_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	FailedAt    *time.Time `gorm:"column:failed_at"`
	RefundedAt  *time.Time `gorm:"column:refunded_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName implements the GORM naming hook.
func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}

// MarkAsProcessing moves a pending payment to the gateway-in-flight state.
func (p *PaymentTransaction) MarkAsProcessing(at time.Time) error {
	if p.Status != enums.PaymentStatusPending {
		return fmt.Errorf("payment %s cannot start processing from status %s", p.PaymentNumber, p.Status)
	}
	p.Status = enums.PaymentStatusProcessing
	p.ProcessedAt = &at
	return nil
}

// MarkAsCompleted records a successful gateway charge. Completion is
// reachable straight from pending as well as from processing, so a
// synchronous charge path does not have to pass through both states.
func (p *PaymentTransaction) MarkAsCompleted(gatewayTxID, gatewayRef string, at time.Time) error {
	switch p.Status {
	case enums.PaymentStatusPending, enums.PaymentStatusProcessing:
	default:
		return fmt.Errorf("payment %s cannot complete from status %s", p.PaymentNumber, p.Status)
	}
	p.Status = enums.PaymentStatusCompleted
	p.GatewayTransactionID = &gatewayTxID
	p.GatewayReference = &gatewayRef
	p.CompletedAt = &at
	return nil
}

// MarkAsFailed records a gateway decline or error. Failed is terminal;
// the payer retries with a fresh transaction.
func (p *PaymentTransaction) MarkAsFailed(code, message string, at time.Time) error {
	switch p.Status {
	case enums.PaymentStatusPending, enums.PaymentStatusProcessing:
	default:
		return fmt.Errorf("payment %s cannot fail from status %s", p.PaymentNumber, p.Status)
	}
	p.Status = enums.PaymentStatusFailed
	p.ErrorCode = &code
	p.ErrorMessage = &message
	p.FailedAt = &at
	return nil
}

// MarkAsCancelled voids a payment the payer abandoned before charging.
// Once the charge is in flight the payment can only complete or fail.
func (p *PaymentTransaction) MarkAsCancelled() error {
	if p.Status != enums.PaymentStatusPending {
		return fmt.Errorf("payment %s cannot be cancelled from status %s", p.PaymentNumber, p.Status)
	}
	p.Status = enums.PaymentStatusCancelled
	return nil
}

// CanBeRefunded reports whether a refund may be issued. Only completed
// payments qualify, and only once.
func (p *PaymentTransaction) CanBeRefunded() bool {
	return p.Status == enums.PaymentStatusCompleted
}

// ProcessRefund records a refund of a completed payment, up to the
// amount originally charged.
func (p *PaymentTransaction) ProcessRefund(amount decimal.Decimal, reason string, refundedBy uuid.UUID, at time.Time) error {
	if !p.CanBeRefunded() {
		return fmt.Errorf("payment %s cannot be refunded from status %s", p.PaymentNumber, p.Status)
	}
	if !amount.IsPositive() || amount.GreaterThan(p.TotalAmount) {
		return fmt.Errorf("refund amount %s on payment %s must be positive and at most %s", amount, p.PaymentNumber, p.TotalAmount)
	}
	p.Status = enums.PaymentStatusRefunded
	p.RefundAmount = &amount
	p.RefundReason = &reason
	p.RefundedBy = &refundedBy
	p.RefundedAt = &at
	return nil
}

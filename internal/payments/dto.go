package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ovrpay/ovrpay-backend/pkg/db/models"
	"github.com/ovrpay/ovrpay-backend/pkg/enums"
)

// InitiateInput is the payload a payer submits to settle a violation.
type InitiateInput struct {
	OVRNumber string `json:"ovrNumber" validate:"required"`

	PayerName  string     `json:"payerName" validate:"required,min=2,max=120"`
	PayerEmail string     `json:"payerEmail" validate:"required,email"`
	PayerPhone *string    `json:"payerPhone,omitempty" validate:"omitempty,max=20"`
	PayerUser  *uuid.UUID `json:"-"`

	Amount        decimal.Decimal `json:"amount" validate:"required"`
	PaymentMethod string          `json:"paymentMethod" validate:"required"`
	// SourceToken is the tokenized payment instrument. Never logged or echoed.
	SourceToken string `json:"sourceToken" validate:"required"`
}

// RefundInput is the payload an administrator submits to reverse a
// completed payment. Amount defaults to the full amount charged.
type RefundInput struct {
	PaymentID  uuid.UUID        `json:"-"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Reason     string           `json:"reason" validate:"required,min=5,max=500"`
	RefundedBy uuid.UUID        `json:"-"`
}

// PaymentView is the caller-facing projection of a payment transaction.
// Raw gateway responses stay out of it.
type PaymentView struct {
	ID            uuid.UUID `json:"id"`
	PaymentNumber string    `json:"paymentNumber"`
	ReceiptNumber string    `json:"receiptNumber"`

	ViolationID    uuid.UUID `json:"violationId"`
	OVRNumber      string    `json:"ovrNumber"`
	CitationNumber string    `json:"citationNumber"`

	PayerName  string  `json:"payerName"`
	PayerEmail string  `json:"payerEmail"`
	PayerPhone *string `json:"payerPhone,omitempty"`

	Amount        decimal.Decimal     `json:"amount"`
	ProcessingFee decimal.Decimal     `json:"processingFee"`
	TotalAmount   decimal.Decimal     `json:"totalAmount"`
	RefundAmount  *decimal.Decimal    `json:"refundAmount,omitempty"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`

	Status       enums.PaymentStatus `json:"status"`
	ErrorCode    *string             `json:"errorCode,omitempty"`
	ErrorMessage *string             `json:"errorMessage,omitempty"`

	QRPayload *string `json:"qrPayload,omitempty"`

	InitiatedAt time.Time  `json:"initiatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	FailedAt    *time.Time `json:"failedAt,omitempty"`
	RefundedAt  *time.Time `json:"refundedAt,omitempty"`
}

// NewView projects a transaction for responses.
func NewView(p *models.PaymentTransaction) *PaymentView {
	if p == nil {
		return nil
	}
	return &PaymentView{
		ID:            p.ID,
		PaymentNumber: p.PaymentNumber,
		ReceiptNumber: p.ReceiptNumber,

		ViolationID:    p.ViolationID,
		OVRNumber:      p.OVRNumber,
		CitationNumber: p.CitationNumber,

		PayerName:  p.PayerName,
		PayerEmail: p.PayerEmail,
		PayerPhone: p.PayerPhone,

		Amount:        p.Amount,
		ProcessingFee: p.ProcessingFee,
		TotalAmount:   p.TotalAmount,
		RefundAmount:  p.RefundAmount,
		PaymentMethod: p.PaymentMethod,

		Status:       p.Status,
		ErrorCode:    p.ErrorCode,
		ErrorMessage: p.ErrorMessage,

		QRPayload: p.QRPayload,

		InitiatedAt: p.InitiatedAt,
		CompletedAt: p.CompletedAt,
		FailedAt:    p.FailedAt,
		RefundedAt:  p.RefundedAt,
	}
}

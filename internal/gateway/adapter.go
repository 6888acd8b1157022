// Package gateway abstracts the card/e-wallet processor behind a small
// charge-and-refund surface so payment logic never touches SDK types.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// ChargeRequest describes a single charge attempt.
type ChargeRequest struct {
	// SourceToken is the tokenized card or e-wallet handle collected
	// by the client SDK. Never logged.
	SourceToken     string
	Amount          decimal.Decimal
	Currency        string
	ReferenceNumber string
	Note            string
	// IdempotencyKey makes retried charges safe at the processor.
	IdempotencyKey string
}

// ChargeResult is the processor's answer to a successful charge.
type ChargeResult struct {
	TransactionID string
	Reference     string
	RawResponse   string
}

// RefundRequest describes a full refund of a prior charge.
type RefundRequest struct {
	TransactionID  string
	Amount         decimal.Decimal
	Currency       string
	Reason         string
	IdempotencyKey string
}

// RefundResult is the processor's answer to a successful refund.
type RefundResult struct {
	RefundID    string
	RawResponse string
}

// Adapter is the processor contract. Implementations must be safe for
// concurrent use.
type Adapter interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

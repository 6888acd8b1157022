package gateway

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/ovrpay/ovrpay-backend/pkg/errors"
)

func TestSandboxChargeAndRefund(t *testing.T) {
	a := NewSandboxAdapter()
	ctx := context.Background()

	result, err := a.Charge(ctx, ChargeRequest{
		SourceToken:     "tok-ok-123",
		Amount:          decimal.RequireFromString("525.00"),
		Currency:        "PHP",
		ReferenceNumber: "PAY20260312345",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TransactionID == "" {
		t.Fatal("expected a transaction id")
	}

	refund, err := a.Refund(ctx, RefundRequest{
		TransactionID: result.TransactionID,
		Amount:        decimal.RequireFromString("525.00"),
		Currency:      "PHP",
		Reason:        "duplicate charge",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refund.RefundID == "" {
		t.Fatal("expected a refund id")
	}

	if _, err := a.Refund(ctx, RefundRequest{TransactionID: result.TransactionID}); err == nil {
		t.Fatal("a sandbox charge refunds at most once")
	}
}

func TestSandboxDeclineToken(t *testing.T) {
	a := NewSandboxAdapter()

	_, err := a.Charge(context.Background(), ChargeRequest{
		SourceToken: SandboxDeclineToken,
		Amount:      decimal.NewFromInt(100),
		Currency:    "PHP",
	})
	if err == nil {
		t.Fatal("expected decline")
	}
	domainErr := pkgerrors.As(err)
	if domainErr == nil || domainErr.Code() != pkgerrors.CodeGateway {
		t.Fatalf("expected gateway error code, got %v", err)
	}
}

func TestSandboxRefundUnknownCharge(t *testing.T) {
	a := NewSandboxAdapter()
	if _, err := a.Refund(context.Background(), RefundRequest{TransactionID: "missing"}); err == nil {
		t.Fatal("expected error for unknown charge")
	}
}

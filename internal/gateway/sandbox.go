package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	pkgerrors "github.com/ovrpay/ovrpay-backend/pkg/errors"
)

// Token prefixes recognized by the sandbox adapter. Anything else charges
// successfully, which keeps local development friction-free.
const (
	SandboxDeclineToken = "tok-decline"
	SandboxErrorToken   = "tok-error"
)

// SandboxAdapter is an in-memory processor for local development and
// tests. Charges succeed unless the source token asks for a failure.
type SandboxAdapter struct {
	mu      sync.Mutex
	charges map[string]ChargeRequest
	refunds map[string]bool
}

// NewSandboxAdapter returns an empty in-memory adapter.
func NewSandboxAdapter() *SandboxAdapter {
	return &SandboxAdapter{
		charges: map[string]ChargeRequest{},
		refunds: map[string]bool{},
	}
}

// Charge records a fake charge, honoring the decline/error test tokens.
func (a *SandboxAdapter) Charge(_ context.Context, req ChargeRequest) (*ChargeResult, error) {
	switch {
	case strings.HasPrefix(req.SourceToken, SandboxDeclineToken):
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "sandbox charge declined")
	case strings.HasPrefix(req.SourceToken, SandboxErrorToken):
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "sandbox processor unavailable")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	txID := "sandbox-" + uuid.NewString()
	a.charges[txID] = req
	return &ChargeResult{
		TransactionID: txID,
		Reference:     req.ReferenceNumber,
		RawResponse:   fmt.Sprintf(`{"sandbox":true,"id":%q}`, txID),
	}, nil
}

// Refund reverses a previously recorded sandbox charge, once.
func (a *SandboxAdapter) Refund(_ context.Context, req RefundRequest) (*RefundResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.charges[req.TransactionID]; !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sandbox charge not found")
	}
	if a.refunds[req.TransactionID] {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "sandbox charge already refunded")
	}
	a.refunds[req.TransactionID] = true

	refundID := "sandbox-refund-" + uuid.NewString()
	return &RefundResult{
		RefundID:    refundID,
		RawResponse: fmt.Sprintf(`{"sandbox":true,"id":%q}`, refundID),
	}, nil
}

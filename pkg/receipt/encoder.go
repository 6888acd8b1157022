// Package receipt builds scannable receipt payloads for completed payments.
package receipt

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payload is the document embedded in a receipt QR code. Field names are
// part of the scanning contract with the mobile verifier app.
type Payload struct {
	ReceiptNumber string          `json:"receiptNumber"`
	PaymentID     uuid.UUID       `json:"paymentId"`
	OVRNumber     string          `json:"ovrNumber"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	CompletedAt   time.Time       `json:"completedAt"`
}

// Encoder renders receipt payloads as base64 JSON data URIs.
type Encoder struct{}

// NewEncoder returns a ready Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode serializes the payload into a data URI suitable for QR rendering.
func (e *Encoder) Encode(payload Payload) (string, error) {
	if payload.ReceiptNumber == "" {
		return "", fmt.Errorf("receipt number is required")
	}
	if payload.PaymentID == uuid.Nil {
		return "", fmt.Errorf("payment id is required")
	}
	if payload.CompletedAt.IsZero() {
		return "", fmt.Errorf("completion time is required")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal receipt payload: %w", err)
	}
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString(raw), nil
}

// Decode parses a data URI produced by Encode. Used by verification tooling.
func (e *Encoder) Decode(uri string) (*Payload, error) {
	const prefix = "data:application/json;base64,"
	if len(uri) <= len(prefix) || uri[:len(prefix)] != prefix {
		return nil, fmt.Errorf("not a receipt data uri")
	}
	raw, err := base64.StdEncoding.DecodeString(uri[len(prefix):])
	if err != nil {
		return nil, fmt.Errorf("decode receipt payload: %w", err)
	}
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal receipt payload: %w", err)
	}
	return &payload, nil
}

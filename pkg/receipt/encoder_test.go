package receipt

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc := NewEncoder()
	payload := Payload{
		ReceiptNumber: "RCP2026031234",
		PaymentID:     uuid.New(),
		OVRNumber:     "OVR2026035678",
		TotalAmount:   decimal.RequireFromString("675.56"),
		CompletedAt:   time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC),
	}

	uri, err := enc.Encode(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(uri, "data:application/json;base64,") {
		t.Fatalf("unexpected uri prefix: %q", uri)
	}

	decoded, err := enc.Decode(uri)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.ReceiptNumber != payload.ReceiptNumber {
		t.Fatalf("receipt number mismatch: %q", decoded.ReceiptNumber)
	}
	if decoded.PaymentID != payload.PaymentID {
		t.Fatal("payment id mismatch")
	}
	if !decoded.TotalAmount.Equal(payload.TotalAmount) {
		t.Fatalf("amount mismatch: %s", decoded.TotalAmount)
	}
	if !decoded.CompletedAt.Equal(payload.CompletedAt) {
		t.Fatalf("completion time mismatch: %s", decoded.CompletedAt)
	}
}

func TestEncodeValidation(t *testing.T) {
	enc := NewEncoder()
	base := Payload{
		ReceiptNumber: "RCP2026031234",
		PaymentID:     uuid.New(),
		CompletedAt:   time.Now(),
	}

	missingReceipt := base
	missingReceipt.ReceiptNumber = ""
	if _, err := enc.Encode(missingReceipt); err == nil {
		t.Fatal("expected error for missing receipt number")
	}

	missingID := base
	missingID.PaymentID = uuid.Nil
	if _, err := enc.Encode(missingID); err == nil {
		t.Fatal("expected error for missing payment id")
	}

	missingTime := base
	missingTime.CompletedAt = time.Time{}
	if _, err := enc.Encode(missingTime); err == nil {
		t.Fatal("expected error for missing completion time")
	}
}

func TestDecodeRejectsForeignURIs(t *testing.T) {
	enc := NewEncoder()
	if _, err := enc.Decode("https://example.com/receipt"); err == nil {
		t.Fatal("expected error for non data uri")
	}
	if _, err := enc.Decode("data:application/json;base64,!!!"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}

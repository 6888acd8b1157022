package enums

import "testing"

func TestParseViolationStatus(t *testing.T) {
	status, err := ParseViolationStatus("overdue")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != ViolationStatusOverdue {
		t.Fatalf("got %q", status)
	}
	if _, err := ParseViolationStatus("expired"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestViolationStatusTerminal(t *testing.T) {
	terminal := []ViolationStatus{ViolationStatusPaid, ViolationStatusDismissed, ViolationStatusCancelled}
	for _, status := range terminal {
		if !status.IsTerminal() {
			t.Fatalf("%q should be terminal", status)
		}
	}
	open := []ViolationStatus{ViolationStatusPending, ViolationStatusDisputed, ViolationStatusOverdue}
	for _, status := range open {
		if status.IsTerminal() {
			t.Fatalf("%q should not be terminal", status)
		}
	}
}

func TestViolationStatusPayable(t *testing.T) {
	if !ViolationStatusPending.IsPayable() || !ViolationStatusOverdue.IsPayable() {
		t.Fatal("pending and overdue violations must accept payments")
	}
	if ViolationStatusPaid.IsPayable() || ViolationStatusDisputed.IsPayable() {
		t.Fatal("paid and disputed violations must not accept payments")
	}
}

func TestPaymentStatusTerminal(t *testing.T) {
	if PaymentStatusCompleted.IsTerminal() {
		t.Fatal("completed must stay refundable")
	}
	for _, status := range []PaymentStatus{PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded} {
		if !status.IsTerminal() {
			t.Fatalf("%q should be terminal", status)
		}
	}
}

func TestParseRejectsEmptyValues(t *testing.T) {
	if _, err := ParsePaymentStatus(""); err == nil {
		t.Fatal("expected error for empty payment status")
	}
	if _, err := ParseDisputeStatus(""); err == nil {
		t.Fatal("expected error for empty dispute status")
	}
	if _, err := ParsePaymentMethod(""); err == nil {
		t.Fatal("expected error for empty payment method")
	}
	if _, err := ParseViolationType(""); err == nil {
		t.Fatal("expected error for empty violation type")
	}
	if _, err := ParseVehicleType(""); err == nil {
		t.Fatal("expected error for empty vehicle type")
	}
	if _, err := ParseUserRole(""); err == nil {
		t.Fatal("expected error for empty user role")
	}
	if _, err := ParseNotificationType(""); err == nil {
		t.Fatal("expected error for empty notification type")
	}
}

func TestEnumsRoundTrip(t *testing.T) {
	for _, method := range validPaymentMethods {
		parsed, err := ParsePaymentMethod(method.String())
		if err != nil || parsed != method {
			t.Fatalf("round trip failed for %q: %v", method, err)
		}
	}
	for _, role := range validUserRoles {
		if !role.IsValid() {
			t.Fatalf("%q should be valid", role)
		}
	}
}

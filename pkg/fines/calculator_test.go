package fines

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func fixedNow() time.Time {
	return time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
}

func newTestCalculator() *Calculator {
	return NewCalculatorAt(fixedNow)
}

func TestTotalFine(t *testing.T) {
	c := newTestCalculator()

	total, err := c.TotalFine(decimal.NewFromInt(500), decimal.RequireFromString("150.555"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total.String() != "650.56" {
		t.Fatalf("expected 650.56, got %s", total)
	}

	total, err = c.TotalFine(decimal.RequireFromString("1000.00"), decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !total.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected 1000, got %s", total)
	}
}

func TestTotalFineRejectsNegatives(t *testing.T) {
	c := newTestCalculator()
	if _, err := c.TotalFine(decimal.NewFromInt(-1), decimal.Zero); err == nil {
		t.Fatal("expected error for negative base fine")
	}
	if _, err := c.TotalFine(decimal.NewFromInt(500), decimal.NewFromInt(-10)); err == nil {
		t.Fatal("expected error for negative penalties")
	}
}

func TestTotalAmount(t *testing.T) {
	c := newTestCalculator()

	total, err := c.TotalAmount(decimal.RequireFromString("650.56"), decimal.RequireFromString("25.00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total.String() != "675.56" {
		t.Fatalf("expected 675.56, got %s", total)
	}

	if _, err := c.TotalAmount(decimal.Zero, decimal.Zero); err == nil {
		t.Fatal("expected error for zero amount")
	}
	if _, err := c.TotalAmount(decimal.NewFromInt(100), decimal.NewFromInt(-1)); err == nil {
		t.Fatal("expected error for negative fee")
	}
}

func TestPaymentDeadline(t *testing.T) {
	c := newTestCalculator()

	issued := time.Date(2026, time.March, 1, 9, 30, 0, 0, time.UTC)
	deadline, err := c.PaymentDeadline(issued)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := issued.Add(30 * 24 * time.Hour)
	if !deadline.Equal(want) {
		t.Fatalf("expected %s, got %s", want, deadline)
	}
}

func TestPaymentDeadlineRejectsFutureDates(t *testing.T) {
	c := newTestCalculator()
	if _, err := c.PaymentDeadline(fixedNow().Add(time.Hour)); err == nil {
		t.Fatal("expected error for future violation date")
	}
	if _, err := c.PaymentDeadline(time.Time{}); err == nil {
		t.Fatal("expected error for zero violation date")
	}
}

func TestIsOverdue(t *testing.T) {
	c := newTestCalculator()

	if c.IsOverdue(fixedNow().Add(time.Hour)) {
		t.Fatal("deadline in the future should not be overdue")
	}
	if !c.IsOverdue(fixedNow().Add(-time.Minute)) {
		t.Fatal("deadline in the past should be overdue")
	}
	if c.IsOverdue(time.Time{}) {
		t.Fatal("zero deadline should not be overdue")
	}
}

func TestDaysUntilDue(t *testing.T) {
	c := newTestCalculator()

	if got := c.DaysUntilDue(fixedNow().Add(5 * 24 * time.Hour)); got != 5 {
		t.Fatalf("expected 5 days, got %d", got)
	}
	if got := c.DaysUntilDue(fixedNow().Add(-3 * 24 * time.Hour)); got != -3 {
		t.Fatalf("expected -3 days, got %d", got)
	}
}

func TestDaysUntilDueRoundsUp(t *testing.T) {
	c := newTestCalculator()

	if got := c.DaysUntilDue(fixedNow().Add(12 * time.Hour)); got != 1 {
		t.Fatalf("half a day remaining should count as 1 day, got %d", got)
	}
	if got := c.DaysUntilDue(fixedNow().Add(-36 * time.Hour)); got != -1 {
		t.Fatalf("a day and a half late should count as -1, got %d", got)
	}
}

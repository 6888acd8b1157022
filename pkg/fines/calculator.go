// Package fines implements the monetary rules for citations and payments.
// All amounts use decimal arithmetic; float64 is never used for money.
package fines

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentWindow is how long a violator has to settle before the
// citation becomes overdue.
const PaymentWindow = 30 * 24 * time.Hour

// Calculator derives fine totals and deadlines for a violation.
type Calculator struct {
	now func() time.Time
}

// NewCalculator returns a Calculator using the wall clock.
func NewCalculator() *Calculator {
	return &Calculator{now: time.Now}
}

// NewCalculatorAt returns a Calculator with an injected clock, for tests.
func NewCalculatorAt(now func() time.Time) *Calculator {
	return &Calculator{now: now}
}

// TotalFine returns baseFine plus additionalPenalties rounded to two places.
func (c *Calculator) TotalFine(baseFine, additionalPenalties decimal.Decimal) (decimal.Decimal, error) {
	if baseFine.IsNegative() {
		return decimal.Zero, fmt.Errorf("base fine must not be negative, got %s", baseFine)
	}
	if additionalPenalties.IsNegative() {
		return decimal.Zero, fmt.Errorf("additional penalties must not be negative, got %s", additionalPenalties)
	}
	return baseFine.Add(additionalPenalties).Round(2), nil
}

// TotalAmount returns the amount charged to the payer including the
// processing fee, rounded to two places.
func (c *Calculator) TotalAmount(amount, processingFee decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("payment amount must be positive, got %s", amount)
	}
	if processingFee.IsNegative() {
		return decimal.Zero, fmt.Errorf("processing fee must not be negative, got %s", processingFee)
	}
	return amount.Add(processingFee).Round(2), nil
}

// PaymentDeadline returns the settlement deadline for a violation
// recorded at violationDate.
func (c *Calculator) PaymentDeadline(violationDate time.Time) (time.Time, error) {
	if violationDate.IsZero() {
		return time.Time{}, fmt.Errorf("violation date is required")
	}
	if violationDate.After(c.now()) {
		return time.Time{}, fmt.Errorf("violation date %s is in the future", violationDate.Format(time.RFC3339))
	}
	return violationDate.Add(PaymentWindow), nil
}

// IsOverdue reports whether an unpaid violation with the given deadline
// has passed its payment window.
func (c *Calculator) IsOverdue(deadline time.Time) bool {
	return !deadline.IsZero() && c.now().After(deadline)
}

// DaysUntilDue returns days remaining before the deadline, rounded up
// so a partial day still counts as one. Overdue deadlines return a
// negative count.
func (c *Calculator) DaysUntilDue(deadline time.Time) int {
	remaining := deadline.Sub(c.now())
	return int(math.Ceil(remaining.Hours() / 24))
}

// Package refnum generates human-readable reference numbers for
// violations, citations, payments and receipts.
package refnum

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"
)

// Kind selects the prefix and suffix width of a reference number.
type Kind string

const (
	KindViolation Kind = "OVR"
	KindCitation  Kind = "CIT"
	KindPayment   Kind = "PAY"
	KindReceipt   Kind = "RCP"
)

// Payment numbers carry an extra digit because payment volume exceeds
// citation volume within a month.
const (
	defaultDigits = 4
	paymentDigits = 5
)

var pattern = regexp.MustCompile(`^(OVR|CIT|PAY|RCP)(\d{4})(0[1-9]|1[0-2])(\d{4,5})$`)

func (k Kind) digits() int {
	if k == KindPayment {
		return paymentDigits
	}
	return defaultDigits
}

// Generator mints reference numbers of the form PREFIX + YYYY + MM + digits.
// Suffixes are random, so callers must retry on unique constraint conflicts.
type Generator struct {
	now func() time.Time
}

// NewGenerator returns a Generator using the wall clock.
func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// NewGeneratorAt returns a Generator with an injected clock, for tests.
func NewGeneratorAt(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// Generate mints a new reference number of the given kind.
func (g *Generator) Generate(kind Kind) (string, error) {
	switch kind {
	case KindViolation, KindCitation, KindPayment, KindReceipt:
	default:
		return "", fmt.Errorf("unknown reference kind %q", kind)
	}

	digits := kind.digits()
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("read random suffix: %w", err)
	}

	ts := g.now().UTC()
	return fmt.Sprintf("%s%04d%02d%0*d", kind, ts.Year(), int(ts.Month()), digits, n.Int64()), nil
}

// Validate reports whether value is a well-formed reference number of kind.
func Validate(kind Kind, value string) bool {
	matches := pattern.FindStringSubmatch(value)
	if matches == nil {
		return false
	}
	if Kind(matches[1]) != kind {
		return false
	}
	return len(matches[4]) == kind.digits()
}

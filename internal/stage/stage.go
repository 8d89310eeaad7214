// Package stage derives a case's lifecycle stage from its due state and its
// follow-up and payment history. Collect computes the shared signals once;
// Classify, ListLabel and CommitStatus are projections of those signals.
package stage

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Stage is the canonical lifecycle stage of a case.
type Stage string

const (
	Completed     Stage = "completed"
	Pending       Stage = "pending"
	PartiallyPaid Stage = "partiallyPaid"
	Expired       Stage = "expired"
	Unknown       Stage = "unknown"
)

// All lists the stages in classification order.
var All = []Stage{Completed, Pending, PartiallyPaid, Expired, Unknown}

// Case holds the due state of a case.
type Case struct {
	CaseNo       string
	EmiAmount    decimal.Decimal
	DueEmiAmount decimal.NullDecimal
	DueEmi       *int
	Expired      bool
}

// Retired reports whether the case dropped out of the latest upload.
func (c Case) Retired() bool {
	return c.Expired || !c.DueEmiAmount.Valid
}

// Due returns the outstanding amount, zero when retired.
func (c Case) Due() decimal.Decimal {
	if !c.DueEmiAmount.Valid {
		return decimal.Zero
	}
	return c.DueEmiAmount.Decimal
}

// FollowUp is the part of a follow-up the classifier reads.
type FollowUp struct {
	Date   time.Time
	Commit *time.Time
}

// Payment is the part of a payment the classifier reads.
type Payment struct {
	Date   time.Time
	Amount decimal.Decimal
}

// MaxDueEmi is the largest instalment count a case row can hold.
const MaxDueEmi = math.MaxInt32

var maxDueEmi = decimal.NewFromInt(MaxDueEmi)

// DueEmi is ceil(due / emi), or 0 when emi is not positive. Counts above
// MaxDueEmi saturate.
func DueEmi(due, emi decimal.Decimal) int {
	if !emi.IsPositive() || !due.IsPositive() {
		return 0
	}
	n := due.Div(emi).Ceil()
	if n.GreaterThan(maxDueEmi) {
		return MaxDueEmi
	}
	return int(n.IntPart())
}

// DueEmiPtr returns DueEmi for a nullable due amount.
func DueEmiPtr(due decimal.NullDecimal, emi decimal.Decimal) *int {
	if !due.Valid {
		return nil
	}
	n := DueEmi(due.Decimal, emi)
	return &n
}

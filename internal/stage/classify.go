package stage

import (
	"time"

	"github.com/shopspring/decimal"
)

func dueEmiOf(c Case) int {
	if c.DueEmi != nil {
		return *c.DueEmi
	}
	return DueEmi(c.Due(), c.EmiAmount)
}

// Classify assigns the stage of c. The first matching branch wins. Retired
// cases carry no due amount and classify as expired before anything else.
func Classify(c Case, s Signals) Stage {
	if c.Retired() {
		return Expired
	}

	dueEmi := dueEmiOf(c)
	due := c.Due()
	owing := dueEmi > 0 && due.IsPositive()

	switch {
	case dueEmi == 0 || due.IsZero():
		return Completed
	case owing && len(s.FutureFollowUps) > 0:
		return Pending
	case owing && s.PaymentCount > 0 && s.HasPromiseAfterLatestPayment():
		return PartiallyPaid
	case owing && len(s.FutureFollowUps) == 0 && len(s.PaymentsAfterLastPTP) == 0:
		return Expired
	default:
		return Unknown
	}
}

// List labels shown on case lists.
const (
	LabelDuePayment = "Due Payment"
	LabelPaid       = "Paid"
	LabelExpired    = "Expired"
)

// ListLabel is the three-way label of the case list.
func ListLabel(c Case, s Signals) string {
	switch Classify(c, s) {
	case Completed:
		return LabelPaid
	case Expired:
		return LabelExpired
	default:
		return LabelDuePayment
	}
}

// Commit states of a follow-up.
const (
	CommitFulfilled = "fulfilled"
	CommitPending   = "pending"
	CommitExpired   = "expired"
)

// CommitStatus reports whether the promise on fu was kept. A promise is
// fulfilled when the case is paid off or a payment dated on or after the
// follow-up falls between the start of the commit day and the end of that
// day plus window. An unfulfilled promise is pending while it is still open.
// Follow-ups without a promise return "".
func CommitStatus(c Case, fu FollowUp, payments []Payment, now time.Time, window time.Duration, loc *time.Location) string {
	if fu.Commit == nil {
		return ""
	}
	if c.DueEmiAmount.Valid && c.DueEmiAmount.Decimal.Equal(decimal.Zero) {
		return CommitFulfilled
	}

	from, to := DayBounds(*fu.Commit, loc)
	to = to.Add(window)
	for _, p := range payments {
		if p.Date.Before(fu.Date) {
			continue
		}
		if !p.Date.Before(from) && !p.Date.After(to) {
			return CommitFulfilled
		}
	}

	if IsFuture(fu.Commit, now) {
		return CommitPending
	}
	return CommitExpired
}

// DayBounds returns the first and last instant of t's calendar day in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

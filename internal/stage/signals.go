package stage

import "time"

// Signals are the facts every projection is derived from.
type Signals struct {
	FutureFollowUps      []FollowUp
	PastFollowUps        []FollowUp
	LastPTPDate          *time.Time
	PaymentsAfterLastPTP []Payment
	LatestPaymentDate    *time.Time
	PaymentCount         int
	IsBrokenPTP          bool
}

// IsFuture reports whether a promise is still open at now.
func IsFuture(commit *time.Time, now time.Time) bool {
	return commit != nil && !commit.Before(now)
}

// Collect computes the signals of c.
func Collect(c Case, followUps []FollowUp, payments []Payment, now time.Time) Signals {
	var s Signals

	for _, fu := range followUps {
		if IsFuture(fu.Commit, now) {
			s.FutureFollowUps = append(s.FutureFollowUps, fu)
			continue
		}
		s.PastFollowUps = append(s.PastFollowUps, fu)
		if fu.Commit != nil && (s.LastPTPDate == nil || fu.Commit.After(*s.LastPTPDate)) {
			commit := *fu.Commit
			s.LastPTPDate = &commit
		}
	}

	s.PaymentCount = len(payments)
	for _, p := range payments {
		if s.LatestPaymentDate == nil || p.Date.After(*s.LatestPaymentDate) {
			date := p.Date
			s.LatestPaymentDate = &date
		}
		if s.LastPTPDate != nil && p.Date.After(*s.LastPTPDate) {
			s.PaymentsAfterLastPTP = append(s.PaymentsAfterLastPTP, p)
		}
	}

	s.IsBrokenPTP = len(s.FutureFollowUps) == 0 &&
		c.Due().IsPositive() &&
		len(s.PaymentsAfterLastPTP) == 0
	return s
}

// BrokenPromise reports a promise to pay that lapsed with dues outstanding,
// no payment after it and no renewed promise. Cases that never had a
// promise are not broken promises.
func (s Signals) BrokenPromise() bool {
	return s.IsBrokenPTP && s.LastPTPDate != nil
}

// HasPromiseAfterLatestPayment reports whether some open promise is dated
// after the latest payment.
func (s Signals) HasPromiseAfterLatestPayment() bool {
	if s.LatestPaymentDate == nil {
		return false
	}
	for _, fu := range s.FutureFollowUps {
		if fu.Commit.After(*s.LatestPaymentDate) {
			return true
		}
	}
	return false
}

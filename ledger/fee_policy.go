package ledger

import (
	"errors"
	"time"
)

const (
	// DefaultLoanPeriod is the time between borrow date and due date.
	DefaultLoanPeriod = 5 * 24 * time.Hour

	// DefaultDailyLateFee is charged per whole overdue day, in currency minor units.
	DefaultDailyLateFee = int64(5000)

	day = 24 * time.Hour
)

var (
	ErrInvalidLoanPeriod   = errors.New("loan period must be positive")
	ErrInvalidDailyLateFee = errors.New("daily late fee must not be negative")
)

// FeePolicy computes due dates and late fees.
type FeePolicy struct {
	loanPeriod   time.Duration
	dailyLateFee int64
}

// DefaultFeePolicy returns the policy of a five-day loan with a flat fee of 5000 per overdue day.
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{
		loanPeriod:   DefaultLoanPeriod,
		dailyLateFee: DefaultDailyLateFee,
	}
}

// BuildFeePolicy creates a FeePolicy with custom values.
func BuildFeePolicy(loanPeriod time.Duration, dailyLateFee int64) (FeePolicy, error) {
	if loanPeriod <= 0 {
		return FeePolicy{}, ErrInvalidLoanPeriod
	}

	if dailyLateFee < 0 {
		return FeePolicy{}, ErrInvalidDailyLateFee
	}

	return FeePolicy{loanPeriod: loanPeriod, dailyLateFee: dailyLateFee}, nil
}

// LoanPeriod returns the configured loan period.
func (p FeePolicy) LoanPeriod() time.Duration {
	return p.loanPeriod
}

// DailyLateFee returns the configured fee per overdue day.
func (p FeePolicy) DailyLateFee() int64 {
	return p.dailyLateFee
}

// DueDate returns the due date for a loan starting at borrowDate.
func (p FeePolicy) DueDate(borrowDate time.Time) time.Time {
	return borrowDate.Add(p.loanPeriod)
}

// OverdueDays returns the number of whole days now is past dueDate.
// A return at exactly the due date is not overdue.
func (p FeePolicy) OverdueDays(dueDate, now time.Time) int64 {
	if !now.After(dueDate) {
		return 0
	}

	return int64(now.Sub(dueDate) / day)
}

// Assess returns the terminal status and the late fee for a return at now.
// Less than one whole day late counts as on time, so status and fee never disagree.
func (p FeePolicy) Assess(dueDate, now time.Time) (Status, int64) {
	overdueDays := p.OverdueDays(dueDate, now)
	if overdueDays > 0 {
		return StatusOverdue, overdueDays * p.dailyLateFee
	}

	return StatusReturned, 0
}

// Package ledger holds the pure leave arithmetic shared by every operation
// that moves days in or out of a leave balance.
package ledger

import "errors"

// ErrInvertedSpan indicates an end date earlier than its start date.
var ErrInvertedSpan = errors.New("ledger: end date is before start date")

// Span is an inclusive range of calendar days.
type Span struct {
	Start Date
	End   Date
}

// NewSpan builds a validated span.
func NewSpan(start, end Date) (Span, error) {
	s := Span{Start: start, End: end}
	if err := s.Validate(); err != nil {
		return Span{}, err
	}
	return s, nil
}

// Validate reports ErrInvalidDate for missing bounds and ErrInvertedSpan when
// the end precedes the start.
func (s Span) Validate() error {
	if s.Start.IsZero() || s.End.IsZero() {
		return ErrInvalidDate
	}
	if s.End.Before(s.Start) {
		return ErrInvertedSpan
	}
	return nil
}

// Days is the day cost of the span.
func (s Span) Days() int {
	return Days(s.Start, s.End)
}

// Contains reports whether d falls inside the span.
func (s Span) Contains(d Date) bool {
	return !d.Before(s.Start) && !d.After(s.End)
}

// Overlaps reports whether the two spans share at least one day.
func (s Span) Overlaps(other Span) bool {
	return !s.End.Before(other.Start) && !other.End.Before(s.Start)
}

// Clip returns the part of s inside window.
func (s Span) Clip(window Span) (Span, bool) {
	if !s.Overlaps(window) {
		return Span{}, false
	}
	clipped := s
	if clipped.Start.Before(window.Start) {
		clipped.Start = window.Start
	}
	if clipped.End.After(window.End) {
		clipped.End = window.End
	}
	return clipped, true
}

// Days returns the inclusive number of calendar days from start to end. A
// single-day request costs 1.
func Days(start, end Date) int {
	return end.ordinal() - start.ordinal() + 1
}

// Delta is the additional cost of replacing previous with next. A negative
// delta is a refund.
func Delta(previous, next Span) int {
	return next.Days() - previous.Days()
}

// Sufficient reports whether balance covers a debit of days.
func Sufficient(balance, days int) bool {
	return days <= balance
}

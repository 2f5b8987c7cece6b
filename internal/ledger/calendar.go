package ledger

import "errors"

// ErrWindowTooLarge indicates an expansion window longer than MaxWindowDays.
var ErrWindowTooLarge = errors.New("ledger: calendar window too large")

// MaxWindowDays bounds a single calendar expansion.
const MaxWindowDays = 366

// ExpandDays lists every day of span that falls inside window, in order.
func ExpandDays(span, window Span) ([]Date, error) {
	if err := span.Validate(); err != nil {
		return nil, err
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if window.Days() > MaxWindowDays {
		return nil, ErrWindowTooLarge
	}

	clipped, ok := span.Clip(window)
	if !ok {
		return nil, nil
	}

	days := make([]Date, 0, clipped.Days())
	for current := clipped.Start; !current.After(clipped.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days, nil
}

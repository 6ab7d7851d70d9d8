package timeline

import (
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
)

// MaxWindowDays is the longest window a user may set, about five years.
const MaxWindowDays = 5 * 366

// ErrWindowTooLarge is returned when both window ends are set further apart
// than MaxWindowDays.
var ErrWindowTooLarge = errors.New("timeline: window too large")

// Window is an inclusive date range. Either end may be nil (unbounded).
type Window struct {
	From *civil.Date `json:"from,omitempty"`
	To   *civil.Date `json:"to,omitempty"`
}

// DefaultWindow returns [today-7, today+90].
func DefaultWindow(today civil.Date) Window {
	from := today.AddDays(-7)
	to := today.AddDays(90)
	return Window{From: &from, To: &to}
}

// Validate rejects windows longer than MaxWindowDays. Open-ended windows
// are accepted; the layout caps them instead.
func (w Window) Validate() error {
	w = w.normalized()
	if !w.Bounded() {
		return nil
	}
	if days := w.To.DaysSince(*w.From) + 1; days > MaxWindowDays {
		return fmt.Errorf("%w: %d days, at most %d", ErrWindowTooLarge, days, MaxWindowDays)
	}
	return nil
}

// Bounded reports whether both ends are set.
func (w Window) Bounded() bool {
	return validDate(w.From) != nil && validDate(w.To) != nil
}

// normalized drops invalid ends and swaps reversed ends.
func (w Window) normalized() Window {
	from, to := validDate(w.From), validDate(w.To)
	if from != nil && to != nil && to.Before(*from) {
		from, to = to, from
	}
	return Window{From: from, To: to}
}

// Intersects reports whether the task interval [start, end] overlaps the
// window. A task with one date is a single day at that date, a task with
// none always intersects.
func (w Window) Intersects(start, end *civil.Date) bool {
	s, e, ok := span(start, end)
	if !ok {
		return true
	}
	w = w.normalized()
	if w.From != nil && e.Before(*w.From) {
		return false
	}
	if w.To != nil && s.After(*w.To) {
		return false
	}
	return true
}

// Clamp restricts d to the window.
func (w Window) Clamp(d civil.Date) civil.Date {
	w = w.normalized()
	if w.From != nil && d.Before(*w.From) {
		return *w.From
	}
	if w.To != nil && d.After(*w.To) {
		return *w.To
	}
	return d
}

// span resolves a task's dates into an ordered interval. Invalid dates count
// as missing. ok is false when the task has no usable date.
func span(start, end *civil.Date) (s, e civil.Date, ok bool) {
	start, end = validDate(start), validDate(end)
	switch {
	case start != nil && end != nil:
		s, e = *start, *end
	case start != nil:
		s, e = *start, *start
	case end != nil:
		s, e = *end, *end
	default:
		return civil.Date{}, civil.Date{}, false
	}
	if e.Before(s) {
		s, e = e, s
	}
	return s, e, true
}

func validDate(d *civil.Date) *civil.Date {
	if d == nil || d.IsZero() || !d.IsValid() {
		return nil
	}
	return d
}

func minDate(a, b civil.Date) civil.Date {
	if b.Before(a) {
		return b
	}
	return a
}

func maxDate(a, b civil.Date) civil.Date {
	if b.After(a) {
		return b
	}
	return a
}

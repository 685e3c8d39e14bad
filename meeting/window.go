package meeting

// =============================================================================
// WINDOW - The date range a query covers
// =============================================================================

// Window is an inclusive date range [From, To].
type Window struct {
	From Date
	To   Date
}

func NewWindow(from, to Date) Window { return Window{From: from, To: to} }

// Span is the number of whole days from From to To. A single-day window has
// span 0; [Mar 1, Mar 8] has span 7.
func (w Window) Span() int { return DaysBetween(w.From, w.To) }

func (w Window) Validate() error {
	if w.From.IsZero() || w.To.IsZero() || w.To.Before(w.From) {
		return ErrInvalidWindow
	}
	return nil
}

// Contains returns true if d is within [From, To].
func (w Window) Contains(d Date) bool {
	return d.AfterOrEqual(w.From) && d.BeforeOrEqual(w.To)
}

// Truncate clamps the window to at most maxDays from From.
func (w Window) Truncate(maxDays int) Window {
	if w.Span() <= maxDays {
		return w
	}
	return Window{From: w.From, To: w.From.AddDays(maxDays)}
}

// Days returns every date in the window.
func (w Window) Days() []Date {
	var days []Date
	for d := w.From; d.BeforeOrEqual(w.To); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

func (w Window) String() string {
	return "[" + w.From.String() + ", " + w.To.String() + "]"
}

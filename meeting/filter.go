package meeting

import "sort"

// =============================================================================
// FILTER/SORT PIPELINE
// =============================================================================

// Filter holds independently optional predicates, composed by AND. The zero
// Filter matches everything.
type Filter struct {
	// From and To bound the meeting date inclusively; zero means unbounded.
	From Date
	To   Date

	// Staff matches any role participant or attendee by normalized name.
	// Callers resolve raw employee ids to names before filtering.
	Staff string

	CalendarTypes []CalendarType

	// PaidOnly keeps meetings whose subject carries a payment reference.
	PaidOnly bool
}

func (f Filter) Match(m Meeting) bool {
	if !f.From.IsZero() && m.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && m.Date.After(f.To) {
		return false
	}
	if len(f.CalendarTypes) > 0 && !containsType(f.CalendarTypes, m.CalendarType) {
		return false
	}
	if f.PaidOnly && !m.Subject.Paid() {
		return false
	}
	if f.Staff != "" && !matchesStaff(m, NormalizeName(f.Staff)) {
		return false
	}
	return true
}

// Apply returns the matching meetings sorted by date and time. The input is
// not modified.
func (f Filter) Apply(meetings []Meeting) []Meeting {
	out := make([]Meeting, 0, len(meetings))
	for _, m := range meetings {
		if f.Match(m) {
			out = append(out, m)
		}
	}
	SortByTime(out)
	return out
}

// SortByTime orders meetings by date, then by time within a date. Within a
// date, meetings with a time come before meetings without one; ties keep
// input order.
func SortByTime(meetings []Meeting) {
	sort.SliceStable(meetings, func(i, j int) bool {
		a, b := meetings[i], meetings[j]
		if a.Date.Before(b.Date) {
			return true
		}
		if b.Date.Before(a.Date) {
			return false
		}
		return a.Time.Compare(b.Time) < 0
	})
}

func containsType(types []CalendarType, t CalendarType) bool {
	for _, c := range types {
		if c == t {
			return true
		}
	}
	return false
}

func matchesStaff(m Meeting, want string) bool {
	if want == "" {
		return true
	}
	for _, name := range m.StaffNames() {
		if NormalizeName(name) == want {
			return true
		}
	}
	return false
}

/*
Package availability compiles declared staff unavailability into a queryable
index and answers whether a candidate assignment collides with it.

CONSTRUCTION:
  Every UnavailableSlot is placed under its date. Every UnavailableRange is
  expanded into one all-day entry per calendar day in [Start, End]. The
  denormalization trades memory for O(1) lookup by (employee, date).

OVERLAP RULE:
  A timed entry matches a query time t when Start <= t <= End. Both bounds are
  inclusive, so a meeting starting exactly when an unavailable slot ends is a
  conflict. All-day entries match any time on their date. A query without a
  time matches any entry on its date.

PUBLICATION:
  An Index is immutable once built. Holder swaps in a fully built index
  atomically, so the evaluator never reads a partial one.

SEE ALSO:
  - holder.go:    Atomic publish and refresh
  - evaluator.go: Conflict evaluation
*/
package availability

import (
	"time"

	"github.com/warp/meeting-engine/meeting"
)

// maxRangeDays caps range expansion. A range longer than this is truncated
// to its first maxRangeDays days.
const maxRangeDays = 731

// Entry is one unavailable window on one date.
type Entry struct {
	Employee string
	Date     meeting.Date
	Start    meeting.TimeOfDay
	End      meeting.TimeOfDay
	AllDay   bool
	Reason   string

	// FromRange is true when the entry came from an UnavailableRange.
	FromRange bool
}

// Covers reports whether the entry blocks query time t.
func (e Entry) Covers(t meeting.TimeOfDay) bool {
	if e.AllDay || !t.Valid() {
		return true
	}
	return e.Start.Minutes() <= t.Minutes() && t.Minutes() <= e.End.Minutes()
}

type Index struct {
	entries   map[string]map[string][]Entry // normalized name -> date -> entries
	builtAt   time.Time
	employees int
}

// Build compiles the index from employees. Employees without a name are skipped.
func Build(employees []meeting.Employee) *Index {
	ix := &Index{
		entries: make(map[string]map[string][]Entry, len(employees)),
		builtAt: time.Now(),
	}

	for _, emp := range employees {
		key := meeting.NormalizeName(emp.Name)
		if key == "" {
			continue
		}
		ix.employees++

		for _, slot := range emp.UnavailableSlots {
			if slot.Date.IsZero() {
				continue
			}
			entry := Entry{
				Employee: emp.Name,
				Date:     slot.Date,
				Start:    slot.Start,
				End:      slot.End,
				AllDay:   slot.AllDay(),
				Reason:   slot.Reason,
			}
			if !entry.AllDay && entry.End.Minutes() < entry.Start.Minutes() {
				entry.Start, entry.End = entry.End, entry.Start
			}
			ix.add(key, entry)
		}

		for _, r := range emp.UnavailableRanges {
			if r.Start.IsZero() || r.End.IsZero() || r.End.Before(r.Start) {
				continue
			}
			end := r.End
			if meeting.DaysBetween(r.Start, end) >= maxRangeDays {
				end = r.Start.AddDays(maxRangeDays - 1)
			}
			for d := r.Start; d.BeforeOrEqual(end); d = d.AddDays(1) {
				ix.add(key, Entry{
					Employee:  emp.Name,
					Date:      d,
					AllDay:    true,
					Reason:    r.Reason,
					FromRange: true,
				})
			}
		}
	}

	return ix
}

func (ix *Index) add(key string, e Entry) {
	byDate, ok := ix.entries[key]
	if !ok {
		byDate = make(map[string][]Entry)
		ix.entries[key] = byDate
	}
	day := e.Date.String()
	byDate[day] = append(byDate[day], e)
}

// EntriesOn returns every entry for the employee on date d.
func (ix *Index) EntriesOn(name string, d meeting.Date) []Entry {
	if ix == nil {
		return nil
	}
	return ix.entries[meeting.NormalizeName(name)][d.String()]
}

// ReasonFor returns the first entry blocking (name, d, t). All-day entries
// are preferred over timed ones so the broader reason is reported.
func (ix *Index) ReasonFor(name string, d meeting.Date, t meeting.TimeOfDay) (Entry, bool) {
	var timed *Entry
	for _, e := range ix.EntriesOn(name, d) {
		if !e.Covers(t) {
			continue
		}
		if e.AllDay {
			return e, true
		}
		if timed == nil {
			e := e
			timed = &e
		}
	}
	if timed != nil {
		return *timed, true
	}
	return Entry{}, false
}

func (ix *Index) IsUnavailable(name string, d meeting.Date, t meeting.TimeOfDay) bool {
	_, ok := ix.ReasonFor(name, d, t)
	return ok
}

func (ix *Index) BuiltAt() time.Time { return ix.builtAt }

// Employees is the number of named employees compiled into the index.
func (ix *Index) Employees() int { return ix.employees }

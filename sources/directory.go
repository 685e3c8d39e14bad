package sources

import (
	"strings"

	"github.com/warp/meeting-engine/meeting"
)

// =============================================================================
// DIRECTORY - The auxiliary lookup every adapter resolves against
// =============================================================================

// Directory resolves employee ids, names and emails, and carries the
// location/currency Lookup used during shaping. It is built once per fetch
// and is read-only afterwards, so adapters may share it concurrently.
//
// A nil *Directory is valid: nothing resolves and the seed Lookup is used.
type Directory struct {
	employees []meeting.Employee
	byID      map[string]meeting.Employee
	byName    map[string]meeting.Employee
	byEmail   map[string]meeting.Employee
	byPattern map[string]meeting.Employee // "firstname.lastname" -> employee
	lookup    *meeting.Lookup
}

func NewDirectory(employees []meeting.Employee, lookup *meeting.Lookup) *Directory {
	if lookup == nil {
		lookup = meeting.NewLookup(nil, nil)
	}
	d := &Directory{
		employees: employees,
		byID:      make(map[string]meeting.Employee, len(employees)),
		byName:    make(map[string]meeting.Employee, len(employees)),
		byEmail:   make(map[string]meeting.Employee, len(employees)),
		byPattern: make(map[string]meeting.Employee, len(employees)),
		lookup:    lookup,
	}
	for _, e := range employees {
		if id := strings.TrimSpace(e.ID); id != "" {
			d.byID[id] = e
		}
		if name := meeting.NormalizeName(e.Name); name != "" {
			if _, dup := d.byName[name]; !dup {
				d.byName[name] = e
			}
		}
		if email := normalizeEmail(e.Email); email != "" {
			d.byEmail[email] = e
		}
		if p := namePattern(e.Name); p != "" {
			if _, dup := d.byPattern[p]; !dup {
				d.byPattern[p] = e
			}
		}
	}
	return d
}

func (d *Directory) Employees() []meeting.Employee {
	if d == nil {
		return nil
	}
	return d.employees
}

func (d *Directory) Lookup() *meeting.Lookup {
	if d == nil || d.lookup == nil {
		return meeting.NewLookup(nil, nil)
	}
	return d.lookup
}

func (d *Directory) ByID(id string) (meeting.Employee, bool) {
	if d == nil {
		return meeting.Employee{}, false
	}
	e, ok := d.byID[strings.TrimSpace(id)]
	return e, ok
}

func (d *Directory) ByName(name string) (meeting.Employee, bool) {
	if d == nil {
		return meeting.Employee{}, false
	}
	e, ok := d.byName[meeting.NormalizeName(name)]
	return e, ok
}

func (d *Directory) ByEmail(email string) (meeting.Employee, bool) {
	if d == nil {
		return meeting.Employee{}, false
	}
	e, ok := d.byEmail[normalizeEmail(email)]
	return e, ok
}

// ResolveRole turns a raw role column into a Participant. The column may hold
// an employee id or a display name. An id or name that matches nobody is kept
// as raw text so it is still shown.
func (d *Directory) ResolveRole(raw string) meeting.Participant {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return meeting.Participant{}
	}
	if e, ok := d.ByID(raw); ok {
		return meeting.Resolved(e.Ref())
	}
	if e, ok := d.ByName(raw); ok {
		return meeting.Resolved(e.Ref())
	}
	return meeting.Raw(raw)
}

// AttendeeName maps an attendee email to a display name: the email table
// first, then the firstname.lastname local-part pattern, else the email itself.
func (d *Directory) AttendeeName(email string) string {
	email = strings.TrimSpace(email)
	if e, ok := d.ByEmail(email); ok && e.Name != "" {
		return e.Name
	}
	if d != nil {
		local, _, ok := strings.Cut(normalizeEmail(email), "@")
		if ok {
			if e, found := d.byPattern[local]; found {
				return e.Name
			}
		}
	}
	return email
}

func normalizeEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimPrefix(s, "mailto:")
}

// namePattern derives the "firstname.lastname" local part for a name. Names
// with a single word have no pattern.
func namePattern(name string) string {
	parts := strings.Fields(strings.ToLower(name))
	if len(parts) < 2 {
		return ""
	}
	return parts[0] + "." + parts[len(parts)-1]
}

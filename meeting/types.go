/*
Package meeting provides the canonical model and the pure algorithms of the
meeting reconciliation engine.

PURPOSE:
  Three independently keyed sources (current leads, legacy leads, the staff
  calendar) describe meetings in three different shapes. This package defines
  the one shape they are all turned into, and the algorithms that operate on
  that shape without doing any I/O.

KEY CONCEPTS IN THIS FILE (types.go):
  - Meeting:     Canonical, post-reconciliation meeting record
  - Identity:    Structural identity used for duplicate detection
  - Participant: Raw(string) | Resolved(EmployeeRef), resolved once at the
                 adapter boundary and never type-sniffed downstream
  - Employee:    Staff member with declared unavailability
  - RawMeeting:  Row shape returned by the Store, before shaping

DESIGN PRINCIPLES:
  1. Meetings are read-only snapshots of a query window. Nothing here persists them.
  2. Identity is compared structurally, never by prefix-stripping strings.
  3. Money uses decimal.Decimal; totals are indicative, not accounting-grade.

SEE ALSO:
  - reconcile.go: Merge rules across sources
  - currency.go:  Currency normalization and NIS totals
  - filter.go:    Filter/Sort pipeline
  - store.go:     Collaborator interfaces
*/
package meeting

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SOURCE KIND
// =============================================================================

type SourceKind string

const (
	SourceCurrent SourceKind = "current"
	SourceLegacy  SourceKind = "legacy"
	SourceStaff   SourceKind = "staff"
)

// AllSources lists the sources in merge-priority order.
var AllSources = []SourceKind{SourceCurrent, SourceLegacy, SourceStaff}

func ParseSourceKind(s string) (SourceKind, bool) {
	switch SourceKind(strings.ToLower(strings.TrimSpace(s))) {
	case SourceCurrent:
		return SourceCurrent, true
	case SourceLegacy:
		return SourceLegacy, true
	case SourceStaff:
		return SourceStaff, true
	}
	return "", false
}

// =============================================================================
// IDENTITY
// =============================================================================

const (
	legacyKeyPrefix = "legacy_"
	staffKeyPrefix  = "staff_"
)

// Identity identifies the underlying record a Meeting was shaped from.
//
// LegacyBackRef is only set on current-source meetings that were migrated
// from a legacy lead; it holds the legacy record's raw id.
type Identity struct {
	Source        SourceKind
	RawID         string
	LegacyBackRef string
}

// Key is the canonical Meeting.ID. Legacy and staff keys carry a prefix so
// the three raw id spaces cannot collide.
func (id Identity) Key() string {
	switch id.Source {
	case SourceLegacy:
		return legacyKeyPrefix + id.RawID
	case SourceStaff:
		return staffKeyPrefix + id.RawID
	default:
		return id.RawID
	}
}

// ParseIdentity reverses Key. It is used only at the API boundary to route a
// write to the right source table; reconciliation never calls it.
func ParseIdentity(key string) Identity {
	switch {
	case strings.HasPrefix(key, legacyKeyPrefix):
		return Identity{Source: SourceLegacy, RawID: strings.TrimPrefix(key, legacyKeyPrefix)}
	case strings.HasPrefix(key, staffKeyPrefix):
		return Identity{Source: SourceStaff, RawID: strings.TrimPrefix(key, staffKeyPrefix)}
	default:
		return Identity{Source: SourceCurrent, RawID: key}
	}
}

// =============================================================================
// ROLES & PARTICIPANTS
// =============================================================================

type Role string

const (
	RoleManager   Role = "manager"
	RoleHelper    Role = "helper"
	RoleScheduler Role = "scheduler"
	RoleExpert    Role = "expert"
	RoleHandler   Role = "handler"
	RoleGuest1    Role = "guest1"
	RoleGuest2    Role = "guest2"
)

var AllRoles = []Role{RoleManager, RoleHelper, RoleScheduler, RoleExpert, RoleHandler, RoleGuest1, RoleGuest2}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllRoles {
		if r == known {
			return r, nil
		}
	}
	return "", &UnknownRoleError{Role: s}
}

// Placeholder is rendered for any participant slot with nothing in it.
const Placeholder = "---"

// EmployeeRef is a resolved reference to a staff member.
type EmployeeRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Participant is either raw source text or a resolved employee.
// The zero value is an empty raw participant.
type Participant struct {
	raw string
	ref *EmployeeRef
}

func Raw(s string) Participant { return Participant{raw: strings.TrimSpace(s)} }

func Resolved(ref EmployeeRef) Participant { return Participant{ref: &ref} }

func (p Participant) IsResolved() bool { return p.ref != nil }

func (p Participant) Ref() (EmployeeRef, bool) {
	if p.ref == nil {
		return EmployeeRef{}, false
	}
	return *p.ref, true
}

func (p Participant) IsEmpty() bool { return p.ref == nil && p.raw == "" }

// Display returns the resolved name, else the raw text, else Placeholder.
func (p Participant) Display() string {
	if p.ref != nil && p.ref.Name != "" {
		return p.ref.Name
	}
	if p.raw != "" {
		return p.raw
	}
	return Placeholder
}

// =============================================================================
// CALENDAR TYPE
// =============================================================================

type CalendarType string

const (
	CalendarPotentialClient CalendarType = "potential_client"
	CalendarActiveClient    CalendarType = "active_client"
	CalendarStaff           CalendarType = "staff"
)

func ParseCalendarType(s string) (CalendarType, bool) {
	switch CalendarType(strings.ToLower(strings.TrimSpace(s))) {
	case CalendarPotentialClient:
		return CalendarPotentialClient, true
	case CalendarActiveClient:
		return CalendarActiveClient, true
	case CalendarStaff:
		return CalendarStaff, true
	}
	return "", false
}

// Roles returns the participant roles that carry meaning for this type.
// Staff meetings use attendees instead of roles.
func (c CalendarType) Roles() []Role {
	switch c {
	case CalendarPotentialClient:
		return []Role{RoleScheduler, RoleManager, RoleHelper, RoleExpert, RoleGuest1, RoleGuest2}
	case CalendarActiveClient:
		return []Role{RoleManager, RoleHandler, RoleHelper, RoleExpert, RoleGuest1, RoleGuest2}
	default:
		return nil
	}
}

func (c CalendarType) HasRole(r Role) bool {
	for _, known := range c.Roles() {
		if known == r {
			return true
		}
	}
	return false
}

// =============================================================================
// MEETING
// =============================================================================

type Subject struct {
	LeadID      string
	Name        string
	Number      string
	Category    string
	Balance     decimal.Decimal
	Currency    Currency
	BalanceNIS  decimal.Decimal
	Stage       string
	Eligibility string
	Probability int
	PaymentRef  string
}

// Paid reports whether a payment collection has been attached.
func (s Subject) Paid() bool { return strings.TrimSpace(s.PaymentRef) != "" }

type Location struct {
	Name string
	Link string
}

type Meeting struct {
	ID           string
	Identity     Identity
	Source       SourceKind
	CalendarType CalendarType
	Date         Date
	Time         TimeOfDay

	Roles     map[Role]Participant
	Subject   Subject
	Location  Location
	Confirmed bool

	// Staff calendar only
	Title         string
	Attendees     []string
	AttendeeLabel string
}

// Participant returns the participant in role r, or an empty one.
func (m Meeting) Participant(r Role) Participant {
	if m.Roles == nil {
		return Participant{}
	}
	return m.Roles[r]
}

// StaffNames returns every display name attached to the meeting, through
// roles or attendees. Empty slots are skipped.
func (m Meeting) StaffNames() []string {
	var names []string
	for _, r := range AllRoles {
		p := m.Participant(r)
		if p.IsEmpty() {
			continue
		}
		names = append(names, p.Display())
	}
	names = append(names, m.Attendees...)
	return names
}

// =============================================================================
// EMPLOYEE & UNAVAILABILITY
// =============================================================================

type Employee struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	PhotoURL   string `json:"photo_url,omitempty"`
	RoleCode   string `json:"role_code,omitempty"`
	Department string `json:"department,omitempty"`
	Active     bool   `json:"active"`

	UnavailableSlots  []UnavailableSlot  `json:"unavailable_slots,omitempty"`
	UnavailableRanges []UnavailableRange `json:"unavailable_ranges,omitempty"`
}

func (e Employee) Ref() EmployeeRef { return EmployeeRef{ID: e.ID, Name: e.Name} }

// UnavailableSlot blocks [Start, End] on Date. A slot without both bounds
// blocks the whole day.
type UnavailableSlot struct {
	Date   Date      `json:"date"`
	Start  TimeOfDay `json:"start"`
	End    TimeOfDay `json:"end"`
	Reason string    `json:"reason,omitempty"`
}

func (s UnavailableSlot) AllDay() bool { return !s.Start.Valid() || !s.End.Valid() }

// UnavailableRange blocks every date in [Start, End] for the whole day.
type UnavailableRange struct {
	Start  Date   `json:"start"`
	End    Date   `json:"end"`
	Reason string `json:"reason,omitempty"`
}

// =============================================================================
// RAW ROWS - What the Store returns, before shaping
// =============================================================================

// RawMeeting is a source row. Role fields hold whatever the source stores:
// an employee id, a display name, or nothing.
type RawMeeting struct {
	ID           string
	LeadID       string
	LegacyLeadID string
	Date         string
	Time         string

	Manager   string
	Helper    string
	Scheduler string
	Expert    string
	Handler   string
	Guest1    string
	Guest2    string

	LocationID   string
	LocationName string
	Link         string

	// Confirmation arrives as a boolean column, a timestamp column, or neither.
	Confirmed   *bool
	ConfirmedAt string

	LeadName     string
	LeadNumber   string
	Category     string
	Balance      string
	CurrencyCode string
	CurrencyID   int
	Stage        string
	Eligibility  string
	Probability  int
	PaymentRef   string
	CalendarType string

	Title     string
	Attendees []string

	Inactive bool
}

// RoleValues maps each role to the raw column value.
func (r RawMeeting) RoleValues() map[Role]string {
	return map[Role]string{
		RoleManager:   r.Manager,
		RoleHelper:    r.Helper,
		RoleScheduler: r.Scheduler,
		RoleExpert:    r.Expert,
		RoleHandler:   r.Handler,
		RoleGuest1:    r.Guest1,
		RoleGuest2:    r.Guest2,
	}
}

// IsConfirmed applies the tri-state rule: explicit flag, else a non-empty
// timestamp, else false.
func (r RawMeeting) IsConfirmed() bool {
	if r.Confirmed != nil {
		return *r.Confirmed
	}
	return strings.TrimSpace(r.ConfirmedAt) != ""
}

// LeadCalendarType is the calendar type of a lead meeting row. Missing,
// unknown and staff values fall back to potential_client.
func (r RawMeeting) LeadCalendarType() CalendarType {
	ct, ok := ParseCalendarType(r.CalendarType)
	if !ok || ct == CalendarStaff {
		return CalendarPotentialClient
	}
	return ct
}

// Schedule returns the row's date and time of day. An unreadable time is
// treated as absent; an unreadable date is an error.
func (r RawMeeting) Schedule() (Date, TimeOfDay, error) {
	d, err := ParseDate(r.Date)
	if err != nil {
		return Date{}, NoTime, err
	}
	t, err := ParseTimeOfDay(r.Time)
	if err != nil {
		t = NoTime
	}
	return d, t, nil
}

// LocationRecord is a row of the dynamic location table.
type LocationRecord struct {
	ID   string
	Name string
	Link string
}

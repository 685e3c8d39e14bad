/*
store.go - Collaborator interfaces consumed by the engine

PURPOSE:
  The engine does not own the source-of-truth schema. Everything it reads or
  writes goes through these narrow interfaces.

KEY INTERFACES:
  Store:          Fetch-by-filter for meetings, employees and locations; the
                  single write path (assignment updates)
  IdentityLookup: Session principal -> employee reference, for attribution
  Notifier:       Outbound notification; failures are never propagated

CONSISTENCY:
  Each Store call is assumed to finish within its own latency bound. No
  transactional isolation across the three source queries is assumed.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go:   SQLite
  - meeting/store/memory.go:  In-memory for tests
*/
package meeting

import "context"

// QueryFilter narrows a meeting query beyond its window.
type QueryFilter struct {
	// ExcludeInactive drops soft-deleted or inactive subjects.
	ExcludeInactive bool
	Limit           int
}

type EmployeeFilter struct {
	ActiveOnly bool
	IDs        []string
}

type Store interface {
	// QueryMeetings returns rows of one source whose date is inside w.
	QueryMeetings(ctx context.Context, kind SourceKind, w Window, f QueryFilter) ([]RawMeeting, error)

	// GetMeeting returns the one row behind id, or ErrMeetingNotFound.
	GetMeeting(ctx context.Context, id Identity) (RawMeeting, error)

	QueryEmployees(ctx context.Context, f EmployeeFilter) ([]Employee, error)

	// QueryLocations returns the dynamic location table. It overrides the
	// seed table in Lookup.
	QueryLocations(ctx context.Context) ([]LocationRecord, error)

	// UpdateAssignment sets one role on exactly one underlying record.
	// It is the only write the engine performs.
	UpdateAssignment(ctx context.Context, id Identity, role Role, ref EmployeeRef) error
}

// IdentityLookup resolves an opaque session principal to an employee.
type IdentityLookup interface {
	Resolve(ctx context.Context, principal string) (EmployeeRef, error)
}

type NotificationKind string

const (
	NotifyAssigned NotificationKind = "assigned"
)

type Notification struct {
	ID        string
	Kind      NotificationKind
	MeetingID string
	Date      Date
	Time      TimeOfDay
	Role      Role
	Assignee  Employee
	ChangedBy EmployeeRef
	Conflict  bool
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

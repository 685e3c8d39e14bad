/*
errors.go - Error taxonomy of the reconciliation engine

ERROR CATEGORIES:
  1. Source errors      - one adapter failed; the request degrades, never aborts
  2. Window errors      - rejected before any fetch
  3. Identity errors    - reconciliation could not decide duplicate status
  4. Write errors       - the store refused an assignment update
  5. Client errors      - malformed input

A conflict with an employee's unavailability is NOT an error. It is reported
as a status (see availability.ConflictResult and engine.AssignOutcome).

SEE ALSO:
  - engine/engine.go: Propagation policy
  - api/handlers.go:  HTTP status mapping
*/
package meeting

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrWindowTooLarge is returned when the requested span exceeds the hard ceiling.
	ErrWindowTooLarge = errors.New("window too large")

	// ErrInvalidWindow is returned when To is before From.
	ErrInvalidWindow = errors.New("invalid window: end before start")

	ErrAmbiguousIdentity = errors.New("ambiguous identity")

	// ErrWriteFailed wraps any store failure on the assignment path.
	ErrWriteFailed = errors.New("write failed")

	// ErrCostLimit is the store's signal that a query hit a statement timeout
	// or cost limit. It trips the source's circuit breaker.
	ErrCostLimit = errors.New("query cost limit exceeded")

	ErrRoleNotApplicable = errors.New("role not applicable to meeting")
	ErrUnknownRole       = errors.New("unknown role")
	ErrMeetingNotFound   = errors.New("meeting not found")
	ErrEmployeeNotFound  = errors.New("employee not found")
	ErrUnauthenticated   = errors.New("unauthenticated")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

type SourceUnavailableError struct {
	Source SourceKind
	Cause  error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Cause)
}

func (e *SourceUnavailableError) Unwrap() []error {
	return []error{ErrSourceUnavailable, e.Cause}
}

type WindowTooLargeError struct {
	Window  Window
	MaxDays int
}

func (e *WindowTooLargeError) Error() string {
	return fmt.Sprintf("window %s spans %d days, max %d", e.Window, e.Window.Span(), e.MaxDays)
}

func (e *WindowTooLargeError) Unwrap() error { return ErrWindowTooLarge }

// AmbiguousIdentityError records a record the reconciler could not classify.
// The record is kept as distinct; the error is for later audit.
type AmbiguousIdentityError struct {
	Identity Identity
	Reason   string
}

func (e *AmbiguousIdentityError) Error() string {
	return fmt.Sprintf("ambiguous identity %s/%q: %s", e.Identity.Source, e.Identity.RawID, e.Reason)
}

func (e *AmbiguousIdentityError) Unwrap() error { return ErrAmbiguousIdentity }

type WriteFailedError struct {
	MeetingID string
	Role      Role
	Cause     error
}

func (e *WriteFailedError) Error() string {
	return fmt.Sprintf("assign %s on meeting %s: %v", e.Role, e.MeetingID, e.Cause)
}

func (e *WriteFailedError) Unwrap() []error {
	return []error{ErrWriteFailed, e.Cause}
}

type UnknownRoleError struct {
	Role string
}

func (e *UnknownRoleError) Error() string { return fmt.Sprintf("unknown role %q", e.Role) }

func (e *UnknownRoleError) Unwrap() error { return ErrUnknownRole }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrUnknownRole) ||
		errors.Is(err, ErrRoleNotApplicable)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrMeetingNotFound) || errors.Is(err, ErrEmployeeNotFound)
}

// IsTripSignal reports whether a source failure should open its breaker:
// a timeout or an explicit cost-limit signal from the store.
func IsTripSignal(err error) bool {
	return errors.Is(err, ErrCostLimit) || errors.Is(err, context.DeadlineExceeded)
}

package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/warp/meeting-engine/availability"
	"github.com/warp/meeting-engine/logging"
	"github.com/warp/meeting-engine/meeting"
)

// AssignStatus is the outcome of an assignment attempt that did not error.
type AssignStatus string

const (
	AssignAssigned AssignStatus = "assigned"

	// AssignConflictWarning means nothing was written: the employee is
	// unavailable and the operator has not acknowledged it.
	AssignConflictWarning AssignStatus = "conflict_warning"
)

// AssignRequest sets one role on one meeting.
type AssignRequest struct {
	MeetingID  string
	Role       meeting.Role
	EmployeeID string

	// Acknowledge proceeds despite a conflict.
	Acknowledge bool

	// Principal is the session principal of the operator, for attribution.
	Principal string
}

// AssignOutcome carries the stored meeting's schedule; the conflict check
// ran against it.
type AssignOutcome struct {
	Status    AssignStatus
	MeetingID string
	Role      meeting.Role
	Date      meeting.Date
	Time      meeting.TimeOfDay
	Assignee  meeting.EmployeeRef
	ChangedBy meeting.EmployeeRef
	Conflict  availability.ConflictResult
}

// CheckAssignment evaluates name against the published availability index.
// It never blocks anything; a conflict is advisory.
func (e *Engine) CheckAssignment(name string, d meeting.Date, t meeting.TimeOfDay) availability.ConflictResult {
	res := e.evaluator.Evaluate(name, d, t)
	e.metrics.ConflictChecks.WithLabelValues(string(res.Status)).Inc()
	return res
}

// Assign writes one role assignment. On an unacknowledged conflict it
// returns AssignConflictWarning without writing. A store failure is returned
// as *meeting.WriteFailedError and is not retried. Notification failures are
// logged only.
func (e *Engine) Assign(ctx context.Context, req AssignRequest) (AssignOutcome, error) {
	ctx, span := e.tracer.startAssign(ctx, req.MeetingID, req.Role)
	defer span.End()
	log := e.log.WithContext(ctx).With(
		logging.F("meeting_id", req.MeetingID),
		logging.F("role", string(req.Role)),
	)

	out, err := e.assign(ctx, req, log)
	span.SetAttributes(
		attribute.String("status", string(out.Status)),
		attribute.Bool(AttrAcknowledge, req.Acknowledge),
	)
	if err != nil {
		recordError(span, err)
		e.metrics.AssignmentsTotal.WithLabelValues("error").Inc()
		return out, err
	}
	e.metrics.AssignmentsTotal.WithLabelValues(string(out.Status)).Inc()
	return out, nil
}

func (e *Engine) assign(ctx context.Context, req AssignRequest, log logging.Logger) (AssignOutcome, error) {
	out := AssignOutcome{MeetingID: req.MeetingID, Role: req.Role}

	id := meeting.ParseIdentity(strings.TrimSpace(req.MeetingID))
	if id.RawID == "" {
		return out, meeting.ErrMeetingNotFound
	}
	if id.Source == meeting.SourceStaff {
		return out, fmt.Errorf("%w: %s on a staff meeting", meeting.ErrRoleNotApplicable, req.Role)
	}
	if _, err := meeting.ParseRole(string(req.Role)); err != nil {
		return out, err
	}

	row, err := e.store.GetMeeting(ctx, id)
	if err != nil {
		return out, fmt.Errorf("load meeting %s: %w", req.MeetingID, err)
	}
	if ct := row.LeadCalendarType(); !ct.HasRole(req.Role) {
		return out, fmt.Errorf("%w: %s on a %s meeting", meeting.ErrRoleNotApplicable, req.Role, ct)
	}
	out.Date, out.Time, err = row.Schedule()
	if err != nil {
		return out, fmt.Errorf("meeting %s: %w", req.MeetingID, err)
	}

	employees, err := e.directory.Employees(ctx)
	if err != nil {
		return out, fmt.Errorf("load employees: %w", err)
	}
	emp, ok := findEmployee(employees, req.EmployeeID)
	if !ok {
		return out, fmt.Errorf("%w: %s", meeting.ErrEmployeeNotFound, req.EmployeeID)
	}
	out.Assignee = emp.Ref()

	if e.identity != nil && req.Principal != "" {
		changedBy, err := e.identity.Resolve(ctx, req.Principal)
		if err != nil {
			return out, fmt.Errorf("%w: %v", meeting.ErrUnauthenticated, err)
		}
		out.ChangedBy = changedBy
	}

	out.Conflict = e.CheckAssignment(emp.Name, out.Date, out.Time)
	if out.Conflict.Conflict() && !req.Acknowledge {
		out.Status = AssignConflictWarning
		log.Info("assignment held for acknowledgment",
			logging.F("employee", emp.Name),
			logging.F("reason", out.Conflict.Reason.Reason),
		)
		return out, nil
	}

	if err := e.store.UpdateAssignment(ctx, id, req.Role, emp.Ref()); err != nil {
		log.Error("assignment write failed", logging.Err(err), logging.F("employee", emp.Name))
		return out, &meeting.WriteFailedError{MeetingID: req.MeetingID, Role: req.Role, Cause: err}
	}
	out.Status = AssignAssigned
	log.Info("assignment written",
		logging.F("employee", emp.Name),
		logging.F("acknowledged_conflict", out.Conflict.Conflict()),
	)

	e.notify(ctx, meeting.Notification{
		ID:        uuid.NewString(),
		Kind:      meeting.NotifyAssigned,
		MeetingID: req.MeetingID,
		Date:      out.Date,
		Time:      out.Time,
		Role:      req.Role,
		Assignee:  emp,
		ChangedBy: out.ChangedBy,
		Conflict:  out.Conflict.Conflict(),
	}, log)
	return out, nil
}

func (e *Engine) notify(ctx context.Context, n meeting.Notification, log logging.Logger) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		log.Warn("assignment notification failed", logging.Err(err), logging.F("notification_id", n.ID))
	}
}

func findEmployee(employees []meeting.Employee, id string) (meeting.Employee, bool) {
	id = strings.TrimSpace(id)
	for _, e := range employees {
		if e.ID == id {
			return e, true
		}
	}
	return meeting.Employee{}, false
}

/*
handlers.go - HTTP API handlers for the meeting engine

PURPOSE:
  Exposes the engine's produced interface via REST. Handles HTTP
  request/response and JSON serialization, and delegates everything else.

ENDPOINTS:
  Meetings:
    GET    /api/meetings                       Reconciled meetings for a window
    POST   /api/meetings/{id}/assignments      Assign a role (auth required)

  Availability:
    GET    /api/availability/check             Conflict check for one slot
    POST   /api/availability/refresh           Rebuild the availability index

  Directory:
    GET    /api/employees                      Active employees (cached)

  Sources:
    GET    /api/sources                        Breaker state per source
    POST   /api/sources/{source}/enable        Manually close a breaker

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call the engine
  4. Serialize response
  5. Map errors to status codes (statusFor)

ERROR HANDLING:
  Errors are returned as JSON ErrorResponse with:
  - 400: Validation errors, invalid input
  - 401: Missing or invalid identity
  - 404: Meeting or employee not found
  - 409: Conflict warning (assignment not written)
  - 422: Window larger than the hard ceiling
  - 502: Store rejected the assignment write
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/meeting-engine/engine"
	"github.com/warp/meeting-engine/logging"
	"github.com/warp/meeting-engine/meeting"
)

// DefaultWindowDays is the span served when the request names no end date.
const DefaultWindowDays = 7

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *engine.Engine
	Log    logging.Logger

	// Location decides what "today" is when a request omits dates.
	Location *time.Location
	now      func() time.Time
}

func NewHandler(eng *engine.Engine, log logging.Logger, loc *time.Location) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{Engine: eng, Log: log, Location: loc, now: time.Now}
}

func (h *Handler) today() meeting.Date {
	return meeting.DateOf(h.now().In(h.Location))
}

// =============================================================================
// MEETING HANDLERS
// =============================================================================

// ListMeetings returns reconciled meetings.
// GET /api/meetings?from=&to=&staff=&type=&paid=
func (h *Handler) ListMeetings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from := h.today()
	if s := q.Get("from"); s != "" {
		d, err := meeting.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date", err)
			return
		}
		from = d
	}
	to := from.AddDays(DefaultWindowDays - 1)
	if s := q.Get("to"); s != "" {
		d, err := meeting.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date", err)
			return
		}
		to = d
	}
	window := meeting.NewWindow(from, to)

	filter := meeting.Filter{Staff: strings.TrimSpace(q.Get("staff"))}
	for _, raw := range splitList(q.Get("type")) {
		ct, ok := meeting.ParseCalendarType(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "Unknown calendar type", errors.New(raw))
			return
		}
		filter.CalendarTypes = append(filter.CalendarTypes, ct)
	}
	if s := q.Get("paid"); s != "" {
		filter.PaidOnly = s == "true" || s == "1"
	}

	res, err := h.Engine.GetReconciledMeetings(r.Context(), window, filter)
	if err != nil {
		h.fail(w, r, "Failed to fetch meetings", err)
		return
	}
	writeJSON(w, http.StatusOK, toMeetingsResponse(window, res))
}

// AssignRole writes a role assignment, or returns 409 with the conflict when
// the assignee is unavailable and the caller has not acknowledged it.
// POST /api/meetings/{id}/assignments
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "id")

	var body AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(body.EmployeeID) == "" {
		writeError(w, http.StatusBadRequest, "employee_id is required", nil)
		return
	}
	role, err := meeting.ParseRole(body.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid role", err)
		return
	}

	out, err := h.Engine.Assign(r.Context(), engine.AssignRequest{
		MeetingID:   meetingID,
		Role:        role,
		EmployeeID:  body.EmployeeID,
		Acknowledge: body.Acknowledge,
		Principal:   principalFrom(r.Context()),
	})
	if err != nil {
		h.fail(w, r, "Assignment failed", err)
		return
	}

	resp := AssignResponse{
		Status:    out.Status,
		MeetingID: out.MeetingID,
		Role:      string(out.Role),
		Date:      out.Date,
		Time:      out.Time,
		Assignee:  out.Assignee,
		ChangedBy: out.ChangedBy,
	}
	if out.Conflict.Conflict() {
		c := toConflictDTO(out.Assignee.Name, out.Date, out.Time, out.Conflict)
		resp.Conflict = &c
	}

	status := http.StatusOK
	if out.Status == engine.AssignConflictWarning {
		status = http.StatusConflict
	}
	if op, ok := operatorFrom(r.Context()); ok {
		h.Log.WithContext(r.Context()).Info("assignment request handled",
			logging.F("operator", op.ID),
			logging.F("status", string(out.Status)),
		)
	}
	writeJSON(w, status, resp)
}

// =============================================================================
// AVAILABILITY HANDLERS
// =============================================================================

// CheckAvailability reports whether an employee is free at a date and time.
// The employee parameter is an id or a display name.
// GET /api/availability/check?employee=&date=&time=
func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := strings.TrimSpace(q.Get("employee"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "employee is required", nil)
		return
	}
	date, err := meeting.ParseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	tod, err := meeting.ParseTimeOfDay(q.Get("time"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid time", err)
		return
	}

	if emps, err := h.Engine.Employees(r.Context()); err == nil {
		for _, e := range emps {
			if e.ID == name {
				name = e.Name
				break
			}
		}
	}

	res := h.Engine.CheckAssignment(name, date, tod)
	writeJSON(w, http.StatusOK, toConflictDTO(name, date, tod, res))
}

// RefreshAvailability rebuilds the index from a fresh employee load.
// POST /api/availability/refresh
func (h *Handler) RefreshAvailability(w http.ResponseWriter, r *http.Request) {
	ix, err := h.Engine.RefreshAvailability(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Availability refresh failed", err)
		return
	}
	writeJSON(w, http.StatusOK, RefreshResponse{Employees: ix.Employees(), PublishedAt: ix.BuiltAt()})
}

// =============================================================================
// DIRECTORY & SOURCE HANDLERS
// =============================================================================

// ListEmployees returns the cached directory.
// GET /api/employees
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	emps, err := h.Engine.Employees(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list employees", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTOs(emps))
}

// ListSources returns breaker state for every source.
// GET /api/sources
func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Engine.Breakers())
}

// EnableSource closes a tripped breaker.
// POST /api/sources/{source}/enable
func (h *Handler) EnableSource(w http.ResponseWriter, r *http.Request) {
	kind, ok := meeting.ParseSourceKind(chi.URLParam(r, "source"))
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown source", nil)
		return
	}
	wasOpen := h.Engine.Reenable(kind)
	writeJSON(w, http.StatusOK, map[string]any{
		"source":   kind,
		"was_open": wasOpen,
	})
}

// Health reports liveness and whether an availability index is published.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"availability_ready": h.Engine.AvailabilityReady(),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// statusFor maps engine errors onto HTTP status codes. A write failure is
// checked first: it may wrap a not-found from the store.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, meeting.ErrWriteFailed):
		return http.StatusBadGateway, "write_failed"
	case errors.Is(err, meeting.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case meeting.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, meeting.ErrWindowTooLarge):
		return http.StatusUnprocessableEntity, "window_too_large"
	case meeting.IsClientError(err):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "cancelled"
	}
	return http.StatusInternalServerError, "internal"
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status, code := statusFor(err)
	if status >= 500 {
		h.Log.WithContext(r.Context()).Error(message, logging.Err(err))
	}
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

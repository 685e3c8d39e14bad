/*
handlers_test.go - Tests for the HTTP surface

Tests for:
- Meetings listing, validation and error mapping
- Availability check and refresh
- Assignment: auth, conflict warning, acknowledged write, store failure
- Source breaker endpoints, health and metrics
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/meeting-engine/engine"
	"github.com/warp/meeting-engine/identity"
	"github.com/warp/meeting-engine/logging"
	"github.com/warp/meeting-engine/meeting"
	"github.com/warp/meeting-engine/meeting/store"
)

type apiFixture struct {
	store  *store.Memory
	engine *engine.Engine
	server *httptest.Server
	token  string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	st := store.NewMemory()
	st.AddEmployees(
		meeting.Employee{
			ID: "7", Name: "Jane Doe", Email: "jane.doe@example.com", Active: true,
			UnavailableSlots: []meeting.UnavailableSlot{{
				Date:   meeting.NewDate(2024, 3, 1),
				Start:  meeting.NewTimeOfDay(10, 0),
				End:    meeting.NewTimeOfDay(11, 0),
				Reason: "Dentist",
			}},
		},
		meeting.Employee{ID: "8", Name: "Omer Levi", Active: true},
	)
	st.AddMeetings(meeting.SourceLegacy, meeting.RawMeeting{ID: "501", Date: "2024-03-01", Manager: "7"})
	st.AddMeetings(meeting.SourceCurrent, meeting.RawMeeting{
		ID: "abc", LegacyLeadID: "501", Date: "2024-03-01", Time: "10:30", Manager: "7",
		Balance: "1000", CurrencyCode: "USD",
	})

	resolver, err := identity.NewJWTResolver("test-secret", time.Hour, nil)
	require.NoError(t, err)
	token, err := resolver.Issue(meeting.EmployeeRef{ID: "8", Name: "Omer Levi"})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	eng := engine.New(engine.Config{}, engine.Deps{
		Store:      st,
		Adapters:   engine.DefaultAdapters(st, logging.Nop()),
		Identity:   resolver,
		Logger:     logging.Nop(),
		Registerer: reg,
	})
	_, err = eng.RefreshAvailability(context.Background())
	require.NoError(t, err)

	h := NewHandler(eng, logging.Nop(), time.UTC)
	h.now = func() time.Time { return time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC) }
	srv := httptest.NewServer(NewRouter(h, RouterOptions{Identity: resolver, Gatherer: reg}))
	t.Cleanup(srv.Close)

	return &apiFixture{store: st, engine: eng, server: srv, token: token}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, auth bool) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// =============================================================================
// MEETINGS
// =============================================================================

func TestListMeetings_MergesDuplicates(t *testing.T) {
	// GIVEN: legacy 501 mirrored by current "abc"
	f := newAPIFixture(t)

	// WHEN
	resp := f.do(t, http.MethodGet, "/api/meetings?from=2024-03-01&to=2024-03-03", nil, false)

	// THEN: one meeting, the current record, with its NIS total
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[MeetingsResponse](t, resp)
	require.Equal(t, 1, body.Count)
	m := body.Meetings[0]
	assert.Equal(t, "abc", m.ID)
	assert.Equal(t, "current", m.Source)
	assert.Equal(t, "Jane Doe", m.Roles["manager"].Display)
	assert.Equal(t, "7", m.Roles["manager"].EmployeeID)
	assert.Equal(t, "USD", m.Subject.Currency)
	assert.Equal(t, "3700.00", body.TotalNIS)
	assert.Empty(t, body.Degraded)
	assert.NotEmpty(t, body.FetchID)
}

func TestListMeetings_DefaultsToWeekFromToday(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/api/meetings", nil, false)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[MeetingsResponse](t, resp)
	assert.Equal(t, "2024-03-01", body.Window.From.String())
	assert.Equal(t, "2024-03-07", body.Window.To.String())
}

func TestListMeetings_Errors(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name   string
		query  string
		status int
		code   string
	}{
		{"window over ceiling", "?from=2024-03-01&to=2024-03-20", http.StatusUnprocessableEntity, "window_too_large"},
		{"end before start", "?from=2024-03-05&to=2024-03-01", http.StatusBadRequest, "invalid_request"},
		{"bad date", "?from=March", http.StatusBadRequest, ""},
		{"unknown type", "?from=2024-03-01&type=vip", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodGet, "/api/meetings"+tt.query, nil, false)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decode[ErrorResponse](t, resp)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

// =============================================================================
// AVAILABILITY
// =============================================================================

func TestCheckAvailability(t *testing.T) {
	f := newAPIFixture(t)

	// WHEN: checking Jane by id inside and just outside her slot
	inside := decode[ConflictDTO](t, f.do(t, http.MethodGet, "/api/availability/check?employee=7&date=2024-03-01&time=11:00", nil, false))
	outside := decode[ConflictDTO](t, f.do(t, http.MethodGet, "/api/availability/check?employee=Jane%20Doe&date=2024-03-01&time=11:01", nil, false))

	// THEN: the end minute still conflicts
	assert.Equal(t, "conflict", string(inside.Status))
	assert.Equal(t, "Dentist", inside.Reason)
	assert.Equal(t, "Jane Doe", inside.Employee)
	assert.Equal(t, "available", string(outside.Status))

	resp := f.do(t, http.MethodGet, "/api/availability/check?date=2024-03-01", nil, false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRefreshAvailability_RequiresAuth(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/availability/refresh", nil, false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/availability/refresh", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[RefreshResponse](t, resp)
	assert.Equal(t, 2, body.Employees)
}

// =============================================================================
// ASSIGNMENT
// =============================================================================

func TestAssignRole_ConflictWarningThenAcknowledged(t *testing.T) {
	// GIVEN: Jane is blocked 10:00-11:00 and the meeting is at 10:30
	f := newAPIFixture(t)
	req := AssignRequest{Role: "helper", EmployeeID: "7"}

	// WHEN: assigning without acknowledging
	resp := f.do(t, http.MethodPost, "/api/meetings/abc/assignments", req, true)

	// THEN: 409 with the reason, nothing written
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	warn := decode[AssignResponse](t, resp)
	assert.Equal(t, engine.AssignConflictWarning, warn.Status)
	require.NotNil(t, warn.Conflict)
	assert.Equal(t, "Dentist", warn.Conflict.Reason)
	assert.Equal(t, "10:30", warn.Time.String())
	row, _ := f.store.Row(meeting.SourceCurrent, "abc")
	assert.Empty(t, row.Helper)

	// WHEN: acknowledged
	req.Acknowledge = true
	resp = f.do(t, http.MethodPost, "/api/meetings/abc/assignments", req, true)

	// THEN: written and attributed to the token's employee
	require.Equal(t, http.StatusOK, resp.StatusCode)
	done := decode[AssignResponse](t, resp)
	assert.Equal(t, engine.AssignAssigned, done.Status)
	assert.Equal(t, "Omer Levi", done.ChangedBy.Name)
	row, _ = f.store.Row(meeting.SourceCurrent, "abc")
	assert.Equal(t, "7", row.Helper)
}

func TestAssignRole_IgnoresClientSchedule(t *testing.T) {
	// GIVEN: a body that claims a different day than the stored meeting
	f := newAPIFixture(t)
	body := map[string]any{"role": "helper", "employee_id": "7", "date": "2024-03-02", "time": "18:00"}

	// WHEN
	resp := f.do(t, http.MethodPost, "/api/meetings/abc/assignments", body, true)

	// THEN: the conflict at the stored 2024-03-01 10:30 is still reported
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	warn := decode[AssignResponse](t, resp)
	assert.Equal(t, "2024-03-01", warn.Date.String())
	row, _ := f.store.Row(meeting.SourceCurrent, "abc")
	assert.Empty(t, row.Helper)
}

func TestAssignRole_Errors(t *testing.T) {
	f := newAPIFixture(t)
	valid := AssignRequest{Role: "manager", EmployeeID: "8"}

	t.Run("no token", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/meetings/abc/assignments", valid, false)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown role", func(t *testing.T) {
		bad := valid
		bad.Role = "captain"
		resp := f.do(t, http.MethodPost, "/api/meetings/abc/assignments", bad, true)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown employee", func(t *testing.T) {
		bad := valid
		bad.EmployeeID = "404"
		resp := f.do(t, http.MethodPost, "/api/meetings/abc/assignments", bad, true)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("unknown meeting", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/meetings/zzz/assignments", valid, true)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "not_found", decode[ErrorResponse](t, resp).Code)
	})

	t.Run("role not used by the calendar type", func(t *testing.T) {
		bad := valid
		bad.Role = "handler"
		resp := f.do(t, http.MethodPost, "/api/meetings/abc/assignments", bad, true)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("store rejects write", func(t *testing.T) {
		f.store.FailUpdates(errors.New("connection reset"))
		defer f.store.FailUpdates(nil)
		resp := f.do(t, http.MethodPost, "/api/meetings/abc/assignments", valid, true)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		body := decode[ErrorResponse](t, resp)
		assert.Contains(t, body.Details, "connection reset")
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{&meeting.WriteFailedError{Cause: meeting.ErrMeetingNotFound}, http.StatusBadGateway},
		{meeting.ErrUnauthenticated, http.StatusUnauthorized},
		{meeting.ErrEmployeeNotFound, http.StatusNotFound},
		{&meeting.WindowTooLargeError{MaxDays: 14}, http.StatusUnprocessableEntity},
		{meeting.ErrInvalidWindow, http.StatusBadRequest},
		{context.Canceled, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}

// =============================================================================
// SOURCES, HEALTH, METRICS
// =============================================================================

func TestSources(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/api/sources", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	states := decode[[]engine.BreakerState](t, resp)
	require.Len(t, states, 3)
	assert.Equal(t, meeting.SourceCurrent, states[0].Source)
	assert.False(t, states[0].Open)

	resp = f.do(t, http.MethodPost, "/api/sources/legacy/enable", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decode[map[string]any](t, resp)["was_open"])

	resp = f.do(t, http.MethodPost, "/api/sources/archive/enable", nil, true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/health", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode[map[string]any](t, resp)["availability_ready"])

	f.do(t, http.MethodGet, "/api/meetings?from=2024-03-01&to=2024-03-01", nil, false)
	resp = f.do(t, http.MethodGet, "/metrics", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "meeting_source_fetches_total")
}

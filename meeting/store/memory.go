// Package store provides an in-memory meeting.Store.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/warp/meeting-engine/meeting"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps source rows, employees and locations in maps. It records every
// meeting query so tests can assert which windows reached which source.
type Memory struct {
	mu        sync.RWMutex
	rows      map[meeting.SourceKind][]meeting.RawMeeting
	employees []meeting.Employee
	locations []meeting.LocationRecord

	queries []Query

	// Failure injection.
	queryErr  map[meeting.SourceKind]error
	queryWait map[meeting.SourceKind]time.Duration
	updateErr error
}

// Query is one recorded QueryMeetings call.
type Query struct {
	Kind   meeting.SourceKind
	Window meeting.Window
}

func NewMemory() *Memory {
	return &Memory{
		rows:      make(map[meeting.SourceKind][]meeting.RawMeeting),
		queryErr:  make(map[meeting.SourceKind]error),
		queryWait: make(map[meeting.SourceKind]time.Duration),
	}
}

func (m *Memory) AddMeetings(kind meeting.SourceKind, rows ...meeting.RawMeeting) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[kind] = append(m.rows[kind], rows...)
}

func (m *Memory) AddEmployees(emps ...meeting.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees = append(m.employees, emps...)
}

func (m *Memory) AddLocations(locs ...meeting.LocationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations = append(m.locations, locs...)
}

// FailQueries makes every QueryMeetings call for kind return err.
func (m *Memory) FailQueries(kind meeting.SourceKind, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryErr[kind] = err
}

// SlowQueries delays QueryMeetings for kind by d, or until ctx is done.
func (m *Memory) SlowQueries(kind meeting.SourceKind, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryWait[kind] = d
}

func (m *Memory) FailUpdates(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateErr = err
}

// Queries returns the recorded meeting queries, oldest first.
func (m *Memory) Queries() []Query {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Query, len(m.queries))
	copy(out, m.queries)
	return out
}

// QueriesFor returns the recorded queries for one source.
func (m *Memory) QueriesFor(kind meeting.SourceKind) []Query {
	var out []Query
	for _, q := range m.Queries() {
		if q.Kind == kind {
			out = append(out, q)
		}
	}
	return out
}

func (m *Memory) QueryMeetings(ctx context.Context, kind meeting.SourceKind, w meeting.Window, f meeting.QueryFilter) ([]meeting.RawMeeting, error) {
	m.mu.Lock()
	m.queries = append(m.queries, Query{Kind: kind, Window: w})
	wait := m.queryWait[kind]
	err := m.queryErr[kind]
	m.mu.Unlock()

	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []meeting.RawMeeting
	for _, r := range m.rows[kind] {
		if f.ExcludeInactive && r.Inactive {
			continue
		}
		d, perr := meeting.ParseDate(r.Date)
		if perr == nil && !w.Contains(d) {
			continue
		}
		result = append(result, r)
		if f.Limit > 0 && len(result) >= f.Limit {
			break
		}
	}
	return result, nil
}

func (m *Memory) GetMeeting(_ context.Context, id meeting.Identity) (meeting.RawMeeting, error) {
	if r, ok := m.Row(id.Source, id.RawID); ok {
		return r, nil
	}
	return meeting.RawMeeting{}, meeting.ErrMeetingNotFound
}

func (m *Memory) QueryEmployees(_ context.Context, f meeting.EmployeeFilter) ([]meeting.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make(map[string]bool, len(f.IDs))
	for _, id := range f.IDs {
		ids[id] = true
	}

	var result []meeting.Employee
	for _, e := range m.employees {
		if f.ActiveOnly && !e.Active {
			continue
		}
		if len(ids) > 0 && !ids[e.ID] {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

func (m *Memory) QueryLocations(_ context.Context) ([]meeting.LocationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]meeting.LocationRecord, len(m.locations))
	copy(out, m.locations)
	return out, nil
}

func (m *Memory) UpdateAssignment(_ context.Context, id meeting.Identity, role meeting.Role, ref meeting.EmployeeRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}

	rows := m.rows[id.Source]
	for i := range rows {
		if rows[i].ID != id.RawID {
			continue
		}
		if !setRole(&rows[i], role, ref.ID) {
			return fmt.Errorf("role %s: %w", role, meeting.ErrRoleNotApplicable)
		}
		return nil
	}
	return meeting.ErrMeetingNotFound
}

// Row returns a copy of one stored row.
func (m *Memory) Row(kind meeting.SourceKind, rawID string) (meeting.RawMeeting, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rows[kind] {
		if r.ID == rawID {
			return r, true
		}
	}
	return meeting.RawMeeting{}, false
}

func setRole(r *meeting.RawMeeting, role meeting.Role, value string) bool {
	switch role {
	case meeting.RoleManager:
		r.Manager = value
	case meeting.RoleHelper:
		r.Helper = value
	case meeting.RoleScheduler:
		r.Scheduler = value
	case meeting.RoleExpert:
		r.Expert = value
	case meeting.RoleHandler:
		r.Handler = value
	case meeting.RoleGuest1:
		r.Guest1 = value
	case meeting.RoleGuest2:
		r.Guest2 = value
	default:
		return false
	}
	return true
}

var _ meeting.Store = (*Memory)(nil)

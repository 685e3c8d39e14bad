/*
Package sqlite provides a SQLite-backed implementation of meeting.Store.

PURPOSE:
  Local and single-node deployments keep the three meeting sources, the
  employee directory and the location table in one SQLite file. The engine
  only sees meeting.Store; the same queries port to PostgreSQL with minor
  dialect changes.

INTERFACES IMPLEMENTED:
  meeting.Store: QueryMeetings, QueryEmployees, QueryLocations,
                 UpdateAssignment

KEY TABLES:
  meetings:           One row per source record, keyed by (source, id)
  employees:          Staff directory
  unavailable_slots:  Timed or all-day blocks on a single date
  unavailable_ranges: All-day blocks over an inclusive date range
  locations:          Dynamic location table (overrides the seed)

INDEXES:
  - idx_meetings_source_date: Window queries (hot path)
  - idx_slots_employee:       Directory load
  - idx_ranges_employee:      Directory load

COST LIMIT:
  A query interrupted by SQLite (statement timeout or progress handler)
  surfaces as meeting.ErrCostLimit, the signal the engine's circuit
  breaker trips on.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/meetings.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - meeting/store.go: Interface definitions
  - meeting/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/meeting-engine/meeting"
)

// Store implements meeting.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens the database at dbPath and migrates the schema.
// Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// An in-memory database lives and dies with its connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meetings (
		source         TEXT NOT NULL,
		id             TEXT NOT NULL,
		lead_id        TEXT NOT NULL DEFAULT '',
		legacy_lead_id TEXT NOT NULL DEFAULT '',
		meeting_date   TEXT NOT NULL,
		meeting_time   TEXT NOT NULL DEFAULT '',

		manager        TEXT NOT NULL DEFAULT '',
		helper         TEXT NOT NULL DEFAULT '',
		scheduler      TEXT NOT NULL DEFAULT '',
		expert         TEXT NOT NULL DEFAULT '',
		handler        TEXT NOT NULL DEFAULT '',
		guest1         TEXT NOT NULL DEFAULT '',
		guest2         TEXT NOT NULL DEFAULT '',

		location_id    TEXT NOT NULL DEFAULT '',
		location_name  TEXT NOT NULL DEFAULT '',
		link           TEXT NOT NULL DEFAULT '',

		confirmed      INTEGER,
		confirmed_at   TEXT NOT NULL DEFAULT '',

		lead_name      TEXT NOT NULL DEFAULT '',
		lead_number    TEXT NOT NULL DEFAULT '',
		category       TEXT NOT NULL DEFAULT '',
		balance        TEXT NOT NULL DEFAULT '',
		currency_code  TEXT NOT NULL DEFAULT '',
		currency_id    INTEGER NOT NULL DEFAULT 0,
		stage          TEXT NOT NULL DEFAULT '',
		eligibility    TEXT NOT NULL DEFAULT '',
		probability    INTEGER NOT NULL DEFAULT 0,
		payment_ref    TEXT NOT NULL DEFAULT '',
		calendar_type  TEXT NOT NULL DEFAULT '',

		title          TEXT NOT NULL DEFAULT '',
		attendees      TEXT NOT NULL DEFAULT '[]',

		inactive       INTEGER NOT NULL DEFAULT 0,
		updated_at     TIMESTAMP DEFAULT CURRENT_TIMESTAMP,

		PRIMARY KEY (source, id),
		CHECK (source IN ('current', 'legacy', 'staff'))
	);

	CREATE INDEX IF NOT EXISTS idx_meetings_source_date
		ON meetings(source, meeting_date);

	CREATE TABLE IF NOT EXISTS employees (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		email       TEXT NOT NULL DEFAULT '',
		phone       TEXT NOT NULL DEFAULT '',
		photo_url   TEXT NOT NULL DEFAULT '',
		role_code   TEXT NOT NULL DEFAULT '',
		department  TEXT NOT NULL DEFAULT '',
		active      INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS unavailable_slots (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		slot_date   TEXT NOT NULL,
		start_time  TEXT NOT NULL DEFAULT '',
		end_time    TEXT NOT NULL DEFAULT '',
		reason      TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_slots_employee
		ON unavailable_slots(employee_id);

	CREATE TABLE IF NOT EXISTS unavailable_ranges (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		start_date  TEXT NOT NULL,
		end_date    TEXT NOT NULL,
		reason      TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_ranges_employee
		ON unavailable_ranges(employee_id);

	CREATE TABLE IF NOT EXISTS locations (
		id    TEXT PRIMARY KEY,
		name  TEXT NOT NULL,
		link  TEXT NOT NULL DEFAULT ''
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// MEETINGS
// =============================================================================

const meetingColumns = `id, lead_id, legacy_lead_id, meeting_date, meeting_time,
	manager, helper, scheduler, expert, handler, guest1, guest2,
	location_id, location_name, link, confirmed, confirmed_at,
	lead_name, lead_number, category, balance, currency_code, currency_id,
	stage, eligibility, probability, payment_ref, calendar_type,
	title, attendees, inactive`

// roleColumns whitelists the columns UpdateAssignment may touch.
var roleColumns = map[meeting.Role]string{
	meeting.RoleManager:   "manager",
	meeting.RoleHelper:    "helper",
	meeting.RoleScheduler: "scheduler",
	meeting.RoleExpert:    "expert",
	meeting.RoleHandler:   "handler",
	meeting.RoleGuest1:    "guest1",
	meeting.RoleGuest2:    "guest2",
}

// InsertMeeting upserts one source row. Used by seeding and tests.
func (s *Store) InsertMeeting(ctx context.Context, kind meeting.SourceKind, r meeting.RawMeeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	attendees, err := json.Marshal(nonNil(r.Attendees))
	if err != nil {
		return fmt.Errorf("encode attendees: %w", err)
	}
	var confirmed sql.NullBool
	if r.Confirmed != nil {
		confirmed = sql.NullBool{Bool: *r.Confirmed, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO meetings (source, `+meetingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(kind), r.ID, r.LeadID, r.LegacyLeadID, r.Date, r.Time,
		r.Manager, r.Helper, r.Scheduler, r.Expert, r.Handler, r.Guest1, r.Guest2,
		r.LocationID, r.LocationName, r.Link, confirmed, r.ConfirmedAt,
		r.LeadName, r.LeadNumber, r.Category, r.Balance, r.CurrencyCode, r.CurrencyID,
		r.Stage, r.Eligibility, r.Probability, r.PaymentRef, r.CalendarType,
		r.Title, string(attendees), r.Inactive,
	)
	if err != nil {
		return fmt.Errorf("insert %s meeting %q: %w", kind, r.ID, err)
	}
	return nil
}

func (s *Store) QueryMeetings(ctx context.Context, kind meeting.SourceKind, w meeting.Window, f meeting.QueryFilter) ([]meeting.RawMeeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// substr() tolerates legacy rows that store a full timestamp.
	query := `SELECT ` + meetingColumns + ` FROM meetings
		WHERE source = ? AND substr(meeting_date, 1, 10) BETWEEN ? AND ?`
	args := []any{string(kind), w.From.String(), w.To.String()}
	if f.ExcludeInactive {
		query += ` AND inactive = 0`
	}
	query += ` ORDER BY meeting_date, meeting_time, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapQueryError(ctx, kind, err)
	}
	defer rows.Close()

	var result []meeting.RawMeeting
	for rows.Next() {
		r, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapQueryError(ctx, kind, err)
	}
	return result, nil
}

// GetMeeting loads one row by source and raw id.
func (s *Store) GetMeeting(ctx context.Context, id meeting.Identity) (meeting.RawMeeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+meetingColumns+` FROM meetings WHERE source = ? AND id = ?`,
		string(id.Source), id.RawID)
	r, err := scanMeeting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return meeting.RawMeeting{}, meeting.ErrMeetingNotFound
	}
	if err != nil {
		return meeting.RawMeeting{}, mapQueryError(ctx, id.Source, err)
	}
	return r, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(rows rowScanner) (meeting.RawMeeting, error) {
	var (
		r         meeting.RawMeeting
		confirmed sql.NullBool
		attendees string
	)
	err := rows.Scan(
		&r.ID, &r.LeadID, &r.LegacyLeadID, &r.Date, &r.Time,
		&r.Manager, &r.Helper, &r.Scheduler, &r.Expert, &r.Handler, &r.Guest1, &r.Guest2,
		&r.LocationID, &r.LocationName, &r.Link, &confirmed, &r.ConfirmedAt,
		&r.LeadName, &r.LeadNumber, &r.Category, &r.Balance, &r.CurrencyCode, &r.CurrencyID,
		&r.Stage, &r.Eligibility, &r.Probability, &r.PaymentRef, &r.CalendarType,
		&r.Title, &attendees, &r.Inactive,
	)
	if err != nil {
		return meeting.RawMeeting{}, fmt.Errorf("scan meeting: %w", err)
	}
	if confirmed.Valid {
		v := confirmed.Bool
		r.Confirmed = &v
	}
	if attendees != "" {
		if err := json.Unmarshal([]byte(attendees), &r.Attendees); err != nil {
			return meeting.RawMeeting{}, fmt.Errorf("meeting %q attendees: %w", r.ID, err)
		}
	}
	return r, nil
}

func (s *Store) UpdateAssignment(ctx context.Context, id meeting.Identity, role meeting.Role, ref meeting.EmployeeRef) error {
	column, ok := roleColumns[role]
	if !ok {
		return fmt.Errorf("role %s: %w", role, meeting.ErrRoleNotApplicable)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		`UPDATE meetings SET `+column+` = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE source = ? AND id = ?`,
		ref.ID, string(id.Source), id.RawID,
	)
	if err != nil {
		return fmt.Errorf("update %s on %s: %w", role, id.Key(), err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s on %s: %w", role, id.Key(), err)
	}
	if n == 0 {
		return meeting.ErrMeetingNotFound
	}
	return nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// InsertEmployee upserts an employee and replaces their unavailability.
func (s *Store) InsertEmployee(ctx context.Context, e meeting.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO employees (id, name, email, phone, photo_url, role_code, department, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, email = excluded.email, phone = excluded.phone,
			photo_url = excluded.photo_url, role_code = excluded.role_code,
			department = excluded.department, active = excluded.active
	`, e.ID, e.Name, e.Email, e.Phone, e.PhotoURL, e.RoleCode, e.Department, e.Active)
	if err != nil {
		return fmt.Errorf("insert employee %q: %w", e.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM unavailable_slots WHERE employee_id = ?`, e.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM unavailable_ranges WHERE employee_id = ?`, e.ID); err != nil {
		return err
	}
	for _, slot := range e.UnavailableSlots {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO unavailable_slots (employee_id, slot_date, start_time, end_time, reason)
			VALUES (?, ?, ?, ?, ?)
		`, e.ID, slot.Date.String(), slot.Start.String(), slot.End.String(), slot.Reason)
		if err != nil {
			return fmt.Errorf("insert slot for %q: %w", e.ID, err)
		}
	}
	for _, rng := range e.UnavailableRanges {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO unavailable_ranges (employee_id, start_date, end_date, reason)
			VALUES (?, ?, ?, ?)
		`, e.ID, rng.Start.String(), rng.End.String(), rng.Reason)
		if err != nil {
			return fmt.Errorf("insert range for %q: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

func (s *Store) QueryEmployees(ctx context.Context, f meeting.EmployeeFilter) ([]meeting.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, name, email, phone, photo_url, role_code, department, active
		FROM employees WHERE 1 = 1`
	var args []any
	if f.ActiveOnly {
		query += ` AND active = 1`
	}
	if len(f.IDs) > 0 {
		query += ` AND id IN (?` + strings.Repeat(", ?", len(f.IDs)-1) + `)`
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	var (
		result []meeting.Employee
		index  = make(map[string]int)
	)
	for rows.Next() {
		var e meeting.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Email, &e.Phone, &e.PhotoURL, &e.RoleCode, &e.Department, &e.Active); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		index[e.ID] = len(result)
		result = append(result, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return result, nil
	}

	if err := s.attachSlots(ctx, result, index); err != nil {
		return nil, err
	}
	if err := s.attachRanges(ctx, result, index); err != nil {
		return nil, err
	}
	return result, nil
}

// attachSlots loads every slot and keeps the ones for employees in index.
// Unparseable dates are dropped here; the availability index never sees them.
func (s *Store) attachSlots(ctx context.Context, emps []meeting.Employee, index map[string]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, slot_date, start_time, end_time, reason
		FROM unavailable_slots ORDER BY employee_id, slot_date, start_time
	`)
	if err != nil {
		return fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var empID, date, start, end, reason string
		if err := rows.Scan(&empID, &date, &start, &end, &reason); err != nil {
			return fmt.Errorf("scan slot: %w", err)
		}
		i, ok := index[empID]
		if !ok {
			continue
		}
		d, err := meeting.ParseDate(date)
		if err != nil {
			continue
		}
		from, _ := meeting.ParseTimeOfDay(start)
		to, _ := meeting.ParseTimeOfDay(end)
		emps[i].UnavailableSlots = append(emps[i].UnavailableSlots, meeting.UnavailableSlot{
			Date: d, Start: from, End: to, Reason: reason,
		})
	}
	return rows.Err()
}

func (s *Store) attachRanges(ctx context.Context, emps []meeting.Employee, index map[string]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, start_date, end_date, reason
		FROM unavailable_ranges ORDER BY employee_id, start_date
	`)
	if err != nil {
		return fmt.Errorf("query ranges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var empID, start, end, reason string
		if err := rows.Scan(&empID, &start, &end, &reason); err != nil {
			return fmt.Errorf("scan range: %w", err)
		}
		i, ok := index[empID]
		if !ok {
			continue
		}
		from, err1 := meeting.ParseDate(start)
		to, err2 := meeting.ParseDate(end)
		if err1 != nil || err2 != nil {
			continue
		}
		emps[i].UnavailableRanges = append(emps[i].UnavailableRanges, meeting.UnavailableRange{
			Start: from, End: to, Reason: reason,
		})
	}
	return rows.Err()
}

// =============================================================================
// LOCATIONS
// =============================================================================

func (s *Store) InsertLocation(ctx context.Context, loc meeting.LocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (id, name, link) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, link = excluded.link
	`, loc.ID, loc.Name, loc.Link)
	if err != nil {
		return fmt.Errorf("insert location %q: %w", loc.ID, err)
	}
	return nil
}

func (s *Store) QueryLocations(ctx context.Context) ([]meeting.LocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, link FROM locations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	var result []meeting.LocationRecord
	for rows.Next() {
		var loc meeting.LocationRecord
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Link); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		result = append(result, loc)
	}
	return result, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

// mapQueryError turns an interrupted query into the cost-limit signal. A
// cancelled caller context stays a context error.
func mapQueryError(ctx context.Context, kind meeting.SourceKind, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("query %s meetings: %w", kind, ctxErr)
	}
	if isCostLimitError(err) {
		return fmt.Errorf("query %s meetings: %w", kind, meeting.ErrCostLimit)
	}
	return fmt.Errorf("query %s meetings: %w", kind, err)
}

func isCostLimitError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, meeting.ErrCostLimit) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "interrupted") || strings.Contains(msg, "statement timeout")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ meeting.Store = (*Store)(nil)

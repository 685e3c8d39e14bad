/*
seed.go - Demo scenario loaders for development and demonstrations

PURPOSE:
  Populates the database with small, realistic data sets that exercise
  specific engine behaviors. Dates are relative to the day passed in so a
  freshly seeded database always has meetings in the current week.

AVAILABLE SCENARIOS:
  directory:      Employees, unavailability and dynamic locations
  duplicates:     A legacy meeting mirrored in the current system
  staff-conflict: Jane Doe blocked 10:00-11:00 while assigned at 10:30
  mixed-currency: USD and EUR leads next to NIS ones

  "all" loads every scenario in order.

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Insert employees and locations
 3. Insert source rows per scenario

NOTE:
  Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - cmd/meetingd/main.go: seed command
*/
package sqlite

import (
	"context"
	"fmt"

	"github.com/warp/meeting-engine/meeting"
)

// Scenario describes one loadable data set.
type Scenario struct {
	ID          string
	Description string
	load        func(ctx context.Context, s *Store, today meeting.Date) error
}

var scenarios = []Scenario{
	{ID: "directory", Description: "Employees, unavailability and locations", load: seedDirectory},
	{ID: "duplicates", Description: "Legacy meeting mirrored in the current system", load: seedDuplicates},
	{ID: "staff-conflict", Description: "Assignment overlapping a blocked slot", load: seedStaffConflict},
	{ID: "mixed-currency", Description: "Leads balanced in USD, EUR and NIS", load: seedMixedCurrency},
}

func Scenarios() []Scenario {
	out := make([]Scenario, len(scenarios))
	copy(out, scenarios)
	return out
}

// Seed resets the database and loads the named scenario ("all" for every
// one). Scenarios other than directory load it first.
func (s *Store) Seed(ctx context.Context, id string, today meeting.Date) error {
	if err := s.Reset(ctx); err != nil {
		return err
	}
	if id == "all" {
		for _, sc := range scenarios {
			if err := sc.load(ctx, s, today); err != nil {
				return fmt.Errorf("scenario %s: %w", sc.ID, err)
			}
		}
		return nil
	}
	for _, sc := range scenarios {
		if sc.ID != id {
			continue
		}
		if sc.ID != "directory" {
			if err := seedDirectory(ctx, s, today); err != nil {
				return fmt.Errorf("scenario directory: %w", err)
			}
		}
		if err := sc.load(ctx, s, today); err != nil {
			return fmt.Errorf("scenario %s: %w", sc.ID, err)
		}
		return nil
	}
	return fmt.Errorf("unknown scenario %q", id)
}

// Reset clears every table.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"unavailable_slots", "unavailable_ranges", "employees", "meetings", "locations"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

func seedDirectory(ctx context.Context, s *Store, today meeting.Date) error {
	employees := []meeting.Employee{
		{
			ID: "7", Name: "Jane Doe", Email: "jane.doe@example.com", Phone: "+972501234567",
			RoleCode: "manager", Department: "Sales", Active: true,
			UnavailableSlots: []meeting.UnavailableSlot{{
				Date: today.AddDays(1), Start: meeting.NewTimeOfDay(10, 0), End: meeting.NewTimeOfDay(11, 0),
				Reason: "Dentist",
			}},
			UnavailableRanges: []meeting.UnavailableRange{{
				Start: today.AddDays(10), End: today.AddDays(12), Reason: "Vacation",
			}},
		},
		{ID: "8", Name: "Omer Levi", Email: "omer.levi@example.com", RoleCode: "expert", Department: "Legal", Active: true},
		{ID: "9", Name: "Dana Cohen", Email: "dana.cohen@example.com", RoleCode: "scheduler", Active: true},
		{ID: "10", Name: "Former Employee", Active: false},
	}
	for _, e := range employees {
		if err := s.InsertEmployee(ctx, e); err != nil {
			return err
		}
	}

	locations := []meeting.LocationRecord{
		{ID: "1", Name: "Tel Aviv Office"},
		{ID: "2", Name: "Zoom", Link: "https://zoom.example/j/100"},
		{ID: "5", Name: "Haifa Office"},
	}
	for _, loc := range locations {
		if err := s.InsertLocation(ctx, loc); err != nil {
			return err
		}
	}
	return nil
}

func seedDuplicates(ctx context.Context, s *Store, today meeting.Date) error {
	day := today.AddDays(1).String()
	if err := s.InsertMeeting(ctx, meeting.SourceLegacy, meeting.RawMeeting{
		ID: "501", Date: day + " 00:00:00", Time: "09:00:00", Manager: "Jane Doe",
		LeadName: "Acme Ltd", LeadNumber: "L-501", Balance: "12,000", CurrencyID: 1,
		LocationID: "1",
	}); err != nil {
		return err
	}
	return s.InsertMeeting(ctx, meeting.SourceCurrent, meeting.RawMeeting{
		ID: "abc", LegacyLeadID: "501", Date: day, Time: "09:00", Manager: "7",
		LeadName: "Acme Ltd", LeadNumber: "L-501", Balance: "12000", CurrencyCode: "NIS",
		CalendarType: string(meeting.CalendarActiveClient), LocationID: "1",
	})
}

func seedStaffConflict(ctx context.Context, s *Store, today meeting.Date) error {
	yes := true
	day := today.AddDays(1).String()
	if err := s.InsertMeeting(ctx, meeting.SourceCurrent, meeting.RawMeeting{
		ID: "conf-1", LeadID: "602", Date: day, Time: "10:30", Helper: "9",
		LeadName: "Blue Harbor", Balance: "4500", CurrencyCode: "NIS",
		LocationID: "2", Confirmed: &yes,
	}); err != nil {
		return err
	}
	return s.InsertMeeting(ctx, meeting.SourceStaff, meeting.RawMeeting{
		ID: "weekly", Date: day, Time: "16:00", Title: "Weekly Sync", LocationID: "1",
		Attendees: []string{"jane.doe@example.com", "omer.levi@example.com", "dana.cohen@example.com"},
	})
}

func seedMixedCurrency(ctx context.Context, s *Store, today meeting.Date) error {
	rows := []meeting.RawMeeting{
		{ID: "usd-1", LeadID: "701", Date: today.String(), Time: "11:00", Expert: "8",
			LeadName: "Northwind", Balance: "1,000", CurrencyCode: "USD", PaymentRef: "PAY-1"},
		{ID: "eur-1", LeadID: "702", Date: today.AddDays(2).String(), Time: "13:00", Expert: "8",
			LeadName: "Contoso", Balance: "2500", CurrencyID: 2, Probability: 60},
	}
	for _, r := range rows {
		if err := s.InsertMeeting(ctx, meeting.SourceCurrent, r); err != nil {
			return err
		}
	}
	return nil
}

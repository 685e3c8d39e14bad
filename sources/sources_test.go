package sources_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/meeting-engine/logging"
	"github.com/warp/meeting-engine/meeting"
	"github.com/warp/meeting-engine/meeting/store"
	"github.com/warp/meeting-engine/sources"
)

var march = meeting.NewWindow(meeting.MustParseDate("2024-03-01"), meeting.MustParseDate("2024-03-07"))

func staffDirectory() *sources.Directory {
	return sources.NewDirectory([]meeting.Employee{
		{ID: "7", Name: "Jane Doe", Email: "jane@firm.example"},
		{ID: "8", Name: "Omer Levi", Email: "omer@firm.example"},
		{ID: "9", Name: "Dana Cohen"},
	}, nil)
}

// =============================================================================
// DIRECTORY
// =============================================================================

func TestDirectory_ResolveRole(t *testing.T) {
	dir := staffDirectory()

	byID := dir.ResolveRole("7")
	ref, ok := byID.Ref()
	require.True(t, ok)
	assert.Equal(t, meeting.EmployeeRef{ID: "7", Name: "Jane Doe"}, ref)

	byName := dir.ResolveRole("  omer LEVI")
	assert.True(t, byName.IsResolved())
	assert.Equal(t, "Omer Levi", byName.Display())

	// Unresolvable values keep their raw text
	unknown := dir.ResolveRole("42")
	assert.False(t, unknown.IsResolved())
	assert.Equal(t, "42", unknown.Display())

	assert.True(t, dir.ResolveRole("   ").IsEmpty())
}

func TestDirectory_NilIsUsable(t *testing.T) {
	var dir *sources.Directory
	assert.Equal(t, "Someone", dir.ResolveRole("Someone").Display())
	assert.Equal(t, "x@y.example", dir.AttendeeName("x@y.example"))
	assert.NotNil(t, dir.Lookup())
}

func TestDirectory_AttendeeName(t *testing.T) {
	dir := staffDirectory()

	assert.Equal(t, "Jane Doe", dir.AttendeeName("JANE@firm.example"))
	assert.Equal(t, "Jane Doe", dir.AttendeeName("mailto:jane@firm.example"))
	// firstname.lastname pattern fallback
	assert.Equal(t, "Dana Cohen", dir.AttendeeName("dana.cohen@other.example"))
	assert.Equal(t, "guest@outside.example", dir.AttendeeName("guest@outside.example"))
}

// =============================================================================
// LABEL
// =============================================================================

func TestAttendeeLabel(t *testing.T) {
	names := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = string(rune('A' + i))
		}
		return out
	}

	assert.Equal(t, meeting.Placeholder, sources.AttendeeLabel(nil))
	assert.Equal(t, "A", sources.AttendeeLabel(names(1)))
	assert.Equal(t, "A, B", sources.AttendeeLabel(names(2)))
	assert.Equal(t, "A, B, C", sources.AttendeeLabel(names(3)))
	assert.Equal(t, "A, B +2 more", sources.AttendeeLabel(names(4)))
	assert.Equal(t, "A, B +8 more", sources.AttendeeLabel(names(10)))
	assert.Equal(t, sources.AllStaffLabel, sources.AttendeeLabel(names(11)))
}

// =============================================================================
// ADAPTERS
// =============================================================================

func TestCurrentAdapter_Shapes(t *testing.T) {
	// GIVEN: a current row with an id role, a name role, USD balance and a back-reference
	st := store.NewMemory()
	confirmed := true
	st.AddMeetings(meeting.SourceCurrent, meeting.RawMeeting{
		ID: "abc", LeadID: "L-1", LegacyLeadID: "501",
		Date: "2024-03-01", Time: "09:30",
		Manager: "7", Helper: "Unknown Person",
		LocationID: "2", Balance: "1,000", CurrencyCode: "usd",
		Probability: 140, PaymentRef: "pay-1",
		Confirmed: &confirmed, CalendarType: "active_client",
	})

	// WHEN
	got, err := sources.NewCurrentAdapter(st).Fetch(context.Background(), march, staffDirectory())

	// THEN
	require.NoError(t, err)
	require.Len(t, got, 1)
	m := got[0]
	assert.Equal(t, "abc", m.ID)
	assert.Equal(t, meeting.Identity{Source: meeting.SourceCurrent, RawID: "abc", LegacyBackRef: "501"}, m.Identity)
	assert.Equal(t, meeting.CalendarActiveClient, m.CalendarType)
	assert.Equal(t, "09:30", m.Time.String())
	assert.Equal(t, "Jane Doe", m.Participant(meeting.RoleManager).Display())
	assert.Equal(t, "Unknown Person", m.Participant(meeting.RoleHelper).Display())
	assert.Equal(t, meeting.Placeholder, m.Participant(meeting.RoleExpert).Display())
	assert.Equal(t, "Online", m.Location.Name)
	assert.Equal(t, meeting.USD, m.Subject.Currency)
	assert.True(t, m.Subject.BalanceNIS.Equal(decimal.NewFromInt(3700)))
	assert.Equal(t, 100, m.Subject.Probability)
	assert.True(t, m.Subject.Paid())
	assert.True(t, m.Confirmed)
}

func TestCurrentAdapter_ExcludesInactive(t *testing.T) {
	st := store.NewMemory()
	st.AddMeetings(meeting.SourceCurrent,
		meeting.RawMeeting{ID: "a", Date: "2024-03-02"},
		meeting.RawMeeting{ID: "b", Date: "2024-03-02", Inactive: true},
	)

	got, err := sources.NewCurrentAdapter(st).Fetch(context.Background(), march, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestLegacyAdapter_KeysWithPrefix(t *testing.T) {
	st := store.NewMemory()
	st.AddMeetings(meeting.SourceLegacy, meeting.RawMeeting{
		ID: "501", Date: "2024-03-01", Manager: "7", CurrencyID: 2, Balance: "100",
		ConfirmedAt: "2024-02-28 10:00:00",
	})

	got, err := sources.NewLegacyAdapter(st).Fetch(context.Background(), march, staffDirectory())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "legacy_501", got[0].ID)
	assert.Equal(t, meeting.SourceLegacy, got[0].Source)
	assert.Equal(t, meeting.EUR, got[0].Subject.Currency)
	assert.True(t, got[0].Confirmed)
	assert.False(t, got[0].Time.Valid())
}

func TestAdapter_ShapingErrorFailsFetch(t *testing.T) {
	st := store.NewMemory()
	st.AddMeetings(meeting.SourceLegacy,
		meeting.RawMeeting{ID: "1", Date: "2024-03-01"},
		meeting.RawMeeting{ID: "2", Date: "not-a-date"},
	)

	_, err := sources.NewLegacyAdapter(st).Fetch(context.Background(), march, nil)
	assert.Error(t, err)
}

func TestStaffAdapter_AttendeesAndLabel(t *testing.T) {
	st := store.NewMemory()
	st.AddMeetings(meeting.SourceStaff, meeting.RawMeeting{
		ID: "s1", Date: "2024-03-04", Time: "08:00", Title: "Weekly sync",
		Attendees: []string{"jane@firm.example", "omer@firm.example", "dana.cohen@firm.example", "ext@vendor.example"},
	})

	got, err := sources.NewStaffAdapter(st, nil).Fetch(context.Background(), march, staffDirectory())
	require.NoError(t, err)
	require.Len(t, got, 1)
	m := got[0]
	assert.Equal(t, "staff_s1", m.ID)
	assert.Equal(t, meeting.CalendarStaff, m.CalendarType)
	assert.Equal(t, []string{"Jane Doe", "Omer Levi", "Dana Cohen", "ext@vendor.example"}, m.Attendees)
	assert.Equal(t, "Jane Doe, Omer Levi +2 more", m.AttendeeLabel)
	assert.NotNil(t, m.Roles)
	assert.Equal(t, "Weekly sync", m.Subject.Name)
}

type failingFeed struct{}

func (failingFeed) Name() string { return "broken" }
func (failingFeed) Rows(context.Context, meeting.Window) ([]meeting.RawMeeting, error) {
	return nil, errors.New("feed down")
}

func TestStaffAdapter_FailingFeedIsSkipped(t *testing.T) {
	st := store.NewMemory()
	st.AddMeetings(meeting.SourceStaff, meeting.RawMeeting{ID: "s1", Date: "2024-03-04"})

	got, err := sources.NewStaffAdapter(st, logging.Nop(), failingFeed{}).Fetch(context.Background(), march, nil)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

// =============================================================================
// GUARD
// =============================================================================

type panickyAdapter struct{}

func (panickyAdapter) Kind() meeting.SourceKind { return meeting.SourceLegacy }
func (panickyAdapter) Fetch(context.Context, meeting.Window, *sources.Directory) ([]meeting.Meeting, error) {
	panic("nil row")
}

func TestGuard_AbsorbsErrors(t *testing.T) {
	// GIVEN: a store whose legacy queries hit the cost limit
	st := store.NewMemory()
	st.AddMeetings(meeting.SourceLegacy, meeting.RawMeeting{ID: "1", Date: "2024-03-01"})
	st.FailQueries(meeting.SourceLegacy, meeting.ErrCostLimit)

	// WHEN
	out := sources.Guard(sources.NewLegacyAdapter(st), logging.Nop()).Fetch(context.Background(), march, nil)

	// THEN: empty result with a typed, trip-worthy error
	assert.Empty(t, out.Meetings)
	require.True(t, out.Failed())
	assert.ErrorIs(t, out.Err, meeting.ErrSourceUnavailable)
	assert.ErrorIs(t, out.Err, meeting.ErrCostLimit)
	assert.True(t, meeting.IsTripSignal(out.Err))
	assert.Equal(t, meeting.SourceLegacy, out.Err.Source)
}

func TestGuard_RecoversPanics(t *testing.T) {
	out := sources.Guard(panickyAdapter{}, nil).Fetch(context.Background(), march, nil)
	require.True(t, out.Failed())
	assert.Empty(t, out.Meetings)
	assert.Contains(t, out.Err.Error(), "nil row")
}

func TestGuard_TimeoutBecomesTripSignal(t *testing.T) {
	st := store.NewMemory()
	st.SlowQueries(meeting.SourceLegacy, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	out := sources.Guard(sources.NewLegacyAdapter(st), nil).Fetch(ctx, march, nil)

	require.True(t, out.Failed())
	assert.True(t, meeting.IsTripSignal(out.Err))
}

func TestGuard_SuccessNeverNil(t *testing.T) {
	out := sources.Guard(sources.NewCurrentAdapter(store.NewMemory()), nil).Fetch(context.Background(), march, nil)
	assert.False(t, out.Failed())
	assert.NotNil(t, out.Meetings)
	assert.Empty(t, out.Meetings)
}

// =============================================================================
// ICS
// =============================================================================

const staffICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:evt-1
DTSTAMP:20240301T000000Z
DTSTART:20240303T090000Z
DTEND:20240303T100000Z
SUMMARY:Team standup
LOCATION:Room 2
STATUS:CONFIRMED
ATTENDEE;CN=Jane:mailto:jane@firm.example
ATTENDEE;CN=Omer:MAILTO:omer@firm.example
END:VEVENT
BEGIN:VEVENT
UID:evt-2
DTSTAMP:20240301T000000Z
DTSTART;VALUE=DATE:20240305
SUMMARY:Offsite
END:VEVENT
BEGIN:VEVENT
UID:evt-3
DTSTAMP:20240301T000000Z
DTSTART:20240320T090000Z
SUMMARY:Outside window
END:VEVENT
BEGIN:VEVENT
UID:evt-4
DTSTAMP:20240301T000000Z
DTSTART:20240304T090000Z
SUMMARY:Cancelled
STATUS:CANCELLED
END:VEVENT
END:VCALENDAR
`

func icsBody() []byte {
	return []byte(strings.ReplaceAll(staffICS, "\n", "\r\n"))
}

func TestParseICSRows(t *testing.T) {
	rows, err := sources.ParseICSRows("team", icsBody(), march, time.UTC)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "team:evt-1", rows[0].ID)
	assert.Equal(t, "2024-03-03", rows[0].Date)
	assert.Equal(t, "09:00", rows[0].Time)
	assert.Equal(t, "Team standup", rows[0].Title)
	assert.Equal(t, "Room 2", rows[0].LocationName)
	assert.True(t, rows[0].IsConfirmed())
	assert.Equal(t, []string{"jane@firm.example", "omer@firm.example"}, rows[0].Attendees)

	assert.Equal(t, "2024-03-05", rows[1].Date)
	assert.Empty(t, rows[1].Time)
}

func TestICSStaffSource_ConditionalFetch(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(icsBody())
	}))
	defer srv.Close()

	feed := sources.NewICSStaffSource("team", srv.URL, srv.Client(), time.UTC)
	st := store.NewMemory()
	adapter := sources.NewStaffAdapter(st, nil, feed)

	for i := 0; i < 2; i++ {
		got, err := adapter.Fetch(context.Background(), march, staffDirectory())
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "staff_team:evt-1", got[0].ID)
		assert.Equal(t, "Jane Doe, Omer Levi", got[0].AttendeeLabel)
	}
	assert.Equal(t, 2, hits)
}

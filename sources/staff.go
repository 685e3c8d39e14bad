package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/meeting-engine/logging"
	"github.com/warp/meeting-engine/meeting"
)

// RowSource supplies extra staff-calendar rows next to the store's table.
type RowSource interface {
	Name() string
	Rows(ctx context.Context, w meeting.Window) ([]meeting.RawMeeting, error)
}

// StaffAdapter reads the internal staff calendar. Feeds are supplementary:
// a failing feed is logged and skipped, the store rows are still returned.
type StaffAdapter struct {
	store meeting.Store
	feeds []RowSource
	log   logging.Logger
}

func NewStaffAdapter(store meeting.Store, log logging.Logger, feeds ...RowSource) *StaffAdapter {
	if log == nil {
		log = logging.Nop()
	}
	return &StaffAdapter{store: store, feeds: feeds, log: log}
}

func (a *StaffAdapter) Kind() meeting.SourceKind { return meeting.SourceStaff }

func (a *StaffAdapter) Fetch(ctx context.Context, w meeting.Window, dir *Directory) ([]meeting.Meeting, error) {
	rows, err := a.store.QueryMeetings(ctx, meeting.SourceStaff, w, meeting.QueryFilter{})
	if err != nil {
		return nil, err
	}
	for _, feed := range a.feeds {
		extra, err := feed.Rows(ctx, w)
		if err != nil {
			a.log.Warn("staff feed failed", logging.F("feed", feed.Name()), logging.Err(err))
			continue
		}
		rows = append(rows, extra...)
	}

	out := make([]meeting.Meeting, 0, len(rows))
	for _, row := range rows {
		m, err := shapeStaff(row, dir)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func shapeStaff(row meeting.RawMeeting, dir *Directory) (meeting.Meeting, error) {
	id := meeting.Identity{Source: meeting.SourceStaff, RawID: strings.TrimSpace(row.ID)}
	if id.RawID == "" {
		return meeting.Meeting{}, fmt.Errorf("staff row without id (%q)", row.Title)
	}
	date, err := meeting.ParseDate(row.Date)
	if err != nil {
		return meeting.Meeting{}, fmt.Errorf("staff meeting %q: %w", id.RawID, err)
	}

	attendees := make([]string, 0, len(row.Attendees))
	for _, email := range row.Attendees {
		if strings.TrimSpace(email) == "" {
			continue
		}
		attendees = append(attendees, dir.AttendeeName(email))
	}

	title := strings.TrimSpace(row.Title)
	subjectName := title
	if subjectName == "" {
		subjectName = "Staff Meeting"
	}

	return meeting.Meeting{
		ID:            id.Key(),
		Identity:      id,
		Source:        meeting.SourceStaff,
		CalendarType:  meeting.CalendarStaff,
		Date:          date,
		Time:          parseTime(row.Time),
		Roles:         map[meeting.Role]meeting.Participant{},
		Subject:       meeting.Subject{Name: subjectName, Currency: meeting.NIS},
		Location:      dir.Lookup().Location(row.LocationID, row.LocationName, row.Link),
		Confirmed:     row.IsConfirmed(),
		Title:         title,
		Attendees:     attendees,
		AttendeeLabel: AttendeeLabel(attendees),
	}, nil
}

package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/warp/meeting-engine/meeting"
)

// =============================================================================
// ICS STAFF FEED
// =============================================================================

// ICSStaffSource reads staff-calendar rows from an ICS subscription. Each
// VEVENT inside the window becomes one row; ATTENDEE mailto addresses become
// the row's attendee emails. Recurrence rules are not expanded.
//
// The last body is kept with its ETag so an unchanged feed costs one
// conditional request.
type ICSStaffSource struct {
	name   string
	url    string
	client *http.Client
	loc    *time.Location

	mu   sync.Mutex
	etag string
	body []byte
}

func NewICSStaffSource(name, url string, client *http.Client, loc *time.Location) *ICSStaffSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ICSStaffSource{name: name, url: url, client: client, loc: loc}
}

func (s *ICSStaffSource) Name() string { return s.name }

func (s *ICSStaffSource) Rows(ctx context.Context, w meeting.Window) ([]meeting.RawMeeting, error) {
	body, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return ParseICSRows(s.name, body, w, s.loc)
}

func (s *ICSStaffSource) fetch(ctx context.Context) ([]byte, error) {
	if s.url == "" {
		return nil, errors.New("ics feed url is empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.etag != "" {
		req.Header.Set("If-None-Match", s.etag)
	}
	s.mu.Unlock()

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ics feed %s: %w", s.name, err)
	}
	defer resp.Body.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read ics feed %s: %w", s.name, err)
		}
		s.body = body
		s.etag = resp.Header.Get("ETag")
		return body, nil
	case http.StatusNotModified:
		if len(s.body) == 0 {
			return nil, fmt.Errorf("ics feed %s: 304 without cached body", s.name)
		}
		return s.body, nil
	default:
		return nil, fmt.Errorf("ics feed %s: unexpected status %d", s.name, resp.StatusCode)
	}
}

// ParseICSRows converts an ICS payload into staff rows within w. Events
// without a UID or start are skipped; cancelled events are dropped.
func ParseICSRows(feed string, body []byte, w meeting.Window, loc *time.Location) ([]meeting.RawMeeting, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.UTC
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse ics feed %s: %w", feed, err)
	}

	var rows []meeting.RawMeeting
	for _, ev := range cal.Events() {
		row, ok := eventRow(feed, ev, loc)
		if !ok {
			continue
		}
		d, err := meeting.ParseDate(row.Date)
		if err != nil || !w.Contains(d) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func eventRow(feed string, ev *ical.VEvent, loc *time.Location) (meeting.RawMeeting, bool) {
	uid := propValue(ev, ical.ComponentPropertyUniqueId)
	if uid == "" {
		return meeting.RawMeeting{}, false
	}
	if strings.EqualFold(propValue(ev, ical.ComponentPropertyStatus), "CANCELLED") {
		return meeting.RawMeeting{}, false
	}

	dtStart := ev.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return meeting.RawMeeting{}, false
	}

	row := meeting.RawMeeting{
		ID:           feed + ":" + uid,
		Title:        propValue(ev, ical.ComponentPropertySummary),
		LocationName: propValue(ev, ical.ComponentPropertyLocation),
		Link:         propValue(ev, ical.ComponentPropertyUrl),
	}

	if isAllDay(dtStart) {
		v := strings.TrimSpace(dtStart.Value)
		if len(v) > 8 {
			v = v[:8]
		}
		day, err := time.Parse("20060102", v)
		if err != nil {
			return meeting.RawMeeting{}, false
		}
		row.Date = day.Format("2006-01-02")
	} else {
		start, err := ev.GetStartAt()
		if err != nil {
			return meeting.RawMeeting{}, false
		}
		start = start.In(loc)
		row.Date = start.Format("2006-01-02")
		row.Time = start.Format("15:04")
	}

	if strings.EqualFold(propValue(ev, ical.ComponentPropertyStatus), "CONFIRMED") {
		confirmed := true
		row.Confirmed = &confirmed
	}

	for _, p := range ev.GetProperties(ical.ComponentPropertyAttendee) {
		email := strings.TrimSpace(p.Value)
		if len(email) >= len("mailto:") && strings.EqualFold(email[:len("mailto:")], "mailto:") {
			email = email[len("mailto:"):]
		}
		if email != "" {
			row.Attendees = append(row.Attendees, email)
		}
	}
	return row, true
}

func isAllDay(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func propValue(ev *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ev.GetProperty(prop); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

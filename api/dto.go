/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal model (Participant unions, civil dates, decimals) from the
  external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Meetings:
    MeetingDTO, ParticipantDTO, SubjectDTO, MeetingsResponse

  Availability:
    ConflictDTO, RefreshResponse

  Assignment:
    AssignRequest, AssignResponse

  Sources:
    engine.BreakerState (served as is)

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"sort"
	"time"

	"github.com/warp/meeting-engine/availability"
	"github.com/warp/meeting-engine/engine"
	"github.com/warp/meeting-engine/meeting"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ParticipantDTO is a role occupant. EmployeeID is set only when the raw
// value matched the directory.
type ParticipantDTO struct {
	Display    string `json:"display"`
	EmployeeID string `json:"employee_id,omitempty"`
}

type SubjectDTO struct {
	LeadID      string `json:"lead_id,omitempty"`
	Name        string `json:"name"`
	Number      string `json:"number,omitempty"`
	Category    string `json:"category,omitempty"`
	Balance     string `json:"balance"`
	Currency    string `json:"currency"`
	Symbol      string `json:"currency_symbol"`
	BalanceNIS  string `json:"balance_nis"`
	Stage       string `json:"stage,omitempty"`
	Eligibility string `json:"eligibility,omitempty"`
	Probability int    `json:"probability"`
	Paid        bool   `json:"paid"`
}

type MeetingDTO struct {
	ID           string                    `json:"id"`
	Source       string                    `json:"source"`
	CalendarType string                    `json:"calendar_type"`
	Date         meeting.Date              `json:"date"`
	Time         meeting.TimeOfDay         `json:"time"`
	Roles        map[string]ParticipantDTO `json:"roles"`
	Subject      SubjectDTO                `json:"subject"`
	Location     string                    `json:"location"`
	Link         string                    `json:"link,omitempty"`
	Confirmed    bool                      `json:"confirmed"`

	Title         string   `json:"title,omitempty"`
	Attendees     []string `json:"attendees,omitempty"`
	AttendeeLabel string   `json:"attendee_label,omitempty"`
}

type AmbiguityDTO struct {
	Source string `json:"source"`
	RawID  string `json:"raw_id"`
	Reason string `json:"reason"`
}

type WindowDTO struct {
	From meeting.Date `json:"from"`
	To   meeting.Date `json:"to"`
}

type MeetingsResponse struct {
	FetchID          string                  `json:"fetch_id"`
	Window           WindowDTO               `json:"window"`
	Meetings         []MeetingDTO            `json:"meetings"`
	Count            int                     `json:"count"`
	TotalNIS         string                  `json:"total_nis"`
	Degraded         []engine.DegradedSource `json:"degraded"`
	Ambiguities      []AmbiguityDTO          `json:"ambiguities,omitempty"`
	EffectiveWindows map[string]WindowDTO    `json:"effective_windows"`
}

// ConflictDTO answers an availability check.
type ConflictDTO struct {
	Employee string              `json:"employee"`
	Date     meeting.Date        `json:"date"`
	Time     meeting.TimeOfDay   `json:"time"`
	Status   availability.Status `json:"status"`
	Reason   string              `json:"reason,omitempty"`
	AllDay   bool                `json:"all_day,omitempty"`
	Start    meeting.TimeOfDay   `json:"start"`
	End      meeting.TimeOfDay   `json:"end"`
}

type RefreshResponse struct {
	Employees   int       `json:"employees"`
	PublishedAt time.Time `json:"published_at"`
}

// AssignRequest is the body of POST /api/meetings/{id}/assignments. The
// meeting's date and time are read from the store, never from the client.
type AssignRequest struct {
	Role        string `json:"role"`
	EmployeeID  string `json:"employee_id"`
	Acknowledge bool   `json:"acknowledge"`
}

type AssignResponse struct {
	Status    engine.AssignStatus `json:"status"`
	MeetingID string              `json:"meeting_id"`
	Role      string              `json:"role"`
	Date      meeting.Date        `json:"date"`
	Time      meeting.TimeOfDay   `json:"time"`
	Assignee  meeting.EmployeeRef `json:"assignee"`
	ChangedBy meeting.EmployeeRef `json:"changed_by"`
	Conflict  *ConflictDTO        `json:"conflict,omitempty"`
}

type EmployeeDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	PhotoURL   string `json:"photo_url,omitempty"`
	RoleCode   string `json:"role_code,omitempty"`
	Department string `json:"department,omitempty"`
	Active     bool   `json:"active"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toMeetingDTO(m meeting.Meeting) MeetingDTO {
	roles := make(map[string]ParticipantDTO, len(m.Roles))
	for role, p := range m.Roles {
		if p.IsEmpty() {
			continue
		}
		dto := ParticipantDTO{Display: p.Display()}
		if ref, ok := p.Ref(); ok {
			dto.EmployeeID = ref.ID
		}
		roles[string(role)] = dto
	}

	s := m.Subject
	return MeetingDTO{
		ID:           m.ID,
		Source:       string(m.Source),
		CalendarType: string(m.CalendarType),
		Date:         m.Date,
		Time:         m.Time,
		Roles:        roles,
		Subject: SubjectDTO{
			LeadID:      s.LeadID,
			Name:        s.Name,
			Number:      s.Number,
			Category:    s.Category,
			Balance:     s.Balance.StringFixed(2),
			Currency:    s.Currency.Code,
			Symbol:      s.Currency.Symbol,
			BalanceNIS:  s.BalanceNIS.StringFixed(2),
			Stage:       s.Stage,
			Eligibility: s.Eligibility,
			Probability: s.Probability,
			Paid:        s.Paid(),
		},
		Location:      m.Location.Name,
		Link:          m.Location.Link,
		Confirmed:     m.Confirmed,
		Title:         m.Title,
		Attendees:     m.Attendees,
		AttendeeLabel: m.AttendeeLabel,
	}
}

func toMeetingsResponse(w meeting.Window, res engine.Result) MeetingsResponse {
	out := MeetingsResponse{
		FetchID:          res.FetchID,
		Window:           WindowDTO{From: w.From, To: w.To},
		Meetings:         make([]MeetingDTO, 0, len(res.Meetings)),
		Count:            len(res.Meetings),
		TotalNIS:         res.TotalNIS.StringFixed(2),
		Degraded:         res.Degraded,
		EffectiveWindows: make(map[string]WindowDTO, len(res.EffectiveWindows)),
	}
	if out.Degraded == nil {
		out.Degraded = []engine.DegradedSource{}
	}
	for _, m := range res.Meetings {
		out.Meetings = append(out.Meetings, toMeetingDTO(m))
	}
	for _, a := range res.Ambiguities {
		out.Ambiguities = append(out.Ambiguities, AmbiguityDTO{
			Source: string(a.Identity.Source),
			RawID:  a.Identity.RawID,
			Reason: a.Reason,
		})
	}
	for kind, eff := range res.EffectiveWindows {
		out.EffectiveWindows[string(kind)] = WindowDTO{From: eff.From, To: eff.To}
	}
	return out
}

func toConflictDTO(name string, d meeting.Date, t meeting.TimeOfDay, r availability.ConflictResult) ConflictDTO {
	dto := ConflictDTO{Employee: name, Date: d, Time: t, Status: r.Status}
	if r.Reason != nil {
		dto.Reason = r.Reason.Reason
		dto.AllDay = r.Reason.AllDay
		dto.Start = r.Reason.Start
		dto.End = r.Reason.End
	}
	return dto
}

func toEmployeeDTOs(emps []meeting.Employee) []EmployeeDTO {
	dtos := make([]EmployeeDTO, 0, len(emps))
	for _, e := range emps {
		dtos = append(dtos, EmployeeDTO{
			ID:         e.ID,
			Name:       e.Name,
			Email:      e.Email,
			Phone:      e.Phone,
			PhotoURL:   e.PhotoURL,
			RoleCode:   e.RoleCode,
			Department: e.Department,
			Active:     e.Active,
		})
	}
	sort.Slice(dtos, func(i, j int) bool { return dtos[i].Name < dtos[j].Name })
	return dtos
}

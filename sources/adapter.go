/*
Package sources turns the three foreign meeting schemas into canonical
meeting.Meeting values.

PURPOSE:
  Each adapter owns one source. It fetches rows for a window, resolves the
  role columns through the Directory, and shapes each row: currency
  normalization, location resolution, confirmation. Nothing downstream ever
  looks at a raw row again.

ADAPTERS:
  - CurrentAdapter: current lead meetings (authoritative write path)
  - LegacyAdapter:  legacy lead meetings (read shim, cost-sensitive)
  - StaffAdapter:   internal staff calendar, plus optional ICS feeds

FAILURE BOUNDARY:
  Adapters return errors. Guard wraps an adapter so that no error or panic
  escapes: the caller always receives an Outcome, possibly empty, with the
  failure attached as a *meeting.SourceUnavailableError.

SEE ALSO:
  - directory.go: id/name/email resolution
  - label.go:     attendee label collapsing
  - ics.go:       ICS staff-calendar feed
  - guard.go:     failure boundary
*/
package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/meeting-engine/meeting"
)

// Adapter fetches one source's meetings for a window.
type Adapter interface {
	Kind() meeting.SourceKind
	Fetch(ctx context.Context, w meeting.Window, dir *Directory) ([]meeting.Meeting, error)
}

// inactiveFilter is applied to every lead query.
var inactiveFilter = meeting.QueryFilter{ExcludeInactive: true}

// =============================================================================
// CURRENT
// =============================================================================

type CurrentAdapter struct {
	store meeting.Store
}

func NewCurrentAdapter(store meeting.Store) *CurrentAdapter {
	return &CurrentAdapter{store: store}
}

func (a *CurrentAdapter) Kind() meeting.SourceKind { return meeting.SourceCurrent }

func (a *CurrentAdapter) Fetch(ctx context.Context, w meeting.Window, dir *Directory) ([]meeting.Meeting, error) {
	rows, err := a.store.QueryMeetings(ctx, meeting.SourceCurrent, w, inactiveFilter)
	if err != nil {
		return nil, err
	}
	out := make([]meeting.Meeting, 0, len(rows))
	for _, row := range rows {
		id := strings.TrimSpace(row.ID)
		if id == "" {
			return nil, fmt.Errorf("current row without id (lead %q)", row.LeadID)
		}
		m, err := shapeLead(row, meeting.Identity{
			Source:        meeting.SourceCurrent,
			RawID:         id,
			LegacyBackRef: strings.TrimSpace(row.LegacyLeadID),
		}, dir)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// =============================================================================
// LEGACY
// =============================================================================

// LegacyAdapter reads the legacy lead table. A row without an id is still
// shaped; the reconciler reports it as ambiguous rather than losing it.
type LegacyAdapter struct {
	store meeting.Store
}

func NewLegacyAdapter(store meeting.Store) *LegacyAdapter {
	return &LegacyAdapter{store: store}
}

func (a *LegacyAdapter) Kind() meeting.SourceKind { return meeting.SourceLegacy }

func (a *LegacyAdapter) Fetch(ctx context.Context, w meeting.Window, dir *Directory) ([]meeting.Meeting, error) {
	rows, err := a.store.QueryMeetings(ctx, meeting.SourceLegacy, w, inactiveFilter)
	if err != nil {
		return nil, err
	}
	out := make([]meeting.Meeting, 0, len(rows))
	for _, row := range rows {
		m, err := shapeLead(row, meeting.Identity{
			Source: meeting.SourceLegacy,
			RawID:  strings.TrimSpace(row.ID),
		}, dir)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// =============================================================================
// SHAPING
// =============================================================================

func shapeLead(row meeting.RawMeeting, id meeting.Identity, dir *Directory) (meeting.Meeting, error) {
	date, tod, err := row.Schedule()
	if err != nil {
		return meeting.Meeting{}, fmt.Errorf("%s meeting %q: %w", id.Source, id.RawID, err)
	}

	roles := make(map[meeting.Role]meeting.Participant, len(meeting.AllRoles))
	for role, raw := range row.RoleValues() {
		if p := dir.ResolveRole(raw); !p.IsEmpty() {
			roles[role] = p
		}
	}

	lookup := dir.Lookup()
	currency := lookup.Currency(row.CurrencyCode, row.CurrencyID)
	balance := meeting.ParseAmount(row.Balance)

	return meeting.Meeting{
		ID:           id.Key(),
		Identity:     id,
		Source:       id.Source,
		CalendarType: row.LeadCalendarType(),
		Date:         date,
		Time:         tod,
		Roles:        roles,
		Subject: meeting.Subject{
			LeadID:      strings.TrimSpace(row.LeadID),
			Name:        strings.TrimSpace(row.LeadName),
			Number:      strings.TrimSpace(row.LeadNumber),
			Category:    strings.TrimSpace(row.Category),
			Balance:     balance,
			Currency:    currency,
			BalanceNIS:  lookup.Rates().ToNIS(balance, currency),
			Stage:       strings.TrimSpace(row.Stage),
			Eligibility: strings.TrimSpace(row.Eligibility),
			Probability: clampProbability(row.Probability),
			PaymentRef:  strings.TrimSpace(row.PaymentRef),
		},
		Location:  lookup.Location(row.LocationID, row.LocationName, row.Link),
		Confirmed: row.IsConfirmed(),
	}, nil
}

// parseTime treats an unreadable time as absent; the meeting still has a date.
func parseTime(s string) meeting.TimeOfDay {
	t, err := meeting.ParseTimeOfDay(s)
	if err != nil {
		return meeting.NoTime
	}
	return t
}

func clampProbability(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

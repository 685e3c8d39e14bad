package meeting

import (
	"strings"

	"golang.org/x/text/cases"
)

// =============================================================================
// LOOKUP - One canonical table set consulted by every adapter
// =============================================================================

// Lookup resolves location ids and currency codes. The dynamic table (loaded
// from the store) overrides the seed table; the seed is only the fallback
// used until the dynamic table is available.
//
// A Lookup is immutable once built and safe for concurrent use.
type Lookup struct {
	seed    map[string]Location
	dynamic map[string]Location
	rates   Rates
}

// DefaultLocationSeed is the built-in fallback location table.
func DefaultLocationSeed() map[string]Location {
	return map[string]Location{
		"1": {Name: "Office"},
		"2": {Name: "Online"},
		"3": {Name: "Phone Call"},
		"4": {Name: "Client Site"},
	}
}

func NewLookup(seed map[string]Location, rates Rates) *Lookup {
	if seed == nil {
		seed = DefaultLocationSeed()
	}
	if rates == nil {
		rates = DefaultRates()
	}
	return &Lookup{seed: seed, rates: rates}
}

// WithDynamic returns a copy of l that prefers the given records.
func (l *Lookup) WithDynamic(records []LocationRecord) *Lookup {
	dyn := make(map[string]Location, len(records))
	for _, r := range records {
		if strings.TrimSpace(r.ID) == "" {
			continue
		}
		dyn[strings.TrimSpace(r.ID)] = Location{Name: r.Name, Link: r.Link}
	}
	return &Lookup{seed: l.seed, dynamic: dyn, rates: l.rates}
}

// HasDynamic reports whether a dynamic table has been loaded.
func (l *Lookup) HasDynamic() bool { return l.dynamic != nil }

func (l *Lookup) Rates() Rates { return l.rates }

// Location resolves a location id. A row-level name wins over the tables
// when the id is unknown; an unknown id with no name is kept as raw text.
// A row-level link always wins over a table link.
func (l *Lookup) Location(id, name, link string) Location {
	id = strings.TrimSpace(id)
	loc, ok := l.dynamic[id]
	if !ok {
		loc, ok = l.seed[id]
	}
	if !ok {
		switch {
		case strings.TrimSpace(name) != "":
			loc = Location{Name: strings.TrimSpace(name)}
		default:
			loc = Location{Name: id}
		}
	}
	if strings.TrimSpace(link) != "" {
		loc.Link = strings.TrimSpace(link)
	}
	return loc
}

func (l *Lookup) Currency(code string, id int) Currency { return ResolveCurrency(code, id) }

// =============================================================================
// NAME NORMALIZATION
// =============================================================================

// NormalizeName folds case and collapses whitespace so that staff names from
// different sources compare equal. A Caser is stateful, so one is built per call.
func NormalizeName(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

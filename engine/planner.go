package engine

import "github.com/warp/meeting-engine/meeting"

const (
	// DefaultSoftMaxDays is the span cost-sensitive sources are truncated to.
	DefaultSoftMaxDays = 7

	// DefaultHardMaxDays is the span above which a request is rejected.
	DefaultHardMaxDays = 14
)

// Planner bounds the window each source is asked for.
//
//	span <= soft         -> unchanged for every source
//	soft < span <= hard  -> cost-sensitive sources get [From, From+soft]
//	span > hard          -> rejected before any fetch
type Planner struct {
	softMaxDays   int
	hardMaxDays   int
	costSensitive map[meeting.SourceKind]bool
}

// NewPlanner builds a planner. Zero ceilings take the defaults; with no
// cost-sensitive sources given, legacy is the only one.
func NewPlanner(softMaxDays, hardMaxDays int, costSensitive ...meeting.SourceKind) *Planner {
	if softMaxDays <= 0 {
		softMaxDays = DefaultSoftMaxDays
	}
	if hardMaxDays <= 0 {
		hardMaxDays = DefaultHardMaxDays
	}
	if softMaxDays > hardMaxDays {
		softMaxDays = hardMaxDays
	}
	if len(costSensitive) == 0 {
		costSensitive = []meeting.SourceKind{meeting.SourceLegacy}
	}
	p := &Planner{
		softMaxDays:   softMaxDays,
		hardMaxDays:   hardMaxDays,
		costSensitive: make(map[meeting.SourceKind]bool, len(costSensitive)),
	}
	for _, k := range costSensitive {
		p.costSensitive[k] = true
	}
	return p
}

// Check validates the requested window as a whole.
func (p *Planner) Check(w meeting.Window) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if w.Span() > p.hardMaxDays {
		return &meeting.WindowTooLargeError{Window: w, MaxDays: p.hardMaxDays}
	}
	return nil
}

// Plan returns the effective window for one source.
func (p *Planner) Plan(w meeting.Window, kind meeting.SourceKind) (meeting.Window, error) {
	if err := p.Check(w); err != nil {
		return meeting.Window{}, err
	}
	if p.costSensitive[kind] && w.Span() > p.softMaxDays {
		return w.Truncate(p.softMaxDays), nil
	}
	return w, nil
}

func (p *Planner) CostSensitive(kind meeting.SourceKind) bool { return p.costSensitive[kind] }

func (p *Planner) SoftMaxDays() int { return p.softMaxDays }
func (p *Planner) HardMaxDays() int { return p.hardMaxDays }

package availability

import "github.com/warp/meeting-engine/meeting"

type Status string

const (
	StatusAvailable Status = "available"
	StatusConflict  Status = "conflict"

	// StatusUnknown is reported before any index has been published.
	StatusUnknown Status = "unknown"
)

// ConflictResult reports the outcome of a check. A conflict is a warning for
// the operator, who may proceed anyway; it never blocks an assignment.
type ConflictResult struct {
	Status Status
	Reason *Entry
}

func (r ConflictResult) Conflict() bool { return r.Status == StatusConflict }

// Evaluator answers conflict checks against whatever index the Holder has
// published at the time of the call.
type Evaluator struct {
	holder *Holder
}

func NewEvaluator(h *Holder) *Evaluator {
	return &Evaluator{holder: h}
}

func (e *Evaluator) Evaluate(name string, d meeting.Date, t meeting.TimeOfDay) ConflictResult {
	ix := e.holder.Index()
	if ix == nil {
		return ConflictResult{Status: StatusUnknown}
	}
	entry, ok := ix.ReasonFor(name, d, t)
	if !ok {
		return ConflictResult{Status: StatusAvailable}
	}
	return ConflictResult{Status: StatusConflict, Reason: &entry}
}

package availability

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/warp/meeting-engine/meeting"
)

// Loader fetches the employees an index is built from.
type Loader func(ctx context.Context) ([]meeting.Employee, error)

// Holder publishes indexes atomically. Refresh builds the next index off to
// the side and swaps it in only once complete; a failed refresh keeps the
// previous index.
type Holder struct {
	load    Loader
	current atomic.Pointer[Index]

	// refreshMu serializes refreshes; readers never take it.
	refreshMu sync.Mutex
}

func NewHolder(load Loader) *Holder {
	return &Holder{load: load}
}

// Index returns the published index, or nil before the first publish.
func (h *Holder) Index() *Index { return h.current.Load() }

func (h *Holder) Publish(ix *Index) { h.current.Store(ix) }

func (h *Holder) Refresh(ctx context.Context) (*Index, error) {
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	if h.load == nil {
		return nil, fmt.Errorf("availability: no loader configured")
	}
	employees, err := h.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load employees: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	next := Build(employees)
	h.current.Store(next)
	return next, nil
}

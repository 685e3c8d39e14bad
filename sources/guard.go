package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/meeting-engine/logging"
	"github.com/warp/meeting-engine/meeting"
)

// Outcome is what a guarded fetch always returns. Meetings is empty whenever
// Err is set; partial results of a failed fetch are never surfaced.
type Outcome struct {
	Source   meeting.SourceKind
	Meetings []meeting.Meeting
	Err      *meeting.SourceUnavailableError
	Elapsed  time.Duration
}

func (o Outcome) Failed() bool { return o.Err != nil }

// Guarded is the failure boundary around an Adapter.
type Guarded struct {
	adapter Adapter
	log     logging.Logger
}

func Guard(a Adapter, log logging.Logger) *Guarded {
	if log == nil {
		log = logging.Nop()
	}
	return &Guarded{adapter: a, log: log.With(logging.F("source", string(a.Kind())))}
}

func (g *Guarded) Kind() meeting.SourceKind { return g.adapter.Kind() }

// Fetch runs the adapter. Errors and panics are logged and turned into an
// empty Outcome carrying a *meeting.SourceUnavailableError.
func (g *Guarded) Fetch(ctx context.Context, w meeting.Window, dir *Directory) (out Outcome) {
	start := time.Now()
	out.Source = g.adapter.Kind()
	log := g.log.WithContext(ctx)

	defer func() {
		out.Elapsed = time.Since(start)
		if r := recover(); r != nil {
			out.Meetings = nil
			out.Err = &meeting.SourceUnavailableError{Source: out.Source, Cause: fmt.Errorf("panic: %v", r)}
			log.Error("source adapter panicked", logging.Err(out.Err), logging.F("window", w.String()))
		}
	}()

	meetings, err := g.adapter.Fetch(ctx, w, dir)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		out.Err = &meeting.SourceUnavailableError{Source: out.Source, Cause: err}
		log.Warn("source unavailable", logging.Err(err), logging.F("window", w.String()))
		return out
	}

	if meetings == nil {
		meetings = []meeting.Meeting{}
	}
	out.Meetings = meetings
	log.Debug("source fetched", logging.F("count", len(meetings)), logging.F("window", w.String()))
	return out
}

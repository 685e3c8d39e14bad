package engine

import (
	"sync"
	"time"

	"github.com/warp/meeting-engine/meeting"
)

// BreakerState is a snapshot of one source's circuit.
type BreakerState struct {
	Source    meeting.SourceKind `json:"source"`
	Open      bool               `json:"open"`
	Failures  int                `json:"consecutive_failures"`
	OpenedAt  time.Time          `json:"opened_at,omitempty"`
	LastError string             `json:"last_error,omitempty"`
}

// Breaker holds a process-wide circuit per source.
//
// A circuit opens after tripAfter consecutive timeout or cost-limit signals
// and stays open until Reenable. There is no half-open state: a source that
// timed out is not probed again on its own. Other errors neither count
// toward tripping nor reset the count.
type Breaker struct {
	mu        sync.Mutex
	tripAfter int
	states    map[meeting.SourceKind]*BreakerState
	now       func() time.Time
}

func NewBreaker(tripAfter int) *Breaker {
	if tripAfter <= 0 {
		tripAfter = 1
	}
	return &Breaker{
		tripAfter: tripAfter,
		states:    make(map[meeting.SourceKind]*BreakerState),
		now:       time.Now,
	}
}

func (b *Breaker) state(kind meeting.SourceKind) *BreakerState {
	s, ok := b.states[kind]
	if !ok {
		s = &BreakerState{Source: kind}
		b.states[kind] = s
	}
	return s
}

// Allow reports whether kind may be fetched.
func (b *Breaker) Allow(kind meeting.SourceKind) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.state(kind).Open
}

// Record feeds a fetch result into the circuit and reports whether this
// call opened it.
func (b *Breaker) Record(kind meeting.SourceKind, err error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.state(kind)
	if s.Open {
		return false
	}
	if err == nil {
		s.Failures = 0
		return false
	}
	if !meeting.IsTripSignal(err) {
		return false
	}

	s.Failures++
	s.LastError = err.Error()
	if s.Failures >= b.tripAfter {
		s.Open = true
		s.OpenedAt = b.now()
		return true
	}
	return false
}

// Reenable closes the circuit for kind. It reports whether it was open.
func (b *Breaker) Reenable(kind meeting.SourceKind) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.state(kind)
	wasOpen := s.Open
	*s = BreakerState{Source: kind}
	return wasOpen
}

// States returns a snapshot of every known source in merge-priority order.
func (b *Breaker) States() []BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]BreakerState, 0, len(meeting.AllSources))
	for _, k := range meeting.AllSources {
		out = append(out, *b.state(k))
	}
	return out
}

// scheduler.go - Scheduled availability refresh
//
// PURPOSE:
//   Unavailability changes outside this service. The refresher rebuilds and
//   publishes the availability index on a cron schedule, and once at start so
//   conflict checks are answerable from the first request.
//
// DESIGN:
//   - robfig/cron drives the schedule in the configured time zone
//   - A failed refresh keeps the previous index (the Holder never publishes
//     a partial build) and is logged
//   - Overlapping runs are skipped, not queued
//
// USAGE:
//   r, err := NewAvailabilityRefresher(eng, "*/15 * * * *", loc, log)
//   r.Start(ctx)
//   // ... later
//   r.Stop()
//
// SEE ALSO:
//   - handlers.go: RefreshAvailability endpoint (manual refresh)
//   - availability/holder.go: atomic publish
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/warp/meeting-engine/availability"
	"github.com/warp/meeting-engine/logging"
)

// Refresher is the part of the engine the scheduler drives.
type Refresher interface {
	RefreshAvailability(ctx context.Context) (*availability.Index, error)
}

type AvailabilityRefresher struct {
	target  Refresher
	spec    string
	cron    *cron.Cron
	log     logging.Logger
	timeout time.Duration

	mu      sync.Mutex
	ctx     context.Context
	running bool
	lastErr error
	lastRun time.Time
}

// NewAvailabilityRefresher validates spec (standard 5-field cron). An empty
// spec yields a refresher that only runs once at Start.
func NewAvailabilityRefresher(target Refresher, spec string, loc *time.Location, log logging.Logger) (*AvailabilityRefresher, error) {
	if log == nil {
		log = logging.Nop()
	}
	if loc == nil {
		loc = time.UTC
	}
	if spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			return nil, fmt.Errorf("refresh schedule %q: %w", spec, err)
		}
	}
	return &AvailabilityRefresher{
		target:  target,
		spec:    spec,
		cron:    cron.New(cron.WithLocation(loc)),
		log:     log.With(logging.F("component", "availability-refresher")),
		timeout: 30 * time.Second,
	}, nil
}

// Start runs one refresh synchronously, then schedules the rest. ctx bounds
// every scheduled run.
func (ar *AvailabilityRefresher) Start(ctx context.Context) error {
	ar.mu.Lock()
	ar.ctx = ctx
	ar.mu.Unlock()

	ar.RunNow()

	if ar.spec == "" {
		ar.log.Info("no refresh schedule, index built once")
		return nil
	}
	if _, err := ar.cron.AddFunc(ar.spec, ar.RunNow); err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}
	ar.cron.Start()
	ar.log.Info("availability refresh scheduled", logging.F("schedule", ar.spec))
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (ar *AvailabilityRefresher) Stop() {
	<-ar.cron.Stop().Done()
	ar.log.Info("availability refresher stopped")
}

// RunNow triggers an immediate refresh unless one is already running.
func (ar *AvailabilityRefresher) RunNow() {
	ar.mu.Lock()
	if ar.running {
		ar.mu.Unlock()
		ar.log.Debug("refresh already running, skipped")
		return
	}
	ar.running = true
	parent := ar.ctx
	ar.mu.Unlock()

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, ar.timeout)
	defer cancel()

	start := time.Now()
	ix, err := ar.target.RefreshAvailability(ctx)

	ar.mu.Lock()
	ar.running = false
	ar.lastRun = start
	ar.lastErr = err
	ar.mu.Unlock()

	if err != nil {
		ar.log.Warn("scheduled availability refresh failed", logging.Err(err))
		return
	}
	ar.log.Debug("scheduled availability refresh done",
		logging.F("employees", ix.Employees()),
		logging.F("duration", time.Since(start)),
	)
}

// LastRun reports when the last refresh started and how it ended.
func (ar *AvailabilityRefresher) LastRun() (time.Time, error) {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	return ar.lastRun, ar.lastErr
}

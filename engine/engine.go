/*
Package engine is the produced interface of the meeting reconciliation
engine.

DATA FLOW:
  Planner -> (parallel) guarded adapters -> Reconciler -> Filter/Sort
  The availability index is built independently and consulted by
  CheckAssignment and Assign.

PROPAGATION POLICY:
  - A window over the hard ceiling is rejected before any adapter runs.
  - A failing source degrades the result; it never fails the request.
  - A timeout or cost-limit signal opens the source's circuit; open sources
    are skipped until re-enabled.
  - If the caller's context ends before every adapter has returned, the
    partial results are discarded and ctx.Err() is returned.
  - Assignment writes are not retried. A failure is returned verbatim as a
    *meeting.WriteFailedError and nothing local is mutated.

SEE ALSO:
  - planner.go: window ceilings
  - breaker.go: per-source circuit
  - assign.go:  conflict check and assignment write
*/
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/warp/meeting-engine/availability"
	"github.com/warp/meeting-engine/logging"
	"github.com/warp/meeting-engine/meeting"
	"github.com/warp/meeting-engine/sources"
)

// DefaultSourceTimeout bounds one adapter call when no per-source timeout is set.
const DefaultSourceTimeout = 10 * time.Second

// Config holds the engine's tunables.
type Config struct {
	SoftMaxDays    int
	HardMaxDays    int
	TripAfter      int
	CostSensitive  []meeting.SourceKind
	SourceTimeouts map[meeting.SourceKind]time.Duration
	DefaultTimeout time.Duration
}

// Deps are the collaborators the engine is wired with.
type Deps struct {
	Store        meeting.Store
	Adapters     []sources.Adapter
	Directory    *sources.DirectoryLoader
	Availability *availability.Holder
	Identity     meeting.IdentityLookup
	Notifier     meeting.Notifier
	Logger       logging.Logger
	Registerer   prometheus.Registerer
}

type Engine struct {
	cfg       Config
	store     meeting.Store
	adapters  []*sources.Guarded
	directory *sources.DirectoryLoader
	holder    *availability.Holder
	evaluator *availability.Evaluator
	identity  meeting.IdentityLookup
	notifier  meeting.Notifier

	planner *Planner
	breaker *Breaker
	metrics *Metrics
	tracer  tracer
	log     logging.Logger
}

func New(cfg Config, deps Deps) *Engine {
	log := deps.Logger
	if log == nil {
		log = logging.Nop()
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultSourceTimeout
	}
	directory := deps.Directory
	if directory == nil {
		directory = sources.NewDirectoryLoader(deps.Store, nil, time.Minute, nil, log)
	}
	holder := deps.Availability
	if holder == nil {
		holder = availability.NewHolder(directory.FreshEmployees)
	}

	e := &Engine{
		cfg:       cfg,
		store:     deps.Store,
		directory: directory,
		holder:    holder,
		evaluator: availability.NewEvaluator(holder),
		identity:  deps.Identity,
		notifier:  deps.Notifier,
		planner:   NewPlanner(cfg.SoftMaxDays, cfg.HardMaxDays, cfg.CostSensitive...),
		breaker:   NewBreaker(cfg.TripAfter),
		metrics:   NewMetrics(deps.Registerer),
		tracer:    newTracer(),
		log:       log.With(logging.F("component", "engine")),
	}
	for _, a := range deps.Adapters {
		e.adapters = append(e.adapters, sources.Guard(a, log))
	}
	return e
}

// DefaultAdapters returns the three store-backed adapters.
func DefaultAdapters(store meeting.Store, log logging.Logger, feeds ...sources.RowSource) []sources.Adapter {
	return []sources.Adapter{
		sources.NewCurrentAdapter(store),
		sources.NewLegacyAdapter(store),
		sources.NewStaffAdapter(store, log, feeds...),
	}
}

// =============================================================================
// RECONCILED MEETINGS
// =============================================================================

// DegradedSource names a source missing from a result and why.
type DegradedSource struct {
	Source  meeting.SourceKind `json:"source"`
	Reason  string             `json:"reason"`
	Skipped bool               `json:"skipped"`
}

type Result struct {
	FetchID          string
	Meetings         []meeting.Meeting
	TotalNIS         decimal.Decimal
	Degraded         []DegradedSource
	Ambiguities      []*meeting.AmbiguousIdentityError
	EffectiveWindows map[meeting.SourceKind]meeting.Window
}

// GetReconciledMeetings fetches every enabled source for w, merges the
// results and applies f.
func (e *Engine) GetReconciledMeetings(ctx context.Context, w meeting.Window, f meeting.Filter) (Result, error) {
	fetchID := uuid.NewString()
	ctx = logging.WithFetchID(ctx, fetchID)
	log := e.log.WithContext(ctx)

	ctx, span := e.tracer.startReconcile(ctx, fetchID, w)
	defer span.End()

	if err := e.planner.Check(w); err != nil {
		if errors.Is(err, meeting.ErrWindowTooLarge) {
			e.metrics.WindowRejectedTotal.Inc()
		}
		log.Info("window rejected", logging.F("window", w.String()), logging.Err(err))
		recordError(span, err)
		return Result{FetchID: fetchID}, err
	}

	dir := e.directory.Load(ctx)
	res := Result{
		FetchID:          fetchID,
		EffectiveWindows: make(map[meeting.SourceKind]meeting.Window, len(e.adapters)),
	}

	type job struct {
		adapter *sources.Guarded
		window  meeting.Window
	}
	var jobs []job
	for _, a := range e.adapters {
		kind := a.Kind()
		if !e.breaker.Allow(kind) {
			e.metrics.SourceFetchesTotal.WithLabelValues(string(kind), "skipped").Inc()
			res.Degraded = append(res.Degraded, DegradedSource{Source: kind, Reason: "circuit open", Skipped: true})
			continue
		}
		eff, err := e.planner.Plan(w, kind)
		if err != nil {
			return Result{FetchID: fetchID}, err
		}
		if eff.Span() != w.Span() {
			e.metrics.WindowTruncations.WithLabelValues(string(kind)).Inc()
			log.Debug("window truncated", logging.F("source", string(kind)), logging.F("window", eff.String()))
		}
		res.EffectiveWindows[kind] = eff
		jobs = append(jobs, job{adapter: a, window: eff})
	}

	outcomes := make([]sources.Outcome, len(jobs))
	var g errgroup.Group
	for i, j := range jobs {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, e.timeout(j.adapter.Kind()))
			defer cancel()
			fctx, fspan := e.tracer.startFetch(fctx, j.adapter.Kind(), j.window)
			defer fspan.End()

			outcomes[i] = j.adapter.Fetch(fctx, j.window, dir)
			fspan.SetAttributes(attribute.Int(AttrMeetings, len(outcomes[i].Meetings)))
			if outcomes[i].Err != nil {
				recordError(fspan, outcomes[i].Err)
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Info("request abandoned, discarding source results", logging.Err(ctx.Err()))
		recordError(span, ctx.Err())
		return Result{FetchID: fetchID}, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return Result{FetchID: fetchID}, err
	}

	var current, legacy, staff []meeting.Meeting
	for _, out := range outcomes {
		e.observe(out, log)
		switch out.Source {
		case meeting.SourceCurrent:
			current = append(current, out.Meetings...)
		case meeting.SourceLegacy:
			legacy = append(legacy, out.Meetings...)
		case meeting.SourceStaff:
			staff = append(staff, out.Meetings...)
		}
		if out.Failed() {
			res.Degraded = append(res.Degraded, DegradedSource{Source: out.Source, Reason: out.Err.Cause.Error()})
		}
	}

	merged := meeting.Merge(current, legacy, staff)
	e.metrics.LegacyDuplicatesTotal.Add(float64(merged.DroppedLegacy))
	e.metrics.AmbiguitiesTotal.Add(float64(len(merged.Ambiguities)))
	for _, amb := range merged.Ambiguities {
		log.Warn("ambiguous identity kept as distinct", logging.Err(amb), logging.F("meeting_id", amb.Identity.Key()))
	}
	res.Ambiguities = merged.Ambiguities

	f.Staff = staffFilterName(f.Staff, dir)
	res.Meetings = f.Apply(merged.Meetings)
	res.TotalNIS = dir.Lookup().Rates().Total(res.Meetings)

	span.SetAttributes(
		attribute.Int(AttrMeetings, len(res.Meetings)),
		attribute.Int(AttrDegraded, len(res.Degraded)),
	)
	log.Info("meetings reconciled",
		logging.F("window", w.String()),
		logging.F("count", len(res.Meetings)),
		logging.F("dropped_legacy", merged.DroppedLegacy),
		logging.F("degraded", len(res.Degraded)),
	)
	return res, nil
}

// observe records metrics for one outcome and feeds the breaker.
func (e *Engine) observe(out sources.Outcome, log logging.Logger) {
	kind := string(out.Source)
	e.metrics.SourceFetchSeconds.WithLabelValues(kind).Observe(out.Elapsed.Seconds())

	if !out.Failed() {
		e.metrics.SourceFetchesTotal.WithLabelValues(kind, "ok").Inc()
		e.metrics.SourceMeetings.WithLabelValues(kind).Observe(float64(len(out.Meetings)))
		e.breaker.Record(out.Source, nil)
		return
	}

	e.metrics.SourceFetchesTotal.WithLabelValues(kind, "failed").Inc()
	if e.breaker.Record(out.Source, out.Err) {
		e.metrics.BreakerOpen.WithLabelValues(kind).Set(1)
		log.Error("source disabled until re-enabled", logging.F("source", kind), logging.Err(out.Err))
	}
}

func (e *Engine) timeout(kind meeting.SourceKind) time.Duration {
	if d, ok := e.cfg.SourceTimeouts[kind]; ok && d > 0 {
		return d
	}
	return e.cfg.DefaultTimeout
}

// staffFilterName accepts an employee id as well as a name.
func staffFilterName(staff string, dir *sources.Directory) string {
	if staff == "" {
		return ""
	}
	if emp, ok := dir.ByID(staff); ok {
		return emp.Name
	}
	return staff
}

// =============================================================================
// SOURCES & AVAILABILITY
// =============================================================================

func (e *Engine) Breakers() []BreakerState { return e.breaker.States() }

// Reenable closes kind's circuit. It reports whether it was open.
func (e *Engine) Reenable(kind meeting.SourceKind) bool {
	wasOpen := e.breaker.Reenable(kind)
	e.metrics.BreakerOpen.WithLabelValues(string(kind)).Set(0)
	if wasOpen {
		e.log.Info("source re-enabled", logging.F("source", string(kind)))
	}
	return wasOpen
}

// RefreshAvailability rebuilds and publishes the availability index.
func (e *Engine) RefreshAvailability(ctx context.Context) (*availability.Index, error) {
	ix, err := e.holder.Refresh(ctx)
	if err != nil {
		e.log.Warn("availability refresh failed, keeping previous index", logging.Err(err))
		return nil, err
	}
	e.log.Info("availability index published", logging.F("employees", ix.Employees()))
	return ix, nil
}

// AvailabilityReady reports whether an index has been published.
func (e *Engine) AvailabilityReady() bool { return e.holder.Index() != nil }

func (e *Engine) Employees(ctx context.Context) ([]meeting.Employee, error) {
	return e.directory.Employees(ctx)
}

// InvalidateDirectory drops the cached employee and location tables.
func (e *Engine) InvalidateDirectory(ctx context.Context) { e.directory.Invalidate(ctx) }

package sources

import (
	"context"
	"time"

	"github.com/warp/meeting-engine/cache"
	"github.com/warp/meeting-engine/logging"
	"github.com/warp/meeting-engine/meeting"
)

// DirectoryLoader builds a Directory per fetch from cached employee and
// location tables.
type DirectoryLoader struct {
	employees *cache.ReadThrough[[]meeting.Employee]
	locations *cache.ReadThrough[[]meeting.LocationRecord]
	base      *meeting.Lookup
	log       logging.Logger
}

func NewDirectoryLoader(store meeting.Store, backend cache.Backend, ttl time.Duration, base *meeting.Lookup, log logging.Logger) *DirectoryLoader {
	if base == nil {
		base = meeting.NewLookup(nil, nil)
	}
	if log == nil {
		log = logging.Nop()
	}
	return &DirectoryLoader{
		employees: cache.NewReadThrough[[]meeting.Employee](backend, "employees", ttl,
			func(ctx context.Context) ([]meeting.Employee, error) {
				return store.QueryEmployees(ctx, meeting.EmployeeFilter{})
			}, log),
		locations: cache.NewReadThrough[[]meeting.LocationRecord](backend, "locations", ttl,
			func(ctx context.Context) ([]meeting.LocationRecord, error) {
				return store.QueryLocations(ctx)
			}, log),
		base: base,
		log:  log,
	}
}

// Load never fails. Without employees nothing resolves and role columns keep
// their raw text; without locations the seed table is used.
func (l *DirectoryLoader) Load(ctx context.Context) *Directory {
	lookup := l.base
	if locs, err := l.locations.Get(ctx); err != nil {
		l.log.Warn("location table unavailable, using seed", logging.Err(err))
	} else {
		lookup = l.base.WithDynamic(locs)
	}

	employees, err := l.employees.Get(ctx)
	if err != nil {
		l.log.Warn("employee directory unavailable, roles stay unresolved", logging.Err(err))
		employees = nil
	}
	return NewDirectory(employees, lookup)
}

func (l *DirectoryLoader) Employees(ctx context.Context) ([]meeting.Employee, error) {
	return l.employees.Get(ctx)
}

// Invalidate drops both cached tables.
func (l *DirectoryLoader) Invalidate(ctx context.Context) {
	if err := l.employees.Invalidate(ctx); err != nil {
		l.log.Warn("invalidate employees failed", logging.Err(err))
	}
	if err := l.locations.Invalidate(ctx); err != nil {
		l.log.Warn("invalidate locations failed", logging.Err(err))
	}
}

// FreshEmployees invalidates the employee cache and reloads it. It is the
// loader behind availability refreshes.
func (l *DirectoryLoader) FreshEmployees(ctx context.Context) ([]meeting.Employee, error) {
	if err := l.employees.Invalidate(ctx); err != nil {
		l.log.Warn("invalidate employees failed", logging.Err(err))
	}
	return l.employees.Get(ctx)
}

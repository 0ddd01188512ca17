// Package ratelimit enforces the per-window request limits on the core's
// in-process API surface — project/API-key CRUD and query/ingest — that
// the thin HTTP handler sitting in front of this core relies on.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aman-cerp/kbcore/internal/kberrors"
)

// Operation names one of the rate-limited core entry points.
type Operation string

const (
	OpCreateProject Operation = "create_project"
	OpListProjects  Operation = "list_projects"
	OpCreateAPIKey  Operation = "create_api_key"
	OpListAPIKeys   Operation = "list_api_keys"
	OpQuery         Operation = "query"
	OpIngest        Operation = "ingest"
)

// Window is an allowance of Limit requests per Period.
type Window struct {
	Limit  int
	Period time.Duration
}

// DefaultWindows mirrors the windows named in the consumer-facing
// boundary: project/key creation 10/min, listing 60/min, query 30/min,
// ingest 20/min.
func DefaultWindows() map[Operation]Window {
	return map[Operation]Window{
		OpCreateProject: {Limit: 10, Period: time.Minute},
		OpListProjects:  {Limit: 60, Period: time.Minute},
		OpCreateAPIKey:  {Limit: 10, Period: time.Minute},
		OpListAPIKeys:   {Limit: 60, Period: time.Minute},
		OpQuery:         {Limit: 30, Period: time.Minute},
		OpIngest:        {Limit: 20, Period: time.Minute},
	}
}

// Limiter rate-limits operations per project (or process-wide, for
// operations like create_project that precede a project's existence —
// callers pass an empty projectID for those). One token-bucket limiter
// per (operation, projectID) pair, created lazily.
type Limiter struct {
	mu       sync.Mutex
	windows  map[Operation]Window
	limiters map[Operation]map[string]*rate.Limiter
}

// New returns a Limiter configured with windows, or DefaultWindows if nil.
func New(windows map[Operation]Window) *Limiter {
	if windows == nil {
		windows = DefaultWindows()
	}
	return &Limiter{
		windows:  windows,
		limiters: make(map[Operation]map[string]*rate.Limiter),
	}
}

func (l *Limiter) limiterFor(op Operation, projectID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	byProject, ok := l.limiters[op]
	if !ok {
		byProject = make(map[string]*rate.Limiter)
		l.limiters[op] = byProject
	}
	lim, ok := byProject[projectID]
	if ok {
		return lim
	}

	w, configured := l.windows[op]
	if !configured {
		return nil
	}
	perSecond := float64(w.Limit) / w.Period.Seconds()
	lim = rate.NewLimiter(rate.Limit(perSecond), w.Limit)
	byProject[projectID] = lim
	return lim
}

// Allow consumes one token for (op, projectID) if available. An operation
// with no configured window is always allowed. Returns a RateLimited
// error when the window is exhausted.
func (l *Limiter) Allow(op Operation, projectID string) error {
	lim := l.limiterFor(op, projectID)
	if lim == nil {
		return nil
	}
	if !lim.Allow() {
		return kberrors.New(kberrors.RateLimited, "rate limit exceeded", nil).
			WithDetail("operation", string(op)).
			WithDetail("project_id", projectID)
	}
	return nil
}

// Forget discards all per-project limiter state for projectID, e.g. on
// project deletion, so a deleted project's request history is not kept
// around indefinitely.
func (l *Limiter) Forget(projectID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for op := range l.limiters {
		delete(l.limiters[op], projectID)
	}
}

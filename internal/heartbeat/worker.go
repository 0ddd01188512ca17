// Package heartbeat runs the single background worker that periodically
// pings every live project's backend and, optionally, warms its caches
// with a configured list of queries.
package heartbeat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aman-cerp/kbcore/internal/metrics"
	"github.com/aman-cerp/kbcore/internal/project"
	"github.com/aman-cerp/kbcore/internal/retrieval"
)

// MinInterval is the minimum heartbeat interval the spec allows.
const MinInterval = 10 * time.Second

// perProjectTimeout bounds each project's health check, so one slow
// backend can never stall the single shared worker past one tick.
const perProjectTimeout = 5 * time.Second

// Worker enumerates live projects on a fixed interval and checks each
// backend's health, logging and counting (never crashing on) failures.
type Worker struct {
	manager  *project.Manager
	metrics  *metrics.Registry
	logger   *slog.Logger
	interval time.Duration

	mu             sync.Mutex
	warmingQueries map[string][]string

	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a Worker. interval is clamped up to MinInterval.
func New(manager *project.Manager, registry *metrics.Registry, interval time.Duration, logger *slog.Logger) *Worker {
	if interval < MinInterval {
		interval = MinInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		manager:        manager,
		metrics:        registry,
		logger:         logger,
		interval:       interval,
		warmingQueries: make(map[string][]string),
	}
}

// SetWarmingQueries replaces the list of queries run against projectID on
// every tick to keep its caches populated. An empty list disables warming
// for that project.
func (w *Worker) SetWarmingQueries(projectID string, queries []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(queries) == 0 {
		delete(w.warmingQueries, projectID)
		return
	}
	w.warmingQueries[projectID] = append([]string(nil), queries...)
}

// Start launches the worker's background goroutine. Calling Start twice
// without an intervening Stop is a no-op.
func (w *Worker) Start(ctx context.Context) {
	if w.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(runCtx)
}

// Stop cancels the worker and blocks until the current tick (if any)
// finishes, always returning within one interval.
func (w *Worker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.cancel = nil
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	for _, p := range w.manager.ListProjects() {
		if ctx.Err() != nil {
			return
		}
		w.checkProject(ctx, p.ID)
	}
}

func (w *Worker) checkProject(ctx context.Context, projectID string) {
	checkCtx, cancel := context.WithTimeout(ctx, perProjectTimeout)
	defer cancel()

	backend, err := w.manager.GetProjectBackend(projectID)
	if err != nil {
		// Project was deleted between ListProjects and here; not a failure.
		return
	}

	health, err := backend.GetHealth(checkCtx)
	if err != nil || !health.Healthy {
		w.logger.Warn("heartbeat check failed", "project_id", projectID, "error", err, "detail", health.Detail)
		if w.metrics != nil {
			w.metrics.RecordError(projectID, "heartbeat_unhealthy")
		}
		return
	}

	w.runWarmingQueries(checkCtx, projectID)
}

func (w *Worker) runWarmingQueries(ctx context.Context, projectID string) {
	w.mu.Lock()
	queries := append([]string(nil), w.warmingQueries[projectID]...)
	w.mu.Unlock()
	if len(queries) == 0 {
		return
	}

	engine, err := w.manager.GetProjectEngine(projectID)
	if err != nil {
		return
	}
	for _, q := range queries {
		if ctx.Err() != nil {
			return
		}
		if _, err := engine.SearchHybrid(ctx, q, 5, retrieval.AutoWeights); err != nil {
			w.logger.Debug("heartbeat warming query failed", "project_id", projectID, "error", err)
		}
	}
}

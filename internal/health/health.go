// Package health watches the host compositor process and the daemon's own
// sockets, purely for observability (spec SPEC_FULL §4.8). It never
// blocks or influences the event loop's state mutation.
package health

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/hyprtagd/hyprtagd/internal/wm"
)

// Status is the watcher's current view of the compositor.
type Status struct {
	Healthy          bool
	ConsecutiveFails int
	LastError        string
	CPUPercent       float64
	RSSBytes         uint64
	CheckedAt        time.Time
}

// Watcher periodically confirms the compositor process (and the daemon's
// own sockets) are present, tracking consecutive-failure counts the way
// the teacher's internal/monitor/health.go tracks per-source failures.
type Watcher struct {
	runtimeDir        string
	eventSocketPath   string
	controlSocketPath string
	interval          time.Duration
	threshold         int
	log               *slog.Logger

	mu     sync.RWMutex
	status Status
}

// NewWatcher constructs a Watcher for the compositor instance rooted at
// runtimeDir.
func NewWatcher(runtimeDir, eventSocketPath, controlSocketPath string, interval time.Duration, threshold int, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		runtimeDir:        runtimeDir,
		eventSocketPath:   eventSocketPath,
		controlSocketPath: controlSocketPath,
		interval:          interval,
		threshold:         threshold,
		log:               log,
		status:            Status{Healthy: true},
	}
}

// Status returns a consistent snapshot of the watcher's current view.
func (w *Watcher) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// Run checks the compositor on a ticker until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

func (w *Watcher) check(ctx context.Context) {
	now := time.Now()

	if _, err := os.Stat(w.eventSocketPath); err != nil {
		w.recordFailure(now, err)
		return
	}
	if _, err := os.Stat(w.controlSocketPath); err != nil {
		w.recordFailure(now, err)
		return
	}

	pid, err := wm.PIDOf(w.runtimeDir)
	if err != nil {
		w.recordFailure(now, err)
		return
	}
	if !wm.ProcessAlive(pid) {
		w.recordFailure(now, context.DeadlineExceeded)
		return
	}

	var cpuPct float64
	var rss uint64
	if proc, err := process.NewProcessWithContext(ctx, int32(pid)); err == nil {
		if pct, err := proc.CPUPercentWithContext(ctx); err == nil {
			cpuPct = pct
		}
		if mem, err := proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
			rss = mem.RSS
		}
	}

	w.mu.Lock()
	w.status = Status{
		Healthy:    true,
		CPUPercent: cpuPct,
		RSSBytes:   rss,
		CheckedAt:  now,
	}
	w.mu.Unlock()
}

func (w *Watcher) recordFailure(now time.Time, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.ConsecutiveFails++
	w.status.LastError = err.Error()
	w.status.CheckedAt = now
	w.status.Healthy = w.status.ConsecutiveFails < w.threshold

	if !w.status.Healthy {
		w.log.Warn("compositor health check failing",
			"consecutive_failures", w.status.ConsecutiveFails, "err", err)
	}
}

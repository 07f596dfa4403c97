// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	xglog "github.com/koski/dealsearch/internal/log"
	"github.com/koski/dealsearch/internal/store"
)

// Runner serializes sync runs and drives the periodic schedule. The
// API refresh endpoint and the interval ticker share one in-flight
// gate, so only a single sync ever touches the index at a time.
type Runner struct {
	deps     Deps
	interval time.Duration

	running atomic.Bool

	mu          sync.RWMutex
	last        *Status
	lastSuccess time.Time
	lastError   string
}

// NewRunner creates a runner. An interval of zero disables the schedule;
// TryRun still works for manual triggers.
func NewRunner(deps Deps, interval time.Duration) *Runner {
	return &Runner{
		deps:     deps,
		interval: interval,
	}
}

// Seed primes the runner's view of sync history from a persisted record,
// so readiness reflects syncs from before the last restart.
func (r *Runner) Seed(rec *store.SyncRecord) {
	if rec == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last = &Status{
		LastRun:    rec.FinishedAt,
		Documents:  rec.Documents,
		DurationMS: rec.Duration().Milliseconds(),
		Source:     rec.Source,
		Trigger:    rec.Trigger,
		Error:      rec.Error,
	}
	if rec.Success {
		r.lastSuccess = rec.FinishedAt
		r.lastError = ""
	} else {
		r.lastError = rec.Error
	}
}

// TryRun performs one sync unless another is already in flight, in
// which case it fails fast with ErrSyncInProgress.
func (r *Runner) TryRun(ctx context.Context, trigger string) (*Status, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer r.running.Store(false)

	st, err := Sync(ctx, r.deps, trigger)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.lastError = err.Error()
		r.last = &Status{
			LastRun: r.deps.now(),
			Source:  r.deps.Source.Name(),
			Trigger: trigger,
			Error:   err.Error(),
		}
		return nil, err
	}
	r.lastSuccess = st.LastRun
	r.lastError = ""
	r.last = st
	return st, nil
}

// Last returns a copy of the most recent run's status, or nil when no
// sync has run yet.
func (r *Runner) Last() *Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return nil
	}
	cp := *r.last
	return &cp
}

// LastSyncInfo reports the last successful run time and the error of
// the most recent run. It feeds the readiness checker.
func (r *Runner) LastSyncInfo() (time.Time, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSuccess, r.lastError
}

// Run drives the periodic schedule until ctx is cancelled. Failed runs
// are logged and retried on the next tick; they never stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	logger := xglog.WithComponent("jobs")

	if r.interval <= 0 {
		logger.Info().
			Str("event", "sync.schedule_disabled").
			Msg("periodic sync disabled")
		<-ctx.Done()
		return nil
	}

	logger.Info().
		Str("event", "sync.schedule_started").
		Dur("interval", r.interval).
		Msg("periodic sync enabled")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.TryRun(ctx, TriggerInterval); err != nil {
				if errors.Is(err, ErrSyncInProgress) {
					logger.Debug().
						Str("event", "sync.skipped").
						Msg("previous sync still running, skipping tick")
				}
				// Other failures are already logged by Sync.
			}
		}
	}
}

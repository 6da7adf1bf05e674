// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/lostfound/lostfound/internal/clock"
	"github.com/lostfound/lostfound/pkg/errutil"
)

// DefaultReapInterval is how often expired sessions are swept.
const DefaultReapInterval = 10 * time.Minute

// Reaper periodically deletes expired sessions. Resolve already refuses
// expired sessions; the sweep only keeps the store from growing.
type Reaper struct {
	sessions SessionRepository
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger
	recorder Recorder
}

// ReaperOption configures a Reaper during construction.
type ReaperOption func(*Reaper)

// WithReaperLogger sets the reaper's logger.
func WithReaperLogger(logger *slog.Logger) ReaperOption {
	return func(r *Reaper) {
		r.logger = logger
	}
}

// WithReaperClock replaces the clock used to decide expiry.
func WithReaperClock(c clock.Clock) ReaperOption {
	return func(r *Reaper) {
		r.clock = c
	}
}

// WithReaperRecorder sets where reaped counts are reported.
func WithReaperRecorder(rec Recorder) ReaperOption {
	return func(r *Reaper) {
		r.recorder = rec
	}
}

// NewReaper creates a Reaper sweeping every interval.
func NewReaper(sessions SessionRepository, interval time.Duration, opts ...ReaperOption) (*Reaper, error) {
	if sessions == nil {
		return nil, oops.Code("REAPER_INVALID").Errorf("sessions repository is required")
	}
	if interval <= 0 {
		return nil, oops.Code("REAPER_INVALID").
			With("interval", interval.String()).
			Errorf("reap interval must be positive")
	}
	r := &Reaper{
		sessions: sessions,
		interval: interval,
		clock:    clock.Real(),
		logger:   slog.Default(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.recorder == nil {
		r.recorder = nopRecorder{}
	}
	return r, nil
}

// Sweep runs one deletion pass and returns the number of sessions removed.
func (r *Reaper) Sweep(ctx context.Context) (int64, error) {
	n, err := r.sessions.DeleteExpired(ctx, r.clock.Now())
	if err != nil {
		return 0, oops.Code("REAPER_SWEEP_FAILED").Wrap(storeFailure(err))
	}
	if n > 0 {
		r.recorder.RecordSessionsReaped(n)
		r.logger.DebugContext(ctx, "reaped expired sessions", "count", n)
	}
	return n, nil
}

// Run sweeps until ctx is cancelled. Sweep errors are logged, never returned.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				errutil.LogError(r.logger, "session sweep failed", err)
			}
		}
	}
}

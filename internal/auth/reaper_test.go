// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/lostfound/lostfound/internal/auth"
	"github.com/lostfound/lostfound/internal/auth/memory"
	"github.com/lostfound/lostfound/internal/auth/mocks"
	"github.com/lostfound/lostfound/internal/clock"
)

func TestNewReaper_Invalid(t *testing.T) {
	_, err := auth.NewReaper(nil, time.Minute)
	require.Error(t, err)

	_, err = auth.NewReaper(memory.NewSessionRepository(), 0)
	require.Error(t, err)
}

func TestReaper_Sweep(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.Fake(start)
	sessions := memory.NewSessionRepository()

	for i, ttl := range []time.Duration{time.Minute, time.Hour, 48 * time.Hour} {
		s, err := auth.NewSession("alice", auth.HashSessionToken(string(rune('a'+i))), start, ttl)
		require.NoError(t, err)
		require.NoError(t, sessions.Create(ctx, s))
	}

	rec := mocks.NewMockRecorder(t)
	rec.On("RecordSessionsReaped", int64(2)).Once()

	r, err := auth.NewReaper(sessions, time.Minute, auth.WithReaperClock(clk), auth.WithReaperRecorder(rec))
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	n, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, sessions.Len())

	n, err = r.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing left to reap; recorder not called again")
}

func TestReaper_SweepStoreFailure(t *testing.T) {
	sessions := mocks.NewMockSessionRepository(t)
	sessions.On("DeleteExpired", mock.Anything, mock.Anything).Return(int64(0), errors.New("connection refused"))

	r, err := auth.NewReaper(sessions, time.Minute)
	require.NoError(t, err)

	_, err = r.Sweep(context.Background())
	require.ErrorIs(t, err, auth.ErrStoreUnavailable)
}

func TestReaper_RunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	sessions := mocks.NewMockSessionRepository(t)
	swept := make(chan struct{}, 1)
	sessions.On("DeleteExpired", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			select {
			case swept <- struct{}{}:
			default:
			}
		}).
		Return(int64(0), nil)

	r, err := auth.NewReaper(sessions, 5*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()

	select {
	case <-swept:
	case <-time.After(2 * time.Second):
		t.Fatal("reaper never swept")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lostfound/lostfound/internal/clock"
)

func TestFakeClock(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.Fake(start)

	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Minute)
	assert.Equal(t, start.Add(90*time.Minute), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestRealClock(t *testing.T) {
	before := time.Now()
	got := clock.Real().Now()
	assert.False(t, got.Before(before))
}

// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestLimiter returns a limiter with a controllable clock.
func newTestLimiter(cfg Config) (*Limiter, *time.Time) {
	l := New(cfg, nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllowRequestMinuteWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Defaults.RequestsPerMinute = 3
	l, now := newTestLimiter(cfg)

	for i := 0; i < 3; i++ {
		d := l.AllowRequest("agent-1")
		require.True(t, d.Allowed, "request %d", i)
	}

	d := l.AllowRequest("agent-1")
	require.False(t, d.Allowed)
	assert.Equal(t, "minute", d.Scope)
	assert.Equal(t, 3, d.Limit)
	assert.Greater(t, d.RetryAfter, time.Duration(0))

	// Capacity returns once the window slides past the oldest event.
	*now = now.Add(61 * time.Second)
	assert.True(t, l.AllowRequest("agent-1").Allowed)
}

func TestRefusedRequestNotRecorded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Defaults.RequestsPerMinute = 1
	l, now := newTestLimiter(cfg)

	require.True(t, l.AllowRequest("a").Allowed)
	for i := 0; i < 10; i++ {
		require.False(t, l.AllowRequest("a").Allowed)
	}

	// Only the one admitted event occupies the window.
	*now = now.Add(61 * time.Second)
	assert.True(t, l.AllowRequest("a").Allowed)
}

func TestAgentsAreIndependent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Defaults.RequestsPerMinute = 1
	l, _ := newTestLimiter(cfg)

	require.True(t, l.AllowRequest("a").Allowed)
	require.False(t, l.AllowRequest("a").Allowed)
	assert.True(t, l.AllowRequest("b").Allowed)
}

func TestOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Defaults.RequestsPerMinute = 1
	cfg.Overrides = map[string]Limits{"vip": {RequestsPerMinute: 5}}
	l, _ := newTestLimiter(cfg)

	for i := 0; i < 5; i++ {
		require.True(t, l.AllowRequest("vip").Allowed)
	}
	assert.False(t, l.AllowRequest("vip").Allowed)

	// Unset override fields inherit the defaults.
	st := l.Status("vip")
	assert.Equal(t, cfg.Defaults.RequestsPerHour, st.Requests["hour"].Limit)
}

func TestAllowAPICallHourWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThrottleEnabled = false
	cfg.Defaults.APICallsPerMinute = 100
	cfg.Defaults.APICallsPerHour = 2
	l, _ := newTestLimiter(cfg)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		d, err := l.AllowAPICall(ctx, "a")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := l.AllowAPICall(ctx, "a")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "hour", d.Scope)
}

func TestThrottleSpacing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThrottleDelay = 30 * time.Millisecond
	l := New(cfg, nil)

	ctx := context.Background()
	_, err := l.AllowAPICall(ctx, "a")
	require.NoError(t, err)

	start := time.Now()
	_, err = l.AllowAPICall(ctx, "a")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestStatusDoesNotConsume(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Defaults.RequestsPerMinute = 2
	l, _ := newTestLimiter(cfg)

	require.True(t, l.AllowRequest("a").Allowed)
	for i := 0; i < 5; i++ {
		st := l.Status("a")
		assert.Equal(t, 1, st.Requests["minute"].Used)
		assert.Equal(t, 1, st.Requests["minute"].Remaining)
	}
	assert.True(t, l.AllowRequest("a").Allowed)
}

func TestEvictStale(t *testing.T) {
	l, now := newTestLimiter(DefaultConfig())

	l.AllowRequest("old")
	*now = now.Add(2 * time.Hour)
	l.AllowRequest("fresh")

	evicted := l.EvictStale(time.Hour)
	assert.Equal(t, 1, evicted)

	l.mu.Lock()
	_, oldExists := l.records["old"]
	_, freshExists := l.records["fresh"]
	l.mu.Unlock()
	assert.False(t, oldExists)
	assert.True(t, freshExists)
}

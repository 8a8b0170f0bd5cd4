// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

// Package ratelimit enforces per-agent request and API-call budgets over
// rolling minute, hour, and day windows, with an optional inter-call
// throttle delay.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Limits is one agent's budget across the rolling windows. Zero fields fall
// back to the configured defaults.
type Limits struct {
	RequestsPerMinute int `koanf:"requests_per_minute"`
	RequestsPerHour   int `koanf:"requests_per_hour"`
	RequestsPerDay    int `koanf:"requests_per_day"`
	APICallsPerMinute int `koanf:"api_calls_per_minute"`
	APICallsPerHour   int `koanf:"api_calls_per_hour"`
}

// DefaultLimits returns the standard per-agent budget.
func DefaultLimits() Limits {
	return Limits{
		RequestsPerMinute: 60,
		RequestsPerHour:   1000,
		RequestsPerDay:    10000,
		APICallsPerMinute: 30,
		APICallsPerHour:   500,
	}
}

// Config configures the limiter.
type Config struct {
	Defaults        Limits            `koanf:"defaults"`
	Overrides       map[string]Limits `koanf:"overrides"`
	ThrottleEnabled bool              `koanf:"throttle_enabled"`
	ThrottleDelay   time.Duration     `koanf:"throttle_delay"`
}

// DefaultConfig returns default limits with throttling enabled at 100ms.
func DefaultConfig() Config {
	return Config{
		Defaults:        DefaultLimits(),
		ThrottleEnabled: true,
		ThrottleDelay:   100 * time.Millisecond,
	}
}

// Decision reports whether an event was admitted and, when refused, which
// window refused it and when capacity returns.
type Decision struct {
	Allowed    bool
	Scope      string // "minute", "hour", or "day"
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

// WindowStatus is one window's live usage for the status endpoint.
type WindowStatus struct {
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	Reset     time.Time `json:"reset"`
}

// Status is an agent's usage across all windows.
type Status struct {
	AgentID  string                  `json:"agent_id"`
	Requests map[string]WindowStatus `json:"requests"`
	APICalls map[string]WindowStatus `json:"api_calls"`
}

type record struct {
	requests []time.Time
	apiCalls []time.Time
	lastSeen time.Time
	lastCall time.Time
}

// Limiter tracks per-agent event timestamps. Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	records map[string]*record
	now     func() time.Time

	admitted *prometheus.CounterVec
	refused  *prometheus.CounterVec
}

// New creates a limiter. reg may be nil to skip metric registration.
func New(cfg Config, reg prometheus.Registerer) *Limiter {
	l := &Limiter{
		cfg:     cfg,
		records: map[string]*record{},
		now:     time.Now,
		admitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "a2e_ratelimit_admitted_total",
			Help: "Events admitted by the rate limiter.",
		}, []string{"kind"}),
		refused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "a2e_ratelimit_refused_total",
			Help: "Events refused by the rate limiter.",
		}, []string{"kind", "scope"}),
	}
	if reg != nil {
		reg.MustRegister(l.admitted, l.refused)
	}
	return l
}

func (l *Limiter) limitsFor(agentID string) Limits {
	limits := l.cfg.Defaults
	if o, ok := l.cfg.Overrides[agentID]; ok {
		if o.RequestsPerMinute > 0 {
			limits.RequestsPerMinute = o.RequestsPerMinute
		}
		if o.RequestsPerHour > 0 {
			limits.RequestsPerHour = o.RequestsPerHour
		}
		if o.RequestsPerDay > 0 {
			limits.RequestsPerDay = o.RequestsPerDay
		}
		if o.APICallsPerMinute > 0 {
			limits.APICallsPerMinute = o.APICallsPerMinute
		}
		if o.APICallsPerHour > 0 {
			limits.APICallsPerHour = o.APICallsPerHour
		}
	}
	return limits
}

type window struct {
	scope string
	span  time.Duration
	limit int
}

// AllowRequest admits or refuses one inbound request for the agent. The
// event is recorded only when admitted.
func (l *Limiter) AllowRequest(agentID string) Decision {
	limits := l.limitsFor(agentID)
	windows := []window{
		{"minute", time.Minute, limits.RequestsPerMinute},
		{"hour", time.Hour, limits.RequestsPerHour},
		{"day", 24 * time.Hour, limits.RequestsPerDay},
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.record(agentID)
	now := l.now()
	rec.requests = prune(rec.requests, now.Add(-24*time.Hour))

	d := l.decide(rec.requests, windows, now)
	if d.Allowed {
		rec.requests = append(rec.requests, now)
		l.admitted.WithLabelValues("request").Inc()
	} else {
		l.refused.WithLabelValues("request", d.Scope).Inc()
	}
	return d
}

// AllowAPICall admits or refuses one outbound API call for the agent and,
// when throttling is enabled, sleeps so calls are spaced at least the
// throttle delay apart. ctx bounds the throttle sleep.
func (l *Limiter) AllowAPICall(ctx context.Context, agentID string) (Decision, error) {
	limits := l.limitsFor(agentID)
	windows := []window{
		{"minute", time.Minute, limits.APICallsPerMinute},
		{"hour", time.Hour, limits.APICallsPerHour},
	}

	l.mu.Lock()
	rec := l.record(agentID)
	now := l.now()
	rec.apiCalls = prune(rec.apiCalls, now.Add(-time.Hour))

	d := l.decide(rec.apiCalls, windows, now)
	var wait time.Duration
	if d.Allowed {
		if l.cfg.ThrottleEnabled && !rec.lastCall.IsZero() {
			if elapsed := now.Sub(rec.lastCall); elapsed < l.cfg.ThrottleDelay {
				wait = l.cfg.ThrottleDelay - elapsed
			}
		}
		rec.apiCalls = append(rec.apiCalls, now)
		rec.lastCall = now
		l.admitted.WithLabelValues("api_call").Inc()
	} else {
		l.refused.WithLabelValues("api_call", d.Scope).Inc()
	}
	l.mu.Unlock()

	if wait > 0 {
		select {
		case <-ctx.Done():
			return d, ctx.Err()
		case <-time.After(wait):
		}
	}
	return d, nil
}

// decide checks every window against the recorded events; the first
// exhausted window refuses. Must be called with the lock held.
func (l *Limiter) decide(events []time.Time, windows []window, now time.Time) Decision {
	for _, w := range windows {
		if w.limit <= 0 {
			continue
		}
		used, oldest := countSince(events, now.Add(-w.span))
		if used >= w.limit {
			reset := oldest.Add(w.span)
			return Decision{
				Allowed:    false,
				Scope:      w.scope,
				Limit:      w.limit,
				Remaining:  0,
				Reset:      reset,
				RetryAfter: reset.Sub(now),
			}
		}
	}

	// Report the tightest window in the admit decision.
	d := Decision{Allowed: true}
	for _, w := range windows {
		if w.limit <= 0 {
			continue
		}
		used, _ := countSince(events, now.Add(-w.span))
		remaining := w.limit - used - 1
		if d.Limit == 0 || remaining < d.Remaining {
			d.Scope = w.scope
			d.Limit = w.limit
			d.Remaining = remaining
			d.Reset = now.Add(w.span)
		}
	}
	return d
}

// Status reports the agent's live usage without recording an event.
func (l *Limiter) Status(agentID string) Status {
	limits := l.limitsFor(agentID)

	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.record(agentID)
	now := l.now()

	st := Status{
		AgentID:  agentID,
		Requests: map[string]WindowStatus{},
		APICalls: map[string]WindowStatus{},
	}
	for _, w := range []window{
		{"minute", time.Minute, limits.RequestsPerMinute},
		{"hour", time.Hour, limits.RequestsPerHour},
		{"day", 24 * time.Hour, limits.RequestsPerDay},
	} {
		used, _ := countSince(rec.requests, now.Add(-w.span))
		st.Requests[w.scope] = windowStatus(w, used, now)
	}
	for _, w := range []window{
		{"minute", time.Minute, limits.APICallsPerMinute},
		{"hour", time.Hour, limits.APICallsPerHour},
	} {
		used, _ := countSince(rec.apiCalls, now.Add(-w.span))
		st.APICalls[w.scope] = windowStatus(w, used, now)
	}
	return st
}

// EvictStale drops records for agents idle longer than maxIdle and returns
// how many were removed.
func (l *Limiter) EvictStale(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxIdle)
	evicted := 0
	for id, rec := range l.records {
		if rec.lastSeen.Before(cutoff) {
			delete(l.records, id)
			evicted++
		}
	}
	return evicted
}

// record must be called with the lock held.
func (l *Limiter) record(agentID string) *record {
	rec, ok := l.records[agentID]
	if !ok {
		rec = &record{}
		l.records[agentID] = rec
	}
	rec.lastSeen = l.now()
	return rec
}

func windowStatus(w window, used int, now time.Time) WindowStatus {
	remaining := w.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return WindowStatus{
		Limit:     w.limit,
		Used:      used,
		Remaining: remaining,
		Reset:     now.Add(w.span),
	}
}

// countSince returns the number of events at or after cutoff and the oldest
// such event.
func countSince(events []time.Time, cutoff time.Time) (int, time.Time) {
	count := 0
	var oldest time.Time
	for _, e := range events {
		if !e.Before(cutoff) {
			if count == 0 || e.Before(oldest) {
				oldest = e
			}
			count++
		}
	}
	return count, oldest
}

// prune drops events older than cutoff.
func prune(events []time.Time, cutoff time.Time) []time.Time {
	kept := events[:0]
	for _, e := range events {
		if !e.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	return kept
}

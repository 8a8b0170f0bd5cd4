// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

// Package ratelimit provides the per-agent request limiting middleware.
// It must run after authentication; unauthenticated requests pass through
// untouched and are expected to be rejected upstream.
package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/a2e-project/a2e/internal/ratelimit"
	"github.com/a2e-project/a2e/internal/server/middleware/auth"
)

// Middleware admits or refuses requests against the agent's rolling windows.
// Every response carries X-RateLimit-Limit, X-RateLimit-Remaining, and
// X-RateLimit-Reset for the tightest window; refusals get a 429 with
// Retry-After.
func Middleware(limiter *ratelimit.Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			agentID, ok := auth.AgentID(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			d := limiter.AllowRequest(agentID)
			setRateHeaders(w, d)
			if !d.Allowed {
				retryAfter := int(d.RetryAfter/time.Second) + 1
				logger.Warn("Request rate limited",
					slog.String("agent_id", agentID),
					slog.String("scope", d.Scope),
					slog.Int("retry_after", retryAfter))
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"success":     false,
					"error":       "rate limit exceeded for " + d.Scope + " window",
					"code":        "RATE_LIMITED",
					"retry_after": retryAfter,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setRateHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.Reset.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	}
}

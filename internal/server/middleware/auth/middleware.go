// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth provides the agent authentication middleware. Requests carry
// either a raw API key in X-API-Key or a bearer token in Authorization.
package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a2e-project/a2e/internal/agentauth"
)

type contextKey struct{}

var agentKey = contextKey{}

// AgentID returns the authenticated agent id stored by the middleware.
func AgentID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(agentKey).(string)
	return id, ok
}

// WithAgentID returns a context carrying the agent id. Exposed for tests
// that exercise protected handlers directly.
func WithAgentID(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, agentKey, agentID)
}

// Middleware authenticates each request against the agent registry. The 401
// body is identical for missing, malformed, and invalid credentials so the
// response does not reveal which check failed.
func Middleware(svc *agentauth.Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			agentID, err := authenticate(svc, r)
			if err != nil {
				logger.Warn("Authentication failed",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr))
				writeUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAgentID(r.Context(), agentID)))
		})
	}
}

func authenticate(svc *agentauth.Service, r *http.Request) (string, error) {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return svc.AuthenticateKey(key)
	}
	authz := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authz, "Bearer "); ok && token != "" {
		return svc.AuthenticateToken(token)
	}
	return "", agentauth.ErrUnauthenticated
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   "authentication required",
		"code":    "UNAUTHENTICATED",
	})
}

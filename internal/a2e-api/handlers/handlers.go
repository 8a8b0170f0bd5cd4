// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

// Package handlers wires the A2E HTTP surface.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/a2e-project/a2e/internal/a2e-api/services"
	"github.com/a2e-project/a2e/internal/server/middleware/auth"
	"github.com/a2e-project/a2e/internal/server/middleware/logger"
	"github.com/a2e-project/a2e/internal/server/middleware/ratelimit"
	"github.com/a2e-project/a2e/pkg/middleware"
)

// Handler holds the services and provides HTTP handlers
type Handler struct {
	services *services.Services
	logger   *slog.Logger
	metrics  http.Handler
}

// New creates a new Handler instance. metrics serves GET /metrics and may
// be nil to disable the endpoint.
func New(svcs *services.Services, logger *slog.Logger, metrics http.Handler) *Handler {
	return &Handler{
		services: svcs,
		logger:   logger,
		metrics:  metrics,
	}
}

// Routes sets up all HTTP routes and returns the configured handler
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	v1 := "/api/v1"

	// Global middlewares - applies to all routes
	loggerMiddleware := logger.Middleware(h.logger)
	routes := middleware.NewRouteBuilder(mux).With(loggerMiddleware)

	// ===== Public Routes (No Authentication Required) =====

	routes.HandleFunc("GET /health", h.Health)
	routes.HandleFunc("GET /ready", h.Ready)
	if h.metrics != nil {
		routes.Handle("GET /metrics", h.metrics)
	}

	// ===== Protected API Routes =====

	// Authentication resolves the agent; rate limiting runs after it so
	// budgets are per agent.
	agentAuth := auth.Middleware(h.services.Auth, h.logger.With("component", "auth"))
	rateLimit := ratelimit.Middleware(h.services.Limiter, h.logger.With("component", "ratelimit"))
	api := routes.Group(agentAuth, rateLimit)

	// Capability discovery
	api.HandleFunc("GET "+v1+"/capabilities", h.GetCapabilities)

	// Workflow operations
	api.HandleFunc("POST "+v1+"/workflows/validate", h.ValidateWorkflow)
	api.HandleFunc("POST "+v1+"/workflows/execute", h.ExecuteWorkflow)

	// Execution history
	api.HandleFunc("GET "+v1+"/executions", h.ListExecutions)
	api.HandleFunc("GET "+v1+"/executions/{executionID}", h.GetExecution)

	// Knowledge bases
	api.HandleFunc("POST "+v1+"/knowledge/search", h.SearchKnowledge)
	api.HandleFunc("GET "+v1+"/knowledge/bases", h.ListKnowledgeBases)

	// SQL catalog
	api.HandleFunc("GET "+v1+"/sql-queries", h.ListSQLQueries)
	api.HandleFunc("POST "+v1+"/sql-queries/search", h.SearchSQLQueries)
	api.HandleFunc("GET "+v1+"/sql-queries/{queryID}", h.GetSQLQuery)

	// Rate limit introspection
	api.HandleFunc("GET "+v1+"/rate-limit/status", h.RateLimitStatus)

	return mux
}

// Health handles health check requests
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Ready handles readiness check requests
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Ready"))
}

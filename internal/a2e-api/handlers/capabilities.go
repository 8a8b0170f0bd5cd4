// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/a2e-project/a2e/internal/a2e-api/services"
	"github.com/a2e-project/a2e/internal/server/middleware/auth"
	"github.com/a2e-project/a2e/internal/server/middleware/logger"
)

func (h *Handler) GetCapabilities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logger.GetLogger(ctx)
	logger.Debug("GetCapabilities handler called")

	agentID, ok := auth.AgentID(ctx)
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "authentication required", "UNAUTHENTICATED")
		return
	}

	manifest, err := h.services.CapabilityService.Manifest(ctx, agentID)
	if err != nil {
		logger.Error("Failed to build capability manifest", "error", err)
		writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", services.CodeInternalError)
		return
	}

	writeSuccessResponse(w, http.StatusOK, manifest)
}

func (h *Handler) RateLimitStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	agentID, ok := auth.AgentID(ctx)
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "authentication required", "UNAUTHENTICATED")
		return
	}

	writeSuccessResponse(w, http.StatusOK, h.services.Limiter.Status(agentID))
}

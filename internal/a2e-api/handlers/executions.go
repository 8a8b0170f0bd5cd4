// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/a2e-project/a2e/internal/a2e-api/services"
	"github.com/a2e-project/a2e/internal/server/middleware/auth"
	"github.com/a2e-project/a2e/internal/server/middleware/logger"
)

func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logger.GetLogger(ctx)
	logger.Debug("ListExecutions handler called")

	agentID, ok := auth.AgentID(ctx)
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "authentication required", "UNAUTHENTICATED")
		return
	}

	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeErrorResponse(w, http.StatusBadRequest, "limit must be a positive integer", services.CodeInvalidRequest)
			return
		}
		limit = parsed
	}

	summaries, err := h.services.ExecutionService.ListExecutions(ctx, agentID, q.Get("status"), q.Get("workflow_id"), limit)
	if err != nil {
		logger.Error("Failed to list executions", "error", err)
		writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", services.CodeInternalError)
		return
	}

	writeListResponse(w, summaries)
}

func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logger.GetLogger(ctx)
	logger.Debug("GetExecution handler called")

	agentID, ok := auth.AgentID(ctx)
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "authentication required", "UNAUTHENTICATED")
		return
	}

	executionID := r.PathValue("executionID")
	if executionID == "" {
		writeErrorResponse(w, http.StatusBadRequest, "Execution ID is required", services.CodeInvalidRequest)
		return
	}

	details, err := h.services.ExecutionService.GetExecution(ctx, agentID, executionID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeErrorResponse(w, http.StatusNotFound, "Execution not found", services.CodeNotFound)
			return
		}
		logger.Error("Failed to load execution", "error", err)
		writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", services.CodeInternalError)
		return
	}

	writeSuccessResponse(w, http.StatusOK, details)
}

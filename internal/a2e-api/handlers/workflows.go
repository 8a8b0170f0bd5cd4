// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/a2e-project/a2e/internal/a2e-api/models"
	"github.com/a2e-project/a2e/internal/a2e-api/services"
	"github.com/a2e-project/a2e/internal/responses"
	"github.com/a2e-project/a2e/internal/server/middleware/auth"
	"github.com/a2e-project/a2e/internal/server/middleware/logger"
	"github.com/a2e-project/a2e/internal/workflow/validate"
)

func (h *Handler) ValidateWorkflow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logger.GetLogger(ctx)
	logger.Debug("ValidateWorkflow handler called")

	agentID, ok := auth.AgentID(ctx)
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "authentication required", "UNAUTHENTICATED")
		return
	}

	var req models.ValidateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("Invalid JSON body", "error", err)
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", services.CodeInvalidJSON)
		return
	}
	defer r.Body.Close()

	if err := req.Validate(); err != nil {
		logger.Warn("Validation failed", "error", err)
		writeErrorResponse(w, http.StatusBadRequest, err.Error(), services.CodeInvalidRequest)
		return
	}

	report := h.services.WorkflowService.ValidateWorkflow(ctx, agentID, req.Workflow, validate.ParseMode(req.Level))
	logger.Info("Workflow validated",
		"agent_id", agentID, "valid", report.Valid,
		"errors", len(report.Errors), "warnings", len(report.Warnings))
	writeSuccessResponse(w, http.StatusOK, report)
}

func (h *Handler) ExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logger.GetLogger(ctx)
	logger.Debug("ExecuteWorkflow handler called")

	agentID, ok := auth.AgentID(ctx)
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "authentication required", "UNAUTHENTICATED")
		return
	}

	var req models.ExecuteWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("Invalid JSON body", "error", err)
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", services.CodeInvalidJSON)
		return
	}
	defer r.Body.Close()

	if err := req.Validate(); err != nil {
		logger.Warn("Validation failed", "error", err)
		writeErrorResponse(w, http.StatusBadRequest, err.Error(), services.CodeInvalidRequest)
		return
	}

	// The format query parameter wins over the body field.
	formatParam := r.URL.Query().Get("format")
	if formatParam == "" {
		formatParam = req.Format
	}
	format := responses.ParseFormat(formatParam)

	outcome, invalid := h.services.WorkflowService.ExecuteWorkflow(ctx, agentID, req.Workflow, req.Input, format)
	if invalid != nil {
		logger.Warn("Workflow rejected by validation",
			"agent_id", agentID, "errors", len(invalid.Errors))
		writeRaw(w, http.StatusBadRequest, models.APIResponse[*models.ValidationResponse]{
			Success: false,
			Data:    invalid,
			Error:   "workflow validation failed",
			Code:    services.CodeInvalidWorkflow,
		})
		return
	}

	logger.Info("Workflow executed", "agent_id", agentID, "status_code", outcome.StatusCode)
	writeRaw(w, outcome.StatusCode, outcome.Body)
}

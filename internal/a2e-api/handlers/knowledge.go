// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/a2e-project/a2e/internal/a2e-api/models"
	"github.com/a2e-project/a2e/internal/a2e-api/services"
	"github.com/a2e-project/a2e/internal/server/middleware/auth"
	"github.com/a2e-project/a2e/internal/server/middleware/logger"
)

func (h *Handler) SearchKnowledge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logger.GetLogger(ctx)
	logger.Debug("SearchKnowledge handler called")

	agentID, ok := auth.AgentID(ctx)
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "authentication required", "UNAUTHENTICATED")
		return
	}

	var req models.KnowledgeSearchRequest
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

	result := h.services.KnowledgeService.Search(ctx, agentID, req.Query, req.Base, req.Limit)
	writeSuccessResponse(w, http.StatusOK, result)
}

func (h *Handler) SearchSQLQueries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logger.GetLogger(ctx)
	logger.Debug("SearchSQLQueries handler called")

	var req models.SQLSearchRequest
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

	hits := h.services.KnowledgeService.SearchSQL(ctx, req.Query, req.Database, req.Category, req.Limit)
	writeListResponse(w, hits)
}

func (h *Handler) ListKnowledgeBases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	agentID, ok := auth.AgentID(ctx)
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "authentication required", "UNAUTHENTICATED")
		return
	}

	writeListResponse(w, h.services.KnowledgeService.Bases(ctx, agentID))
}

func (h *Handler) ListSQLQueries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := r.URL.Query()
	queries := h.services.KnowledgeService.SQLQueries(ctx, q.Get("database"), q.Get("category"))
	writeListResponse(w, queries)
}

func (h *Handler) GetSQLQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logger.GetLogger(ctx)

	queryID := r.PathValue("queryID")
	if queryID == "" {
		writeErrorResponse(w, http.StatusBadRequest, "Query ID is required", services.CodeInvalidRequest)
		return
	}

	query, err := h.services.KnowledgeService.GetSQLQuery(ctx, queryID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeErrorResponse(w, http.StatusNotFound, "SQL query not found", services.CodeNotFound)
			return
		}
		logger.Error("Failed to load SQL query", "error", err)
		writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", services.CodeInternalError)
		return
	}

	writeSuccessResponse(w, http.StatusOK, query)
}

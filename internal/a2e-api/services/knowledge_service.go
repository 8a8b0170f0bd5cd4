// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"context"
	"log/slog"

	"github.com/a2e-project/a2e/internal/a2e-api/models"
	"github.com/a2e-project/a2e/internal/agentauth"
	"github.com/a2e-project/a2e/internal/registry"
)

// KnowledgeService answers discovery queries over the API registry and the
// SQL catalog, scoped to what the agent may use.
type KnowledgeService struct {
	registry *registry.Registry
	auth     *agentauth.Service
	logger   *slog.Logger
}

func NewKnowledgeService(reg *registry.Registry, auth *agentauth.Service, logger *slog.Logger) *KnowledgeService {
	return &KnowledgeService{registry: reg, auth: auth, logger: logger}
}

// Search runs one query across both knowledge bases. base narrows the
// search to "apis" or "sql-queries"; empty searches both.
func (s *KnowledgeService) Search(ctx context.Context, agentID, query, base string, topK int) *models.KnowledgeSearchResponse {
	if topK <= 0 {
		topK = 5
	}
	resp := &models.KnowledgeSearchResponse{
		Query:      query,
		APIs:       []registry.API{},
		SQLQueries: []registry.SQLQuery{},
	}

	if base == "" || base == "apis" {
		for _, api := range s.registry.SearchAPIs(ctx, query, topK) {
			if s.auth.CanUseAPI(agentID, api.ID) {
				resp.APIs = append(resp.APIs, api)
			}
		}
	}
	if base == "" || base == "sql-queries" {
		resp.SQLQueries = s.registry.SearchSQLQueries(ctx, query, "", "", topK)
	}
	return resp
}

// SearchSQL runs a scored search over the SQL catalog alone, optionally
// narrowed by database and category.
func (s *KnowledgeService) SearchSQL(ctx context.Context, query, database, category string, topK int) []registry.SQLQuery {
	if topK <= 0 {
		topK = 5
	}
	return s.registry.SearchSQLQueries(ctx, query, database, category, topK)
}

// Bases lists the available knowledge bases with entry counts.
func (s *KnowledgeService) Bases(ctx context.Context, agentID string) []models.KnowledgeBase {
	apis := 0
	for _, api := range s.registry.ListAPIs() {
		if s.auth.CanUseAPI(agentID, api.ID) {
			apis++
		}
	}
	queries := len(s.registry.ListSQLQueries("", ""))
	return []models.KnowledgeBase{
		{Name: "apis", Description: "Registered API definitions", Entries: apis},
		{Name: "sql-queries", Description: "Curated SQL query catalog", Entries: queries},
	}
}

// SQLQueries lists catalog entries, optionally filtered.
func (s *KnowledgeService) SQLQueries(ctx context.Context, database, category string) []registry.SQLQuery {
	return s.registry.ListSQLQueries(database, category)
}

// GetSQLQuery returns one catalog entry.
func (s *KnowledgeService) GetSQLQuery(ctx context.Context, id string) (registry.SQLQuery, error) {
	q, err := s.registry.GetSQLQuery(id)
	if err != nil {
		return registry.SQLQuery{}, ErrNotFound
	}
	return q, nil
}

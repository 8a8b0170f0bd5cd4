// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/a2e-project/a2e/internal/a2e-api/models"
	"github.com/a2e-project/a2e/internal/agentauth"
	"github.com/a2e-project/a2e/internal/ratelimit"
	"github.com/a2e-project/a2e/internal/registry"
	"github.com/a2e-project/a2e/internal/vault"
	"github.com/a2e-project/a2e/internal/workflow/engine"
)

// CapabilityService assembles the per-agent capability manifest.
type CapabilityService struct {
	registry *registry.Registry
	auth     *agentauth.Service
	vault    *vault.Vault
	limiter  *ratelimit.Limiter
	limits   engine.Limits
	logger   *slog.Logger
}

func NewCapabilityService(reg *registry.Registry, auth *agentauth.Service, v *vault.Vault, limiter *ratelimit.Limiter, limits engine.Limits, logger *slog.Logger) *CapabilityService {
	return &CapabilityService{
		registry: reg,
		auth:     auth,
		vault:    v,
		limiter:  limiter,
		limits:   limits,
		logger:   logger,
	}
}

// Manifest builds the capability set visible to the agent. Unknown agents
// get ErrNotFound; the auth middleware normally rules that out.
func (s *CapabilityService) Manifest(ctx context.Context, agentID string) (*models.CapabilitiesResponse, error) {
	if _, err := s.auth.Get(agentID); err != nil {
		return nil, ErrNotFound
	}

	var apis []registry.API
	for _, api := range s.registry.ListAPIs() {
		if s.auth.CanUseAPI(agentID, api.ID) {
			apis = append(apis, api)
		}
	}

	var creds []models.CredentialCapability
	for _, info := range s.vault.List() {
		if !s.auth.CanUseCredential(agentID, info.ID) {
			continue
		}
		creds = append(creds, models.CredentialCapability{
			ID:          info.ID,
			Kind:        info.Kind,
			Description: info.Description,
			UsageHint:   vault.UsageHint(info.Kind),
		})
	}

	ops := make([]registry.OperationSchema, 0)
	for _, schema := range registry.OperationSchemas() {
		if s.auth.CanUseOperation(agentID, schema.Kind) {
			ops = append(ops, schema)
		}
	}

	queries := s.registry.ListSQLQueries("", "")

	status := s.limiter.Status(agentID)
	constraints := models.SecurityConstraints{
		RequestsPerMinute:  status.Requests["minute"].Limit,
		RequestsPerHour:    status.Requests["hour"].Limit,
		RequestsPerDay:     status.Requests["day"].Limit,
		APICallsPerMinute:  status.APICalls["minute"].Limit,
		APICallsPerHour:    status.APICalls["hour"].Limit,
		MaxOperations:      s.limits.MaxOperations,
		MaxExecutionTime:   s.limits.MaxExecutionTime.String(),
		AllowedHTTPMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"},
	}

	if apis == nil {
		apis = []registry.API{}
	}
	if creds == nil {
		creds = []models.CredentialCapability{}
	}

	return &models.CapabilitiesResponse{
		AgentID: agentID,
		Capabilities: models.CapabilitySet{
			AvailableAPIs:        apis,
			AvailableCredentials: creds,
			SupportedOperations:  ops,
			KnowledgeBases: []models.KnowledgeBase{
				{Name: "apis", Description: "Registered API definitions", Entries: len(apis)},
				{Name: "sql-queries", Description: "Curated SQL query catalog", Entries: len(queries)},
			},
			SQLQueriesAvailable: len(queries),
			SecurityConstraints: constraints,
		},
	}, nil
}

// Provider adapts the manifest for GetCapabilities operations inside
// workflow executions.
func (s *CapabilityService) Provider() engine.CapabilityProvider {
	return func(ctx context.Context, agentID string) (map[string]any, error) {
		manifest, err := s.Manifest(ctx, agentID)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(manifest)
		if err != nil {
			return nil, err
		}
		var out map[string]any
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

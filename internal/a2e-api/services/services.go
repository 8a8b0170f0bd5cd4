// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

// Package services holds the business logic behind the A2E API handlers.
package services

import (
	"log/slog"
	"net/http"

	"github.com/a2e-project/a2e/internal/agentauth"
	"github.com/a2e-project/a2e/internal/audit"
	"github.com/a2e-project/a2e/internal/cache"
	"github.com/a2e-project/a2e/internal/ratelimit"
	"github.com/a2e-project/a2e/internal/registry"
	"github.com/a2e-project/a2e/internal/retry"
	"github.com/a2e-project/a2e/internal/store"
	"github.com/a2e-project/a2e/internal/vault"
	"github.com/a2e-project/a2e/internal/workflow/engine"
	"github.com/a2e-project/a2e/internal/workflow/validate"
)

// Dependencies carries the shared component instances the services wrap.
type Dependencies struct {
	Vault    *vault.Vault
	Auth     *agentauth.Service
	Registry *registry.Registry
	Limiter  *ratelimit.Limiter
	Cache    *cache.Cache
	Journal  *audit.Journal
	Store    store.Store
	Retry    retry.Config
	Limits   engine.Limits
	// HTTPClient is used for outbound API calls; nil uses a default.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Services struct {
	WorkflowService   *WorkflowService
	CapabilityService *CapabilityService
	ExecutionService  *ExecutionService
	KnowledgeService  *KnowledgeService
	Limiter           *ratelimit.Limiter
	Auth              *agentauth.Service
}

// NewServices creates and initializes all services. The capability service
// doubles as the engine's capability provider so GetCapabilities operations
// see the same manifest the capabilities endpoint serves.
func NewServices(deps Dependencies) *Services {
	logger := deps.Logger

	capabilityService := NewCapabilityService(
		deps.Registry, deps.Auth, deps.Vault, deps.Limiter, deps.Limits,
		logger.With("service", "capability"))

	eng := &engine.Engine{
		Vault:        deps.Vault,
		Limiter:      deps.Limiter,
		Cache:        deps.Cache,
		Journal:      deps.Journal,
		Store:        deps.Store,
		Retry:        deps.Retry,
		Limits:       deps.Limits,
		HTTPClient:   deps.HTTPClient,
		Capabilities: capabilityService.Provider(),
		Logger:       logger.With("component", "engine"),
	}

	validator := validate.New(deps.Registry, deps.Auth, deps.Vault, deps.Limits.MaxOperations)

	workflowService := NewWorkflowService(eng, validator, deps.Journal,
		logger.With("service", "workflow"))

	executionService := NewExecutionService(deps.Journal,
		logger.With("service", "execution"))

	knowledgeService := NewKnowledgeService(deps.Registry, deps.Auth,
		logger.With("service", "knowledge"))

	return &Services{
		WorkflowService:   workflowService,
		CapabilityService: capabilityService,
		ExecutionService:  executionService,
		KnowledgeService:  knowledgeService,
		Limiter:           deps.Limiter,
		Auth:              deps.Auth,
	}
}

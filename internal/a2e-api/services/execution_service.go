// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"context"
	"log/slog"

	"github.com/a2e-project/a2e/internal/a2e-api/models"
	"github.com/a2e-project/a2e/internal/audit"
)

// ExecutionService serves execution history from the audit journal. Agents
// only ever see their own executions.
type ExecutionService struct {
	journal *audit.Journal
	logger  *slog.Logger
}

func NewExecutionService(journal *audit.Journal, logger *slog.Logger) *ExecutionService {
	return &ExecutionService{journal: journal, logger: logger}
}

// ListExecutions returns the agent's recent executions, newest first.
// status and workflowID filter when non-empty; limit caps results.
func (s *ExecutionService) ListExecutions(ctx context.Context, agentID, status, workflowID string, limit int) ([]models.ExecutionSummary, error) {
	events, err := s.journal.Query(audit.Filter{
		AgentID:    agentID,
		WorkflowID: workflowID,
		Status:     status,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ExecutionSummary, 0, len(events))
	seen := map[string]bool{}
	for _, e := range events {
		// One row per execution; the newest event wins.
		if e.ExecutionID == "" || seen[e.ExecutionID] {
			continue
		}
		if e.EventType != audit.EventExecutionCompleted &&
			e.EventType != audit.EventExecutionFailed &&
			e.EventType != audit.EventExecutionStarted {
			continue
		}
		seen[e.ExecutionID] = true
		summaries = append(summaries, models.ExecutionSummary{
			ExecutionID: e.ExecutionID,
			WorkflowID:  e.WorkflowID,
			AgentID:     e.AgentID,
			Status:      e.Status,
			Timestamp:   e.Timestamp,
		})
	}
	return summaries, nil
}

// GetExecution returns the full timeline of one execution. Executions
// belonging to other agents are indistinguishable from missing ones.
func (s *ExecutionService) GetExecution(ctx context.Context, agentID, executionID string) (*audit.ExecutionDetails, error) {
	details, err := s.journal.Details(executionID)
	if err != nil || details.AgentID != agentID {
		return nil, ErrNotFound
	}
	return details, nil
}

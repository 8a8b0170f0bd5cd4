// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/a2e-project/a2e/internal/a2e-api/models"
	"github.com/a2e-project/a2e/internal/audit"
	"github.com/a2e-project/a2e/internal/responses"
	"github.com/a2e-project/a2e/internal/workflow"
	"github.com/a2e-project/a2e/internal/workflow/engine"
	"github.com/a2e-project/a2e/internal/workflow/validate"
)

// WorkflowService validates and executes workflows.
type WorkflowService struct {
	engine    *engine.Engine
	validator *validate.Validator
	journal   *audit.Journal
	logger    *slog.Logger
}

func NewWorkflowService(eng *engine.Engine, validator *validate.Validator, journal *audit.Journal, logger *slog.Logger) *WorkflowService {
	return &WorkflowService{
		engine:    eng,
		validator: validator,
		journal:   journal,
		logger:    logger,
	}
}

// ValidateWorkflow parses and validates the workflow source without
// executing it. Parse failures come back as findings, not errors.
func (s *WorkflowService) ValidateWorkflow(ctx context.Context, agentID, src string, mode validate.Mode) *models.ValidationResponse {
	wf, err := workflow.Parse(src)
	if err != nil {
		return &models.ValidationResponse{
			Valid:    false,
			Errors:   []models.ValidationFinding{{Message: err.Error()}},
			Warnings: []models.ValidationFinding{},
		}
	}

	report := s.validator.Validate(wf, agentID, mode)

	s.journal.Record(audit.Event{
		EventType:  audit.EventValidation,
		AgentID:    agentID,
		WorkflowID: wf.ID,
		Status:     validationStatus(report.Valid),
		Details: map[string]any{
			"errors":   len(report.Errors),
			"warnings": len(report.Warnings),
		},
	})

	return &models.ValidationResponse{
		Valid:    report.Valid,
		Errors:   findings(report.Errors),
		Warnings: findings(report.Warnings),
	}
}

// ExecutionOutcome is a finished execution rendered for the wire.
type ExecutionOutcome struct {
	// Body is the formatted response envelope.
	Body map[string]any
	// StatusCode is the HTTP status the handler should write.
	StatusCode int
}

// ExecuteWorkflow parses, validates, and runs the workflow, then formats
// the result per the requested verbosity.
func (s *WorkflowService) ExecuteWorkflow(ctx context.Context, agentID, src string, input map[string]any, format responses.Format) (*ExecutionOutcome, *models.ValidationResponse) {
	wf, err := workflow.Parse(src)
	if err != nil {
		return nil, &models.ValidationResponse{
			Valid:    false,
			Errors:   []models.ValidationFinding{{Message: err.Error()}},
			Warnings: []models.ValidationFinding{},
		}
	}

	report := s.validator.Validate(wf, agentID, validate.ModeModerate)
	if !report.Valid {
		return nil, &models.ValidationResponse{
			Valid:    false,
			Errors:   findings(report.Errors),
			Warnings: findings(report.Warnings),
		}
	}

	result := s.engine.Execute(ctx, wf, agentID, input)

	outcome := &ExecutionOutcome{StatusCode: http.StatusOK}
	switch {
	case result.Terminal != nil && result.Terminal.Category == responses.CategoryRateLimited:
		outcome.Body = responses.ErrorResponse(result.ExecutionID, result.Terminal)
		outcome.StatusCode = http.StatusTooManyRequests

	case result.Status == engine.StatusError:
		outcome.Body = responses.ErrorResponse(result.ExecutionID, firstFailure(result))

	case result.Status == engine.StatusPartial:
		outcome.Body = responses.PartialSuccess(result.ExecutionID, result.Results, result.Failures, format)

	default:
		outcome.Body = responses.Success(result.ExecutionID, result.Results, format)
	}
	return outcome, nil
}

// firstFailure picks the error to surface for a fully failed execution.
func firstFailure(result *engine.Result) *responses.Error {
	if result.Terminal != nil {
		return result.Terminal
	}
	for _, e := range result.Failures {
		return e
	}
	return responses.NewExecutionError("execution failed", "")
}

func findings(diags []validate.Diagnostic) []models.ValidationFinding {
	out := make([]models.ValidationFinding, 0, len(diags))
	for _, d := range diags {
		out = append(out, models.ValidationFinding{
			OperationID: d.OperationID,
			Message:     d.Message,
		})
	}
	return out
}

func validationStatus(valid bool) string {
	if valid {
		return "valid"
	}
	return "invalid"
}

// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ExecuteWorkflowRequest is the body of POST /api/v1/workflows/execute.
type ExecuteWorkflowRequest struct {
	// Workflow is the JSONL workflow source.
	Workflow string `json:"workflow" validate:"required"`
	// Input seeds the execution data model at /input.
	Input map[string]any `json:"input,omitempty"`
	// Format selects the response verbosity; the format query parameter
	// takes precedence when both are set.
	Format string `json:"format,omitempty" validate:"omitempty,oneof=minimal summary full"`
}

// Validate checks the request payload.
func (r *ExecuteWorkflowRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return friendlyError(err)
	}
	return nil
}

// ValidateWorkflowRequest is the body of POST /api/v1/workflows/validate.
type ValidateWorkflowRequest struct {
	Workflow string `json:"workflow" validate:"required"`
	// Level selects validation pedantry: strict promotes warnings to
	// errors, moderate (the default) reports them, lenient drops them.
	Level string `json:"level,omitempty" validate:"omitempty,oneof=strict moderate lenient"`
}

// Validate checks the request payload.
func (r *ValidateWorkflowRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return friendlyError(err)
	}
	return nil
}

// KnowledgeSearchRequest is the body of POST /api/v1/knowledge/search.
type KnowledgeSearchRequest struct {
	Query string `json:"query" validate:"required"`
	// Base narrows the search to one knowledge base; empty searches both.
	Base string `json:"base,omitempty" validate:"omitempty,oneof=apis sql-queries"`
	// Limit caps results per base; 0 uses the default.
	Limit int `json:"limit,omitempty" validate:"omitempty,min=1"`
}

// Validate checks the request payload.
func (r *KnowledgeSearchRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return friendlyError(err)
	}
	return nil
}

// SQLSearchRequest is the body of POST /api/v1/sql-queries/search.
type SQLSearchRequest struct {
	Query    string `json:"query" validate:"required"`
	Database string `json:"database,omitempty"`
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty" validate:"omitempty,min=1"`
}

// Validate checks the request payload.
func (r *SQLSearchRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return friendlyError(err)
	}
	return nil
}

// friendlyError converts validator errors into readable messages.
func friendlyError(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return err
	}
	fe := errs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Errorf("%s is invalid", fe.Field())
	}
}

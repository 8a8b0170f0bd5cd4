// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package models

import (
	"time"

	"github.com/a2e-project/a2e/internal/registry"
)

// APIResponse represents a standard API response wrapper
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ListResponse represents a list response with a total count
type ListResponse[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"totalCount"`
}

func SuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Success: true,
		Data:    data,
	}
}

func ListSuccessResponse[T any](items []T) APIResponse[ListResponse[T]] {
	return APIResponse[ListResponse[T]]{
		Success: true,
		Data: ListResponse[T]{
			Items:      items,
			TotalCount: len(items),
		},
	}
}

func ErrorResponse(message, code string) APIResponse[any] {
	return APIResponse[any]{
		Success: false,
		Error:   message,
		Code:    code,
	}
}

// CapabilitiesResponse is the full capability manifest for one agent.
type CapabilitiesResponse struct {
	AgentID      string        `json:"agent_id"`
	Capabilities CapabilitySet `json:"capabilities"`
}

// CapabilitySet enumerates everything the agent may use.
type CapabilitySet struct {
	AvailableAPIs        []registry.API             `json:"availableApis"`
	AvailableCredentials []CredentialCapability     `json:"availableCredentials"`
	SupportedOperations  []registry.OperationSchema `json:"supportedOperations"`
	KnowledgeBases       []KnowledgeBase            `json:"knowledgeBases"`
	SQLQueriesAvailable  int                        `json:"sqlQueriesAvailable"`
	SecurityConstraints  SecurityConstraints        `json:"securityConstraints"`
}

// CredentialCapability describes one vault credential the agent may
// reference. Secret material never appears here.
type CredentialCapability struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
	UsageHint   string `json:"usageHint,omitempty"`
}

// KnowledgeBase names one searchable knowledge source.
type KnowledgeBase struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Entries     int    `json:"entries"`
}

// SecurityConstraints summarizes the guardrails applied to the agent.
type SecurityConstraints struct {
	RequestsPerMinute  int      `json:"requestsPerMinute"`
	RequestsPerHour    int      `json:"requestsPerHour"`
	RequestsPerDay     int      `json:"requestsPerDay"`
	APICallsPerMinute  int      `json:"apiCallsPerMinute"`
	APICallsPerHour    int      `json:"apiCallsPerHour"`
	MaxOperations      int      `json:"maxOperations"`
	MaxExecutionTime   string   `json:"maxExecutionTime"`
	AllowedHTTPMethods []string `json:"allowedHttpMethods"`
}

// ValidationResponse reports workflow validation findings.
type ValidationResponse struct {
	Valid    bool                `json:"valid"`
	Errors   []ValidationFinding `json:"errors"`
	Warnings []ValidationFinding `json:"warnings"`
}

// ValidationFinding is one validation diagnostic.
type ValidationFinding struct {
	OperationID string `json:"operation_id,omitempty"`
	Message     string `json:"message"`
}

// ExecutionSummary is one row in the execution history listing.
type ExecutionSummary struct {
	ExecutionID string    `json:"execution_id"`
	WorkflowID  string    `json:"workflow_id,omitempty"`
	AgentID     string    `json:"agent_id"`
	Status      string    `json:"status,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// KnowledgeSearchResponse groups search hits by knowledge base.
type KnowledgeSearchResponse struct {
	Query      string              `json:"query"`
	APIs       []registry.API      `json:"apis"`
	SQLQueries []registry.SQLQuery `json:"sqlQueries"`
}

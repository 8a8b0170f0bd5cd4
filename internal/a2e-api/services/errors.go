// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package services

import "errors"

// ErrNotFound is returned when the requested resource does not exist or is
// not visible to the requesting agent.
var ErrNotFound = errors.New("resource not found")

// Error codes returned in API response envelopes.
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeInvalidJSON     = "INVALID_JSON"
	CodeInvalidWorkflow = "INVALID_WORKFLOW"
	CodeNotFound        = "NOT_FOUND"
	CodeInternalError   = "INTERNAL_ERROR"
)

// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

// Package responses turns internal execution outcomes into the payloads
// agents consume: a classified error taxonomy with remediation suggestions,
// and success shaping at minimal, summary, and full detail levels.
package responses

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
)

// Category classifies an agent-facing error.
type Category string

const (
	CategoryAuthentication Category = "authentication"
	CategoryAuthorization  Category = "authorization"
	CategoryValidation     Category = "validation"
	CategoryNetwork        Category = "network"
	CategoryAPIError       Category = "api_error"
	CategoryDataError      Category = "data_error"
	CategoryExecution      Category = "execution"
	CategoryRateLimited    Category = "rate_limited"
	CategoryUnknown        Category = "unknown"
)

// Error is the classified form every failure takes before it reaches an
// agent. Context carries category-specific detail (status codes, paths,
// retry hints) and is sanitized before serialization.
type Error struct {
	Message     string
	Category    Category
	OperationID string
	Recoverable bool
	StatusCode  int
	Context     map[string]any
}

func (e *Error) Error() string {
	if e.OperationID != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Category, e.OperationID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Type returns the wire-level error type name for the category.
func (e *Error) Type() string {
	switch e.Category {
	case CategoryAuthentication:
		return "AuthenticationError"
	case CategoryAuthorization:
		return "AuthorizationError"
	case CategoryValidation:
		return "ValidationError"
	case CategoryNetwork:
		return "NetworkError"
	case CategoryAPIError:
		return "ApiError"
	case CategoryDataError:
		return "DataError"
	case CategoryExecution:
		return "ExecutionError"
	case CategoryRateLimited:
		return "RateLimitError"
	default:
		return "UnknownError"
	}
}

func newError(cat Category, msg string, recoverable bool, ctx map[string]any) *Error {
	return &Error{Message: msg, Category: cat, Recoverable: recoverable, Context: ctx}
}

// NewAuthenticationError reports a failed credential or token check.
func NewAuthenticationError(msg string) *Error {
	return newError(CategoryAuthentication, msg, false, nil)
}

// NewAuthorizationError reports access denied to a named resource.
func NewAuthorizationError(msg, resource string) *Error {
	return newError(CategoryAuthorization, msg, false, map[string]any{"resource": resource})
}

// NewValidationError reports malformed input for a field.
func NewValidationError(msg, field string) *Error {
	var ctx map[string]any
	if field != "" {
		ctx = map[string]any{"field": field}
	}
	return newError(CategoryValidation, msg, false, ctx)
}

// NewNetworkError reports a transport-level failure reaching url.
func NewNetworkError(msg, url string) *Error {
	ctx := map[string]any{}
	if url != "" {
		ctx["domain"] = domainOf(url)
	}
	return newError(CategoryNetwork, msg, true, ctx)
}

// NewAPIError reports a non-success upstream HTTP status.
func NewAPIError(msg string, status int, bodyPreview string) *Error {
	e := newError(CategoryAPIError, msg, status == 408 || status == 429 || status >= 500, map[string]any{
		"status_code": status,
	})
	if bodyPreview != "" {
		e.Context["response_preview"] = truncate(bodyPreview, 200)
	}
	e.StatusCode = status
	return e
}

// NewDataError reports a missing or malformed value in the data model.
func NewDataError(msg, path string) *Error {
	var ctx map[string]any
	if path != "" {
		ctx = map[string]any{"path": path}
	}
	return newError(CategoryDataError, msg, false, ctx)
}

// NewExecutionError reports an operation-level failure.
func NewExecutionError(msg, operationID string) *Error {
	e := newError(CategoryExecution, msg, false, nil)
	e.OperationID = operationID
	return e
}

// NewRateLimitError reports a refused request with its retry hint.
func NewRateLimitError(msg string, retryAfterSeconds int) *Error {
	return newError(CategoryRateLimited, msg, true, map[string]any{
		"retry_after": retryAfterSeconds,
	})
}

// HTTPStatusError marks an upstream response status; the retry handler
// produces these so classification can map them onto the taxonomy.
type HTTPStatusError struct {
	StatusCode  int
	URL         string
	BodyPreview string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// Normalize converts any error into a classified *Error and stamps the
// failing operation id. Already-classified errors pass through.
func Normalize(err error, operationID string) *Error {
	var classified *Error
	switch {
	case errors.As(err, &classified):
		// keep as-is
	default:
		classified = classify(err)
	}
	if classified.OperationID == "" {
		classified.OperationID = operationID
	}
	classified.Message = SanitizeMessage(classified.Message)
	classified.Context = sanitizeContext(classified.Context)
	return classified
}

func classify(err error) *Error {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return NewAPIError(statusErr.Error(), statusErr.StatusCode, statusErr.BodyPreview)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewNetworkError("request timed out", "")
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewNetworkError(err.Error(), "")
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "no such host"),
		strings.Contains(lower, "timeout"):
		return NewNetworkError(msg, "")
	case strings.Contains(lower, "unauthorized"),
		strings.Contains(lower, "invalid api key"),
		strings.Contains(lower, "invalid token"):
		return NewAuthenticationError(msg)
	default:
		return newError(CategoryUnknown, msg, false, nil)
	}
}

// Suggestions returns remediation hints for the error category, bucketed by
// upstream status for API errors.
func Suggestions(e *Error) []string {
	switch e.Category {
	case CategoryAuthentication:
		return []string{
			"Verify the API key or token is valid and has not expired",
			"Re-register the agent if the credential was rotated",
		}
	case CategoryAuthorization:
		return []string{
			"Check that the agent's allow-lists include this resource",
			"Request access to the resource from an operator",
		}
	case CategoryValidation:
		return []string{
			"Review the operation's configuration fields",
			"Validate the workflow before executing it",
		}
	case CategoryNetwork:
		return []string{
			"Retry the request after a short delay",
			"Verify the target host is reachable",
		}
	case CategoryAPIError:
		switch {
		case e.StatusCode == 401:
			return []string{"Check the credential referenced by this API call", "The upstream token may have expired"}
		case e.StatusCode == 403:
			return []string{"The credential lacks permission for this endpoint"}
		case e.StatusCode == 404:
			return []string{"Verify the endpoint path and identifiers in the URL"}
		case e.StatusCode == 429:
			return []string{"Reduce the request rate", "Honor the Retry-After header before retrying"}
		case e.StatusCode >= 500:
			return []string{"The upstream service failed; retry with backoff", "Check the service's status page"}
		default:
			return []string{"Inspect the response preview for the upstream error detail"}
		}
	case CategoryDataError:
		return []string{
			"Check that the referenced path was produced by an earlier operation",
			"Verify operation ordering and outputPath values",
		}
	case CategoryExecution:
		return []string{
			"Inspect the failing operation's configuration",
			"Run the workflow through validation for detailed diagnostics",
		}
	case CategoryRateLimited:
		return []string{
			"Wait for the retry_after interval before resubmitting",
			"Batch work into fewer, larger workflows",
		}
	default:
		return []string{"Retry the request; contact an operator if the error persists"}
	}
}

var (
	pathFragment   = regexp.MustCompile(`(?:/[\w.-]+){2,}`)
	sensitiveKeyRe = regexp.MustCompile(`(?i)(token|password|secret|key|auth)`)
)

// SanitizeMessage strips filesystem-path fragments, collapses multi-line
// messages to the first three lines, and caps the result at 500 runes.
func SanitizeMessage(msg string) string {
	msg = pathFragment.ReplaceAllString(msg, "[path]")
	lines := strings.Split(msg, "\n")
	if len(lines) > 3 {
		lines = lines[:3]
	}
	return truncate(strings.TrimSpace(strings.Join(lines, "\n")), 500)
}

func sanitizeContext(ctx map[string]any) map[string]any {
	if ctx == nil {
		return nil
	}
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		if sensitiveKeyRe.MatchString(k) {
			out[k] = "[REDACTED]"
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = truncate(s, 200)
			continue
		}
		out[k] = v
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func domainOf(rawURL string) string {
	s := rawURL
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[i+1:]
	}
	return s
}

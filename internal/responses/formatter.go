// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package responses

import (
	"sort"
)

// Format selects how much execution detail a response carries.
type Format string

const (
	FormatMinimal Format = "minimal"
	FormatSummary Format = "summary"
	FormatFull    Format = "full"
)

// ParseFormat maps a request parameter onto a Format, defaulting to summary.
func ParseFormat(s string) Format {
	switch Format(s) {
	case FormatMinimal, FormatSummary, FormatFull:
		return Format(s)
	default:
		return FormatSummary
	}
}

const (
	summaryMaxDepth  = 3
	summaryMaxItems  = 50
	summaryMaxScalar = 100
	fullMaxString    = 200
)

// Success shapes a completed execution's per-operation results at the
// requested detail level.
func Success(executionID string, results map[string]any, format Format) map[string]any {
	resp := map[string]any{
		"status":       "success",
		"execution_id": executionID,
	}
	switch format {
	case FormatMinimal:
		resp["data"] = extractMinimal(results)
	case FormatSummary:
		ops := make(map[string]any, len(results))
		for id, r := range results {
			ops[id] = map[string]any{
				"status": "completed",
				"data":   summarize(r, 0),
			}
		}
		resp["summary"] = map[string]any{
			"operations":      ops,
			"operation_count": len(results),
		}
	default:
		resp["results"] = redactValue(results)
	}
	return resp
}

// ErrorResponse shapes a failed execution around a classified error.
func ErrorResponse(executionID string, e *Error) map[string]any {
	payload := map[string]any{
		"type":        e.Type(),
		"category":    string(e.Category),
		"message":     e.Message,
		"recoverable": e.Recoverable,
		"suggestions": Suggestions(e),
	}
	if e.OperationID != "" {
		payload["operation_id"] = e.OperationID
	}
	if len(e.Context) > 0 {
		payload["context"] = e.Context
	}
	return map[string]any{
		"status":       "error",
		"execution_id": executionID,
		"error":        payload,
	}
}

// PartialSuccess shapes an execution where some operations completed and
// others failed.
func PartialSuccess(executionID string, completed map[string]any, failed map[string]*Error, format Format) map[string]any {
	failures := make(map[string]any, len(failed))
	for id, e := range failed {
		failures[id] = map[string]any{
			"type":        e.Type(),
			"category":    string(e.Category),
			"message":     e.Message,
			"recoverable": e.Recoverable,
			"suggestions": Suggestions(e),
		}
	}

	var results any
	switch format {
	case FormatMinimal:
		results = extractMinimal(completed)
	case FormatSummary:
		results = summarize(completed, 0)
	default:
		results = redactValue(completed)
	}

	return map[string]any{
		"status":       "partial_success",
		"execution_id": executionID,
		"completed":    results,
		"failed":       failures,
		"summary": map[string]any{
			"completed_count": len(completed),
			"failed_count":    len(failed),
		},
	}
}

// extractMinimal pulls the payload an agent most likely wants: a "data" or
// "items" member when present, otherwise scalar members. A single-operation
// result collapses to its extraction directly.
func extractMinimal(results map[string]any) any {
	extracted := make(map[string]any, len(results))
	for id, r := range results {
		extracted[id] = minimalOf(r)
	}
	if len(extracted) == 1 {
		for _, v := range extracted {
			return v
		}
	}
	return extracted
}

func minimalOf(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	if data, ok := m["data"]; ok {
		return data
	}
	if items, ok := m["items"]; ok {
		return items
	}
	scalars := map[string]any{}
	for k, e := range m {
		switch e.(type) {
		case map[string]any, []any:
		default:
			scalars[k] = e
		}
	}
	if len(scalars) > 0 {
		return scalars
	}
	return v
}

// summarize compacts a value for summary responses: depth capped at three,
// lists capped at fifty entries with a count marker, incidental strings
// shortened.
func summarize(v any, depth int) any {
	if depth >= summaryMaxDepth {
		return typeLabel(v)
	}
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out[k] = summarize(t[k], depth+1)
		}
		return out
	case []any:
		n := len(t)
		limit := n
		if limit > summaryMaxItems {
			limit = summaryMaxItems
		}
		out := make([]any, 0, limit)
		for _, e := range t[:limit] {
			out = append(out, summarize(e, depth+1))
		}
		if n > summaryMaxItems {
			return map[string]any{"items": out, "total_count": n, "truncated": true}
		}
		return out
	case string:
		return truncate(t, summaryMaxScalar)
	default:
		return v
	}
}

func typeLabel(v any) string {
	switch v.(type) {
	case map[string]any:
		return "[object]"
	case []any:
		return "[array]"
	case string:
		return "[string]"
	default:
		return "[value]"
	}
}

// redactValue walks a full-format result tree masking sensitive keys and
// truncating long strings.
func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			if sensitiveKeyRe.MatchString(k) {
				out[k] = "[REDACTED]"
				continue
			}
			out[k] = redactValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = redactValue(e)
		}
		return out
	case string:
		return truncate(t, fullMaxString)
	default:
		return v
	}
}

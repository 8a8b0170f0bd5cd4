// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package responses

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() map[string]any {
	return map[string]any{
		"fetch": map[string]any{
			"status": float64(200),
			"data":   []any{map[string]any{"name": "ada"}},
		},
	}
}

func TestSuccessMinimal(t *testing.T) {
	resp := Success("exec-1", sampleResults(), FormatMinimal)
	assert.Equal(t, "success", resp["status"])
	// single operation collapses to its "data" member
	assert.Equal(t, []any{map[string]any{"name": "ada"}}, resp["data"])
}

func TestSuccessSummaryTruncatesLists(t *testing.T) {
	items := make([]any, 80)
	for i := range items {
		items[i] = float64(i)
	}
	resp := Success("exec-1", map[string]any{"op": map[string]any{"items": items}}, FormatSummary)

	summary := resp["summary"].(map[string]any)
	assert.Equal(t, 1, summary["operation_count"])

	opData := summary["operations"].(map[string]any)["op"].(map[string]any)["data"].(map[string]any)
	truncated := opData["items"].(map[string]any)
	assert.Equal(t, 80, truncated["total_count"])
	assert.Len(t, truncated["items"], 50)
}

func TestSuccessFullRedacts(t *testing.T) {
	results := map[string]any{
		"login": map[string]any{"access_token": "abc", "user": "ada"},
	}
	resp := Success("exec-1", results, FormatFull)
	login := resp["results"].(map[string]any)["login"].(map[string]any)
	assert.Equal(t, "[REDACTED]", login["access_token"])
	assert.Equal(t, "ada", login["user"])
}

func TestErrorResponseShape(t *testing.T) {
	e := Normalize(NewAPIError("upstream returned status 404", 404, "not found"), "fetch")
	resp := ErrorResponse("exec-2", e)

	assert.Equal(t, "error", resp["status"])
	payload := resp["error"].(map[string]any)
	assert.Equal(t, "ApiError", payload["type"])
	assert.Equal(t, "api_error", payload["category"])
	assert.Equal(t, "fetch", payload["operation_id"])
	require.NotEmpty(t, payload["suggestions"])
}

func TestPartialSuccess(t *testing.T) {
	completed := map[string]any{"a": map[string]any{"ok": true}}
	failed := map[string]*Error{"b": NewExecutionError("boom", "b")}

	resp := PartialSuccess("exec-3", completed, failed, FormatFull)
	assert.Equal(t, "partial_success", resp["status"])

	summary := resp["summary"].(map[string]any)
	assert.Equal(t, 1, summary["completed_count"])
	assert.Equal(t, 1, summary["failed_count"])
	assert.Contains(t, resp["failed"].(map[string]any), "b")
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatMinimal, ParseFormat("minimal"))
	assert.Equal(t, FormatFull, ParseFormat("full"))
	assert.Equal(t, FormatSummary, ParseFormat(""))
	assert.Equal(t, FormatSummary, ParseFormat("bogus"))
}

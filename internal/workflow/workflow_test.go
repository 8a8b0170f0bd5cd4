// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	src := `{"operationUpdate":{"workflowId":"wf-1","operations":[{"id":"fetch","operation":{"ApiCall":{"method":"GET","url":"https://api.example.com/users","outputPath":"/workflow/fetch"}}},{"id":"filter","operation":{"FilterData":{"inputPath":"/workflow/fetch","outputPath":"/workflow/filter"}}}]}}
{"beginExecution":{"workflowId":"wf-1","root":"fetch"}}`

	wf, err := Parse(src)
	require.NoError(t, err)

	assert.Equal(t, "wf-1", wf.ID)
	assert.Equal(t, "fetch", wf.Root)
	require.Len(t, wf.Operations, 2)
	assert.Equal(t, "fetch", wf.Operations[0].ID)
	assert.Equal(t, "ApiCall", wf.Operations[0].Kind)
	assert.Equal(t, "GET", wf.Operations[0].Config["method"])
	assert.Equal(t, "filter", wf.Operations[1].ID)
	assert.Equal(t, "FilterData", wf.Operations[1].Kind)
}

func TestParseLaterFrameOverwrites(t *testing.T) {
	src := `{"operationUpdate":{"workflowId":"wf","operations":[{"id":"a","operation":{"Wait":{"duration":100}}}]}}
{"operationUpdate":{"workflowId":"wf","operations":[{"id":"a","operation":{"Wait":{"duration":500}}}]}}
{"beginExecution":{"workflowId":"wf","root":"a"}}`

	wf, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, wf.Operations, 1)
	assert.Equal(t, float64(500), wf.ByID["a"].Config["duration"])
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"invalid json", `{not json}`},
		{"missing id", `{"operationUpdate":{"workflowId":"wf","operations":[{"operation":{"Wait":{}}}]}}`},
		{"two kinds", `{"operationUpdate":{"workflowId":"wf","operations":[{"id":"a","operation":{"Wait":{},"ApiCall":{}}}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			assert.Error(t, err)
		})
	}
}

func TestParseSkipsBlankLines(t *testing.T) {
	src := "\n" + `{"beginExecution":{"workflowId":"wf","root":"a"}}` + "\n\n"
	wf, err := Parse(src)
	require.NoError(t, err)
	assert.Equal(t, "a", wf.Root)
}

func TestDependencyID(t *testing.T) {
	assert.Equal(t, "fetch", DependencyID("/workflow/fetch"))
	assert.Equal(t, "fetch", DependencyID("/workflow/fetch/items/0"))
	assert.Equal(t, "", DependencyID("/input/query"))
	assert.Equal(t, "", DependencyID("workflow/fetch"))
}

func TestInputPaths(t *testing.T) {
	op := &Operation{
		ID:   "merge",
		Kind: "MergeData",
		Config: map[string]any{
			"inputPaths": []any{"/workflow/a", "/workflow/b"},
			"outputPath": "/workflow/merge",
		},
	}
	assert.Equal(t, []string{"/workflow/a", "/workflow/b"}, op.InputPaths())
	assert.Equal(t, "/workflow/merge", op.OutputPath())
}

// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataModelSetGet(t *testing.T) {
	d := NewDataModel()

	require.NoError(t, d.Set("/workflow/fetch", map[string]any{
		"users": []any{
			map[string]any{"name": "ada"},
			map[string]any{"name": "grace"},
		},
	}))

	v, ok := d.Get("/workflow/fetch/users/1/name")
	require.True(t, ok)
	assert.Equal(t, "grace", v)

	_, ok = d.Get("/workflow/fetch/users/5")
	assert.False(t, ok)
	_, ok = d.Get("/workflow/missing")
	assert.False(t, ok)
}

func TestDataModelSetCreatesIntermediates(t *testing.T) {
	d := NewDataModel()
	require.NoError(t, d.Set("/a/b/c", 42))

	v, ok := d.Get("/a/b/c")
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestDataModelSetIntoArray(t *testing.T) {
	d := NewDataModel()
	require.NoError(t, d.Set("/items", []any{"x", "y"}))
	require.NoError(t, d.Set("/items/0", "z"))

	v, _ := d.Get("/items/0")
	assert.Equal(t, "z", v)

	assert.Error(t, d.Set("/items/9", "nope"))
}

func TestDataModelSnapshotIsACopy(t *testing.T) {
	d := NewDataModel()
	require.NoError(t, d.Set("/a", map[string]any{"k": "v"}))

	snap := d.Snapshot()
	snap["a"].(map[string]any)["k"] = "mutated"

	v, _ := d.Get("/a/k")
	assert.Equal(t, "v", v)
}

func TestExpandTemplate(t *testing.T) {
	d := NewDataModel()
	require.NoError(t, d.Set("/input/city", "Berlin"))
	require.NoError(t, d.Set("/input/count", float64(3)))
	require.NoError(t, d.Set("/workflow/fetch", map[string]any{"total": float64(9)}))

	tests := []struct {
		name string
		in   string
		want any
	}{
		{"plain string", "no refs here", "no refs here"},
		{"embedded", "weather in {/input/city} today", "weather in Berlin today"},
		{"whole-string keeps type", "{/input/count}", float64(3)},
		{"whole-string object", "{/workflow/fetch}", map[string]any{"total": float64(9)}},
		{"missing ref literal", "{/input/missing} stays", "{/input/missing} stays"},
		{"two refs", "{/input/city}-{/input/count}", "Berlin-3"},
		{"no leading slash", "hello {input/city}", "hello Berlin"},
		{"whole-string no leading slash", "{input/count}", float64(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandTemplate(tt.in, d))
		})
	}
}

func TestResolveValue(t *testing.T) {
	d := NewDataModel()
	require.NoError(t, d.Set("/workflow/auth", map[string]any{"token": "abc"}))

	in := map[string]any{
		"headers": map[string]any{
			"Authorization": "Bearer {/workflow/auth/token}",
		},
		"body": map[string]any{"path": "/workflow/auth"},
		"n":    float64(1),
	}

	out := ResolveValue(in, d).(map[string]any)
	assert.Equal(t, "Bearer abc", out["headers"].(map[string]any)["Authorization"])
	assert.Equal(t, map[string]any{"token": "abc"}, out["body"])
	assert.Equal(t, float64(1), out["n"])
}

// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2e-project/a2e/internal/workflow"
)

// execWith returns a bare execution whose data model holds value at /in.
func execWith(t *testing.T, value any) *execution {
	t.Helper()
	data := workflow.NewDataModel()
	require.NoError(t, data.Set("/in", value))
	return &execution{data: data}
}

func cfgIn(extra map[string]any) map[string]any {
	cfg := map[string]any{"inputPath": "/in"}
	for k, v := range extra {
		cfg[k] = v
	}
	return cfg
}

func TestFormatText(t *testing.T) {
	tests := []struct {
		name  string
		input any
		cfg   map[string]any
		want  any
	}{
		{"upper", "hello", cfgIn(map[string]any{"format": "upper"}), "HELLO"},
		{"lower", "HeLLo", cfgIn(map[string]any{"format": "lower"}), "hello"},
		{"title", "ada lovelace", cfgIn(map[string]any{"format": "title"}), "Ada Lovelace"},
		{"trim", "  padded  ", cfgIn(map[string]any{"format": "trim"}), "padded"},
		{
			"template",
			map[string]any{"name": "Ada", "city": "London"},
			cfgIn(map[string]any{"format": "template", "template": "{name} from {city} ({missing})"}),
			"Ada from London ({missing})",
		},
		{
			"replace",
			"red fish blue fish",
			cfgIn(map[string]any{"format": "replace", "replacements": map[string]any{"fish": "bird"}}),
			"red bird blue bird",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runFormatText(execWith(t, tt.input), tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractText(t *testing.T) {
	exec := execWith(t, "Contact: ada@example.com and grace@example.org")

	got, err := runExtractText(exec, cfgIn(map[string]any{"pattern": `(\w+)@example\.\w+`}))
	require.NoError(t, err)
	assert.Equal(t, "ada", got)

	got, err = runExtractText(exec, cfgIn(map[string]any{"pattern": `\w+@example\.\w+`, "extractAll": true}))
	require.NoError(t, err)
	assert.Equal(t, []any{"ada@example.com", "grace@example.org"}, got)

	got, err = runExtractText(exec, cfgIn(map[string]any{"pattern": `zzz`}))
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = runExtractText(exec, cfgIn(map[string]any{"pattern": `([`}))
	assert.Error(t, err)
}

func TestValidateData(t *testing.T) {
	tests := []struct {
		name  string
		input any
		cfg   map[string]any
		valid bool
	}{
		{"good email", "ada@example.com", cfgIn(map[string]any{"validationType": "email"}), true},
		{"bad email", "not-an-email", cfgIn(map[string]any{"validationType": "email"}), false},
		{"good url", "https://example.com/x", cfgIn(map[string]any{"validationType": "url"}), true},
		{"bad url", "ftp://example.com", cfgIn(map[string]any{"validationType": "url"}), false},
		{"number string", "3.14", cfgIn(map[string]any{"validationType": "number"}), true},
		{"integer", float64(7), cfgIn(map[string]any{"validationType": "integer"}), true},
		{"non-integer", float64(7.5), cfgIn(map[string]any{"validationType": "integer"}), false},
		{"phone", "+44 20 7946 0958", cfgIn(map[string]any{"validationType": "phone"}), true},
		{"date", "2025-06-01", cfgIn(map[string]any{"validationType": "date"}), true},
		{"custom hit", "ABC-123", cfgIn(map[string]any{"validationType": "custom", "pattern": `^[A-Z]+-\d+$`}), true},
		{"custom miss", "abc", cfgIn(map[string]any{"validationType": "custom", "pattern": `^[A-Z]+-\d+$`}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runValidateData(execWith(t, tt.input), tt.cfg)
			require.NoError(t, err)
			result := got.(map[string]any)
			assert.Equal(t, tt.valid, result["valid"])
			if !tt.valid {
				assert.Contains(t, result, "error")
			}
		})
	}
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name  string
		input any
		cfg   map[string]any
		want  any
	}{
		{"add", float64(10), cfgIn(map[string]any{"operation": "add", "operand": float64(5)}), float64(15)},
		{"subtract", float64(10), cfgIn(map[string]any{"operation": "subtract", "operand": float64(3)}), float64(7)},
		{"multiply", float64(4), cfgIn(map[string]any{"operation": "multiply", "operand": float64(2.5)}), float64(10)},
		{"divide", float64(9), cfgIn(map[string]any{"operation": "divide", "operand": float64(2)}), float64(4.5)},
		{"round", float64(3.14159), cfgIn(map[string]any{"operation": "round", "precision": float64(2)}), float64(3.14)},
		{"sum", []any{float64(1), float64(2), float64(3)}, cfgIn(map[string]any{"operation": "sum"}), float64(6)},
		{"average", []any{float64(2), float64(4)}, cfgIn(map[string]any{"operation": "average"}), float64(3)},
		{"numeric string", "10", cfgIn(map[string]any{"operation": "add", "operand": float64(1)}), float64(11)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runCalculate(execWith(t, tt.input), tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := runCalculate(execWith(t, float64(1)), cfgIn(map[string]any{"operation": "divide", "operand": float64(0)}))
	assert.Error(t, err)
}

func TestEncodeDecode(t *testing.T) {
	roundTrips := []struct {
		encoding string
		plain    string
		encoded  string
	}{
		{"base64", "hello world", "aGVsbG8gd29ybGQ="},
		{"url", "a b&c", "a+b%26c"},
		{"html", `<b>"x"</b>`, "&lt;b&gt;&#34;x&#34;&lt;/b&gt;"},
	}
	for _, tt := range roundTrips {
		t.Run(tt.encoding, func(t *testing.T) {
			got, err := runEncodeDecode(execWith(t, tt.plain), cfgIn(map[string]any{"operation": "encode", "encoding": tt.encoding}))
			require.NoError(t, err)
			assert.Equal(t, tt.encoded, got)

			back, err := runEncodeDecode(execWith(t, got), cfgIn(map[string]any{"operation": "decode", "encoding": tt.encoding}))
			require.NoError(t, err)
			assert.Equal(t, tt.plain, back)
		})
	}

	_, err := runEncodeDecode(execWith(t, "!!!"), cfgIn(map[string]any{"operation": "decode", "encoding": "base64"}))
	assert.Error(t, err)
}

func TestGetCurrentDateTime(t *testing.T) {
	got, err := runGetCurrentDateTime(map[string]any{"timezone": "UTC", "format": "iso8601"})
	require.NoError(t, err)
	parsed, err := time.Parse(time.RFC3339, got.(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), parsed, time.Minute)

	got, err = runGetCurrentDateTime(map[string]any{"format": "timestamp"})
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Unix(), got.(int64), 60)

	got, err = runGetCurrentDateTime(map[string]any{"format": "custom", "formatString": "%Y-%m-%d"})
	require.NoError(t, err)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, got)

	_, err = runGetCurrentDateTime(map[string]any{"timezone": "Mars/Olympus"})
	assert.Error(t, err)
}

func TestConvertTimezone(t *testing.T) {
	exec := execWith(t, "2025-06-01T12:00:00Z")
	got, err := runConvertTimezone(exec, cfgIn(map[string]any{
		"toTimezone": "America/New_York",
	}))
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01T08:00:00-04:00", got)

	// Offset-less input is interpreted in fromTimezone.
	exec = execWith(t, "2025-06-01 12:00:00")
	got, err = runConvertTimezone(exec, cfgIn(map[string]any{
		"fromTimezone": "Asia/Tokyo",
		"toTimezone":   "UTC",
	}))
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01T03:00:00Z", got)
}

func TestDateCalculation(t *testing.T) {
	tests := []struct {
		name string
		cfg  map[string]any
		want string
	}{
		{"add days", cfgIn(map[string]any{"operation": "add", "days": float64(10)}), "2025-06-11T00:00:00Z"},
		{"subtract hours", cfgIn(map[string]any{"operation": "subtract", "hours": float64(6)}), "2025-05-31T18:00:00Z"},
		{"add months approximates", cfgIn(map[string]any{"operation": "add", "months": float64(1)}), "2025-07-01T00:00:00Z"},
		{"add year approximates", cfgIn(map[string]any{"operation": "add", "years": float64(1)}), "2026-06-01T00:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runDateCalculation(execWith(t, "2025-06-01T00:00:00Z"), tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterAndTransform(t *testing.T) {
	items := []any{
		map[string]any{"name": "ada", "score": float64(90)},
		map[string]any{"name": "grace", "score": float64(70)},
		map[string]any{"name": "edsger", "score": float64(85)},
	}

	got, err := runFilterData(execWith(t, items), cfgIn(map[string]any{
		"conditions": []any{map[string]any{"field": "score", "operator": ">=", "value": float64(85)}},
	}))
	require.NoError(t, err)
	assert.Len(t, got.([]any), 2)

	got, err = runTransformData(execWith(t, items), cfgIn(map[string]any{
		"transform": "map", "field": "name",
	}))
	require.NoError(t, err)
	assert.Equal(t, []any{"ada", "grace", "edsger"}, got)

	got, err = runTransformData(execWith(t, items), cfgIn(map[string]any{
		"transform": "sort", "field": "score", "order": "desc",
	}))
	require.NoError(t, err)
	sorted := got.([]any)
	assert.Equal(t, "ada", sorted[0].(map[string]any)["name"])
	assert.Equal(t, "grace", sorted[2].(map[string]any)["name"])

	got, err = runTransformData(execWith(t, items), cfgIn(map[string]any{
		"transform": "reduce", "field": "score", "expression": "max",
	}))
	require.NoError(t, err)
	assert.Equal(t, float64(90), got)
}

func TestMergeData(t *testing.T) {
	data := workflow.NewDataModel()
	require.NoError(t, data.Set("/workflow/a", map[string]any{"x": float64(1)}))
	require.NoError(t, data.Set("/workflow/b", []any{"p", "q"}))
	exec := &execution{data: data}

	got, err := runMergeData(exec, map[string]any{
		"inputPaths": []any{"/workflow/a", "/workflow/b"},
		"mode":       "object",
	})
	require.NoError(t, err)
	merged := got.(map[string]any)
	assert.Equal(t, map[string]any{"x": float64(1)}, merged["a"])
	assert.Equal(t, []any{"p", "q"}, merged["b"])

	got, err = runMergeData(exec, map[string]any{
		"inputPaths": []any{"/workflow/b", "/workflow/a"},
		"mode":       "array",
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"p", "q", map[string]any{"x": float64(1)}}, got)

	_, err = runMergeData(exec, map[string]any{
		"inputPaths": []any{"/workflow/missing"},
		"mode":       "object",
	})
	assert.Error(t, err)
}

func TestConditionCompare(t *testing.T) {
	assert.True(t, compare(float64(5), ">", float64(3)))
	assert.True(t, compare("5", ">=", float64(5)))
	assert.False(t, compare(float64(2), ">", float64(3)))
	assert.True(t, compare("hello world", "contains", "world"))
	assert.True(t, compare([]any{"a", "b"}, "contains", "b"))
	assert.False(t, compare([]any{"a"}, "contains", "z"))
	assert.True(t, compare("x", "==", "x"))
	assert.True(t, compare(true, "!=", false))
}

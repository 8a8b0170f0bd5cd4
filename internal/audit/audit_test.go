// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := Defaults()
	cfg.Dir = dir
	j, err := New(cfg, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	require.NoError(t, err)
	return j, dir
}

func TestRecordWritesDailyFile(t *testing.T) {
	j, dir := newTestJournal(t)
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return ts }

	j.Record(Event{
		EventType:   EventExecutionStarted,
		ExecutionID: "exec-1",
		AgentID:     "agent-1",
		WorkflowID:  "wf-1",
	})

	raw, err := os.ReadFile(filepath.Join(dir, "executions_20250601.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"execution_id":"exec-1"`)
	assert.Contains(t, string(raw), `"event_id"`)
}

func TestRecordRedacts(t *testing.T) {
	j, dir := newTestJournal(t)

	j.Record(Event{
		EventType:   EventAPICall,
		ExecutionID: "exec-1",
		Details: map[string]any{
			"url":           "https://api.example.com",
			"Authorization": "Bearer very-secret",
			"api_token":     "also-secret",
			"body":          strings.Repeat("x", 300),
		},
	})

	files, err := filepath.Glob(filepath.Join(dir, "executions_*.jsonl"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)

	s := string(raw)
	assert.NotContains(t, s, "very-secret")
	assert.NotContains(t, s, "also-secret")
	assert.Contains(t, s, "[REDACTED]")
	assert.NotContains(t, s, strings.Repeat("x", 250))
}

func TestQueryFiltersNewestFirst(t *testing.T) {
	j, _ := newTestJournal(t)
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		j.now = func() time.Time { return ts }
		j.Record(Event{
			EventType:   EventExecutionCompleted,
			ExecutionID: "exec-" + string(rune('a'+i)),
			AgentID:     "agent-1",
			Status:      "success",
		})
	}
	j.Record(Event{EventType: EventExecutionFailed, ExecutionID: "exec-x", AgentID: "agent-2", Status: "error"})

	events, err := j.Query(Filter{AgentID: "agent-1"})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "exec-c", events[0].ExecutionID)

	events, err = j.Query(Filter{Status: "error"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "agent-2", events[0].AgentID)

	events, err = j.Query(Filter{AgentID: "agent-1", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestDetailsRebuildsTimeline(t *testing.T) {
	j, _ := newTestJournal(t)
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	at := func(offset time.Duration) { ts := base.Add(offset); j.now = func() time.Time { return ts } }

	at(0)
	j.Record(Event{EventType: EventExecutionStarted, ExecutionID: "exec-1", AgentID: "a", WorkflowID: "wf"})
	at(time.Second)
	j.Record(Event{EventType: EventCredentialUsed, ExecutionID: "exec-1", Details: map[string]any{"credential_id": "github-token"}})
	at(2 * time.Second)
	j.Record(Event{EventType: EventOperationCompleted, ExecutionID: "exec-1", OperationID: "fetch"})
	at(3 * time.Second)
	j.Record(Event{EventType: EventExecutionCompleted, ExecutionID: "exec-1", Status: "success"})

	d, err := j.Details("exec-1")
	require.NoError(t, err)
	assert.Equal(t, "a", d.AgentID)
	assert.Equal(t, "success", d.Status)
	assert.Equal(t, []string{"fetch"}, d.Operations)
	assert.Equal(t, []string{"github-token"}, d.Credentials)
	assert.Len(t, d.Timeline, 4)
	assert.NotEmpty(t, d.StartedAt)
	assert.NotEmpty(t, d.FinishedAt)

	_, err = j.Details("missing")
	assert.Error(t, err)
}

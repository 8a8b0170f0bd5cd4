// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit records execution activity as append-only JSONL journals,
// one file per day, with secret-bearing fields redacted before they touch
// disk.
package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	EventExecutionStarted   = "execution_started"
	EventExecutionCompleted = "execution_completed"
	EventExecutionFailed    = "execution_failed"
	EventOperationStarted   = "operation_started"
	EventOperationCompleted = "operation_completed"
	EventOperationFailed    = "operation_failed"
	EventAPICall            = "api_call"
	EventCredentialUsed     = "credential_used"
	EventValidation         = "workflow_validated"
)

// Event is one journal record.
type Event struct {
	EventID     string         `json:"event_id"`
	EventType   string         `json:"event_type"`
	Timestamp   time.Time      `json:"timestamp"`
	ExecutionID string         `json:"execution_id,omitempty"`
	AgentID     string         `json:"agent_id,omitempty"`
	WorkflowID  string         `json:"workflow_id,omitempty"`
	OperationID string         `json:"operation_id,omitempty"`
	Status      string         `json:"status,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// Config configures the journal.
type Config struct {
	// Dir is the journal directory; daily files are created inside it.
	Dir string `koanf:"dir"`
	// QueryLimit caps results returned by Query when the caller asks for
	// more (or doesn't say).
	QueryLimit int `koanf:"query_limit"`
}

// Defaults returns the default journal configuration.
func Defaults() Config {
	return Config{Dir: "data/audit", QueryLimit: 100}
}

// Journal appends events to daily JSONL files. Safe for concurrent use.
type Journal struct {
	mu     sync.Mutex
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

// New creates the journal directory if needed.
func New(cfg Config, logger *slog.Logger) (*Journal, error) {
	if cfg.QueryLimit <= 0 {
		cfg.QueryLimit = 100
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}
	return &Journal{
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With("component", "audit"),
	}, nil
}

// Record redacts and appends one event. Journal failures are logged, never
// propagated: auditing must not fail executions.
func (j *Journal) Record(event Event) {
	if event.EventID == "" {
		event.EventID = uuid.Must(uuid.NewV7()).String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = j.now().UTC()
	}
	event.Details = redactMap(event.Details)

	line, err := json.Marshal(event)
	if err != nil {
		j.logger.Error("encoding audit event failed", "event_type", event.EventType, "error", err)
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	path := j.fileFor(event.Timestamp)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		j.logger.Error("opening audit journal failed", "path", path, "error", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		j.logger.Error("appending audit event failed", "path", path, "error", err)
	}
}

func (j *Journal) fileFor(ts time.Time) string {
	return filepath.Join(j.cfg.Dir, "executions_"+ts.UTC().Format("20060102")+".jsonl")
}

// Filter narrows a Query.
type Filter struct {
	AgentID     string
	WorkflowID  string
	ExecutionID string
	Status      string
	From        time.Time
	To          time.Time
	Limit       int
}

// Query scans journal files newest-first and returns matching events,
// newest-first, capped at the filter's limit (or the configured maximum).
func (j *Journal) Query(f Filter) ([]Event, error) {
	limit := f.Limit
	if limit <= 0 || limit > j.cfg.QueryLimit {
		limit = j.cfg.QueryLimit
	}

	files, err := j.journalFiles()
	if err != nil {
		return nil, err
	}

	var out []Event
	for i := len(files) - 1; i >= 0 && len(out) < limit; i-- {
		events, err := readJournal(files[i])
		if err != nil {
			j.logger.Warn("skipping unreadable journal file", "path", files[i], "error", err)
			continue
		}
		// Within a file, newest last on disk.
		for k := len(events) - 1; k >= 0 && len(out) < limit; k-- {
			if matches(events[k], f) {
				out = append(out, events[k])
			}
		}
	}
	return out, nil
}

// ExecutionDetails is the reassembled history of one execution.
type ExecutionDetails struct {
	ExecutionID string   `json:"execution_id"`
	AgentID     string   `json:"agent_id"`
	WorkflowID  string   `json:"workflow_id"`
	Status      string   `json:"status"`
	StartedAt   string   `json:"started_at,omitempty"`
	FinishedAt  string   `json:"finished_at,omitempty"`
	Operations  []string `json:"operations"`
	Credentials []string `json:"credentials_used"`
	Timeline    []Event  `json:"timeline"`
}

// Details rebuilds the ordered timeline of one execution across journal
// files.
func (j *Journal) Details(executionID string) (*ExecutionDetails, error) {
	files, err := j.journalFiles()
	if err != nil {
		return nil, err
	}

	var timeline []Event
	for _, path := range files {
		events, err := readJournal(path)
		if err != nil {
			continue
		}
		for _, e := range events {
			if e.ExecutionID == executionID {
				timeline = append(timeline, e)
			}
		}
	}
	if len(timeline) == 0 {
		return nil, fmt.Errorf("execution %q not found in journal", executionID)
	}
	sort.SliceStable(timeline, func(a, b int) bool {
		return timeline[a].Timestamp.Before(timeline[b].Timestamp)
	})

	d := &ExecutionDetails{ExecutionID: executionID, Timeline: timeline}
	seenOps := map[string]bool{}
	seenCreds := map[string]bool{}
	for _, e := range timeline {
		if d.AgentID == "" {
			d.AgentID = e.AgentID
		}
		if d.WorkflowID == "" {
			d.WorkflowID = e.WorkflowID
		}
		switch e.EventType {
		case EventExecutionStarted:
			d.StartedAt = e.Timestamp.Format(time.RFC3339Nano)
			d.Status = "running"
		case EventExecutionCompleted, EventExecutionFailed:
			d.FinishedAt = e.Timestamp.Format(time.RFC3339Nano)
			d.Status = e.Status
		case EventOperationCompleted, EventOperationFailed:
			if e.OperationID != "" && !seenOps[e.OperationID] {
				seenOps[e.OperationID] = true
				d.Operations = append(d.Operations, e.OperationID)
			}
		case EventCredentialUsed:
			if id, ok := e.Details["credential_id"].(string); ok && !seenCreds[id] {
				seenCreds[id] = true
				d.Credentials = append(d.Credentials, id)
			}
		}
	}
	return d, nil
}

func (j *Journal) journalFiles() ([]string, error) {
	pattern := filepath.Join(j.cfg.Dir, "executions_*.jsonl")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("listing journal files: %w", err)
	}
	sort.Strings(files) // date-stamped names sort chronologically
	return files, nil
}

func readJournal(path string) ([]Event, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var events []Event
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e Event
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue // tolerate a torn tail line
		}
		events = append(events, e)
	}
	return events, nil
}

func matches(e Event, f Filter) bool {
	if f.AgentID != "" && e.AgentID != f.AgentID {
		return false
	}
	if f.WorkflowID != "" && e.WorkflowID != f.WorkflowID {
		return false
	}
	if f.ExecutionID != "" && e.ExecutionID != f.ExecutionID {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}

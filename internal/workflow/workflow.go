// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

// Package workflow defines the wire model for agent-submitted workflows:
// line-delimited JSON frames carrying operation definitions and an execution
// trigger, plus the per-execution data model operations read from and write
// into.
package workflow

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
)

// Operation is a single node in a workflow. Kind identifies the handler and
// Config carries the kind-specific parameter map exactly as received on the
// wire.
type Operation struct {
	ID     string
	Kind   string
	Config map[string]any
}

// Workflow is an ordered set of operations plus the designated root.
// Operations preserves declaration order; ByID indexes the same values.
// DuplicateIDs records ids declared more than once within a single frame;
// re-declaring an id in a later frame is an update, not a duplicate.
type Workflow struct {
	ID           string
	Operations   []*Operation
	ByID         map[string]*Operation
	Root         string
	DuplicateIDs []string
}

// wire frame shapes

type frame struct {
	OperationUpdate *operationUpdate `json:"operationUpdate"`
	BeginExecution  *beginExecution  `json:"beginExecution"`
}

type operationUpdate struct {
	WorkflowID string    `json:"workflowId"`
	Operations []wireOp  `json:"operations"`
}

type wireOp struct {
	ID        string                    `json:"id"`
	Operation map[string]map[string]any `json:"operation"`
}

type beginExecution struct {
	WorkflowID string `json:"workflowId"`
	Root       string `json:"root"`
}

// Parse decodes a line-delimited JSON workflow. Each non-empty line is one
// frame; operationUpdate frames accumulate operations (later frames
// overwrite earlier ones by id) and beginExecution names the root.
func Parse(src string) (*Workflow, error) {
	wf := &Workflow{ByID: map[string]*Operation{}}

	scanner := bufio.NewScanner(strings.NewReader(src))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var f frame
		if err := json.Unmarshal([]byte(line), &f); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON frame: %w", lineNo, err)
		}

		switch {
		case f.OperationUpdate != nil:
			if wf.ID == "" {
				wf.ID = f.OperationUpdate.WorkflowID
			}
			seen := map[string]bool{}
			for _, wo := range f.OperationUpdate.Operations {
				op, err := decodeOperation(wo)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				if seen[op.ID] {
					wf.DuplicateIDs = append(wf.DuplicateIDs, op.ID)
				}
				seen[op.ID] = true
				wf.upsert(op)
			}
		case f.BeginExecution != nil:
			if wf.ID == "" {
				wf.ID = f.BeginExecution.WorkflowID
			}
			wf.Root = f.BeginExecution.Root
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading workflow: %w", err)
	}

	return wf, nil
}

func decodeOperation(wo wireOp) (*Operation, error) {
	if wo.ID == "" {
		return nil, fmt.Errorf("operation missing required 'id' field")
	}
	if len(wo.Operation) != 1 {
		return nil, fmt.Errorf("operation %q must have exactly one operation type", wo.ID)
	}
	op := &Operation{ID: wo.ID}
	for kind, cfg := range wo.Operation {
		op.Kind = kind
		op.Config = cfg
	}
	if op.Config == nil {
		op.Config = map[string]any{}
	}
	return op, nil
}

// upsert replaces an existing operation with the same id in place, keeping
// first-declaration order, or appends a new one.
func (w *Workflow) upsert(op *Operation) {
	if prev, ok := w.ByID[op.ID]; ok {
		for i, existing := range w.Operations {
			if existing == prev {
				w.Operations[i] = op
				break
			}
		}
		w.ByID[op.ID] = op
		return
	}
	w.Operations = append(w.Operations, op)
	w.ByID[op.ID] = op
}

// InputPaths returns every data-model path the operation reads from,
// derived from its config ("inputPath" and "inputPaths" fields).
func (o *Operation) InputPaths() []string {
	var paths []string
	if p, ok := o.Config["inputPath"].(string); ok && p != "" {
		paths = append(paths, p)
	}
	if raw, ok := o.Config["inputPaths"].([]any); ok {
		for _, v := range raw {
			if p, ok := v.(string); ok && p != "" {
				paths = append(paths, p)
			}
		}
	}
	return paths
}

// OutputPath returns the data-model path the operation writes its result to,
// or "" when the kind produces no output.
func (o *Operation) OutputPath() string {
	p, _ := o.Config["outputPath"].(string)
	return p
}

// DependencyID extracts the operation id referenced by a data-model path of
// the shape /workflow/<opId>[/...]. Returns "" when the path does not name
// another operation's output.
func DependencyID(path string) string {
	const prefix = "/workflow/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(path, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

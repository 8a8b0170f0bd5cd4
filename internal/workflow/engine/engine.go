// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine executes parsed workflows: it orders operations from the
// designated root, resolves each operation's configuration against the
// execution data model, and dispatches through caching, rate limiting,
// credential injection, and retry.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/a2e-project/a2e/internal/audit"
	"github.com/a2e-project/a2e/internal/cache"
	"github.com/a2e-project/a2e/internal/ratelimit"
	"github.com/a2e-project/a2e/internal/responses"
	"github.com/a2e-project/a2e/internal/retry"
	"github.com/a2e-project/a2e/internal/store"
	"github.com/a2e-project/a2e/internal/vault"
	"github.com/a2e-project/a2e/internal/workflow"
)

// Limits bounds a single execution.
type Limits struct {
	// MaxExecutionTime caps the whole execution.
	MaxExecutionTime time.Duration `koanf:"max_execution_time"`
	// MaxOperations caps workflow size (enforced by validation; the
	// engine re-checks defensively).
	MaxOperations int `koanf:"max_operations"`
}

// DefaultLimits returns the standard execution bounds.
func DefaultLimits() Limits {
	return Limits{MaxExecutionTime: 5 * time.Minute, MaxOperations: 100}
}

// CapabilityProvider produces the agent's capability view for the
// GetCapabilities operation.
type CapabilityProvider func(ctx context.Context, agentID string) (map[string]any, error)

// Engine wires the execution collaborators together. All fields must be
// set; Store and Capabilities may be nil when those operations are unused.
type Engine struct {
	Vault        *vault.Vault
	Limiter      *ratelimit.Limiter
	Cache        *cache.Cache
	Journal      *audit.Journal
	Store        store.Store
	Retry        retry.Config
	Limits       Limits
	HTTPClient   *http.Client
	Capabilities CapabilityProvider
	Logger       *slog.Logger
}

// Status values of a finished execution.
const (
	StatusSuccess = "success"
	StatusPartial = "partial_success"
	StatusError   = "error"
)

// Result is the outcome of one execution.
type Result struct {
	ExecutionID string
	WorkflowID  string
	AgentID     string
	Status      string
	StartedAt   time.Time
	FinishedAt  time.Time
	Results     map[string]any
	Failures    map[string]*responses.Error
	// Terminal is set when the execution was cut short as a whole (rate
	// limit refusal or deadline) rather than by per-operation failures.
	Terminal *responses.Error
}

// execution is the per-run state threaded through operation handlers.
type execution struct {
	id      string
	agentID string
	wf      *workflow.Workflow
	data    *workflow.DataModel
	results map[string]any
	failed  map[string]*responses.Error
	// consumed marks operations run inside Loop bodies or as Conditional
	// branches; they are excluded from the top-level pass.
	consumed map[string]bool
	deadline time.Time
	logger   *slog.Logger
}

// Execute runs the workflow on behalf of the agent. input seeds the data
// model under /input. Operation failures are contained: dependents fail
// with a data error while independent operations continue.
func (e *Engine) Execute(ctx context.Context, wf *workflow.Workflow, agentID string, input map[string]any) *Result {
	execID := uuid.Must(uuid.NewV7()).String()
	started := time.Now().UTC()

	exec := &execution{
		id:       execID,
		agentID:  agentID,
		wf:       wf,
		data:     workflow.NewDataModel(),
		results:  map[string]any{},
		failed:   map[string]*responses.Error{},
		consumed: consumedOperations(wf),
		deadline: started.Add(e.Limits.MaxExecutionTime),
		logger:   e.Logger.With("component", "engine", "execution_id", execID, "agent_id", agentID),
	}
	if input != nil {
		_ = exec.data.Set("/input", input)
	}

	e.Journal.Record(audit.Event{
		EventType:   audit.EventExecutionStarted,
		ExecutionID: execID,
		AgentID:     agentID,
		WorkflowID:  wf.ID,
		Details:     map[string]any{"operation_count": len(wf.Operations)},
	})

	ctx, cancel := context.WithDeadline(ctx, exec.deadline)
	defer cancel()

	result := &Result{
		ExecutionID: execID,
		WorkflowID:  wf.ID,
		AgentID:     agentID,
		StartedAt:   started,
	}

	for _, op := range e.executionOrder(wf) {
		if terminal := e.checkDeadline(ctx, exec); terminal != nil {
			result.Terminal = terminal
			break
		}
		if terminal := e.dispatch(ctx, exec, op); terminal != nil {
			result.Terminal = terminal
			break
		}
	}

	result.FinishedAt = time.Now().UTC()
	result.Results = exec.results
	result.Failures = exec.failed
	result.Status = statusOf(result)

	eventType := audit.EventExecutionCompleted
	if result.Status == StatusError {
		eventType = audit.EventExecutionFailed
	}
	e.Journal.Record(audit.Event{
		EventType:   eventType,
		ExecutionID: execID,
		AgentID:     agentID,
		WorkflowID:  wf.ID,
		Status:      result.Status,
		Details: map[string]any{
			"duration_ms": result.FinishedAt.Sub(started).Milliseconds(),
			"completed":   len(exec.results),
			"failed":      len(exec.failed),
		},
	})
	return result
}

func statusOf(r *Result) string {
	switch {
	case r.Terminal != nil && len(r.Results) == 0:
		return StatusError
	case r.Terminal != nil:
		return StatusPartial
	case len(r.Results) == 0 && len(r.Failures) == 0:
		// Nothing ran. An execution that produced no outcome at all is
		// a failure, not a vacuous success.
		return StatusError
	case len(r.Failures) == 0:
		return StatusSuccess
	case len(r.Results) == 0:
		return StatusError
	default:
		return StatusPartial
	}
}

// executionOrder is root first, then the remaining operations in
// declaration order, excluding those consumed by Loop bodies and
// Conditional branches.
func (e *Engine) executionOrder(wf *workflow.Workflow) []*workflow.Operation {
	consumed := consumedOperations(wf)
	var order []*workflow.Operation
	if root, ok := wf.ByID[wf.Root]; ok {
		order = append(order, root)
	}
	for _, op := range wf.Operations {
		if op.ID == wf.Root || consumed[op.ID] {
			continue
		}
		order = append(order, op)
	}
	return order
}

func consumedOperations(wf *workflow.Workflow) map[string]bool {
	consumed := map[string]bool{}
	for _, op := range wf.Operations {
		switch op.Kind {
		case "Loop":
			if ids, ok := op.Config["operations"].([]any); ok {
				for _, raw := range ids {
					if id, ok := raw.(string); ok {
						consumed[id] = true
					}
				}
			}
		case "Conditional":
			for _, branch := range []string{"ifTrue", "ifFalse"} {
				if id, ok := op.Config[branch].(string); ok && id != "" {
					consumed[id] = true
				}
			}
		}
	}
	return consumed
}

func (e *Engine) checkDeadline(ctx context.Context, exec *execution) *responses.Error {
	if ctx.Err() != nil || time.Now().After(exec.deadline) {
		exec.logger.Warn("execution deadline exceeded")
		terminal := responses.Normalize(
			responses.NewExecutionError("execution exceeded the maximum allowed time", ""), "")
		return terminal
	}
	return nil
}

// dispatch runs one operation through the full pipeline. A non-nil return
// terminates the whole execution.
func (e *Engine) dispatch(ctx context.Context, exec *execution, op *workflow.Operation) *responses.Error {
	// Dependency containment: inputs produced by failed operations fail
	// this operation without running it.
	for _, path := range op.InputPaths() {
		if dep := workflow.DependencyID(path); dep != "" {
			if depErr, failed := exec.failed[dep]; failed {
				e.failOperation(exec, op, responses.NewDataError(
					fmt.Sprintf("input %s is unavailable: operation %q failed (%s)", path, dep, depErr.Category), path))
				return nil
			}
		}
	}

	resolved := resolveConfig(op, exec.data)

	// Journal.Record redacts sensitive config fields before writing.
	e.Journal.Record(audit.Event{
		EventType:   audit.EventOperationStarted,
		ExecutionID: exec.id,
		AgentID:     exec.agentID,
		WorkflowID:  exec.wf.ID,
		OperationID: op.ID,
		Details:     map[string]any{"kind": op.Kind, "config": resolved},
	})

	// Cache lookup for cacheable kinds.
	key := cache.Fingerprint(op.Kind, resolved)
	if e.Cache.TTLFor(op.Kind) > 0 {
		if value, ok := e.Cache.Get(key); ok {
			exec.logger.Debug("cache hit", "operation_id", op.ID, "kind", op.Kind)
			e.completeOperation(exec, op, value, true)
			return nil
		}
	}

	// Rate limiting applies to outbound API calls.
	if op.Kind == "ApiCall" {
		decision, err := e.Limiter.AllowAPICall(ctx, exec.agentID)
		if err != nil {
			return responses.Normalize(err, op.ID)
		}
		if !decision.Allowed {
			retryAfter := int(decision.RetryAfter.Seconds()) + 1
			exec.logger.Warn("api call refused by rate limiter",
				"operation_id", op.ID, "scope", decision.Scope, "retry_after_s", retryAfter)
			terminal := responses.NewRateLimitError(
				fmt.Sprintf("API call budget exhausted (%s window)", decision.Scope), retryAfter)
			terminal.OperationID = op.ID
			e.failOperation(exec, op, terminal)
			return terminal
		}
	}

	value, err := e.run(ctx, exec, op, resolved)
	if err != nil {
		e.failOperation(exec, op, responses.Normalize(err, op.ID))
		return nil
	}

	if e.Cache.TTLFor(op.Kind) > 0 {
		e.Cache.Put(key, op.ID, op.Kind, value)
	}
	e.completeOperation(exec, op, value, false)
	return nil
}

// run executes the operation body. Handlers receive the resolved config.
func (e *Engine) run(ctx context.Context, exec *execution, op *workflow.Operation, cfg map[string]any) (any, error) {
	switch op.Kind {
	case "ApiCall":
		return e.runAPICall(ctx, exec, op, cfg)
	case "FilterData":
		return runFilterData(exec, cfg)
	case "TransformData":
		return runTransformData(exec, cfg)
	case "StoreData":
		return e.runStoreData(ctx, exec, cfg)
	case "MergeData":
		return runMergeData(exec, cfg)
	case "Conditional":
		return e.runConditional(ctx, exec, op, cfg)
	case "Loop":
		return e.runLoop(ctx, exec, op, cfg)
	case "Wait":
		return runWait(ctx, cfg)
	case "GetCurrentDateTime":
		return runGetCurrentDateTime(cfg)
	case "ConvertTimezone":
		return runConvertTimezone(exec, cfg)
	case "DateCalculation":
		return runDateCalculation(exec, cfg)
	case "FormatText":
		return runFormatText(exec, cfg)
	case "ExtractText":
		return runExtractText(exec, cfg)
	case "ValidateData":
		return runValidateData(exec, cfg)
	case "Calculate":
		return runCalculate(exec, cfg)
	case "EncodeDecode":
		return runEncodeDecode(exec, cfg)
	case "GetCapabilities":
		return e.runGetCapabilities(ctx, exec)
	default:
		return nil, responses.NewValidationError(fmt.Sprintf("unsupported operation type %q", op.Kind), "operation")
	}
}

func (e *Engine) completeOperation(exec *execution, op *workflow.Operation, value any, cached bool) {
	exec.results[op.ID] = value
	if out := op.OutputPath(); out != "" {
		if err := exec.data.Set(out, value); err != nil {
			exec.logger.Warn("writing output path failed", "operation_id", op.ID, "path", out, "error", err)
		}
	} else {
		// Results are always addressable by operation id.
		_ = exec.data.Set("/workflow/"+op.ID, value)
	}

	exec.logger.Info("operation completed", "operation_id", op.ID, "kind", op.Kind, "cached", cached)
	e.Journal.Record(audit.Event{
		EventType:   audit.EventOperationCompleted,
		ExecutionID: exec.id,
		AgentID:     exec.agentID,
		WorkflowID:  exec.wf.ID,
		OperationID: op.ID,
		Details:     map[string]any{"kind": op.Kind, "cached": cached, "result": value},
	})
}

func (e *Engine) failOperation(exec *execution, op *workflow.Operation, failure *responses.Error) {
	exec.failed[op.ID] = failure
	exec.logger.Warn("operation failed",
		"operation_id", op.ID, "kind", op.Kind, "category", string(failure.Category), "error", failure.Message)
	e.Journal.Record(audit.Event{
		EventType:   audit.EventOperationFailed,
		ExecutionID: exec.id,
		AgentID:     exec.agentID,
		WorkflowID:  exec.wf.ID,
		OperationID: op.ID,
		Status:      string(failure.Category),
		Details:     map[string]any{"kind": op.Kind, "message": failure.Message},
	})
}

// resolveConfig expands templates and path references in every config field
// except flow-control targets, which stay literal.
func resolveConfig(op *workflow.Operation, data *workflow.DataModel) map[string]any {
	literal := map[string]bool{}
	switch op.Kind {
	case "Conditional":
		literal["ifTrue"] = true
		literal["ifFalse"] = true
		literal["inputPath"] = true
	case "Loop":
		literal["operations"] = true
		literal["inputPath"] = true
		literal["itemPath"] = true
		literal["outputPath"] = true
	}
	// Paths the handler dereferences itself stay literal too.
	for _, key := range []string{"inputPath", "inputPaths", "outputPath"} {
		literal[key] = true
	}

	out := make(map[string]any, len(op.Config))
	for k, v := range op.Config {
		if literal[k] {
			out[k] = v
			continue
		}
		out[k] = workflow.ResolveValue(v, data)
	}
	return out
}

// input fetches a required data-model value for a handler.
func (exec *execution) input(cfg map[string]any) (any, error) {
	path, _ := cfg["inputPath"].(string)
	if path == "" {
		return nil, responses.NewValidationError("inputPath is required", "inputPath")
	}
	v, ok := exec.data.Get(path)
	if !ok {
		return nil, responses.NewDataError(fmt.Sprintf("no value at path %s", path), path)
	}
	return v, nil
}

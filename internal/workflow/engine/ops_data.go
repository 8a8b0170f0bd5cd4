// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/a2e-project/a2e/internal/responses"
	"github.com/a2e-project/a2e/internal/workflow"
)

func runFilterData(exec *execution, cfg map[string]any) (any, error) {
	input, err := exec.input(cfg)
	if err != nil {
		return nil, err
	}
	items, ok := input.([]any)
	if !ok {
		return nil, responses.NewDataError("FilterData input is not an array", cfg["inputPath"].(string))
	}

	conditions, _ := cfg["conditions"].([]any)
	var kept []any
	for _, item := range items {
		if matchesAll(item, conditions) {
			kept = append(kept, item)
		}
	}
	if kept == nil {
		kept = []any{}
	}
	return kept, nil
}

func matchesAll(item any, conditions []any) bool {
	obj, _ := item.(map[string]any)
	for _, raw := range conditions {
		cond, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		field, _ := cond["field"].(string)
		operator, _ := cond["operator"].(string)
		left, present := obj[field]
		// An absent field never matches.
		if !present {
			return false
		}
		if !compare(left, operator, cond["value"]) {
			return false
		}
	}
	return true
}

// compare implements the condition operators. When both sides parse as
// numbers the comparison is numeric; otherwise strings compare lexically
// and contains checks substrings or array membership.
func compare(left any, operator string, right any) bool {
	if ln, lok := numberValue(left); lok {
		if rn, rok := numberValue(right); rok {
			switch operator {
			case "==":
				return ln == rn
			case "!=":
				return ln != rn
			case ">":
				return ln > rn
			case "<":
				return ln < rn
			case ">=":
				return ln >= rn
			case "<=":
				return ln <= rn
			}
		}
	}
	if ls, ok := left.(string); ok {
		if ln, err := strconv.ParseFloat(ls, 64); err == nil {
			if rn, rok := numberValue(right); rok {
				switch operator {
				case "==":
					return ln == rn
				case "!=":
					return ln != rn
				case ">":
					return ln > rn
				case "<":
					return ln < rn
				case ">=":
					return ln >= rn
				case "<=":
					return ln <= rn
				}
			}
		}
	}

	switch operator {
	case "==":
		return fmt.Sprintf("%v", left) == fmt.Sprintf("%v", right)
	case "!=":
		return fmt.Sprintf("%v", left) != fmt.Sprintf("%v", right)
	case ">":
		return fmt.Sprintf("%v", left) > fmt.Sprintf("%v", right)
	case "<":
		return fmt.Sprintf("%v", left) < fmt.Sprintf("%v", right)
	case ">=":
		return fmt.Sprintf("%v", left) >= fmt.Sprintf("%v", right)
	case "<=":
		return fmt.Sprintf("%v", left) <= fmt.Sprintf("%v", right)
	case "contains":
		switch l := left.(type) {
		case string:
			return strings.Contains(l, fmt.Sprintf("%v", right))
		case []any:
			for _, e := range l {
				if fmt.Sprintf("%v", e) == fmt.Sprintf("%v", right) {
					return true
				}
			}
		}
	}
	return false
}

func runTransformData(exec *execution, cfg map[string]any) (any, error) {
	input, err := exec.input(cfg)
	if err != nil {
		return nil, err
	}
	items, ok := input.([]any)
	if !ok {
		return nil, responses.NewDataError("TransformData input is not an array", cfg["inputPath"].(string))
	}

	transform, _ := cfg["transform"].(string)
	field, _ := cfg["field"].(string)

	switch transform {
	case "map":
		out := make([]any, 0, len(items))
		for _, item := range items {
			if obj, ok := item.(map[string]any); ok {
				out = append(out, obj[field])
			} else {
				out = append(out, item)
			}
		}
		return out, nil

	case "sort":
		order, _ := cfg["order"].(string)
		desc := strings.EqualFold(order, "desc")
		out := append([]any{}, items...)
		sort.SliceStable(out, func(i, j int) bool {
			less := lessValue(fieldOf(out[i], field), fieldOf(out[j], field))
			if desc {
				return !less
			}
			return less
		})
		return out, nil

	case "reduce":
		expression, _ := cfg["expression"].(string)
		return reduceItems(items, field, expression)

	default:
		return nil, responses.NewValidationError(
			fmt.Sprintf("unknown transform %q", transform), "transform")
	}
}

func fieldOf(item any, field string) any {
	if field == "" {
		return item
	}
	if obj, ok := item.(map[string]any); ok {
		return obj[field]
	}
	return item
}

func lessValue(a, b any) bool {
	if an, aok := numberValue(a); aok {
		if bn, bok := numberValue(b); bok {
			return an < bn
		}
	}
	return fmt.Sprintf("%v", a) < fmt.Sprintf("%v", b)
}

func reduceItems(items []any, field, expression string) (any, error) {
	switch expression {
	case "count":
		return len(items), nil
	case "sum", "average", "min", "max":
		var nums []float64
		for _, item := range items {
			if n, ok := numberValue(fieldOf(item, field)); ok {
				nums = append(nums, n)
			}
		}
		if len(nums) == 0 {
			if expression == "sum" {
				return float64(0), nil
			}
			return nil, responses.NewDataError("reduce input has no numeric values", "")
		}
		agg := nums[0]
		for _, n := range nums[1:] {
			switch expression {
			case "sum", "average":
				agg += n
			case "min":
				if n < agg {
					agg = n
				}
			case "max":
				if n > agg {
					agg = n
				}
			}
		}
		if expression == "average" {
			agg /= float64(len(nums))
		}
		return agg, nil
	default:
		return nil, responses.NewValidationError(
			fmt.Sprintf("unknown reduce expression %q", expression), "expression")
	}
}

func (e *Engine) runStoreData(ctx context.Context, exec *execution, cfg map[string]any) (any, error) {
	if e.Store == nil {
		return nil, responses.NewExecutionError("no storage backend is configured", "")
	}
	input, err := exec.input(cfg)
	if err != nil {
		return nil, err
	}
	storage, _ := cfg["storage"].(string)
	if storage == "" {
		storage = "default"
	}
	key, _ := cfg["key"].(string)
	if key == "" {
		return nil, responses.NewValidationError("key is required", "key")
	}
	if err := e.Store.Put(ctx, storage, key, input); err != nil {
		return nil, responses.NewExecutionError(fmt.Sprintf("storing value failed: %v", err), "")
	}
	return map[string]any{"stored": true, "storage": storage, "key": key}, nil
}

func runMergeData(exec *execution, cfg map[string]any) (any, error) {
	rawPaths, _ := cfg["inputPaths"].([]any)
	if len(rawPaths) == 0 {
		return nil, responses.NewValidationError("inputPaths is required", "inputPaths")
	}
	mode, _ := cfg["mode"].(string)
	if mode == "" {
		mode = "object"
	}
	keys, _ := cfg["keys"].([]any)

	switch mode {
	case "array":
		var out []any
		for _, raw := range rawPaths {
			path, _ := raw.(string)
			v, ok := exec.data.Get(path)
			if !ok {
				return nil, responses.NewDataError(fmt.Sprintf("no value at path %s", path), path)
			}
			if arr, isArr := v.([]any); isArr {
				out = append(out, arr...)
			} else {
				out = append(out, v)
			}
		}
		return out, nil

	case "object":
		out := map[string]any{}
		for i, raw := range rawPaths {
			path, _ := raw.(string)
			v, ok := exec.data.Get(path)
			if !ok {
				return nil, responses.NewDataError(fmt.Sprintf("no value at path %s", path), path)
			}
			key := ""
			if i < len(keys) {
				key, _ = keys[i].(string)
			}
			if key == "" {
				if dep := workflow.DependencyID(path); dep != "" {
					key = dep
				} else {
					segs := strings.Split(strings.Trim(path, "/"), "/")
					key = segs[len(segs)-1]
				}
			}
			out[key] = v
		}
		return out, nil

	default:
		return nil, responses.NewValidationError(fmt.Sprintf("unknown merge mode %q", mode), "mode")
	}
}

func (e *Engine) runConditional(ctx context.Context, exec *execution, op *workflow.Operation, cfg map[string]any) (any, error) {
	var left any
	if path, ok := cfg["inputPath"].(string); ok && path != "" {
		v, found := exec.data.Get(path)
		if !found {
			return nil, responses.NewDataError(fmt.Sprintf("no value at path %s", path), path)
		}
		left = v
	} else {
		left = cfg["left"]
	}

	operator, _ := cfg["operator"].(string)
	if operator == "" {
		operator = "=="
	}
	holds := compare(left, operator, cfg["value"])

	branch := ""
	if holds {
		branch, _ = cfg["ifTrue"].(string)
	} else {
		branch, _ = cfg["ifFalse"].(string)
	}

	result := map[string]any{"condition": holds, "value": left}
	if branch == "" {
		return result, nil
	}
	target, ok := exec.wf.ByID[branch]
	if !ok {
		return nil, responses.NewValidationError(
			fmt.Sprintf("conditional branch references unknown operation %q", branch), "ifTrue")
	}

	// The chosen branch runs inline; its result is recorded under its own
	// operation id like any other.
	if terminal := e.dispatch(ctx, exec, target); terminal != nil {
		return nil, terminal
	}
	result["executed"] = branch
	return result, nil
}

func (e *Engine) runLoop(ctx context.Context, exec *execution, op *workflow.Operation, cfg map[string]any) (any, error) {
	input, err := exec.input(cfg)
	if err != nil {
		return nil, err
	}
	items, ok := input.([]any)
	if !ok {
		return nil, responses.NewDataError("Loop input is not an array", cfg["inputPath"].(string))
	}

	maxIter, ok := numberValue(cfg["maxIterations"])
	if !ok || maxIter <= 0 {
		return nil, responses.NewValidationError("maxIterations must be a positive number", "maxIterations")
	}
	if float64(len(items)) < maxIter {
		maxIter = float64(len(items))
	}

	itemPath, _ := cfg["itemPath"].(string)
	if itemPath == "" {
		itemPath = "/loop/item"
	}
	rawOps, _ := cfg["operations"].([]any)
	if len(rawOps) == 0 {
		return nil, responses.NewValidationError("operations is required", "operations")
	}

	var iterations []any
	for i := 0; i < int(maxIter); i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		_ = exec.data.Set(itemPath, items[i])
		_ = exec.data.Set("/loop/index", i)

		iteration := map[string]any{}
		for _, raw := range rawOps {
			id, _ := raw.(string)
			target, ok := exec.wf.ByID[id]
			if !ok {
				return nil, responses.NewValidationError(
					fmt.Sprintf("loop references unknown operation %q", id), "operations")
			}
			delete(exec.failed, id) // each iteration gets a fresh attempt
			if terminal := e.dispatch(ctx, exec, target); terminal != nil {
				return nil, terminal
			}
			if failure, failed := exec.failed[id]; failed {
				iteration[id] = map[string]any{"error": failure.Message}
				continue
			}
			iteration[id] = exec.results[id]
		}
		iterations = append(iterations, iteration)
	}
	if iterations == nil {
		iterations = []any{}
	}
	return iterations, nil
}

func runWait(ctx context.Context, cfg map[string]any) (any, error) {
	ms, ok := numberValue(cfg["duration"])
	if !ok || ms < 0 {
		return nil, responses.NewValidationError("duration must be a non-negative number", "duration")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Duration(ms) * time.Millisecond):
	}
	return map[string]any{"waited": ms}, nil
}

func (e *Engine) runGetCapabilities(ctx context.Context, exec *execution) (any, error) {
	if e.Capabilities == nil {
		return nil, responses.NewExecutionError("capability discovery is not configured", "")
	}
	caps, err := e.Capabilities(ctx, exec.agentID)
	if err != nil {
		return nil, responses.NewExecutionError(fmt.Sprintf("capability discovery failed: %v", err), "")
	}
	return caps, nil
}

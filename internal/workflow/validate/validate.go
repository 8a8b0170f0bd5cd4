// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

// Package validate inspects a parsed workflow before execution: structure,
// operation references, API-call targets, credential authorization, loop
// bounds, and dependency cycles.
package validate

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/a2e-project/a2e/internal/agentauth"
	"github.com/a2e-project/a2e/internal/registry"
	"github.com/a2e-project/a2e/internal/vault"
	"github.com/a2e-project/a2e/internal/workflow"
)

// Level classifies a diagnostic.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Diagnostic is one validation finding.
type Diagnostic struct {
	Level       Level  `json:"level"`
	OperationID string `json:"operation_id,omitempty"`
	Message     string `json:"message"`
}

// Report is the outcome of validating one workflow. Valid means no errors;
// warnings never block execution.
type Report struct {
	Valid    bool         `json:"valid"`
	Errors   []Diagnostic `json:"errors"`
	Warnings []Diagnostic `json:"warnings"`
}

// Mode selects how pedantic validation is. Strict promotes warnings to
// errors, moderate reports warnings without blocking, and lenient drops
// them entirely.
type Mode string

const (
	ModeStrict   Mode = "strict"
	ModeModerate Mode = "moderate"
	ModeLenient  Mode = "lenient"
)

// ParseMode maps a request parameter onto a Mode, defaulting to moderate.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeStrict, ModeModerate, ModeLenient:
		return Mode(s)
	default:
		return ModeModerate
	}
}

// Validator checks workflows against the capability surface and the
// requesting agent's authorization.
type Validator struct {
	registry *registry.Registry
	auth     *agentauth.Service
	vault    *vault.Vault
	// MaxOperations bounds workflow size; 0 means unbounded.
	MaxOperations int
}

// New creates a validator over the capability surface.
func New(reg *registry.Registry, auth *agentauth.Service, v *vault.Vault, maxOperations int) *Validator {
	return &Validator{registry: reg, auth: auth, vault: v, MaxOperations: maxOperations}
}

// Validate runs every check family against the workflow on behalf of the
// agent.
func (v *Validator) Validate(wf *workflow.Workflow, agentID string, mode Mode) Report {
	var errs, warns []Diagnostic
	addErr := func(opID, format string, args ...any) {
		errs = append(errs, Diagnostic{Level: LevelError, OperationID: opID, Message: fmt.Sprintf(format, args...)})
	}
	addWarn := func(opID, format string, args ...any) {
		warns = append(warns, Diagnostic{Level: LevelWarning, OperationID: opID, Message: fmt.Sprintf(format, args...)})
	}

	if len(wf.Operations) == 0 {
		addErr("", "workflow has no operations")
	}
	if v.MaxOperations > 0 && len(wf.Operations) > v.MaxOperations {
		addErr("", "workflow exceeds the maximum of %d operations", v.MaxOperations)
	}
	for _, id := range wf.DuplicateIDs {
		addErr(id, "Duplicate operation ID: %s", id)
	}
	if wf.Root == "" {
		addErr("", "workflow designates no root operation")
	} else if _, ok := wf.ByID[wf.Root]; !ok {
		addErr("", "root operation %q does not exist", wf.Root)
	}

	for _, op := range wf.Operations {
		v.checkOperation(wf, op, agentID, addErr, addWarn)
	}

	if cycle := findCycle(wf); len(cycle) > 0 {
		addErr(cycle[0], "Circular dependency detected: %s", strings.Join(cycle, " -> "))
	}

	switch mode {
	case ModeStrict:
		for _, w := range warns {
			w.Level = LevelError
			errs = append(errs, w)
		}
		warns = nil
	case ModeLenient:
		warns = nil
	}

	return Report{Valid: len(errs) == 0, Errors: errs, Warnings: warns}
}

func (v *Validator) checkOperation(wf *workflow.Workflow, op *workflow.Operation, agentID string, addErr, addWarn func(string, string, ...any)) {
	if !registry.IsSupportedKind(op.Kind) {
		addErr(op.ID, "Unknown operation type: %s", op.Kind)
		return
	}
	if !v.auth.CanUseOperation(agentID, op.Kind) {
		addErr(op.ID, "Agent is not authorized to use operation %q", op.Kind)
	}

	for _, path := range op.InputPaths() {
		if dep := workflow.DependencyID(path); dep != "" {
			if _, ok := wf.ByID[dep]; !ok {
				addErr(op.ID, "Operation %q references non-existent operation %q", op.ID, dep)
			}
		}
	}

	switch op.Kind {
	case "ApiCall":
		v.checkAPICall(op, agentID, addErr, addWarn)
	case "FilterData":
		checkArrayInput(wf, op, addErr)
	case "Conditional":
		for _, branch := range []string{"ifTrue", "ifFalse"} {
			if target, ok := op.Config[branch].(string); ok && target != "" {
				if _, exists := wf.ByID[target]; !exists {
					addErr(op.ID, "Operation %q references non-existent operation %q", op.ID, target)
				}
			}
		}
	case "Loop":
		maxIter, ok := numberField(op.Config, "maxIterations")
		if !ok || maxIter <= 0 {
			addErr(op.ID, "Loop operation %q requires a positive maxIterations", op.ID)
		}
		ids, _ := op.Config["operations"].([]any)
		if len(ids) == 0 {
			addErr(op.ID, "Loop operation %q has no operations to run", op.ID)
		}
		for _, raw := range ids {
			target, _ := raw.(string)
			if _, exists := wf.ByID[target]; !exists {
				addErr(op.ID, "Operation %q references non-existent operation %q", op.ID, target)
			}
		}
	}
}

func (v *Validator) checkAPICall(op *workflow.Operation, agentID string, addErr, addWarn func(string, string, ...any)) {
	rawURL, _ := op.Config["url"].(string)
	if rawURL == "" {
		addErr(op.ID, "ApiCall operation %q is missing a url", op.ID)
	} else if !strings.Contains(rawURL, "{") {
		// Templated URLs resolve at execution time; only literal ones can
		// be checked against the curated surface here.
		u, err := url.Parse(rawURL)
		if err != nil || u.Host == "" {
			addErr(op.ID, "ApiCall operation %q has an invalid url", op.ID)
		} else if api, ok := v.registry.FindAPIByHost(u.Host); !ok {
			addWarn(op.ID, "URL host %q does not match any registered API", u.Host)
		} else if !v.auth.CanUseAPI(agentID, api.ID) {
			addErr(op.ID, "Agent is not authorized to use API %q", api.ID)
		} else if len(api.Endpoints) > 0 {
			method := "GET"
			if m, ok := op.Config["method"].(string); ok && m != "" {
				method = strings.ToUpper(m)
			}
			if !endpointDefined(api, method, u.Path) {
				addWarn(op.ID, "Endpoint %s %s not found in API %q definition", method, u.Path, api.ID)
			}
		}
	}

	if method, ok := op.Config["method"].(string); ok && method != "" {
		switch strings.ToUpper(method) {
		case "GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS":
		default:
			addErr(op.ID, "ApiCall operation %q has an invalid method %q", op.ID, method)
		}
	}

	if _, present := op.Config["credentialRef"]; present {
		credID, ok := vault.CredentialRef(op.Config)
		if !ok {
			addErr(op.ID, "ApiCall operation %q has a malformed credentialRef", op.ID)
			return
		}
		if _, err := v.vault.Get(credID); err != nil {
			addWarn(op.ID, "Credential %q is not present in the vault", credID)
		}
		if !v.auth.CanUseCredential(agentID, credID) {
			addErr(op.ID, "Agent is not authorized to use credential %q", credID)
		}
	}
}

// checkArrayInput verifies that an array-consuming operation feeds from a
// producer whose output can be an array. API responses pass since their
// shape is only known at execution time.
func checkArrayInput(wf *workflow.Workflow, op *workflow.Operation, addErr func(string, string, ...any)) {
	for _, path := range op.InputPaths() {
		dep := workflow.DependencyID(path)
		if dep == "" {
			continue
		}
		source, ok := wf.ByID[dep]
		if !ok {
			continue
		}
		switch sourceType := outputType(source); sourceType {
		case "array", "api_response", "unknown":
		default:
			addErr(op.ID, "%s operation %q requires array input, but %q produces %q",
				op.Kind, op.ID, dep, sourceType)
		}
	}
}

// outputType classifies what an operation publishes, as far as that is
// knowable statically.
func outputType(op *workflow.Operation) string {
	switch op.Kind {
	case "ApiCall":
		return "api_response"
	case "FilterData":
		return "array"
	case "TransformData":
		switch op.Config["transform"] {
		case "map", "sort":
			return "array"
		case "reduce":
			return "value"
		}
		return "unknown"
	default:
		return "unknown"
	}
}

// endpointDefined reports whether the API definition lists the method and
// path. Parameterized endpoint segments like {id} match any value.
func endpointDefined(api registry.API, method, path string) bool {
	for _, ep := range api.Endpoints {
		if !strings.EqualFold(ep.Method, method) {
			continue
		}
		if pathMatches(ep.Path, path) {
			return true
		}
	}
	return false
}

func pathMatches(pattern, path string) bool {
	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	cs := strings.Split(strings.Trim(path, "/"), "/")
	if len(ps) != len(cs) {
		return false
	}
	for i := range ps {
		if strings.HasPrefix(ps[i], "{") && strings.HasSuffix(ps[i], "}") {
			continue
		}
		if ps[i] != cs[i] {
			return false
		}
	}
	return true
}

// findCycle walks the data-dependency graph (input paths only; control
// edges from Conditional and Loop legitimately point back at consumers of
// their output) and returns a cycle's member ids when one exists.
func findCycle(wf *workflow.Workflow) []string {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := map[string]int{}
	var cycle []string

	var visit func(id string, stack []string) bool
	visit = func(id string, stack []string) bool {
		switch state[id] {
		case visiting:
			cycle = append([]string{}, append(stack, id)...)
			return true
		case done:
			return false
		}
		state[id] = visiting
		if op := wf.ByID[id]; op != nil {
			for _, path := range op.InputPaths() {
				dep := workflow.DependencyID(path)
				if dep == "" {
					continue
				}
				if _, ok := wf.ByID[dep]; !ok {
					continue
				}
				if visit(dep, append(stack, id)) {
					return true
				}
			}
		}
		state[id] = done
		return false
	}

	for _, op := range wf.Operations {
		if state[op.ID] == unvisited && visit(op.ID, nil) {
			return cycle
		}
	}
	return nil
}

func numberField(config map[string]any, key string) (float64, bool) {
	switch t := config[key].(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package validate

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2e-project/a2e/internal/agentauth"
	"github.com/a2e-project/a2e/internal/registry"
	"github.com/a2e-project/a2e/internal/vault"
	"github.com/a2e-project/a2e/internal/workflow"
)

type fixture struct {
	validator *Validator
	auth      *agentauth.Service
	agentID   string
	scopedID  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	reg, err := registry.New(registry.Config{
		APIPath: filepath.Join(dir, "apis.json"),
		SQLPath: filepath.Join(dir, "sql.json"),
	}, nil, logger)
	require.NoError(t, err)
	require.NoError(t, reg.AddAPI(context.Background(), registry.API{
		ID: "weather-api", BaseURL: "https://api.weather.example.com",
	}))

	authCfg := agentauth.Defaults()
	authCfg.Path = filepath.Join(dir, "agents.json")
	auth, err := agentauth.New(authCfg, "signing-key", logger)
	require.NoError(t, err)
	_, err = auth.Register("agent-open", "", nil, nil, nil, nil)
	require.NoError(t, err)
	_, err = auth.Register("agent-scoped", "", []string{"other-api"}, []string{"other-cred"}, nil, nil)
	require.NoError(t, err)

	v, err := vault.New(filepath.Join(dir, "creds.json"), "master", logger)
	require.NoError(t, err)
	require.NoError(t, v.Store(vault.Credential{
		ID: "weather-key", Kind: vault.KindAPIKey,
		Data: map[string]string{"key": "k"},
	}))

	return &fixture{
		validator: New(reg, auth, v, 100),
		auth:      auth,
		agentID:   "agent-open",
		scopedID:  "agent-scoped",
	}
}

func parse(t *testing.T, lines ...string) *workflow.Workflow {
	t.Helper()
	wf, err := workflow.Parse(strings.Join(lines, "\n"))
	require.NoError(t, err)
	return wf
}

func TestValidWorkflow(t *testing.T) {
	f := newFixture(t)
	wf := parse(t,
		`{"operationUpdate":{"workflowId":"wf","operations":[{"id":"fetch","operation":{"ApiCall":{"method":"GET","url":"https://api.weather.example.com/current","credentialRef":"weather-key","outputPath":"/workflow/fetch"}}},{"id":"filter","operation":{"FilterData":{"inputPath":"/workflow/fetch","conditions":[],"outputPath":"/workflow/filter"}}}]}}`,
		`{"beginExecution":{"workflowId":"wf","root":"fetch"}}`,
	)

	report := f.validator.Validate(wf, f.agentID, ModeModerate)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Errors)
}

func TestEmptyAndMissingRoot(t *testing.T) {
	f := newFixture(t)

	report := f.validator.Validate(&workflow.Workflow{ByID: map[string]*workflow.Operation{}}, f.agentID, ModeModerate)
	require.False(t, report.Valid)

	wf := parse(t,
		`{"operationUpdate":{"workflowId":"wf","operations":[{"id":"a","operation":{"Wait":{"duration":10}}}]}}`,
		`{"beginExecution":{"workflowId":"wf","root":"missing"}}`,
	)
	report = f.validator.Validate(wf, f.agentID, ModeModerate)
	require.False(t, report.Valid)
	assert.Contains(t, report.Errors[0].Message, "root operation")
}

func TestDuplicateOperationID(t *testing.T) {
	f := newFixture(t)
	wf := parse(t,
		`{"operationUpdate":{"workflowId":"wf","operations":[{"id":"a","operation":{"Wait":{"duration":10}}},{"id":"a","operation":{"Wait":{"duration":20}}}]}}`,
		`{"beginExecution":{"workflowId":"wf","root":"a"}}`,
	)
	report := f.validator.Validate(wf, f.agentID, ModeModerate)
	require.False(t, report.Valid)

	found := false
	for _, d := range report.Errors {
		if d.Message == "Duplicate operation ID: a" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestUnknownOperationType(t *testing.T) {
	f := newFixture(t)
	wf := parse(t,
		`{"operationUpdate":{"workflowId":"wf","operations":[{"id":"a","operation":{"LaunchRockets":{}}}]}}`,
		`{"beginExecution":{"workflowId":"wf","root":"a"}}`,
	)
	report := f.validator.Validate(wf, f.agentID, ModeModerate)
	require.False(t, report.Valid)
	assert.Contains(t, report.Errors[0].Message, "Unknown operation type: LaunchRockets")
}

func TestDanglingReference(t *testing.T) {
	f := newFixture(t)
	wf := parse(t,
		`{"operationUpdate":{"workflowId":"wf","operations":[{"id":"filter","operation":{"FilterData":{"inputPath":"/workflow/ghost","outputPath":"/workflow/filter"}}}]}}`,
		`{"beginExecution":{"workflowId":"wf","root":"filter"}}`,
	)
	report := f.validator.Validate(wf, f.agentID, ModeModerate)
	require.False(t, report.Valid)
	assert.Contains(t, report.Errors[0].Message, "references non-existent operation")
}

func TestAPICallChecks(t *testing.T) {
	f := newFixture(t)

	// Missing url is an error.
	wf := parse(t,
		`{"operationUpdate":{"workflowId":"wf","operations":[{"id":"a","operation":{"ApiCall":{"method":"GET"}}}]}}`,
		`{"beginExecution":{"workflowId":"wf","root":"a"}}`,
	)
	report := f.validator.Validate(wf, f.agentID, ModeModerate)
	assert.False(t, report.Valid)

	// Unregistered host is only a warning in moderate mode.
	wf = parse(t,
		`{"operationUpdate":{"workflowId":"wf","operations":[{"id":"a","operation":{"ApiCall":{"method":"GET","url":"https://unknown.example.com/x"}}}]}}`,
		`{"beginExecution":{"workflowId":"wf","root":"a"}}`,
	)
	report = f.validator.Validate(wf, f.agentID, ModeModerate)
	assert.True(t, report.Valid)
	assert.NotEmpty(t, report.Warnings)

	// ... an error in strict mode, and dropped entirely in lenient mode.
	report = f.validator.Validate(wf, f.agentID, ModeStrict)
	assert.False(t, report.Valid)
	assert.Empty(t, report.Warnings)

	report = f.validator.Validate(wf, f.agentID, ModeLenient)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Warnings)

	// Invalid method.
	wf = parse(t,
		`{"operationUpdate":{"workflowId":"wf","operations":[{"id":"a","operation":{"ApiCall":{"method":"YEET","url":"https://api.weather.example.com/x"}}}]}}`,
		`{"beginExecution":{"workflowId":"wf","root":"a"}}`,
	)
	report = f.validator.Validate(wf, f.agentID, ModeModerate)
	assert.False(t, report.Valid)
}

func TestAuthorizationChecks(t *testing.T) {
	f := newFixture(t)
	wf := parse(t,
		`{"operationUpdate":{"workflowId":"wf","operations":[{"id":"a","operation":{"ApiCall":{"method":"GET","url":"https://api.weather.example.com/x","credentialRef":"weather-key"}}}]}}`,
		`{"beginExecution":{"workflowId":"wf","root":"a"}}`,
	)

	// The open agent passes; the scoped agent is denied both API and
	// credential.
	assert.True(t, f.validator.Validate(wf, f.agentID, ModeModerate).Valid)

	report := f.validator.Validate(wf, f.scopedID, ModeModerate)
	require.False(t, report.Valid)
	msgs := make([]string, 0, len(report.Errors))
	for _, d := range report.Errors {
		msgs = append(msgs, d.Message)
	}
	joined := strings.Join(msgs, "; ")
	assert.Contains(t, joined, "not authorized to use API")
	assert.Contains(t, joined, "not authorized to use credential")
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeStrict, ParseMode("strict"))
	assert.Equal(t, ModeLenient, ParseMode("lenient"))
	assert.Equal(t, ModeModerate, ParseMode(""))
	assert.Equal(t, ModeModerate, ParseMode("bogus"))
}

func TestOperationKindAuthorization(t *testing.T) {
	f := newFixture(t)
	_, err := f.auth.Register("agent-readonly", "", nil, nil, []string{"FormatText", "Wait"}, nil)
	require.NoError(t, err)

	wf := parse(t,
		`{"operationUpdate":{"workflowId":"wf","operations":[{"id":"save","operation":{"StoreData":{"inputPath":"/input/x","storage":"scratch","key":"k"}}}]}}`,
		`{"beginExecution":{"workflowId":"wf","root":"save"}}`,
	)

	assert.True(t, f.validator.Validate(wf, f.agentID, ModeModerate).Valid)

	report := f.validator.Validate(wf, "agent-readonly", ModeModerate)
	require.False(t, report.Valid)
	assert.Contains(t, report.Errors[0].Message, `not authorized to use operation "StoreData"`)
}

func TestFilterRequiresArrayProducer(t *testing.T) {
	f := newFixture(t)
	wf := parse(t,
		`{"operationUpdate":{"workflowId":"wf","operations":[`+
			`{"id":"total","operation":{"TransformData":{"inputPath":"/input/items","transform":"reduce","expression":"sum","field":"n","outputPath":"/workflow/total"}}},`+
			`{"id":"narrow","operation":{"FilterData":{"inputPath":"/workflow/total","conditions":[],"outputPath":"/workflow/narrow"}}}]}}`,
		`{"beginExecution":{"workflowId":"wf","root":"total"}}`,
	)

	report := f.validator.Validate(wf, f.agentID, ModeModerate)
	require.False(t, report.Valid)
	assert.Contains(t, report.Errors[0].Message, `requires array input, but "total" produces "value"`)
}

func TestEndpointDefinitionWarning(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.validator.registry.AddAPI(context.Background(), registry.API{
		ID: "github-api", BaseURL: "https://api.github.example.com",
		Endpoints: []registry.Endpoint{
			{Method: "GET", Path: "/users/{id}"},
			{Method: "POST", Path: "/repos"},
		},
	}))

	// A listed endpoint, with a parameterized segment, passes.
	wf := parse(t,
		`{"operationUpdate":{"workflowId":"wf","operations":[{"id":"a","operation":{"ApiCall":{"method":"GET","url":"https://api.github.example.com/users/42"}}}]}}`,
		`{"beginExecution":{"workflowId":"wf","root":"a"}}`,
	)
	report := f.validator.Validate(wf, f.agentID, ModeModerate)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Warnings)

	// An unlisted one warns.
	wf = parse(t,
		`{"operationUpdate":{"workflowId":"wf","operations":[{"id":"a","operation":{"ApiCall":{"method":"DELETE","url":"https://api.github.example.com/repos"}}}]}}`,
		`{"beginExecution":{"workflowId":"wf","root":"a"}}`,
	)
	report = f.validator.Validate(wf, f.agentID, ModeModerate)
	assert.True(t, report.Valid)
	require.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[0].Message, `Endpoint DELETE /repos not found in API "github-api" definition`)
}

func TestLoopChecks(t *testing.T) {
	f := newFixture(t)

	// No maxIterations is an error.
	wf := parse(t,
		`{"operationUpdate":{"workflowId":"wf","operations":[{"id":"body","operation":{"Wait":{"duration":1}}},{"id":"loop","operation":{"Loop":{"inputPath":"/input/items","operations":["body"],"outputPath":"/workflow/loop"}}}]}}`,
		`{"beginExecution":{"workflowId":"wf","root":"loop"}}`,
	)
	report := f.validator.Validate(wf, f.agentID, ModeModerate)
	require.False(t, report.Valid)
	assert.Contains(t, report.Errors[0].Message, "maxIterations")

	// Unknown body operation.
	wf = parse(t,
		`{"operationUpdate":{"workflowId":"wf","operations":[{"id":"loop","operation":{"Loop":{"inputPath":"/input/items","operations":["ghost"],"maxIterations":10}}}]}}`,
		`{"beginExecution":{"workflowId":"wf","root":"loop"}}`,
	)
	report = f.validator.Validate(wf, f.agentID, ModeModerate)
	require.False(t, report.Valid)
}

func TestCycleDetection(t *testing.T) {
	f := newFixture(t)
	wf := parse(t,
		`{"operationUpdate":{"workflowId":"wf","operations":[{"id":"a","operation":{"FilterData":{"inputPath":"/workflow/b","outputPath":"/workflow/a"}}},{"id":"b","operation":{"FilterData":{"inputPath":"/workflow/a","outputPath":"/workflow/b"}}}]}}`,
		`{"beginExecution":{"workflowId":"wf","root":"a"}}`,
	)
	report := f.validator.Validate(wf, f.agentID, ModeModerate)
	require.False(t, report.Valid)

	found := false
	for _, d := range report.Errors {
		if strings.Contains(d.Message, "Circular dependency detected") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestConditionalBranchBackReferenceIsNotACycle(t *testing.T) {
	f := newFixture(t)
	wf := parse(t,
		`{"operationUpdate":{"workflowId":"wf","operations":[{"id":"check","operation":{"Conditional":{"inputPath":"/input/count","operator":">","value":0,"ifTrue":"notify"}}},{"id":"notify","operation":{"FormatText":{"inputPath":"/workflow/check","format":"upper","outputPath":"/workflow/notify"}}}]}}`,
		`{"beginExecution":{"workflowId":"wf","root":"check"}}`,
	)
	report := f.validator.Validate(wf, f.agentID, ModeModerate)
	assert.True(t, report.Valid, "%v", report.Errors)
}

func TestMaxOperationsLimit(t *testing.T) {
	f := newFixture(t)
	f.validator.MaxOperations = 1
	wf := parse(t,
		`{"operationUpdate":{"workflowId":"wf","operations":[{"id":"a","operation":{"Wait":{"duration":1}}},{"id":"b","operation":{"Wait":{"duration":1}}}]}}`,
		`{"beginExecution":{"workflowId":"wf","root":"a"}}`,
	)
	report := f.validator.Validate(wf, f.agentID, ModeModerate)
	require.False(t, report.Valid)
	assert.Contains(t, report.Errors[0].Message, "maximum of 1 operations")
}

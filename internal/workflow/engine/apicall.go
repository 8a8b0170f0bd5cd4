// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/a2e-project/a2e/internal/audit"
	"github.com/a2e-project/a2e/internal/responses"
	"github.com/a2e-project/a2e/internal/retry"
	"github.com/a2e-project/a2e/internal/vault"
	"github.com/a2e-project/a2e/internal/workflow"
)

const (
	defaultCallTimeout = 30 * time.Second
	maxResponseBody    = 10 << 20 // 10 MiB
	bodyPreviewLen     = 200
)

func (e *Engine) runAPICall(ctx context.Context, exec *execution, op *workflow.Operation, cfg map[string]any) (any, error) {
	rawURL, _ := cfg["url"].(string)
	if rawURL == "" {
		return nil, responses.NewValidationError("url is required", "url")
	}
	method := "GET"
	if m, ok := cfg["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}

	// In-config references resolve first: every credentialRef leaf below
	// the root becomes its rendered secret.
	injected, usedCreds, err := e.Vault.InjectConfig(cfg)
	if err != nil {
		return nil, responses.NewAuthenticationError(
			fmt.Sprintf("credential could not be applied: %v", err))
	}
	cfg = injected

	headers := map[string]string{}
	if raw, ok := cfg["headers"].(map[string]any); ok {
		for k, v := range raw {
			s, ok := v.(string)
			if !ok {
				return nil, responses.NewValidationError(
					fmt.Sprintf("header %q must be a string", k), "headers")
			}
			headers[k] = s
		}
	}

	// A top-level reference injects into headers by kind; vault values win
	// over literals.
	if credID, ok := vault.CredentialRef(cfg); ok {
		withCred, err := e.Vault.Inject(credID, headers)
		if err != nil {
			return nil, responses.NewAuthenticationError(
				fmt.Sprintf("credential %q could not be applied: %v", credID, err))
		}
		headers = withCred
		usedCreds = append(usedCreds, credID)
	}
	for _, credID := range usedCreds {
		e.Journal.Record(audit.Event{
			EventType:   audit.EventCredentialUsed,
			ExecutionID: exec.id,
			AgentID:     exec.agentID,
			WorkflowID:  exec.wf.ID,
			OperationID: op.ID,
			Details:     map[string]any{"credential_id": credID},
		})
	}

	var bodyBytes []byte
	if rawBody, present := cfg["body"]; present && rawBody != nil {
		switch t := rawBody.(type) {
		case string:
			bodyBytes = []byte(t)
		default:
			encoded, err := json.Marshal(t)
			if err != nil {
				return nil, responses.NewValidationError("body is not serializable", "body")
			}
			bodyBytes = encoded
			if _, set := headers["Content-Type"]; !set {
				headers["Content-Type"] = "application/json"
			}
		}
	}

	timeout := defaultCallTimeout
	if ms, ok := numberValue(cfg["timeout"]); ok && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}

	client := e.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	started := time.Now()
	resp, err := retry.Do(ctx, e.Retry, exec.logger, func(ctx context.Context) (apiResponse, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var reqBody io.Reader
		if bodyBytes != nil {
			reqBody = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(callCtx, method, rawURL, reqBody)
		if err != nil {
			return apiResponse{}, responses.NewValidationError(fmt.Sprintf("invalid request: %v", err), "url")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		upstream, err := client.Do(req)
		if err != nil {
			return apiResponse{}, err
		}
		defer upstream.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(upstream.Body, maxResponseBody))
		if err != nil {
			return apiResponse{}, fmt.Errorf("reading response body: %w", err)
		}

		if upstream.StatusCode < 200 || upstream.StatusCode >= 300 {
			preview := string(raw)
			if len(preview) > bodyPreviewLen {
				preview = preview[:bodyPreviewLen]
			}
			return apiResponse{}, &responses.HTTPStatusError{
				StatusCode:  upstream.StatusCode,
				URL:         rawURL,
				BodyPreview: preview,
			}
		}

		var parsed any
		if err := json.Unmarshal(raw, &parsed); err != nil {
			parsed = string(raw)
		}
		return apiResponse{status: upstream.StatusCode, body: parsed}, nil
	})

	e.Journal.Record(audit.Event{
		EventType:   audit.EventAPICall,
		ExecutionID: exec.id,
		AgentID:     exec.agentID,
		WorkflowID:  exec.wf.ID,
		OperationID: op.ID,
		Details: map[string]any{
			"url":         rawURL,
			"method":      method,
			"status":      resp.status,
			"duration_ms": time.Since(started).Milliseconds(),
			"succeeded":   err == nil,
		},
	})
	if err != nil {
		return nil, err
	}
	// The operation's value is the decoded response body.
	return resp.body, nil
}

// apiResponse carries an upstream call's status for auditing alongside the
// decoded body that becomes the operation's value.
type apiResponse struct {
	status int
	body   any
}

func numberValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

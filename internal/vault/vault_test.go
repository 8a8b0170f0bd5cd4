// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T) (*Vault, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	v, err := New(path, "test-master-key", slog.New(slog.NewTextHandler(os.Stderr, nil)))
	require.NoError(t, err)
	return v, path
}

func TestStoreResolveRoundTrip(t *testing.T) {
	v, path := newTestVault(t)

	require.NoError(t, v.Store(Credential{
		ID:          "github-token",
		Kind:        KindBearerToken,
		Description: "GitHub API access",
		Data:        map[string]string{"token": "ghp_secret"},
	}))

	data, err := v.Resolve("github-token")
	require.NoError(t, err)
	assert.Equal(t, "ghp_secret", data["token"])

	// The persisted file never contains the plaintext secret.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "ghp_secret")
}

func TestReopenWithSameKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	v1, err := New(path, "master", logger)
	require.NoError(t, err)
	require.NoError(t, v1.Store(Credential{ID: "c1", Kind: KindAPIKey, Data: map[string]string{"key": "k"}}))

	v2, err := New(path, "master", logger)
	require.NoError(t, err)
	data, err := v2.Resolve("c1")
	require.NoError(t, err)
	assert.Equal(t, "k", data["key"])

	// Wrong master key opens the file but cannot unseal blobs.
	v3, err := New(path, "wrong", logger)
	require.NoError(t, err)
	_, err = v3.Resolve("c1")
	assert.ErrorIs(t, err, ErrSealed)
}

func TestListOmitsSecrets(t *testing.T) {
	v, _ := newTestVault(t)
	require.NoError(t, v.Store(Credential{
		ID:       "weather-key",
		Kind:     KindAPIKey,
		Metadata: map[string]string{"service": "weatherapi"},
		Data:     map[string]string{"key": "super-secret"},
	}))

	infos := v.List()
	require.Len(t, infos, 1)
	raw, err := json.Marshal(infos[0])
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "super-secret")
}

func TestDelete(t *testing.T) {
	v, _ := newTestVault(t)
	require.NoError(t, v.Store(Credential{ID: "c1", Data: map[string]string{"x": "y"}}))
	require.NoError(t, v.Delete("c1"))
	_, err := v.Resolve("c1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, v.Delete("c1"), ErrNotFound)
}

func TestSearchScoring(t *testing.T) {
	v, _ := newTestVault(t)
	require.NoError(t, v.Store(Credential{
		ID: "weather-api-key", Kind: KindAPIKey,
		Description: "weather data provider",
		Data:        map[string]string{"key": "k"},
	}))
	require.NoError(t, v.Store(Credential{
		ID: "github-token", Kind: KindBearerToken,
		Description: "source hosting",
		Metadata:    map[string]string{"service": "weather station uploads"},
		Data:        map[string]string{"token": "t"},
	}))

	hits := v.Search("weather", "", 0)
	require.Len(t, hits, 2)
	// description match (3) + id match (1) outranks metadata match (2)
	assert.Equal(t, "weather-api-key", hits[0].ID)

	hits = v.Search("weather", KindBearerToken, 0)
	require.Len(t, hits, 1)
	assert.Equal(t, "github-token", hits[0].ID)
}

func TestInjectByKind(t *testing.T) {
	v, _ := newTestVault(t)
	require.NoError(t, v.Store(Credential{
		ID: "apikey", Kind: KindAPIKey,
		Metadata: map[string]string{"header": "X-Custom-Key"},
		Data:     map[string]string{"key": "k123"},
	}))
	require.NoError(t, v.Store(Credential{
		ID: "bearer", Kind: KindBearerToken,
		Data: map[string]string{"token": "t456"},
	}))
	require.NoError(t, v.Store(Credential{
		ID: "basic", Kind: KindBasicAuth,
		Data: map[string]string{"username": "ada", "password": "pw"},
	}))

	h, err := v.Inject("apikey", map[string]string{"Accept": "application/json"})
	require.NoError(t, err)
	assert.Equal(t, "k123", h["X-Custom-Key"])
	assert.Equal(t, "application/json", h["Accept"])

	h, err = v.Inject("bearer", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer t456", h["Authorization"])

	h, err = v.Inject("basic", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h["Authorization"], "Basic "))
}

func TestStoreNormalizesKind(t *testing.T) {
	v, _ := newTestVault(t)
	require.NoError(t, v.Store(Credential{
		ID: "legacy", Kind: "bearer_token",
		Data: map[string]string{"token": "t"},
	}))

	info, err := v.Get("legacy")
	require.NoError(t, err)
	assert.Equal(t, KindBearerToken, info.Kind)
	assert.Equal(t, "bearer-token", info.Kind)

	// The underscore spelling still matches in searches and injection.
	hits := v.Search("", "bearer_token", 0)
	require.Len(t, hits, 1)
	h, err := v.Inject("legacy", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer t", h["Authorization"])
}

func TestInjectConfigReplacesNestedRefs(t *testing.T) {
	v, _ := newTestVault(t)
	require.NoError(t, v.Store(Credential{
		ID: "gh", Kind: KindBearerToken,
		Data: map[string]string{"token": "t789"},
	}))
	require.NoError(t, v.Store(Credential{
		ID: "svc", Kind: KindAPIKey,
		Data: map[string]string{"key": "k42"},
	}))

	cfg := map[string]any{
		"url":           "https://api.example.com",
		"credentialRef": "gh",
		"headers": map[string]any{
			"Authorization": map[string]any{"credentialRef": "gh"},
			"X-Service-Key": map[string]any{"credentialRef": map[string]any{"id": "svc"}},
			"Accept":        "application/json",
		},
		"body": map[string]any{
			"nested": []any{map[string]any{"credentialRef": "svc"}},
		},
	}

	out, used, err := v.InjectConfig(cfg)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"gh", "svc", "svc"}, used)

	headers := out["headers"].(map[string]any)
	assert.Equal(t, "Bearer t789", headers["Authorization"])
	assert.Equal(t, "k42", headers["X-Service-Key"])
	assert.Equal(t, "application/json", headers["Accept"])
	assert.Equal(t, "k42", out["body"].(map[string]any)["nested"].([]any)[0])

	// The top-level reference is not a leaf and stays put.
	assert.Equal(t, "gh", out["credentialRef"])
}

func TestInjectConfigUnknownCredential(t *testing.T) {
	v, _ := newTestVault(t)
	_, _, err := v.InjectConfig(map[string]any{
		"headers": map[string]any{"Authorization": map[string]any{"credentialRef": "ghost"}},
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCredentialRef(t *testing.T) {
	id, ok := CredentialRef(map[string]any{"credentialRef": "c1"})
	assert.True(t, ok)
	assert.Equal(t, "c1", id)

	id, ok = CredentialRef(map[string]any{"credentialRef": map[string]any{"id": "c2"}})
	assert.True(t, ok)
	assert.Equal(t, "c2", id)

	_, ok = CredentialRef(map[string]any{"url": "https://x"})
	assert.False(t, ok)
}

// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package agentauth

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := Defaults()
	cfg.Path = filepath.Join(t.TempDir(), "agents.json")
	s, err := New(cfg, "test-signing-key", slog.New(slog.NewTextHandler(os.Stderr, nil)))
	require.NoError(t, err)
	return s
}

func TestRegisterAndAuthenticateKey(t *testing.T) {
	s := newTestService(t)

	key, err := s.Register("agent-1", "Test Agent", nil, nil, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, key)

	id, err := s.AuthenticateKey(key)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", id)

	_, err = s.AuthenticateKey("a2e_wrong")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = s.AuthenticateKey("")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRegisterDuplicate(t *testing.T) {
	s := newTestService(t)
	_, err := s.Register("agent-1", "", nil, nil, nil, nil)
	require.NoError(t, err)
	_, err = s.Register("agent-1", "", nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestPersistenceOmitsPlaintextKey(t *testing.T) {
	cfg := Defaults()
	cfg.Path = filepath.Join(t.TempDir(), "agents.json")
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s1, err := New(cfg, "k", logger)
	require.NoError(t, err)
	key, err := s1.Register("agent-1", "", nil, nil, nil, nil)
	require.NoError(t, err)

	raw, err := os.ReadFile(cfg.Path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), key)

	// A fresh service over the same file still authenticates the key.
	s2, err := New(cfg, "k", logger)
	require.NoError(t, err)
	id, err := s2.AuthenticateKey(key)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", id)
}

func TestListOmitsHash(t *testing.T) {
	s := newTestService(t)
	_, err := s.Register("agent-1", "A", nil, nil, nil, nil)
	require.NoError(t, err)

	infos := s.List()
	require.Len(t, infos, 1)
	raw, err := json.Marshal(infos[0])
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "api_key_hash")
}

func TestAllowLists(t *testing.T) {
	s := newTestService(t)
	_, err := s.Register("open", "", nil, nil, nil, nil)
	require.NoError(t, err)
	_, err = s.Register("scoped", "", []string{"weather-api"}, []string{"weather-key"}, []string{"ApiCall", "FilterData"}, nil)
	require.NoError(t, err)

	// Empty allow-list admits everything.
	assert.True(t, s.CanUseAPI("open", "anything"))
	assert.True(t, s.CanUseCredential("open", "anything"))
	assert.True(t, s.CanUseOperation("open", "StoreData"))

	assert.True(t, s.CanUseAPI("scoped", "weather-api"))
	assert.False(t, s.CanUseAPI("scoped", "github-api"))
	assert.True(t, s.CanUseCredential("scoped", "weather-key"))
	assert.False(t, s.CanUseCredential("scoped", "github-token"))
	assert.True(t, s.CanUseOperation("scoped", "ApiCall"))
	assert.False(t, s.CanUseOperation("scoped", "StoreData"))

	assert.False(t, s.CanUseAPI("unknown", "weather-api"))
	assert.False(t, s.CanUseOperation("unknown", "ApiCall"))
}

func TestTokenRoundTrip(t *testing.T) {
	s := newTestService(t)
	_, err := s.Register("agent-1", "", nil, nil, nil, nil)
	require.NoError(t, err)

	tok, err := s.IssueToken("agent-1")
	require.NoError(t, err)

	id, err := s.AuthenticateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", id)

	_, err = s.AuthenticateToken(tok + "tampered")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestTokenForRemovedAgent(t *testing.T) {
	s := newTestService(t)
	_, err := s.Register("agent-1", "", nil, nil, nil, nil)
	require.NoError(t, err)
	tok, err := s.IssueToken("agent-1")
	require.NoError(t, err)

	require.NoError(t, s.Remove("agent-1"))
	_, err = s.AuthenticateToken(tok)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestExpiredToken(t *testing.T) {
	cfg := Defaults()
	cfg.Path = filepath.Join(t.TempDir(), "agents.json")
	cfg.TokenTTL = -time.Minute
	s, err := New(cfg, "k", slog.New(slog.NewTextHandler(os.Stderr, nil)))
	require.NoError(t, err)

	_, err = s.Register("agent-1", "", nil, nil, nil, nil)
	require.NoError(t, err)
	tok, err := s.IssueToken("agent-1")
	require.NoError(t, err)

	_, err = s.AuthenticateToken(tok)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

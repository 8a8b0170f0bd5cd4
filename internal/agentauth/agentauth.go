// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

// Package agentauth manages agent identities: registration with one-time
// API keys, key and token authentication, and per-agent authorization
// allow-lists over APIs, credentials, and operation kinds.
package agentauth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

var (
	// ErrUnauthenticated is returned for any failed key or token check.
	// The cause is deliberately not distinguished.
	ErrUnauthenticated = errors.New("authentication failed")
	// ErrNotFound is returned when no agent has the requested id.
	ErrNotFound = errors.New("agent not found")
)

// Agent is a registered identity. APIKeyHash is the hex SHA-256 of the
// one-time key returned at registration; the key itself is never stored.
// Empty allow-lists admit everything.
type Agent struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	APIKeyHash         string            `json:"api_key_hash"`
	AllowedAPIs        []string          `json:"allowed_apis"`
	AllowedCredentials []string          `json:"allowed_credentials"`
	AllowedOperations  []string          `json:"allowed_operations"`
	Metadata           map[string]string `json:"metadata"`
	CreatedAt          time.Time         `json:"created_at"`
	LastUsed           time.Time         `json:"last_used"`
}

// Info is the listable projection of an agent: no key hash.
type Info struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	AllowedAPIs        []string          `json:"allowed_apis"`
	AllowedCredentials []string          `json:"allowed_credentials"`
	AllowedOperations  []string          `json:"allowed_operations"`
	Metadata           map[string]string `json:"metadata"`
	CreatedAt          time.Time         `json:"created_at"`
	LastUsed           time.Time         `json:"last_used"`
}

type agentsFile struct {
	Agents    map[string]*Agent `json:"agents"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Service holds the agent registry with JSON file persistence.
type Service struct {
	mu         sync.RWMutex
	path       string
	agents     map[string]*Agent
	signingKey []byte
	tokenTTL   time.Duration
	logger     *slog.Logger
}

// Config configures the identity service.
type Config struct {
	// Path is the agents JSON file location.
	Path string `koanf:"path"`
	// SigningKeyEnv names the environment variable carrying the HS256
	// token signing key.
	SigningKeyEnv string `koanf:"signing_key_env"`
	// TokenTTL bounds issued token lifetime.
	TokenTTL time.Duration `koanf:"token_ttl"`
}

// Defaults returns the default identity configuration.
func Defaults() Config {
	return Config{
		Path:          "data/agents.json",
		SigningKeyEnv: "A2E_AUTH_SIGNING_KEY",
		TokenTTL:      time.Hour,
	}
}

// New opens or creates the agent registry at cfg.Path.
func New(cfg Config, signingKey string, logger *slog.Logger) (*Service, error) {
	if signingKey == "" {
		return nil, fmt.Errorf("token signing key is required")
	}
	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = time.Hour
	}
	s := &Service{
		path:       cfg.Path,
		agents:     map[string]*Agent{},
		signingKey: []byte(signingKey),
		tokenTTL:   ttl,
		logger:     logger.With("component", "agentauth"),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading agents file: %w", err)
	}
	var f agentsFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parsing agents file: %w", err)
	}
	if f.Agents != nil {
		s.agents = f.Agents
	}
	s.logger.Info("agent registry loaded", "agents", len(s.agents))
	return nil
}

// save must be called with the write lock held.
func (s *Service) save() error {
	f := agentsFile{Agents: s.agents, UpdatedAt: time.Now().UTC()}
	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding agents file: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating agents directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("writing agents file: %w", err)
	}
	return nil
}

// Register creates a new agent and returns its one-time API key. The key is
// shown exactly once; only its hash is retained.
func (s *Service) Register(id, name string, allowedAPIs, allowedCredentials, allowedOperations []string, metadata map[string]string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("agent id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.agents[id]; exists {
		return "", fmt.Errorf("agent %q already registered", id)
	}

	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	apiKey := "a2e_" + hex.EncodeToString(keyBytes)

	s.agents[id] = &Agent{
		ID:                 id,
		Name:               name,
		APIKeyHash:         hashKey(apiKey),
		AllowedAPIs:        allowedAPIs,
		AllowedCredentials: allowedCredentials,
		AllowedOperations:  allowedOperations,
		Metadata:           metadata,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.save(); err != nil {
		delete(s.agents, id)
		return "", err
	}
	s.logger.Info("agent registered", "agent_id", id)
	return apiKey, nil
}

// AuthenticateKey verifies an API key and returns the owning agent id.
// It updates the agent's last_used timestamp on success.
func (s *Service) AuthenticateKey(apiKey string) (string, error) {
	if apiKey == "" {
		return "", ErrUnauthenticated
	}
	want := hashKey(apiKey)

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range s.agents {
		if subtle.ConstantTimeCompare([]byte(a.APIKeyHash), []byte(want)) == 1 {
			a.LastUsed = time.Now().UTC()
			if err := s.save(); err != nil {
				s.logger.Warn("persisting last_used failed", "agent_id", id, "error", err)
			}
			return id, nil
		}
	}
	return "", ErrUnauthenticated
}

// Remove deletes an agent from the registry.
func (s *Service) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.agents, id)
	if err := s.save(); err != nil {
		return err
	}
	s.logger.Info("agent removed", "agent_id", id)
	return nil
}

// Get returns the listable projection of one agent.
func (s *Service) Get(id string) (Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return infoOf(a), nil
}

// List returns listable projections of all agents, id-ordered.
func (s *Service) List() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Info, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, infoOf(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CanUseAPI reports whether the agent may call the named API. An empty
// allow-list admits every API.
func (s *Service) CanUseAPI(agentID, apiID string) bool {
	return s.allowed(agentID, apiID, func(a *Agent) []string { return a.AllowedAPIs })
}

// CanUseCredential reports whether the agent may reference the credential.
// An empty allow-list admits every credential.
func (s *Service) CanUseCredential(agentID, credentialID string) bool {
	return s.allowed(agentID, credentialID, func(a *Agent) []string { return a.AllowedCredentials })
}

// CanUseOperation reports whether the agent may run the operation kind. An
// empty allow-list admits every kind.
func (s *Service) CanUseOperation(agentID, kind string) bool {
	return s.allowed(agentID, kind, func(a *Agent) []string { return a.AllowedOperations })
}

func (s *Service) allowed(agentID, resource string, list func(*Agent) []string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[agentID]
	if !ok {
		return false
	}
	items := list(a)
	if len(items) == 0 {
		return true
	}
	for _, item := range items {
		if item == resource {
			return true
		}
	}
	return false
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func infoOf(a *Agent) Info {
	return Info{
		ID:                 a.ID,
		Name:               a.Name,
		AllowedAPIs:        a.AllowedAPIs,
		AllowedCredentials: a.AllowedCredentials,
		AllowedOperations:  a.AllowedOperations,
		Metadata:           a.Metadata,
		CreatedAt:          a.CreatedAt,
		LastUsed:           a.LastUsed,
	}
}

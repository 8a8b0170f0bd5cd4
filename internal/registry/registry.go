// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry holds the capability surface agents discover: curated
// API definitions, the vetted SQL query catalog, and the operation schema
// catalog. Discovery queries prefer the semantic index when one is
// configured and fall back to keyword scoring.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/a2e-project/a2e/internal/search"
)

// ErrNotFound is returned when a registry record does not exist.
var ErrNotFound = errors.New("registry record not found")

// Endpoint is one callable path of a curated API.
type Endpoint struct {
	Path        string   `json:"path"`
	Method      string   `json:"method"`
	Description string   `json:"description,omitempty"`
	Parameters  []string `json:"parameters,omitempty"`
}

// API is a curated third-party API agents may call.
type API struct {
	ID             string            `json:"id"`
	BaseURL        string            `json:"baseUrl"`
	Description    string            `json:"description,omitempty"`
	Endpoints      []Endpoint        `json:"endpoints,omitempty"`
	Authentication string            `json:"authentication,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type apisFile struct {
	APIs      map[string]*API `json:"apis"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Registry is the in-memory capability surface with JSON file persistence.
type Registry struct {
	mu      sync.RWMutex
	apiPath string
	sqlPath string
	apis    map[string]*API
	queries map[string]*SQLQuery
	indexer search.Indexer
	logger  *slog.Logger
}

// Config configures registry persistence.
type Config struct {
	// APIPath is the API definitions JSON file.
	APIPath string `koanf:"api_path"`
	// SQLPath is the SQL catalog JSON file.
	SQLPath string `koanf:"sql_path"`
}

// Defaults returns the default registry file locations.
func Defaults() Config {
	return Config{
		APIPath: "data/apis.json",
		SQLPath: "data/sql_queries.json",
	}
}

// New loads the registry files; missing files start empty. indexer may be
// nil to disable semantic search.
func New(cfg Config, indexer search.Indexer, logger *slog.Logger) (*Registry, error) {
	if indexer == nil {
		indexer = search.NoopIndexer{}
	}
	r := &Registry{
		apiPath: cfg.APIPath,
		sqlPath: cfg.SQLPath,
		apis:    map[string]*API{},
		queries: map[string]*SQLQuery{},
		indexer: indexer,
		logger:  logger.With("component", "registry"),
	}
	if err := r.loadAPIs(); err != nil {
		return nil, err
	}
	if err := r.loadSQL(); err != nil {
		return nil, err
	}
	r.logger.Info("registry loaded", "apis", len(r.apis), "sql_queries", len(r.queries))
	return r, nil
}

func (r *Registry) loadAPIs() error {
	raw, err := os.ReadFile(r.apiPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading api definitions: %w", err)
	}
	var f apisFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parsing api definitions: %w", err)
	}
	if f.APIs != nil {
		r.apis = f.APIs
	}
	return nil
}

// saveAPIs must be called with the write lock held.
func (r *Registry) saveAPIs() error {
	f := apisFile{APIs: r.apis, UpdatedAt: time.Now().UTC()}
	return writeJSON(r.apiPath, f)
}

func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", filepath.Base(path), err)
		}
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// AddAPI registers or replaces an API definition and indexes it.
func (r *Registry) AddAPI(ctx context.Context, api API) error {
	if api.ID == "" {
		return fmt.Errorf("api id is required")
	}
	if api.BaseURL == "" {
		return fmt.Errorf("api %q: baseUrl is required", api.ID)
	}

	r.mu.Lock()
	r.apis[api.ID] = &api
	err := r.saveAPIs()
	r.mu.Unlock()
	if err != nil {
		return err
	}

	if err := r.indexer.Index(ctx, search.Document{
		ID:          api.ID,
		Kind:        "api",
		Description: api.Description,
		Metadata:    api.Metadata,
	}); err != nil {
		r.logger.Warn("indexing api failed", "api_id", api.ID, "error", err)
	}
	return nil
}

// GetAPI returns one API definition.
func (r *Registry) GetAPI(id string) (API, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	api, ok := r.apis[id]
	if !ok {
		return API{}, fmt.Errorf("%w: api %s", ErrNotFound, id)
	}
	return *api, nil
}

// ListAPIs returns all API definitions, id-ordered.
func (r *Registry) ListAPIs() []API {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]API, 0, len(r.apis))
	for _, a := range r.apis {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RemoveAPI deletes an API definition and its index document.
func (r *Registry) RemoveAPI(ctx context.Context, id string) error {
	r.mu.Lock()
	_, ok := r.apis[id]
	if ok {
		delete(r.apis, id)
	}
	var err error
	if ok {
		err = r.saveAPIs()
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: api %s", ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	if err := r.indexer.Remove(ctx, id); err != nil {
		r.logger.Warn("removing api from index failed", "api_id", id, "error", err)
	}
	return nil
}

// SearchAPIs answers a discovery query, preferring the semantic index and
// falling back to keyword scoring when it is unavailable or empty-handed.
func (r *Registry) SearchAPIs(ctx context.Context, query string, topK int) []API {
	if hits, err := r.indexer.Search(ctx, query, "api", topK); err == nil && len(hits) > 0 {
		r.mu.RLock()
		defer r.mu.RUnlock()
		out := make([]API, 0, len(hits))
		for _, h := range hits {
			if api, ok := r.apis[h.ID]; ok {
				out = append(out, *api)
			}
		}
		if len(out) > 0 {
			return out
		}
	} else if err != nil {
		r.logger.Debug("semantic search unavailable, using keyword fallback", "error", err)
	}
	return r.keywordSearchAPIs(query, topK)
}

func (r *Registry) keywordSearchAPIs(query string, topK int) []API {
	words := strings.Fields(strings.ToLower(query))

	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		api   API
		score int
	}
	var hits []scored
	for _, api := range r.apis {
		score := keywordScore(words, api.Description, metadataText(api.Metadata), api.ID)
		if score > 0 || len(words) == 0 {
			hits = append(hits, scored{api: *api, score: score})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].api.ID < hits[j].api.ID
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]API, len(hits))
	for i, h := range hits {
		out[i] = h.api
	}
	return out
}

// FindAPIByHost returns the curated API whose base URL host matches, used to
// map outbound call targets back to registered capabilities.
func (r *Registry) FindAPIByHost(host string) (API, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, api := range r.apis {
		u, err := url.Parse(api.BaseURL)
		if err != nil {
			continue
		}
		if strings.EqualFold(u.Host, host) {
			return *api, true
		}
	}
	return API{}, false
}

// keywordScore implements the discovery ranking: per query word,
// description hits weigh 3, metadata 2, id 1.
func keywordScore(words []string, description, metadata, id string) int {
	description = strings.ToLower(description)
	metadata = strings.ToLower(metadata)
	id = strings.ToLower(id)
	score := 0
	for _, w := range words {
		if strings.Contains(description, w) {
			score += 3
		}
		if strings.Contains(metadata, w) {
			score += 2
		}
		if strings.Contains(id, w) {
			score++
		}
	}
	return score
}

func metadataText(m map[string]string) string {
	var b strings.Builder
	for _, v := range m {
		b.WriteString(v)
		b.WriteByte(' ')
	}
	return b.String()
}

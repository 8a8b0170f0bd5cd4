// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/opensearch-project/opensearch-go"
	"github.com/opensearch-project/opensearch-go/opensearchapi"
)

// OpenSearchConfig configures the capability index connection.
type OpenSearchConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Address  string `koanf:"address"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Index    string `koanf:"index"`
	// InsecureSkipTLSVerify accepts self-signed certificates.
	InsecureSkipTLSVerify bool `koanf:"insecure_skip_tls_verify"`
}

// DefaultOpenSearchConfig returns the default (disabled) index settings.
func DefaultOpenSearchConfig() OpenSearchConfig {
	return OpenSearchConfig{
		Address: "https://localhost:9200",
		Index:   "a2e-capabilities",
	}
}

// OpenSearchIndexer backs the capability index with an OpenSearch cluster.
type OpenSearchIndexer struct {
	client *opensearch.Client
	index  string
	logger *slog.Logger
}

// NewOpenSearchIndexer connects to the configured cluster. A failed
// connectivity probe is logged but not fatal; queries degrade to errors the
// callers fall back from.
func NewOpenSearchIndexer(cfg OpenSearchConfig, logger *slog.Logger) (*OpenSearchIndexer, error) {
	clientCfg := opensearch.Config{
		Addresses: []string{cfg.Address},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}
	if cfg.InsecureSkipTLSVerify {
		clientCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, //nolint:gosec // self-signed dev clusters
			},
		}
	}

	client, err := opensearch.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("creating opensearch client: %w", err)
	}

	log := logger.With("component", "search")
	if info, err := client.Info(); err != nil {
		log.Warn("capability index unreachable", "address", cfg.Address, "error", err)
	} else {
		log.Info("connected to capability index", "status", info.Status())
	}

	return &OpenSearchIndexer{client: client, index: cfg.Index, logger: log}, nil
}

// Index upserts a capability document by id.
func (o *OpenSearchIndexer) Index(ctx context.Context, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document %q: %w", doc.ID, err)
	}

	req := opensearchapi.IndexRequest{
		Index:      o.index,
		DocumentID: doc.ID,
		Body:       strings.NewReader(string(body)),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, o.client)
	if err != nil {
		return fmt.Errorf("indexing document %q: %w", doc.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("indexing document %q: status %s", doc.ID, res.Status())
	}
	return nil
}

// Remove deletes a capability document by id.
func (o *OpenSearchIndexer) Remove(ctx context.Context, id string) error {
	req := opensearchapi.DeleteRequest{Index: o.index, DocumentID: id}
	res, err := req.Do(ctx, o.client)
	if err != nil {
		return fmt.Errorf("removing document %q: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("removing document %q: status %s", id, res.Status())
	}
	return nil
}

// Search runs a multi-field match query, optionally filtered by kind.
func (o *OpenSearchIndexer) Search(ctx context.Context, query, kind string, topK int) ([]Hit, error) {
	if topK <= 0 {
		topK = 10
	}

	must := []map[string]any{{
		"multi_match": map[string]any{
			"query":  query,
			"fields": []string{"description^3", "metadata.*^2", "id"},
		},
	}}
	if kind != "" {
		must = append(must, map[string]any{"term": map[string]any{"kind": kind}})
	}
	searchBody := map[string]any{
		"size":  topK,
		"query": map[string]any{"bool": map[string]any{"must": must}},
	}

	body, err := json.Marshal(searchBody)
	if err != nil {
		return nil, fmt.Errorf("encoding search query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{o.index},
		Body:  strings.NewReader(string(body)),
	}
	res, err := req.Do(ctx, o.client)
	if err != nil {
		return nil, fmt.Errorf("searching capability index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("searching capability index: status %s", res.Status())
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID    string  `json:"_id"`
				Score float64 `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score})
	}
	return hits, nil
}

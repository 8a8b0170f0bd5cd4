// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/a2e-project/a2e/internal/search"
)

// SQLQuery is one vetted, parameterized query agents may discover and run
// through their own database tooling. The catalog stores text only; A2E
// never executes these.
type SQLQuery struct {
	ID          string   `json:"id"`
	SQL         string   `json:"sql"`
	Description string   `json:"description,omitempty"`
	Database    string   `json:"database,omitempty"`
	Category    string   `json:"category,omitempty"`
	Parameters  []string `json:"parameters,omitempty"`
}

type sqlFile struct {
	Queries   map[string]*SQLQuery `json:"queries"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func (r *Registry) loadSQL() error {
	raw, err := os.ReadFile(r.sqlPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading sql catalog: %w", err)
	}
	var f sqlFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parsing sql catalog: %w", err)
	}
	if f.Queries != nil {
		r.queries = f.Queries
	}
	return nil
}

// saveSQL must be called with the write lock held.
func (r *Registry) saveSQL() error {
	f := sqlFile{Queries: r.queries, UpdatedAt: time.Now().UTC()}
	return writeJSON(r.sqlPath, f)
}

// AddSQLQuery registers or replaces a catalog entry and indexes it.
func (r *Registry) AddSQLQuery(ctx context.Context, q SQLQuery) error {
	if q.ID == "" {
		return fmt.Errorf("sql query id is required")
	}
	if strings.TrimSpace(q.SQL) == "" {
		return fmt.Errorf("sql query %q: sql text is required", q.ID)
	}

	r.mu.Lock()
	r.queries[q.ID] = &q
	err := r.saveSQL()
	r.mu.Unlock()
	if err != nil {
		return err
	}

	if err := r.indexer.Index(ctx, search.Document{
		ID:          q.ID,
		Kind:        "sql",
		Description: q.Description,
		Metadata:    map[string]string{"database": q.Database, "category": q.Category},
	}); err != nil {
		r.logger.Warn("indexing sql query failed", "query_id", q.ID, "error", err)
	}
	return nil
}

// GetSQLQuery returns one catalog entry.
func (r *Registry) GetSQLQuery(id string) (SQLQuery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queries[id]
	if !ok {
		return SQLQuery{}, fmt.Errorf("%w: sql query %s", ErrNotFound, id)
	}
	return *q, nil
}

// ListSQLQueries returns catalog entries filtered by database and category
// when non-empty, id-ordered.
func (r *Registry) ListSQLQueries(database, category string) []SQLQuery {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SQLQuery, 0, len(r.queries))
	for _, q := range r.queries {
		if database != "" && q.Database != database {
			continue
		}
		if category != "" && q.Category != category {
			continue
		}
		out = append(out, *q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RemoveSQLQuery deletes a catalog entry and its index document.
func (r *Registry) RemoveSQLQuery(ctx context.Context, id string) error {
	r.mu.Lock()
	_, ok := r.queries[id]
	if ok {
		delete(r.queries, id)
	}
	var err error
	if ok {
		err = r.saveSQL()
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: sql query %s", ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	if err := r.indexer.Remove(ctx, id); err != nil {
		r.logger.Warn("removing sql query from index failed", "query_id", id, "error", err)
	}
	return nil
}

// SearchSQLQueries answers a catalog discovery query with optional database
// and category filters.
func (r *Registry) SearchSQLQueries(ctx context.Context, query, database, category string, topK int) []SQLQuery {
	if hits, err := r.indexer.Search(ctx, query, "sql", topK); err == nil && len(hits) > 0 {
		r.mu.RLock()
		out := make([]SQLQuery, 0, len(hits))
		for _, h := range hits {
			q, ok := r.queries[h.ID]
			if !ok {
				continue
			}
			if database != "" && q.Database != database {
				continue
			}
			if category != "" && q.Category != category {
				continue
			}
			out = append(out, *q)
		}
		r.mu.RUnlock()
		if len(out) > 0 {
			return out
		}
	} else if err != nil {
		r.logger.Debug("semantic search unavailable, using keyword fallback", "error", err)
	}
	return r.keywordSearchSQL(query, database, category, topK)
}

func (r *Registry) keywordSearchSQL(query, database, category string, topK int) []SQLQuery {
	words := strings.Fields(strings.ToLower(query))

	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		q     SQLQuery
		score int
	}
	var hits []scored
	for _, q := range r.queries {
		if database != "" && q.Database != database {
			continue
		}
		if category != "" && q.Category != category {
			continue
		}
		score := keywordScore(words, q.Description, q.Database+" "+q.Category, q.ID)
		if score > 0 || len(words) == 0 {
			hits = append(hits, scored{q: *q, score: score})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].q.ID < hits[j].q.ID
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]SQLQuery, len(hits))
	for i, h := range hits {
		out[i] = h.q
	}
	return out
}

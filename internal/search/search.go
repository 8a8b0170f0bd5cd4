// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

// Package search abstracts the optional semantic index behind capability
// discovery. When the index is unavailable or disabled, callers fall back
// to keyword scoring over their own records.
package search

import "context"

// Document is one indexable capability record. Only discoverable fields
// belong here; secret material must never be indexed.
type Document struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Hit is one search result with its relevance score.
type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Indexer indexes capability documents and answers relevance queries.
type Indexer interface {
	// Index upserts a document.
	Index(ctx context.Context, doc Document) error
	// Remove deletes a document by id.
	Remove(ctx context.Context, id string) error
	// Search returns up to topK hits for the query, optionally filtered
	// by document kind.
	Search(ctx context.Context, query, kind string, topK int) ([]Hit, error)
}

// NoopIndexer satisfies Indexer without a backing index; Search always
// returns no hits so callers use their keyword fallback.
type NoopIndexer struct{}

func (NoopIndexer) Index(context.Context, Document) error { return nil }

func (NoopIndexer) Remove(context.Context, string) error { return nil }

func (NoopIndexer) Search(context.Context, string, string, int) ([]Hit, error) {
	return nil, nil
}

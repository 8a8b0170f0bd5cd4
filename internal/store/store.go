// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists values written by workflow storage operations,
// namespaced by backend name and key.
package store

import (
	"context"
	"sync"
)

// Store is a namespaced key-value sink for workflow data.
type Store interface {
	// Put stores value under backend/key, overwriting any previous value.
	Put(ctx context.Context, backend, key string, value any) error
	// Get returns the value under backend/key; the boolean reports
	// whether it exists.
	Get(ctx context.Context, backend, key string) (any, bool, error)
	// Delete removes backend/key. Deleting a missing key is not an error.
	Delete(ctx context.Context, backend, key string) error
	// Keys lists the keys stored under a backend.
	Keys(ctx context.Context, backend string) ([]string, error)
}

// Memory is an in-process Store for tests and ephemeral deployments.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]any
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: map[string]map[string]any{}}
}

func (m *Memory) Put(_ context.Context, backend, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[backend]
	if !ok {
		b = map[string]any{}
		m.data[backend] = b
	}
	b[key] = value
	return nil
}

func (m *Memory) Get(_ context.Context, backend, key string) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[backend]
	if !ok {
		return nil, false, nil
	}
	v, ok := b[key]
	return v, ok, nil
}

func (m *Memory) Delete(_ context.Context, backend, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.data[backend]; ok {
		delete(b, key)
	}
	return nil
}

func (m *Memory) Keys(_ context.Context, backend string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b := m.data[backend]
	out := make([]string, 0, len(b))
	for k := range b {
		out = append(out, k)
	}
	return out, nil
}

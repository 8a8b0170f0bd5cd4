// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// DataModel is the shared state tree of one execution. Operations read
// inputs and publish results at slash-separated paths, e.g.
// /workflow/fetch-users. Safe for concurrent use.
type DataModel struct {
	mu   sync.RWMutex
	root map[string]any
}

// NewDataModel returns an empty data model.
func NewDataModel() *DataModel {
	return &DataModel{root: map[string]any{}}
}

// Get resolves a slash-separated path against the tree. Numeric segments
// index into arrays. The boolean reports whether the full path resolved.
func (d *DataModel) Get(path string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var current any = d.root
	for _, seg := range splitPath(path) {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			current = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Set writes value at path, creating intermediate objects as needed.
// Numeric segments may index into existing arrays; Set never grows an
// array or replaces a non-object intermediate.
func (d *DataModel) Set(path string, value any) error {
	segs := splitPath(path)
	if len(segs) == 0 {
		return fmt.Errorf("empty data path")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var parent any = d.root
	for i, seg := range segs[:len(segs)-1] {
		switch node := parent.(type) {
		case map[string]any:
			child, ok := node[seg]
			if !ok {
				child = map[string]any{}
				node[seg] = child
			}
			parent = child
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return fmt.Errorf("path %q: invalid array index %q", path, seg)
			}
			parent = node[idx]
		default:
			return fmt.Errorf("path %q: segment %q is not traversable", path, strings.Join(segs[:i+1], "/"))
		}
	}

	last := segs[len(segs)-1]
	switch node := parent.(type) {
	case map[string]any:
		node[last] = value
	case []any:
		idx, err := strconv.Atoi(last)
		if err != nil || idx < 0 || idx >= len(node) {
			return fmt.Errorf("path %q: invalid array index %q", path, last)
		}
		node[idx] = value
	default:
		return fmt.Errorf("path %q: parent is not traversable", path)
	}
	return nil
}

// Snapshot returns a deep copy of the tree.
func (d *DataModel) Snapshot() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return deepCopyMap(d.root)
}

func splitPath(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}

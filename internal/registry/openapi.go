// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// ImportOpenAPI converts an OpenAPI 3 document into an API definition and
// registers it. The document's first server URL becomes the base URL; each
// path operation becomes an endpoint with its summary and parameter names.
func (r *Registry) ImportOpenAPI(ctx context.Context, id, path string) (API, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return API{}, fmt.Errorf("loading openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return API{}, fmt.Errorf("invalid openapi document: %w", err)
	}

	api := API{ID: id}
	if id == "" {
		api.ID = slugify(doc.Info.Title)
	}
	if doc.Info != nil {
		api.Description = doc.Info.Title
		if doc.Info.Description != "" {
			api.Description = doc.Info.Description
		}
	}
	if len(doc.Servers) > 0 {
		api.BaseURL = doc.Servers[0].URL
	}
	if api.BaseURL == "" {
		return API{}, fmt.Errorf("openapi document declares no servers")
	}

	paths := doc.Paths.Map()
	pathKeys := make([]string, 0, len(paths))
	for p := range paths {
		pathKeys = append(pathKeys, p)
	}
	sort.Strings(pathKeys)

	for _, p := range pathKeys {
		item := paths[p]
		for method, op := range item.Operations() {
			ep := Endpoint{Path: p, Method: method}
			if op.Summary != "" {
				ep.Description = op.Summary
			} else if op.Description != "" {
				ep.Description = op.Description
			}
			for _, paramRef := range op.Parameters {
				if paramRef.Value != nil {
					ep.Parameters = append(ep.Parameters, paramRef.Value.Name)
				}
			}
			sort.Strings(ep.Parameters)
			api.Endpoints = append(api.Endpoints, ep)
		}
	}
	sort.Slice(api.Endpoints, func(i, j int) bool {
		if api.Endpoints[i].Path != api.Endpoints[j].Path {
			return api.Endpoints[i].Path < api.Endpoints[j].Path
		}
		return api.Endpoints[i].Method < api.Endpoints[j].Method
	})

	if err := r.AddAPI(ctx, api); err != nil {
		return API{}, err
	}
	return api, nil
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

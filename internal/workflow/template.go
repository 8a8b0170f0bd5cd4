// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var templateRef = regexp.MustCompile(`\{([^{}]+)\}`)

// ExpandTemplate substitutes {path} references in s with values from the
// data model. Paths may be written with or without the leading slash, so
// {input/city} and {/input/city} are equivalent. A reference whose path
// does not resolve is left literal. When the whole string is a single
// reference, the resolved value is returned with its original type;
// otherwise values are stringified into the text.
func ExpandTemplate(s string, data *DataModel) any {
	matches := templateRef.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	// Whole-string reference keeps the value's type.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		path := refPath(s[matches[0][2]:matches[0][3]])
		if v, ok := data.Get(path); ok {
			return v
		}
		return s
	}

	return templateRef.ReplaceAllStringFunc(s, func(ref string) string {
		path := refPath(strings.TrimSuffix(strings.TrimPrefix(ref, "{"), "}"))
		v, ok := data.Get(path)
		if !ok {
			return ref
		}
		return stringify(v)
	})
}

func refPath(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}

// ResolveValue materializes a config value against the data model:
// strings get template expansion, {"path": "/x"} objects dereference,
// and objects and arrays resolve recursively.
func ResolveValue(v any, data *DataModel) any {
	switch t := v.(type) {
	case string:
		return ExpandTemplate(t, data)
	case map[string]any:
		if p, ok := pathRef(t); ok {
			if resolved, found := data.Get(p); found {
				return resolved
			}
			return nil
		}
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = ResolveValue(e, data)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = ResolveValue(e, data)
		}
		return out
	default:
		return v
	}
}

// pathRef reports whether m is a {"path": "/..."} reference object.
func pathRef(m map[string]any) (string, bool) {
	if len(m) != 1 {
		return "", false
	}
	p, ok := m["path"].(string)
	if !ok || !strings.HasPrefix(p, "/") {
		return "", false
	}
	return p, true
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64, bool, int, int64:
		return fmt.Sprintf("%v", t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

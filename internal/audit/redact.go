// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"regexp"
	"strings"
)

var sensitiveKey = regexp.MustCompile(`(?i)(token|password|secret|key|auth)`)

const maxStringLen = 200

// redactMap masks values under secret-bearing key names, always masks
// Authorization header values, and truncates long strings. The input is not
// modified.
func redactMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if strings.EqualFold(k, "authorization") || sensitiveKey.MatchString(k) {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return redactMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = redactValue(e)
		}
		return out
	case string:
		r := []rune(t)
		if len(r) > maxStringLen {
			return string(r[:maxStringLen]) + "..."
		}
		return t
	default:
		return v
	}
}

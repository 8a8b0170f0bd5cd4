// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/a2e-project/a2e/internal/responses"
)

// strftime-style tokens supported in custom format strings.
var strftimeTokens = strings.NewReplacer(
	"%Y", "2006",
	"%m", "01",
	"%d", "02",
	"%H", "15",
	"%M", "04",
	"%S", "05",
	"%z", "-0700",
	"%%", "%",
)

func strftimeLayout(pattern string) string {
	return strftimeTokens.Replace(pattern)
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, responses.NewValidationError(
			fmt.Sprintf("unknown timezone %q", name), "timezone")
	}
	return loc, nil
}

// formatDateTime renders t per the operation's format selector.
func formatDateTime(t time.Time, cfg map[string]any) (any, error) {
	format, _ := cfg["format"].(string)
	switch format {
	case "", "iso8601":
		return t.Format(time.RFC3339), nil
	case "timestamp":
		return t.Unix(), nil
	case "custom":
		pattern, _ := cfg["formatString"].(string)
		if pattern == "" {
			return nil, responses.NewValidationError(
				"formatString is required for custom format", "formatString")
		}
		return t.Format(strftimeLayout(pattern)), nil
	default:
		return nil, responses.NewValidationError(
			fmt.Sprintf("unknown format %q", format), "format")
	}
}

var parseLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDateTime accepts RFC 3339 strings, common date layouts, and unix
// second timestamps. Strings without an offset are interpreted in loc.
func parseDateTime(v any, loc *time.Location) (time.Time, error) {
	switch t := v.(type) {
	case string:
		for _, layout := range parseLayouts {
			if parsed, err := time.ParseInLocation(layout, t, loc); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, responses.NewDataError(
			fmt.Sprintf("value %q is not a recognized datetime", t), "")
	case float64:
		return time.Unix(int64(t), 0).In(loc), nil
	case int:
		return time.Unix(int64(t), 0).In(loc), nil
	case int64:
		return time.Unix(t, 0).In(loc), nil
	default:
		return time.Time{}, responses.NewDataError("value is not a recognized datetime", "")
	}
}

func runGetCurrentDateTime(cfg map[string]any) (any, error) {
	tz, _ := cfg["timezone"].(string)
	loc, err := loadLocation(tz)
	if err != nil {
		return nil, err
	}
	return formatDateTime(time.Now().In(loc), cfg)
}

func runConvertTimezone(exec *execution, cfg map[string]any) (any, error) {
	input, err := exec.input(cfg)
	if err != nil {
		return nil, err
	}

	fromTZ, _ := cfg["fromTimezone"].(string)
	fromLoc, err := loadLocation(fromTZ)
	if err != nil {
		return nil, err
	}
	toTZ, _ := cfg["toTimezone"].(string)
	toLoc, err := loadLocation(toTZ)
	if err != nil {
		return nil, err
	}

	t, err := parseDateTime(input, fromLoc)
	if err != nil {
		return nil, err
	}
	return formatDateTime(t.In(toLoc), cfg)
}

// Calendar approximations for month and year arithmetic.
const (
	dayPerMonth = 30
	dayPerYear  = 365
)

func runDateCalculation(exec *execution, cfg map[string]any) (any, error) {
	input, err := exec.input(cfg)
	if err != nil {
		return nil, err
	}
	t, err := parseDateTime(input, time.UTC)
	if err != nil {
		return nil, err
	}

	operation, _ := cfg["operation"].(string)
	sign := time.Duration(1)
	switch operation {
	case "", "add":
	case "subtract":
		sign = -1
	default:
		return nil, responses.NewValidationError(
			fmt.Sprintf("unknown operation %q", operation), "operation")
	}

	component := func(key string) time.Duration {
		n, _ := numberValue(cfg[key])
		return time.Duration(n)
	}
	delta := component("years")*dayPerYear*24*time.Hour +
		component("months")*dayPerMonth*24*time.Hour +
		component("days")*24*time.Hour +
		component("hours")*time.Hour +
		component("minutes")*time.Minute +
		component("seconds")*time.Second

	return formatDateTime(t.Add(sign*delta), cfg)
}

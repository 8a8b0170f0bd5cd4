// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"encoding/base64"
	"fmt"
	"html"
	"math"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/a2e-project/a2e/internal/responses"
)

func runFormatText(exec *execution, cfg map[string]any) (any, error) {
	input, err := exec.input(cfg)
	if err != nil {
		return nil, err
	}
	format, _ := cfg["format"].(string)

	switch format {
	case "upper":
		return strings.ToUpper(stringOf(input)), nil
	case "lower":
		return strings.ToLower(stringOf(input)), nil
	case "title":
		return titleCase(stringOf(input)), nil
	case "trim":
		return strings.TrimSpace(stringOf(input)), nil
	case "template":
		template, _ := cfg["template"].(string)
		if template == "" {
			return nil, responses.NewValidationError("template is required", "template")
		}
		fields, _ := input.(map[string]any)
		return fillTemplate(template, fields), nil
	case "replace":
		replacements, _ := cfg["replacements"].(map[string]any)
		out := stringOf(input)
		for old, new_ := range replacements {
			out = strings.ReplaceAll(out, old, fmt.Sprintf("%v", new_))
		}
		return out, nil
	default:
		return nil, responses.NewValidationError(
			fmt.Sprintf("unknown format %q", format), "format")
	}
}

var templateField = regexp.MustCompile(`\{(\w+)\}`)

// fillTemplate substitutes {field} placeholders from the input object,
// leaving unknown fields literal.
func fillTemplate(template string, fields map[string]any) string {
	return templateField.ReplaceAllStringFunc(template, func(ref string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(ref, "{"), "}")
		if v, ok := fields[name]; ok {
			return fmt.Sprintf("%v", v)
		}
		return ref
	})
}

func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) && !prevLetter {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(unicode.ToLower(r))
		}
		prevLetter = unicode.IsLetter(r)
	}
	return b.String()
}

func stringOf(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func runExtractText(exec *execution, cfg map[string]any) (any, error) {
	input, err := exec.input(cfg)
	if err != nil {
		return nil, err
	}
	pattern, _ := cfg["pattern"].(string)
	if pattern == "" {
		return nil, responses.NewValidationError("pattern is required", "pattern")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, responses.NewValidationError(
			fmt.Sprintf("invalid pattern: %v", err), "pattern")
	}

	text := stringOf(input)
	extractAll, _ := cfg["extractAll"].(bool)

	pick := func(match []string) string {
		// The first capture group wins when the pattern has one.
		if len(match) > 1 {
			return match[1]
		}
		return match[0]
	}

	if extractAll {
		matches := re.FindAllStringSubmatch(text, -1)
		out := make([]any, 0, len(matches))
		for _, m := range matches {
			out = append(out, pick(m))
		}
		return out, nil
	}
	match := re.FindStringSubmatch(text)
	if match == nil {
		return nil, nil
	}
	return pick(match), nil
}

var (
	urlPattern   = regexp.MustCompile(`^https?://[^\s]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ().-]{6,}$`)
)

func runValidateData(exec *execution, cfg map[string]any) (any, error) {
	input, err := exec.input(cfg)
	if err != nil {
		return nil, err
	}
	validationType, _ := cfg["validationType"].(string)

	valid := false
	var failReason string
	switch validationType {
	case "email":
		_, mailErr := mail.ParseAddress(stringOf(input))
		valid = mailErr == nil && strings.Contains(stringOf(input), "@")
	case "url":
		valid = urlPattern.MatchString(stringOf(input))
	case "number":
		if _, ok := numberValue(input); ok {
			valid = true
		} else {
			_, parseErr := strconv.ParseFloat(stringOf(input), 64)
			valid = parseErr == nil
		}
	case "integer":
		if n, ok := numberValue(input); ok {
			valid = n == math.Trunc(n)
		} else {
			_, parseErr := strconv.ParseInt(stringOf(input), 10, 64)
			valid = parseErr == nil
		}
	case "phone":
		valid = phonePattern.MatchString(stringOf(input))
	case "date":
		_, dateErr := parseDateTime(input, time.UTC)
		valid = dateErr == nil
	case "custom":
		pattern, _ := cfg["pattern"].(string)
		if pattern == "" {
			return nil, responses.NewValidationError(
				"pattern is required for custom validation", "pattern")
		}
		re, reErr := regexp.Compile(pattern)
		if reErr != nil {
			return nil, responses.NewValidationError(
				fmt.Sprintf("invalid pattern: %v", reErr), "pattern")
		}
		valid = re.MatchString(stringOf(input))
	default:
		return nil, responses.NewValidationError(
			fmt.Sprintf("unknown validationType %q", validationType), "validationType")
	}

	result := map[string]any{"valid": valid, "value": input}
	if !valid {
		if failReason == "" {
			failReason = fmt.Sprintf("value is not a valid %s", validationType)
		}
		result["error"] = failReason
	}
	return result, nil
}

func runCalculate(exec *execution, cfg map[string]any) (any, error) {
	input, err := exec.input(cfg)
	if err != nil {
		return nil, err
	}
	operation, _ := cfg["operation"].(string)

	switch operation {
	case "sum", "average":
		items, ok := input.([]any)
		if !ok {
			return nil, responses.NewDataError("Calculate input is not an array", cfg["inputPath"].(string))
		}
		return reduceItems(items, "", operation)

	case "add", "subtract", "multiply", "divide":
		left, ok := toNumber(input)
		if !ok {
			return nil, responses.NewDataError("Calculate input is not a number", cfg["inputPath"].(string))
		}
		operand, ok := toNumber(cfg["operand"])
		if !ok {
			return nil, responses.NewValidationError("operand must be a number", "operand")
		}
		switch operation {
		case "add":
			return left + operand, nil
		case "subtract":
			return left - operand, nil
		case "multiply":
			return left * operand, nil
		default:
			if operand == 0 {
				return nil, responses.NewDataError("division by zero", "")
			}
			return left / operand, nil
		}

	case "round":
		left, ok := toNumber(input)
		if !ok {
			return nil, responses.NewDataError("Calculate input is not a number", cfg["inputPath"].(string))
		}
		precision, _ := numberValue(cfg["precision"])
		scale := math.Pow(10, precision)
		return math.Round(left*scale) / scale, nil

	default:
		return nil, responses.NewValidationError(
			fmt.Sprintf("unknown operation %q", operation), "operation")
	}
}

// toNumber accepts numbers and numeric strings.
func toNumber(v any) (float64, bool) {
	if n, ok := numberValue(v); ok {
		return n, true
	}
	if s, ok := v.(string); ok {
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func runEncodeDecode(exec *execution, cfg map[string]any) (any, error) {
	input, err := exec.input(cfg)
	if err != nil {
		return nil, err
	}
	operation, _ := cfg["operation"].(string)
	encoding, _ := cfg["encoding"].(string)
	text := stringOf(input)

	switch operation {
	case "encode":
		switch encoding {
		case "base64":
			return base64.StdEncoding.EncodeToString([]byte(text)), nil
		case "url":
			return url.QueryEscape(text), nil
		case "html":
			return html.EscapeString(text), nil
		}
	case "decode":
		switch encoding {
		case "base64":
			decoded, decErr := base64.StdEncoding.DecodeString(text)
			if decErr != nil {
				return nil, responses.NewDataError("value is not valid base64", "")
			}
			return string(decoded), nil
		case "url":
			decoded, decErr := url.QueryUnescape(text)
			if decErr != nil {
				return nil, responses.NewDataError("value is not valid url encoding", "")
			}
			return decoded, nil
		case "html":
			return html.UnescapeString(text), nil
		}
	default:
		return nil, responses.NewValidationError(
			fmt.Sprintf("unknown operation %q", operation), "operation")
	}
	return nil, responses.NewValidationError(
		fmt.Sprintf("unknown encoding %q", encoding), "encoding")
}

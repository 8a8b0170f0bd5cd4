// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package registry

// OperationSchema documents one workflow operation kind for the capability
// view: its purpose and the config fields it accepts.
type OperationSchema struct {
	Kind        string            `json:"kind"`
	Description string            `json:"description"`
	Fields      map[string]string `json:"fields"`
}

// OperationSchemas returns the closed catalog of supported operation kinds.
// The engine dispatches exactly these; anything else fails validation.
func OperationSchemas() []OperationSchema {
	return []OperationSchema{
		{
			Kind:        "ApiCall",
			Description: "Performs an HTTP request against a curated API, with optional credential injection.",
			Fields: map[string]string{
				"method":        "HTTP method (GET, POST, PUT, PATCH, DELETE)",
				"url":           "Request URL; supports {path} template references",
				"headers":       "Request headers; values support template references",
				"body":          "Request body; objects are sent as JSON",
				"timeout":       "Per-call timeout in milliseconds",
				"credentialRef": "Credential id to inject, or {\"id\": ...}",
				"outputPath":    "Data-model path for the decoded response body",
			},
		},
		{
			Kind:        "FilterData",
			Description: "Keeps array items matching every condition.",
			Fields: map[string]string{
				"inputPath":  "Array to filter",
				"conditions": "List of {field, operator, value}; operators ==, !=, >, <, >=, <=, contains",
				"outputPath": "Data-model path for the filtered array",
			},
		},
		{
			Kind:        "TransformData",
			Description: "Maps, sorts, or reduces an array.",
			Fields: map[string]string{
				"inputPath":  "Array to transform",
				"transform":  "map, sort, or reduce",
				"field":      "Field projected (map) or ordered by (sort)",
				"order":      "asc or desc for sort",
				"expression": "Reduce expression: sum, count, min, max over 'field'",
				"outputPath": "Data-model path for the result",
			},
		},
		{
			Kind:        "StoreData",
			Description: "Persists a value to the named storage backend.",
			Fields: map[string]string{
				"inputPath": "Value to store",
				"storage":   "Backend name",
				"key":       "Storage key",
			},
		},
		{
			Kind:        "MergeData",
			Description: "Combines multiple inputs into one object or array.",
			Fields: map[string]string{
				"inputPaths": "Paths to combine, in order",
				"mode":       "object or array",
				"keys":       "Object keys when mode is object (defaults to source op ids)",
				"outputPath": "Data-model path for the merged value",
			},
		},
		{
			Kind:        "Conditional",
			Description: "Routes to one of two operations based on a comparison.",
			Fields: map[string]string{
				"inputPath": "Left-hand value",
				"operator":  "==, !=, >, <, >=, <=, contains",
				"value":     "Right-hand value",
				"ifTrue":    "Operation id to run when the comparison holds",
				"ifFalse":   "Operation id to run otherwise",
			},
		},
		{
			Kind:        "Loop",
			Description: "Runs a sub-sequence of operations once per input item.",
			Fields: map[string]string{
				"inputPath":     "Array iterated over",
				"operations":    "Operation ids run per item",
				"maxIterations": "Required positive iteration bound",
				"itemPath":      "Path the current item is published at",
				"outputPath":    "Data-model path for collected per-item results",
			},
		},
		{
			Kind:        "Wait",
			Description: "Pauses the execution.",
			Fields: map[string]string{
				"duration": "Pause in milliseconds",
			},
		},
		{
			Kind:        "GetCurrentDateTime",
			Description: "Produces the current time in a timezone and format.",
			Fields: map[string]string{
				"timezone":     "IANA timezone name (default UTC)",
				"format":       "iso8601, timestamp, or custom",
				"formatString": "Pattern when format is custom (%Y-%m-%d style)",
				"outputPath":   "Data-model path for the value",
			},
		},
		{
			Kind:        "ConvertTimezone",
			Description: "Re-expresses a datetime in another timezone.",
			Fields: map[string]string{
				"inputPath":    "Datetime to convert",
				"fromTimezone": "Source timezone when the input has no offset",
				"toTimezone":   "Target timezone",
				"format":       "iso8601, timestamp, or custom",
				"formatString": "Pattern when format is custom",
				"outputPath":   "Data-model path for the converted value",
			},
		},
		{
			Kind:        "DateCalculation",
			Description: "Adds or subtracts a duration from a datetime.",
			Fields: map[string]string{
				"inputPath":    "Base datetime",
				"operation":    "add or subtract",
				"years":        "Years (approximated as 365 days)",
				"months":       "Months (approximated as 30 days)",
				"days":         "Days",
				"hours":        "Hours",
				"minutes":      "Minutes",
				"seconds":      "Seconds",
				"format":       "iso8601, timestamp, or custom",
				"formatString": "Pattern when format is custom",
				"outputPath":   "Data-model path for the result",
			},
		},
		{
			Kind:        "FormatText",
			Description: "Transforms text: case, trim, template fill, or replacement.",
			Fields: map[string]string{
				"inputPath":    "Source text or template data",
				"format":       "upper, lower, title, trim, template, or replace",
				"template":     "Template with {field} placeholders when format is template",
				"replacements": "Old-to-new replacement map when format is replace",
				"outputPath":   "Data-model path for the result",
			},
		},
		{
			Kind:        "ExtractText",
			Description: "Extracts regex matches from text.",
			Fields: map[string]string{
				"inputPath":  "Source text",
				"pattern":    "Regular expression; first capture group wins when present",
				"extractAll": "Return every match instead of the first",
				"outputPath": "Data-model path for the match(es)",
			},
		},
		{
			Kind:        "ValidateData",
			Description: "Checks a value against a validation type.",
			Fields: map[string]string{
				"inputPath":      "Value to validate",
				"validationType": "email, url, number, integer, phone, date, or custom",
				"pattern":        "Regular expression when validationType is custom",
				"outputPath":     "Data-model path for {valid, value, error?}",
			},
		},
		{
			Kind:        "Calculate",
			Description: "Performs arithmetic on a number or numeric array.",
			Fields: map[string]string{
				"inputPath":  "Number, or array for sum/average",
				"operation":  "add, subtract, multiply, divide, round, sum, or average",
				"operand":    "Second operand for the binary operations",
				"precision":  "Decimal places for round",
				"outputPath": "Data-model path for the result",
			},
		},
		{
			Kind:        "EncodeDecode",
			Description: "Encodes or decodes text.",
			Fields: map[string]string{
				"inputPath":  "Source text",
				"operation":  "encode or decode",
				"encoding":   "base64, url, or html",
				"outputPath": "Data-model path for the result",
			},
		},
		{
			Kind:        "GetCapabilities",
			Description: "Publishes the agent's capability view into the data model.",
			Fields: map[string]string{
				"outputPath": "Data-model path for the capability document",
			},
		},
	}
}

// SupportedKinds returns the kind names of the operation catalog.
func SupportedKinds() []string {
	schemas := OperationSchemas()
	out := make([]string, len(schemas))
	for i, s := range schemas {
		out[i] = s.Kind
	}
	return out
}

// IsSupportedKind reports whether the engine dispatches the kind.
func IsSupportedKind(kind string) bool {
	for _, k := range SupportedKinds() {
		if k == kind {
			return true
		}
	}
	return false
}

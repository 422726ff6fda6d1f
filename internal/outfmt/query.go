package outfmt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

// normalizeExpression fixes shell-escaped operators in jq expressions.
// Zsh escapes ! to \! even in single quotes, breaking operators like !=.
func normalizeExpression(expr string) string {
	return strings.ReplaceAll(expr, `\!`, `!`)
}

// ApplyQuery applies a jq query to structured data and returns the
// filtered value. The value goes through a JSON roundtrip first so
// struct fields match their wire names.
func ApplyQuery(v any, query string) (any, error) {
	if query == "" {
		return v, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	parsed, err := gojq.Parse(normalizeExpression(query))
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}

	iter := parsed.Run(input)
	var results []any
	for {
		out, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := out.(error); ok {
			return nil, fmt.Errorf("filter error: %w", err)
		}
		results = append(results, out)
	}

	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}

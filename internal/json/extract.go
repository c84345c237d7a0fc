// Package json provides JSON extraction utilities for parsing LLM responses.
//
// Classifier models occasionally ignore the tagged output format and
// return JSON embedded in commentary or markdown fences. This package
// pulls the first JSON object out of such responses.
package json

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractObject finds the JSON object portion of a response string.
// Handles pure JSON, JSON inside ```json fences, and an object embedded
// in surrounding text (first '{' to last '}'). Only objects, not arrays.
func extractObject(response string) (string, error) {
	response = stripCodeFences(response)

	var probe any
	if err := json.Unmarshal([]byte(response), &probe); err == nil {
		return response, nil
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start != -1 && end > start {
		candidate := response[start : end+1]
		if err := json.Unmarshal([]byte(candidate), &probe); err == nil {
			return candidate, nil
		}
	}

	preview := response
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("no JSON object in response: %q", preview)
}

// stripCodeFences removes markdown code fences around a response.
func stripCodeFences(response string) string {
	trimmed := strings.TrimSpace(response)
	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```json"))
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}
	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}
	return trimmed
}

// ExtractFromResponse extracts and unmarshals the first JSON object in
// an LLM response into T.
func ExtractFromResponse[T any](response string) (T, error) {
	var result T
	jsonStr, err := extractObject(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return result, nil
}

package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

func unmarshal(payload string, v any) error {
	return json.Unmarshal([]byte(payload), v)
}

// RemoveCodeBlocks strips a fenced code block wrapper from a model
// response, tolerating a language tag after the opening fence.
func RemoveCodeBlocks(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag line ("json", "JSON", ...).
		firstLine := strings.TrimSpace(trimmed[:idx])
		if len(firstLine) <= 10 && !strings.ContainsAny(firstLine, "{}[]") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")

	return strings.TrimSpace(trimmed)
}

// ExtractJSON pulls the first JSON object or array out of a noisy model
// response. Fenced blocks are unwrapped first.
func ExtractJSON(content string) (string, error) {
	cleaned := RemoveCodeBlocks(content)

	start := strings.IndexAny(cleaned, "{[")
	if start < 0 {
		return "", fmt.Errorf("no JSON value in response")
	}

	var end int
	if cleaned[start] == '{' {
		end = strings.LastIndex(cleaned, "}")
	} else {
		end = strings.LastIndex(cleaned, "]")
	}
	if end < start {
		return "", fmt.Errorf("unterminated JSON value in response")
	}

	candidate := cleaned[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", fmt.Errorf("response is not valid JSON")
	}

	return candidate, nil
}

// Package formatting parses structured output returned by language
// models, tolerating the markdown code fences they tend to emit.
package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrParseFailed is returned when content cannot be parsed as JSON,
// directly or after stripping a markdown code fence.
var ErrParseFailed = errors.New("failed to parse model response")

// Parse unmarshals content as JSON into T. If direct parsing fails it
// strips a surrounding ```json fence and retries.
func Parse[T any](content string) (T, error) {
	var result T

	content = strings.TrimSpace(content)
	if err := json.Unmarshal([]byte(content), &result); err == nil {
		return result, nil
	}

	stripped := StripFence(content)
	if err := json.Unmarshal([]byte(stripped), &result); err == nil {
		return result, nil
	}

	return result, fmt.Errorf("%w: %.200s", ErrParseFailed, content)
}

// StripFence removes a surrounding markdown code fence (```json ... ```
// or plain ``` ... ```) from content, if present.
func StripFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

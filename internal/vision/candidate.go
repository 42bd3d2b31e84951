package vision

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON returns the JSON object embedded in a model reply. Models
// sometimes wrap the object in prose or code fences, so the text between the
// first '{' and the last '}' is taken.
func ExtractJSON(text string) (json.RawMessage, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in model output (raw: %s)", Truncate(text, 200))
	}
	raw := text[start : end+1]
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("invalid JSON in model output (raw: %s)", Truncate(raw, 200))
	}
	return json.RawMessage(raw), nil
}

// Truncate shortens s to maxLen bytes for log and error messages.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

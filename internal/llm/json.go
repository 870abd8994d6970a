package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const fence = "```"

// StripCodeFence trims the text and, when it opens with a markdown code fence,
// removes the opening fence line and a closing fence line if the last line is one.
// Only one pair is removed; fences inside a line are left alone.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, fence) {
		return text
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if strings.HasPrefix(lines[0], fence) {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(lines[len(lines)-1], fence) {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ParseJSONObject parses model output as a JSON object after stripping code fences.
func ParseJSONObject(text string) (map[string]any, error) {
	cleaned := StripCodeFence(text)
	if cleaned == "" {
		return nil, errors.New("empty response")
	}

	var v any
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %s", jsonKind(v))
	}
	return obj, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "an array"
	case string:
		return "a string"
	case float64:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}

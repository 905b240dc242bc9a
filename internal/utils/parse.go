package utils

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ParseJSONObject parses content as a JSON object. Invalid JSON is run through
// jsonrepair and parsed again, which recovers the truncated or slightly
// malformed argument strings some models stream. The boolean reports whether
// an object was obtained; on failure the returned map is empty, never nil.
func ParseJSONObject(content string) (map[string]any, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return map[string]any{}, false
	}

	var object map[string]any
	if err := json.Unmarshal([]byte(content), &object); err == nil && object != nil {
		return object, true
	}

	repaired, err := jsonrepair.JSONRepair(content)
	if err != nil {
		return map[string]any{}, false
	}
	object = nil
	if err := json.Unmarshal([]byte(repaired), &object); err != nil || object == nil {
		return map[string]any{}, false
	}
	return object, true
}

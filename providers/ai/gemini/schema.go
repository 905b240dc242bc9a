package gemini

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// droppedSchemaKeywords are JSON Schema keywords the Gemini API rejects.
var droppedSchemaKeywords = map[string]bool{
	"additionalProperties": true,
	"$schema":              true,
}

// schemaMapKeywords hold objects whose keys are names (properties, definitions)
// and whose values are schemas. Their keys are never treated as keywords.
var schemaMapKeywords = map[string]bool{
	"properties":        true,
	"patternProperties": true,
	"$defs":             true,
	"definitions":       true,
}

// SanitizeSchema returns a copy of a JSON Schema that Gemini accepts:
// additionalProperties is removed at every level and enum values are coerced
// to strings. When coercion changed a numeric enum, the sibling type becomes
// "string" so the declaration stays consistent. The input is never modified.
// Invalid JSON yields nil.
func SanitizeSchema(schema json.RawMessage) json.RawMessage {
	if !gjson.ValidBytes(schema) {
		return nil
	}
	return sanitizeValue(gjson.ParseBytes(schema))
}

func sanitizeValue(value gjson.Result) json.RawMessage {
	switch {
	case value.IsObject():
		return sanitizeObject(value)
	case value.IsArray():
		out := []byte("[]")
		value.ForEach(func(_, item gjson.Result) bool {
			out, _ = sjson.SetRawBytes(out, "-1", sanitizeValue(item))
			return true
		})
		return out
	default:
		return json.RawMessage(value.Raw)
	}
}

func sanitizeObject(object gjson.Result) json.RawMessage {
	out := []byte("{}")
	coercedEnum := false

	object.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if droppedSchemaKeywords[name] {
			return true
		}

		var raw json.RawMessage
		switch {
		case schemaMapKeywords[name] && value.IsObject():
			raw = sanitizeSchemaMap(value)
		case name == "enum" && value.IsArray():
			raw, coercedEnum = coerceEnum(value)
		default:
			raw = sanitizeValue(value)
		}
		out, _ = sjson.SetRawBytes(out, escapePathKey(name), raw)
		return true
	})

	if coercedEnum {
		switch object.Get("type").String() {
		case "integer", "number":
			out, _ = sjson.SetBytes(out, "type", "string")
		}
	}
	return out
}

// sanitizeSchemaMap keeps every key of a name-to-schema object and sanitizes
// each value as a schema.
func sanitizeSchemaMap(object gjson.Result) json.RawMessage {
	out := []byte("{}")
	object.ForEach(func(key, value gjson.Result) bool {
		out, _ = sjson.SetRawBytes(out, escapePathKey(key.String()), sanitizeValue(value))
		return true
	})
	return out
}

// coerceEnum turns every enum member into a string and reports whether any
// member was not a string already.
func coerceEnum(enum gjson.Result) (json.RawMessage, bool) {
	values := []string{}
	changed := false
	enum.ForEach(func(_, item gjson.Result) bool {
		if item.Type == gjson.String {
			values = append(values, item.String())
			return true
		}
		changed = true
		values = append(values, item.Raw)
		return true
	})

	raw, _ := json.Marshal(values)
	return raw, changed
}

// escapePathKey escapes the characters sjson treats as path syntax so object
// keys such as property names containing dots are written literally.
func escapePathKey(key string) string {
	if !strings.ContainsAny(key, `.*?\|#@!:`) {
		return key
	}
	var builder strings.Builder
	for _, r := range key {
		if strings.ContainsRune(`.*?\|#@!:`, r) {
			builder.WriteByte('\\')
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

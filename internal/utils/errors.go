package utils

import (
	"bytes"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/tidwall/gjson"
)

// maxErrorMessageLength bounds the human-readable message extracted from a
// rejected upstream response.
const maxErrorMessageLength = 300

// errorMessagePaths are the locations providers put their error text, in the
// order they are tried: Anthropic/OpenAI/DeepSeek nest it under error.message,
// Gemini sometimes answers with a one-element array, proxies use message or
// detail, and a few send error as a bare string.
var errorMessagePaths = []string{
	"error.message",
	"0.error.message",
	"message",
	"detail",
	"error",
}

// ExtractErrorMessage returns a best-effort human-readable message from a
// rejected upstream response body. JSON bodies are searched for the usual
// error fields, HTML error pages (typically from a proxy in front of the
// provider) are converted to plain markdown text, and anything else is
// returned trimmed and truncated.
func ExtractErrorMessage(body []byte, contentType string) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	if gjson.ValidBytes(trimmed) {
		for _, path := range errorMessagePaths {
			result := gjson.GetBytes(trimmed, path)
			if result.Type == gjson.String && result.String() != "" {
				return TruncateString(result.String(), maxErrorMessageLength)
			}
		}
		return TruncateString(string(trimmed), maxErrorMessageLength)
	}

	if strings.Contains(strings.ToLower(contentType), "html") || bytes.HasPrefix(trimmed, []byte("<")) {
		markdown, err := htmltomarkdown.ConvertString(string(trimmed))
		if err == nil && strings.TrimSpace(markdown) != "" {
			return TruncateString(collapseWhitespace(markdown), maxErrorMessageLength)
		}
	}

	return TruncateString(collapseWhitespace(string(trimmed)), maxErrorMessageLength)
}

func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

package openai

import "strings"

// Capabilities describes what an OpenAI-compatible endpoint accepts. They are
// detected from the base URL by [detectCapabilities] and can be overridden via
// [OpenAIProvider.WithCapabilities] for non-standard hosts.
type Capabilities struct {
	// SupportsVision allows image_url content parts; images are dropped otherwise.
	SupportsVision bool

	// ThinkingViaReasoningEffort maps a thinking request to reasoning_effort
	// for every model, not only the OpenAI reasoning families.
	ThinkingViaReasoningEffort bool
}

// detectCapabilities derives capabilities from well-known hosts.
func detectCapabilities(baseURL string) Capabilities {
	baseURL = strings.ToLower(baseURL)

	switch {
	// DeepSeek chat models are text-only.
	case strings.Contains(baseURL, "deepseek.com"):
		return Capabilities{}

	// Gemini's compatibility layer maps reasoning_effort to its thinking budget.
	case strings.Contains(baseURL, "generativelanguage.googleapis.com"):
		return Capabilities{SupportsVision: true, ThinkingViaReasoningEffort: true}

	// OpenAI, Azure, OpenRouter and unknown hosts.
	default:
		return Capabilities{SupportsVision: true}
	}
}

// isReasoningModel reports whether model belongs to an OpenAI reasoning family
// (o1, o3, o4, gpt-5), which rejects temperature and max_tokens.
func isReasoningModel(model string) bool {
	model = strings.ToLower(model)
	if slash := strings.LastIndex(model, "/"); slash >= 0 {
		model = model[slash+1:]
	}
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// reasoningEffort derives reasoning_effort from a thinking budget.
func reasoningEffort(budget int) string {
	switch {
	case budget <= 0:
		return "medium"
	case budget <= 4096:
		return "low"
	case budget <= 16384:
		return "medium"
	default:
		return "high"
	}
}

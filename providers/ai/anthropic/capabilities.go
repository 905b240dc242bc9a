package anthropic

import "strings"

// Known values for the anthropic-beta header.
const (
	// BetaInterleavedThinking lets thinking blocks appear between tool calls.
	BetaInterleavedThinking = "interleaved-thinking-2025-05-14"

	// BetaComputerUse enables the computer-use tool family.
	BetaComputerUse = "computer-use-2025-01-24"

	// BetaTokenEfficientTools reduces output tokens spent on tool calls.
	BetaTokenEfficientTools = "token-efficient-tools-2025-02-19"
)

// Capabilities describes configurable features for the Anthropic provider.
// Set them via [AnthropicProvider.WithCapabilities].
type Capabilities struct {
	PromptCaching bool     // Attach cache_control to the system prompt and the last tool
	BetaFeatures  []string // Extra anthropic-beta header values
}

// betaHeaderValue returns the comma-joined anthropic-beta header value. When
// thinking is requested the interleaved-thinking beta is added unless already
// present. It returns "" when there is nothing to send.
func (capabilities Capabilities) betaHeaderValue(thinking bool) string {
	features := make([]string, 0, len(capabilities.BetaFeatures)+1)
	features = append(features, capabilities.BetaFeatures...)

	if thinking {
		found := false
		for _, feature := range features {
			if feature == BetaInterleavedThinking {
				found = true
				break
			}
		}
		if !found {
			features = append(features, BetaInterleavedThinking)
		}
	}

	if len(features) == 0 {
		return ""
	}
	return strings.Join(features, ",")
}

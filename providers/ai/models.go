package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

/*
	##### PROVIDER INPUT #####
*/

// ProviderID names one upstream wire format the gateway can speak.
type ProviderID string

const (
	ProviderAnthropic    ProviderID = "anthropic"
	ProviderOpenAI       ProviderID = "openai"
	ProviderDeepSeek     ProviderID = "deepseek"
	ProviderGemini       ProviderID = "gemini"
	ProviderGeminiOpenAI ProviderID = "gemini-openai" // Gemini through its OpenAI-compatible endpoint
)

// KnownProviders lists every ProviderID in dispatch-table order.
var KnownProviders = []ProviderID{
	ProviderAnthropic,
	ProviderOpenAI,
	ProviderDeepSeek,
	ProviderGemini,
	ProviderGeminiOpenAI,
}

// ParseProviderID returns the ProviderID named by s, or false when s names no
// known provider.
func ParseProviderID(s string) (ProviderID, bool) {
	candidate := ProviderID(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range KnownProviders {
		if candidate == known {
			return known, true
		}
	}
	return "", false
}

// ChatRequest is the normalized inbound request.
type ChatRequest struct {
	Messages       []Message        `json:"messages"`
	Model          string           `json:"model,omitempty"`
	Provider       string           `json:"provider,omitempty"` // Explicit provider id; overrides model-prefix dispatch
	System         string           `json:"system,omitempty"`
	Tools          []ToolDefinition `json:"tools,omitempty"`
	Thinking       bool             `json:"thinking,omitempty"`       // Request reasoning output when the model supports it
	ThinkingBudget int              `json:"thinkingBudget,omitempty"` // Reasoning token budget; 0 means provider default
	MaxTokens      int              `json:"maxTokens,omitempty"`
	Temperature    *float64         `json:"temperature,omitempty"`
}

// ToolDefinition describes a tool the model may call. InputSchema is kept as
// raw JSON so keywords the gateway does not know survive untouched.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// MessageRole represents the role of a message; compatible with string
type MessageRole string

const (
	RoleUser      MessageRole = "user"      // End-user message
	RoleAssistant MessageRole = "assistant" // Model output, possibly with tool calls
	RoleTool      MessageRole = "tool"      // Tool results answering earlier tool_use blocks
)

// Message is one canonical conversation turn.
type Message struct {
	Role    MessageRole    `json:"role"`
	Content []ContentBlock `json:"content"`
}

// UnmarshalJSON accepts content either as a plain string or as a block array.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    MessageRole     `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Role = raw.Role
	m.Content = nil

	content := bytes.TrimSpace(raw.Content)
	switch {
	case len(content) == 0 || string(content) == "null":
		return nil
	case content[0] == '"':
		var text string
		if err := json.Unmarshal(content, &text); err != nil {
			return fmt.Errorf("message content: %w", err)
		}
		m.Content = []ContentBlock{{Type: BlockText, Text: text}}
		return nil
	default:
		if err := json.Unmarshal(content, &m.Content); err != nil {
			return fmt.Errorf("message content: %w", err)
		}
		return nil
	}
}

// TextMessage builds a message holding a single text block.
func TextMessage(role MessageRole, text string) Message {
	return Message{Role: role, Content: []ContentBlock{{Type: BlockText, Text: text}}}
}

// BlockType tags a ContentBlock.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockImage      BlockType = "image"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
	BlockThinking   BlockType = "thinking"
)

// ContentBlock is a tagged union; which fields are meaningful depends on Type.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// text, thinking
	Text      string `json:"text,omitempty"`
	Signature string `json:"signature,omitempty"` // thinking only

	// image: either Data (base64) or URL
	MediaType string `json:"mediaType,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`

	// tool_use
	ID               string          `json:"id,omitempty"`
	Name             string          `json:"name,omitempty"`
	Input            json.RawMessage `json:"input,omitempty"`
	ThoughtSignature string          `json:"thoughtSignature,omitempty"`

	// tool_result
	ToolUseID string          `json:"toolUseId,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"` // string, block array or any JSON value
	IsError   bool            `json:"isError,omitempty"`
}

// ResultText renders a tool_result's content as plain text: a JSON string is
// unquoted, a block array has its text blocks joined, anything else is
// returned as its raw JSON.
func (b ContentBlock) ResultText() string {
	content := bytes.TrimSpace(b.Content)
	if len(content) == 0 || string(content) == "null" {
		return ""
	}

	switch content[0] {
	case '"':
		var text string
		if err := json.Unmarshal(content, &text); err == nil {
			return text
		}
	case '[':
		var blocks []ContentBlock
		if err := json.Unmarshal(content, &blocks); err == nil {
			var texts []string
			for _, block := range blocks {
				if block.Type == BlockText {
					texts = append(texts, block.Text)
				}
			}
			return strings.Join(texts, "\n")
		}
	}
	return string(content)
}

// InputObject returns the tool_use input, or "{}" when it is empty.
func (b ContentBlock) InputObject() json.RawMessage {
	input := bytes.TrimSpace(b.Input)
	if len(input) == 0 || string(input) == "null" {
		return json.RawMessage("{}")
	}
	return input
}

// PlaceholderText stands in for a message that has no content representable
// in the target wire format, so role alternation is preserved.
const PlaceholderText = "..."

/*
	##### PROVIDER OUTPUT #####
*/

// StopReason is the terminal classification of a response.
type StopReason string

const (
	StopEndTurn     StopReason = "end_turn"
	StopToolUse     StopReason = "tool_use"
	StopMaxTokens   StopReason = "max_tokens"
	StopInterrupted StopReason = "interrupted"
)

// ToolUse is a completed tool call emitted by a stream.
type ToolUse struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Input            json.RawMessage `json:"input"`
	ThoughtSignature string          `json:"thoughtSignature,omitempty"`
}

// Usage carries the token counts seen so far.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// ChatResult is what ChatStream.Collect assembles from a full stream.
type ChatResult struct {
	Model      string
	Provider   ProviderID
	Text       string
	Thinking   string
	Signature  string
	ToolUses   []ToolUse
	Usage      Usage
	StopReason StopReason
}

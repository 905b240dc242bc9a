package anthropic

import "encoding/json"

/*
	ANTHROPIC MESSAGES API - REQUEST TYPES
*/

// anthropicRequest represents the request body for Anthropic's Messages API.
type anthropicRequest struct {
	Model       string                   `json:"model"`
	Messages    []anthropicMessage       `json:"messages"`
	System      json.RawMessage          `json:"system,omitempty"` // String or []anthropicContentBlock
	MaxTokens   int                      `json:"max_tokens"`       // Required by Anthropic on every request
	Temperature *float64                 `json:"temperature,omitempty"`
	Tools       []anthropicTool          `json:"tools,omitempty"`
	Stream      bool                     `json:"stream"`
	Thinking    *anthropicThinkingConfig `json:"thinking,omitempty"`
}

// anthropicThinkingConfig enables extended thinking with a fixed budget.
type anthropicThinkingConfig struct {
	Type         string `json:"type"` // "enabled"
	BudgetTokens int    `json:"budget_tokens"`
}

// anthropicMessage represents a single message in the conversation.
type anthropicMessage struct {
	Role    string                  `json:"role"`    // "user" or "assistant"
	Content []anthropicContentBlock `json:"content"` // Array of content blocks
}

// anthropicContentBlock is a discriminated union via the Type field:
//   - "text": Text + optional CacheControl
//   - "image": Source (base64 or url)
//   - "tool_use": ID, Name, Input
//   - "tool_result": ToolUseID, Content, IsError
//   - "thinking": Thinking, Signature
type anthropicContentBlock struct {
	Type         string                 `json:"type"`
	Text         string                 `json:"text,omitempty"`
	Source       *anthropicSource       `json:"source,omitempty"`
	ID           string                 `json:"id,omitempty"`
	Name         string                 `json:"name,omitempty"`
	Input        json.RawMessage        `json:"input,omitempty"`
	ToolUseID    string                 `json:"tool_use_id,omitempty"`
	Content      json.RawMessage        `json:"content,omitempty"`
	IsError      bool                   `json:"is_error,omitempty"`
	Thinking     string                 `json:"thinking,omitempty"`
	Signature    string                 `json:"signature,omitempty"`
	CacheControl *anthropicCacheControl `json:"cache_control,omitempty"`
}

// anthropicSource represents a media source (base64 inline or URL reference).
type anthropicSource struct {
	Type      string `json:"type"`                 // "base64" or "url"
	MediaType string `json:"media_type,omitempty"` // MIME type (for base64)
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// anthropicCacheControl controls prompt caching on content blocks and tool definitions.
type anthropicCacheControl struct {
	Type string `json:"type"` // "ephemeral"
}

// anthropicTool describes a tool/function available to the model.
type anthropicTool struct {
	Name         string                 `json:"name"`
	Description  string                 `json:"description,omitempty"`
	InputSchema  json.RawMessage        `json:"input_schema"`
	CacheControl *anthropicCacheControl `json:"cache_control,omitempty"`
}

/*
	ANTHROPIC SSE STREAMING - WIRE TYPES

	Anthropic streaming uses SSE with "event:" lines to identify event types,
	followed by "data:" lines containing JSON payloads. Only "data:" lines are
	decoded, so the "type" field inside the payload discriminates events.

	Event lifecycle:
	  message_start → content_block_start → content_block_delta → content_block_stop →
	  message_delta → message_stop
*/

// streamEvent is the top-level envelope for all Anthropic SSE events.
type streamEvent struct {
	Type         string              `json:"type"`
	Message      *streamMessage      `json:"message,omitempty"`       // message_start
	Index        int                 `json:"index"`                   // content_block_*
	ContentBlock *streamContentBlock `json:"content_block,omitempty"` // content_block_start
	Delta        *streamDelta        `json:"delta,omitempty"`         // content_block_delta, message_delta
	Usage        *anthropicUsage     `json:"usage,omitempty"`         // message_delta
	Error        *anthropicError     `json:"error,omitempty"`         // error
}

type streamMessage struct {
	ID    string         `json:"id"`
	Model string         `json:"model"`
	Usage anthropicUsage `json:"usage"`
}

type streamContentBlock struct {
	Type string `json:"type"` // "text", "thinking", "redacted_thinking", "tool_use"
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// streamDelta carries incremental content. Type discriminates content block
// deltas; message_delta carries no type but a stop reason.
type streamDelta struct {
	Type        string `json:"type,omitempty"` // "text_delta", "thinking_delta", "input_json_delta", "signature_delta"
	Text        string `json:"text,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	Signature   string `json:"signature,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

// anthropicUsage reports token consumption.
type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// anthropicError represents an error event in the SSE stream.
type anthropicError struct {
	Type    string `json:"type"` // e.g. "overloaded_error", "api_error"
	Message string `json:"message"`
}

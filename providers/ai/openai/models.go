package openai

import "encoding/json"

/*
	CHAT COMPLETIONS API - INPUT
*/

// chatCompletionRequest is the streaming /chat/completions request body.
type chatCompletionRequest struct {
	Model               string         `json:"model"`
	Messages            []chatMessage  `json:"messages"`
	Temperature         *float64       `json:"temperature,omitempty"`
	MaxTokens           *int           `json:"max_tokens,omitempty"`            // Non-reasoning models
	MaxCompletionTokens *int           `json:"max_completion_tokens,omitempty"` // Reasoning models
	ReasoningEffort     string         `json:"reasoning_effort,omitempty"`      // "low", "medium", "high"
	Tools               []chatTool     `json:"tools,omitempty"`
	Stream              bool           `json:"stream"`
	StreamOptions       *streamOptions `json:"stream_options,omitempty"`
}

// streamOptions asks for a final usage chunk.
type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// chatMessage is one entry of the messages array. Content is a string, a
// []contentPart, or nil for assistant turns that only carry tool calls.
type chatMessage struct {
	Role       string         `json:"role"` // "system", "user", "assistant", "tool"
	Content    any            `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// contentPart represents a multimodal content part.
type contentPart struct {
	Type     string            `json:"type"` // "text" or "image_url"
	Text     string            `json:"text,omitempty"`
	ImageURL *contentPartImage `json:"image_url,omitempty"`
}

// contentPartImage is either an http(s) URL or a data: URI.
type contentPartImage struct {
	URL string `json:"url"`
}

// chatToolCall is a tool call on an assistant message.
type chatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"` // "function"
	Function chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON-encoded object
}

// chatTool describes a callable function.
type chatTool struct {
	Type     string          `json:"type"` // "function"
	Function chatFunctionDef `json:"function"`
}

type chatFunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

/*
	CHAT COMPLETIONS STREAMING API - CHUNKS

	Each SSE chunk carries incremental deltas for content, reasoning and tool
	calls. The last chunk carries usage when stream_options.include_usage is
	set; its choices array is empty.
*/

type chatCompletionStreamChunk struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []streamChoice `json:"choices"`
	Usage   *chatUsage     `json:"usage,omitempty"`
	Error   *chatError     `json:"error,omitempty"` // Some compatible hosts report failures in-band
}

type streamChoice struct {
	Index        int         `json:"index"`
	Delta        streamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"` // nil until the final chunk for this choice
}

// streamDelta fields are all optional; pointers distinguish "" from absent.
type streamDelta struct {
	Role             string               `json:"role,omitempty"`
	Content          *string              `json:"content,omitempty"`
	ReasoningContent *string              `json:"reasoning_content,omitempty"` // DeepSeek
	Reasoning        *string              `json:"reasoning,omitempty"`         // OpenRouter and others
	ToolCalls        []streamToolCallPart `json:"tool_calls,omitempty"`
}

// streamToolCallPart is a tool call fragment. The first fragment for an index
// carries the id and function name; later ones carry argument pieces.
type streamToolCallPart struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    any    `json:"code,omitempty"`
}

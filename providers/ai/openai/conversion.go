package openai

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/leofalp/streamgate/providers/ai"
)

// requestToChatCompletion converts an ai.ChatRequest into a streaming
// /chat/completions body.
func requestToChatCompletion(request ai.ChatRequest, capabilities Capabilities) chatCompletionRequest {
	req := chatCompletionRequest{
		Model:         request.Model,
		Messages:      buildMessages(request.System, request.Messages, capabilities),
		Tools:         buildTools(request.Tools),
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	}

	// Reasoning families take reasoning_effort and max_completion_tokens and
	// reject temperature and max_tokens.
	if isReasoningModel(request.Model) {
		req.ReasoningEffort = reasoningEffort(request.ThinkingBudget)
		if request.MaxTokens > 0 {
			maxTokens := request.MaxTokens
			req.MaxCompletionTokens = &maxTokens
		}
		return req
	}

	if request.Thinking && capabilities.ThinkingViaReasoningEffort {
		req.ReasoningEffort = reasoningEffort(request.ThinkingBudget)
	}
	if request.Temperature != nil {
		temperature := *request.Temperature
		req.Temperature = &temperature
	}
	if request.MaxTokens > 0 {
		maxTokens := request.MaxTokens
		req.MaxTokens = &maxTokens
	}
	return req
}

// buildMessages flattens canonical messages into the chat completions layout:
// the system prompt becomes the first message, tool_use blocks become
// tool_calls on the assistant message, and every tool_result becomes its own
// role "tool" message placed right after the assistant turn it answers.
func buildMessages(system string, messages []ai.Message, capabilities Capabilities) []chatMessage {
	var result []chatMessage
	if system != "" {
		result = append(result, chatMessage{Role: "system", Content: system})
	}

	for _, msg := range messages {
		if msg.Role == ai.RoleAssistant {
			result = append(result, assistantMessage(msg))
			continue
		}

		// user and tool turns: tool results first, then whatever else is left.
		var rest []ai.ContentBlock
		toolResults := 0
		for _, block := range msg.Content {
			if block.Type == ai.BlockToolResult {
				result = append(result, chatMessage{
					Role:       "tool",
					ToolCallID: block.ToolUseID,
					Content:    block.ResultText(),
				})
				toolResults++
				continue
			}
			rest = append(rest, block)
		}

		content := userContent(rest, capabilities)
		if content == nil {
			if toolResults > 0 {
				continue
			}
			content = ai.PlaceholderText
		}
		result = append(result, chatMessage{Role: "user", Content: content})
	}

	return result
}

// assistantMessage joins text blocks and turns tool_use blocks into
// tool_calls. Thinking and images have no assistant-side representation.
func assistantMessage(msg ai.Message) chatMessage {
	var texts []string
	var toolCalls []chatToolCall

	for _, block := range msg.Content {
		switch block.Type {
		case ai.BlockText:
			if block.Text != "" {
				texts = append(texts, block.Text)
			}
		case ai.BlockToolUse:
			toolCalls = append(toolCalls, chatToolCall{
				ID:   block.ID,
				Type: "function",
				Function: chatToolFunction{
					Name:      block.Name,
					Arguments: string(block.InputObject()),
				},
			})
		}
	}

	message := chatMessage{Role: "assistant", ToolCalls: toolCalls}
	switch {
	case len(texts) > 0:
		message.Content = strings.Join(texts, "\n")
	case len(toolCalls) == 0:
		message.Content = ai.PlaceholderText
	}
	return message
}

// userContent returns a plain string when only text is present, a part
// array when images are involved, or nil when nothing is representable.
func userContent(blocks []ai.ContentBlock, capabilities Capabilities) any {
	var parts []contentPart
	hasImage := false

	for _, block := range blocks {
		switch block.Type {
		case ai.BlockText:
			if block.Text != "" {
				parts = append(parts, contentPart{Type: "text", Text: block.Text})
			}
		case ai.BlockImage:
			if !capabilities.SupportsVision {
				continue
			}
			if url := imageURL(block); url != "" {
				parts = append(parts, contentPart{Type: "image_url", ImageURL: &contentPartImage{URL: url}})
				hasImage = true
			}
		}
	}

	if len(parts) == 0 {
		return nil
	}
	if !hasImage {
		texts := make([]string, 0, len(parts))
		for _, part := range parts {
			texts = append(texts, part.Text)
		}
		return strings.Join(texts, "\n")
	}
	return parts
}

// imageURL returns the block URL, or a data: URI for base64 content.
func imageURL(block ai.ContentBlock) string {
	if block.Data != "" {
		mediaType := block.MediaType
		if mediaType == "" {
			mediaType = "image/png"
		}
		return "data:" + mediaType + ";base64," + block.Data
	}
	return block.URL
}

func buildTools(tools []ai.ToolDefinition) []chatTool {
	if len(tools) == 0 {
		return nil
	}

	result := make([]chatTool, 0, len(tools))
	for _, tool := range tools {
		parameters := bytes.TrimSpace(tool.InputSchema)
		if len(parameters) == 0 || string(parameters) == "null" {
			parameters = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		result = append(result, chatTool{
			Type: "function",
			Function: chatFunctionDef{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  parameters,
			},
		})
	}
	return result
}

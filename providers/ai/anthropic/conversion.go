package anthropic

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/leofalp/streamgate/providers/ai"
)

const (
	// defaultMaxTokens is used when the request sets no limit; Anthropic
	// requires max_tokens on every request.
	defaultMaxTokens = 4096

	// defaultThinkingBudget applies when thinking is requested without a budget.
	defaultThinkingBudget = 10000

	// minThinkingBudget is the smallest budget the API accepts.
	minThinkingBudget = 1024
)

// requestToAnthropic converts an ai.ChatRequest into the Messages API body.
func requestToAnthropic(request ai.ChatRequest, capabilities Capabilities) (anthropicRequest, error) {
	req := anthropicRequest{
		Model:    request.Model,
		Messages: buildMessages(request.Messages),
		Stream:   true,
	}

	// --- System prompt ---
	// Prompt caching needs the block array form so cache_control can be attached.
	if request.System != "" {
		var system any = request.System
		if capabilities.PromptCaching {
			system = []anthropicContentBlock{{
				Type:         "text",
				Text:         request.System,
				CacheControl: &anthropicCacheControl{Type: "ephemeral"},
			}}
		}
		systemBytes, err := json.Marshal(system)
		if err != nil {
			return anthropicRequest{}, fmt.Errorf("failed to marshal system prompt: %w", err)
		}
		req.System = systemBytes
	}

	// --- Generation options ---
	req.MaxTokens = defaultMaxTokens
	if request.MaxTokens > 0 {
		req.MaxTokens = request.MaxTokens
	}

	if request.Thinking {
		budget := thinkingBudget(request.ThinkingBudget)
		req.Thinking = &anthropicThinkingConfig{Type: "enabled", BudgetTokens: budget}
		// max_tokens must exceed the budget; temperature is rejected with thinking.
		if req.MaxTokens <= budget {
			req.MaxTokens = budget + defaultMaxTokens
		}
	} else if request.Temperature != nil {
		temperature := *request.Temperature
		req.Temperature = &temperature
	}

	// --- Tools ---
	req.Tools = buildAnthropicTools(request.Tools, capabilities.PromptCaching)

	return req, nil
}

// thinkingBudget applies the default and the API minimum.
func thinkingBudget(requested int) int {
	if requested <= 0 {
		return defaultThinkingBudget
	}
	if requested < minThinkingBudget {
		return minThinkingBudget
	}
	return requested
}

// buildMessages converts canonical messages into Anthropic turns.
//
// Tool-role messages become user turns of tool_result blocks, and consecutive
// tool-result turns are merged into one since Anthropic requires user and
// assistant turns to alternate.
func buildMessages(messages []ai.Message) []anthropicMessage {
	var result []anthropicMessage

	for _, msg := range messages {
		role := "user"
		if msg.Role == ai.RoleAssistant {
			role = "assistant"
		}

		blocks := contentToAnthropicBlocks(msg.Content, role)
		if len(blocks) == 0 {
			blocks = []anthropicContentBlock{{Type: "text", Text: ai.PlaceholderText}}
		}
		converted := anthropicMessage{Role: role, Content: blocks}

		if len(result) > 0 && isAllToolResults(result[len(result)-1]) && isAllToolResults(converted) {
			last := &result[len(result)-1]
			last.Content = append(last.Content, converted.Content...)
			continue
		}
		result = append(result, converted)
	}

	return result
}

// isAllToolResults reports whether msg is a user turn holding only
// tool_result blocks.
func isAllToolResults(msg anthropicMessage) bool {
	if msg.Role != "user" || len(msg.Content) == 0 {
		return false
	}
	for _, block := range msg.Content {
		if block.Type != "tool_result" {
			return false
		}
	}
	return true
}

// contentToAnthropicBlocks maps canonical blocks to Anthropic blocks. Blocks
// the target role cannot carry are dropped: tool_use, thinking and images
// only travel in the turn types that accept them.
func contentToAnthropicBlocks(content []ai.ContentBlock, role string) []anthropicContentBlock {
	var blocks []anthropicContentBlock

	for _, block := range content {
		switch block.Type {
		case ai.BlockText:
			if block.Text == "" {
				continue
			}
			blocks = append(blocks, anthropicContentBlock{Type: "text", Text: block.Text})

		case ai.BlockImage:
			if role != "user" {
				continue
			}
			if source := imageSource(block); source != nil {
				blocks = append(blocks, anthropicContentBlock{Type: "image", Source: source})
			}

		case ai.BlockToolUse:
			if role != "assistant" {
				continue
			}
			blocks = append(blocks, anthropicContentBlock{
				Type:  "tool_use",
				ID:    block.ID,
				Name:  block.Name,
				Input: block.InputObject(),
			})

		case ai.BlockToolResult:
			if role != "user" {
				continue
			}
			blocks = append(blocks, anthropicContentBlock{
				Type:      "tool_result",
				ToolUseID: block.ToolUseID,
				Content:   toolResultContent(block),
				IsError:   block.IsError,
			})

		case ai.BlockThinking:
			// Unsigned thinking cannot be verified by the API and is rejected.
			if role != "assistant" || block.Signature == "" {
				continue
			}
			blocks = append(blocks, anthropicContentBlock{
				Type:      "thinking",
				Thinking:  block.Text,
				Signature: block.Signature,
			})
		}
	}

	return blocks
}

func imageSource(block ai.ContentBlock) *anthropicSource {
	switch {
	case block.Data != "":
		return &anthropicSource{Type: "base64", MediaType: block.MediaType, Data: block.Data}
	case block.URL != "":
		return &anthropicSource{Type: "url", URL: block.URL}
	default:
		return nil
	}
}

// toolResultContent passes string content through and renders anything else
// as text, since Anthropic accepts only a string or content blocks here.
func toolResultContent(block ai.ContentBlock) json.RawMessage {
	content := bytes.TrimSpace(block.Content)
	if len(content) > 0 && content[0] == '"' {
		return content
	}
	encoded, err := json.Marshal(block.ResultText())
	if err != nil {
		return json.RawMessage(`""`)
	}
	return encoded
}

// buildAnthropicTools converts tool definitions. With prompt caching,
// cache_control goes on the last tool so the whole list is cached together.
func buildAnthropicTools(tools []ai.ToolDefinition, promptCaching bool) []anthropicTool {
	if len(tools) == 0 {
		return nil
	}

	result := make([]anthropicTool, 0, len(tools))
	for _, tool := range tools {
		schema := bytes.TrimSpace(tool.InputSchema)
		if len(schema) == 0 || string(schema) == "null" {
			schema = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		result = append(result, anthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}

	if promptCaching {
		result[len(result)-1].CacheControl = &anthropicCacheControl{Type: "ephemeral"}
	}
	return result
}

// mapStopReason normalizes Anthropic stop reasons.
func mapStopReason(stopReason string) ai.StopReason {
	switch stopReason {
	case "tool_use":
		return ai.StopToolUse
	case "max_tokens", "model_context_window_exceeded":
		return ai.StopMaxTokens
	default:
		// end_turn, stop_sequence, pause_turn, refusal
		return ai.StopEndTurn
	}
}

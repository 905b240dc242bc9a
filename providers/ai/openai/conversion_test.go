package openai

import (
	"encoding/json"
	"testing"

	"github.com/leofalp/streamgate/providers/ai"
)

func floatPtr(value float64) *float64 { return &value }

func TestRequestToChatCompletion_Basics(t *testing.T) {
	req := requestToChatCompletion(ai.ChatRequest{
		Model:       "gpt-4o",
		System:      "be brief",
		MaxTokens:   256,
		Temperature: floatPtr(0.5),
		Messages:    []ai.Message{ai.TextMessage(ai.RoleUser, "hi")},
		Tools:       []ai.ToolDefinition{{Name: "lookup", Description: "d"}},
	}, detectCapabilities(defaultBaseURL))

	if !req.Stream || req.StreamOptions == nil || !req.StreamOptions.IncludeUsage {
		t.Error("expected stream=true with include_usage")
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[0].Content != "be brief" {
		t.Fatalf("expected system prompt as the first message, got %+v", req.Messages)
	}
	if req.Messages[1].Content != "hi" {
		t.Errorf("expected plain string user content, got %#v", req.Messages[1].Content)
	}
	if req.MaxTokens == nil || *req.MaxTokens != 256 || req.Temperature == nil || *req.Temperature != 0.5 {
		t.Errorf("expected max_tokens and temperature, got %+v", req)
	}
	if req.ReasoningEffort != "" || req.MaxCompletionTokens != nil {
		t.Error("non-reasoning models must not get reasoning fields")
	}
	if string(req.Tools[0].Function.Parameters) != `{"type":"object","properties":{}}` {
		t.Errorf("expected default parameters, got %s", req.Tools[0].Function.Parameters)
	}
}

func TestRequestToChatCompletion_ReasoningModels(t *testing.T) {
	tests := []struct {
		model    string
		budget   int
		expected string
	}{
		{"o1-mini", 0, "medium"},
		{"o3", 2048, "low"},
		{"o4-mini", 8192, "medium"},
		{"gpt-5", 32000, "high"},
		{"openai/gpt-5-mini", 0, "medium"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			req := requestToChatCompletion(ai.ChatRequest{
				Model:          tt.model,
				MaxTokens:      1000,
				Temperature:    floatPtr(0.2),
				ThinkingBudget: tt.budget,
				Messages:       []ai.Message{ai.TextMessage(ai.RoleUser, "hi")},
			}, Capabilities{})

			if req.ReasoningEffort != tt.expected {
				t.Errorf("reasoning_effort = %q, want %q", req.ReasoningEffort, tt.expected)
			}
			if req.MaxCompletionTokens == nil || *req.MaxCompletionTokens != 1000 {
				t.Errorf("expected max_completion_tokens 1000, got %v", req.MaxCompletionTokens)
			}
			if req.Temperature != nil || req.MaxTokens != nil {
				t.Error("reasoning models must not receive temperature or max_tokens")
			}
		})
	}
}

func TestRequestToChatCompletion_GeminiCompatThinking(t *testing.T) {
	req := requestToChatCompletion(ai.ChatRequest{
		Model:          "gemini-2.5-flash",
		Thinking:       true,
		ThinkingBudget: 20000,
		Messages:       []ai.Message{ai.TextMessage(ai.RoleUser, "hi")},
	}, detectCapabilities(geminiCompatBaseURL))

	if req.ReasoningEffort != "high" {
		t.Errorf("expected reasoning_effort high, got %q", req.ReasoningEffort)
	}
}

func TestBuildMessages_ToolRoundTrip(t *testing.T) {
	messages := []ai.Message{
		ai.TextMessage(ai.RoleUser, "weather?"),
		{Role: ai.RoleAssistant, Content: []ai.ContentBlock{
			{Type: ai.BlockThinking, Text: "dropped"},
			{Type: ai.BlockText, Text: "Checking."},
			{Type: ai.BlockToolUse, ID: "c1", Name: "get_weather", Input: json.RawMessage(`{"city":"NYC"}`)},
			{Type: ai.BlockToolUse, ID: "c2", Name: "get_time"},
		}},
		{Role: ai.RoleUser, Content: []ai.ContentBlock{
			{Type: ai.BlockToolResult, ToolUseID: "c1", Content: json.RawMessage(`"sunny"`)},
			{Type: ai.BlockToolResult, ToolUseID: "c2", Content: json.RawMessage(`[{"type":"text","text":"noon"}]`)},
			{Type: ai.BlockText, Text: "thanks"},
		}},
	}

	result := buildMessages("", messages, Capabilities{})
	if len(result) != 5 {
		t.Fatalf("expected user, assistant, tool, tool, user; got %d: %+v", len(result), result)
	}

	assistant := result[1]
	if assistant.Content != "Checking." || len(assistant.ToolCalls) != 2 {
		t.Fatalf("unexpected assistant message %+v", assistant)
	}
	if assistant.ToolCalls[0].Function.Arguments != `{"city":"NYC"}` || assistant.ToolCalls[1].Function.Arguments != `{}` {
		t.Errorf("unexpected arguments %+v", assistant.ToolCalls)
	}

	if result[2].Role != "tool" || result[2].ToolCallID != "c1" || result[2].Content != "sunny" {
		t.Errorf("unexpected first tool message %+v", result[2])
	}
	if result[3].Role != "tool" || result[3].ToolCallID != "c2" || result[3].Content != "noon" {
		t.Errorf("unexpected second tool message %+v", result[3])
	}
	if result[4].Role != "user" || result[4].Content != "thanks" {
		t.Errorf("unexpected trailing user message %+v", result[4])
	}
}

func TestBuildMessages_ToolRoleOnlyResults(t *testing.T) {
	result := buildMessages("", []ai.Message{
		{Role: ai.RoleTool, Content: []ai.ContentBlock{
			{Type: ai.BlockToolResult, ToolUseID: "c9", Content: json.RawMessage(`{"ok":true}`)},
		}},
	}, Capabilities{})

	if len(result) != 1 || result[0].Role != "tool" || result[0].ToolCallID != "c9" || result[0].Content != `{"ok":true}` {
		t.Errorf("unexpected messages %+v", result)
	}
}

func TestBuildMessages_AssistantToolCallsOnlyHasNullContent(t *testing.T) {
	result := buildMessages("", []ai.Message{
		{Role: ai.RoleAssistant, Content: []ai.ContentBlock{
			{Type: ai.BlockToolUse, ID: "c1", Name: "noop"},
		}},
	}, Capabilities{})

	data, err := json.Marshal(result[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := `{"role":"assistant","content":null,"tool_calls":[{"id":"c1","type":"function","function":{"name":"noop","arguments":"{}"}}]}`
	if string(data) != expected {
		t.Errorf("got %s\nwant %s", data, expected)
	}
}

func TestBuildMessages_ImagesAndPlaceholders(t *testing.T) {
	messages := []ai.Message{
		{Role: ai.RoleUser, Content: []ai.ContentBlock{
			{Type: ai.BlockText, Text: "what is this?"},
			{Type: ai.BlockImage, MediaType: "image/jpeg", Data: "AAAA"},
			{Type: ai.BlockImage, URL: "https://example.com/cat.png"},
		}},
		{Role: ai.RoleAssistant, Content: []ai.ContentBlock{{Type: ai.BlockThinking, Text: "only thinking"}}},
		{Role: ai.RoleUser},
	}

	result := buildMessages("", messages, Capabilities{SupportsVision: true})
	parts, ok := result[0].Content.([]contentPart)
	if !ok || len(parts) != 3 {
		t.Fatalf("expected 3 content parts, got %#v", result[0].Content)
	}
	if parts[1].ImageURL.URL != "data:image/jpeg;base64,AAAA" {
		t.Errorf("unexpected data URI %q", parts[1].ImageURL.URL)
	}
	if parts[2].ImageURL.URL != "https://example.com/cat.png" {
		t.Errorf("unexpected image URL %q", parts[2].ImageURL.URL)
	}
	if result[1].Content != ai.PlaceholderText || result[2].Content != ai.PlaceholderText {
		t.Errorf("expected placeholders, got %+v / %+v", result[1], result[2])
	}

	textOnly := buildMessages("", messages[:1], Capabilities{})
	if textOnly[0].Content != "what is this?" {
		t.Errorf("without vision images must be dropped, got %#v", textOnly[0].Content)
	}
}

func TestDetectCapabilities(t *testing.T) {
	if detectCapabilities(deepSeekBaseURL).SupportsVision {
		t.Error("DeepSeek must not accept images")
	}
	if !detectCapabilities(geminiCompatBaseURL).ThinkingViaReasoningEffort {
		t.Error("Gemini compat maps thinking to reasoning_effort")
	}
	if !detectCapabilities(defaultBaseURL).SupportsVision {
		t.Error("OpenAI accepts images")
	}
}

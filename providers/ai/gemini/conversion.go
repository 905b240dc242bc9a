package gemini

import (
	"bytes"
	"encoding/json"
	"mime"
	"path"

	"github.com/tidwall/gjson"

	"github.com/leofalp/streamgate/providers/ai"
)

const (
	roleUser  = "user"
	roleModel = "model"
)

// requestToGemini converts an ai.ChatRequest to a Gemini generateContentRequest.
func requestToGemini(request ai.ChatRequest) generateContentRequest {
	req := generateContentRequest{
		Contents:         buildContents(request.Messages),
		GenerationConfig: buildGenerationConfig(request),
		Tools:            buildTools(request.Tools),
	}

	if request.System != "" {
		req.SystemInstruction = &systemInstruction{
			Parts: []part{{Text: request.System}},
		}
	}

	return req
}

// buildContents converts canonical messages into Gemini turns.
//
// Gemini only knows the user and model roles, rejects two consecutive turns
// with the same role and requires the conversation to open with a user turn.
// Tool results travel as functionResponse parts, which must sit in a user
// turn, so a message carrying them is split: its own parts first, then a user
// turn with the responses.
func buildContents(messages []ai.Message) []content {
	var contents []content
	toolNames := make(map[string]string)

	for _, msg := range messages {
		role := roleUser
		if msg.Role == ai.RoleAssistant {
			role = roleModel
		}

		var parts, responses []part
		for _, block := range msg.Content {
			switch block.Type {
			case ai.BlockText:
				if block.Text != "" {
					parts = append(parts, part{Text: block.Text})
				}
			case ai.BlockImage:
				if imagePart, ok := imageToPart(block); ok {
					parts = append(parts, imagePart)
				}
			case ai.BlockToolUse:
				toolNames[block.ID] = block.Name
				parts = append(parts, part{
					FunctionCall:     &functionCall{Name: block.Name, Args: block.InputObject()},
					ThoughtSignature: block.ThoughtSignature,
				})
			case ai.BlockToolResult:
				responses = append(responses, part{
					FunctionResponse: &functionResponse{
						Name:     resolveToolName(toolNames, block),
						Response: toolResultObject(block),
					},
				})
			}
		}

		if len(parts) == 0 && len(responses) == 0 {
			parts = []part{{Text: ai.PlaceholderText}}
		}
		if len(parts) > 0 {
			contents = appendTurn(contents, role, parts)
		}
		if len(responses) > 0 {
			contents = appendTurn(contents, roleUser, responses)
		}
	}

	if len(contents) == 0 || contents[0].Role != roleUser {
		contents = append([]content{{Role: roleUser, Parts: []part{{Text: ai.PlaceholderText}}}}, contents...)
	}
	return contents
}

// appendTurn adds parts as a new turn, or to the last turn when it has the
// same role.
func appendTurn(contents []content, role string, parts []part) []content {
	if last := len(contents) - 1; last >= 0 && contents[last].Role == role {
		contents[last].Parts = append(contents[last].Parts, parts...)
		return contents
	}
	return append(contents, content{Role: role, Parts: parts})
}

// resolveToolName finds the function name a tool result answers. The name
// recorded for the tool_use id wins; the block's own name and finally the id
// itself are fallbacks for results whose call is not in the conversation.
func resolveToolName(toolNames map[string]string, block ai.ContentBlock) string {
	if name, ok := toolNames[block.ToolUseID]; ok && name != "" {
		return name
	}
	if block.Name != "" {
		return block.Name
	}
	return block.ToolUseID
}

// toolResultObject returns the functionResponse.response object. Gemini
// requires an object, so any other result is wrapped as {"result": ...}, or
// {"error": ...} for failed tool runs.
func toolResultObject(block ai.ContentBlock) json.RawMessage {
	key := "result"
	if block.IsError {
		key = "error"
	}

	raw := bytes.TrimSpace(block.Content)
	if !block.IsError && gjson.ValidBytes(raw) && gjson.ParseBytes(raw).IsObject() {
		return raw
	}

	text := block.ResultText()
	if !block.IsError && gjson.Valid(text) && gjson.Parse(text).IsObject() {
		return json.RawMessage(text)
	}

	wrapped, _ := json.Marshal(map[string]string{key: text})
	return wrapped
}

// imageToPart maps an image block to inline data or a file reference.
func imageToPart(block ai.ContentBlock) (part, bool) {
	mimeType := block.MediaType
	if block.Data != "" {
		if mimeType == "" {
			mimeType = "image/png"
		}
		return part{InlineData: &inlineData{MimeType: mimeType, Data: block.Data}}, true
	}
	if block.URL != "" {
		if mimeType == "" {
			mimeType = mime.TypeByExtension(path.Ext(block.URL))
		}
		if mimeType == "" {
			mimeType = "image/png"
		}
		return part{FileData: &fileData{MimeType: mimeType, FileURI: block.URL}}, true
	}
	return part{}, false
}

func buildGenerationConfig(request ai.ChatRequest) *generationConfig {
	gc := &generationConfig{}
	empty := true

	if request.Temperature != nil {
		temperature := *request.Temperature
		gc.Temperature = &temperature
		empty = false
	}
	if request.MaxTokens > 0 {
		maxTokens := request.MaxTokens
		gc.MaxOutputTokens = &maxTokens
		empty = false
	}
	if request.Thinking {
		gc.ThinkingConfig = &thinkingConfig{IncludeThoughts: true}
		if request.ThinkingBudget > 0 {
			budget := request.ThinkingBudget
			gc.ThinkingConfig.ThinkingBudget = &budget
		}
		empty = false
	}

	if empty {
		return nil
	}
	return gc
}

// buildTools declares every tool in a single functionDeclarations entry.
// Schemas are sanitized; a schema without properties is omitted since Gemini
// rejects empty OBJECT declarations.
func buildTools(tools []ai.ToolDefinition) []tool {
	if len(tools) == 0 {
		return nil
	}

	declarations := make([]functionDeclaration, 0, len(tools))
	for _, definition := range tools {
		declaration := functionDeclaration{
			Name:        definition.Name,
			Description: definition.Description,
		}
		if schema := SanitizeSchema(definition.InputSchema); hasProperties(schema) {
			declaration.Parameters = schema
		}
		declarations = append(declarations, declaration)
	}

	return []tool{{FunctionDeclarations: declarations}}
}

func hasProperties(schema json.RawMessage) bool {
	if len(schema) == 0 {
		return false
	}
	properties := gjson.GetBytes(schema, "properties")
	return properties.IsObject() && len(properties.Map()) > 0
}

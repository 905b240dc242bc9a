package gemini

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/leofalp/streamgate/internal/utils"
	"github.com/leofalp/streamgate/providers/ai"
)

// newToolCallID generates ids for function calls the upstream left unnamed.
var newToolCallID = func() string {
	return "call_" + uuid.NewString()
}

// streamSession maps streamGenerateContent events. Gemini never fragments a
// function call, so there is no accumulator: every call is emitted as soon
// as its part arrives.
type streamSession struct {
	model        string
	usage        ai.Usage
	finishReason string
	thinkingOpen bool
	sawToolCall  bool
}

func newStreamSession(model string) *streamSession {
	return &streamSession{model: model}
}

// MapEvent implements [ai.EventMapper].
func (session *streamSession) MapEvent(payload json.RawMessage) ([]ai.StreamEvent, error) {
	var response generateContentResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, nil
	}

	if response.Error != nil {
		return nil, fmt.Errorf("upstream stream error (%d %s): %s", response.Error.Code, response.Error.Status, response.Error.Message)
	}
	if response.UsageMetadata != nil {
		session.usage.InputTokens = response.UsageMetadata.PromptTokenCount
		session.usage.OutputTokens = response.UsageMetadata.CandidatesTokenCount + response.UsageMetadata.ThoughtsTokenCount
	}
	if len(response.Candidates) == 0 {
		if response.PromptFeedback != nil && response.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("prompt blocked by upstream: %s", response.PromptFeedback.BlockReason)
		}
		return nil, nil
	}

	var events []ai.StreamEvent
	candidate := response.Candidates[0]

	if candidate.Content != nil {
		for _, p := range candidate.Content.Parts {
			switch {
			case p.FunctionCall != nil:
				events = session.closeThinking(events)
				events = append(events, ai.ToolUseEvent(session.toolUse(p)))
			case p.Thought && p.Text != "":
				if !session.thinkingOpen {
					session.thinkingOpen = true
					events = append(events, ai.ThinkingStart())
				}
				events = append(events, ai.ThinkingDelta(p.Text))
				if p.ThoughtSignature != "" {
					events = append(events, ai.SignatureDelta(p.ThoughtSignature))
				}
			case p.Text != "":
				events = session.closeThinking(events)
				events = append(events, ai.TextDelta(p.Text))
				// Gemini may sign plain text parts too; clients echo the signature back.
				if p.ThoughtSignature != "" {
					events = append(events, ai.SignatureDelta(p.ThoughtSignature))
				}
			}
		}
	}

	if candidate.FinishReason != "" {
		session.finishReason = candidate.FinishReason
		events = session.closeThinking(events)
	}

	return events, nil
}

// Finish implements [ai.EventMapper].
func (session *streamSession) Finish() []ai.StreamEvent {
	return session.closeThinking(nil)
}

// Done implements [ai.EventMapper].
func (session *streamSession) Done() ai.StreamEvent {
	return ai.DoneEvent(session.model, session.usage, session.stopReason())
}

// Usage implements [ai.EventMapper].
func (session *streamSession) Usage() ai.Usage {
	return session.usage
}

func (session *streamSession) stopReason() ai.StopReason {
	switch {
	case session.finishReason == "MAX_TOKENS":
		return ai.StopMaxTokens
	case session.sawToolCall:
		return ai.StopToolUse
	default:
		return ai.StopEndTurn
	}
}

func (session *streamSession) toolUse(p part) ai.ToolUse {
	session.sawToolCall = true

	id := p.FunctionCall.ID
	if id == "" {
		id = newToolCallID()
	}
	return ai.ToolUse{
		ID:               id,
		Name:             p.FunctionCall.Name,
		Input:            argsObject(p.FunctionCall.Args),
		ThoughtSignature: p.ThoughtSignature,
	}
}

func (session *streamSession) closeThinking(events []ai.StreamEvent) []ai.StreamEvent {
	if !session.thinkingOpen {
		return events
	}
	session.thinkingOpen = false
	return append(events, ai.ThinkingStop())
}

// argsObject returns functionCall args as a JSON object, "{}" when absent.
func argsObject(args json.RawMessage) json.RawMessage {
	args = bytes.TrimSpace(args)
	if len(args) == 0 || string(args) == "null" {
		return json.RawMessage("{}")
	}
	if gjson.ValidBytes(args) && gjson.ParseBytes(args).IsObject() {
		return args
	}

	object, _ := utils.ParseJSONObject(string(args))
	encoded, err := json.Marshal(object)
	if err != nil {
		return json.RawMessage("{}")
	}
	return encoded
}

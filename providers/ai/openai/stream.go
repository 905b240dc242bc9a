package openai

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/leofalp/streamgate/providers/ai"
)

// streamSession is the per-request state machine over chat completion chunks.
// Tool call fragments are merged by their tool_calls index, never by name.
type streamSession struct {
	model        string
	usage        ai.Usage
	finishReason string
	thinkingOpen bool
	sawToolCalls bool
	toolCalls    ai.ToolCallAccumulator
}

func newStreamSession(model string) *streamSession {
	return &streamSession{model: model}
}

// MapEvent implements [ai.EventMapper].
func (session *streamSession) MapEvent(payload json.RawMessage) ([]ai.StreamEvent, error) {
	var chunk chatCompletionStreamChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return nil, nil
	}

	if chunk.Error != nil {
		return nil, fmt.Errorf("upstream stream error: %s", chunk.Error.Message)
	}
	if chunk.Model != "" {
		session.model = chunk.Model
	}
	if chunk.Usage != nil {
		session.usage.InputTokens = chunk.Usage.PromptTokens
		session.usage.OutputTokens = chunk.Usage.CompletionTokens
	}
	if len(chunk.Choices) == 0 {
		return nil, nil
	}

	var events []ai.StreamEvent
	choice := chunk.Choices[0]
	delta := choice.Delta

	reasoning := delta.ReasoningContent
	if reasoning == nil {
		reasoning = delta.Reasoning
	}
	if reasoning != nil && *reasoning != "" {
		if !session.thinkingOpen {
			session.thinkingOpen = true
			events = append(events, ai.ThinkingStart())
		}
		events = append(events, ai.ThinkingDelta(*reasoning))
	}

	if delta.Content != nil && *delta.Content != "" {
		events = session.closeThinking(events)
		events = append(events, ai.TextDelta(*delta.Content))
	}

	if len(delta.ToolCalls) > 0 {
		events = session.closeThinking(events)
		session.sawToolCalls = true
		for _, part := range delta.ToolCalls {
			session.toolCalls.Merge(strconv.Itoa(part.Index), part.Index, part.ID, part.Function.Name, part.Function.Arguments)
		}
	}

	if choice.FinishReason != nil && *choice.FinishReason != "" {
		session.finishReason = *choice.FinishReason
		if session.finishReason == "tool_calls" || session.finishReason == "stop" {
			events = session.closeThinking(events)
			events = session.flushToolCalls(events)
		}
	}

	return events, nil
}

// Finish implements [ai.EventMapper].
func (session *streamSession) Finish() []ai.StreamEvent {
	events := session.closeThinking(nil)
	return session.flushToolCalls(events)
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
	case session.finishReason == "length":
		return ai.StopMaxTokens
	case session.sawToolCalls || session.finishReason == "tool_calls":
		return ai.StopToolUse
	default:
		return ai.StopEndTurn
	}
}

func (session *streamSession) closeThinking(events []ai.StreamEvent) []ai.StreamEvent {
	if !session.thinkingOpen {
		return events
	}
	session.thinkingOpen = false
	return append(events, ai.ThinkingStop())
}

func (session *streamSession) flushToolCalls(events []ai.StreamEvent) []ai.StreamEvent {
	for _, toolUse := range session.toolCalls.FinalizeAll() {
		events = append(events, ai.ToolUseEvent(toolUse))
	}
	return events
}

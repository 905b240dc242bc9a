package anthropic

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/leofalp/streamgate/providers/ai"
)

// streamSession is the per-request state machine over Anthropic SSE events.
//
// Anthropic SSE lifecycle:
//
//	message_start → content_block_start → content_block_delta(s) →
//	content_block_stop → message_delta → message_stop
type streamSession struct {
	model      string
	usage      ai.Usage
	stopReason ai.StopReason

	// blockTypes records the type of every open content block by index, so
	// content_block_stop knows what it is closing.
	blockTypes map[int]string
	toolCalls  ai.ToolCallAccumulator
}

func newStreamSession(model string) *streamSession {
	return &streamSession{
		model:      model,
		stopReason: ai.StopEndTurn,
		blockTypes: make(map[int]string),
	}
}

// MapEvent implements [ai.EventMapper].
func (session *streamSession) MapEvent(payload json.RawMessage) ([]ai.StreamEvent, error) {
	var event streamEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		// A payload that is valid JSON but not an event object is noise.
		return nil, nil
	}

	switch event.Type {
	case "message_start":
		if event.Message != nil {
			session.usage.InputTokens = event.Message.Usage.InputTokens
			if event.Message.Usage.OutputTokens > 0 {
				session.usage.OutputTokens = event.Message.Usage.OutputTokens
			}
			if event.Message.Model != "" {
				session.model = event.Message.Model
			}
		}

	case "content_block_start":
		if event.ContentBlock == nil {
			return nil, nil
		}
		session.blockTypes[event.Index] = event.ContentBlock.Type

		switch event.ContentBlock.Type {
		case "thinking":
			return []ai.StreamEvent{ai.ThinkingStart()}, nil
		case "tool_use":
			// ID and name only travel on this event; arguments follow as
			// input_json_delta fragments keyed by the block index.
			session.toolCalls.Open(blockKey(event.Index), event.Index, event.ContentBlock.ID, event.ContentBlock.Name)
		}

	case "content_block_delta":
		if event.Delta == nil {
			return nil, nil
		}

		switch event.Delta.Type {
		case "text_delta":
			if event.Delta.Text != "" {
				return []ai.StreamEvent{ai.TextDelta(event.Delta.Text)}, nil
			}
		case "thinking_delta":
			if event.Delta.Thinking != "" {
				return []ai.StreamEvent{ai.ThinkingDelta(event.Delta.Thinking)}, nil
			}
		case "signature_delta":
			if event.Delta.Signature != "" {
				return []ai.StreamEvent{ai.SignatureDelta(event.Delta.Signature)}, nil
			}
		case "input_json_delta":
			session.toolCalls.Merge(blockKey(event.Index), event.Index, "", "", event.Delta.PartialJSON)
		}

	case "content_block_stop":
		blockType := session.blockTypes[event.Index]
		delete(session.blockTypes, event.Index)

		switch blockType {
		case "thinking":
			return []ai.StreamEvent{ai.ThinkingStop()}, nil
		case "tool_use":
			if toolUse, ok := session.toolCalls.Finalize(blockKey(event.Index)); ok {
				return []ai.StreamEvent{ai.ToolUseEvent(toolUse)}, nil
			}
		}

	case "message_delta":
		if event.Usage != nil {
			session.usage.OutputTokens = event.Usage.OutputTokens
			if event.Usage.InputTokens > 0 {
				session.usage.InputTokens = event.Usage.InputTokens
			}
		}
		if event.Delta != nil && event.Delta.StopReason != "" {
			session.stopReason = mapStopReason(event.Delta.StopReason)
		}

	case "error":
		message := "unknown stream error"
		if event.Error != nil {
			message = fmt.Sprintf("%s: %s", event.Error.Type, event.Error.Message)
		}
		return nil, fmt.Errorf("anthropic stream error: %s", message)

	default:
		// ping, message_stop and unknown types carry nothing to relay.
	}

	return nil, nil
}

// Finish closes blocks the upstream left open before ending the stream.
func (session *streamSession) Finish() []ai.StreamEvent {
	var events []ai.StreamEvent
	for _, blockType := range session.blockTypes {
		if blockType == "thinking" {
			events = append(events, ai.ThinkingStop())
			break
		}
	}
	session.blockTypes = make(map[int]string)

	for _, toolUse := range session.toolCalls.FinalizeAll() {
		events = append(events, ai.ToolUseEvent(toolUse))
	}
	return events
}

// Done implements [ai.EventMapper].
func (session *streamSession) Done() ai.StreamEvent {
	return ai.DoneEvent(session.model, session.usage, session.stopReason)
}

// Usage implements [ai.EventMapper].
func (session *streamSession) Usage() ai.Usage {
	return session.usage
}

func blockKey(index int) string {
	return strconv.Itoa(index)
}

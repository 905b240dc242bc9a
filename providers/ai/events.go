package ai

import "encoding/json"

// StreamEventType is also the outbound SSE event name.
type StreamEventType string

const (
	EventStart          StreamEventType = "start"
	EventTextDelta      StreamEventType = "text_delta"
	EventThinkingStart  StreamEventType = "thinking_start"
	EventThinkingDelta  StreamEventType = "thinking_delta"
	EventThinkingStop   StreamEventType = "thinking_stop"
	EventSignatureDelta StreamEventType = "signature_delta"
	EventToolUse        StreamEventType = "tool_use"
	EventDone           StreamEventType = "done"
	EventError          StreamEventType = "error"
)

// StreamEvent is one normalized event. Only the fields relevant to Type are set.
type StreamEvent struct {
	Type StreamEventType

	Model    string     // start, done
	Provider ProviderID // start

	Text      string // text_delta, thinking_delta
	Signature string // signature_delta

	ToolUse *ToolUse // tool_use

	Usage      Usage      // done
	StopReason StopReason // done

	Message string          // error
	Details json.RawMessage // error, optional
}

// Payload types are the JSON data of the outbound SSE events.

type StartPayload struct {
	Model    string     `json:"model"`
	Provider ProviderID `json:"provider"`
}

type TextPayload struct {
	Text string `json:"text"`
}

type SignaturePayload struct {
	Signature string `json:"signature"`
}

type DonePayload struct {
	InputTokens  int        `json:"inputTokens"`
	OutputTokens int        `json:"outputTokens"`
	Model        string     `json:"model"`
	StopReason   StopReason `json:"stopReason"`
}

type ErrorPayload struct {
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Payload returns the value serialized as the event's data line.
func (e StreamEvent) Payload() any {
	switch e.Type {
	case EventStart:
		return StartPayload{Model: e.Model, Provider: e.Provider}
	case EventTextDelta, EventThinkingDelta:
		return TextPayload{Text: e.Text}
	case EventSignatureDelta:
		return SignaturePayload{Signature: e.Signature}
	case EventToolUse:
		if e.ToolUse == nil {
			return ToolUse{Input: json.RawMessage("{}")}
		}
		return e.ToolUse
	case EventDone:
		return DonePayload{
			InputTokens:  e.Usage.InputTokens,
			OutputTokens: e.Usage.OutputTokens,
			Model:        e.Model,
			StopReason:   e.StopReason,
		}
	case EventError:
		return ErrorPayload{Message: e.Message, Details: e.Details}
	default:
		return struct{}{}
	}
}

// Convenience constructors used by the provider state machines.

func StartEvent(model string, provider ProviderID) StreamEvent {
	return StreamEvent{Type: EventStart, Model: model, Provider: provider}
}

func TextDelta(text string) StreamEvent {
	return StreamEvent{Type: EventTextDelta, Text: text}
}

func ThinkingStart() StreamEvent { return StreamEvent{Type: EventThinkingStart} }

func ThinkingDelta(text string) StreamEvent {
	return StreamEvent{Type: EventThinkingDelta, Text: text}
}

func ThinkingStop() StreamEvent { return StreamEvent{Type: EventThinkingStop} }

func SignatureDelta(signature string) StreamEvent {
	return StreamEvent{Type: EventSignatureDelta, Signature: signature}
}

func ToolUseEvent(toolUse ToolUse) StreamEvent {
	return StreamEvent{Type: EventToolUse, ToolUse: &toolUse}
}

func DoneEvent(model string, usage Usage, stopReason StopReason) StreamEvent {
	if stopReason == "" {
		stopReason = StopEndTurn
	}
	return StreamEvent{Type: EventDone, Model: model, Usage: usage, StopReason: stopReason}
}

func ErrorEvent(message string, details json.RawMessage) StreamEvent {
	return StreamEvent{Type: EventError, Message: message, Details: details}
}

package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"strings"

	"github.com/leofalp/streamgate/internal/utils"
	"github.com/leofalp/streamgate/providers/observability"
)

// ChatStream wraps a streaming iterator of normalized events.
//
// Callers must consume the stream, by ranging over Iter() (breaking early is
// fine) or by calling Collect(). The iterator owns the upstream response body
// and only releases it when iteration ends.
type ChatStream struct {
	iterator iter.Seq2[StreamEvent, error]
}

// NewChatStream creates a ChatStream from a raw iterator. A non-nil error is
// the last value the iterator yields.
func NewChatStream(iterator iter.Seq2[StreamEvent, error]) *ChatStream {
	return &ChatStream{iterator: iterator}
}

// Iter returns the underlying iterator for range-over-func consumption.
func (s *ChatStream) Iter() iter.Seq2[StreamEvent, error] {
	return s.iterator
}

// Collect consumes the whole stream into a ChatResult. On a mid-stream failure
// the partial result is returned together with the error.
func (s *ChatStream) Collect() (*ChatResult, error) {
	result := &ChatResult{}
	var text, thinking strings.Builder

	for event, err := range s.iterator {
		if err != nil {
			result.Text = text.String()
			result.Thinking = thinking.String()
			return result, err
		}

		switch event.Type {
		case EventStart:
			result.Model = event.Model
			result.Provider = event.Provider
		case EventTextDelta:
			text.WriteString(event.Text)
		case EventThinkingDelta:
			thinking.WriteString(event.Text)
		case EventSignatureDelta:
			result.Signature += event.Signature
		case EventToolUse:
			if event.ToolUse != nil {
				result.ToolUses = append(result.ToolUses, *event.ToolUse)
			}
		case EventDone:
			if event.Model != "" {
				result.Model = event.Model
			}
			result.Usage = event.Usage
			result.StopReason = event.StopReason
		}
	}

	result.Text = text.String()
	result.Thinking = thinking.String()
	return result, nil
}

// EventMapper is the per-request state machine of one provider. It is created
// fresh for every stream and never shared.
type EventMapper interface {
	// MapEvent turns one upstream JSON payload into zero or more events. An
	// error aborts the stream as a mid-stream failure.
	MapEvent(payload json.RawMessage) ([]StreamEvent, error)

	// Finish is called once at natural stream end and returns the events still
	// owed (closing brackets, pending tool calls), not including done.
	Finish() []StreamEvent

	// Done builds the terminal done event from the state seen so far.
	Done() StreamEvent

	// Usage returns the token counts seen so far.
	Usage() Usage
}

// StreamSSE runs the shared read loop over an upstream SSE body: it yields
// start, then every event produced by mapper in decode order, then Finish()
// and Done(). Read and mapping failures end the stream with *MidStreamError.
// The body is closed when iteration stops.
func StreamSSE(ctx context.Context, body io.ReadCloser, start StreamEvent, mapper EventMapper) *ChatStream {
	observer := observability.ObserverFromContext(ctx)

	iteratorFunc := func(yield func(StreamEvent, error) bool) {
		defer utils.CloseWithLog(body)

		if !yield(start, nil) {
			return
		}

		fail := func(err error) {
			if observer != nil {
				observer.Debug(ctx, "Upstream stream failed",
					observability.String(observability.AttrLLMProvider, string(start.Provider)),
					observability.Error(err),
				)
			}
			yield(StreamEvent{}, &MidStreamError{Err: err, Model: start.Model, Usage: mapper.Usage()})
		}

		scanner := utils.NewSSEScanner(body)
		for {
			payload, err := scanner.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = errors.Join(err, ctxErr)
				}
				fail(err)
				return
			}

			if observer != nil {
				observer.Trace(ctx, "Upstream event",
					observability.String(observability.AttrLLMProvider, string(start.Provider)),
					observability.String("payload", utils.TruncateStringDefault(string(payload))),
				)
			}

			events, err := mapper.MapEvent(payload)
			for _, event := range events {
				if !yield(event, nil) {
					return
				}
			}
			if err != nil {
				fail(err)
				return
			}
		}

		for _, event := range mapper.Finish() {
			if !yield(event, nil) {
				return
			}
		}
		yield(mapper.Done(), nil)
	}

	return NewChatStream(iteratorFunc)
}

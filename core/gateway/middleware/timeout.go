package middleware

import (
	"context"
	"time"

	"github.com/leofalp/streamgate/core/gateway"
	"github.com/leofalp/streamgate/providers/ai"
)

// NewTimeoutMiddleware puts a deadline on every relayed stream.
//
// The deadline covers the full stream, not only the time to the first byte:
// the derived context is cancelled when the stream reaches its done event,
// fails, or is abandoned by the caller. When it expires mid-stream the
// provider's body read fails and the stream ends with a *ai.MidStreamError, so
// the relay's interruption handling applies. A non-positive timeout returns a
// pass-through middleware.
func NewTimeoutMiddleware(timeout time.Duration) gateway.StreamMiddleware {
	return func(next gateway.StreamFunc) gateway.StreamFunc {
		if timeout <= 0 {
			return next
		}
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)

			stream, err := next(ctx, request)
			if err != nil {
				cancel()
				return nil, err
			}
			return wrapStreamWithCancel(stream, cancel), nil
		}
	}
}

// wrapStreamWithCancel calls cancel once the stream is over.
func wrapStreamWithCancel(stream *ai.ChatStream, cancel context.CancelFunc) *ai.ChatStream {
	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		defer cancel()

		for event, err := range stream.Iter() {
			if !yield(event, err) || err != nil || event.Type == ai.EventDone {
				return
			}
		}
	})
}

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrChannelClosed is returned by Send once the downstream is gone.
var ErrChannelClosed = errors.New("gateway: channel closed")

// Channel is the downstream side of a relay: it accepts one named event at a
// time, in order.
type Channel interface {
	Send(event string, payload any) error
}

// SSEChannel writes events to an HTTP response as server-sent events,
// flushing after each one. Response headers are written with the first event.
// After a failed write or once the request context is done, every Send is a
// no-op returning ErrChannelClosed. It is not safe for concurrent use.
type SSEChannel struct {
	ctx     context.Context
	writer  http.ResponseWriter
	flusher http.Flusher
	started bool
	err     error
}

// NewSSEChannel wraps writer, which must support flushing.
func NewSSEChannel(ctx context.Context, writer http.ResponseWriter) (*SSEChannel, error) {
	flusher, ok := writer.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming unsupported by response writer")
	}
	return &SSEChannel{ctx: ctx, writer: writer, flusher: flusher}, nil
}

// Send implements [Channel].
func (c *SSEChannel) Send(event string, payload any) error {
	if c.err != nil {
		return c.err
	}
	if err := c.ctx.Err(); err != nil {
		c.err = fmt.Errorf("%w: %w", ErrChannelClosed, err)
		return c.err
	}

	if !c.started {
		header := c.writer.Header()
		header.Set("Content-Type", "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
		header.Set("X-Accel-Buffering", "no")
		c.writer.WriteHeader(http.StatusOK)
		c.started = true
	}

	if err := writeSSE(c.writer, event, payload); err != nil {
		c.err = fmt.Errorf("%w: %w", ErrChannelClosed, err)
		return c.err
	}
	c.flusher.Flush()
	return nil
}

func writeSSE(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return nil
}

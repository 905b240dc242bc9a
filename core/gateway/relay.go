package gateway

import (
	"context"
	"errors"

	"github.com/leofalp/streamgate/providers/ai"
	"github.com/leofalp/streamgate/providers/observability"
)

// InterruptionNotice is appended to the answer text when the upstream fails
// after some text was already delivered.
const InterruptionNotice = "\n\n[Response interrupted: the upstream connection failed before the answer was complete.]"

// Relay forwards one request at a time from a provider to a Channel. A Relay
// holds no per-request state and is safe for concurrent use.
type Relay struct {
	registry *Registry
	chain    StreamFunc
	observer observability.Provider
}

// RelayOption configures a Relay.
type RelayOption func(*relayOptions)

type relayOptions struct {
	observer    observability.Provider
	middlewares []StreamMiddleware
}

// WithObserver enables logging, tracing and metrics. The observability
// middleware becomes the outermost wrapper of the chain.
func WithObserver(observer observability.Provider) RelayOption {
	return func(opts *relayOptions) {
		opts.observer = observer
	}
}

// WithMiddleware appends stream middlewares, applied in the given order
// inside the observability middleware.
func WithMiddleware(middlewares ...StreamMiddleware) RelayOption {
	return func(opts *relayOptions) {
		opts.middlewares = append(opts.middlewares, middlewares...)
	}
}

// NewRelay creates a Relay dispatching through registry.
func NewRelay(registry *Registry, options ...RelayOption) *Relay {
	opts := &relayOptions{}
	for _, option := range options {
		option(opts)
	}

	middlewares := opts.middlewares
	if opts.observer != nil {
		middlewares = append([]StreamMiddleware{NewObservabilityMiddleware(opts.observer)}, middlewares...)
	}

	return &Relay{
		registry: registry,
		chain:    buildStreamChain(registry, middlewares),
		observer: opts.observer,
	}
}

// Stream relays request to channel.
//
// Configuration errors and upstream rejections are reported as a single
// error event and Stream returns nil. Once the upstream stream is open every
// event is forwarded in order. If the stream fails after at least one
// non-empty text_delta was delivered, an open thinking block is closed, an
// explanatory text_delta is sent and the response ends with a done event
// whose stop reason is interrupted. A failure before any text is returned to
// the caller. Stream stops early, without error, when the channel is closed.
func (r *Relay) Stream(ctx context.Context, request ai.ChatRequest, channel Channel) error {
	route, err := r.registry.Resolve(request.Model, request.Provider)
	if err != nil {
		return r.reject(ctx, channel, err)
	}
	request.Model = route.Model
	request.Provider = string(route.Provider.ID())

	stream, err := r.chain(ctx, request)
	if err != nil {
		return r.reject(ctx, channel, err)
	}
	return r.forward(ctx, stream, channel, route)
}

func (r *Relay) forward(ctx context.Context, stream *ai.ChatStream, channel Channel, route Route) error {
	textEmitted := false
	thinkingOpen := false

	for event, err := range stream.Iter() {
		if err != nil {
			if !textEmitted {
				// Close an open thinking bracket before the caller emits the error event.
				if thinkingOpen {
					stop := ai.ThinkingStop()
					_ = channel.Send(string(stop.Type), stop.Payload())
				}
				return err
			}
			return r.interrupt(ctx, channel, route, err, thinkingOpen)
		}

		switch event.Type {
		case ai.EventTextDelta:
			if event.Text != "" {
				textEmitted = true
			}
		case ai.EventThinkingStart:
			thinkingOpen = true
		case ai.EventThinkingStop:
			thinkingOpen = false
		}

		if err := channel.Send(string(event.Type), event.Payload()); err != nil {
			r.debug(ctx, "downstream closed, abandoning upstream stream", observability.Error(err))
			return nil
		}
	}
	return nil
}

// interrupt ends a partially delivered response with the interruption
// notice and a done event carrying the usage seen before the failure.
func (r *Relay) interrupt(ctx context.Context, channel Channel, route Route, cause error, thinkingOpen bool) error {
	model := route.Model
	var usage ai.Usage

	var midStream *ai.MidStreamError
	if errors.As(cause, &midStream) {
		usage = midStream.Usage
		if midStream.Model != "" {
			model = midStream.Model
		}
	}

	if r.observer != nil {
		r.observer.Warn(ctx, "upstream stream interrupted after partial output",
			observability.String(observability.AttrLLMProvider, string(route.Provider.ID())),
			observability.String(observability.AttrLLMModel, model),
			observability.Bool(observability.AttrRequestInterrupted, true),
			observability.Error(cause),
		)
	}

	var events []ai.StreamEvent
	if thinkingOpen {
		events = append(events, ai.ThinkingStop())
	}
	events = append(events,
		ai.TextDelta(InterruptionNotice),
		ai.DoneEvent(model, usage, ai.StopInterrupted),
	)

	for _, event := range events {
		if err := channel.Send(string(event.Type), event.Payload()); err != nil {
			return nil
		}
	}
	return nil
}

// reject reports a failure that happened before any upstream event as one
// error event. Nothing is sent when the caller has already gone away.
func (r *Relay) reject(ctx context.Context, channel Channel, err error) error {
	if ctx.Err() != nil {
		return nil
	}

	event := ErrorEventFor(err)
	if r.observer != nil {
		r.observer.Warn(ctx, "request rejected",
			observability.Error(err),
			observability.String(observability.AttrErrorType, errorType(err)),
		)
	}

	_ = channel.Send(string(event.Type), event.Payload())
	return nil
}

// ErrorEventFor converts a failure into the outbound error event. Upstream
// rejections carry their raw body as details.
func ErrorEventFor(err error) ai.StreamEvent {
	var upstreamErr *ai.UpstreamError
	if errors.As(err, &upstreamErr) {
		return ai.ErrorEvent(upstreamErr.Error(), upstreamErr.Details)
	}
	return ai.ErrorEvent(err.Error(), nil)
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ai.ErrConfiguration):
		return "configuration"
	case errors.Is(err, ai.ErrUpstreamRejected):
		return "upstream_rejected"
	case errors.Is(err, ai.ErrStreamInterrupted):
		return "stream_interrupted"
	default:
		return "transport"
	}
}

func (r *Relay) debug(ctx context.Context, msg string, attrs ...observability.Attribute) {
	if r.observer != nil {
		r.observer.Debug(ctx, msg, attrs...)
	}
}

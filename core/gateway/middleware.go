package gateway

import (
	"context"
	"time"

	"github.com/leofalp/streamgate/providers/ai"
	"github.com/leofalp/streamgate/providers/observability"
)

// StreamFunc opens an upstream stream for a request whose Provider and Model
// fields have already been resolved.
type StreamFunc func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error)

// StreamMiddleware wraps a StreamFunc. It may wrap the returned ChatStream to
// observe or transform the event sequence.
type StreamMiddleware func(next StreamFunc) StreamFunc

// buildStreamChain constructs the middleware chain around a direct provider
// call. Middlewares are applied in reverse so that middlewares[0] is the
// outermost wrapper.
func buildStreamChain(registry *Registry, middlewares []StreamMiddleware) StreamFunc {
	var chain StreamFunc = func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
		provider, ok := registry.Provider(ai.ProviderID(request.Provider))
		if !ok {
			return nil, &ai.ConfigurationError{Provider: ai.ProviderID(request.Provider), Reason: "provider is not registered"}
		}
		return provider.StreamMessage(ctx, request)
	}

	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] != nil {
			chain = middlewares[i](chain)
		}
	}
	return chain
}

// NewObservabilityMiddleware records a span, request and error counters, a
// duration histogram and token counters for every relayed stream.
//
// The span and the observer are injected into the context before calling
// next, so providers can retrieve them via [observability.SpanFromContext] and
// [observability.ObserverFromContext]. Completion metrics are deferred until
// the stream iterator is fully consumed, abandoned or fails.
func NewObservabilityMiddleware(observer observability.Provider) StreamMiddleware {
	return func(next StreamFunc) StreamFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
			labels := []observability.Attribute{
				observability.String(observability.AttrLLMProvider, request.Provider),
				observability.String(observability.AttrLLMModel, request.Model),
			}

			ctx, span := observer.StartSpan(ctx, observability.SpanGatewayRelay, labels...)
			ctx = observability.ContextWithObserver(ctx, observer)

			observer.Debug(ctx, "relay stream",
				append(labels,
					observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
					observability.Int(observability.AttrRequestToolsCount, len(request.Tools)),
				)...,
			)

			start := time.Now()
			stream, err := next(ctx, request)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(observability.StatusError, "upstream stream failed to open")
				span.End()

				observer.Warn(ctx, "relay stream failed to open",
					append(labels,
						observability.Error(err),
						observability.Duration(observability.AttrDuration, time.Since(start)),
					)...,
				)
				observer.Counter(observability.MetricRelayRequests).Add(ctx, 1,
					append(labels, observability.String(observability.AttrStatus, "error"))...)
				observer.Counter(observability.MetricRelayErrors).Add(ctx, 1, labels...)
				return nil, err
			}

			span.AddEvent(observability.EventStreamStarted)
			return wrapStreamWithObservability(ctx, stream, span, observer, start, labels), nil
		}
	}
}

// wrapStreamWithObservability returns a ChatStream emitting the same events
// that records completion data when the stream ends, fails or is abandoned.
func wrapStreamWithObservability(
	ctx context.Context,
	stream *ai.ChatStream,
	span observability.Span,
	observer observability.Provider,
	start time.Time,
	labels []observability.Attribute,
) *ai.ChatStream {
	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		eventsCount := 0
		defer span.End()

		for event, err := range stream.Iter() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(observability.StatusError, "upstream stream interrupted")
				span.AddEvent(observability.EventStreamInterrupt)

				observer.Warn(ctx, "relay stream interrupted",
					append(labels,
						observability.Error(err),
						observability.Int(observability.AttrRequestEventsCount, eventsCount),
						observability.Duration(observability.AttrDuration, time.Since(start)),
					)...,
				)
				observer.Counter(observability.MetricRelayRequests).Add(ctx, 1,
					append(labels, observability.String(observability.AttrStatus, "interrupted"))...)
				observer.Counter(observability.MetricRelayInterruptions).Add(ctx, 1, labels...)

				yield(event, err)
				return
			}

			eventsCount++
			if event.Type == ai.EventDone {
				recordDone(ctx, span, observer, event, eventsCount, start, labels)
			}

			if !yield(event, nil) {
				span.SetStatus(observability.StatusOK, "relay stream abandoned")
				observer.Info(ctx, "relay stream abandoned",
					append(labels,
						observability.Int(observability.AttrRequestEventsCount, eventsCount),
						observability.Duration(observability.AttrDuration, time.Since(start)),
					)...,
				)
				return
			}
		}
	}

	return ai.NewChatStream(iteratorFunc)
}

// recordDone writes the success-path metrics, span attributes and log line.
func recordDone(
	ctx context.Context,
	span observability.Span,
	observer observability.Provider,
	done ai.StreamEvent,
	eventsCount int,
	start time.Time,
	labels []observability.Attribute,
) {
	elapsed := time.Since(start)

	observer.Histogram(observability.MetricRelayDuration).Record(ctx, elapsed.Seconds(), labels...)
	observer.Counter(observability.MetricRelayRequests).Add(ctx, 1,
		append(labels, observability.String(observability.AttrStatus, "success"))...)
	observer.Counter(observability.MetricTokensInput).Add(ctx, int64(done.Usage.InputTokens), labels...)
	observer.Counter(observability.MetricTokensOutput).Add(ctx, int64(done.Usage.OutputTokens), labels...)

	attrs := []observability.Attribute{
		observability.String(observability.AttrLLMStopReason, string(done.StopReason)),
		observability.Int(observability.AttrLLMTokensInput, done.Usage.InputTokens),
		observability.Int(observability.AttrLLMTokensOutput, done.Usage.OutputTokens),
		observability.Int(observability.AttrRequestEventsCount, eventsCount),
	}
	span.SetAttributes(attrs...)
	span.SetStatus(observability.StatusOK, "")
	span.AddEvent(observability.EventLLMRequestEnd)

	observer.Info(ctx, "relay stream completed",
		append(append(labels, attrs...), observability.Duration(observability.AttrDuration, elapsed))...,
	)
}

// Package observability defines the tracing, metrics and logging interfaces
// used across the gateway, plus the shared attribute and metric names.
//
// A [Provider] travels with each request through its [context.Context]
// ([ContextWithObserver] / [ObserverFromContext]); the active [Span] does the
// same via [ContextWithSpan] / [SpanFromContext]. The slogobs subpackage
// provides the log/slog backed implementation.
package observability

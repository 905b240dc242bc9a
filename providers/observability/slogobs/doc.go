// Package slogobs provides an observability.Provider backed by log/slog.
//
// Spans and metrics are rendered as DEBUG log records; counters keep their
// running totals in memory so they can be inspected with [Observer.CounterValue].
// Output format and level come from [WithFormat] and [WithLevel], or from the
// GATEWAY_LOG_FORMAT / GATEWAY_LOG_LEVEL environment variables.
package slogobs

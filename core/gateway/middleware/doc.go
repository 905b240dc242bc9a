// Package middleware provides stream middlewares for the gateway relay. Each
// one is built by a New* function returning a [gateway.StreamMiddleware] to be
// passed to [gateway.WithMiddleware].
//
//   - [NewTimeoutMiddleware] bounds the whole lifetime of one upstream stream.
//   - [NewLoggingMiddleware] writes slog entries when a stream opens and ends,
//     at three verbosity levels.
//
// Middlewares run outermost-first:
//
//	relay := gateway.NewRelay(registry,
//	    gateway.WithMiddleware(
//	        middleware.NewTimeoutMiddleware(5*time.Minute),
//	        middleware.NewLoggingMiddleware(slog.Default(), middleware.LogLevelStandard),
//	    ),
//	)
package middleware

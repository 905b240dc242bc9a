// Package gateway relays a normalized chat request to one upstream provider
// and streams the normalized events back to the caller.
//
// The [Registry] is the static dispatch table from [ai.ProviderID] to
// [ai.Provider]. The [Relay] resolves a route, opens the upstream stream
// through a middleware chain and forwards every event to a [Channel],
// degrading mid-stream failures to an interrupted done event once text has
// been delivered. [Handler] exposes the relay over HTTP as server-sent events.
package gateway

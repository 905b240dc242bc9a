package ai

import "context"

// Provider is the interface every upstream adapter implements. Providers are
// immutable after construction and safe for concurrent use; all per-request
// state lives inside the stream returned by StreamMessage.
type Provider interface {
	// ID returns the provider identifier used by the dispatch table.
	ID() ProviderID

	// Translate converts the canonical request into the provider's wire body.
	// It never fails on unmappable content (such blocks are dropped); errors
	// are reserved for requests that cannot be sent at all.
	Translate(request ChatRequest) (any, error)

	// StreamMessage opens the upstream stream. Configuration problems and
	// non-2xx upstream responses are returned as errors before any event is
	// produced. Failures after the stream is open are yielded through the
	// iterator as *MidStreamError.
	StreamMessage(ctx context.Context, request ChatRequest) (*ChatStream, error)
}

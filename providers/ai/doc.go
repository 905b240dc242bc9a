// Package ai defines the provider-agnostic conversation model, the normalized
// stream event vocabulary and the pieces shared by every upstream adapter.
//
// Requests arrive as [ChatRequest] holding canonical [Message] values made of
// [ContentBlock] unions. Each [Provider] translates them into its own wire body
// and returns a [ChatStream] of [StreamEvent] values. The shared read loop
// [StreamSSE] drives a per-request [EventMapper] over the upstream SSE body,
// and [ToolCallAccumulator] reassembles tool calls whose arguments arrive in
// fragments.
package ai

// Package gemini implements [ai.Provider] for Google's native Gemini API.
//
// It translates the canonical [ai.ChatRequest] into the streamGenerateContent
// wire format (user/model turns, functionCall and functionResponse parts,
// sanitized tool schemas) and maps the SSE response back into
// [ai.StreamEvent] values. Gemini delivers function calls whole, so every
// functionCall part becomes a complete tool_use event as soon as it arrives.
//
// The primary entry point is [New], which reads GEMINI_API_KEY and
// GEMINI_API_BASE_URL from the environment. Use [GeminiProvider.WithAPIKey],
// [GeminiProvider.WithBaseURL], or [GeminiProvider.WithHttpClient] to
// configure the provider programmatically.
package gemini

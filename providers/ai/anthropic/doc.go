// Package anthropic implements [ai.Provider] for Anthropic's Messages API.
//
// It translates canonical conversations into the Messages wire format
// (top-level system prompt, tool results as user turns, signed thinking
// blocks) and maps the streamed content_block_* events onto normalized
// stream events. The entry point is [New], which reads ANTHROPIC_API_KEY and
// ANTHROPIC_BASE_URL from the environment.
package anthropic

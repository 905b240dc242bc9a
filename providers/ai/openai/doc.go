// Package openai implements [ai.Provider] for the chat completions streaming
// protocol shared by OpenAI, DeepSeek and Gemini's OpenAI-compatible endpoint.
//
// [New], [NewDeepSeek] and [NewGeminiCompat] read their key and base URL from
// the environment; capabilities are detected from the base URL. Reasoning
// output (DeepSeek reasoning_content, or reasoning on other hosts) is
// bracketed with thinking_start/thinking_stop events, and fragmented tool
// calls are merged by their tool_calls index.
package openai

// Package utils provides the shared low-level plumbing used by every provider:
// the streaming HTTP POST helper ([DoPostStream]) with its idle-timeout body
// wrapper, the incremental SSE line decoder ([SSEDecoder], [SSEScanner]),
// best-effort error message extraction for rejected upstream calls, and the
// tolerant JSON object parser used to finalize streamed tool-call arguments.
package utils

package observability

// Attribute keys, span, event and metric names shared by the providers, the
// relay and the HTTP layer.

// --- LLM Provider Attributes ---

const (
	AttrLLMProvider     = "llm.provider"
	AttrLLMModel        = "llm.model"
	AttrLLMEndpoint     = "llm.endpoint"
	AttrLLMStopReason   = "llm.stop_reason"
	AttrLLMStreaming    = "llm.streaming"
	AttrLLMThinking     = "llm.thinking"
	AttrLLMTokensInput  = "llm.tokens.input"  // #nosec G101 -- LLM tokens, not credentials
	AttrLLMTokensOutput = "llm.tokens.output" // #nosec G101 -- LLM tokens, not credentials
)

// --- Request Attributes ---

const (
	AttrRequestID            = "request.id"
	AttrRequestMessagesCount = "request.messages_count"
	AttrRequestToolsCount    = "request.tools_count"
	AttrRequestEventsCount   = "request.events_count"
	AttrRequestInterrupted   = "request.interrupted"
)

// --- HTTP Attributes ---

const (
	AttrHTTPMethod          = "http.method"
	AttrHTTPPath            = "http.path"
	AttrHTTPStatusCode      = "http.status_code"
	AttrHTTPRequestBodySize = "http.request.body.size"
)

// --- General Attributes ---

const (
	AttrError             = "error"
	AttrErrorType         = "error.type"
	AttrDuration          = "duration"
	AttrStatus            = "status"
	AttrStatusDescription = "status_description"
)

// --- Span Names ---

const (
	SpanGatewayRelay = "gateway.relay"
)

// --- Event Names ---

const (
	EventLLMRequestStart = "llm.request.start"
	EventLLMRequestEnd   = "llm.request.end"
	EventStreamStarted   = "llm.stream.started"
	EventStreamInterrupt = "llm.stream.interrupted"
)

// --- Metric Names ---

const (
	MetricRelayRequests      = "streamgate.relay.requests"
	MetricRelayErrors        = "streamgate.relay.errors"
	MetricRelayInterruptions = "streamgate.relay.interruptions"
	MetricRelayDuration      = "streamgate.relay.duration"
	MetricTokensInput        = "streamgate.tokens.input"  // #nosec G101 -- LLM tokens, not credentials
	MetricTokensOutput       = "streamgate.tokens.output" // #nosec G101 -- LLM tokens, not credentials
)

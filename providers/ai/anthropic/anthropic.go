package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/leofalp/streamgate/internal/utils"
	"github.com/leofalp/streamgate/providers/ai"
	"github.com/leofalp/streamgate/providers/observability"
)

const (
	// defaultBaseURL is the canonical base URL for Anthropic's API.
	defaultBaseURL = "https://api.anthropic.com"

	// messagesEndpoint is the path for the Messages API endpoint.
	messagesEndpoint = "/v1/messages"

	// anthropicVersion pins the wire format independently of the URL.
	anthropicVersion = "2023-06-01"
)

// AnthropicProvider implements [ai.Provider] for Anthropic's Messages API.
// Use [New] to construct a ready-to-use instance.
type AnthropicProvider struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	capabilities Capabilities
	idleTimeout  time.Duration
}

var _ ai.Provider = (*AnthropicProvider)(nil)

// New returns an [AnthropicProvider] initialized from ANTHROPIC_API_KEY and
// ANTHROPIC_BASE_URL (defaulting to https://api.anthropic.com).
func New() *AnthropicProvider {
	baseURL := os.Getenv("ANTHROPIC_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &AnthropicProvider{
		apiKey:  os.Getenv("ANTHROPIC_API_KEY"),
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// WithAPIKey overrides the API key read from the environment.
func (p *AnthropicProvider) WithAPIKey(apiKey string) *AnthropicProvider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL overrides the API base URL, e.g. for a proxy or a test server.
func (p *AnthropicProvider) WithBaseURL(baseURL string) *AnthropicProvider {
	p.baseURL = baseURL
	return p
}

// WithHttpClient replaces the default [http.Client].
func (p *AnthropicProvider) WithHttpClient(httpClient *http.Client) *AnthropicProvider {
	p.client = httpClient
	return p
}

// WithCapabilities replaces the current [Capabilities].
func (p *AnthropicProvider) WithCapabilities(capabilities Capabilities) *AnthropicProvider {
	p.capabilities = capabilities
	return p
}

// WithIdleTimeout aborts a stream when no bytes arrive for timeout. Zero
// disables the check.
func (p *AnthropicProvider) WithIdleTimeout(timeout time.Duration) *AnthropicProvider {
	p.idleTimeout = timeout
	return p
}

// ID implements [ai.Provider].
func (p *AnthropicProvider) ID() ai.ProviderID {
	return ai.ProviderAnthropic
}

// Translate implements [ai.Provider].
func (p *AnthropicProvider) Translate(request ai.ChatRequest) (any, error) {
	return requestToAnthropic(request, p.capabilities)
}

// buildHeaders returns the headers for every request. Anthropic authenticates
// with x-api-key rather than a Bearer token.
func (p *AnthropicProvider) buildHeaders(thinking bool) []utils.HeaderOption {
	headers := []utils.HeaderOption{
		{Key: "x-api-key", Value: p.apiKey},
		{Key: "anthropic-version", Value: anthropicVersion},
	}
	if betaValue := p.capabilities.betaHeaderValue(thinking); betaValue != "" {
		headers = append(headers, utils.HeaderOption{Key: "anthropic-beta", Value: betaValue})
	}
	return headers
}

// StreamMessage implements [ai.Provider]. A missing key and non-2xx answers
// are returned as errors; failures after the stream opened are yielded as
// *ai.MidStreamError.
func (p *AnthropicProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	span := observability.SpanFromContext(ctx)
	observer := observability.ObserverFromContext(ctx)

	if span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, string(ai.ProviderAnthropic)),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Bool(observability.AttrLLMStreaming, true),
		)
	}

	if observer != nil {
		observer.Trace(ctx, "Anthropic provider preparing streaming request",
			observability.String(observability.AttrLLMProvider, string(ai.ProviderAnthropic)),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
			observability.Int(observability.AttrRequestToolsCount, len(request.Tools)),
			observability.Bool(observability.AttrLLMThinking, request.Thinking),
		)
	}

	if p.apiKey == "" {
		return nil, ai.NewMissingKeyError(ai.ProviderAnthropic, "ANTHROPIC_API_KEY")
	}

	anthropicReq, err := requestToAnthropic(request, p.capabilities)
	if err != nil {
		return nil, fmt.Errorf("failed to build Anthropic request: %w", err)
	}

	httpResponse, err := utils.DoPostStream(ctx, p.client, p.baseURL+messagesEndpoint, anthropicReq, p.buildHeaders(request.Thinking)...)
	if err != nil {
		if observer != nil {
			observer.Trace(ctx, "Streaming HTTP request failed", observability.Error(err))
		}
		return nil, ai.WrapRequestError(ai.ProviderAnthropic, err)
	}

	body := utils.WithIdleTimeout(httpResponse.Body, p.idleTimeout)
	start := ai.StartEvent(request.Model, ai.ProviderAnthropic)
	return ai.StreamSSE(ctx, body, start, newStreamSession(request.Model)), nil
}

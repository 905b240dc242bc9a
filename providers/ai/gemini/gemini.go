package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/leofalp/streamgate/internal/utils"
	"github.com/leofalp/streamgate/providers/ai"
	"github.com/leofalp/streamgate/providers/observability"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	apiKeyEnv      = "GEMINI_API_KEY"
)

// GeminiProvider implements [ai.Provider] for Google's native Gemini API.
type GeminiProvider struct {
	apiKey      string
	baseURL     string
	client      *http.Client
	idleTimeout time.Duration
}

var _ ai.Provider = (*GeminiProvider)(nil)

// New creates a new Gemini provider instance with default values from environment.
// Environment variables:
//   - GEMINI_API_KEY: API key for authentication
//   - GEMINI_API_BASE_URL: Base URL for API (optional, defaults to Google's API)
func New() *GeminiProvider {
	baseURL := os.Getenv("GEMINI_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &GeminiProvider{
		apiKey:  os.Getenv(apiKeyEnv),
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// WithAPIKey sets the API key for the provider.
func (p *GeminiProvider) WithAPIKey(apiKey string) *GeminiProvider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL sets the base URL for the API.
func (p *GeminiProvider) WithBaseURL(baseURL string) *GeminiProvider {
	p.baseURL = baseURL
	return p
}

// WithHttpClient sets a custom HTTP client.
func (p *GeminiProvider) WithHttpClient(httpClient *http.Client) *GeminiProvider {
	p.client = httpClient
	return p
}

// WithIdleTimeout aborts a stream when no bytes arrive for timeout. Zero
// disables the check.
func (p *GeminiProvider) WithIdleTimeout(timeout time.Duration) *GeminiProvider {
	p.idleTimeout = timeout
	return p
}

// ID implements [ai.Provider].
func (p *GeminiProvider) ID() ai.ProviderID {
	return ai.ProviderGemini
}

// Translate implements [ai.Provider].
func (p *GeminiProvider) Translate(request ai.ChatRequest) (any, error) {
	return requestToGemini(request), nil
}

// streamURL builds the streamGenerateContent endpoint. The key travels in the
// query string.
func (p *GeminiProvider) streamURL(model string) string {
	return fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse&key=%s",
		strings.TrimSuffix(p.baseURL, "/"), url.PathEscape(model), url.QueryEscape(p.apiKey))
}

// StreamMessage implements [ai.Provider].
func (p *GeminiProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	span := observability.SpanFromContext(ctx)
	observer := observability.ObserverFromContext(ctx)

	if span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, string(ai.ProviderGemini)),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Bool(observability.AttrLLMStreaming, true),
		)
	}

	if observer != nil {
		observer.Trace(ctx, "Gemini provider preparing streaming request",
			observability.String(observability.AttrLLMProvider, string(ai.ProviderGemini)),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
			observability.Int(observability.AttrRequestToolsCount, len(request.Tools)),
			observability.Bool(observability.AttrLLMThinking, request.Thinking),
		)
	}

	if p.apiKey == "" {
		return nil, ai.NewMissingKeyError(ai.ProviderGemini, apiKeyEnv)
	}
	if request.Model == "" {
		return nil, &ai.ConfigurationError{Provider: ai.ProviderGemini, Reason: "model is required"}
	}

	geminiReq := requestToGemini(request)
	httpResponse, err := utils.DoPostStream(ctx, p.client, p.streamURL(request.Model), geminiReq)
	if err != nil {
		err = p.redactKey(err)
		if observer != nil {
			observer.Trace(ctx, "Streaming HTTP request failed", observability.Error(err))
		}
		return nil, ai.WrapRequestError(ai.ProviderGemini, err)
	}

	body := utils.WithIdleTimeout(httpResponse.Body, p.idleTimeout)
	start := ai.StartEvent(request.Model, ai.ProviderGemini)
	return ai.StreamSSE(ctx, body, start, newStreamSession(request.Model)), nil
}

// redactKey rebuilds transport errors, which quote the full request URL,
// without the API key. Wrapped causes such as context cancellation survive.
func (p *GeminiProvider) redactKey(err error) error {
	var urlErr *url.Error
	if p.apiKey == "" || !errors.As(err, &urlErr) {
		return err
	}
	redacted := &url.Error{
		Op:  urlErr.Op,
		URL: strings.ReplaceAll(urlErr.URL, url.QueryEscape(p.apiKey), "REDACTED"),
		Err: urlErr.Err,
	}
	return fmt.Errorf("error sending stream request: %w", redacted)
}

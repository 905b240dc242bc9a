package openai

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
	defaultBaseURL          = "https://api.openai.com/v1"
	deepSeekBaseURL         = "https://api.deepseek.com"
	geminiCompatBaseURL     = "https://generativelanguage.googleapis.com/v1beta/openai"
	chatCompletionsEndpoint = "/chat/completions"
)

// OpenAIProvider implements [ai.Provider] for any host speaking the chat
// completions streaming protocol. The same type serves OpenAI, DeepSeek and
// Gemini's compatibility endpoint; only the id, key and base URL differ.
type OpenAIProvider struct {
	id           ai.ProviderID
	apiKeyEnv    string
	apiKey       string
	baseURL      string
	client       *http.Client
	capabilities Capabilities
	idleTimeout  time.Duration
}

var _ ai.Provider = (*OpenAIProvider)(nil)

// New returns the OpenAI provider configured from OPENAI_API_KEY and
// OPENAI_BASE_URL.
func New() *OpenAIProvider {
	return newCompatible(ai.ProviderOpenAI, "OPENAI_API_KEY", "OPENAI_BASE_URL", defaultBaseURL)
}

// NewDeepSeek returns the DeepSeek provider configured from DEEPSEEK_API_KEY
// and DEEPSEEK_BASE_URL.
func NewDeepSeek() *OpenAIProvider {
	return newCompatible(ai.ProviderDeepSeek, "DEEPSEEK_API_KEY", "DEEPSEEK_BASE_URL", deepSeekBaseURL)
}

// NewGeminiCompat returns Gemini served through its OpenAI-compatible
// endpoint, configured from GEMINI_API_KEY and GEMINI_OPENAI_BASE_URL.
func NewGeminiCompat() *OpenAIProvider {
	return newCompatible(ai.ProviderGeminiOpenAI, "GEMINI_API_KEY", "GEMINI_OPENAI_BASE_URL", geminiCompatBaseURL)
}

func newCompatible(id ai.ProviderID, keyEnv, baseURLEnv, fallbackBaseURL string) *OpenAIProvider {
	baseURL := os.Getenv(baseURLEnv)
	if baseURL == "" {
		baseURL = fallbackBaseURL
	}
	return &OpenAIProvider{
		id:           id,
		apiKeyEnv:    keyEnv,
		apiKey:       os.Getenv(keyEnv),
		baseURL:      baseURL,
		client:       &http.Client{},
		capabilities: detectCapabilities(baseURL),
	}
}

// WithAPIKey overrides the API key read from the environment.
func (p *OpenAIProvider) WithAPIKey(apiKey string) *OpenAIProvider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL overrides the base URL and re-detects capabilities for it.
func (p *OpenAIProvider) WithBaseURL(baseURL string) *OpenAIProvider {
	p.baseURL = baseURL
	p.capabilities = detectCapabilities(baseURL)
	return p
}

// WithHttpClient replaces the default [http.Client].
func (p *OpenAIProvider) WithHttpClient(httpClient *http.Client) *OpenAIProvider {
	p.client = httpClient
	return p
}

// WithCapabilities overrides the detected [Capabilities].
func (p *OpenAIProvider) WithCapabilities(capabilities Capabilities) *OpenAIProvider {
	p.capabilities = capabilities
	return p
}

// WithIdleTimeout aborts a stream when no bytes arrive for timeout. Zero
// disables the check.
func (p *OpenAIProvider) WithIdleTimeout(timeout time.Duration) *OpenAIProvider {
	p.idleTimeout = timeout
	return p
}

// GetCapabilities returns the capabilities currently in effect.
func (p *OpenAIProvider) GetCapabilities() Capabilities {
	return p.capabilities
}

// ID implements [ai.Provider].
func (p *OpenAIProvider) ID() ai.ProviderID {
	return p.id
}

// Translate implements [ai.Provider].
func (p *OpenAIProvider) Translate(request ai.ChatRequest) (any, error) {
	return requestToChatCompletion(request, p.capabilities), nil
}

// StreamMessage implements [ai.Provider].
func (p *OpenAIProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	span := observability.SpanFromContext(ctx)
	observer := observability.ObserverFromContext(ctx)

	if span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, string(p.id)),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Bool(observability.AttrLLMStreaming, true),
		)
	}

	if observer != nil {
		observer.Trace(ctx, "OpenAI-compatible provider preparing streaming request",
			observability.String(observability.AttrLLMProvider, string(p.id)),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
			observability.Int(observability.AttrRequestToolsCount, len(request.Tools)),
			observability.Bool("llm.reasoning_model", isReasoningModel(request.Model)),
		)
	}

	if p.apiKey == "" {
		return nil, ai.NewMissingKeyError(p.id, p.apiKeyEnv)
	}

	body := requestToChatCompletion(request, p.capabilities)
	httpResponse, err := utils.DoPostStream(ctx, p.client, p.baseURL+chatCompletionsEndpoint, body,
		utils.HeaderOption{Key: "Authorization", Value: fmt.Sprintf("Bearer %s", p.apiKey)},
	)
	if err != nil {
		if observer != nil {
			observer.Trace(ctx, "Streaming HTTP request failed", observability.Error(err))
		}
		return nil, ai.WrapRequestError(p.id, err)
	}

	stream := utils.WithIdleTimeout(httpResponse.Body, p.idleTimeout)
	return ai.StreamSSE(ctx, stream, ai.StartEvent(request.Model, p.id), newStreamSession(request.Model)), nil
}

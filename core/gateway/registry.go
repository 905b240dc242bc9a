package gateway

import (
	"fmt"
	"strings"

	"github.com/leofalp/streamgate/internal/config"
	"github.com/leofalp/streamgate/providers/ai"
	"github.com/leofalp/streamgate/providers/ai/anthropic"
	"github.com/leofalp/streamgate/providers/ai/gemini"
	"github.com/leofalp/streamgate/providers/ai/openai"
)

// RegistryEntry is one row of the dispatch table.
type RegistryEntry struct {
	Provider      ai.Provider
	DefaultModel  string
	KeyConfigured bool
}

// Registry maps provider ids to providers. It is read-only after construction
// and safe for concurrent use.
type Registry struct {
	entries         map[ai.ProviderID]RegistryEntry
	defaultProvider ai.ProviderID
}

// Route is the outcome of dispatch: the provider to call and the model to ask
// it for.
type Route struct {
	Provider ai.Provider
	Model    string
}

// ProviderInfo describes a registered provider for listings.
type ProviderInfo struct {
	ID            ai.ProviderID `json:"id"`
	DefaultModel  string        `json:"defaultModel"`
	KeyConfigured bool          `json:"keyConfigured"`
	Default       bool          `json:"default"`
}

// NewRegistry builds a registry from explicit entries. Later entries with the
// same id replace earlier ones.
func NewRegistry(defaultProvider ai.ProviderID, entries ...RegistryEntry) *Registry {
	registry := &Registry{
		entries:         make(map[ai.ProviderID]RegistryEntry, len(entries)),
		defaultProvider: defaultProvider,
	}
	for _, entry := range entries {
		registry.entries[entry.Provider.ID()] = entry
	}
	return registry
}

// NewRegistryFromConfig registers every known provider with the keys, base
// URLs, default models and idle timeout from cfg. Anthropic also receives its
// beta features and prompt caching switch.
func NewRegistryFromConfig(cfg *config.Config) *Registry {
	idleTimeout := cfg.Server.StreamIdleTimeout
	providers := cfg.Providers

	anthropicProvider := anthropic.New().
		WithAPIKey(providers.Anthropic.APIKey).
		WithIdleTimeout(idleTimeout).
		WithCapabilities(anthropic.Capabilities{
			PromptCaching: providers.Anthropic.PromptCaching,
			BetaFeatures:  providers.Anthropic.BetaFeatures,
		})
	if providers.Anthropic.BaseURL != "" {
		anthropicProvider.WithBaseURL(providers.Anthropic.BaseURL)
	}

	geminiProvider := gemini.New().
		WithAPIKey(providers.Gemini.APIKey).
		WithIdleTimeout(idleTimeout)
	if providers.Gemini.BaseURL != "" {
		geminiProvider.WithBaseURL(providers.Gemini.BaseURL)
	}

	compatible := func(provider *openai.OpenAIProvider, settings config.ProviderConfig) *openai.OpenAIProvider {
		provider.WithAPIKey(settings.APIKey).WithIdleTimeout(idleTimeout)
		if settings.BaseURL != "" {
			provider.WithBaseURL(settings.BaseURL)
		}
		return provider
	}

	entry := func(provider ai.Provider, settings config.ProviderConfig) RegistryEntry {
		return RegistryEntry{
			Provider:      provider,
			DefaultModel:  settings.DefaultModel,
			KeyConfigured: settings.APIKey != "",
		}
	}

	return NewRegistry(cfg.DefaultProviderID(),
		entry(anthropicProvider, providers.Anthropic),
		entry(compatible(openai.New(), providers.OpenAI), providers.OpenAI),
		entry(compatible(openai.NewDeepSeek(), providers.DeepSeek), providers.DeepSeek),
		entry(geminiProvider, providers.Gemini),
		entry(compatible(openai.NewGeminiCompat(), providers.GeminiOpenAI), providers.GeminiOpenAI),
	)
}

// modelPrefixes is the model-name dispatch table, checked in order.
var modelPrefixes = []struct {
	prefix   string
	provider ai.ProviderID
}{
	{"claude", ai.ProviderAnthropic},
	{"gemini-", ai.ProviderGemini},
	{"deepseek", ai.ProviderDeepSeek},
}

// ProviderForModel returns the provider a model name dispatches to when the
// request does not name one explicitly.
func ProviderForModel(model string) ai.ProviderID {
	model = strings.ToLower(strings.TrimSpace(model))
	for _, entry := range modelPrefixes {
		if strings.HasPrefix(model, entry.prefix) {
			return entry.provider
		}
	}
	return ai.ProviderOpenAI
}

// Resolve selects exactly one provider for a request. An explicit provider
// wins over the model prefix; an unknown or unregistered provider is a
// *ai.ConfigurationError, never a fallback. An empty model resolves to the
// selected provider's default model, and with neither model nor provider the
// registry's default provider is used.
func (r *Registry) Resolve(model, provider string) (Route, error) {
	model = strings.TrimSpace(model)

	var id ai.ProviderID
	switch {
	case strings.TrimSpace(provider) != "":
		parsed, ok := ai.ParseProviderID(provider)
		if !ok {
			return Route{}, &ai.ConfigurationError{
				Reason: fmt.Sprintf("unknown provider '%s' (known: %s)", provider, knownProviderList()),
			}
		}
		id = parsed
	case model == "":
		id = r.defaultProvider
	default:
		id = ProviderForModel(model)
	}

	entry, ok := r.entries[id]
	if !ok {
		return Route{}, &ai.ConfigurationError{Provider: id, Reason: "provider is not registered"}
	}

	if model == "" {
		model = entry.DefaultModel
	}
	if model == "" {
		return Route{}, &ai.ConfigurationError{Provider: id, Reason: "no model requested and no default model configured"}
	}
	return Route{Provider: entry.Provider, Model: model}, nil
}

// Provider returns the registered provider for id.
func (r *Registry) Provider(id ai.ProviderID) (ai.Provider, bool) {
	entry, ok := r.entries[id]
	return entry.Provider, ok
}

// Providers lists the registered providers in dispatch-table order.
func (r *Registry) Providers() []ProviderInfo {
	infos := make([]ProviderInfo, 0, len(r.entries))
	for _, id := range ai.KnownProviders {
		entry, ok := r.entries[id]
		if !ok {
			continue
		}
		infos = append(infos, ProviderInfo{
			ID:            id,
			DefaultModel:  entry.DefaultModel,
			KeyConfigured: entry.KeyConfigured,
			Default:       id == r.defaultProvider,
		})
	}
	return infos
}

func knownProviderList() string {
	names := make([]string, 0, len(ai.KnownProviders))
	for _, id := range ai.KnownProviders {
		names = append(names, string(id))
	}
	return strings.Join(names, ", ")
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/leofalp/streamgate/providers/ai"
)

const (
	DefaultAddr         = ":8080"
	DefaultMaxBodyBytes = 8 << 20 // 8 MiB; requests carry base64 images
	DefaultProvider     = ai.ProviderAnthropic
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"

	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 15 * time.Second
)

// DefaultModels holds the model used when a request names none.
var DefaultModels = map[ai.ProviderID]string{
	ai.ProviderAnthropic:    "claude-sonnet-4-5",
	ai.ProviderOpenAI:       "gpt-4o-mini",
	ai.ProviderDeepSeek:     "deepseek-chat",
	ai.ProviderGemini:       "gemini-2.5-flash",
	ai.ProviderGeminiOpenAI: "gemini-2.5-flash",
}

type Config struct {
	Server          ServerConfig    `yaml:"server"`
	Log             LogConfig       `yaml:"log"`
	DefaultProvider string          `yaml:"default_provider"`
	Providers       ProvidersConfig `yaml:"providers"`
}

type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`

	// StreamIdleTimeout aborts an upstream stream when no bytes arrive for
	// this long. Zero disables it.
	StreamIdleTimeout time.Duration `yaml:"stream_idle_timeout"`

	// StreamTimeout bounds the whole lifetime of one relayed stream. Zero
	// disables it.
	StreamTimeout time.Duration `yaml:"stream_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// ProviderConfig configures one upstream. Empty fields fall back to the
// provider's own defaults.
type ProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`

	// Anthropic only: extra anthropic-beta header values and cache_control
	// on the system prompt and the last tool.
	BetaFeatures  []string `yaml:"beta_features,omitempty"`
	PromptCaching bool     `yaml:"prompt_caching,omitempty"`
}

type ProvidersConfig struct {
	Anthropic    ProviderConfig `yaml:"anthropic"`
	OpenAI       ProviderConfig `yaml:"openai"`
	DeepSeek     ProviderConfig `yaml:"deepseek"`
	Gemini       ProviderConfig `yaml:"gemini"`
	GeminiOpenAI ProviderConfig `yaml:"gemini_openai"`
}

// Get returns the configuration of provider id.
func (p *ProvidersConfig) Get(id ai.ProviderID) *ProviderConfig {
	switch id {
	case ai.ProviderAnthropic:
		return &p.Anthropic
	case ai.ProviderOpenAI:
		return &p.OpenAI
	case ai.ProviderDeepSeek:
		return &p.DeepSeek
	case ai.ProviderGemini:
		return &p.Gemini
	case ai.ProviderGeminiOpenAI:
		return &p.GeminiOpenAI
	default:
		return nil
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Addr:              DefaultAddr,
			MaxBodyBytes:      DefaultMaxBodyBytes,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			ShutdownTimeout:   DefaultShutdownTimeout,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		DefaultProvider: string(DefaultProvider),
	}
	for _, id := range ai.KnownProviders {
		cfg.Providers.Get(id).DefaultModel = DefaultModels[id]
	}
	return cfg
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty), a .env file in the working directory and the process
// environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// godotenv never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// providerEnv names the environment variables of each provider.
var providerEnv = map[ai.ProviderID]struct{ key, baseURL, model string }{
	ai.ProviderAnthropic:    {"ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL", "ANTHROPIC_MODEL"},
	ai.ProviderOpenAI:       {"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL"},
	ai.ProviderDeepSeek:     {"DEEPSEEK_API_KEY", "DEEPSEEK_BASE_URL", "DEEPSEEK_MODEL"},
	ai.ProviderGemini:       {"GEMINI_API_KEY", "GEMINI_API_BASE_URL", "GEMINI_MODEL"},
	ai.ProviderGeminiOpenAI: {"GEMINI_API_KEY", "GEMINI_OPENAI_BASE_URL", "GEMINI_OPENAI_MODEL"},
}

func (c *Config) applyEnv() error {
	for _, id := range ai.KnownProviders {
		names := providerEnv[id]
		provider := c.Providers.Get(id)
		setFromEnv(&provider.APIKey, names.key)
		setFromEnv(&provider.BaseURL, names.baseURL)
		setFromEnv(&provider.DefaultModel, names.model)
	}

	if value := strings.TrimSpace(os.Getenv("ANTHROPIC_BETA_FEATURES")); value != "" {
		c.Providers.Anthropic.BetaFeatures = splitList(value)
	}
	if value := strings.TrimSpace(os.Getenv("ANTHROPIC_PROMPT_CACHING")); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("ANTHROPIC_PROMPT_CACHING: %w", err)
		}
		c.Providers.Anthropic.PromptCaching = enabled
	}

	setFromEnv(&c.Server.Addr, "GATEWAY_ADDR")
	setFromEnv(&c.DefaultProvider, "GATEWAY_DEFAULT_PROVIDER")
	setFromEnv(&c.Log.Level, "GATEWAY_LOG_LEVEL")
	setFromEnv(&c.Log.Format, "GATEWAY_LOG_FORMAT")

	if err := durationFromEnv(&c.Server.StreamIdleTimeout, "GATEWAY_STREAM_IDLE_TIMEOUT"); err != nil {
		return err
	}
	if err := durationFromEnv(&c.Server.StreamTimeout, "GATEWAY_STREAM_TIMEOUT"); err != nil {
		return err
	}
	if value := os.Getenv("GATEWAY_MAX_BODY_BYTES"); value != "" {
		size, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("GATEWAY_MAX_BODY_BYTES: %w", err)
		}
		c.Server.MaxBodyBytes = size
	}
	return nil
}

func setFromEnv(target *string, name string) {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		*target = value
	}
}

// splitList parses a comma-separated list, dropping empty items.
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func durationFromEnv(target *time.Duration, name string) error {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*target = duration
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr must not be empty")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}
	if c.Server.StreamIdleTimeout < 0 {
		return fmt.Errorf("server.stream_idle_timeout must not be negative, got %s", c.Server.StreamIdleTimeout)
	}
	if c.Server.StreamTimeout < 0 {
		return fmt.Errorf("server.stream_timeout must not be negative, got %s", c.Server.StreamTimeout)
	}
	if _, ok := ai.ParseProviderID(c.DefaultProvider); !ok {
		return fmt.Errorf("default_provider %q is not one of %v", c.DefaultProvider, ai.KnownProviders)
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not a known level", c.Log.Level)
	}
	return nil
}

// DefaultProviderID returns the validated default provider.
func (c *Config) DefaultProviderID() ai.ProviderID {
	id, ok := ai.ParseProviderID(c.DefaultProvider)
	if !ok {
		return DefaultProvider
	}
	return id
}

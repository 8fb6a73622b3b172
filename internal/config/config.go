// Package config loads and caches the gateway's immutable configuration:
// server settings, the per-provider API config (endpoint, models,
// capability flags), and the display config (names/icons/links, read
// only for DisplayName — the rest is for the out-of-scope extension UI).
//
// Config is loaded once at process start via Load and never mutated
// afterward — the rest of the core treats *Config as a read-only
// reference, matching §4.1's "loaded once, cached in-process" contract.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ProviderID is one of the six closed-set wire protocols this gateway
// speaks.
type ProviderID string

const (
	ProviderOpenAI    ProviderID = "openai"
	ProviderAnthropic ProviderID = "anthropic"
	ProviderGemini    ProviderID = "gemini"
	ProviderMistral   ProviderID = "mistral"
	ProviderDeepSeek  ProviderID = "deepseek"
	ProviderGrok      ProviderID = "grok"
)

// ParameterStyle distinguishes models that accept temperature/topP
// ("standard") from reasoning models that reject them ("reasoning").
type ParameterStyle string

const (
	StyleStandard  ParameterStyle = "standard"
	StyleReasoning ParameterStyle = "reasoning"
)

// ModelDescriptor is the read-only per-model configuration record
// returned by getApiModels and consumed by the Parameter Resolver (C5).
type ModelDescriptor struct {
	ID             string         `koanf:"id" json:"id"`
	DisplayName    string         `koanf:"display_name" json:"displayName"`
	MaxTokens      int            `koanf:"max_tokens" json:"maxTokens"`
	ContextWindow  int            `koanf:"context_window" json:"contextWindow"`
	TokenParameter string         `koanf:"token_parameter" json:"tokenParameter"`
	ParameterStyle ParameterStyle `koanf:"parameter_style" json:"parameterStyle"`

	// Capability flags. These are *bool so the resolver can distinguish
	// "unset" (nil, defaults apply per §4.5) from an explicit false/true.
	SupportsTemperature  *bool `koanf:"supports_temperature" json:"supportsTemperature,omitempty"`
	SupportsTopP         *bool `koanf:"supports_top_p" json:"supportsTopP,omitempty"`
	SupportsSystemPrompt *bool `koanf:"supports_system_prompt" json:"supportsSystemPrompt,omitempty"`
}

// ProviderAPIConfig is one provider's entry in the API config document.
type ProviderAPIConfig struct {
	Endpoint     string                     `koanf:"endpoint"`
	DefaultModel string                     `koanf:"default_model"`
	Models       map[string]ModelDescriptor `koanf:"models"`
}

// DisplayProviderConfig carries UI-facing metadata the core never
// inspects beyond Name — Icon/Link are for the (out-of-scope) extension
// shell, but the document is loaded here because display names are part
// of the getApiModels response.
type DisplayProviderConfig struct {
	Name string `koanf:"name"`
	Icon string `koanf:"icon"`
	Link string `koanf:"link"`
}

// ServerConfig holds HTTP server settings for cmd/gatewaycore.
type ServerConfig struct {
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// StorageConfig selects and configures the kv.Store backing the
// credential store and the persisted response record (§3.2). Backend
// is "memory" (the default) or "redis"; the redis fields are ignored
// otherwise.
type StorageConfig struct {
	Backend   string `koanf:"backend"`
	RedisAddr string `koanf:"redis_addr"`
	KeyPrefix string `koanf:"key_prefix"`
}

// RateLimitConfig is one provider's token-bucket admission limit
// (§3.4). A provider absent from the map is never throttled.
type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

// Config is the immutable, process-wide configuration cache.
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	RateLimits map[ProviderID]RateLimitConfig
	Providers  map[ProviderID]ProviderAPIConfig
	Display    map[ProviderID]DisplayProviderConfig
}

// Load reads the API config document (server settings + per-provider
// models), layers GATEWAYCORE_-prefixed environment overrides on top,
// and optionally loads a separate display config document. displayPath
// may be empty to skip display-name loading entirely — getApiModels
// then falls back to the provider ID itself.
func Load(apiConfigPath, displayConfigPath string) (*Config, error) {
	// Load .env file into the process environment (ignored if not present).
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(file.Provider(apiConfigPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading api config: %w", err)
	}

	// Layer environment variables on top. Any env var starting with
	// "GATEWAYCORE_" can override a config value, e.g.
	//   GATEWAYCORE_SERVER_PORT -> server.port
	if err := k.Load(env.Provider("GATEWAYCORE_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "GATEWAYCORE_")),
			"_", ".",
		)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var raw struct {
		Server     ServerConfig                 `koanf:"server"`
		Storage    StorageConfig                `koanf:"storage"`
		RateLimits map[string]RateLimitConfig   `koanf:"rate_limits"`
		Providers  map[string]ProviderAPIConfig `koanf:"providers"`
	}
	if err := k.Unmarshal("", &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling api config: %w", err)
	}

	cfg := &Config{
		Server:     raw.Server,
		Storage:    raw.Storage,
		RateLimits: make(map[ProviderID]RateLimitConfig, len(raw.RateLimits)),
		Providers:  make(map[ProviderID]ProviderAPIConfig, len(raw.Providers)),
		Display:    make(map[ProviderID]DisplayProviderConfig),
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	for name, rl := range raw.RateLimits {
		cfg.RateLimits[ProviderID(name)] = rl
	}
	for name, p := range raw.Providers {
		cfg.Providers[ProviderID(name)] = p
	}

	if displayConfigPath != "" {
		dk := koanf.New(".")
		if err := dk.Load(file.Provider(displayConfigPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading display config: %w", err)
		}
		var rawDisplay struct {
			Providers map[string]DisplayProviderConfig `koanf:"providers"`
		}
		if err := dk.Unmarshal("", &rawDisplay); err != nil {
			return nil, fmt.Errorf("unmarshaling display config: %w", err)
		}
		for name, d := range rawDisplay.Providers {
			cfg.Display[ProviderID(name)] = d
		}
	}

	return cfg, nil
}

var (
	// ErrUnknownProvider is returned when a requested providerId isn't
	// present in the loaded API config. The Parameter Resolver and
	// Request Router translate this into a gatewayerr.KindSetup fault.
	ErrUnknownProvider = fmt.Errorf("config: unknown provider")
	// ErrUnknownModel is returned when a requested modelId isn't
	// registered for an otherwise-known provider.
	ErrUnknownModel = fmt.Errorf("config: unknown model")
)

// Provider looks up a provider's API config.
func (c *Config) Provider(id ProviderID) (ProviderAPIConfig, error) {
	p, ok := c.Providers[id]
	if !ok {
		return ProviderAPIConfig{}, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	return p, nil
}

// Model looks up a single model descriptor under a provider.
func (c *Config) Model(providerID ProviderID, modelID string) (ModelDescriptor, error) {
	p, err := c.Provider(providerID)
	if err != nil {
		return ModelDescriptor{}, err
	}
	m, ok := p.Models[modelID]
	if !ok {
		return ModelDescriptor{}, fmt.Errorf("%w: provider %q has no model %q", ErrUnknownModel, providerID, modelID)
	}
	return m, nil
}

// Models returns every ModelDescriptor registered for a provider, used
// by getApiModels (§4.7). Descriptors are returned as configured; the
// display config is not consulted here (see DisplayName).
func (c *Config) Models(providerID ProviderID) ([]ModelDescriptor, error) {
	p, err := c.Provider(providerID)
	if err != nil {
		return nil, err
	}
	out := make([]ModelDescriptor, 0, len(p.Models))
	for _, m := range p.Models {
		out = append(out, m)
	}
	return out, nil
}

// DisplayName returns the UI display name for a provider, falling back
// to the provider ID itself if no display config entry exists.
func (c *Config) DisplayName(providerID ProviderID) string {
	if d, ok := c.Display[providerID]; ok && d.Name != "" {
		return d.Name
	}
	return string(providerID)
}

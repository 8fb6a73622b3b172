package provider

import (
	"fmt"

	"github.com/devon-ng/gatewaycore/internal/config"
)

// Factory builds a fresh Adapter instance for one provider. A fresh
// instance is created per Turn so that Initialize's cached apiKey never
// outlives a single streaming call.
type Factory func(endpoint string) Adapter

// Registry maps a ProviderID to the factory for its Adapter. The six
// concrete adapters register themselves via NewRegistry; the
// coordinator never switches on ProviderID itself — it stays
// provider-agnostic and only ever holds an Adapter interface value.
type Registry struct {
	factories map[config.ProviderID]Factory
}

// NewRegistry builds the registry with all six wire protocols wired in.
func NewRegistry() *Registry {
	return &Registry{
		factories: map[config.ProviderID]Factory{
			config.ProviderOpenAI:   func(endpoint string) Adapter { return newOpenAIFamilyAdapter(endpoint, styleOpenAI) },
			config.ProviderGrok:     func(endpoint string) Adapter { return newOpenAIFamilyAdapter(endpoint, styleGrok) },
			config.ProviderMistral:  func(endpoint string) Adapter { return newOpenAIFamilyAdapter(endpoint, styleMistral) },
			config.ProviderDeepSeek: func(endpoint string) Adapter { return newOpenAIFamilyAdapter(endpoint, styleDeepSeek) },
			config.ProviderAnthropic: func(endpoint string) Adapter { return NewAnthropicAdapter(endpoint) },
			config.ProviderGemini:   func(endpoint string) Adapter { return NewGeminiAdapter(endpoint) },
		},
	}
}

// New builds a fresh Adapter for providerID bound to endpoint. It returns
// an error if no adapter is registered for providerID — this should only
// happen if the config and the registry drift apart.
func (r *Registry) New(providerID config.ProviderID, endpoint string) (Adapter, error) {
	factory, ok := r.factories[providerID]
	if !ok {
		return nil, fmt.Errorf("provider: no adapter registered for %q", providerID)
	}
	return factory(endpoint), nil
}

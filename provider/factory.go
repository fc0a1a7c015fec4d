package provider

import (
	"fmt"

	"velora/config"
)

// NewProvider creates a provider based on configuration.
//
// OpenAI-compatible gateways (OpenRouter, vLLM, LM Studio) are reached
// through ProviderTypeOpenAI with a custom BaseURL.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Type {
	case ProviderTypeOllama:
		return NewOllamaProvider(cfg.BaseURL, cfg.Model)
	case ProviderTypeOpenAI:
		return NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	case ProviderTypeAnthropic:
		return NewAnthropicProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

// MapProviderIDToType converts config provider ID to factory ProviderType.
// "openrouter" maps to the OpenAI provider since the API is compatible.
// Unknown IDs pass through unchanged and fail in NewProvider.
func MapProviderIDToType(id string) ProviderType {
	switch id {
	case "", "ollama":
		return ProviderTypeOllama
	case "openai", "openrouter":
		return ProviderTypeOpenAI
	case "anthropic":
		return ProviderTypeAnthropic
	default:
		return ProviderType(id)
	}
}

// FromConfig builds the provider selected in the loaded configuration.
func FromConfig(cfg *config.Config) (Provider, error) {
	p, err := NewProvider(Config{
		Type:    MapProviderIDToType(cfg.Provider.Type),
		BaseURL: cfg.Provider.BaseURL,
		Model:   cfg.Provider.Model,
		APIKey:  cfg.Provider.APIKey,
	})
	if err != nil {
		return nil, err
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Provider] Using %s model %s", cfg.Provider.Type, p.GetModel())
	}
	return p, nil
}

package llm

import (
	"context"
	"fmt"
)

// LLMProvider generates a completion for a system prompt and a dialogue
type LLMProvider interface {
	Complete(ctx context.Context, systemPrompt string, turns []Turn) (string, error)
	GetProviderName() string
}

// Role of a dialogue turn, seen from the business side
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
)

// Turn is one message of the conversation handed to the model
type Turn struct {
	Role Role
	Text string
}

// ProviderType untuk factory
type ProviderType string

const (
	ProviderOpenAI   ProviderType = "openai"
	ProviderGroq     ProviderType = "groq"
	ProviderDeepSeek ProviderType = "deepseek"
)

// OpenAI-compatible endpoints of the supported providers
var providerBaseURLs = map[ProviderType]string{
	ProviderGroq:     "https://api.groq.com/openai/v1",
	ProviderDeepSeek: "https://api.deepseek.com/v1",
}

var providerDefaultModels = map[ProviderType]string{
	ProviderOpenAI:   "gpt-4o-mini",
	ProviderGroq:     "llama-3.1-8b-instant",
	ProviderDeepSeek: "deepseek-chat",
}

var providerNames = map[ProviderType]string{
	ProviderOpenAI:   "OpenAI",
	ProviderGroq:     "Groq",
	ProviderDeepSeek: "DeepSeek",
}

// ProviderConfig untuk create provider
type ProviderConfig struct {
	Type   ProviderType
	APIKey string
	// BaseURL overrides the provider endpoint (proxies, tests)
	BaseURL string

	Model       string
	Temperature float32
	MaxTokens   int
}

// NewProvider factory untuk create LLM provider
func NewProvider(cfg *ProviderConfig) (LLMProvider, error) {
	if cfg.Type == "" {
		cfg.Type = ProviderOpenAI
	}
	name, ok := providerNames[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider type: %s", cfg.Type)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key for %s is required", name)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = providerBaseURLs[cfg.Type]
	}
	model := cfg.Model
	if model == "" {
		model = providerDefaultModels[cfg.Type]
	}
	return newChatProvider(name, cfg.APIKey, baseURL, model, cfg.Temperature, cfg.MaxTokens), nil
}

// Package llm resolves configured chat model providers into clients.
//
// A provider section from the root configuration is resolved once into an
// immutable handle binding a canonical provider type to validated parameters.
// Resolution is pure: it reads nothing from the environment and performs no
// I/O. Credentials are looked up later, when a client is built from the
// handle.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// ProviderType identifies a chat model provider.
type ProviderType string

const (
	ProviderOpenAI           ProviderType = "openai"
	ProviderOpenAIStructured ProviderType = "openai_structured"
	ProviderAnthropic        ProviderType = "anthropic"
	ProviderGemini           ProviderType = "gemini"
	ProviderOpenRouter       ProviderType = "openrouter"
	ProviderLocal            ProviderType = "local"
)

// ParseProviderType normalizes a provider name to its canonical type.
// Common aliases map to canonical types; empty and unrecognized names
// return ErrUnknownProvider.
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai":
		return ProviderOpenAI, nil
	case "openai_structured", "openai-structured":
		return ProviderOpenAIStructured, nil
	case "anthropic":
		return ProviderAnthropic, nil
	case "gemini", "google":
		return ProviderGemini, nil
	case "openrouter":
		return ProviderOpenRouter, nil
	case "local", "ollama", "vllm", "llama":
		return ProviderLocal, nil
	case "":
		return "", fmt.Errorf("%w: provider name is empty", ErrUnknownProvider)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

// DefaultBaseURL returns the default API endpoint for a provider.
func DefaultBaseURL(p ProviderType) string {
	switch p {
	case ProviderOpenAI, ProviderOpenAIStructured:
		return "https://api.openai.com/v1"
	case ProviderAnthropic:
		return "https://api.anthropic.com"
	case ProviderGemini:
		return "https://generativelanguage.googleapis.com/v1beta"
	case ProviderOpenRouter:
		return "https://openrouter.ai/api/v1"
	case ProviderLocal:
		return "http://localhost:11434/v1"
	default:
		return ""
	}
}

// DefaultAPIKeyEnvVar returns the conventional environment variable holding
// the API key for a provider. Local providers need no key.
func DefaultAPIKeyEnvVar(p ProviderType) string {
	switch p {
	case ProviderOpenAI, ProviderOpenAIStructured:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderGemini:
		return "GOOGLE_API_KEY"
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	default:
		return ""
	}
}

// GetAPIKeyFromEnv reads the provider's API key from its conventional
// environment variable. Returns empty when the provider has none.
func GetAPIKeyFromEnv(p ProviderType) string {
	envVar := DefaultAPIKeyEnvVar(p)
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// Provider is a chat model client.
type Provider interface {
	// Chat sends messages and returns the complete response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// ChatStream sends messages and streams the response. The returned
	// channel is closed after the terminal event.
	ChatStream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error)

	// Name returns the provider name.
	Name() string
}

// Config holds the transport configuration for a provider client.
type Config struct {
	APIKey          string
	BaseURL         string
	Timeout         time.Duration
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultConfig returns the default transport configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:         5 * time.Minute,
		MaxRetries:      3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}
}

// ProviderFactory constructs a provider client from a transport config.
type ProviderFactory func(cfg Config) (Provider, error)

var registry = make(map[ProviderType]ProviderFactory)

// RegisterProvider registers a provider factory. Called from provider
// package init functions; the registry is read-only afterwards.
func RegisterProvider(t ProviderType, factory ProviderFactory) {
	registry[t] = factory
}

// NewProvider builds a client for a registered provider type.
func NewProvider(t ProviderType, cfg Config) (Provider, error) {
	factory, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered", ErrUnknownProvider, t)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL(t)
	}
	return factory(cfg)
}

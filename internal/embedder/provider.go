// Package embedder resolves configured embedding providers into clients
// that turn text into vectors. Resolution is pure: it validates the
// section and binds a factory without touching the network or the
// environment. Credentials are looked up when a client is constructed.
package embedder

import (
	"context"
	"fmt"
	"os"
	"time"
)

// ProviderType identifies a supported embedding provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderLocal  ProviderType = "local"
)

// ParseProviderType converts a string to a ProviderType.
func ParseProviderType(s string) (ProviderType, error) {
	switch s {
	case "openai":
		return ProviderOpenAI, nil
	case "local", "ollama", "vllm", "llama":
		return ProviderLocal, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

// DefaultBaseURL returns the default API endpoint for a provider.
func DefaultBaseURL(p ProviderType) string {
	switch p {
	case ProviderOpenAI:
		return "https://api.openai.com/v1"
	case ProviderLocal:
		return "http://localhost:11434/v1"
	default:
		return ""
	}
}

// DefaultAPIKeyEnvVar returns the environment variable conventionally
// holding the API key for a provider. Local servers need no key.
func DefaultAPIKeyEnvVar(p ProviderType) string {
	switch p {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}

// GetAPIKeyFromEnv reads the provider's conventional API key variable.
func GetAPIKeyFromEnv(p ProviderType) string {
	envVar := DefaultAPIKeyEnvVar(p)
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// Provider embeds batches of text into vectors.
type Provider interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions reports the width of the vectors this provider
	// produces, or 0 when it is not known up front.
	Dimensions() int

	// Name returns the provider name.
	Name() string
}

// Config holds provider-agnostic client configuration.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
	MaxRetries int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:    1 * time.Minute,
		MaxRetries: 3,
	}
}

// ProviderFactory creates a Provider from a Config.
type ProviderFactory func(config Config) (Provider, error)

var registry = make(map[ProviderType]ProviderFactory)

// RegisterProvider registers a provider factory. Providers call this
// from init; the registry is read-only afterwards.
func RegisterProvider(name ProviderType, factory ProviderFactory) {
	registry[name] = factory
}

// NewProvider creates a Provider by type.
func NewProvider(providerType ProviderType, config Config) (Provider, error) {
	factory, ok := registry[providerType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, providerType)
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL(providerType)
	}
	return factory(config)
}

package embedder

import (
	"context"
	"fmt"

	"github.com/mnemo-org/mnemo/internal/cmn/config"
	"github.com/mnemo-org/mnemo/internal/cmn/secrets"
)

// Resolved is a validated embedder section bound to a registered
// provider. It is immutable; share freely across goroutines.
type Resolved struct {
	Provider ProviderType
	Params   Params
}

// Resolve validates an embedder section against the provider registry
// and the parameter domains. It performs no I/O and reads no
// environment variables, so resolving the same section twice yields
// the same handle.
func Resolve(sec config.ProviderSection) (*Resolved, error) {
	providerType, err := ParseProviderType(sec.Provider)
	if err != nil {
		return nil, err
	}
	params, err := ParseParams(sec.Config)
	if err != nil {
		return nil, fmt.Errorf("embedder provider %q: %w", sec.Provider, err)
	}
	return &Resolved{Provider: providerType, Params: params}, nil
}

// NewClient constructs the embedding client for a resolved handle.
// Credentials are located here, never during Resolve: an explicit
// WithAPIKey option wins, then the section's api_key, then api_key_ref
// through the secret store, then the provider's conventional
// environment variable. Local providers skip the lookup entirely.
func (r *Resolved) NewClient(ctx context.Context, store *secrets.Registry, opts ...Option) (Provider, error) {
	cfg, err := r.clientConfig(ctx, store)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewProvider(r.Provider, cfg)
}

func (r *Resolved) clientConfig(ctx context.Context, store *secrets.Registry) (Config, error) {
	cfg := DefaultConfig()
	cfg.Model = r.Params.Model
	cfg.BaseURL = r.Params.BaseURL
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL(r.Provider)
	}
	if r.Params.Dimensions != nil {
		cfg.Dimensions = *r.Params.Dimensions
	}
	if r.Params.BatchSize != nil {
		cfg.BatchSize = *r.Params.BatchSize
	}
	if r.Params.Timeout != nil {
		cfg.Timeout = *r.Params.Timeout
	}
	if r.Params.MaxRetries != nil {
		cfg.MaxRetries = *r.Params.MaxRetries
	}

	switch {
	case r.Params.APIKey != "":
		cfg.APIKey = r.Params.APIKey
	case r.Params.APIKeyRef != "":
		if store == nil {
			return Config{}, fmt.Errorf("%w: api_key_ref %q set but no secret store configured", ErrMissingCredential, r.Params.APIKeyRef)
		}
		key, err := store.Resolve(ctx, r.Params.APIKeyRef)
		if err != nil {
			return Config{}, fmt.Errorf("%w: resolving %q: %v", ErrMissingCredential, r.Params.APIKeyRef, err)
		}
		cfg.APIKey = key
	default:
		cfg.APIKey = GetAPIKeyFromEnv(r.Provider)
	}
	return cfg, nil
}

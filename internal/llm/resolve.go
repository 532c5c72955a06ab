package llm

import (
	"context"
	"fmt"

	"github.com/mnemo-org/mnemo/internal/cmn/config"
	"github.com/mnemo-org/mnemo/internal/cmn/secrets"
)

// Resolved is an immutable handle binding a canonical provider type to
// validated parameters. Resolving the same section always yields an equal
// handle; the handle itself performs no I/O.
type Resolved struct {
	Provider ProviderType
	Params   Params
}

// Resolve validates a provider section and returns a handle for it.
//
// The provider name must parse to a registered canonical type, the config
// map must contain only known keys, and every value must be within its
// domain. Resolve never reads the environment; missing credentials surface
// later, from NewClient.
func Resolve(sec config.ProviderSection) (*Resolved, error) {
	pt, err := ParseProviderType(sec.Provider)
	if err != nil {
		return nil, err
	}
	params, err := ParseParams(sec.Config)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", pt, err)
	}
	return &Resolved{Provider: pt, Params: params}, nil
}

// NewClient builds the provider client for the handle.
//
// The API key is taken from the first of: a WithAPIKey option, the api_key
// parameter, the api_key_ref parameter resolved through store, then the
// provider's conventional environment variable. Providers that require a
// key return ErrMissingCredential when none is found.
func (r *Resolved) NewClient(ctx context.Context, store *secrets.Registry, opts ...Option) (Provider, error) {
	cfg, err := r.clientConfig(ctx, store)
	if err != nil {
		return nil, err
	}
	ApplyOptions(&cfg, opts...)
	if cfg.APIKey == "" {
		cfg.APIKey = GetAPIKeyFromEnv(r.Provider)
	}
	return NewProvider(r.Provider, cfg)
}

// NewChatRequest builds a request against the handle's model, carrying its
// sampling parameters. Options override individual parameters. Pointer
// values are copied so the handle stays read-only.
func (r *Resolved) NewChatRequest(messages []Message, opts ...RequestOption) *ChatRequest {
	req := &ChatRequest{
		Model:    r.Params.Model,
		Messages: messages,
	}
	if r.Params.Temperature != nil {
		t := *r.Params.Temperature
		req.Temperature = &t
	}
	if r.Params.TopP != nil {
		tp := *r.Params.TopP
		req.TopP = &tp
	}
	if r.Params.MaxTokens != nil {
		mt := *r.Params.MaxTokens
		req.MaxTokens = &mt
	}
	if len(r.Params.Stop) > 0 {
		req.Stop = append([]string(nil), r.Params.Stop...)
	}
	ApplyRequestOptions(req, opts...)
	return req
}

func (r *Resolved) clientConfig(ctx context.Context, store *secrets.Registry) (Config, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = r.Params.BaseURL
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL(r.Provider)
	}
	if r.Params.Timeout > 0 {
		cfg.Timeout = r.Params.Timeout
	}
	if r.Params.MaxRetries != nil {
		cfg.MaxRetries = *r.Params.MaxRetries
	}
	cfg.APIKey = r.Params.APIKey
	if cfg.APIKey == "" && r.Params.APIKeyRef != "" {
		if store == nil {
			return Config{}, fmt.Errorf("api_key_ref %q: no secret store configured", r.Params.APIKeyRef)
		}
		key, err := store.Resolve(ctx, r.Params.APIKeyRef)
		if err != nil {
			return Config{}, fmt.Errorf("failed to resolve api_key_ref: %w", err)
		}
		cfg.APIKey = key
	}
	return cfg, nil
}

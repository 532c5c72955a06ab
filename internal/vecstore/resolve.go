package vecstore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/mnemo-org/mnemo/internal/cmn/config"
	"github.com/mnemo-org/mnemo/internal/cmn/secrets"
)

// Resolved is an immutable handle binding a canonical store provider to
// validated parameters. Resolving the same section always yields an
// equal handle; the handle itself opens no connections.
type Resolved struct {
	Provider ProviderType
	Params   Params
}

// Resolve validates a vector store section and returns a handle for it.
func Resolve(sec config.ProviderSection) (*Resolved, error) {
	pt, err := ParseProviderType(sec.Provider)
	if err != nil {
		return nil, err
	}
	params, err := ParseParams(sec.Config)
	if err != nil {
		return nil, fmt.Errorf("vector store %q: %w", pt, err)
	}
	if err := params.ValidateFor(pt); err != nil {
		return nil, err
	}
	return &Resolved{Provider: pt, Params: params}, nil
}

// Option adjusts store construction without touching the handle.
type Option func(*Config)

// WithDataDir anchors default file paths for file-backed stores.
func WithDataDir(dir string) Option {
	return func(c *Config) {
		if c.Path == "" && dir != "" {
			c.Path = dir
		}
	}
}

// WithDimensions overrides the vector width, typically with the
// embedder's reported width.
func WithDimensions(dims int) Option {
	return func(c *Config) {
		if dims > 0 {
			c.Dimensions = dims
		}
	}
}

// WithAPIKey sets the store credential explicitly.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// NewStore opens the store for the handle. Credentials follow the usual
// order: an explicit option, the api_key parameter, then api_key_ref
// through the secret store. File-backed stores place their files under
// the configured path; WithDataDir supplies the default location.
func (r *Resolved) NewStore(ctx context.Context, store *secrets.Registry, opts ...Option) (Store, error) {
	cfg := Config{
		CollectionName: r.Params.CollectionName,
		Dimensions:     DefaultDimensions,
		Path:           r.Params.Path,
		URL:            r.Params.URL,
		DSN:            r.Params.DSN,
		APIKey:         r.Params.APIKey,
		Timeout:        r.Params.Timeout,
	}
	if r.Params.Dimensions != nil {
		cfg.Dimensions = *r.Params.Dimensions
	}
	if cfg.APIKey == "" && r.Params.APIKeyRef != "" {
		if store == nil {
			return nil, fmt.Errorf("%w: api_key_ref %q set but no secret store configured", ErrMissingCredential, r.Params.APIKeyRef)
		}
		key, err := store.Resolve(ctx, r.Params.APIKeyRef)
		if err != nil {
			return nil, fmt.Errorf("%w: resolving %q: %v", ErrMissingCredential, r.Params.APIKeyRef, err)
		}
		cfg.APIKey = key
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	// When the section gave no explicit path, file-backed stores derive
	// one inside the data dir named after the collection.
	if r.Params.Path == "" && cfg.Path != "" {
		switch r.Provider {
		case ProviderMemvec:
			cfg.Path = filepath.Join(cfg.Path, cfg.CollectionName+".snapshot")
		case ProviderSQLiteVec:
			cfg.Path = filepath.Join(cfg.Path, cfg.CollectionName+".db")
		default:
		}
	}

	return NewStore(ctx, r.Provider, cfg)
}

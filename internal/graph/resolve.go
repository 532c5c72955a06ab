package graph

import (
	"context"
	"fmt"
	"os"

	"github.com/mnemo-org/mnemo/internal/cmn/config"
	"github.com/mnemo-org/mnemo/internal/cmn/secrets"
)

// PasswordEnvVar is the environment fallback for the graph credential.
const PasswordEnvVar = "NEO4J_PASSWORD"

// Resolved is an immutable handle binding a canonical graph provider to
// validated parameters. Resolving the same section always yields an equal
// handle; the handle itself opens no connections.
type Resolved struct {
	Provider ProviderType
	Params   Params
}

// Resolve validates a graph store section and returns a handle for it.
func Resolve(sec config.ProviderSection) (*Resolved, error) {
	pt, err := ParseProviderType(sec.Provider)
	if err != nil {
		return nil, err
	}
	params, err := ParseParams(sec.Config)
	if err != nil {
		return nil, fmt.Errorf("graph store %q: %w", pt, err)
	}
	return &Resolved{Provider: pt, Params: params}, nil
}

// Option adjusts store construction without touching the handle.
type Option func(*Config)

// WithPassword sets the graph credential explicitly.
func WithPassword(password string) Option {
	return func(c *Config) {
		c.Password = password
	}
}

// NewStore opens the graph store for the handle. The credential follows
// the usual order: an explicit option, the password parameter, then
// password_ref through the secret store, then the NEO4J_PASSWORD
// environment variable.
func (r *Resolved) NewStore(ctx context.Context, store *secrets.Registry, opts ...Option) (Store, error) {
	cfg := Config{
		URI:       r.Params.URI,
		Username:  r.Params.Username,
		Password:  r.Params.Password,
		Database:  r.Params.Database,
		Threshold: DefaultThreshold,
	}
	if r.Params.Threshold != nil {
		cfg.Threshold = *r.Params.Threshold
	}
	if cfg.Password == "" && r.Params.PasswordRef != "" {
		if store == nil {
			return nil, fmt.Errorf("%w: password_ref %q set but no secret store configured", ErrMissingCredential, r.Params.PasswordRef)
		}
		password, err := store.Resolve(ctx, r.Params.PasswordRef)
		if err != nil {
			return nil, fmt.Errorf("%w: resolving %q: %v", ErrMissingCredential, r.Params.PasswordRef, err)
		}
		cfg.Password = password
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Password == "" {
		cfg.Password = os.Getenv(PasswordEnvVar)
	}
	if cfg.Password == "" {
		return nil, fmt.Errorf("%w: set the password parameter, password_ref, or %s", ErrMissingCredential, PasswordEnvVar)
	}
	return NewStore(ctx, r.Provider, cfg)
}

// Package secrets resolves secret references from pluggable backends.
//
// A secret reference names a provider and a provider-specific key, e.g.
// "env:OPENAI_API_KEY", "file:/run/secrets/api_key" or
// "vault:secret/data/mnemo#api_key". Resolution happens only at client
// construction time, never during configuration parsing.
package secrets

import (
	"context"
	"fmt"
	"strings"
)

// Ref is a parsed secret reference.
type Ref struct {
	// Provider is the backend identifier (env, file, vault).
	Provider string
	// Key is the provider-specific lookup key.
	Key string
	// Field selects a field within a structured secret (vault only).
	Field string
}

// String reassembles the reference in its textual form.
func (r Ref) String() string {
	s := r.Provider + ":" + r.Key
	if r.Field != "" {
		s += "#" + r.Field
	}
	return s
}

// ParseRef parses a textual secret reference of the form
// "provider:key" or "provider:key#field".
func ParseRef(s string) (Ref, error) {
	provider, rest, ok := strings.Cut(s, ":")
	if !ok || provider == "" || rest == "" {
		return Ref{}, fmt.Errorf("invalid secret reference %q: expected provider:key", s)
	}

	key, field, _ := strings.Cut(rest, "#")
	if key == "" {
		return Ref{}, fmt.Errorf("invalid secret reference %q: key is required", s)
	}

	return Ref{Provider: provider, Key: key, Field: field}, nil
}

// Resolver fetches a secret value from one backend.
type Resolver interface {
	// Name returns the provider identifier.
	Name() string
	// Validate checks if the secret reference is valid for this provider.
	Validate(ref Ref) error
	// Resolve fetches the secret value.
	Resolve(ctx context.Context, ref Ref) (string, error)
	// CheckAccessibility verifies the secret exists without exposing its value.
	CheckAccessibility(ctx context.Context, ref Ref) error
}

// Options carries backend settings shared by resolver constructors.
type Options struct {
	// BaseDir anchors relative paths for the file resolver.
	BaseDir string
	// VaultAddr overrides the Vault server address (VAULT_ADDR otherwise).
	VaultAddr string
	// VaultToken overrides the Vault token (VAULT_TOKEN otherwise).
	VaultToken string
}

type resolverCtor func(opts Options) Resolver

var resolverCtors = map[string]resolverCtor{}

// registerResolver adds a resolver constructor. Called from init functions
// only; the map is read-only afterwards.
func registerResolver(name string, ctor resolverCtor) {
	resolverCtors[name] = ctor
}

// Registry holds constructed resolvers keyed by provider name.
type Registry struct {
	resolvers map[string]Resolver
}

// NewRegistry constructs all registered resolvers with the given options.
func NewRegistry(opts Options) *Registry {
	resolvers := make(map[string]Resolver, len(resolverCtors))
	for name, ctor := range resolverCtors {
		resolvers[name] = ctor(opts)
	}
	return &Registry{resolvers: resolvers}
}

// Get returns the resolver for the given provider name, or nil if unknown.
func (r *Registry) Get(name string) Resolver {
	return r.resolvers[name]
}

// Resolve parses the textual reference and resolves it with the matching
// backend.
func (r *Registry) Resolve(ctx context.Context, reference string) (string, error) {
	ref, err := ParseRef(reference)
	if err != nil {
		return "", err
	}

	resolver := r.Get(ref.Provider)
	if resolver == nil {
		return "", fmt.Errorf("unknown secret provider %q", ref.Provider)
	}

	if err := resolver.Validate(ref); err != nil {
		return "", fmt.Errorf("invalid secret reference %q: %w", reference, err)
	}

	return resolver.Resolve(ctx, ref)
}

package secrets

import (
	"context"
	"fmt"
	"os"
)

func init() {
	registerResolver("env", func(_ Options) Resolver {
		return &envResolver{}
	})
}

// envResolver reads secrets from environment variables.
// This provider is suitable for:
//   - Local development
//   - CI/CD environments where secrets are injected at runtime
//   - Testing
//
// For production, prefer external providers like Vault.
type envResolver struct{}

// Name returns the provider identifier.
func (r *envResolver) Name() string {
	return "env"
}

// Validate checks if the secret reference is valid for environment variables.
func (r *envResolver) Validate(ref Ref) error {
	if ref.Key == "" {
		return fmt.Errorf("key (environment variable name) is required")
	}
	return nil
}

// Resolve fetches the secret value from the environment.
func (r *envResolver) Resolve(_ context.Context, ref Ref) (string, error) {
	value, exists := os.LookupEnv(ref.Key)
	if !exists {
		return "", fmt.Errorf("environment variable %q is not set", ref.Key)
	}
	return value, nil
}

// CheckAccessibility verifies the environment variable exists without reading its value.
func (r *envResolver) CheckAccessibility(_ context.Context, ref Ref) error {
	_, exists := os.LookupEnv(ref.Key)
	if !exists {
		return fmt.Errorf("environment variable %q is not set", ref.Key)
	}
	return nil
}

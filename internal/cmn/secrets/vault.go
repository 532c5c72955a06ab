package secrets

import (
	"context"
	"fmt"
	"sync"

	vault "github.com/hashicorp/vault/api"
)

func init() {
	registerResolver("vault", func(opts Options) Resolver {
		return &vaultResolver{
			addr:  opts.VaultAddr,
			token: opts.VaultToken,
		}
	})
}

// vaultResolver reads secrets from HashiCorp Vault. The key is the logical
// secret path (e.g. "secret/data/mnemo") and the field selects one entry of
// the secret payload. KV v2 responses are unwrapped transparently.
//
// The client is created lazily so that configurations without any vault
// reference never require a reachable Vault server.
type vaultResolver struct {
	addr  string
	token string

	once    sync.Once
	client  *vault.Client
	initErr error
}

// Name returns the provider identifier.
func (r *vaultResolver) Name() string {
	return "vault"
}

// Validate checks if the secret reference is valid for Vault.
func (r *vaultResolver) Validate(ref Ref) error {
	if ref.Key == "" {
		return fmt.Errorf("key (secret path) is required")
	}
	if ref.Field == "" {
		return fmt.Errorf("field is required (use vault:path#field)")
	}
	return nil
}

// Resolve fetches the secret field from Vault.
func (r *vaultResolver) Resolve(ctx context.Context, ref Ref) (string, error) {
	client, err := r.getClient()
	if err != nil {
		return "", err
	}

	secret, err := client.Logical().ReadWithContext(ctx, ref.Key)
	if err != nil {
		return "", fmt.Errorf("failed to read vault secret %q: %w", ref.Key, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("vault secret %q not found", ref.Key)
	}

	data := secret.Data
	// KV v2 nests the payload under "data"
	if nested, ok := data["data"].(map[string]any); ok {
		data = nested
	}

	value, ok := data[ref.Field]
	if !ok {
		return "", fmt.Errorf("vault secret %q has no field %q", ref.Key, ref.Field)
	}

	str, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("vault secret field %q is not a string", ref.Field)
	}
	return str, nil
}

// CheckAccessibility verifies the secret exists without exposing its value.
func (r *vaultResolver) CheckAccessibility(ctx context.Context, ref Ref) error {
	_, err := r.Resolve(ctx, ref)
	return err
}

func (r *vaultResolver) getClient() (*vault.Client, error) {
	r.once.Do(func() {
		cfg := vault.DefaultConfig()
		if r.addr != "" {
			cfg.Address = r.addr
		}

		client, err := vault.NewClient(cfg)
		if err != nil {
			r.initErr = fmt.Errorf("failed to create vault client: %w", err)
			return
		}
		if r.token != "" {
			client.SetToken(r.token)
		}
		r.client = client
	})

	return r.client, r.initErr
}

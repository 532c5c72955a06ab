package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-org/mnemo/internal/cmn/config"
	"github.com/mnemo-org/mnemo/internal/cmn/secrets"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("OpenAI", func(t *testing.T) {
		t.Parallel()
		handle, err := Resolve(config.ProviderSection{
			Provider: "openai",
			Config: map[string]any{
				"model":       "gpt-4o",
				"temperature": 0.2,
				"max_tokens":  2000,
			},
		})
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenAI, handle.Provider)
		assert.Equal(t, "gpt-4o", handle.Params.Model)
		require.NotNil(t, handle.Params.Temperature)
		assert.Equal(t, 0.2, *handle.Params.Temperature)
		require.NotNil(t, handle.Params.MaxTokens)
		assert.Equal(t, 2000, *handle.Params.MaxTokens)
	})

	t.Run("OpenAIStructured", func(t *testing.T) {
		t.Parallel()
		handle, err := Resolve(config.ProviderSection{
			Provider: "openai_structured",
			Config: map[string]any{
				"model":       "gpt-4o-2024-08-06",
				"temperature": 0.0,
			},
		})
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenAIStructured, handle.Provider)
		assert.Equal(t, "gpt-4o-2024-08-06", handle.Params.Model)
		require.NotNil(t, handle.Params.Temperature)
		assert.Zero(t, *handle.Params.Temperature)
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		t.Parallel()
		_, err := Resolve(config.ProviderSection{
			Provider: "not_a_real_provider",
			Config:   map[string]any{"model": "gpt-4o"},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownProvider)
		assert.Contains(t, err.Error(), "not_a_real_provider")
	})

	t.Run("EmptyProvider", func(t *testing.T) {
		t.Parallel()
		_, err := Resolve(config.ProviderSection{
			Config: map[string]any{"model": "gpt-4o"},
		})
		assert.ErrorIs(t, err, ErrUnknownProvider)
	})

	t.Run("MissingModel", func(t *testing.T) {
		t.Parallel()
		_, err := Resolve(config.ProviderSection{
			Provider: "openai",
			Config:   map[string]any{"temperature": 0.2},
		})
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})

	t.Run("Idempotent", func(t *testing.T) {
		t.Parallel()
		sec := config.ProviderSection{
			Provider: "openai",
			Config: map[string]any{
				"model":       "gpt-4o",
				"temperature": 0.2,
				"max_tokens":  2000,
			},
		}
		first, err := Resolve(sec)
		require.NoError(t, err)
		second, err := Resolve(sec)
		require.NoError(t, err)
		assert.Equal(t, first.Provider, second.Provider)
		assert.Equal(t, first.Params.Model, second.Params.Model)
		assert.Equal(t, *first.Params.Temperature, *second.Params.Temperature)
		assert.Equal(t, *first.Params.MaxTokens, *second.Params.MaxTokens)
	})

	t.Run("AliasNormalized", func(t *testing.T) {
		t.Parallel()
		handle, err := Resolve(config.ProviderSection{
			Provider: "ollama",
			Config:   map[string]any{"model": "llama3"},
		})
		require.NoError(t, err)
		assert.Equal(t, ProviderLocal, handle.Provider)
	})
}

func TestResolved_NewChatRequest(t *testing.T) {
	t.Parallel()

	handle, err := Resolve(config.ProviderSection{
		Provider: "openai",
		Config: map[string]any{
			"model":       "gpt-4o",
			"temperature": 0.2,
			"max_tokens":  2000,
		},
	})
	require.NoError(t, err)

	req := handle.NewChatRequest([]Message{{Role: RoleUser, Content: "hi"}})
	assert.Equal(t, "gpt-4o", req.Model)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.2, *req.Temperature)
	require.NotNil(t, req.MaxTokens)
	assert.Equal(t, 2000, *req.MaxTokens)

	t.Run("OptionsOverride", func(t *testing.T) {
		t.Parallel()
		req := handle.NewChatRequest(nil, WithTemperature(0.9))
		assert.Equal(t, 0.9, *req.Temperature)
	})

	t.Run("HandleStaysReadOnly", func(t *testing.T) {
		t.Parallel()
		req := handle.NewChatRequest(nil)
		*req.Temperature = 1.5
		assert.Equal(t, 0.2, *handle.Params.Temperature)
	})
}

// captureFactory registers a factory under the given type and returns a
// pointer to the config it most recently received.
func captureFactory(t *testing.T, pt ProviderType, requireKey bool) *Config {
	t.Helper()
	var got Config
	RegisterProvider(pt, func(cfg Config) (Provider, error) {
		got = cfg
		if requireKey && cfg.APIKey == "" {
			return nil, WrapError(string(pt), ErrMissingCredential)
		}
		return &mockProvider{name: string(pt)}, nil
	})
	return &got
}

func TestResolved_NewClient(t *testing.T) {
	orig := registry
	defer func() { registry = orig }()
	registry = make(map[ProviderType]ProviderFactory)

	got := captureFactory(t, ProviderOpenAI, true)

	resolve := func(t *testing.T, cfg map[string]any) *Resolved {
		t.Helper()
		handle, err := Resolve(config.ProviderSection{Provider: "openai", Config: cfg})
		require.NoError(t, err)
		return handle
	}

	t.Run("KeyFromParams", func(t *testing.T) {
		handle := resolve(t, map[string]any{"model": "gpt-4o", "api_key": "from-params"})
		p, err := handle.NewClient(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "openai", p.Name())
		assert.Equal(t, "from-params", got.APIKey)
	})

	t.Run("OptionOverridesParams", func(t *testing.T) {
		handle := resolve(t, map[string]any{"model": "gpt-4o", "api_key": "from-params"})
		_, err := handle.NewClient(context.Background(), nil, WithAPIKey("explicit"))
		require.NoError(t, err)
		assert.Equal(t, "explicit", got.APIKey)
	})

	t.Run("KeyFromSecretRef", func(t *testing.T) {
		t.Setenv("MNEMO_TEST_LLM_KEY", "from-ref")
		store := secrets.NewRegistry(secrets.Options{})
		handle := resolve(t, map[string]any{"model": "gpt-4o", "api_key_ref": "env:MNEMO_TEST_LLM_KEY"})
		_, err := handle.NewClient(context.Background(), store)
		require.NoError(t, err)
		assert.Equal(t, "from-ref", got.APIKey)
	})

	t.Run("KeyFromEnvFallback", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "from-env")
		handle := resolve(t, map[string]any{"model": "gpt-4o"})
		_, err := handle.NewClient(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "from-env", got.APIKey)
	})

	t.Run("MissingCredential", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		handle := resolve(t, map[string]any{"model": "gpt-4o"})
		_, err := handle.NewClient(context.Background(), nil)
		assert.ErrorIs(t, err, ErrMissingCredential)
	})

	t.Run("BaseURLAndTransportOverrides", func(t *testing.T) {
		handle := resolve(t, map[string]any{
			"model":       "gpt-4o",
			"api_key":     "k",
			"base_url":    "http://proxy.internal/v1",
			"timeout":     "45s",
			"max_retries": 1,
		})
		_, err := handle.NewClient(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "http://proxy.internal/v1", got.BaseURL)
		assert.Equal(t, "45s", got.Timeout.String())
		assert.Equal(t, 1, got.MaxRetries)
	})

	t.Run("DefaultBaseURLApplied", func(t *testing.T) {
		handle := resolve(t, map[string]any{"model": "gpt-4o", "api_key": "k"})
		_, err := handle.NewClient(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "https://api.openai.com/v1", got.BaseURL)
	})
}

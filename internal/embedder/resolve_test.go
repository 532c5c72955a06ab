package embedder

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
				"model":      "text-embedding-3-small",
				"dimensions": 512,
			},
		})
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenAI, handle.Provider)
		assert.Equal(t, "text-embedding-3-small", handle.Params.Model)
		require.NotNil(t, handle.Params.Dimensions)
		assert.Equal(t, 512, *handle.Params.Dimensions)
	})

	t.Run("LocalAlias", func(t *testing.T) {
		t.Parallel()
		handle, err := Resolve(config.ProviderSection{
			Provider: "ollama",
			Config:   map[string]any{"model": "nomic-embed-text"},
		})
		require.NoError(t, err)
		assert.Equal(t, ProviderLocal, handle.Provider)
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		t.Parallel()
		_, err := Resolve(config.ProviderSection{
			Provider: "not_a_real_provider",
			Config:   map[string]any{"model": "m"},
		})
		assert.ErrorIs(t, err, ErrUnknownProvider)
	})

	t.Run("MissingModel", func(t *testing.T) {
		t.Parallel()
		_, err := Resolve(config.ProviderSection{
			Provider: "openai",
			Config:   map[string]any{"dimensions": 512},
		})
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})

	t.Run("UnknownKeyRejected", func(t *testing.T) {
		t.Parallel()
		_, err := Resolve(config.ProviderSection{
			Provider: "openai",
			Config:   map[string]any{"model": "m", "dimentions": 512},
		})
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})

	t.Run("Idempotent", func(t *testing.T) {
		t.Parallel()
		sec := config.ProviderSection{
			Provider: "openai",
			Config:   map[string]any{"model": "text-embedding-3-small", "batch_size": 64},
		}
		first, err := Resolve(sec)
		require.NoError(t, err)
		second, err := Resolve(sec)
		require.NoError(t, err)
		assert.Equal(t, first.Provider, second.Provider)
		assert.Equal(t, first.Params.Model, second.Params.Model)
		assert.Equal(t, *first.Params.BatchSize, *second.Params.BatchSize)
	})
}

func TestParamsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config map[string]any
	}{
		{"NegativeDimensions", map[string]any{"model": "m", "dimensions": -1}},
		{"ZeroBatchSize", map[string]any{"model": "m", "batch_size": 0}},
		{"NegativeTimeout", map[string]any{"model": "m", "timeout": "-5s"}},
		{"NegativeMaxRetries", map[string]any{"model": "m", "max_retries": -1}},
		{"BadSecretRef", map[string]any{"model": "m", "api_key_ref": "nonsense"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseParams(tc.config)
			assert.ErrorIs(t, err, ErrInvalidParameter)
		})
	}
}

func TestResolved_NewClient(t *testing.T) {
	orig := registry
	defer func() { registry = orig }()
	registry = make(map[ProviderType]ProviderFactory)

	var got Config
	RegisterProvider(ProviderOpenAI, func(cfg Config) (Provider, error) {
		got = cfg
		return &staticProvider{name: "openai", dims: 3}, nil
	})

	t.Run("KeyFromParams", func(t *testing.T) {
		handle, err := Resolve(config.ProviderSection{
			Provider: "openai",
			Config:   map[string]any{"model": "text-embedding-3-small", "api_key": "from-params"},
		})
		require.NoError(t, err)
		_, err = handle.NewClient(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "from-params", got.APIKey)
		assert.Equal(t, "text-embedding-3-small", got.Model)
	})

	t.Run("OptionOverridesParams", func(t *testing.T) {
		handle, err := Resolve(config.ProviderSection{
			Provider: "openai",
			Config:   map[string]any{"model": "m", "api_key": "from-params"},
		})
		require.NoError(t, err)
		_, err = handle.NewClient(context.Background(), nil, WithAPIKey("explicit"))
		require.NoError(t, err)
		assert.Equal(t, "explicit", got.APIKey)
	})

	t.Run("KeyFromSecretRef", func(t *testing.T) {
		t.Setenv("MNEMO_TEST_EMBED_KEY", "from-ref")
		store := secrets.NewRegistry(secrets.Options{})
		handle, err := Resolve(config.ProviderSection{
			Provider: "openai",
			Config:   map[string]any{"model": "m", "api_key_ref": "env:MNEMO_TEST_EMBED_KEY"},
		})
		require.NoError(t, err)
		_, err = handle.NewClient(context.Background(), store)
		require.NoError(t, err)
		assert.Equal(t, "from-ref", got.APIKey)
	})

	t.Run("KeyFromEnvFallback", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "from-env")
		handle, err := Resolve(config.ProviderSection{
			Provider: "openai",
			Config:   map[string]any{"model": "m"},
		})
		require.NoError(t, err)
		_, err = handle.NewClient(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "from-env", got.APIKey)
	})
}

type staticProvider struct {
	name string
	dims int
}

func (s *staticProvider) Name() string     { return s.name }
func (s *staticProvider) Dimensions() int  { return s.dims }
func (s *staticProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, s.dims)
	}
	return out, nil
}

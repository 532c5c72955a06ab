package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-org/mnemo/internal/cmn/config"
	"github.com/mnemo-org/mnemo/internal/cmn/secrets"
)

func TestParseProviderType(t *testing.T) {
	t.Parallel()

	got, err := ParseProviderType("neo4j")
	require.NoError(t, err)
	assert.Equal(t, ProviderNeo4j, got)

	got, err = ParseProviderType("  Bolt ")
	require.NoError(t, err)
	assert.Equal(t, ProviderNeo4j, got)

	_, err = ParseProviderType("memgraph")
	assert.ErrorIs(t, err, ErrUnknownProvider)
	_, err = ParseProviderType("")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("Defaults", func(t *testing.T) {
		t.Parallel()
		handle, err := Resolve(config.ProviderSection{
			Provider: "neo4j",
			Config:   map[string]any{},
		})
		require.NoError(t, err)
		assert.Equal(t, DefaultURI, handle.Params.URI)
		assert.Equal(t, DefaultUsername, handle.Params.Username)
		assert.Nil(t, handle.Params.Threshold)
	})

	t.Run("FullSection", func(t *testing.T) {
		t.Parallel()
		handle, err := Resolve(config.ProviderSection{
			Provider: "neo4j",
			Config: map[string]any{
				"uri":       "bolt://graph:7687",
				"username":  "admin",
				"database":  "memories",
				"threshold": 0.85,
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "bolt://graph:7687", handle.Params.URI)
		assert.Equal(t, "admin", handle.Params.Username)
		assert.Equal(t, "memories", handle.Params.Database)
		require.NotNil(t, handle.Params.Threshold)
		assert.Equal(t, 0.85, *handle.Params.Threshold)
	})

	t.Run("UnknownKeyRejected", func(t *testing.T) {
		t.Parallel()
		_, err := Resolve(config.ProviderSection{
			Provider: "neo4j",
			Config:   map[string]any{"pasword": "oops"},
		})
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})

	t.Run("ThresholdOutOfRange", func(t *testing.T) {
		t.Parallel()
		_, err := Resolve(config.ProviderSection{
			Provider: "neo4j",
			Config:   map[string]any{"threshold": 1.5},
		})
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
}

func TestResolved_NewStore(t *testing.T) {
	orig := registry
	defer func() { registry = orig }()
	registry = make(map[ProviderType]StoreFactory)

	var got Config
	RegisterStore(ProviderNeo4j, func(_ context.Context, cfg Config) (Store, error) {
		got = cfg
		return nil, nil
	})

	t.Run("PasswordFromParams", func(t *testing.T) {
		handle, err := Resolve(config.ProviderSection{
			Provider: "neo4j",
			Config:   map[string]any{"password": "from-params"},
		})
		require.NoError(t, err)
		_, err = handle.NewStore(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "from-params", got.Password)
		assert.Equal(t, DefaultThreshold, got.Threshold)
	})

	t.Run("OptionOverridesParams", func(t *testing.T) {
		handle, err := Resolve(config.ProviderSection{
			Provider: "neo4j",
			Config:   map[string]any{"password": "from-params"},
		})
		require.NoError(t, err)
		_, err = handle.NewStore(context.Background(), nil, WithPassword("explicit"))
		require.NoError(t, err)
		assert.Equal(t, "explicit", got.Password)
	})

	t.Run("PasswordFromSecretRef", func(t *testing.T) {
		t.Setenv("MNEMO_TEST_GRAPH_PASS", "from-ref")
		store := secrets.NewRegistry(secrets.Options{})
		handle, err := Resolve(config.ProviderSection{
			Provider: "neo4j",
			Config:   map[string]any{"password_ref": "env:MNEMO_TEST_GRAPH_PASS"},
		})
		require.NoError(t, err)
		_, err = handle.NewStore(context.Background(), store)
		require.NoError(t, err)
		assert.Equal(t, "from-ref", got.Password)
	})

	t.Run("PasswordFromEnvFallback", func(t *testing.T) {
		t.Setenv(PasswordEnvVar, "from-env")
		handle, err := Resolve(config.ProviderSection{
			Provider: "neo4j",
			Config:   map[string]any{},
		})
		require.NoError(t, err)
		_, err = handle.NewStore(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "from-env", got.Password)
	})

	t.Run("MissingPassword", func(t *testing.T) {
		t.Setenv(PasswordEnvVar, "")
		handle, err := Resolve(config.ProviderSection{
			Provider: "neo4j",
			Config:   map[string]any{},
		})
		require.NoError(t, err)
		_, err = handle.NewStore(context.Background(), nil)
		assert.ErrorIs(t, err, ErrMissingCredential)
	})
}

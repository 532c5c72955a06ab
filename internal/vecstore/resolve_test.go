package vecstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-org/mnemo/internal/cmn/config"
	"github.com/mnemo-org/mnemo/internal/cmn/secrets"
)

func TestParseProviderType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  ProviderType
	}{
		{"memvec", ProviderMemvec},
		{"memory", ProviderMemvec},
		{"inmemory", ProviderMemvec},
		{"Qdrant", ProviderQdrant},
		{"redis", ProviderRedis},
		{"pgvector", ProviderPGVector},
		{"postgres", ProviderPGVector},
		{"pg", ProviderPGVector},
		{"sqlitevec", ProviderSQLiteVec},
		{"sqlite-vec", ProviderSQLiteVec},
		{"sqlite", ProviderSQLiteVec},
		{"  memvec  ", ProviderMemvec},
	}
	for _, tc := range tests {
		got, err := ParseProviderType(tc.input)
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.want, got, tc.input)
	}

	_, err := ParseProviderType("chroma")
	assert.ErrorIs(t, err, ErrUnknownProvider)
	_, err = ParseProviderType("")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("Defaults", func(t *testing.T) {
		t.Parallel()
		handle, err := Resolve(config.ProviderSection{
			Provider: "memvec",
			Config:   map[string]any{},
		})
		require.NoError(t, err)
		assert.Equal(t, ProviderMemvec, handle.Provider)
		assert.Equal(t, DefaultCollectionName, handle.Params.CollectionName)
	})

	t.Run("FullSection", func(t *testing.T) {
		t.Parallel()
		handle, err := Resolve(config.ProviderSection{
			Provider: "qdrant",
			Config: map[string]any{
				"collection_name": "facts",
				"url":             "http://qdrant:6333",
				"dimensions":      768,
				"timeout":         "10s",
			},
		})
		require.NoError(t, err)
		assert.Equal(t, ProviderQdrant, handle.Provider)
		assert.Equal(t, "facts", handle.Params.CollectionName)
		assert.Equal(t, "http://qdrant:6333", handle.Params.URL)
		require.NotNil(t, handle.Params.Dimensions)
		assert.Equal(t, 768, *handle.Params.Dimensions)
		assert.Equal(t, 10*time.Second, handle.Params.Timeout)
	})

	t.Run("UnknownKeyRejected", func(t *testing.T) {
		t.Parallel()
		_, err := Resolve(config.ProviderSection{
			Provider: "memvec",
			Config:   map[string]any{"colection_name": "oops"},
		})
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})

	t.Run("PGVectorRequiresDSN", func(t *testing.T) {
		t.Parallel()
		_, err := Resolve(config.ProviderSection{
			Provider: "pgvector",
			Config:   map[string]any{},
		})
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})

	t.Run("InvalidDimensions", func(t *testing.T) {
		t.Parallel()
		_, err := Resolve(config.ProviderSection{
			Provider: "memvec",
			Config:   map[string]any{"dimensions": 0},
		})
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})

	t.Run("BadSecretRef", func(t *testing.T) {
		t.Parallel()
		_, err := Resolve(config.ProviderSection{
			Provider: "qdrant",
			Config:   map[string]any{"api_key_ref": "nonsense"},
		})
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
}

func TestResolved_NewStore(t *testing.T) {
	orig := registry
	defer func() { registry = orig }()
	registry = make(map[ProviderType]StoreFactory)

	var got Config
	factory := func(_ context.Context, cfg Config) (Store, error) {
		got = cfg
		return nil, nil
	}
	RegisterStore(ProviderMemvec, factory)
	RegisterStore(ProviderQdrant, factory)
	RegisterStore(ProviderSQLiteVec, factory)

	t.Run("DerivesSnapshotPath", func(t *testing.T) {
		handle, err := Resolve(config.ProviderSection{Provider: "memvec", Config: map[string]any{}})
		require.NoError(t, err)
		_, err = handle.NewStore(context.Background(), nil, WithDataDir("/data/vectors"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/data/vectors", "mnemo.snapshot"), got.Path)
		assert.Equal(t, DefaultDimensions, got.Dimensions)
	})

	t.Run("DerivesDatabasePath", func(t *testing.T) {
		handle, err := Resolve(config.ProviderSection{
			Provider: "sqlitevec",
			Config:   map[string]any{"collection_name": "facts"},
		})
		require.NoError(t, err)
		_, err = handle.NewStore(context.Background(), nil, WithDataDir("/data/vectors"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/data/vectors", "facts.db"), got.Path)
	})

	t.Run("ExplicitPathWins", func(t *testing.T) {
		handle, err := Resolve(config.ProviderSection{
			Provider: "memvec",
			Config:   map[string]any{"path": "/custom/index.snapshot"},
		})
		require.NoError(t, err)
		_, err = handle.NewStore(context.Background(), nil, WithDataDir("/data/vectors"))
		require.NoError(t, err)
		assert.Equal(t, "/custom/index.snapshot", got.Path)
	})

	t.Run("DimensionsOption", func(t *testing.T) {
		handle, err := Resolve(config.ProviderSection{Provider: "memvec", Config: map[string]any{}})
		require.NoError(t, err)
		_, err = handle.NewStore(context.Background(), nil, WithDimensions(768))
		require.NoError(t, err)
		assert.Equal(t, 768, got.Dimensions)
	})

	t.Run("KeyFromSecretRef", func(t *testing.T) {
		t.Setenv("MNEMO_TEST_VEC_KEY", "from-ref")
		store := secrets.NewRegistry(secrets.Options{})
		handle, err := Resolve(config.ProviderSection{
			Provider: "qdrant",
			Config:   map[string]any{"api_key_ref": "env:MNEMO_TEST_VEC_KEY"},
		})
		require.NoError(t, err)
		_, err = handle.NewStore(context.Background(), store)
		require.NoError(t, err)
		assert.Equal(t, "from-ref", got.APIKey)
	})

	t.Run("RefWithoutSecretStore", func(t *testing.T) {
		handle, err := Resolve(config.ProviderSection{
			Provider: "qdrant",
			Config:   map[string]any{"api_key_ref": "env:MNEMO_TEST_VEC_KEY"},
		})
		require.NoError(t, err)
		_, err = handle.NewStore(context.Background(), nil)
		assert.ErrorIs(t, err, ErrMissingCredential)
	})

	t.Run("UnregisteredProvider", func(t *testing.T) {
		handle, err := Resolve(config.ProviderSection{Provider: "redis", Config: map[string]any{}})
		require.NoError(t, err)
		_, err = handle.NewStore(context.Background(), nil)
		assert.ErrorIs(t, err, ErrUnknownProvider)
	})
}

func TestFiltersMatch(t *testing.T) {
	t.Parallel()

	payload := map[string]any{"user_id": "alice", "agent_id": "helper"}

	assert.True(t, Filters{}.Match(payload))
	assert.True(t, Filters{UserID: "alice"}.Match(payload))
	assert.True(t, Filters{UserID: "alice", AgentID: "helper"}.Match(payload))
	assert.False(t, Filters{UserID: "bob"}.Match(payload))
	assert.False(t, Filters{RunID: "r1"}.Match(payload))
	assert.False(t, Filters{UserID: "alice"}.Match(nil))
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_ApplyDefaults(t *testing.T) {
	t.Parallel()

	t.Run("EmptyGetsAllDefaults", func(t *testing.T) {
		t.Parallel()
		var m Memory
		require.NoError(t, m.ApplyDefaults())

		assert.Equal(t, "openai", m.LLM.Provider)
		assert.Equal(t, "gpt-4o-mini", m.LLM.Config["model"])
		assert.Equal(t, "openai", m.Embedder.Provider)
		assert.Equal(t, "memvec", m.VectorStore.Provider)
		assert.Nil(t, m.GraphStore)
	})

	t.Run("SectionsAreAtomic", func(t *testing.T) {
		t.Parallel()
		m := Memory{
			LLM: ProviderSection{Provider: "anthropic"},
		}
		require.NoError(t, m.ApplyDefaults())

		// A half-filled section must not inherit default config keys:
		// anthropic without a model stays without a model.
		assert.Equal(t, "anthropic", m.LLM.Provider)
		assert.Empty(t, m.LLM.Config)

		// Untouched sections still get their defaults.
		assert.Equal(t, "openai", m.Embedder.Provider)
		assert.Equal(t, "memvec", m.VectorStore.Provider)
	})

	t.Run("FilledSectionsUntouched", func(t *testing.T) {
		t.Parallel()
		m := Memory{
			LLM: ProviderSection{
				Provider: "openai_structured",
				Config:   map[string]any{"model": "gpt-4o-2024-08-06"},
			},
		}
		require.NoError(t, m.ApplyDefaults())

		assert.Equal(t, "openai_structured", m.LLM.Provider)
		assert.Equal(t, "gpt-4o-2024-08-06", m.LLM.Config["model"])
	})
}

func TestProviderSection_IsZero(t *testing.T) {
	t.Parallel()

	assert.True(t, ProviderSection{}.IsZero())
	assert.False(t, ProviderSection{Provider: "openai"}.IsZero())
	assert.False(t, ProviderSection{Config: map[string]any{"model": "x"}}.IsZero())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		return &Config{
			Server:    Server{Host: "127.0.0.1", Port: 8000, Auth: Auth{Mode: AuthModeNone}},
			Telemetry: Telemetry{SampleRatio: 1.0},
		}
	}

	t.Run("Valid", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, valid().Validate())
	})

	t.Run("PortTooLarge", func(t *testing.T) {
		t.Parallel()
		cfg := valid()
		cfg.Server.Port = 99999
		assert.Error(t, cfg.Validate())
	})

	t.Run("PortZero", func(t *testing.T) {
		t.Parallel()
		cfg := valid()
		cfg.Server.Port = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("IncompleteTLS", func(t *testing.T) {
		t.Parallel()
		cfg := valid()
		cfg.Server.TLS = &TLSConfig{CertFile: "cert.pem"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("TokenModeRequiresToken", func(t *testing.T) {
		t.Parallel()
		cfg := valid()
		cfg.Server.Auth.Mode = AuthModeToken
		assert.Error(t, cfg.Validate())
	})

	t.Run("SampleRatioOutOfRange", func(t *testing.T) {
		t.Parallel()
		cfg := valid()
		cfg.Telemetry.SampleRatio = 1.5
		assert.Error(t, cfg.Validate())
	})
}

func TestServer_Addr(t *testing.T) {
	t.Parallel()

	s := Server{Host: "0.0.0.0", Port: 9000}
	assert.Equal(t, "0.0.0.0:9000", s.Addr())
}

func TestCleanBasePath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", cleanBasePath(""))
	assert.Equal(t, "", cleanBasePath("/"))
	assert.Equal(t, "/api", cleanBasePath("api"))
	assert.Equal(t, "/api", cleanBasePath("/api/"))
	assert.Equal(t, "/a/b", cleanBasePath("/a//b"))
}

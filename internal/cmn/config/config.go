package config

import (
	"fmt"
	"path"
	"reflect"

	"dario.cat/mergo"
)

// Config holds the overall configuration for the application.
type Config struct {
	Core      Core
	Server    Server
	Paths     PathsConfig
	Memory    Memory
	Telemetry Telemetry
	Secrets   SecretsConfig
	Warnings  []string
}

// Core holds settings that apply to every command.
type Core struct {
	// Debug toggles debug logging and extra error detail.
	Debug bool
	// LogFormat selects the log output format ("text" or "json").
	LogFormat string
	// Quiet suppresses console log output.
	Quiet bool
}

// Server holds the REST API server configuration.
type Server struct {
	Host     string
	Port     int
	BasePath string
	Auth     Auth
	TLS      *TLSConfig
	Metrics  MetricsAccess
}

// Addr returns the listen address in host:port form.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthMode determines how API requests are authenticated.
type AuthMode string

const (
	// AuthModeNone disables authentication.
	AuthModeNone AuthMode = "none"
	// AuthModeToken requires a bearer token on every API request.
	AuthModeToken AuthMode = "token"
)

// Auth holds API authentication settings.
type Auth struct {
	Mode  AuthMode
	Token string
}

// TLSConfig holds the TLS certificate settings for the server.
type TLSConfig struct {
	CertFile string
	KeyFile  string
}

// MetricsAccess controls who may scrape the /metrics endpoint.
type MetricsAccess string

const (
	// MetricsAccessPublic exposes /metrics without authentication.
	MetricsAccessPublic MetricsAccess = "public"
	// MetricsAccessPrivate requires the same auth as the API.
	MetricsAccessPrivate MetricsAccess = "private"
)

// PathsConfig holds resolved filesystem paths.
type PathsConfig struct {
	// ConfigDir is the primary configuration directory.
	ConfigDir string
	// DataDir is the directory for persisting application data.
	DataDir string
	// LogDir is the directory where application logs are stored.
	LogDir string
	// HistoryDB is the SQLite file recording memory mutations.
	HistoryDB string
	// VectorDir is the directory used by file-backed vector stores.
	VectorDir string
	// ConfigFileUsed is the configuration file that was loaded, if any.
	ConfigFileUsed string
}

// ProviderSection selects a provider implementation and carries its raw,
// provider-specific settings. The config map is decoded and validated by
// the subsystem that owns the section (llm, embedder, vecstore, graph).
type ProviderSection struct {
	Provider string         `mapstructure:"provider" yaml:"provider" json:"provider"`
	Config   map[string]any `mapstructure:"config" yaml:"config,omitempty" json:"config,omitempty"`
}

// IsZero reports whether the section carries no selection at all.
func (s ProviderSection) IsZero() bool {
	return s.Provider == "" && len(s.Config) == 0
}

// Memory groups the provider selections and prompts that drive the memory
// pipeline. This is the root of provider resolution: each section is turned
// into a typed handle by its subsystem before any client is constructed.
type Memory struct {
	LLM         ProviderSection
	Embedder    ProviderSection
	VectorStore ProviderSection
	// GraphStore is optional; graph memory is disabled when nil.
	GraphStore *ProviderSection

	// FactExtractionPrompt overrides the built-in fact extraction prompt.
	FactExtractionPrompt string
	// UpdateMemoryPrompt overrides the built-in memory update prompt.
	UpdateMemoryPrompt string
}

// DefaultMemory returns the provider selections used when a section is
// left entirely unset.
func DefaultMemory() Memory {
	return Memory{
		LLM: ProviderSection{
			Provider: "openai",
			Config:   map[string]any{"model": "gpt-4o-mini"},
		},
		Embedder: ProviderSection{
			Provider: "openai",
			Config:   map[string]any{"model": "text-embedding-3-small"},
		},
		VectorStore: ProviderSection{
			Provider: "memvec",
			Config:   map[string]any{"collection_name": "mnemo"},
		},
	}
}

// ApplyDefaults fills absent provider sections with the defaults. A section
// is treated as atomic: defaults never leak individual config keys into a
// section the user has started to fill in.
func (m *Memory) ApplyDefaults() error {
	return mergo.Merge(m, DefaultMemory(), mergo.WithTransformers(&sectionTransformer{}))
}

type sectionTransformer struct{}

var _ mergo.Transformers = (*sectionTransformer)(nil)

func (*sectionTransformer) Transformer(typ reflect.Type) func(dst, src reflect.Value) error {
	if typ != reflect.TypeOf(ProviderSection{}) {
		return nil
	}
	return func(dst, src reflect.Value) error {
		if !dst.CanSet() {
			return nil
		}
		provider := dst.FieldByName("Provider").String()
		cfg := dst.FieldByName("Config")
		if provider == "" && (cfg.IsNil() || cfg.Len() == 0) {
			dst.Set(src)
		}
		return nil
	}
}

// Telemetry holds the OpenTelemetry export settings.
type Telemetry struct {
	Enabled bool
	// Endpoint is the OTLP endpoint URL. The scheme selects the transport:
	// grpc:// uses OTLP/gRPC, http:// and https:// use OTLP/HTTP.
	Endpoint string
	Insecure bool
	// SampleRatio is the trace sampling ratio in [0, 1].
	SampleRatio float64
}

// SecretsConfig holds the settings for secret reference resolution.
type SecretsConfig struct {
	// BaseDir anchors relative file secret paths.
	BaseDir string
	// VaultAddr overrides the Vault server address (VAULT_ADDR otherwise).
	VaultAddr string
	// VaultToken overrides the Vault token (VAULT_TOKEN otherwise).
	VaultToken string
}

// Validate checks the configuration for invalid values.
func (cfg *Config) Validate() error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", cfg.Server.Port)
	}

	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			return fmt.Errorf("TLS configuration incomplete: both cert_file and key_file are required")
		}
	}

	if cfg.Server.Auth.Mode == AuthModeToken && cfg.Server.Auth.Token == "" {
		return fmt.Errorf("auth mode is %q but no token is configured", AuthModeToken)
	}

	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("invalid telemetry sample ratio: %f", cfg.Telemetry.SampleRatio)
	}

	return nil
}

func cleanBasePath(s string) string {
	if s == "" {
		return ""
	}

	cleanPath := path.Clean(s)
	if !path.IsAbs(cleanPath) {
		cleanPath = path.Join("/", cleanPath)
	}

	// Root path is equivalent to no base path
	if cleanPath == "/" {
		return ""
	}
	return cleanPath
}

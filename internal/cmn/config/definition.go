package config

// Definition holds the raw configuration as read from external sources
// (YAML files and environment variables). Each field maps to a
// configuration key; pointers distinguish "unset" from zero values.
type Definition struct {
	// Debug toggles debug mode; when true, the application may output extra logs and error details.
	Debug bool `mapstructure:"debug"`

	// LogFormat defines the output format for log messages.
	// Available options: "json", "text"
	LogFormat string `mapstructure:"logFormat"`

	// Quiet suppresses console log output.
	Quiet bool `mapstructure:"quiet"`

	// Host defines the hostname or IP address the server binds to.
	Host string `mapstructure:"host"`

	// Port specifies the network port for incoming connections.
	Port int `mapstructure:"port"`

	// BasePath is the root URL path from which the API is served.
	// This is useful when hosting the app behind a reverse proxy under a subpath.
	BasePath string `mapstructure:"basePath"`

	// Metrics controls access to the /metrics endpoint ("public" or "private").
	Metrics *string `mapstructure:"metrics"`

	// Auth contains API authentication settings.
	Auth *AuthDef `mapstructure:"auth"`

	// TLS configures HTTPS for the server.
	TLS *TLSDef `mapstructure:"tls"`

	// Paths holds filesystem path configurations.
	Paths *PathsDef `mapstructure:"paths"`

	// LLM selects the chat completion provider.
	LLM *ProviderSectionDef `mapstructure:"llm"`

	// Embedder selects the embedding provider.
	Embedder *ProviderSectionDef `mapstructure:"embedder"`

	// VectorStore selects the vector store provider.
	VectorStore *ProviderSectionDef `mapstructure:"vectorStore"`

	// GraphStore selects the optional graph store provider.
	GraphStore *ProviderSectionDef `mapstructure:"graphStore"`

	// Memory holds pipeline-level memory settings.
	Memory *MemoryDef `mapstructure:"memory"`

	// Telemetry holds OpenTelemetry export settings.
	Telemetry *TelemetryDef `mapstructure:"telemetry"`

	// Secrets holds settings for secret reference resolution.
	Secrets *SecretsDef `mapstructure:"secrets"`
}

// AuthDef maps the auth configuration section.
type AuthDef struct {
	// Mode selects the authentication mode ("none" or "token").
	Mode *string `mapstructure:"mode"`
	// Token is the static bearer token. Supports secret references
	// (e.g. "env:MNEMO_API_TOKEN").
	Token string `mapstructure:"token"`
}

// TLSDef maps the tls configuration section.
type TLSDef struct {
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
}

// PathsDef maps the paths configuration section.
type PathsDef struct {
	DataDir   string `mapstructure:"dataDir"`
	LogDir    string `mapstructure:"logDir"`
	HistoryDB string `mapstructure:"historyDb"`
	VectorDir string `mapstructure:"vectorDir"`
}

// ProviderSectionDef maps a provider selection section. The config map is
// passed through untouched; strict decoding happens in the owning subsystem.
type ProviderSectionDef struct {
	Provider string         `mapstructure:"provider"`
	Config   map[string]any `mapstructure:"config"`
}

// MemoryDef maps the memory configuration section.
type MemoryDef struct {
	// FactExtractionPrompt overrides the built-in fact extraction prompt.
	FactExtractionPrompt string `mapstructure:"factExtractionPrompt"`
	// UpdateMemoryPrompt overrides the built-in memory update prompt.
	UpdateMemoryPrompt string `mapstructure:"updateMemoryPrompt"`
}

// TelemetryDef maps the telemetry configuration section.
type TelemetryDef struct {
	Enabled     *bool    `mapstructure:"enabled"`
	Endpoint    string   `mapstructure:"endpoint"`
	Insecure    *bool    `mapstructure:"insecure"`
	SampleRatio *float64 `mapstructure:"sampleRatio"`
}

// SecretsDef maps the secrets configuration section.
type SecretsDef struct {
	BaseDir    string `mapstructure:"baseDir"`
	VaultAddr  string `mapstructure:"vaultAddr"`
	VaultToken string `mapstructure:"vaultToken"`
}

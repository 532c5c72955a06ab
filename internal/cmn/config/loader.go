package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mnemo-org/mnemo/internal/cmn/fileutil"
)

// ConfigLoader reads and merges configuration from various sources:
// the shared base config file, the main config file, environment
// variables and built-in defaults.
type ConfigLoader struct {
	v          *viper.Viper
	configFile string
	appHomeDir string
	warnings   []string
}

// ConfigLoaderOption defines a functional option for configuring a ConfigLoader.
type ConfigLoaderOption func(*ConfigLoader)

// WithConfigFile returns a ConfigLoaderOption that sets the configuration file path.
func WithConfigFile(configFile string) ConfigLoaderOption {
	return func(l *ConfigLoader) {
		l.configFile = configFile
	}
}

// WithAppHomeDir returns a ConfigLoaderOption that sets the application home
// directory, overriding the default MNEMO_HOME resolution.
func WithAppHomeDir(dir string) ConfigLoaderOption {
	return func(l *ConfigLoader) {
		l.appHomeDir = dir
	}
}

// NewConfigLoader creates a ConfigLoader with the given viper instance and options.
func NewConfigLoader(v *viper.Viper, options ...ConfigLoaderOption) *ConfigLoader {
	loader := &ConfigLoader{v: v}
	for _, opt := range options {
		opt(loader)
	}
	return loader
}

// Load reads configuration with a fresh viper instance.
func Load(options ...ConfigLoaderOption) (*Config, error) {
	return NewConfigLoader(viper.New(), options...).Load()
}

// Load reads configuration files, applies defaults and environment overrides,
// and returns a validated Config instance.
func (l *ConfigLoader) Load() (*Config, error) {
	homeDir, err := getHomeDir()
	if err != nil {
		return nil, err
	}

	xdgConfig := XDGConfig{
		DataHome:   xdg.DataHome,
		ConfigHome: filepath.Join(homeDir, ".config"),
	}

	l.loadDotenv()

	paths, err := l.setupViper(xdgConfig, homeDir)
	if err != nil {
		return nil, err
	}
	l.warnings = append(l.warnings, paths.Warnings...)

	if err := l.readConfigFiles(); err != nil {
		return nil, err
	}

	configFileUsed, err := l.resolvePath("config file", l.v.ConfigFileUsed())
	if err != nil {
		return nil, err
	}

	var def Definition
	if err := l.v.Unmarshal(&def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg, err := l.buildConfig(def, paths)
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}

	cfg.Paths.ConfigFileUsed = configFileUsed
	cfg.Warnings = l.warnings

	return cfg, nil
}

// loadDotenv loads a .env file from the working directory when present.
// Existing process environment always wins over .env entries.
func (l *ConfigLoader) loadDotenv() {
	if !fileutil.FileExists(".env") {
		return
	}
	if err := godotenv.Load(); err != nil {
		l.warnings = append(l.warnings, fmt.Sprintf("Failed to load .env file: %v", err))
	}
}

// readConfigFiles reads base.yaml first so that config.yaml keys override it.
// An explicit config file bypasses the base merge entirely.
func (l *ConfigLoader) readConfigFiles() error {
	if l.configFile != "" {
		if err := l.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		return nil
	}

	l.v.SetConfigName("base")
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read base config: %w", err)
		}
	}

	l.v.SetConfigName("config")
	if err := l.v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	return nil
}

// buildConfig transforms the Definition into a validated Config structure.
func (l *ConfigLoader) buildConfig(def Definition, paths Paths) (*Config, error) {
	cfg := &Config{}

	l.loadCoreConfig(cfg, def)
	if err := l.loadPathsConfig(cfg, def, paths); err != nil {
		return nil, err
	}
	l.loadServerConfig(cfg, def)
	if err := l.loadMemoryConfig(cfg, def); err != nil {
		return nil, err
	}
	l.loadTelemetryConfig(cfg, def)
	l.loadSecretsConfig(cfg, def)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (l *ConfigLoader) loadCoreConfig(cfg *Config, def Definition) {
	cfg.Core = Core{
		Debug:     def.Debug,
		LogFormat: def.LogFormat,
		Quiet:     def.Quiet,
	}
}

func (l *ConfigLoader) loadPathsConfig(cfg *Config, def Definition, paths Paths) error {
	cfg.Paths.ConfigDir = paths.ConfigDir
	cfg.Paths.DataDir = paths.DataDir
	cfg.Paths.LogDir = paths.LogsDir

	if def.Paths != nil {
		pathMappings := []struct {
			name   string
			target *string
			source string
		}{
			{"DataDir", &cfg.Paths.DataDir, def.Paths.DataDir},
			{"LogDir", &cfg.Paths.LogDir, def.Paths.LogDir},
			{"HistoryDB", &cfg.Paths.HistoryDB, def.Paths.HistoryDB},
			{"VectorDir", &cfg.Paths.VectorDir, def.Paths.VectorDir},
		}

		for _, m := range pathMappings {
			if m.source == "" {
				continue
			}
			resolved, err := l.resolvePath(m.name, m.source)
			if err != nil {
				return err
			}
			*m.target = resolved
		}
	}

	// Derive storage paths from the data directory when not set explicitly.
	if cfg.Paths.HistoryDB == "" {
		cfg.Paths.HistoryDB = filepath.Join(cfg.Paths.DataDir, "history.db")
	}
	if cfg.Paths.VectorDir == "" {
		cfg.Paths.VectorDir = filepath.Join(cfg.Paths.DataDir, "vectors")
	}

	return nil
}

func (l *ConfigLoader) loadServerConfig(cfg *Config, def Definition) {
	cfg.Server = Server{
		Host:     def.Host,
		Port:     def.Port,
		BasePath: cleanBasePath(def.BasePath),
		Auth:     Auth{Mode: AuthModeNone},
	}

	l.loadServerAuth(cfg, def)
	l.loadServerTLS(cfg, def)
	l.loadServerMetrics(cfg, def)
}

func (l *ConfigLoader) loadServerAuth(cfg *Config, def Definition) {
	if def.Auth == nil {
		return
	}

	if def.Auth.Mode != nil {
		mode := AuthMode(*def.Auth.Mode)
		switch mode {
		case AuthModeNone, AuthModeToken:
			cfg.Server.Auth.Mode = mode
		default:
			l.warnings = append(l.warnings, fmt.Sprintf("Invalid auth.mode value: %q, defaulting to 'none'", *def.Auth.Mode))
		}
	} else if def.Auth.Token != "" {
		// A configured token implies token mode.
		cfg.Server.Auth.Mode = AuthModeToken
	}

	cfg.Server.Auth.Token = def.Auth.Token

	if cfg.Server.Auth.Mode == AuthModeToken && cfg.Server.Auth.Token != "" {
		weakTokens := []string{"changeme", "secret", "password", "test", "mnemo"}
		for _, weak := range weakTokens {
			if strings.EqualFold(cfg.Server.Auth.Token, weak) {
				l.warnings = append(l.warnings,
					"API token is a well-known default value, use a strong random value for production")
				break
			}
		}
	}
}

func (l *ConfigLoader) loadServerTLS(cfg *Config, def Definition) {
	if def.TLS != nil {
		cfg.Server.TLS = &TLSConfig{
			CertFile: def.TLS.CertFile,
			KeyFile:  def.TLS.KeyFile,
		}
	}
}

func (l *ConfigLoader) loadServerMetrics(cfg *Config, def Definition) {
	cfg.Server.Metrics = MetricsAccessPrivate
	if def.Metrics != nil {
		switch MetricsAccess(*def.Metrics) {
		case MetricsAccessPublic, MetricsAccessPrivate:
			cfg.Server.Metrics = MetricsAccess(*def.Metrics)
		default:
			l.warnings = append(l.warnings, fmt.Sprintf("Invalid metrics value: %q, defaulting to 'private'", *def.Metrics))
		}
	}
}

func (l *ConfigLoader) loadMemoryConfig(cfg *Config, def Definition) error {
	if def.LLM != nil {
		cfg.Memory.LLM = ProviderSection(*def.LLM)
	}
	if def.Embedder != nil {
		cfg.Memory.Embedder = ProviderSection(*def.Embedder)
	}
	if def.VectorStore != nil {
		cfg.Memory.VectorStore = ProviderSection(*def.VectorStore)
	}
	if def.GraphStore != nil {
		section := ProviderSection(*def.GraphStore)
		cfg.Memory.GraphStore = &section
	}

	if def.Memory != nil {
		cfg.Memory.FactExtractionPrompt = def.Memory.FactExtractionPrompt
		cfg.Memory.UpdateMemoryPrompt = def.Memory.UpdateMemoryPrompt
	}

	return cfg.Memory.ApplyDefaults()
}

func (l *ConfigLoader) loadTelemetryConfig(cfg *Config, def Definition) {
	cfg.Telemetry.SampleRatio = 1.0

	if def.Telemetry == nil {
		return
	}

	cfg.Telemetry.Endpoint = def.Telemetry.Endpoint
	if def.Telemetry.Enabled != nil {
		cfg.Telemetry.Enabled = *def.Telemetry.Enabled
	} else {
		// An endpoint implies telemetry is wanted.
		cfg.Telemetry.Enabled = def.Telemetry.Endpoint != ""
	}
	if def.Telemetry.Insecure != nil {
		cfg.Telemetry.Insecure = *def.Telemetry.Insecure
	}
	if def.Telemetry.SampleRatio != nil {
		cfg.Telemetry.SampleRatio = *def.Telemetry.SampleRatio
	}
}

func (l *ConfigLoader) loadSecretsConfig(cfg *Config, def Definition) {
	if def.Secrets == nil {
		return
	}
	cfg.Secrets.BaseDir = fileutil.ResolvePathOrBlank(def.Secrets.BaseDir)
	cfg.Secrets.VaultAddr = def.Secrets.VaultAddr
	cfg.Secrets.VaultToken = def.Secrets.VaultToken
}

// resolvePath resolves a path to an absolute path. Empty paths are returned as-is.
func (l *ConfigLoader) resolvePath(fieldName, pathValue string) (string, error) {
	if pathValue == "" {
		return "", nil
	}
	resolved, err := fileutil.ResolvePath(pathValue)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s path %q: %w", fieldName, pathValue, err)
	}
	return resolved, nil
}

func (l *ConfigLoader) setupViper(xdgConfig XDGConfig, homeDir string) (Paths, error) {
	var paths Paths

	if l.appHomeDir != "" {
		paths = setUnifiedPaths(fileutil.ResolvePathOrBlank(l.appHomeDir))
	} else {
		paths = ResolvePaths(strings.ToUpper(AppSlug)+"_HOME", filepath.Join(homeDir, "."+AppSlug), xdgConfig)
	}

	l.configureViper(paths.ConfigDir)
	l.bindEnvironmentVariables()
	l.setViperDefaultValues(paths)

	return paths, nil
}

func (l *ConfigLoader) configureViper(configDir string) {
	if l.configFile == "" {
		l.v.AddConfigPath(configDir)
		l.v.SetConfigName("config")
	} else {
		l.v.SetConfigFile(l.configFile)
	}
	l.v.SetConfigType("yaml")
	l.v.SetEnvPrefix(strings.ToUpper(AppSlug))
	l.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	l.v.AutomaticEnv()
}

func (l *ConfigLoader) setViperDefaultValues(paths Paths) {
	// Paths
	l.v.SetDefault("paths.dataDir", paths.DataDir)
	l.v.SetDefault("paths.logDir", paths.LogsDir)

	// Server
	l.v.SetDefault("host", "127.0.0.1")
	l.v.SetDefault("port", 8000)
	l.v.SetDefault("debug", false)
	l.v.SetDefault("quiet", false)
	l.v.SetDefault("basePath", "")
	l.v.SetDefault("metrics", "private")
	l.v.SetDefault("logFormat", "text")

	// Telemetry
	l.v.SetDefault("telemetry.sampleRatio", 1.0)
}

type envBinding struct {
	key    string
	env    string
	isPath bool
}

var envBindings = []envBinding{
	// Core
	{key: "debug", env: "DEBUG"},
	{key: "quiet", env: "QUIET"},
	{key: "logFormat", env: "LOG_FORMAT"},

	// Server
	{key: "host", env: "HOST"},
	{key: "port", env: "PORT"},
	{key: "basePath", env: "BASE_PATH"},
	{key: "metrics", env: "METRICS"},
	{key: "auth.mode", env: "AUTH_MODE"},
	{key: "auth.token", env: "AUTH_TOKEN"},
	{key: "tls.certFile", env: "CERT_FILE"},
	{key: "tls.keyFile", env: "KEY_FILE"},

	// Paths
	{key: "paths.dataDir", env: "DATA_DIR", isPath: true},
	{key: "paths.logDir", env: "LOG_DIR", isPath: true},
	{key: "paths.historyDb", env: "HISTORY_DB", isPath: true},
	{key: "paths.vectorDir", env: "VECTOR_DIR", isPath: true},

	// Providers
	{key: "llm.provider", env: "LLM_PROVIDER"},
	{key: "llm.config.model", env: "LLM_MODEL"},
	{key: "llm.config.base_url", env: "LLM_BASE_URL"},
	{key: "embedder.provider", env: "EMBEDDER_PROVIDER"},
	{key: "embedder.config.model", env: "EMBEDDER_MODEL"},
	{key: "vectorStore.provider", env: "VECTOR_STORE_PROVIDER"},
	{key: "graphStore.provider", env: "GRAPH_STORE_PROVIDER"},

	// Telemetry
	{key: "telemetry.enabled", env: "TELEMETRY_ENABLED"},
	{key: "telemetry.endpoint", env: "TELEMETRY_ENDPOINT"},
	{key: "telemetry.insecure", env: "TELEMETRY_INSECURE"},
	{key: "telemetry.sampleRatio", env: "TELEMETRY_SAMPLE_RATIO"},

	// Secrets
	{key: "secrets.baseDir", env: "SECRETS_BASE_DIR", isPath: true},
	{key: "secrets.vaultAddr", env: "VAULT_ADDR"},
	{key: "secrets.vaultToken", env: "VAULT_TOKEN"},
}

func (l *ConfigLoader) bindEnvironmentVariables() {
	prefix := strings.ToUpper(AppSlug) + "_"

	for _, b := range envBindings {
		fullEnv := prefix + b.env

		if b.isPath {
			if val := os.Getenv(fullEnv); val != "" {
				if abs, err := filepath.Abs(val); err == nil && abs != val {
					_ = os.Setenv(fullEnv, abs)
				}
			}
		}

		_ = l.v.BindEnv(b.key, fullEnv)
	}
}

func getHomeDir() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return dir, nil
}

package config

import (
	"os"
	"path/filepath"

	"github.com/mnemo-org/mnemo/internal/cmn/fileutil"
)

// Paths holds various file system path settings used by the application.
type Paths struct {
	// ConfigDir is the primary configuration directory.
	ConfigDir string
	// DataDir is the directory for persisting application data.
	DataDir string
	// LogsDir is the directory where application logs are stored.
	LogsDir string
	// BaseConfigFile is the full path to the shared base configuration file.
	BaseConfigFile string
	// Warnings collects any warnings encountered during path resolution.
	Warnings []string
}

// XDGConfig contains the standard XDG directories used as a fallback.
type XDGConfig struct {
	DataHome   string
	ConfigHome string
}

// ResolvePaths determines application paths based on the provided application
// home environment variable, a legacy path, and an XDGConfig.
//
// Resolution logic:
// 1. If the environment variable (appHomeEnv) is set, use its value with the unified layout.
// 2. Else, if the legacyPath exists on disk, use it.
// 3. Otherwise, fall back to XDG-compliant defaults.
func ResolvePaths(appHomeEnv, legacyPath string, xdg XDGConfig) Paths {
	switch {
	case os.Getenv(appHomeEnv) != "":
		return setUnifiedPaths(os.Getenv(appHomeEnv))
	case fileutil.FileExists(legacyPath):
		return setUnifiedPaths(legacyPath)
	default:
		configDir := filepath.Join(xdg.ConfigHome, AppSlug)
		return setXDGPaths(xdg, configDir)
	}
}

// setXDGPaths sets the paths based on XDG environment variables.
// This approach uses the standard XDG directories (DataHome and ConfigHome)
// to organize application data, logs, and configuration files.
func setXDGPaths(xdg XDGConfig, configDir string) Paths {
	return Paths{
		ConfigDir:      configDir,
		DataDir:        filepath.Join(xdg.DataHome, AppSlug, "data"),
		LogsDir:        filepath.Join(xdg.DataHome, AppSlug, "logs"),
		BaseConfigFile: filepath.Join(xdg.ConfigHome, AppSlug, "base.yaml"),
	}
}

// setUnifiedPaths sets the application paths using a single home directory,
// where all subdirectories are placed within the configuration directory.
func setUnifiedPaths(configDir string) Paths {
	return Paths{
		ConfigDir:      configDir,
		DataDir:        filepath.Join(configDir, "data"),
		LogsDir:        filepath.Join(configDir, "logs"),
		BaseConfigFile: filepath.Join(configDir, "base.yaml"),
	}
}

// Package upgrade implements self-upgrade from GitHub releases: version
// comparison, platform-specific asset selection, checksum-verified
// download and atomic binary replacement.
package upgrade

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/mnemo-org/mnemo/internal/build"
)

// Options configures the upgrade operation.
type Options struct {
	TargetVersion     string // empty = latest
	CheckOnly         bool
	DryRun            bool
	CreateBackup      bool
	Force             bool
	IncludePreRelease bool
	OnProgress        func(downloaded, total int64)
}

// ReleaseInfo bundles pre-fetched release data so check and upgrade
// share one set of API calls.
type ReleaseInfo struct {
	Release       *Release
	Checksums     map[string]string
	Asset         *Asset
	TargetVersion *semver.Version
}

// Result describes the outcome of an upgrade operation.
type Result struct {
	CurrentVersion         string
	TargetVersion          string
	UpgradeNeeded          bool
	WasUpgraded            bool
	BackupPath             string
	DryRun                 bool
	AssetName              string
	AssetSize              int64
	DownloadURL            string
	ExecutablePath         string
	SpecificVersionRequest bool
}

// InstallMethod represents how the binary was installed.
type InstallMethod int

const (
	InstallMethodUnknown InstallMethod = iota
	InstallMethodBinary
	InstallMethodHomebrew
	InstallMethodSnap
	InstallMethodDocker
	InstallMethodGoInstall
)

var installMethodNames = map[InstallMethod]string{
	InstallMethodUnknown:   "unknown",
	InstallMethodBinary:    "binary",
	InstallMethodHomebrew:  "homebrew",
	InstallMethodSnap:      "snap",
	InstallMethodDocker:    "docker",
	InstallMethodGoInstall: "go install",
}

// String returns a human-readable name for the install method.
func (m InstallMethod) String() string {
	if name, ok := installMethodNames[m]; ok {
		return name
	}
	return "unknown"
}

// DetectInstallMethod checks how the binary was installed.
func DetectInstallMethod() InstallMethod {
	execPath, err := GetExecutablePath()
	if err != nil {
		return InstallMethodUnknown
	}

	if strings.Contains(execPath, "/Cellar/") || strings.Contains(execPath, "/homebrew/") {
		return InstallMethodHomebrew
	}

	if strings.HasPrefix(execPath, "/snap/") || os.Getenv("SNAP") != "" {
		return InstallMethodSnap
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		return InstallMethodDocker
	}

	gopath := os.Getenv("GOPATH")
	gobin := os.Getenv("GOBIN")
	if gobin != "" && strings.HasPrefix(execPath, gobin) {
		return InstallMethodGoInstall
	}
	if gopath != "" && strings.HasPrefix(execPath, filepath.Join(gopath, "bin")) {
		return InstallMethodGoInstall
	}

	return InstallMethodBinary
}

// CanSelfUpgrade reports whether a self-upgrade is possible, and if not,
// what the user should do instead.
func CanSelfUpgrade() (bool, string) {
	method := DetectInstallMethod()
	switch method {
	case InstallMethodHomebrew:
		return false, "Installed via Homebrew. Use 'brew upgrade mnemo' instead."
	case InstallMethodSnap:
		return false, "Installed via Snap. Use 'snap refresh mnemo' instead."
	case InstallMethodDocker:
		return false, "Running in Docker. Pull the latest image instead."
	case InstallMethodGoInstall:
		return false, "Installed via go install. Use 'go install github.com/mnemo-org/mnemo@latest' instead."
	case InstallMethodUnknown, InstallMethodBinary:
		return true, ""
	}
	return true, ""
}

// FormatResult formats the upgrade result for display.
func FormatResult(r *Result) string {
	var sb strings.Builder

	if r.DryRun {
		sb.WriteString("Dry run - no changes will be made\n\n")
	}

	fmt.Fprintf(&sb, "Current version: %s\n", NormalizeVersionTag(r.CurrentVersion))
	fmt.Fprintf(&sb, "Target version:  %s\n", r.TargetVersion)

	if !r.UpgradeNeeded && !r.WasUpgraded {
		sb.WriteString("\nAlready running the latest version.\n")
		return sb.String()
	}

	if r.DryRun {
		sb.WriteString("\nThe following changes will be made:\n")
		fmt.Fprintf(&sb, "  - Download: %s (%s)\n", r.AssetName, FormatBytes(r.AssetSize))
		sb.WriteString("  - Verify:   SHA256 checksum\n")
		fmt.Fprintf(&sb, "  - Replace:  %s\n", r.ExecutablePath)
		return sb.String()
	}

	if r.WasUpgraded {
		sb.WriteString("\nUpgrade successful!\n")
		if r.BackupPath != "" {
			fmt.Fprintf(&sb, "Backup created: %s\n", r.BackupPath)
		}
	}

	return sb.String()
}

// FormatCheckResult formats the check result for display.
func FormatCheckResult(r *Result) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Current version: %s\n", NormalizeVersionTag(r.CurrentVersion))
	label := "Latest version"
	if r.SpecificVersionRequest {
		label = "Target version"
	}
	fmt.Fprintf(&sb, "%s:  %s\n", label, r.TargetVersion)

	if r.UpgradeNeeded {
		sb.WriteString("\nAn update is available. Run 'mnemo upgrade' to update.\n")
	} else {
		sb.WriteString("\nYou are running the latest version.\n")
	}

	return sb.String()
}

// FetchReleaseInfo fetches the release, its checksums and the asset for
// this platform in one pass. Callers check CanSelfUpgrade first.
func FetchReleaseInfo(ctx context.Context, opts Options) (*ReleaseInfo, error) {
	platform := Detect()
	if !platform.IsSupported() {
		return nil, fmt.Errorf("platform %s is not supported\n%s", platform, SupportedPlatformsMessage())
	}

	client := NewGitHubClient()

	var release *Release
	var err error
	if opts.TargetVersion != "" {
		release, err = client.GetRelease(ctx, opts.TargetVersion)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch release %s: %w", opts.TargetVersion, err)
		}
	} else {
		release, err = client.GetLatestRelease(ctx, opts.IncludePreRelease)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch latest release: %w", err)
		}
	}

	targetV, err := ParseVersion(release.TagName)
	if err != nil {
		return nil, fmt.Errorf("failed to parse target version: %w", err)
	}

	asset, err := FindAsset(release, platform, release.TagName)
	if err != nil {
		return nil, err
	}

	checksums, err := client.GetChecksums(ctx, release)
	if err != nil {
		return nil, fmt.Errorf("failed to get checksums: %w", err)
	}

	return &ReleaseInfo{
		Release:       release,
		Checksums:     checksums,
		Asset:         asset,
		TargetVersion: targetV,
	}, nil
}

// UpgradeWithReleaseInfo performs the upgrade using pre-fetched release
// information.
func UpgradeWithReleaseInfo(ctx context.Context, opts Options, info *ReleaseInfo, store CacheStore) (*Result, error) {
	result := &Result{
		CurrentVersion:         build.Version,
		DryRun:                 opts.DryRun,
		TargetVersion:          info.Release.TagName,
		AssetName:              info.Asset.Name,
		AssetSize:              info.Asset.Size,
		DownloadURL:            info.Asset.BrowserDownloadURL,
		SpecificVersionRequest: opts.TargetVersion != "",
	}

	execPath, err := GetExecutablePath()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}
	result.ExecutablePath = execPath

	currentV, err := ParseVersion(build.Version)
	if err != nil {
		return nil, fmt.Errorf("cannot determine current version: %w", err)
	}

	result.UpgradeNeeded = IsNewer(currentV, info.TargetVersion)

	if opts.CheckOnly {
		return result, nil
	}

	if !result.UpgradeNeeded && !opts.Force {
		return result, nil
	}

	if opts.DryRun {
		return result, nil
	}

	// Fail fast before downloading anything.
	if err := CheckWritePermission(execPath); err != nil {
		return nil, err
	}

	expectedHash, ok := info.Checksums[info.Asset.Name]
	if !ok {
		return nil, fmt.Errorf("checksum for %s not found", info.Asset.Name)
	}

	tempDir, err := os.MkdirTemp("", "mnemo-upgrade-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	// Internal backup for restore if post-install verification fails.
	internalBackupPath := filepath.Join(tempDir, "mnemo.prev")
	if err := copyFile(execPath, internalBackupPath); err != nil {
		return nil, fmt.Errorf("failed to create internal backup: %w", err)
	}

	archivePath := filepath.Join(tempDir, info.Asset.Name)

	if err := Download(ctx, DownloadOptions{
		URL:          info.Asset.BrowserDownloadURL,
		Destination:  archivePath,
		ExpectedHash: expectedHash,
		OnProgress:   opts.OnProgress,
	}); err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}

	installResult, err := Install(ctx, InstallOptions{
		ArchivePath:     archivePath,
		TargetPath:      execPath,
		CreateBackup:    opts.CreateBackup,
		ExpectedVersion: info.Release.TagName,
	})
	if err != nil {
		return nil, fmt.Errorf("installation failed: %w", err)
	}

	result.WasUpgraded = installResult.Installed
	result.BackupPath = installResult.BackupPath

	if err := VerifyBinary(execPath, info.Release.TagName); err != nil {
		restoreSrc := internalBackupPath
		if result.BackupPath != "" {
			restoreSrc = result.BackupPath
		}
		if restoreErr := copyFile(restoreSrc, execPath); restoreErr == nil {
			return nil, fmt.Errorf("upgrade verification failed (restored backup): %w", err)
		}
		return nil, fmt.Errorf("upgrade verification failed (restore also failed): %w", err)
	}

	_ = store.Save(&UpgradeCheckCache{
		LastCheck:       time.Now(),
		CurrentVersion:  info.Release.TagName,
		LatestVersion:   info.Release.TagName,
		UpdateAvailable: false,
	})

	return result, nil
}

package upgrade

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform identifies the OS/arch pair a release asset is built for.
type Platform struct {
	OS   string
	Arch string
}

// supportedPlatforms lists the targets release archives are published for.
var supportedPlatforms = []Platform{
	{OS: "linux", Arch: "amd64"},
	{OS: "linux", Arch: "arm64"},
	{OS: "darwin", Arch: "amd64"},
	{OS: "darwin", Arch: "arm64"},
	{OS: "windows", Arch: "amd64"},
}

// Detect returns the platform of the running binary.
func Detect() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// IsSupported reports whether release assets exist for this platform.
func (p Platform) IsSupported() bool {
	for _, sp := range supportedPlatforms {
		if sp == p {
			return true
		}
	}
	return false
}

// String returns the canonical os/arch form.
func (p Platform) String() string {
	return p.OS + "/" + p.Arch
}

// AssetName returns the release archive name for this platform,
// e.g. "mnemo_1.2.3_linux_amd64.tar.gz".
func (p Platform) AssetName(version string) string {
	ext := "tar.gz"
	if p.OS == "windows" {
		ext = "zip"
	}
	return fmt.Sprintf("mnemo_%s_%s_%s.%s", ExtractVersionFromTag(version), p.OS, p.Arch, ext)
}

// SupportedPlatformsMessage lists supported platforms for error output.
func SupportedPlatformsMessage() string {
	var sb strings.Builder
	sb.WriteString("Supported platforms:\n")
	for p := range supportedPlatforms {
		fmt.Fprintf(&sb, "  - %s\n", p)
	}
	return sb.String()
}

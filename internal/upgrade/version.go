package upgrade

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/mnemo-org/mnemo/internal/build"
)

// ParseVersion parses a version string into a semver.Version. It accepts
// "v1.2.3", "1.2.3" and prerelease forms, and strips a trailing numeric
// build timestamp such as "1.4.0-260204123456".
func ParseVersion(s string) (*semver.Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty version string")
	}
	if s == "dev" || s == "0.0.0" {
		return nil, fmt.Errorf("development version")
	}

	s = strings.TrimPrefix(s, "v")

	if idx := strings.Index(s, "-"); idx != -1 {
		if isNumeric(s[idx+1:]) {
			s = s[:idx]
		}
	}

	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("invalid version format %q: %w", s, err)
	}
	return v, nil
}

// CurrentVersion parses the version compiled into the binary.
func CurrentVersion() (*semver.Version, error) {
	return ParseVersion(build.Version)
}

// IsNewer reports whether target is newer than current.
func IsNewer(current, target *semver.Version) bool {
	return current.Compare(target) < 0
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// NormalizeVersionTag ensures a version string has a 'v' prefix.
func NormalizeVersionTag(version string) string {
	version = strings.TrimSpace(version)
	if !strings.HasPrefix(version, "v") {
		return "v" + version
	}
	return version
}

// ExtractVersionFromTag strips the 'v' prefix from a tag like "v1.4.0".
func ExtractVersionFromTag(tag string) string {
	return strings.TrimPrefix(tag, "v")
}

var versionPattern = regexp.MustCompile(`^v?\d+\.\d+\.\d+`)

// ValidateVersionTag rejects strings that do not look like release tags
// before they are interpolated into API paths.
func ValidateVersionTag(tag string) error {
	if !versionPattern.MatchString(tag) {
		return fmt.Errorf("invalid version tag %q", tag)
	}
	return nil
}

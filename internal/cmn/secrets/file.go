package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func init() {
	registerResolver("file", func(opts Options) Resolver {
		return &fileResolver{baseDir: opts.BaseDir}
	})
}

// fileResolver reads secrets from files on disk. This matches the layout
// used by container secret mounts (e.g. /run/secrets/<name>).
// Relative keys are resolved against the registry base directory.
type fileResolver struct {
	baseDir string
}

// Name returns the provider identifier.
func (r *fileResolver) Name() string {
	return "file"
}

// Validate checks if the secret reference is valid for file-based secrets.
func (r *fileResolver) Validate(ref Ref) error {
	if ref.Key == "" {
		return fmt.Errorf("key (file path) is required")
	}
	return nil
}

// Resolve reads the secret file. A single trailing newline is stripped so
// that `echo secret > file` round-trips without surprises.
func (r *fileResolver) Resolve(_ context.Context, ref Ref) (string, error) {
	path := r.resolvePath(ref.Key)

	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("secret file %q not found", path)
		}
		return "", fmt.Errorf("failed to read secret file %q: %w", path, err)
	}

	return strings.TrimRight(string(data), "\r\n"), nil
}

// CheckAccessibility verifies the file exists and is readable.
func (r *fileResolver) CheckAccessibility(_ context.Context, ref Ref) error {
	path := r.resolvePath(ref.Key)

	f, err := os.Open(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("secret file %q not found", path)
		}
		return fmt.Errorf("secret file %q is not accessible: %w", path, err)
	}
	_ = f.Close()
	return nil
}

func (r *fileResolver) resolvePath(key string) string {
	if filepath.IsAbs(key) || r.baseDir == "" {
		return key
	}
	return filepath.Join(r.baseDir, key)
}

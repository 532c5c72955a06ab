package upgrade

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// CacheStore provides persistence for upgrade check results.
type CacheStore interface {
	Load() (*UpgradeCheckCache, error)
	Save(cache *UpgradeCheckCache) error
}

// FileStore persists the upgrade check cache as a JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a store under the given directory.
func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, CacheFileName)}
}

// Load reads the cache file. A missing file is not an error; it returns
// a nil cache.
func (s *FileStore) Load() (*UpgradeCheckCache, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read upgrade cache: %w", err)
	}
	var cache UpgradeCheckCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("failed to parse upgrade cache: %w", err)
	}
	return &cache, nil
}

// Save writes the cache file via a temp file and rename.
func (s *FileStore) Save(cache *UpgradeCheckCache) error {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode upgrade cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write upgrade cache: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to save upgrade cache: %w", err)
	}
	return nil
}

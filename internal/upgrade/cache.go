package upgrade

import (
	"context"
	"fmt"
	"time"
)

const (
	// CacheFileName is the name of the upgrade check cache file.
	CacheFileName = "upgrade-check.json"

	// CacheTTL is how long a cached check stays fresh.
	CacheTTL = 24 * time.Hour
)

// UpgradeCheckCache stores the result of an upgrade check.
type UpgradeCheckCache struct {
	LastCheck       time.Time `json:"lastCheck"`
	LatestVersion   string    `json:"latestVersion"`
	CurrentVersion  string    `json:"currentVersion"`
	UpdateAvailable bool      `json:"updateAvailable"`
}

// IsCacheValid reports whether the cache is still fresh.
func IsCacheValid(cache *UpgradeCheckCache) bool {
	if cache == nil {
		return false
	}
	return time.Since(cache.LastCheck) < CacheTTL
}

// CheckAndUpdateCache refreshes the cached release check when stale.
// Designed to be called asynchronously; dev builds skip the check.
func CheckAndUpdateCache(store CacheStore, currentVersion string) (*UpgradeCheckCache, error) {
	if currentVersion == "dev" || currentVersion == "0.0.0" {
		return nil, nil
	}

	cache, _ := store.Load()

	if cache != nil && IsCacheValid(cache) && cache.CurrentVersion == currentVersion {
		return cache, nil
	}

	currentV, err := ParseVersion(currentVersion)
	if err != nil {
		return nil, err
	}

	client := NewGitHubClient()
	release, err := client.GetLatestRelease(context.Background(), false)
	if err != nil {
		return nil, fmt.Errorf("failed to check for updates: %w", err)
	}

	latestV, err := ParseVersion(release.TagName)
	if err != nil {
		return nil, fmt.Errorf("failed to parse latest version: %w", err)
	}

	newCache := &UpgradeCheckCache{
		LastCheck:       time.Now(),
		LatestVersion:   release.TagName,
		CurrentVersion:  currentVersion,
		UpdateAvailable: IsNewer(currentV, latestV),
	}

	_ = store.Save(newCache)

	return newCache, nil
}

// GetCachedUpdateInfo returns cached update information for display.
// A slightly stale cache is acceptable here, so the read TTL is doubled.
func GetCachedUpdateInfo(store CacheStore) *UpgradeCheckCache {
	cache, err := store.Load()
	if err != nil || cache == nil {
		return nil
	}

	if time.Since(cache.LastCheck) > CacheTTL*2 {
		return nil
	}

	return cache
}

package upgrade

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "v1.4.0", want: "1.4.0"},
		{input: "1.4.0", want: "1.4.0"},
		{input: "v1.4.0-rc.1", want: "1.4.0-rc.1"},
		{input: "1.4.0-260204123456", want: "1.4.0"},
		{input: "dev", wantErr: true},
		{input: "0.0.0", wantErr: true},
		{input: "", wantErr: true},
		{input: "not-a-version", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			v, err := ParseVersion(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, v.String())
		})
	}
}

func TestIsNewer(t *testing.T) {
	t.Parallel()

	v1, err := ParseVersion("1.2.3")
	require.NoError(t, err)
	v2, err := ParseVersion("1.3.0")
	require.NoError(t, err)

	assert.True(t, IsNewer(v1, v2))
	assert.False(t, IsNewer(v2, v1))
	assert.False(t, IsNewer(v1, v1))
}

func TestNormalizeVersionTag(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "v1.4.0", NormalizeVersionTag("1.4.0"))
	assert.Equal(t, "v1.4.0", NormalizeVersionTag("v1.4.0"))
	assert.Equal(t, "v1.4.0", NormalizeVersionTag("  1.4.0  "))
}

func TestValidateVersionTag(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateVersionTag("v1.4.0"))
	assert.NoError(t, ValidateVersionTag("1.4.0"))
	assert.Error(t, ValidateVersionTag("latest"))
	assert.Error(t, ValidateVersionTag("../../../etc/passwd"))
}

func TestPlatformAssetName(t *testing.T) {
	t.Parallel()

	p := Platform{OS: "linux", Arch: "amd64"}
	assert.Equal(t, "mnemo_1.4.0_linux_amd64.tar.gz", p.AssetName("v1.4.0"))

	w := Platform{OS: "windows", Arch: "amd64"}
	assert.Equal(t, "mnemo_1.4.0_windows_amd64.zip", w.AssetName("1.4.0"))
}

func TestPlatformIsSupported(t *testing.T) {
	t.Parallel()

	assert.True(t, Platform{OS: "darwin", Arch: "arm64"}.IsSupported())
	assert.False(t, Platform{OS: "plan9", Arch: "386"}.IsSupported())
}

func TestParseChecksums(t *testing.T) {
	t.Parallel()

	content := `
abc123  mnemo_1.4.0_linux_amd64.tar.gz
def456  mnemo_1.4.0_darwin_arm64.tar.gz
`
	checksums, err := parseChecksums(content)
	require.NoError(t, err)
	assert.Equal(t, "abc123", checksums["mnemo_1.4.0_linux_amd64.tar.gz"])
	assert.Equal(t, "def456", checksums["mnemo_1.4.0_darwin_arm64.tar.gz"])

	_, err = parseChecksums("")
	assert.Error(t, err)
}

func TestFindAsset(t *testing.T) {
	t.Parallel()

	release := &Release{
		TagName: "v1.4.0",
		Assets: []Asset{
			{Name: "checksums.txt"},
			{Name: "mnemo_1.4.0_linux_amd64.tar.gz", Size: 42},
		},
	}

	asset, err := FindAsset(release, Platform{OS: "linux", Arch: "amd64"}, "v1.4.0")
	require.NoError(t, err)
	assert.Equal(t, int64(42), asset.Size)

	_, err = FindAsset(release, Platform{OS: "darwin", Arch: "arm64"}, "v1.4.0")
	assert.Error(t, err)
}

func TestGitHubClient_GetLatestRelease(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		assert.Equal(t, "/releases/latest", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tag_name":"v1.4.0","assets":[{"name":"checksums.txt"}]}`))
	}))
	defer srv.Close()

	client := NewGitHubClient()
	client.baseURL = srv.URL + "/releases"

	release, err := client.GetLatestRelease(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "v1.4.0", release.TagName)
	require.Len(t, release.Assets, 1)
}

func TestGitHubClient_GetReleaseNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewGitHubClient()
	client.baseURL = srv.URL + "/releases"

	_, err := client.GetRelease(context.Background(), "v9.9.9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFileStore_RoundTrip(t *testing.T) {
	t.Parallel()

	store := NewFileStore(t.TempDir())

	cache, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, cache)

	want := &UpgradeCheckCache{
		LastCheck:       time.Now().Truncate(time.Second),
		LatestVersion:   "v1.4.0",
		CurrentVersion:  "v1.3.0",
		UpdateAvailable: true,
	}
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.LatestVersion, got.LatestVersion)
	assert.True(t, got.UpdateAvailable)
}

func TestIsCacheValid(t *testing.T) {
	t.Parallel()

	assert.False(t, IsCacheValid(nil))
	assert.True(t, IsCacheValid(&UpgradeCheckCache{LastCheck: time.Now()}))
	assert.False(t, IsCacheValid(&UpgradeCheckCache{LastCheck: time.Now().Add(-48 * time.Hour)}))
}

func TestIsRetriableError(t *testing.T) {
	t.Parallel()

	assert.True(t, isRetriableError(&httpError{statusCode: 429}))
	assert.True(t, isRetriableError(&httpError{statusCode: 503}))
	assert.False(t, isRetriableError(&httpError{statusCode: 404}))
	assert.True(t, isRetriableError(assert.AnError))
}

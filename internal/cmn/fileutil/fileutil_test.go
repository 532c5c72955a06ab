package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-org/mnemo/internal/cmn/fileutil"
)

func TestFileExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "exists.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))

	assert.True(t, fileutil.FileExists(file))
	assert.False(t, fileutil.FileExists(filepath.Join(dir, "missing.txt")))
}

func TestIsDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	assert.True(t, fileutil.IsDir(dir))

	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))
	assert.False(t, fileutil.IsDir(file))
}

func TestIsFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))

	assert.True(t, fileutil.IsFile(file))
	assert.False(t, fileutil.IsFile(dir))
}

func TestEnsureDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	require.NoError(t, fileutil.EnsureDir(dir))
	assert.True(t, fileutil.IsDir(dir))

	// Idempotent
	require.NoError(t, fileutil.EnsureDir(dir))
}

func TestOpenOrCreateFile(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "log.txt")
	f, err := fileutil.OpenOrCreateFile(file)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	_, err = f.WriteString("hello\n")
	require.NoError(t, err)

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestResolvePath(t *testing.T) {
	t.Parallel()

	t.Run("Empty", func(t *testing.T) {
		t.Parallel()
		got, err := fileutil.ResolvePath("  ")
		assert.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Tilde", func(t *testing.T) {
		home, err := os.UserHomeDir()
		require.NoError(t, err)

		got, err := fileutil.ResolvePath("~/data")
		assert.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "data"), got)
	})

	t.Run("EnvVar", func(t *testing.T) {
		t.Setenv("TEST_RESOLVE_DIR", "/tmp/resolver")

		got, err := fileutil.ResolvePath("$TEST_RESOLVE_DIR/sub")
		assert.NoError(t, err)
		assert.Equal(t, "/tmp/resolver/sub", got)
	})
}

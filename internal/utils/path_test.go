package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSnapshotFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "vocabulary.json")
	txtPath := filepath.Join(dir, "vocabulary.txt")
	require.NoError(t, os.WriteFile(jsonPath, []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(txtPath, []byte("{}"), 0o644))

	assert.True(t, IsSnapshotFile(jsonPath))
	assert.False(t, IsSnapshotFile(txtPath))
	assert.False(t, IsSnapshotFile(dir))
	assert.False(t, IsSnapshotFile(filepath.Join(dir, "missing.json")))
}

func TestGetDataFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	pr, err := NewPathResolver()
	require.NoError(t, err)

	dir := t.TempDir()
	snapshot := filepath.Join(dir, "snap.msgpack")
	require.NoError(t, os.WriteFile(snapshot, []byte{0x80}, 0o644))

	assert.Equal(t, snapshot, pr.GetDataFile(snapshot))
	missing := filepath.Join(dir, "nope.json")
	assert.Equal(t, missing, pr.GetDataFile(missing), "unresolved paths come back unchanged")

	// the config dir's data/vocabulary.json is a fallback
	fallback := filepath.Join(pr.GetConfigDir(), "data", "vocabulary.json")
	require.NoError(t, EnsureDir(filepath.Dir(fallback)))
	require.NoError(t, os.WriteFile(fallback, []byte("[]"), 0o644))
	assert.Equal(t, fallback, pr.GetDataFile(missing))
}

func TestGetConfigPath(t *testing.T) {
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	pr, err := NewPathResolver()
	require.NoError(t, err)
	assert.NotEmpty(t, pr.GetExecutableDir())

	path, err := pr.GetConfigPath("marioserve.toml")
	require.NoError(t, err)
	if pr.GetConfigDir() == filepath.Join(configHome, appDirName) {
		assert.Equal(t, filepath.Join(configHome, appDirName, "marioserve.toml"), path)
	}
	assert.True(t, CheckDirStatus(filepath.Dir(path)).Writable)
}

func TestTOMLRoundTrip(t *testing.T) {
	type section struct {
		MaxLimit int     `toml:"max_limit"`
		Weight   float64 `toml:"weight"`
		Addr     string  `toml:"addr"`
	}
	type file struct {
		Server section `toml:"server"`
	}

	path := filepath.Join(t.TempDir(), "nested", "cfg.toml")
	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, SaveTOMLFile(file{Server: section{MaxLimit: 12, Weight: 1, Addr: ":9090"}}, path))
	assert.True(t, FileExists(path))

	raw, err := ParseTOMLWithRecovery(path)
	require.NoError(t, err)
	srv, ok := ExtractSection(raw, "server")
	require.True(t, ok)

	n, ok := ExtractInt64(srv, "max_limit")
	assert.True(t, ok)
	assert.Equal(t, 12, n)
	w, ok := ExtractFloat64(srv, "weight")
	assert.True(t, ok)
	assert.Equal(t, 1.0, w)
	addr, ok := ExtractString(srv, "addr")
	assert.True(t, ok)
	assert.Equal(t, ":9090", addr)

	_, ok = ExtractInt64(srv, "addr")
	assert.False(t, ok)
	_, ok = ExtractSection(raw, "missing")
	assert.False(t, ok)

	assert.Equal(t, "unknown", GetAbsolutePath(""))
	assert.True(t, filepath.IsAbs(GetAbsolutePath("cfg.toml")))
}

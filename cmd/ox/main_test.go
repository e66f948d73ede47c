package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveConfigDefaultsWhenNoTomlPresent(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "entry.ox")
	require.NoError(t, os.WriteFile(entry, []byte(`[App]`), 0o644))

	cfg, err := resolveConfig(entry)
	require.NoError(t, err)
	require.Equal(t, dir, cfg.BaseDir)
	require.Equal(t, "entry.ox", cfg.EntryFile)
	require.True(t, cfg.Behavior.Strict)
}

func TestResolveConfigLoadsSiblingOxToml(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "entry.ox")
	require.NoError(t, os.WriteFile(entry, []byte(`[App]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ox.toml"), []byte(`
[behavior]
strict = false
`), 0o644))

	cfg, err := resolveConfig(entry)
	require.NoError(t, err)
	require.False(t, cfg.Behavior.Strict)
	// entryPath is always authoritative over whatever the toml claims.
	require.Equal(t, dir, cfg.BaseDir)
	require.Equal(t, "entry.ox", cfg.EntryFile)
}

func TestResolveConfigRejectsInvalidToml(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "entry.ox")
	require.NoError(t, os.WriteFile(entry, []byte(`[App]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ox.toml"), []byte(`not valid toml =`), 0o644))

	_, err := resolveConfig(entry)
	require.Error(t, err)
}

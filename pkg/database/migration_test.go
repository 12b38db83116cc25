package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLatestVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000001_create_connections.up.sql",
		"000001_create_connections.down.sql",
		"000004_create_audit_events.up.sql",
		"000002_create_sync_runs.up.sql",
		"README.md",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}

	version, err := getLatestVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, 4, version)
}

func TestGetLatestVersion_EmptyFolder(t *testing.T) {
	_, err := getLatestVersion(t.TempDir())
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/victor-base/victordb"
	"github.com/victor-base/victordb/pkg/storage"
)

func TestDefaults(t *testing.T) {
	t.Setenv(storage.RootEnv, "")
	t.Setenv(ThresholdEnv, "")
	cfg, err := Default()
	require.Nil(t, err)
	assert.Equal(t, storage.DefaultRoot, cfg.Root)
	assert.Equal(t, victordb.DefaultExportThreshold, cfg.ExportThreshold)
	assert.Equal(t, victordb.MaxConnections, cfg.MaxConnections)
	assert.False(t, cfg.SyncOnAppend)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv(storage.RootEnv, "/srv/victor")
	t.Setenv(ThresholdEnv, "3")
	cfg, err := Default()
	require.Nil(t, err)
	assert.Equal(t, "/srv/victor", cfg.Root)
	assert.Equal(t, 3, cfg.ExportThreshold)

	t.Run("invalid threshold", func(t *testing.T) {
		t.Setenv(ThresholdEnv, "ten")
		_, err := Default()
		assert.NotNil(t, err)
	})
	t.Run("zero threshold", func(t *testing.T) {
		t.Setenv(ThresholdEnv, "0")
		_, err := Default()
		assert.ErrorIs(t, err, victordb.ErrIllegalArgument)
	})
}

func TestLoadFile(t *testing.T) {
	t.Setenv(storage.RootEnv, "")
	t.Setenv(ThresholdEnv, "")
	path := filepath.Join(t.TempDir(), "victord.conf")
	conf := `[server]
root = /data/victor
export_threshold = 25
max_connections = 64
sync_on_append = true
log_level = debug
`
	require.Nil(t, os.WriteFile(path, []byte(conf), 0o600))

	cfg, err := Load(path)
	require.Nil(t, err)
	assert.Equal(t, "/data/victor", cfg.Root)
	assert.Equal(t, 25, cfg.ExportThreshold)
	assert.Equal(t, 64, cfg.MaxConnections)
	assert.True(t, cfg.SyncOnAppend)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestEnvironmentBeatsFile(t *testing.T) {
	t.Setenv(ThresholdEnv, "7")
	path := filepath.Join(t.TempDir(), "victord.conf")
	require.Nil(t, os.WriteFile(path, []byte("[server]\nexport_threshold = 25\n"), 0o600))

	cfg, err := Load(path)
	require.Nil(t, err)
	assert.Equal(t, 7, cfg.ExportThreshold)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.conf"))
	assert.NotNil(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CABINET_CONFIG_DIR", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err, "defaults alone must form a valid config")

	assert.NotEmpty(t, cfg.DataRoot)
	assert.NotEmpty(t, cfg.DatabasePath)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 500, cfg.Store.BatchSize)
	assert.Equal(t, 64, cfg.Store.MaxDepth)
	assert.Equal(t, int64(1)<<31, cfg.Upload.MaxFileBytes)
	assert.Contains(t, cfg.Upload.AllowedExtensions, "pdf")
	assert.Equal(t, "@hourly", cfg.Reaper.Schedule)
	assert.Equal(t, 30, cfg.Reaper.RetentionDays)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CABINET_CONFIG_DIR", dir)

	path := filepath.Join(dir, "cabinet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_root: /srv/cabinet/data
logging:
  level: debug
store:
  batch_size: 50
reaper:
  retention_days: 7
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/cabinet/data", cfg.DataRoot)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 50, cfg.Store.BatchSize)
	assert.Equal(t, 7, cfg.Reaper.RetentionDays)
	// Untouched keys keep their defaults.
	assert.Equal(t, 64, cfg.Store.MaxDepth)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CABINET_CONFIG_DIR", dir)

	path := filepath.Join(dir, "cabinet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: loud
`), 0o644))

	_, err := Load(path)
	assert.Error(t, err, "unknown log level must fail validation")
}

func TestDefaultConfigDirHonorsEnv(t *testing.T) {
	t.Setenv("CABINET_CONFIG_DIR", "/tmp/elsewhere")
	assert.Equal(t, "/tmp/elsewhere", DefaultConfigDir())
}

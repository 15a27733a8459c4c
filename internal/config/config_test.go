package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	testConfigPath := filepath.Join(tmpDir, "test_config.yaml")

	testConfig := `
listen: ":9090"
data_path: /tmp/test.vegam
seed: 7
cache_size: 128
rate_limit: 100
rate_burst: 8
log_level: debug
`
	err := os.WriteFile(testConfigPath, []byte(testConfig), 0644)
	require.NoError(t, err)

	cfg, err := FromFile(testConfigPath)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "/tmp/test.vegam", cfg.DataPath)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 128, cfg.CacheSize)
	assert.Equal(t, float64(100), cfg.RateLimit)
	assert.Equal(t, 8, cfg.RateBurst)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestFromFileDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":7000\"\n"), 0644))

	cfg, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Listen)
	assert.Equal(t, Default().DataPath, cfg.DataPath)
	assert.Equal(t, Default().CacheSize, cfg.CacheSize)
}

func TestFromFileMissing(t *testing.T) {
	cfg, err := FromFile("non_existent_file.yaml")
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad_Defaults verifies sane defaults with no file and no env
func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.DataFile)
	assert.NotEmpty(t, cfg.LogFile)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "appdata.json", filepath.Base(cfg.DataFile))
	assert.Zero(t, cfg.PollingOverrideSeconds, "no override by default")
}

// TestLoad_ConfigFile verifies explicit YAML config
func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("data_file: /tmp/custom/data.json\nlog_level: debug\npolling_override_seconds: 2\n")
	require.NoError(t, os.WriteFile(path, content, 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom/data.json", cfg.DataFile)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2, cfg.PollingOverrideSeconds)
	assert.NotEmpty(t, cfg.LogFile, "unset keys keep defaults")
}

// TestLoad_EnvOverride verifies APPQUOTA_* environment variables win
// over defaults
func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("APPQUOTA_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
}

// TestLoad_MissingExplicitFileErrors verifies a named config that does
// not exist is reported
func TestLoad_MissingExplicitFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

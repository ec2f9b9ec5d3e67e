package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Empty(t, cfg.Backend.Command)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Backend.RetryMaxElapsed)
	assert.False(t, cfg.Defaults.Atomic)
	assert.False(t, cfg.Defaults.StopOnError)
}

func TestLoadExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := `
backend:
  command: ["osascript", "-l", "JavaScript", "runner.js"]
  timeout: 10s
defaults:
  atomic: true
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"osascript", "-l", "JavaScript", "runner.js"}, cfg.Backend.Command)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
	assert.True(t, cfg.Defaults.Atomic)
	assert.False(t, cfg.Defaults.StopOnError)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("TW_BACKEND_TIMEOUT", "5s")
	t.Setenv("TW_DEFAULTS_STOP_ON_ERROR", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.True(t, cfg.Defaults.StopOnError)
}

func TestEnvBackendCommand(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("TW_BACKEND_COMMAND", "osascript -l JavaScript runner.js")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"osascript", "-l", "JavaScript", "runner.js"}, cfg.Backend.Command)
}

func TestEnvBackendCommandWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := "backend:\n  command: [\"from-file\"]\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	t.Setenv("TW_BACKEND_COMMAND", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"from-env"}, cfg.Backend.Command)
}

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
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.Intervals.Process)
	assert.Equal(t, 5, cfg.Thresholds.SSHBruteforceCount)
	assert.Len(t, cfg.LogSources, 5)
	assert.Equal(t, []string{"/"}, cfg.Metrics.Mountpoints)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "state_dir: /tmp/custom\nthresholds:\n  ssh_bruteforce_count: 9\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom", cfg.StateDir)
	assert.Equal(t, 9, cfg.Thresholds.SSHBruteforceCount)
	// unspecified keys still fall back to defaults.
	assert.Equal(t, 60*time.Second, cfg.Intervals.Metrics)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HIDS_STATE_DIR", "/tmp/env-state")
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env-state", cfg.StateDir)
}

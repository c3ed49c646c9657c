package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{FilePath: filepath.Join(dir, "agent.log"), Level: "debug"}, "test")
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger.Info("hello")
	require.NoError(t, logger.Sync())
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "not-a-level"}, "test")
	require.Error(t, err)
}

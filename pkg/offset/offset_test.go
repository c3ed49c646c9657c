package offset

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) (*Manager, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	m, err := NewManager(fs, "/var/lib/hids/log_offsets.json", zap.NewNop())
	require.NoError(t, err)
	return m, fs
}

func TestGetDefaultsToZero(t *testing.T) {
	m, _ := newTestManager(t)
	assert.Equal(t, int64(0), m.Get("auth"))
}

func TestSetAndSavePersists(t *testing.T) {
	m, fs := newTestManager(t)
	m.Set("auth", 1024)
	require.NoError(t, m.Save())

	reloaded, err := NewManager(fs, "/var/lib/hids/log_offsets.json", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, int64(1024), reloaded.Get("auth"))
}

func TestResetZeroesAndPersists(t *testing.T) {
	m, fs := newTestManager(t)
	m.Set("auth", 2048)
	require.NoError(t, m.Save())
	require.NoError(t, m.Reset("auth"))

	reloaded, err := NewManager(fs, "/var/lib/hids/log_offsets.json", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, int64(0), reloaded.Get("auth"))
}

func TestResetAllClearsEverything(t *testing.T) {
	m, _ := newTestManager(t)
	m.Set("auth", 10)
	m.Set("syslog", 20)
	require.NoError(t, m.ResetAll())
	assert.Equal(t, int64(0), m.Get("auth"))
	assert.Equal(t, int64(0), m.Get("syslog"))
}

func TestCorruptFileTreatedAsEmpty(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/var/lib/hids", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/var/lib/hids/log_offsets.json", []byte("{not json"), 0o644))

	m, err := NewManager(fs, "/var/lib/hids/log_offsets.json", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, int64(0), m.Get("auth"))
}

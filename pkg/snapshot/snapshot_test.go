package snapshot

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRecord struct {
	PID  int32
	Name string
}

func TestLoadMissingReturnsZeroValue(t *testing.T) {
	fs := afero.NewMemMapFs()
	store, err := NewStore[map[string]fakeRecord](fs, "/var/lib/hids/process_prev.json", zap.NewNop())
	require.NoError(t, err)

	loaded := store.Load()
	assert.Empty(t, loaded)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	fs := afero.NewMemMapFs()
	store, err := NewStore[map[string]fakeRecord](fs, "/var/lib/hids/process_prev.json", zap.NewNop())
	require.NoError(t, err)

	want := map[string]fakeRecord{"123": {PID: 123, Name: "sshd"}}
	require.NoError(t, store.Save(want))

	got := store.Load()
	assert.Equal(t, want, got)
}

func TestLoadCorruptReturnsZeroValue(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/var/lib/hids", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/var/lib/hids/process_prev.json", []byte("not json"), 0o644))

	store, err := NewStore[map[string]fakeRecord](fs, "/var/lib/hids/process_prev.json", zap.NewNop())
	require.NoError(t, err)

	assert.Empty(t, store.Load())
}

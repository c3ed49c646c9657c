package log

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/clock"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/offset"
)

type fakeParser struct{}

func (fakeParser) Dispatch(raw model.RawLogLine, now time.Time) (model.LogPayload, time.Time, bool) {
	if raw.SourceTag != model.SourceAuth {
		return model.LogPayload{}, time.Time{}, false
	}
	return model.LogPayload{EventType: "FAILED_LOGIN", Category: model.CategoryAuth}, now, true
}

func TestEventCollectorParsesRecognizedLines(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/var/log/auth.log", []byte("line one\nline two\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/var/log/syslog", []byte("unrelated\n"), 0o644))

	offsets, err := offset.NewManager(fs, "/state/offsets.json", zap.NewNop())
	require.NoError(t, err)

	tail := NewCollector(fs, offsets, []Source{
		{Tag: model.SourceAuth, Path: "/var/log/auth.log"},
		{Tag: model.SourceSyslog, Path: "/var/log/syslog"},
	}, zap.NewNop())

	ec := NewEventCollector(tail, fakeParser{}, clock.NewFake(time.Now()), zap.NewNop())

	events, err := ec.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, "LOG_EVENT", ev.Type)
		assert.Equal(t, "FAILED_LOGIN", ev.Log.EventType)
	}
}

package writer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/rules"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/store"
)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(context.Background(), filepath.Join(dir, "hids.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, 100, 3, time.Millisecond, time.Second, zap.NewNop())
}

func TestPersistLogEvent(t *testing.T) {
	w := newTestWriter(t)
	ev := model.Event{
		ID: 1, Type: "LOG_EVENT", Timestamp: time.Now(),
		Log: &model.LogPayload{EventType: "FAILED_LOGIN", Category: model.CategoryAuth, Severity: model.SeverityMedium, IP: "10.0.0.9"},
	}

	require.NoError(t, w.persistOne(context.Background(), ev))

	var count int
	require.NoError(t, w.db.Get(&count, "SELECT COUNT(*) FROM log_events WHERE id = ?", 1))
	assert.Equal(t, 1, count)
}

func TestScenarioS2ProcessAlertWithExplicitEvidence(t *testing.T) {
	w := newTestWriter(t)

	procEvent := model.Event{
		ID: 42, Type: "PROCESS_NEW", Timestamp: time.Now(),
		Process: &model.ProcessPayload{EventType: "PROCESS_NEW", PID: 4321, Name: "nmap", Cmdline: "nmap -sS 192.168.1.0/24", Username: "ubuntu"},
	}
	require.NoError(t, w.persistOne(context.Background(), procEvent))

	alertEvent := model.Event{
		ID: 43, Type: "ALERT", Timestamp: time.Now(),
		Alert: &model.AlertBundle{
			Alert: model.Alert{Timestamp: time.Now(), RuleName: "PROC_001", Severity: model.SeverityHigh, Message: "suspicious process"},
			Evidence: []model.EvidenceRef{
				{EventType: "PROCESS_NEW", EventID: 42, Role: model.RoleTrigger, Sequence: 1},
			},
		},
	}
	require.NoError(t, w.persistOne(context.Background(), alertEvent))

	var evidenceCount int
	require.NoError(t, w.db.Get(&evidenceCount, "SELECT COUNT(*) FROM alert_evidence WHERE alert_id = ?", 43))
	assert.Equal(t, 1, evidenceCount)
}

func TestScenarioS1ResolverLinksFiveLogEvents(t *testing.T) {
	w := newTestWriter(t)
	base := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		ev := model.Event{
			ID: int64(i + 1), Type: "LOG_EVENT", Timestamp: base.Add(time.Duration(i) * time.Second),
			Log: &model.LogPayload{EventType: "FAILED_LOGIN", Category: model.CategoryAuth, IP: "10.0.0.9"},
		}
		require.NoError(t, w.persistOne(context.Background(), ev))
	}

	alertEvent := model.Event{
		ID: 100, Type: "ALERT", Timestamp: base.Add(5 * time.Second),
		Alert: &model.AlertBundle{
			Alert: model.Alert{
				Timestamp: base.Add(5 * time.Second),
				RuleName:  "AUTH_001",
				Severity:  model.SeverityHigh,
				Message:   "SSH bruteforce from 10.0.0.9: 5 failed attempts",
				Extra: map[string]any{
					"evidence_resolve": model.EvidenceResolveSpec{
						Source: "log_events",
						Filters: map[string]any{
							"category":       string(model.CategoryAuth),
							"event_type__in": []string{"FAILED_LOGIN", "FAILED_AUTH"},
							"ip_address":     "10.0.0.9",
						},
						TimeRange: &model.TimeRangeSpec{From: base, To: base.Add(4 * time.Second)},
						Limit:     5,
						Order:     "asc",
					},
				},
			},
		},
	}
	require.NoError(t, w.persistOne(context.Background(), alertEvent))

	var evidenceCount int
	require.NoError(t, w.db.Get(&evidenceCount, "SELECT COUNT(*) FROM alert_evidence WHERE alert_id = ?", 100))
	assert.Equal(t, 5, evidenceCount)

	var maxSeq int
	require.NoError(t, w.db.Get(&maxSeq, "SELECT MAX(sequence) FROM alert_evidence WHERE alert_id = ?", 100))
	assert.Equal(t, 5, maxSeq)
}

func TestResolverIDInFastPath(t *testing.T) {
	w := newTestWriter(t)
	base := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		ev := model.Event{
			ID: int64(i + 1), Type: "METRIC_SNAPSHOT", Timestamp: base.Add(time.Duration(i) * 40 * time.Second),
			Metric: &model.MetricPayload{CPU: model.CPUMetrics{Percent: 90}},
		}
		require.NoError(t, w.persistOne(context.Background(), ev))
	}

	alertEvent := model.Event{
		ID: 200, Type: "ALERT", Timestamp: base.Add(80 * time.Second),
		Alert: &model.AlertBundle{
			Alert: model.Alert{
				Timestamp: base.Add(80 * time.Second), RuleName: "RES_001", Severity: model.SeverityMedium, Message: "high usage",
				Extra: map[string]any{
					"evidence_resolve": model.EvidenceResolveSpec{
						Source:  "metric_events",
						Filters: map[string]any{"id__in": []int64{1, 2, 3}},
						Limit:   3,
						Order:   "asc",
					},
				},
			},
		},
	}
	require.NoError(t, w.persistOne(context.Background(), alertEvent))

	var evidenceCount int
	require.NoError(t, w.db.Get(&evidenceCount, "SELECT COUNT(*) FROM alert_evidence WHERE alert_id = ?", 200))
	assert.Equal(t, 3, evidenceCount)
}

func TestScenarioS1EngineToStorageYieldsExactlyFiveEvidenceRows(t *testing.T) {
	w := newTestWriter(t)
	engine := rules.NewEngine(nil, []rules.ThresholdRule{rules.NewAuthBruteforceRule(5, 60 * time.Second)}, rules.NewContext(), zap.NewNop())
	base := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	var bundles []model.AlertBundle
	for i := 0; i < 5; i++ {
		ev := model.Event{
			ID: int64(i + 1), Type: "LOG_EVENT", Timestamp: base.Add(time.Duration(i) * time.Second),
			Log: &model.LogPayload{EventType: "FAILED_LOGIN", Category: model.CategoryAuth, IP: "10.0.0.9"},
		}
		require.NoError(t, w.persistOne(context.Background(), ev))
		bundles = append(bundles, engine.Evaluate(ev)...)
	}

	require.Len(t, bundles, 1)
	// The rule supplies evidence_resolve, so the bundle must carry no
	// explicit evidence of its own: the resolver is the sole source.
	assert.Empty(t, bundles[0].Evidence)

	alertEvent := model.Event{ID: 100, Type: "ALERT", Timestamp: bundles[0].Alert.Timestamp, Alert: &bundles[0]}
	require.NoError(t, w.persistOne(context.Background(), alertEvent))

	var evidenceCount int
	require.NoError(t, w.db.Get(&evidenceCount, "SELECT COUNT(*) FROM alert_evidence WHERE alert_id = ?", 100))
	assert.Equal(t, 5, evidenceCount)

	var supportCount int
	require.NoError(t, w.db.Get(&supportCount, "SELECT COUNT(*) FROM alert_evidence WHERE alert_id = ? AND role = ?", 100, string(model.RoleSupport)))
	assert.Equal(t, 5, supportCount)
}

func TestScenarioS6RetriesTransientLockThenSucceeds(t *testing.T) {
	w := newTestWriter(t)

	var attempts int
	var persisted []model.Event
	w.persist = func(ctx context.Context, ev model.Event) error {
		attempts++
		if attempts <= 2 {
			return store.ErrBusy
		}
		persisted = append(persisted, ev)
		return nil
	}

	start := time.Now()
	w.persistWithRetry(context.Background(), model.Event{ID: 1, Type: "LOG_EVENT"})
	elapsed := time.Since(start)

	assert.Equal(t, 3, attempts)
	require.Len(t, persisted, 1)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestPersistWithRetryAbandonsOnPermanentError(t *testing.T) {
	w := newTestWriter(t)

	var attempts int
	w.persist = func(ctx context.Context, ev model.Event) error {
		attempts++
		return assert.AnError
	}

	w.persistWithRetry(context.Background(), model.Event{ID: 1, Type: "LOG_EVENT"})
	assert.Equal(t, 1, attempts)
}

func TestEnqueueReturnsFalseWhenQueueFull(t *testing.T) {
	dir := t.TempDir()
	db, err := store.Open(context.Background(), filepath.Join(dir, "hids.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	w := New(db, 1, 3, time.Millisecond, time.Second, zap.NewNop())
	assert.True(t, w.Enqueue(model.Event{ID: 1, Type: "LOG_EVENT", Log: &model.LogPayload{}}))
	assert.False(t, w.Enqueue(model.Event{ID: 2, Type: "LOG_EVENT", Log: &model.LogPayload{}}))
}

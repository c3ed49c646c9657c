package query

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/store"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(context.Background(), filepath.Join(dir, "hids.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedLogEvent(t *testing.T, db *sqlx.DB, id int64, ts time.Time, eventType, category, message, ip string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO log_events (id, timestamp, log_source, event_type, category, message, ip_address)
		VALUES (?, ?, 'auth', ?, ?, ?, ?)`,
		id, ts, eventType, category, message, ip,
	)
	require.NoError(t, err)
}

func seedAlert(t *testing.T, db *sqlx.DB, id int64, ts time.Time, ruleName, message string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO alerts (id, timestamp, rule_name, severity, message)
		VALUES (?, ?, ?, 'HIGH', ?)`,
		id, ts, ruleName, message,
	)
	require.NoError(t, err)
}

func TestLogEventsFiltersByCategoryAndSearch(t *testing.T) {
	db := newTestDB(t)
	q := New(db)
	base := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)

	seedLogEvent(t, db, 1, base, "FAILED_LOGIN", "AUTH", "failed login test", "10.0.0.1")
	seedLogEvent(t, db, 2, base.Add(time.Second), "PACKAGE_INSTALL", "PACKAGE", "package install test", "")

	rows, err := q.LogEvents(context.Background(), Filter{Category: "AUTH"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "FAILED_LOGIN", rows[0].EventType)

	rows, err = q.LogEvents(context.Background(), Filter{Search: "package install"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestLogEventsRespectsLimitAndOrder(t *testing.T) {
	db := newTestDB(t)
	q := New(db)
	base := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		seedLogEvent(t, db, int64(i+1), base.Add(time.Duration(i)*time.Second), "FAILED_LOGIN", "AUTH", "x", "10.0.0.1")
	}

	rows, err := q.LogEvents(context.Background(), Filter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Timestamp > rows[1].Timestamp)
}

func TestAlertsFiltersByRuleName(t *testing.T) {
	db := newTestDB(t)
	q := New(db)
	seedAlert(t, db, 10, time.Now(), "AUTH_001", "bruteforce")

	rows, err := q.Alerts(context.Background(), Filter{RuleName: "AUTH_001"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = q.Alerts(context.Background(), Filter{RuleName: "PROC_001"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAlertEvidenceOrdersBySequence(t *testing.T) {
	db := newTestDB(t)
	q := New(db)
	seedAlert(t, db, 20, time.Now(), "AUTH_001", "bruteforce")

	_, err := db.Exec(`INSERT INTO alert_evidence (alert_id, event_type, event_id, role, sequence, timestamp) VALUES (?,?,?,?,?,?)`,
		20, "LOG_EVENT", 2, "SUPPORT", 2, time.Now())
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO alert_evidence (alert_id, event_type, event_id, role, sequence, timestamp) VALUES (?,?,?,?,?,?)`,
		20, "LOG_EVENT", 1, "TRIGGER", 1, time.Now())
	require.NoError(t, err)

	rows, err := q.AlertEvidence(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// the sequence=1 row was inserted second, so ordering by sequence
	// (not insertion/autoincrement id) must put its row first.
	assert.Equal(t, int64(2), rows[0].ID)
	assert.Equal(t, int64(1), rows[1].ID)
}

func TestNormalizeLimitOffsetDefaults(t *testing.T) {
	limit, offset := normalizeLimitOffset(0, -1)
	assert.Equal(t, 50, limit)
	assert.Equal(t, 0, offset)
}

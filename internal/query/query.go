// Package query provides the read-only filter helpers the out-of-scope
// HTTP API would call (spec.md §6). It builds parameterized sqlx
// queries against the four event tables; it is not wired to any HTTP
// handler here.
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Filter holds every recognized query parameter name from spec.md §6.
type Filter struct {
	Severity  string
	Source    string
	Category  string
	EventType string
	Search    string
	Type      string
	PID       int64
	Protocol  string
	IP        string
	RuleName  string
	Limit     int
	Offset    int
	Expand    bool
}

// Row is one generic result row: callers that need the full typed shape
// query the concrete table directly; this shape is for listing/search.
type Row struct {
	ID        int64  `db:"id"`
	Timestamp string `db:"timestamp"`
	EventType string `db:"event_type"`
	Message   string `db:"message"`
}

// Query wraps a read-only *sqlx.DB handle. It never mutates storage.
type Query struct {
	db *sqlx.DB
}

// New builds a Query over db.
func New(db *sqlx.DB) *Query {
	return &Query{db: db}
}

// LogEvents returns log_events rows matching f.
func (q *Query) LogEvents(ctx context.Context, f Filter) ([]Row, error) {
	clauses, args := []string{}, []any{}

	if f.Severity != "" {
		clauses = append(clauses, "severity = ?")
		args = append(args, f.Severity)
	}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, f.Category)
	}
	if f.Source != "" {
		clauses = append(clauses, "log_source = ?")
		args = append(args, f.Source)
	}
	if f.EventType != "" {
		clauses = append(clauses, "event_type = ?")
		args = append(args, f.EventType)
	}
	if f.IP != "" {
		clauses = append(clauses, "ip_address = ?")
		args = append(args, f.IP)
	}
	if f.Search != "" {
		clauses = append(clauses, "message LIKE ?")
		args = append(args, "%"+f.Search+"%")
	}

	limit, offset := normalizeLimitOffset(f.Limit, f.Offset)

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := fmt.Sprintf("SELECT id, timestamp, event_type, message FROM log_events %s ORDER BY timestamp DESC LIMIT ? OFFSET ?", where)
	args = append(args, limit, offset)

	var rows []Row
	if err := q.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying log_events: %w", err)
	}
	return rows, nil
}

// ProcessEvents returns process_events rows matching f.
func (q *Query) ProcessEvents(ctx context.Context, f Filter) ([]Row, error) {
	clauses, args := []string{}, []any{}

	if f.EventType != "" {
		clauses = append(clauses, "event_type = ?")
		args = append(args, f.EventType)
	}
	if f.PID != 0 {
		clauses = append(clauses, "pid = ?")
		args = append(args, f.PID)
	}

	limit, offset := normalizeLimitOffset(f.Limit, f.Offset)

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := fmt.Sprintf("SELECT id, timestamp, event_type, process_name AS message FROM process_events %s ORDER BY timestamp DESC LIMIT ? OFFSET ?", where)
	args = append(args, limit, offset)

	var rows []Row
	if err := q.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying process_events: %w", err)
	}
	return rows, nil
}

// NetworkEvents returns network_events rows matching f.
func (q *Query) NetworkEvents(ctx context.Context, f Filter) ([]Row, error) {
	clauses, args := []string{}, []any{}

	if f.EventType != "" {
		clauses = append(clauses, "event_type = ?")
		args = append(args, f.EventType)
	}
	if f.PID != 0 {
		clauses = append(clauses, "pid = ?")
		args = append(args, f.PID)
	}
	if f.Protocol != "" {
		clauses = append(clauses, "protocol = ?")
		args = append(args, f.Protocol)
	}
	if f.IP != "" {
		clauses = append(clauses, "(laddr_ip = ? OR raddr_ip = ?)")
		args = append(args, f.IP, f.IP)
	}

	limit, offset := normalizeLimitOffset(f.Limit, f.Offset)

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := fmt.Sprintf("SELECT id, timestamp, event_type, description AS message FROM network_events %s ORDER BY timestamp DESC LIMIT ? OFFSET ?", where)
	args = append(args, limit, offset)

	var rows []Row
	if err := q.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying network_events: %w", err)
	}
	return rows, nil
}

// Alerts returns alerts rows matching f (severity, rule_name).
func (q *Query) Alerts(ctx context.Context, f Filter) ([]Row, error) {
	clauses, args := []string{}, []any{}

	if f.Severity != "" {
		clauses = append(clauses, "severity = ?")
		args = append(args, f.Severity)
	}
	if f.RuleName != "" {
		clauses = append(clauses, "rule_name = ?")
		args = append(args, f.RuleName)
	}
	if f.Search != "" {
		clauses = append(clauses, "message LIKE ?")
		args = append(args, "%"+f.Search+"%")
	}

	limit, offset := normalizeLimitOffset(f.Limit, f.Offset)

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := fmt.Sprintf("SELECT id, timestamp, rule_name AS event_type, message FROM alerts %s ORDER BY timestamp DESC LIMIT ? OFFSET ?", where)
	args = append(args, limit, offset)

	var rows []Row
	if err := q.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	return rows, nil
}

// AlertEvidence returns the evidence rows for a given alert id, for the
// `expand` query parameter.
func (q *Query) AlertEvidence(ctx context.Context, alertID int64) ([]Row, error) {
	var rows []Row
	query := "SELECT id, timestamp, event_type, '' AS message FROM alert_evidence WHERE alert_id = ? ORDER BY sequence ASC"
	if err := q.db.SelectContext(ctx, &rows, query, alertID); err != nil {
		return nil, fmt.Errorf("querying alert_evidence: %w", err)
	}
	return rows, nil
}

func normalizeLimitOffset(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

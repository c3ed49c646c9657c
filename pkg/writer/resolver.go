package writer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
)

// resolvedEvidence is one row the generic resolver matched.
type resolvedEvidence struct {
	EventType string
	EventID   int64
	Timestamp time.Time
}

type sourceConfig struct {
	table          string
	defaultType    string
	typeColumn     string // empty when every row shares defaultType
	allowedFilters map[string]bool
}

var sourceTables = map[string]sourceConfig{
	"log_events": {
		table: "log_events", defaultType: "LOG_EVENT",
		allowedFilters: map[string]bool{"category": true, "severity": true, "event_type": true, "ip_address": true, "user": true, "process_name": true, "log_source": true},
	},
	"process_events": {
		table: "process_events", typeColumn: "event_type",
		allowedFilters: map[string]bool{"event_type": true, "pid": true, "ppid": true, "process_name": true},
	},
	"network_events": {
		table: "network_events", typeColumn: "event_type",
		allowedFilters: map[string]bool{"event_type": true, "pid": true, "protocol": true, "raddr_ip": true, "laddr_ip": true},
	},
	"metric_events": {
		table: "metrics", defaultType: "METRIC_SNAPSHOT",
		allowedFilters: map[string]bool{},
	},
}

// Resolve implements the generic evidence resolver described in
// spec.md §4.9: given a declarative spec, it finds the concrete event
// rows that justify an alert. spec is typically a
// model.EvidenceResolveSpec value, built directly by a rule rather than
// round-tripped through JSON.
func Resolve(ctx context.Context, tx *sqlx.Tx, spec any) ([]resolvedEvidence, error) {
	rs, ok := spec.(model.EvidenceResolveSpec)
	if !ok {
		return nil, fmt.Errorf("evidence_resolve: unsupported spec type %T", spec)
	}

	table, ok := sourceTables[rs.Source]
	if !ok {
		return nil, fmt.Errorf("evidence_resolve: unknown source %q", rs.Source)
	}

	if ids, ok := rs.Filters["id__in"]; ok {
		return resolveByIDs(ctx, tx, table.table, table.defaultType, table.typeColumn, ids)
	}

	return resolveByFilters(ctx, tx, rs, table)
}

func resolveByIDs(ctx context.Context, tx *sqlx.Tx, table, defaultType, typeColumn string, idsAny any) ([]resolvedEvidence, error) {
	ids, err := toInt64Slice(idsAny)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	typeExpr := "?"
	args := []any{defaultType}
	if typeColumn != "" {
		typeExpr = typeColumn
		args = nil
	}

	placeholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf("SELECT id, timestamp, %s AS event_type FROM %s WHERE id IN (%s)", typeExpr, table, placeholders)

	queryArgs := append(args, toAnySlice(ids)...)
	return runResolveQuery(ctx, tx, query, queryArgs)
}

func resolveByFilters(ctx context.Context, tx *sqlx.Tx, rs model.EvidenceResolveSpec, table sourceConfig) ([]resolvedEvidence, error) {
	var clauses []string
	var args []any

	for field, value := range rs.Filters {
		if field == "id__in" {
			continue
		}
		if strings.HasSuffix(field, "__in") {
			col := strings.TrimSuffix(field, "__in")
			if !table.allowedFilters[col] {
				continue
			}
			values, err := toAnySliceFromAny(value)
			if err != nil {
				return nil, err
			}
			placeholders := strings.TrimRight(strings.Repeat("?,", len(values)), ",")
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", col, placeholders))
			args = append(args, values...)
			continue
		}
		if !table.allowedFilters[field] {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", field))
		args = append(args, value)
	}

	if rs.TimeRange != nil {
		from := rs.TimeRange.From.Add(-10 * time.Second)
		to := rs.TimeRange.To.Add(2 * time.Second)
		clauses = append(clauses, "timestamp >= ?", "timestamp <= ?")
		args = append(args, from, to)
	}

	limit := rs.Limit
	if limit <= 0 {
		limit = 20
	}
	order := "DESC"
	if strings.EqualFold(rs.Order, "asc") {
		order = "ASC"
	}

	typeExpr := "?"
	if table.typeColumn != "" {
		typeExpr = table.typeColumn
	} else {
		args = append([]any{table.defaultType}, args...)
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}

	query := fmt.Sprintf("SELECT id, timestamp, %s AS event_type FROM %s %s ORDER BY timestamp %s LIMIT ?",
		typeExpr, table.table, where, order)
	args = append(args, limit)

	return runResolveQuery(ctx, tx, query, args)
}

func runResolveQuery(ctx context.Context, tx *sqlx.Tx, query string, args []any) ([]resolvedEvidence, error) {
	rows, err := tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []resolvedEvidence
	for rows.Next() {
		var r struct {
			ID        int64     `db:"id"`
			Timestamp time.Time `db:"timestamp"`
			EventType string    `db:"event_type"`
		}
		if err := rows.StructScan(&r); err != nil {
			return nil, err
		}
		out = append(out, resolvedEvidence{EventType: r.EventType, EventID: r.ID, Timestamp: r.Timestamp})
	}
	return out, rows.Err()
}

func toInt64Slice(v any) ([]int64, error) {
	switch ids := v.(type) {
	case []int64:
		return ids, nil
	case []int:
		out := make([]int64, len(ids))
		for i, id := range ids {
			out[i] = int64(id)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("evidence_resolve: id__in must be a list of integers, got %T", v)
	}
}

func toAnySlice(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func toAnySliceFromAny(v any) ([]any, error) {
	switch vals := v.(type) {
	case []string:
		out := make([]any, len(vals))
		for i, s := range vals {
			out[i] = s
		}
		return out, nil
	case []any:
		return vals, nil
	default:
		return nil, fmt.Errorf("evidence_resolve: __in filter must be a list, got %T", v)
	}
}

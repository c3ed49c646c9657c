package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
)

func dispatchInsert(ctx context.Context, tx *sqlx.Tx, ev model.Event) error {
	switch {
	case ev.Type == "ALERT":
		return insertAlert(ctx, tx, ev)
	case ev.Type == "LOG_EVENT":
		return insertLogEvent(ctx, tx, ev)
	case strings.HasPrefix(ev.Type, "PROCESS_"):
		return insertProcessEvent(ctx, tx, ev)
	case strings.HasPrefix(ev.Type, "NET_") || strings.HasPrefix(ev.Type, "CONNECTION_"):
		return insertNetworkEvent(ctx, tx, ev)
	case ev.Type == "METRIC_SNAPSHOT":
		return insertMetric(ctx, tx, ev)
	default:
		return fmt.Errorf("unroutable event type %q", ev.Type)
	}
}

func insertLogEvent(ctx context.Context, tx *sqlx.Tx, ev model.Event) error {
	if ev.Log == nil {
		return fmt.Errorf("LOG_EVENT with nil payload")
	}
	extra, err := marshalExtra(ev.Log.Extra)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO log_events
			(id, timestamp, log_source, event_type, category, severity, raw_log, message, user, ip_address, process_name, extra_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Timestamp, ev.Log.LogSource, ev.Log.EventType, string(ev.Log.Category), string(ev.Log.Severity),
		ev.Raw, ev.Log.Message, ev.Log.User, ev.Log.IP, ev.Log.Process, extra,
	)
	return err
}

func insertProcessEvent(ctx context.Context, tx *sqlx.Tx, ev model.Event) error {
	p := ev.Process
	if p == nil {
		return fmt.Errorf("%s with nil payload", ev.Type)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO process_events
			(id, timestamp, event_type, pid, ppid, process_name, exe, cmdline, username,
			 create_time, cpu_percent, memory_rss, memory_vms, old_value, new_value, exe_deleted, raw_event)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Timestamp, p.EventType, p.PID, p.PPID, p.Name, p.Exe, p.Cmdline, p.Username,
		p.CreateTime, p.CPUPercent, p.MemoryRSS, p.MemoryVMS, p.Old, p.New, p.ExeDeleted, ev.Raw,
	)
	return err
}

func insertNetworkEvent(ctx context.Context, tx *sqlx.Tx, ev model.Event) error {
	n := ev.Network
	if n == nil {
		return fmt.Errorf("%s with nil payload", ev.Type)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO network_events
			(id, timestamp, event_type, pid, process_name, protocol, laddr_ip, laddr_port,
			 raddr_ip, raddr_port, status, reason, description, raw_event)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Timestamp, n.EventType, n.PID, n.ProcessName, n.Protocol, n.LocalIP, n.LocalPort,
		n.RemoteIP, n.RemotePort, n.Status, n.Reason, n.Description, ev.Raw,
	)
	return err
}

func insertMetric(ctx context.Context, tx *sqlx.Tx, ev model.Event) error {
	if ev.Metric == nil {
		return fmt.Errorf("METRIC_SNAPSHOT with nil payload")
	}
	blob, err := json.Marshal(ev.Metric)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO metrics (id, timestamp, snapshot) VALUES (?, ?, ?)`, ev.ID, ev.Timestamp, string(blob))
	return err
}

func insertAlert(ctx context.Context, tx *sqlx.Tx, ev model.Event) error {
	if ev.Alert == nil {
		return fmt.Errorf("ALERT with nil bundle")
	}
	bundle := ev.Alert

	res, err := tx.ExecContext(ctx, `
		INSERT INTO alerts (id, external_id, timestamp, rule_name, severity, message)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, bundle.Alert.ExternalID, bundle.Alert.Timestamp, bundle.Alert.RuleName, string(bundle.Alert.Severity), bundle.Alert.Message,
	)
	if err != nil {
		return err
	}
	alertID, err := res.LastInsertId()
	if err != nil {
		alertID = ev.ID
	}

	sequence := 0
	for _, evid := range bundle.Evidence {
		sequence++
		seq := evid.Sequence
		if seq == 0 {
			seq = sequence
		}
		if err := insertEvidence(ctx, tx, alertID, evid.EventType, evid.EventID, evid.Role, seq, bundle.Alert.Timestamp); err != nil {
			return err
		}
	}

	if spec, ok := bundle.Alert.Extra["evidence_resolve"]; ok {
		resolved, err := Resolve(ctx, tx, spec)
		if err != nil {
			return fmt.Errorf("resolving evidence: %w", err)
		}
		for i, r := range resolved {
			if err := insertEvidence(ctx, tx, alertID, r.EventType, r.EventID, model.RoleSupport, i+1, r.Timestamp); err != nil {
				return err
			}
		}
	}

	return nil
}

func insertEvidence(ctx context.Context, tx *sqlx.Tx, alertID int64, eventType string, eventID int64, role model.EvidenceRole, sequence int, ts interface{}) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO alert_evidence (alert_id, event_type, event_id, role, sequence, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		alertID, eventType, eventID, string(role), sequence, ts,
	)
	return err
}

func marshalExtra(extra map[string]any) (string, error) {
	if len(extra) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(extra)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

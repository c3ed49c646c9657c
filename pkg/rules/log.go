package rules

import (
	"fmt"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
)

var logClearingVerbs = []string{"truncate", "rm", "shred"}

// LogClearingRule is LOG_001: a hybrid stateless rule matching either a
// PROCESS_NEW whose binary is a clearing tool touching a critical log
// path, or a LOG_EVENT whose message references clearing plus a
// sensitive path (including the classic "/dev/null" + "history" combo).
type LogClearingRule struct{}

func (LogClearingRule) Name() string        { return "LOG_001" }
func (LogClearingRule) EventPrefix() string { return "" }

func (LogClearingRule) Match(e model.Event) bool {
	switch {
	case e.Process != nil:
		if e.Process.EventType != "PROCESS_NEW" {
			return false
		}
		if !logClearingTool(e.Process.Name) {
			return false
		}
		return containsAny(e.Process.Cmdline, criticalLogPaths)

	case e.Log != nil:
		msg := e.Log.Message
		if containsAny(msg, logClearingVerbs) && containsAny(msg, criticalLogPaths) {
			return true
		}
		return containsAny(msg, []string{"/dev/null"}) && containsAny(msg, []string{"history"})

	default:
		return false
	}
}

func logClearingTool(name string) bool {
	switch name {
	case "rm", "truncate", "shred":
		return true
	default:
		return false
	}
}

func (LogClearingRule) BuildAlert(e model.Event) model.Alert {
	msg := "Possible log-clearing attempt"
	if e.Process != nil {
		msg = fmt.Sprintf("Possible log-clearing attempt: %s %s", e.Process.Name, e.Process.Cmdline)
	} else if e.Log != nil {
		msg = fmt.Sprintf("Possible log-clearing attempt: %s", e.Log.Message)
	}
	return model.Alert{
		Timestamp: e.Timestamp,
		RuleName:  "LOG_001",
		Severity:  model.SeverityHigh,
		Type:      "ALERT",
		Message:   msg,
	}
}

func (LogClearingRule) BuildEvidence(e model.Event) []model.EvidenceRef {
	return []model.EvidenceRef{{EventType: e.Type, EventID: e.ID, Role: model.RoleTrigger, Sequence: 1}}
}

// UserCreationRule is UUC_001: a LOG_EVENT whose message indicates a new
// user or group account was created.
type UserCreationRule struct{}

func (UserCreationRule) Name() string        { return "UUC_001" }
func (UserCreationRule) EventPrefix() string { return "" }

func (UserCreationRule) Match(e model.Event) bool {
	if e.Log == nil {
		return false
	}
	return containsAny(e.Log.Message, []string{"new user", "new group", "useradd", "adduser"})
}

func (UserCreationRule) BuildAlert(e model.Event) model.Alert {
	return model.Alert{
		Timestamp: e.Timestamp,
		RuleName:  "UUC_001",
		Severity:  model.SeverityMedium,
		Type:      "ALERT",
		Message:   fmt.Sprintf("User/group creation detected: %s", e.Log.Message),
	}
}

func (UserCreationRule) BuildEvidence(e model.Event) []model.EvidenceRef {
	return []model.EvidenceRef{{EventType: e.Type, EventID: e.ID, Role: model.RoleTrigger, Sequence: 1}}
}

// CronPersistenceRule is PER_001: a hybrid stateless rule matching
// either a PROCESS_NEW touching cron paths, or a LOG_EVENT mentioning
// crontab plus one of edit/replace/delete/list.
type CronPersistenceRule struct{}

func (CronPersistenceRule) Name() string        { return "PER_001" }
func (CronPersistenceRule) EventPrefix() string { return "" }

func (CronPersistenceRule) Match(e model.Event) bool {
	switch {
	case e.Process != nil:
		if e.Process.EventType != "PROCESS_NEW" {
			return false
		}
		return containsAny(e.Process.Cmdline, cronPaths)

	case e.Log != nil:
		return containsAny(e.Log.Message, []string{"crontab"}) &&
			containsAny(e.Log.Message, []string{"edit", "replace", "delete", "list"})

	default:
		return false
	}
}

func (CronPersistenceRule) BuildAlert(e model.Event) model.Alert {
	msg := "Possible cron-based persistence"
	if e.Process != nil {
		msg = fmt.Sprintf("Possible cron-based persistence: %s %s", e.Process.Name, e.Process.Cmdline)
	} else if e.Log != nil {
		msg = fmt.Sprintf("Possible cron-based persistence: %s", e.Log.Message)
	}
	return model.Alert{
		Timestamp: e.Timestamp,
		RuleName:  "PER_001",
		Severity:  model.SeverityMedium,
		Type:      "ALERT",
		Message:   msg,
	}
}

func (CronPersistenceRule) BuildEvidence(e model.Event) []model.EvidenceRef {
	return []model.EvidenceRef{{EventType: e.Type, EventID: e.ID, Role: model.RoleTrigger, Sequence: 1}}
}

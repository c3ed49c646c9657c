package rules

import (
	"fmt"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/parser"
)

// SuspiciousProcessRule is PROC_001: PROCESS_NEW whose normalized name
// is a known offensive-security tool.
type SuspiciousProcessRule struct{}

func (SuspiciousProcessRule) Name() string        { return "PROC_001" }
func (SuspiciousProcessRule) EventPrefix() string { return "PROCESS_" }

func (SuspiciousProcessRule) Match(e model.Event) bool {
	if e.Process == nil || e.Process.EventType != "PROCESS_NEW" {
		return false
	}
	return parser.HackingTools[e.Process.Name]
}

func (SuspiciousProcessRule) BuildAlert(e model.Event) model.Alert {
	return model.Alert{
		Timestamp: e.Timestamp,
		RuleName:  "PROC_001",
		Severity:  model.SeverityHigh,
		Type:      "ALERT",
		Message:   fmt.Sprintf("Suspicious process started: %s (pid=%d)", e.Process.Name, e.Process.PID),
	}
}

func (SuspiciousProcessRule) BuildEvidence(e model.Event) []model.EvidenceRef {
	return []model.EvidenceRef{{EventType: e.Type, EventID: e.ID, Role: model.RoleTrigger, Sequence: 1}}
}

// SuspiciousShellRule is PROC_002: a shell process spawned by an
// interpreter or networking tool not normally expected to launch one.
type SuspiciousShellRule struct{}

func (SuspiciousShellRule) Name() string        { return "PROC_002" }
func (SuspiciousShellRule) EventPrefix() string { return "PROCESS_" }

func (SuspiciousShellRule) Match(e model.Event) bool {
	if e.Process == nil || e.Process.EventType != "PROCESS_NEW" {
		return false
	}
	if !shellNames[e.Process.Name] {
		return false
	}
	return suspiciousShellParents[e.Process.ParentName]
}

func (SuspiciousShellRule) BuildAlert(e model.Event) model.Alert {
	return model.Alert{
		Timestamp: e.Timestamp,
		RuleName:  "PROC_002",
		Severity:  model.SeverityHigh,
		Type:      "ALERT",
		Message:   fmt.Sprintf("Suspicious shell spawn: %s (pid=%d)", e.Process.Name, e.Process.PID),
	}
}

func (SuspiciousShellRule) BuildEvidence(e model.Event) []model.EvidenceRef {
	return []model.EvidenceRef{{EventType: e.Type, EventID: e.ID, Role: model.RoleTrigger, Sequence: 1}}
}

// SensitiveFileAccessRule is FILE_001: a new process (outside the
// hacking-tool allow-list, which has its own rule) whose cmdline
// references a sensitive path.
type SensitiveFileAccessRule struct{}

func (SensitiveFileAccessRule) Name() string        { return "FILE_001" }
func (SensitiveFileAccessRule) EventPrefix() string { return "PROCESS_" }

func (SensitiveFileAccessRule) Match(e model.Event) bool {
	if e.Process == nil || e.Process.EventType != "PROCESS_NEW" {
		return false
	}
	if parser.HackingTools[e.Process.Name] {
		return false
	}
	return containsAny(e.Process.Cmdline, sensitivePaths)
}

func (SensitiveFileAccessRule) BuildAlert(e model.Event) model.Alert {
	return model.Alert{
		Timestamp: e.Timestamp,
		RuleName:  "FILE_001",
		Severity:  model.SeverityHigh,
		Type:      "ALERT",
		Message:   fmt.Sprintf("Sensitive file referenced by process %s (pid=%d): %s", e.Process.Name, e.Process.PID, e.Process.Cmdline),
	}
}

func (SensitiveFileAccessRule) BuildEvidence(e model.Event) []model.EvidenceRef {
	return []model.EvidenceRef{{EventType: e.Type, EventID: e.ID, Role: model.RoleTrigger, Sequence: 1}}
}

package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
)

func TestSuspiciousShellRuleMatchesInterpreterSpawnedShell(t *testing.T) {
	r := SuspiciousShellRule{}
	ev := model.Event{
		ID: 1, Type: "PROCESS_NEW", Timestamp: time.Now(),
		Process: &model.ProcessPayload{EventType: "PROCESS_NEW", Name: "bash", ParentName: "python", PID: 7},
	}
	require.True(t, r.Match(ev))

	alert := r.BuildAlert(ev)
	assert.Equal(t, "PROC_002", alert.RuleName)
	assert.Equal(t, model.SeverityHigh, alert.Severity)
}

func TestSuspiciousShellRuleIgnoresOrdinaryParent(t *testing.T) {
	r := SuspiciousShellRule{}
	ev := model.Event{
		ID: 1, Type: "PROCESS_NEW", Timestamp: time.Now(),
		Process: &model.ProcessPayload{EventType: "PROCESS_NEW", Name: "bash", ParentName: "systemd"},
	}
	assert.False(t, r.Match(ev))
}

func TestSensitiveFileAccessRuleMatchesShadowReference(t *testing.T) {
	r := SensitiveFileAccessRule{}
	ev := model.Event{
		ID: 1, Type: "PROCESS_NEW", Timestamp: time.Now(),
		Process: &model.ProcessPayload{EventType: "PROCESS_NEW", Name: "cat", Cmdline: "cat /etc/shadow"},
	}
	require.True(t, r.Match(ev))
	assert.Equal(t, "FILE_001", r.BuildAlert(ev).RuleName)
}

func TestSensitiveFileAccessRuleExcludesHackingTools(t *testing.T) {
	r := SensitiveFileAccessRule{}
	ev := model.Event{
		ID: 1, Type: "PROCESS_NEW", Timestamp: time.Now(),
		Process: &model.ProcessPayload{EventType: "PROCESS_NEW", Name: "nmap", Cmdline: "nmap /etc/shadow"},
	}
	// PROC_001 already covers known hacking tools; FILE_001 defers to it.
	assert.False(t, r.Match(ev))
}

func TestLogClearingRuleMatchesClearingToolOnCriticalPath(t *testing.T) {
	r := LogClearingRule{}
	ev := model.Event{
		ID: 1, Type: "PROCESS_NEW", Timestamp: time.Now(),
		Process: &model.ProcessPayload{EventType: "PROCESS_NEW", Name: "truncate", Cmdline: "truncate -s0 /var/log/auth.log"},
	}
	require.True(t, r.Match(ev))
	assert.Equal(t, "LOG_001", r.BuildAlert(ev).RuleName)
}

func TestLogClearingRuleMatchesHistoryToDevNull(t *testing.T) {
	r := LogClearingRule{}
	ev := model.Event{
		ID: 1, Type: "LOG_EVENT", Timestamp: time.Now(),
		Log: &model.LogPayload{EventType: "SHELL_COMMAND", Message: "ln -sf /dev/null ~/.bash_history"},
	}
	assert.True(t, r.Match(ev))
}

func TestLogClearingRuleIgnoresUnrelatedCommand(t *testing.T) {
	r := LogClearingRule{}
	ev := model.Event{
		ID: 1, Type: "PROCESS_NEW", Timestamp: time.Now(),
		Process: &model.ProcessPayload{EventType: "PROCESS_NEW", Name: "ls", Cmdline: "ls -la"},
	}
	assert.False(t, r.Match(ev))
}

func TestUserCreationRuleMatchesUseraddMessage(t *testing.T) {
	r := UserCreationRule{}
	ev := model.Event{
		ID: 1, Type: "LOG_EVENT", Timestamp: time.Now(),
		Log: &model.LogPayload{EventType: "ACCOUNT_CHANGE", Message: "useradd: new user 'backdoor' added"},
	}
	require.True(t, r.Match(ev))

	alert := r.BuildAlert(ev)
	assert.Equal(t, "UUC_001", alert.RuleName)
	assert.Equal(t, model.SeverityMedium, alert.Severity)
}

func TestUserCreationRuleIgnoresUnrelatedLog(t *testing.T) {
	r := UserCreationRule{}
	ev := model.Event{
		ID: 1, Type: "LOG_EVENT", Timestamp: time.Now(),
		Log: &model.LogPayload{EventType: "ACCOUNT_CHANGE", Message: "password changed for user alice"},
	}
	assert.False(t, r.Match(ev))
}

func TestCronPersistenceRuleMatchesCrontabEdit(t *testing.T) {
	r := CronPersistenceRule{}
	ev := model.Event{
		ID: 1, Type: "LOG_EVENT", Timestamp: time.Now(),
		Log: &model.LogPayload{EventType: "CRON_CHANGE", Message: "crontab: user ubuntu edit"},
	}
	require.True(t, r.Match(ev))
	assert.Equal(t, "PER_001", r.BuildAlert(ev).RuleName)
}

func TestCronPersistenceRuleMatchesProcessTouchingCronPath(t *testing.T) {
	r := CronPersistenceRule{}
	ev := model.Event{
		ID: 1, Type: "PROCESS_NEW", Timestamp: time.Now(),
		Process: &model.ProcessPayload{EventType: "PROCESS_NEW", Name: "vi", Cmdline: "vi /etc/cron.d/backdoor"},
	}
	assert.True(t, r.Match(ev))
}

func TestCronPersistenceRuleIgnoresPlainListWithoutCrontab(t *testing.T) {
	r := CronPersistenceRule{}
	ev := model.Event{
		ID: 1, Type: "LOG_EVENT", Timestamp: time.Now(),
		Log: &model.LogPayload{EventType: "CRON_CHANGE", Message: "job list refreshed successfully"},
	}
	assert.False(t, r.Match(ev))
}

func TestSuspiciousRemoteRuleMatchesCollectorFlaggedConnection(t *testing.T) {
	r := SuspiciousRemoteRule{}
	ev := model.Event{
		ID: 1, Type: "CONNECTION_SUSPICIOUS_REMOTE", Timestamp: time.Now(),
		Network: &model.NetworkPayload{EventType: "CONNECTION_SUSPICIOUS_REMOTE", RemoteIP: "203.0.113.5", RemotePort: 4444, Reason: "known C2 port"},
	}
	require.True(t, r.Match(ev))

	alert := r.BuildAlert(ev)
	assert.Equal(t, "NET_001", alert.RuleName)
	assert.Contains(t, alert.Message, "203.0.113.5")
}

func TestSuspiciousRemoteRuleIgnoresOrdinaryConnection(t *testing.T) {
	r := SuspiciousRemoteRule{}
	ev := model.Event{
		ID: 1, Type: "NET_NEW_CONNECTION", Timestamp: time.Now(),
		Network: &model.NetworkPayload{EventType: "NET_NEW_CONNECTION", RemoteIP: "1.2.3.4"},
	}
	assert.False(t, r.Match(ev))
}

func TestOutboundPortScanRuleFiresOnDistinctPortBurst(t *testing.T) {
	r := NewOutboundPortScanRule(3, 30*time.Second)
	eng := NewEngine(nil, []ThresholdRule{r}, NewContext(), zap.NewNop())
	base := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	var bundles []model.AlertBundle
	for i, port := range []int{22, 80, 443} {
		ev := model.Event{
			ID: int64(i + 1), Type: "NET_NEW_CONNECTION", Timestamp: base.Add(time.Duration(i) * time.Second),
			Network: &model.NetworkPayload{EventType: "NET_NEW_CONNECTION", PID: 99, RemoteIP: "198.51.100.1", RemotePort: uint32(port)},
		}
		bundles = append(bundles, eng.Evaluate(ev)...)
	}

	require.Len(t, bundles, 1)
	assert.Equal(t, "NET_002", bundles[0].Alert.RuleName)
	assert.Contains(t, bundles[0].Alert.Message, "198.51.100.1")
}

func TestOutboundPortScanRuleIgnoresListeningSockets(t *testing.T) {
	r := NewOutboundPortScanRule(3, 30*time.Second)
	ev := model.Event{
		ID: 1, Type: "NET_NEW_CONNECTION", Timestamp: time.Now(),
		Network: &model.NetworkPayload{EventType: "NET_NEW_CONNECTION", IsListen: true, RemoteIP: "198.51.100.1"},
	}
	assert.False(t, r.IsRelevant(ev))
}

package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
)

var (
	syslogTimestampRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`)
	syslogServiceRe    = regexp.MustCompile(`\s([a-zA-Z0-9_.@-]+)(?:\[\d+\])?:\s`)
	syslogFailedRe     = regexp.MustCompile(`(?i)failed to start|entered failed state|main process exited`)
	syslogStartedRe    = regexp.MustCompile(`(?i)started |starting `)
	syslogStoppedRe    = regexp.MustCompile(`(?i)stopped |stopping `)
	syslogErrorKeyword = []string{"error", "critical", "panic"}
	syslogWarnKeyword  = []string{"warning", "warn"}
)

// SyslogParser handles /var/log/syslog lines classified into
// SERVICE_*/SYSTEM_*/SYS_EVENT.
type SyslogParser struct{}

func (SyslogParser) Match(line string) bool {
	return line != "" && syslogTimestampRe.MatchString(line)
}

func (SyslogParser) Parse(line string, now time.Time) (model.LogPayload, time.Time) {
	ts, ok := ParseTimestamp(line, now)
	if !ok {
		ts = now
	}

	eventType := detectSyslogEventType(line)

	service := ""
	if m := syslogServiceRe.FindStringSubmatch(line); m != nil {
		service = m[1]
	}

	extra := map[string]any{}
	if service != "" {
		extra["service"] = service
	}

	return model.LogPayload{
		LogSource: "syslog",
		EventType: eventType,
		Category:  model.CategorySystem,
		Severity:  estimateSyslogSeverity(eventType),
		Message:   strings.TrimSpace(line),
		Process:   service,
		Extra:     extra,
	}, ts
}

func detectSyslogEventType(line string) string {
	lower := strings.ToLower(line)

	switch {
	case syslogFailedRe.MatchString(line):
		return "SERVICE_FAILED"
	case syslogStartedRe.MatchString(line):
		return "SERVICE_STARTED"
	case syslogStoppedRe.MatchString(line):
		return "SERVICE_STOPPED"
	case containsAny(lower, syslogErrorKeyword):
		return "SYSTEM_ERROR"
	case containsAny(lower, syslogWarnKeyword):
		return "SYSTEM_WARNING"
	default:
		return "SYS_EVENT"
	}
}

func estimateSyslogSeverity(eventType string) model.Severity {
	switch eventType {
	case "SERVICE_FAILED", "SYSTEM_ERROR":
		return model.SeverityHigh
	case "SERVICE_STOPPED":
		return model.SeverityMedium
	case "SYSTEM_WARNING":
		return model.SeverityLow
	default:
		return model.SeverityLow
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
)

var (
	authKeywords = []string{
		"sshd", "sudo", "authentication failure",
		"Failed password", "Accepted password",
		"session opened", "session closed",
	}
	authPIDRe  = regexp.MustCompile(`\[(\d+)\]:`)
	authIPRe   = regexp.MustCompile(`from (\d{1,3}(?:\.\d{1,3}){3})`)
	authUserRe = regexp.MustCompile(`for (?:invalid user )?(\S+) from`)
)

// AuthParser handles /var/log/auth.log: SSH login, sudo and PAM lines.
type AuthParser struct{}

func (AuthParser) Match(line string) bool {
	if line == "" {
		return false
	}
	for _, k := range authKeywords {
		if strings.Contains(line, k) {
			return true
		}
	}
	return false
}

func (AuthParser) Parse(line string, now time.Time) (model.LogPayload, time.Time) {
	ts, ok := ParseTimestamp(line, now)
	if !ok {
		ts = now
	}
	eventType := detectAuthEventType(line)
	user := extractAuthUser(line)
	ip := ""
	if m := authIPRe.FindStringSubmatch(line); m != nil {
		ip = m[1]
	}
	method := extractAuthMethod(line)
	pid := ""
	if m := authPIDRe.FindStringSubmatch(line); m != nil {
		pid = m[1]
	}

	extra := map[string]any{}
	if method != "" {
		extra["method"] = method
	}
	if pid != "" {
		if v, err := strconv.Atoi(pid); err == nil {
			extra["pid"] = v
		}
	}

	return model.LogPayload{
		LogSource: "auth",
		EventType: eventType,
		Category:  model.CategoryAuth,
		Severity:  estimateAuthSeverity(eventType, user),
		Message:   strings.TrimSpace(line),
		User:      user,
		IP:        ip,
		Extra:     extra,
	}, ts
}

func extractAuthUser(line string) string {
	m := authUserRe.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	user := m[1]
	if user == "invalid" || user == "user" {
		return ""
	}
	return user
}

func extractAuthMethod(line string) string {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "password"):
		return "password"
	case strings.Contains(lower, "publickey"):
		return "publickey"
	case strings.Contains(lower, "keyboard-interactive"):
		return "keyboard-interactive"
	default:
		return ""
	}
}

func detectAuthEventType(line string) string {
	l := strings.ToLower(line)

	switch {
	case strings.Contains(l, "failed password"):
		return "FAILED_LOGIN"
	case strings.Contains(l, "accepted password") || strings.Contains(l, "accepted publickey"):
		return "SUCCESS_LOGIN"
	case strings.Contains(l, "authentication failure") && strings.Contains(l, "sudo:"):
		return "SUDO_FAILED"
	case strings.Contains(l, "authentication failure"):
		return "FAILED_AUTH"
	case strings.Contains(l, "sudo:") && strings.Contains(l, "session opened"):
		return "SUDO_SESSION_OPEN"
	case strings.Contains(l, "sudo:") && strings.Contains(l, "session closed"):
		return "SUDO_SESSION_CLOSE"
	case strings.Contains(l, "session opened"):
		return "SESSION_OPEN"
	case strings.Contains(l, "session closed"):
		return "SESSION_CLOSE"
	default:
		return "AUTH_EVENT"
	}
}

func estimateAuthSeverity(eventType, user string) model.Severity {
	switch {
	case eventType == "FAILED_LOGIN" || eventType == "FAILED_AUTH":
		return model.SeverityMedium
	case eventType == "SUCCESS_LOGIN" && user == "root":
		return model.SeverityHigh
	case strings.HasPrefix(eventType, "SUDO"):
		return model.SeverityHigh
	default:
		return model.SeverityLow
	}
}

package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
)

var (
	dpkgTimestampRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`)
	dpkgPackageRe   = regexp.MustCompile(`\s([a-zA-Z0-9.+-]+):([a-z0-9]+)\s`)
	dpkgActions     = []string{"install", "upgrade", "remove", "purge"}
)

// DpkgParser handles /var/log/dpkg.log package lifecycle lines.
type DpkgParser struct{}

func (DpkgParser) Match(line string) bool {
	if line == "" || !dpkgTimestampRe.MatchString(line) {
		return false
	}
	for _, action := range dpkgActions {
		if strings.Contains(line, " "+action+" ") {
			return true
		}
	}
	return false
}

func (DpkgParser) Parse(line string, now time.Time) (model.LogPayload, time.Time) {
	ts, ok := ParseTimestamp(line, now)
	if !ok {
		ts = now
	}

	action := extractDpkgAction(line)
	pkg, arch := extractDpkgPackage(line)
	oldVer, newVer := extractDpkgVersions(line)
	eventType := normalizeDpkgEventType(action, oldVer, newVer)

	return model.LogPayload{
		LogSource: "dpkg",
		EventType: eventType,
		Category:  model.CategoryPackage,
		Severity:  estimateDpkgSeverity(action, pkg),
		Message:   fmt.Sprintf("%s %s (old:%s new:%s)", action, pkg, oldVer, newVer),
		Process:   pkg,
		Extra: map[string]any{
			"action":      action,
			"arch":        arch,
			"old_version": oldVer,
			"new_version": newVer,
		},
	}, ts
}

func extractDpkgAction(line string) string {
	for _, action := range dpkgActions {
		if strings.Contains(line, " "+action+" ") {
			return action
		}
	}
	return "unknown"
}

func extractDpkgPackage(line string) (pkg, arch string) {
	m := dpkgPackageRe.FindStringSubmatch(line)
	if m == nil {
		return "", ""
	}
	return m[1], m[2]
}

func extractDpkgVersions(line string) (old, new string) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return "<none>", "<none>"
	}
	return fields[len(fields)-2], fields[len(fields)-1]
}

func normalizeDpkgEventType(action, oldVer, newVer string) string {
	switch action {
	case "install":
		return "PACKAGE_INSTALL"
	case "remove":
		return "PACKAGE_REMOVE"
	case "purge":
		return "PACKAGE_PURGE"
	case "upgrade":
		// Lexicographic comparison, not semantic version ordering: see
		// SPEC_FULL.md §9's resolution of the corresponding Open
		// Question.
		if isDowngrade(oldVer, newVer) {
			return "PACKAGE_DOWNGRADE"
		}
		return "PACKAGE_UPGRADE"
	default:
		return "PACKAGE_EVENT"
	}
}

func isDowngrade(oldVer, newVer string) bool {
	if oldVer == "<none>" || newVer == "<none>" {
		return false
	}
	return newVer < oldVer
}

func estimateDpkgSeverity(action, pkg string) model.Severity {
	if HackingTools[strings.ToLower(pkg)] {
		return model.SeverityHigh
	}
	if action == "install" || action == "remove" {
		return model.SeverityMedium
	}
	return model.SeverityLow
}

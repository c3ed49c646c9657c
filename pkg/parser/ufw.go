package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
)

var (
	ufwActionRe = regexp.MustCompile(`\[UFW (BLOCK|ALLOW)\]`)
	ufwSrcIPRe  = regexp.MustCompile(`SRC=(\S+)`)
	ufwDstIPRe  = regexp.MustCompile(`DST=(\S+)`)
	ufwProtoRe  = regexp.MustCompile(`PROTO=(\S+)`)
	ufwSrcPort  = regexp.MustCompile(`SPT=(\d+)`)
	ufwDstPort  = regexp.MustCompile(`DPT=(\d+)`)
	ufwInRe     = regexp.MustCompile(`IN=(\S*)`)
	ufwOutRe    = regexp.MustCompile(`OUT=(\S*)`)
)

// UFWParser handles /var/log/ufw.log firewall lines.
type UFWParser struct{}

func (UFWParser) Match(line string) bool {
	return line != "" && strings.Contains(line, "UFW ")
}

func (UFWParser) Parse(line string, now time.Time) (model.LogPayload, time.Time) {
	ts, ok := ParseTimestamp(line, now)
	if !ok {
		ts = now
	}

	eventType := "UFW_EVENT"
	if m := ufwActionRe.FindStringSubmatch(line); m != nil {
		eventType = "UFW_" + strings.ToUpper(m[1])
	}

	extra := map[string]any{}
	if m := ufwProtoRe.FindStringSubmatch(line); m != nil {
		extra["protocol"] = m[1]
	}
	if m := ufwSrcPort.FindStringSubmatch(line); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			extra["src_port"] = v
		}
	}
	if m := ufwDstPort.FindStringSubmatch(line); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			extra["dst_port"] = v
		}
	}
	if m := ufwInRe.FindStringSubmatch(line); m != nil && m[1] != "" {
		extra["in_interface"] = m[1]
	}
	if m := ufwOutRe.FindStringSubmatch(line); m != nil && m[1] != "" {
		extra["out_interface"] = m[1]
	}

	dstIP := ""
	if m := ufwDstIPRe.FindStringSubmatch(line); m != nil {
		dstIP = m[1]
		extra["dst_ip"] = dstIP
	}

	srcIP := ""
	if m := ufwSrcIPRe.FindStringSubmatch(line); m != nil {
		srcIP = m[1]
	}

	return model.LogPayload{
		LogSource: "ufw",
		EventType: eventType,
		Category:  model.CategoryFirewall,
		Severity:  estimateUFWSeverity(eventType),
		Message:   strings.TrimSpace(line),
		IP:        srcIP,
		Extra:     extra,
	}, ts
}

func estimateUFWSeverity(eventType string) model.Severity {
	switch eventType {
	case "UFW_BLOCK":
		return model.SeverityMedium
	case "UFW_ALLOW":
		return model.SeverityLow
	default:
		return model.SeverityLow
	}
}

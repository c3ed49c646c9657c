package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
)

var (
	kernelKeywords = []string{
		"kernel", "panic", "segfault", "out of memory",
		"oom", "driver", "usb", "segmentation fault",
	}
	kernelPanicRe  = regexp.MustCompile(`(?i)kernel panic`)
	kernelSegvRe   = regexp.MustCompile(`(?i)segfault|segmentation fault`)
	kernelOOMRe    = regexp.MustCompile(`(?i)out of memory|oom-killer|oom killer`)
	kernelUSBRe    = regexp.MustCompile(`(?i)usb \d+-[\d.]+:.*error|usb.*disconnect`)
	kernelDriverRe = regexp.MustCompile(`(?i)driver.*(fail|error)`)
	kernelPIDRe    = regexp.MustCompile(`\[(\d+)\]:`)
	kernelProcRe   = regexp.MustCompile(`kernel:\s*\[[^\]]*\]\s*(\S+)`)
)

// KernelParser handles /var/log/kern.log critical-event lines.
type KernelParser struct{}

func (KernelParser) Match(line string) bool {
	if line == "" {
		return false
	}
	lower := strings.ToLower(line)
	return containsAny(lower, kernelKeywords)
}

func (KernelParser) Parse(line string, now time.Time) (model.LogPayload, time.Time) {
	ts, ok := ParseTimestamp(line, now)
	if !ok {
		ts = now
	}

	eventType := detectKernelEventType(line)

	extra := map[string]any{}
	if m := kernelPIDRe.FindStringSubmatch(line); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			extra["pid"] = v
		}
	}

	process := ""
	if m := kernelProcRe.FindStringSubmatch(line); m != nil {
		process = m[1]
	}

	return model.LogPayload{
		LogSource: "kernel",
		EventType: eventType,
		Category:  model.CategoryKernel,
		Severity:  estimateKernelSeverity(eventType),
		Message:   strings.TrimSpace(line),
		Process:   process,
		Extra:     extra,
	}, ts
}

func detectKernelEventType(line string) string {
	switch {
	case kernelPanicRe.MatchString(line):
		return "KERNEL_PANIC"
	case kernelSegvRe.MatchString(line):
		return "SEGFAULT"
	case kernelOOMRe.MatchString(line):
		return "OOM_KILLER"
	case kernelUSBRe.MatchString(line):
		return "USB_ERROR"
	case kernelDriverRe.MatchString(line):
		return "DRIVER_ERROR"
	default:
		return "KERNEL_EVENT"
	}
}

func estimateKernelSeverity(eventType string) model.Severity {
	switch eventType {
	case "KERNEL_PANIC":
		return model.SeverityCritical
	case "OOM_KILLER", "SEGFAULT":
		return model.SeverityHigh
	case "USB_ERROR", "DRIVER_ERROR":
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
)

// SuspiciousRemoteRule is NET_001: fires directly off
// CONNECTION_SUSPICIOUS_REMOTE events the network collector already
// produced (§4.6); it is stateless because the collector did the actual
// recognition work.
type SuspiciousRemoteRule struct{}

func (SuspiciousRemoteRule) Name() string        { return "NET_001" }
func (SuspiciousRemoteRule) EventPrefix() string { return "CONNECTION_" }

func (SuspiciousRemoteRule) Match(e model.Event) bool {
	return e.Network != nil && e.Network.EventType == "CONNECTION_SUSPICIOUS_REMOTE"
}

func (SuspiciousRemoteRule) BuildAlert(e model.Event) model.Alert {
	return model.Alert{
		Timestamp: e.Timestamp,
		RuleName:  "NET_001",
		Severity:  model.SeverityHigh,
		Type:      "ALERT",
		Message:   fmt.Sprintf("Suspicious remote connection to %s:%d (%s)", e.Network.RemoteIP, e.Network.RemotePort, e.Network.Reason),
	}
}

func (SuspiciousRemoteRule) BuildEvidence(e model.Event) []model.EvidenceRef {
	return []model.EvidenceRef{{EventType: e.Type, EventID: e.ID, Role: model.RoleTrigger, Sequence: 1}}
}

// OutboundPortScanRule is NET_002: 8 qualifying outbound connection events
// from the same (pid, raddr_ip) within 30s, grounded in original_source's
// CONNECTION_PORT_SCAN_OUTBOUND design.
type OutboundPortScanRule struct {
	DistinctPorts int
	WindowSeconds time.Duration
}

// NewOutboundPortScanRule builds NET_002 with the configured thresholds.
func NewOutboundPortScanRule(distinctPorts int, window time.Duration) OutboundPortScanRule {
	return OutboundPortScanRule{DistinctPorts: distinctPorts, WindowSeconds: window}
}

func (OutboundPortScanRule) Name() string        { return "NET_002" }
func (OutboundPortScanRule) EventPrefix() string { return "" }

func (OutboundPortScanRule) IsRelevant(e model.Event) bool {
	if e.Network == nil {
		return false
	}
	switch e.Network.EventType {
	case "NET_NEW_CONNECTION", "CONNECTION_UNUSUAL_PORT":
		return !e.Network.IsListen && e.Network.RemoteIP != ""
	default:
		return false
	}
}

func (OutboundPortScanRule) Key(e model.Event) string {
	return strconv.Itoa(int(e.Network.PID)) + "\x00" + e.Network.RemoteIP
}

// Threshold counts qualifying connection events, not distinct remote
// ports: every NET_NEW_CONNECTION and every CONNECTION_UNUSUAL_PORT event
// for the key adds one entry, so a connection to an unusual port counts
// twice and repeated connections to the same remote port each count.
func (r OutboundPortScanRule) Threshold() int        { return r.DistinctPorts }
func (r OutboundPortScanRule) Window() time.Duration { return r.WindowSeconds }

func (r OutboundPortScanRule) CreateAlert(key string, entries []Entry) model.Alert {
	parts := strings.SplitN(key, "\x00", 2)
	raddr := key
	if len(parts) == 2 {
		raddr = parts[1]
	}
	last := entries[len(entries)-1]
	return model.Alert{
		Timestamp: last.Timestamp,
		RuleName:  "NET_002",
		Severity:  model.SeverityHigh,
		Type:      "ALERT",
		Message:   fmt.Sprintf("Outbound port scan toward %s: %d connections in window", raddr, len(entries)),
		Extra: map[string]any{
			"evidence_resolve": model.EvidenceResolveSpec{
				Source: "network_events",
				Filters: map[string]any{
					"id__in": entryIDs(entries),
				},
				Limit: len(entries),
				Order: "asc",
			},
		},
	}
}

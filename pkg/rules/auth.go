package rules

import (
	"fmt"
	"time"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
)

// AuthBruteforceRule is AUTH_001: 5 FAILED_LOGIN/FAILED_AUTH events for
// the same ip within 60s.
type AuthBruteforceRule struct {
	ThresholdCount int
	WindowSeconds  time.Duration
}

// NewAuthBruteforceRule builds AUTH_001 with the configured count/window.
func NewAuthBruteforceRule(count int, window time.Duration) AuthBruteforceRule {
	return AuthBruteforceRule{ThresholdCount: count, WindowSeconds: window}
}

func (AuthBruteforceRule) Name() string        { return "AUTH_001" }
func (AuthBruteforceRule) EventPrefix() string { return "" }

func (AuthBruteforceRule) IsRelevant(e model.Event) bool {
	if e.Log == nil || e.Log.Category != model.CategoryAuth {
		return false
	}
	switch e.Log.EventType {
	case "FAILED_LOGIN", "FAILED_AUTH":
		return true
	default:
		return false
	}
}

func (AuthBruteforceRule) Key(e model.Event) string {
	return e.Log.IP
}

func (r AuthBruteforceRule) Threshold() int          { return r.ThresholdCount }
func (r AuthBruteforceRule) Window() time.Duration   { return r.WindowSeconds }

func (r AuthBruteforceRule) CreateAlert(key string, entries []Entry) model.Alert {
	last := entries[len(entries)-1]
	return model.Alert{
		Timestamp: last.Timestamp,
		RuleName:  "AUTH_001",
		Severity:  model.SeverityHigh,
		Type:      "ALERT",
		Message:   fmt.Sprintf("SSH bruteforce from %s: %d failed attempts", key, len(entries)),
		Extra: map[string]any{
			"evidence_resolve": model.EvidenceResolveSpec{
				Source: "log_events",
				Filters: map[string]any{
					"category":        string(model.CategoryAuth),
					"event_type__in":  []string{"FAILED_LOGIN", "FAILED_AUTH"},
					"ip_address":      key,
				},
				TimeRange: &model.TimeRangeSpec{
					From: entries[0].Timestamp,
					To:   last.Timestamp,
				},
				Limit: len(entries),
				Order: "asc",
			},
		},
	}
}

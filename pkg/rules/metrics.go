package rules

import (
	"fmt"
	"time"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
)

// ResourceUsageRule is RES_001: METRIC_SNAPSHOT events whose cpu_percent
// or ram_percent exceed their configured threshold, keyed by the single
// "system_resources" key (there is only one host).
type ResourceUsageRule struct {
	ThresholdCount int
	WindowSeconds  time.Duration
	CPUPercent     float64
	RAMPercent     float64
}

// NewResourceUsageRule builds RES_001 with the configured thresholds.
func NewResourceUsageRule(count int, window time.Duration, cpuPercent, ramPercent float64) ResourceUsageRule {
	return ResourceUsageRule{ThresholdCount: count, WindowSeconds: window, CPUPercent: cpuPercent, RAMPercent: ramPercent}
}

func (ResourceUsageRule) Name() string        { return "RES_001" }
func (ResourceUsageRule) EventPrefix() string { return "METRIC_" }

func (r ResourceUsageRule) IsRelevant(e model.Event) bool {
	if e.Metric == nil {
		return false
	}
	return e.Metric.CPU.Percent > r.CPUPercent || e.Metric.Memory.UsedPercent > r.RAMPercent
}

func (ResourceUsageRule) Key(e model.Event) string {
	return "system_resources"
}

func (r ResourceUsageRule) Threshold() int        { return r.ThresholdCount }
func (r ResourceUsageRule) Window() time.Duration { return r.WindowSeconds }

func (r ResourceUsageRule) CreateAlert(key string, entries []Entry) model.Alert {
	last := entries[len(entries)-1]
	return model.Alert{
		Timestamp: last.Timestamp,
		RuleName:  "RES_001",
		Severity:  model.SeverityMedium,
		Type:      "ALERT",
		Message:   fmt.Sprintf("High resource usage: %d snapshots over threshold in window", len(entries)),
		Extra: map[string]any{
			"evidence_resolve": model.EvidenceResolveSpec{
				Source: "metric_events",
				Filters: map[string]any{
					"id__in": entryIDs(entries),
				},
				Limit: len(entries),
				Order: "asc",
			},
		},
	}
}

func entryIDs(entries []Entry) []int64 {
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.EventID
	}
	return ids
}

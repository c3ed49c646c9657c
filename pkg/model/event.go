// Package model defines the canonical entities exchanged between
// collectors, the parser layer, the dispatcher, the rule engine and the
// writer. It replaces the reflective dict-based events of the original
// implementation with a compact tagged union: one header plus a single
// non-nil variant payload pointer per Event.
package model

import "time"

// Severity orders LOW < MEDIUM < HIGH < CRITICAL.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Less reports whether s ranks below other in the LOW..CRITICAL ordering.
func (s Severity) Less(other Severity) bool {
	return severityRank[s] < severityRank[other]
}

// Category is the LogEvent classification.
type Category string

const (
	CategoryAuth     Category = "AUTH"
	CategorySystem   Category = "SYSTEM"
	CategoryKernel   Category = "KERNEL"
	CategoryPackage  Category = "PACKAGE"
	CategoryFirewall Category = "FIREWALL"
)

// SourceTag identifies which raw log file a RawLogLine came from.
type SourceTag string

const (
	SourceAuth   SourceTag = "auth"
	SourceSyslog SourceTag = "syslog"
	SourceKernel SourceTag = "kernel"
	SourceDpkg   SourceTag = "dpkg"
	SourceUFW    SourceTag = "ufw"
)

// RawLogLine is the transient unit produced by the log tail collector,
// before any source-specific parser has run.
type RawLogLine struct {
	SourceTag SourceTag
	Text      string
}

// Event is the tagged union persisted by the writer. Exactly one of the
// variant payload fields is non-nil for any given Event. ID is assigned by
// the dispatcher on receipt, the writer inserts the row under that same id,
// and it is never reused or mutated afterwards.
type Event struct {
	ID        int64
	Type      string
	Timestamp time.Time
	Raw       string

	Log     *LogPayload
	Process *ProcessPayload
	Network *NetworkPayload
	Metric  *MetricPayload
	Alert   *AlertBundle
}

// LogPayload is the canonical shape produced by the parser layer.
type LogPayload struct {
	LogSource string
	EventType string
	Category  Category
	Severity  Severity
	Message   string
	User      string
	IP        string
	Process   string
	Extra     map[string]any
}

// ProcessPayload covers every PROCESS_* event type.
type ProcessPayload struct {
	EventType    string
	PID          int32
	PPID         int32
	Name         string
	ParentName   string
	Exe          string
	Cmdline      string
	Username     string
	CreateTime   time.Time
	CPUPercent   float64
	MemoryRSS    uint64
	MemoryVMS    uint64
	Old          string
	New          string
	ExeDeleted   bool
	RunTime      time.Duration
	ExeHash      string
}

// NetworkPayload covers every NET_*/CONNECTION_* event type.
type NetworkPayload struct {
	EventType   string
	PID         int32
	ProcessName string
	Protocol    string
	LocalIP     string
	LocalPort   uint32
	RemoteIP    string
	RemotePort  uint32
	Status      string
	IsListen    bool
	Reason      string
	Description string
}

// MetricPayload is the opaque structured host-metric document.
type MetricPayload struct {
	CPU     CPUMetrics
	Memory  MemoryMetrics
	Disk    []DiskMetrics
	Network NetworkMetrics
	System  SystemMetrics
}

// CPUMetrics holds aggregate and per-core CPU utilization.
type CPUMetrics struct {
	Percent    float64
	PerCPU     []float64
	LoadAvg1   float64
	LoadAvg5   float64
	LoadAvg15  float64
}

// MemoryMetrics holds RAM and swap utilization.
type MemoryMetrics struct {
	TotalBytes     uint64
	UsedBytes      uint64
	UsedPercent    float64
	SwapTotalBytes uint64
	SwapUsedBytes  uint64
	SwapPercent    float64
}

// DiskMetrics is per-mountpoint disk usage.
type DiskMetrics struct {
	Mountpoint  string
	TotalBytes  uint64
	UsedBytes   uint64
	FreeBytes   uint64
	UsedPercent float64
}

// NetworkMetrics is aggregate interface I/O plus connection count.
type NetworkMetrics struct {
	BytesSent   uint64
	BytesRecv   uint64
	Connections int
}

// SystemMetrics is host-wide ambient information.
type SystemMetrics struct {
	BootTime time.Time
	Uptime   time.Duration
}

// EvidenceRole classifies an AlertEvidence row.
type EvidenceRole string

const (
	RoleTrigger EvidenceRole = "TRIGGER"
	RoleSupport EvidenceRole = "SUPPORT"
	RoleContext EvidenceRole = "CONTEXT"
)

// EvidenceRef is one item of explicit evidence a rule attaches to the
// alert it produces, before the writer's generic resolver runs.
type EvidenceRef struct {
	EventType string
	EventID   int64
	Role      EvidenceRole
	Sequence  int
}

// EvidenceResolveSpec is the declarative resolver spec a rule may embed in
// an alert's Extra["evidence_resolve"] field. See writer.Resolve.
type EvidenceResolveSpec struct {
	Source     string         `json:"source"`
	Filters    map[string]any `json:"filters,omitempty"`
	TimeRange  *TimeRangeSpec `json:"time_range,omitempty"`
	Limit      int            `json:"limit,omitempty"`
	Order      string         `json:"order,omitempty"`
}

// TimeRangeSpec bounds the resolver's query window.
type TimeRangeSpec struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Alert is the engine's output, persisted by the writer alongside its
// evidence rows.
type Alert struct {
	ID         int64
	ExternalID string
	Timestamp  time.Time
	RuleName   string
	Severity   Severity
	Type       string
	Message    string
	Extra      map[string]any
}

// AlertBundle pairs an Alert with any evidence the producing rule already
// knows about; the writer's resolver adds more SUPPORT rows on top of
// these when the alert's Extra carries an EvidenceResolveSpec.
type AlertBundle struct {
	Alert    Alert
	Evidence []EvidenceRef
}

// Package network implements the network diff collector: it snapshots
// the inet connection table via gopsutil and diffs it against the
// previous tick's snapshot to produce NET_* lifecycle events and
// stateless CONNECTION_* enrichment events (spec.md §4.6).
package network

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	gopsnet "github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/clock"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/snapshot"
)

// Record is one inet-connection snapshot entry, per spec.md §4.6.
type Record struct {
	PID         int32
	ProcessName string
	Protocol    string
	LocalIP     string
	LocalPort   uint32
	RemoteIP    string
	RemotePort  uint32
	Status      string
	IsListen    bool
}

// Snapshot is the persisted prior-snapshot document, keyed by the
// correlation key (pid, laddr_ip, laddr_port, raddr_ip, raddr_port,
// protocol).
type Snapshot map[string]Record

// Options configures the collector's filtering and enrichment rules.
type Options struct {
	IgnoreLocalPorts   map[int]bool
	BlacklistedIPs     map[string]bool
	BlacklistedCIDRs   []*net.IPNet
	UnusualRemotePorts map[int]bool
}

// NewOptions builds Options from the config-level lists, skipping any
// CIDR strings that fail to parse rather than erroring the whole
// collector out of commission for one bad entry.
func NewOptions(ignoreLocalPorts []int, blacklistedIPs, blacklistedCIDRs []string, unusualRemotePorts []int, log *zap.Logger) Options {
	opts := Options{
		IgnoreLocalPorts:   make(map[int]bool, len(ignoreLocalPorts)),
		BlacklistedIPs:     make(map[string]bool, len(blacklistedIPs)),
		UnusualRemotePorts: make(map[int]bool, len(unusualRemotePorts)),
	}
	for _, p := range ignoreLocalPorts {
		opts.IgnoreLocalPorts[p] = true
	}
	for _, ip := range blacklistedIPs {
		opts.BlacklistedIPs[ip] = true
	}
	for _, p := range unusualRemotePorts {
		opts.UnusualRemotePorts[p] = true
	}
	for _, cidr := range blacklistedCIDRs {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			if log != nil {
				log.Warn("skipping unparseable blacklisted CIDR", zap.String("cidr", cidr), zap.Error(err))
			}
			continue
		}
		opts.BlacklistedCIDRs = append(opts.BlacklistedCIDRs, ipnet)
	}
	return opts
}

func (o Options) isBlacklisted(ip string) bool {
	if o.BlacklistedIPs[ip] {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, cidr := range o.BlacklistedCIDRs {
		if cidr.Contains(parsed) {
			return true
		}
	}
	return false
}

// Lister is the gopsutil seam, narrowed for testability.
type Lister interface {
	Connections() ([]gopsnet.ConnectionStat, error)
	IOCounters() ([]gopsnet.IOCountersStat, error)
}

type gopsutilLister struct{}

func (gopsutilLister) Connections() ([]gopsnet.ConnectionStat, error) {
	return gopsnet.Connections("inet")
}

func (gopsutilLister) IOCounters() ([]gopsnet.IOCountersStat, error) {
	return gopsnet.IOCounters(true)
}

// Collector produces network lifecycle/enrichment events by diffing
// successive connection-table snapshots.
type Collector struct {
	lister Lister
	store  *snapshot.Store[Snapshot]
	opts   Options
	clock  clock.Clock
	log    *zap.Logger
}

// NewCollector builds a Collector backed by the real OS network stack.
func NewCollector(store *snapshot.Store[Snapshot], opts Options, clk clock.Clock, log *zap.Logger) *Collector {
	return &Collector{lister: gopsutilLister{}, store: store, opts: opts, clock: clk, log: log}
}

// NewCollectorWithLister builds a Collector over a fake Lister, for tests.
func NewCollectorWithLister(lister Lister, store *snapshot.Store[Snapshot], opts Options, clk clock.Clock, log *zap.Logger) *Collector {
	return &Collector{lister: lister, store: store, opts: opts, clock: clk, log: log}
}

// Collect snapshots the current connection table, diffs it against the
// stored prior snapshot, persists the new snapshot, and returns the
// resulting events, including the per-interface STATE observability
// events.
func (c *Collector) Collect(ctx context.Context) ([]model.Event, error) {
	prior := c.store.Load()

	current, err := c.snapshotCurrent()
	if err != nil {
		return nil, fmt.Errorf("snapshotting connections: %w", err)
	}

	now := c.clock.Now()
	events := diff(prior, current, now, c.opts)
	events = append(events, c.interfaceStateEvents(now)...)

	if err := c.store.Save(current); err != nil {
		return events, fmt.Errorf("persisting network snapshot: %w", err)
	}

	return events, nil
}

func (c *Collector) snapshotCurrent() (Snapshot, error) {
	conns, err := c.lister.Connections()
	if err != nil {
		return nil, err
	}

	current := make(Snapshot, len(conns))
	for _, conn := range conns {
		if strings.EqualFold(conn.Status, "TIME_WAIT") {
			continue
		}
		rec := recordFromConnection(conn)
		if c.opts.IgnoreLocalPorts[int(rec.LocalPort)] {
			continue
		}
		current[key(rec)] = rec
	}

	return current, nil
}

func recordFromConnection(conn gopsnet.ConnectionStat) Record {
	protocol := protocolName(conn.Type)
	isListen := strings.EqualFold(conn.Status, "LISTEN") || (conn.Raddr.IP == "" && conn.Raddr.Port == 0)

	return Record{
		PID:         conn.Pid,
		Protocol:    protocol,
		LocalIP:     conn.Laddr.IP,
		LocalPort:   conn.Laddr.Port,
		RemoteIP:    conn.Raddr.IP,
		RemotePort:  conn.Raddr.Port,
		Status:      conn.Status,
		IsListen:    isListen,
	}
}

func protocolName(sockType uint32) string {
	switch sockType {
	case 1: // SOCK_STREAM
		return "tcp"
	case 2: // SOCK_DGRAM
		return "udp"
	default:
		return "unknown"
	}
}

func key(r Record) string {
	return strings.Join([]string{
		strconv.Itoa(int(r.PID)),
		r.LocalIP,
		strconv.Itoa(int(r.LocalPort)),
		r.RemoteIP,
		strconv.Itoa(int(r.RemotePort)),
		r.Protocol,
	}, "\x00")
}

func (c *Collector) interfaceStateEvents(now time.Time) []model.Event {
	counters, err := c.lister.IOCounters()
	if err != nil {
		c.log.Debug("skipping interface stats this tick", zap.Error(err))
		return nil
	}

	events := make([]model.Event, 0, len(counters))
	for _, ctr := range counters {
		events = append(events, model.Event{
			Type:      "NET_INTERFACE_STATS",
			Timestamp: now,
			Network: &model.NetworkPayload{
				EventType:   "NET_INTERFACE_STATS",
				ProcessName: ctr.Name,
				Description: fmt.Sprintf("sent=%d recv=%d", ctr.BytesSent, ctr.BytesRecv),
			},
		})
	}
	return events
}

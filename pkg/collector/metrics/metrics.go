// Package metrics implements the periodic host-metric snapshot
// collector: a single METRIC_SNAPSHOT event per tick carrying CPU,
// memory, disk, network and system sub-documents, sourced entirely from
// gopsutil/v3 (spec.md §3 "MetricSnapshot").
package metrics

import (
	"context"
	"time"

	gopscpu "github.com/shirou/gopsutil/v3/cpu"
	gopsdisk "github.com/shirou/gopsutil/v3/disk"
	gopshost "github.com/shirou/gopsutil/v3/host"
	gopsload "github.com/shirou/gopsutil/v3/load"
	gopsmem "github.com/shirou/gopsutil/v3/mem"
	gopsnet "github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/clock"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
)

// Source is the gopsutil seam, narrowed for testability.
type Source interface {
	CPUPercent() (float64, []float64, error)
	LoadAvg() (load1, load5, load15 float64, err error)
	VirtualMemory() (total, used uint64, usedPercent float64, err error)
	SwapMemory() (total, used uint64, usedPercent float64, err error)
	DiskUsage(mountpoints []string) ([]model.DiskMetrics, error)
	NetIOCounters() (sent, recv uint64, connections int, err error)
	BootTime() (time.Time, error)
}

type gopsutilSource struct{}

func (gopsutilSource) CPUPercent() (float64, []float64, error) {
	overall, err := gopscpu.Percent(0, false)
	if err != nil {
		return 0, nil, err
	}
	perCPU, err := gopscpu.Percent(0, true)
	if err != nil {
		return 0, nil, err
	}
	var total float64
	if len(overall) > 0 {
		total = overall[0]
	}
	return total, perCPU, nil
}

func (gopsutilSource) LoadAvg() (float64, float64, float64, error) {
	avg, err := gopsload.Avg()
	if err != nil {
		return 0, 0, 0, err
	}
	return avg.Load1, avg.Load5, avg.Load15, nil
}

func (gopsutilSource) VirtualMemory() (uint64, uint64, float64, error) {
	vm, err := gopsmem.VirtualMemory()
	if err != nil {
		return 0, 0, 0, err
	}
	return vm.Total, vm.Used, vm.UsedPercent, nil
}

func (gopsutilSource) SwapMemory() (uint64, uint64, float64, error) {
	sw, err := gopsmem.SwapMemory()
	if err != nil {
		return 0, 0, 0, err
	}
	return sw.Total, sw.Used, sw.UsedPercent, nil
}

func (gopsutilSource) DiskUsage(mountpoints []string) ([]model.DiskMetrics, error) {
	out := make([]model.DiskMetrics, 0, len(mountpoints))
	for _, mp := range mountpoints {
		usage, err := gopsdisk.Usage(mp)
		if err != nil {
			continue
		}
		out = append(out, model.DiskMetrics{
			Mountpoint:  mp,
			TotalBytes:  usage.Total,
			UsedBytes:   usage.Used,
			FreeBytes:   usage.Free,
			UsedPercent: usage.UsedPercent,
		})
	}
	return out, nil
}

func (gopsutilSource) NetIOCounters() (uint64, uint64, int, error) {
	counters, err := gopsnet.IOCounters(false)
	if err != nil {
		return 0, 0, 0, err
	}
	var sent, recv uint64
	if len(counters) > 0 {
		sent, recv = counters[0].BytesSent, counters[0].BytesRecv
	}
	conns, err := gopsnet.Connections("inet")
	if err != nil {
		return sent, recv, 0, nil
	}
	return sent, recv, len(conns), nil
}

func (gopsutilSource) BootTime() (time.Time, error) {
	secs, err := gopshost.BootTime()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(secs), 0), nil
}

// Collector produces one METRIC_SNAPSHOT event per tick.
type Collector struct {
	source      Source
	mountpoints []string
	clock       clock.Clock
	log         *zap.Logger
}

// NewCollector builds a Collector backed by the real host.
func NewCollector(mountpoints []string, clk clock.Clock, log *zap.Logger) *Collector {
	return &Collector{source: gopsutilSource{}, mountpoints: mountpoints, clock: clk, log: log}
}

// NewCollectorWithSource builds a Collector over a fake Source, for tests.
func NewCollectorWithSource(source Source, mountpoints []string, clk clock.Clock, log *zap.Logger) *Collector {
	return &Collector{source: source, mountpoints: mountpoints, clock: clk, log: log}
}

// Collect samples every metric sub-document and returns a single
// METRIC_SNAPSHOT event.
func (c *Collector) Collect(ctx context.Context) ([]model.Event, error) {
	cpuPercent, perCPU, err := c.source.CPUPercent()
	if err != nil {
		c.log.Warn("cpu sampling failed", zap.Error(err))
	}
	load1, load5, load15, err := c.source.LoadAvg()
	if err != nil {
		c.log.Debug("load average unavailable", zap.Error(err))
	}
	memTotal, memUsed, memPercent, err := c.source.VirtualMemory()
	if err != nil {
		c.log.Warn("memory sampling failed", zap.Error(err))
	}
	swapTotal, swapUsed, swapPercent, _ := c.source.SwapMemory()
	disks, _ := c.source.DiskUsage(c.mountpoints)
	sent, recv, conns, _ := c.source.NetIOCounters()
	boot, _ := c.source.BootTime()

	now := c.clock.Now()
	payload := &model.MetricPayload{
		CPU: model.CPUMetrics{
			Percent:   cpuPercent,
			PerCPU:    perCPU,
			LoadAvg1:  load1,
			LoadAvg5:  load5,
			LoadAvg15: load15,
		},
		Memory: model.MemoryMetrics{
			TotalBytes:     memTotal,
			UsedBytes:      memUsed,
			UsedPercent:    memPercent,
			SwapTotalBytes: swapTotal,
			SwapUsedBytes:  swapUsed,
			SwapPercent:    swapPercent,
		},
		Disk: disks,
		Network: model.NetworkMetrics{
			BytesSent:   sent,
			BytesRecv:   recv,
			Connections: conns,
		},
		System: model.SystemMetrics{
			BootTime: boot,
			Uptime:   now.Sub(boot),
		},
	}

	return []model.Event{{Type: "METRIC_SNAPSHOT", Timestamp: now, Metric: payload}}, nil
}

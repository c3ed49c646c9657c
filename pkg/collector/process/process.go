// Package process implements the process diff collector: it snapshots
// the running process table via gopsutil and diffs it against the
// previous tick's snapshot to produce PROCESS_* lifecycle and mutation
// events (spec.md §4.5).
package process

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	gopsprocess "github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/clock"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/snapshot"
)

// Record is the snapshot shape persisted per pid, per spec.md §4.5.
type Record struct {
	PID        int32
	PPID       int32
	Name       string
	ParentName string
	Exe        string
	Cmdline    string
	Username   string
	Status     string
	CreateTime time.Time
	CPUPercent float64
	MemoryRSS  uint64
	MemoryVMS  uint64
	ExeDeleted bool
	ExeHash    string
}

// Snapshot is the persisted prior-snapshot document: pid (as string) to
// Record.
type Snapshot map[string]Record

// Options configures optional, costlier checks.
type Options struct {
	HashExecutables bool
	HashMaxBytes    int64
}

// Lister is the gopsutil seam, narrowed for testability.
type Lister interface {
	Processes() ([]ProcessInfo, error)
}

// ProcessInfo is the subset of gopsutil's *process.Process this collector
// reads, so tests can fake it without touching the real process table.
type ProcessInfo interface {
	Pid() int32
	PpidWithContext(ctx context.Context) (int32, error)
	NameWithContext(ctx context.Context) (string, error)
	ExeWithContext(ctx context.Context) (string, error)
	CmdlineWithContext(ctx context.Context) (string, error)
	UsernameWithContext(ctx context.Context) (string, error)
	StatusWithContext(ctx context.Context) ([]string, error)
	CreateTimeWithContext(ctx context.Context) (int64, error)
	CPUPercentWithContext(ctx context.Context) (float64, error)
	MemoryInfoWithContext(ctx context.Context) (*gopsprocess.MemoryInfoStat, error)
}

// gopsutilLister adapts gopsutil/v3/process's package-level Processes().
type gopsutilLister struct{}

func (gopsutilLister) Processes() ([]ProcessInfo, error) {
	procs, err := gopsprocess.Processes()
	if err != nil {
		return nil, err
	}
	out := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		out = append(out, p)
	}
	return out, nil
}

// Collector produces process lifecycle/mutation events by diffing
// successive snapshots.
type Collector struct {
	lister  Lister
	store   *snapshot.Store[Snapshot]
	opts    Options
	clock   clock.Clock
	log     *zap.Logger
}

// NewCollector builds a Collector backed by the real OS process table.
func NewCollector(store *snapshot.Store[Snapshot], opts Options, clk clock.Clock, log *zap.Logger) *Collector {
	return &Collector{lister: gopsutilLister{}, store: store, opts: opts, clock: clk, log: log}
}

// NewCollectorWithLister builds a Collector over a fake Lister, for tests.
func NewCollectorWithLister(lister Lister, store *snapshot.Store[Snapshot], opts Options, clk clock.Clock, log *zap.Logger) *Collector {
	return &Collector{lister: lister, store: store, opts: opts, clock: clk, log: log}
}

// Collect snapshots the current process table, diffs it against the
// stored prior snapshot, persists the new snapshot, and returns the
// resulting events.
func (c *Collector) Collect(ctx context.Context) ([]model.Event, error) {
	prior := c.store.Load()
	current, err := c.snapshotCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshotting processes: %w", err)
	}

	events := diff(prior, current, c.clock.Now())

	if err := c.store.Save(current); err != nil {
		return events, fmt.Errorf("persisting process snapshot: %w", err)
	}

	return events, nil
}

func (c *Collector) snapshotCurrent(ctx context.Context) (Snapshot, error) {
	procs, err := c.lister.Processes()
	if err != nil {
		return nil, err
	}

	current := make(Snapshot, len(procs))
	for _, p := range procs {
		rec, err := c.buildRecord(ctx, p)
		if err != nil {
			c.log.Debug("skipping process, likely exited mid-scan", zap.Int32("pid", p.Pid()), zap.Error(err))
			continue
		}
		current[strconv.Itoa(int(rec.PID))] = rec
	}

	for pidKey, rec := range current {
		if parent, ok := current[strconv.Itoa(int(rec.PPID))]; ok {
			rec.ParentName = parent.Name
			current[pidKey] = rec
		}
	}

	return current, nil
}

func (c *Collector) buildRecord(ctx context.Context, p ProcessInfo) (Record, error) {
	name, _ := p.NameWithContext(ctx)
	exe, _ := p.ExeWithContext(ctx)
	cmdline, _ := p.CmdlineWithContext(ctx)
	username, _ := p.UsernameWithContext(ctx)
	ppid, _ := p.PpidWithContext(ctx)
	createTimeMs, _ := p.CreateTimeWithContext(ctx)
	cpuPercent, _ := p.CPUPercentWithContext(ctx)

	statuses, statusErr := p.StatusWithContext(ctx)
	status := ""
	if statusErr == nil && len(statuses) > 0 {
		status = statuses[0]
	}

	var rss, vms uint64
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		rss, vms = mem.RSS, mem.VMS
	}

	exeDeleted := exe != "" && strings.Contains(exe, "(deleted)")
	exe = strings.TrimSuffix(exe, " (deleted)")

	rec := Record{
		PID:        p.Pid(),
		PPID:       ppid,
		Name:       name,
		Exe:        exe,
		Cmdline:    cmdline,
		Username:   username,
		Status:     normalizeStatus(status),
		CreateTime: time.UnixMilli(createTimeMs),
		CPUPercent: cpuPercent,
		MemoryRSS:  rss,
		MemoryVMS:  vms,
		ExeDeleted: exeDeleted,
	}

	if c.opts.HashExecutables && rec.Exe != "" && !rec.ExeDeleted {
		if hash, err := hashExecutable(rec.Exe, c.opts.HashMaxBytes); err == nil {
			rec.ExeHash = hash
		}
	}

	return rec, nil
}

func normalizeStatus(raw string) string {
	switch strings.ToUpper(raw) {
	case "Z", "ZOMBIE":
		return "ZOMBIE"
	default:
		return strings.ToUpper(raw)
	}
}

func hashExecutable(path string, maxBytes int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.CopyN(h, f, maxBytes); err != nil && err != io.EOF {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

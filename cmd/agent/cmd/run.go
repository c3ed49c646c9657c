package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/clock"
	logcollector "github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/collector/log"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/collector/metrics"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/collector/network"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/collector/process"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/config"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/dispatcher"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/logging"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/model"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/offset"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/parser"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/rules"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/scheduler"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/snapshot"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/store"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/telemetry"
	"github.com/AEP20/host-security-monitoring-dashboard-linux/pkg/writer"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the agent in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfgFile)
		},
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath, nil)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := logging.New(logging.Config{
		FilePath: cfg.LogFile,
		Level:    cfg.LogLevel,
	}, "agent")
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()

	fs := afero.NewOsFs()
	clk := clock.Real{}

	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	w := writer.New(db, cfg.Writer.QueueCapacity, cfg.Writer.MaxRetries, cfg.Writer.RetryBackoff, cfg.Writer.DrainTimeout, log.Named("writer"))

	metricsReg, reg := telemetry.NewMetrics()

	engine, err := buildEngine(cfg, log.Named("rules"))
	if err != nil {
		return fmt.Errorf("building rule engine: %w", err)
	}

	disp := dispatcher.New(w, engine, clk, log.Named("dispatcher"))

	workers, err := buildWorkers(cfg, fs, clk, log)
	if err != nil {
		return fmt.Errorf("building collectors: %w", err)
	}

	dispatch := func(ev model.Event) {
		disp.Dispatch(ev)
		metricsReg.EventsTotal.WithLabelValues(ev.Type).Inc()
		if ev.Alert != nil {
			metricsReg.AlertsTotal.WithLabelValues(ev.Alert.Alert.RuleName).Inc()
		}
	}

	sched := scheduler.New(workers, dispatch, clk, log.Named("scheduler"))

	var telemetryServer *telemetry.Server
	if cfg.Telemetry.Enabled {
		telemetryServer = telemetry.NewServer(cfg.Telemetry.Addr, reg, sched, workerIntervals(workers), log.Named("telemetry"))
	}

	log.Info("agent starting",
		zap.String("db_path", cfg.DBPath),
		zap.String("state_dir", cfg.StateDir),
		zap.Bool("telemetry_enabled", cfg.Telemetry.Enabled))

	go w.Run(ctx)
	sched.Start(ctx)

	if telemetryServer != nil {
		go func() {
			if err := telemetryServer.Serve(ctx); err != nil {
				log.Warn("telemetry server stopped with an error", zap.Error(err))
			}
		}()
	}
	stopQueueGauge := reportQueueDepth(ctx, w, metricsReg)
	defer stopQueueGauge()
	stopHeartbeatGauge := reportHeartbeatAge(ctx, sched, clk, workerIntervals(workers), metricsReg)
	defer stopHeartbeatGauge()

	<-ctx.Done()
	log.Info("shutdown signal received, draining")

	sched.Stop()
	stop() // release signal.NotifyContext so a second signal force-exits
	<-w.Stopped()

	log.Info("agent stopped")
	return nil
}

// reportQueueDepth periodically samples the writer's queue into the
// telemetry gauge; it stops when the returned function is called or ctx
// is cancelled.
func reportQueueDepth(ctx context.Context, w *writer.Writer, m *telemetry.Metrics) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.QueueDepth.Set(float64(w.QueueDepth()))
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

// reportHeartbeatAge periodically samples every worker's last heartbeat
// age into the telemetry gauge, feeding the same heartbeat data that
// backs the /healthz endpoint's liveness check; it stops when the
// returned function is called or ctx is cancelled.
func reportHeartbeatAge(ctx context.Context, sched *scheduler.Scheduler, clk clock.Clock, intervals map[string]time.Duration, m *telemetry.Metrics) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for name := range intervals {
					if ts, ok := sched.Heartbeat(name); ok {
						m.HeartbeatAge.WithLabelValues(name).Set(clk.Now().Sub(ts).Seconds())
					}
				}
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

func workerIntervals(workers []scheduler.Worker) map[string]time.Duration {
	out := make(map[string]time.Duration, len(workers))
	for _, w := range workers {
		out[w.Name] = w.Interval
	}
	return out
}

func buildEngine(cfg config.Config, log *zap.Logger) (*rules.Engine, error) {
	stateless := []rules.StatelessRule{
		rules.SuspiciousProcessRule{},
		rules.SuspiciousShellRule{},
		rules.SensitiveFileAccessRule{},
		rules.LogClearingRule{},
		rules.UserCreationRule{},
		rules.CronPersistenceRule{},
		rules.SuspiciousRemoteRule{},
	}
	threshold := []rules.ThresholdRule{
		rules.NewAuthBruteforceRule(cfg.Thresholds.SSHBruteforceCount, cfg.Thresholds.SSHBruteforceWindow),
		rules.NewResourceUsageRule(cfg.Thresholds.ResourceUsageCount, cfg.Thresholds.ResourceUsageWindow, cfg.Thresholds.ResourceCPUPercent, cfg.Thresholds.ResourceRAMPercent),
		rules.NewOutboundPortScanRule(cfg.Thresholds.PortScanDistinctPorts, cfg.Thresholds.PortScanWindow),
	}
	return rules.NewEngine(stateless, threshold, rules.NewContext(), log), nil
}

func buildWorkers(cfg config.Config, fs afero.Fs, clk clock.Clock, log *zap.Logger) ([]scheduler.Worker, error) {
	processStore, err := snapshot.NewStore[process.Snapshot](fs, filepath.Join(cfg.StateDir, "process_snapshot.json"), log)
	if err != nil {
		return nil, err
	}
	processCollector := process.NewCollector(processStore, process.Options{
		HashExecutables: cfg.Process.HashExecutables,
		HashMaxBytes:    cfg.Process.HashMaxBytes,
	}, clk, log.Named("collector.process"))

	networkStore, err := snapshot.NewStore[network.Snapshot](fs, filepath.Join(cfg.StateDir, "network_snapshot.json"), log)
	if err != nil {
		return nil, err
	}
	networkOpts := network.NewOptions(cfg.Network.IgnoreLocalPorts, cfg.Network.BlacklistedIPs, cfg.Network.BlacklistedCIDRs, cfg.Network.UnusualRemotePorts, log.Named("collector.network"))
	networkCollector := network.NewCollector(networkStore, networkOpts, clk, log.Named("collector.network"))

	metricsCollector := metrics.NewCollector(cfg.Metrics.Mountpoints, clk, log.Named("collector.metrics"))

	offsets, err := offset.NewManager(fs, filepath.Join(cfg.StateDir, "log_offsets.json"), log)
	if err != nil {
		return nil, err
	}
	sources := make([]logcollector.Source, 0, len(cfg.LogSources))
	for _, s := range cfg.LogSources {
		sources = append(sources, logcollector.Source{Tag: model.SourceTag(s.Tag), Path: s.Path})
	}
	tail := logcollector.NewCollector(fs, offsets, sources, log.Named("collector.log"))
	logEvents := logcollector.NewEventCollector(tail, parser.NewDispatcher(), clk, log.Named("collector.log"))

	return []scheduler.Worker{
		{Name: "process", Collector: processCollector, Interval: cfg.Intervals.Process},
		{Name: "network", Collector: networkCollector, Interval: cfg.Intervals.Network},
		{Name: "metrics", Collector: metricsCollector, Interval: cfg.Intervals.Metrics},
		{Name: "log", Collector: logEvents, Interval: cfg.Intervals.Log},
	}, nil
}

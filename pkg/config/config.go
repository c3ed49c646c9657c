// Package config loads the agent's YAML configuration via viper, with
// HIDS_-prefixed environment variable overrides and fsnotify-backed hot
// reload, the same layering the teacher repo's own config loader uses.
package config

import (
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Intervals holds the per-collector tick periods from spec.md §4.1.
type Intervals struct {
	Metrics time.Duration `mapstructure:"metrics"`
	Process time.Duration `mapstructure:"process"`
	Network time.Duration `mapstructure:"network"`
	Log     time.Duration `mapstructure:"log"`
	Health  time.Duration `mapstructure:"health"`
}

// LogSource names one tailed file and the source tag its lines carry.
type LogSource struct {
	Tag  string `mapstructure:"tag"`
	Path string `mapstructure:"path"`
}

// Thresholds carries the tunables of the canonical threshold rules so
// they can be adjusted without a code change.
type Thresholds struct {
	SSHBruteforceCount    int           `mapstructure:"ssh_bruteforce_count"`
	SSHBruteforceWindow   time.Duration `mapstructure:"ssh_bruteforce_window"`
	ResourceUsageCount    int           `mapstructure:"resource_usage_count"`
	ResourceUsageWindow   time.Duration `mapstructure:"resource_usage_window"`
	ResourceCPUPercent    float64       `mapstructure:"resource_cpu_percent"`
	ResourceRAMPercent    float64       `mapstructure:"resource_ram_percent"`
	PortScanDistinctPorts int           `mapstructure:"port_scan_distinct_ports"`
	PortScanWindow        time.Duration `mapstructure:"port_scan_window"`
}

// Network holds the network collector's filtering and enrichment config.
type Network struct {
	IgnoreLocalPorts   []int    `mapstructure:"ignore_local_ports"`
	BlacklistedIPs     []string `mapstructure:"blacklisted_ips"`
	BlacklistedCIDRs   []string `mapstructure:"blacklisted_cidrs"`
	UnusualRemotePorts []int    `mapstructure:"unusual_remote_ports"`
}

// Process holds the process collector's optional extras.
type Process struct {
	HashExecutables bool  `mapstructure:"hash_executables"`
	HashMaxBytes    int64 `mapstructure:"hash_max_bytes"`
}

// Telemetry controls the internal self-observability endpoint (distinct
// from the out-of-scope external read API).
type Telemetry struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Writer controls the persistence queue and retry policy.
type Writer struct {
	QueueCapacity int           `mapstructure:"queue_capacity"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
	DrainTimeout  time.Duration `mapstructure:"drain_timeout"`
}

// Metrics controls the resource-metrics collector's extras.
type Metrics struct {
	Mountpoints []string `mapstructure:"mountpoints"`
}

// Config is the root configuration document.
type Config struct {
	StateDir   string      `mapstructure:"state_dir"`
	DBPath     string      `mapstructure:"db_path"`
	LogLevel   string      `mapstructure:"log_level"`
	LogFile    string      `mapstructure:"log_file"`
	Intervals  Intervals   `mapstructure:"intervals"`
	LogSources []LogSource `mapstructure:"log_sources"`
	Thresholds Thresholds  `mapstructure:"thresholds"`
	Network    Network     `mapstructure:"network"`
	Process    Process     `mapstructure:"process"`
	Metrics    Metrics     `mapstructure:"metrics"`
	Telemetry  Telemetry   `mapstructure:"telemetry"`
	Writer     Writer      `mapstructure:"writer"`
}

// Default returns the built-in defaults named throughout spec.md.
func Default() Config {
	return Config{
		StateDir: "/var/lib/hids",
		DBPath:   "/var/lib/hids/hids.db",
		LogLevel: "info",
		LogFile:  "/var/log/hids/agent.log",
		Intervals: Intervals{
			Metrics: 60 * time.Second,
			Process: 15 * time.Second,
			Network: 15 * time.Second,
			Log:     3 * time.Second,
			Health:  2 * time.Second,
		},
		LogSources: []LogSource{
			{Tag: "auth", Path: "/var/log/auth.log"},
			{Tag: "syslog", Path: "/var/log/syslog"},
			{Tag: "kernel", Path: "/var/log/kern.log"},
			{Tag: "dpkg", Path: "/var/log/dpkg.log"},
			{Tag: "ufw", Path: "/var/log/ufw.log"},
		},
		Thresholds: Thresholds{
			SSHBruteforceCount:    5,
			SSHBruteforceWindow:   60 * time.Second,
			ResourceUsageCount:    3,
			ResourceUsageWindow:   180 * time.Second,
			ResourceCPUPercent:    70,
			ResourceRAMPercent:    80,
			PortScanDistinctPorts: 8,
			PortScanWindow:        30 * time.Second,
		},
		Network: Network{
			IgnoreLocalPorts:   []int{},
			UnusualRemotePorts: []int{23, 6667},
		},
		Process: Process{
			HashExecutables: false,
			HashMaxBytes:    4 << 20,
		},
		Metrics: Metrics{
			Mountpoints: []string{"/"},
		},
		Telemetry: Telemetry{
			Enabled: true,
			Addr:    "127.0.0.1:9977",
		},
		Writer: Writer{
			QueueCapacity: 10000,
			MaxRetries:    3,
			RetryBackoff:  100 * time.Millisecond,
			DrainTimeout:  5 * time.Second,
		},
	}
}

// Load reads path (if non-empty) layered over Default(), applying
// HIDS_-prefixed environment overrides. onChange, if non-nil, is invoked
// with the freshly reloaded Config whenever the file changes on disk.
func Load(path string, onChange func(Config)) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HIDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	setDefaults(v, def)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "reading config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decoding config")
	}

	if path != "" && onChange != nil {
		v.OnConfigChange(func(fsnotify.Event) {
			var reloaded Config
			if err := v.Unmarshal(&reloaded); err == nil {
				onChange(reloaded)
			}
		})
		v.WatchConfig()
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, def Config) {
	v.SetDefault("state_dir", def.StateDir)
	v.SetDefault("db_path", def.DBPath)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_file", def.LogFile)
	v.SetDefault("intervals.metrics", def.Intervals.Metrics)
	v.SetDefault("intervals.process", def.Intervals.Process)
	v.SetDefault("intervals.network", def.Intervals.Network)
	v.SetDefault("intervals.log", def.Intervals.Log)
	v.SetDefault("intervals.health", def.Intervals.Health)
	v.SetDefault("log_sources", def.LogSources)
	v.SetDefault("thresholds.ssh_bruteforce_count", def.Thresholds.SSHBruteforceCount)
	v.SetDefault("thresholds.ssh_bruteforce_window", def.Thresholds.SSHBruteforceWindow)
	v.SetDefault("thresholds.resource_usage_count", def.Thresholds.ResourceUsageCount)
	v.SetDefault("thresholds.resource_usage_window", def.Thresholds.ResourceUsageWindow)
	v.SetDefault("thresholds.resource_cpu_percent", def.Thresholds.ResourceCPUPercent)
	v.SetDefault("thresholds.resource_ram_percent", def.Thresholds.ResourceRAMPercent)
	v.SetDefault("thresholds.port_scan_distinct_ports", def.Thresholds.PortScanDistinctPorts)
	v.SetDefault("thresholds.port_scan_window", def.Thresholds.PortScanWindow)
	v.SetDefault("network.ignore_local_ports", def.Network.IgnoreLocalPorts)
	v.SetDefault("network.blacklisted_ips", def.Network.BlacklistedIPs)
	v.SetDefault("network.blacklisted_cidrs", def.Network.BlacklistedCIDRs)
	v.SetDefault("network.unusual_remote_ports", def.Network.UnusualRemotePorts)
	v.SetDefault("process.hash_executables", def.Process.HashExecutables)
	v.SetDefault("process.hash_max_bytes", def.Process.HashMaxBytes)
	v.SetDefault("metrics.mountpoints", def.Metrics.Mountpoints)
	v.SetDefault("telemetry.enabled", def.Telemetry.Enabled)
	v.SetDefault("telemetry.addr", def.Telemetry.Addr)
	v.SetDefault("writer.queue_capacity", def.Writer.QueueCapacity)
	v.SetDefault("writer.max_retries", def.Writer.MaxRetries)
	v.SetDefault("writer.retry_backoff", def.Writer.RetryBackoff)
	v.SetDefault("writer.drain_timeout", def.Writer.DrainTimeout)
}

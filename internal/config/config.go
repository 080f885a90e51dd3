package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/foresight/internal/adaptive"
)

// Config represents the complete foresight configuration
type Config struct {
	Adaptive AdaptiveConfig `mapstructure:"adaptive"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	// Pools maps worker pool names to their initial size. Viper lowercases
	// map keys, so pool names are effectively case-insensitive.
	Pools    map[string]int `mapstructure:"pools"`
	Runtime  RuntimeConfig  `mapstructure:"runtime"`
	Policies PoliciesConfig `mapstructure:"policies"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// AdaptiveConfig controls the adaptation loop
type AdaptiveConfig struct {
	// PredictionIntervalMs is the time between scheduled cycles (default: 10000)
	PredictionIntervalMs int `mapstructure:"prediction_interval_ms"`
	// AdaptationThreshold is the minimum prediction confidence that triggers planning (default: 0.7)
	AdaptationThreshold float64 `mapstructure:"adaptation_threshold"`
	// MaxResourceIncrease caps a single scaling step as a growth fraction (default: 0.5)
	MaxResourceIncrease float64 `mapstructure:"max_resource_increase"`
	// ConservativeMode halves MaxResourceIncrease
	ConservativeMode bool `mapstructure:"conservative_mode"`
	// EnableProactiveScaling runs the predictive pass (default: true)
	EnableProactiveScaling bool `mapstructure:"enable_proactive_scaling"`
	// CostOptimization drops candidates whose cost exceeds their benefit
	CostOptimization bool `mapstructure:"cost_optimization"`
	// HistoryWindowMs is how much history feeds each prediction (default: 300000)
	HistoryWindowMs int `mapstructure:"history_window_ms"`
	// MaxEvents caps the scaling event audit log (default: 1000)
	MaxEvents int `mapstructure:"max_events"`
	// AuditRejections records admission rejections as failed events (default: false)
	AuditRejections bool `mapstructure:"audit_rejections"`
}

// LimitsConfig bounds what admission lets through
type LimitsConfig struct {
	// MaxThreads caps each pool; pools without an entry are unbounded
	MaxThreads map[string]int `mapstructure:"max_threads"`
	// MaxMemoryMB caps resident memory plus preallocation, 0 = no limit
	MaxMemoryMB int `mapstructure:"max_memory_mb"`
	// MaxCPUUtilization is the cpu-overload-prevention threshold (default: 0.9)
	MaxCPUUtilization float64 `mapstructure:"max_cpu_utilization"`
}

// MonitorConfig controls metric sampling
type MonitorConfig struct {
	// MaxSamples is the history ring capacity (default: 360)
	MaxSamples int `mapstructure:"max_samples"`
	// LinkCapacityMbps is the bandwidth that counts as full network utilization (default: 1000)
	LinkCapacityMbps float64 `mapstructure:"link_capacity_mbps"`
}

// RuntimeConfig controls the built-in worker pool runtime
type RuntimeConfig struct {
	// QueueCapacity is the per-pool submission buffer (default: 1024)
	QueueCapacity int `mapstructure:"queue_capacity"`
	// RateLimit is the admitted submissions per second before throttling (default: 10000)
	RateLimit float64 `mapstructure:"rate_limit"`
	// Burst is the rate limiter burst size (default: 1000)
	Burst int `mapstructure:"burst"`
	// RecoveryPeriodMs is the unthrottled time after which the rate limit
	// halves its distance to rate_limit, 0 = never recover (default: 120000)
	RecoveryPeriodMs int `mapstructure:"recovery_period_ms"`
	// BallastTTLMs is how long a memory reservation is held, 0 = until the
	// next forced GC (default: 900000)
	BallastTTLMs int `mapstructure:"ballast_ttl_ms"`
}

// PoliciesConfig controls declarative policy loading
type PoliciesConfig struct {
	// File is a YAML policy file applied at startup, "" = built-in policies only
	File string `mapstructure:"file"`
	// Watch reloads File when it changes
	Watch bool `mapstructure:"watch"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Enabled writes logs to Dir; when false only warnings reach stderr
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum level: "debug", "info", "warn" or "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir holds foresight.log, "" = ConfigDir()/logs
	Dir string `mapstructure:"dir"`
	// MaxSizeMB rotates the log file at this size (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated files kept (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated files
	Compress bool `mapstructure:"compress"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Enabled serves metrics while running (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Address is the listen address (default: ":9090")
	Address string `mapstructure:"address"`
	// Path is the HTTP path (default: "/metrics")
	Path string `mapstructure:"path"`
}

// TracingConfig controls OpenTelemetry tracing of adaptation cycles
type TracingConfig struct {
	// Enabled installs a tracer provider while running
	Enabled bool `mapstructure:"enabled"`
	// Exporter is "stdout" or "otlp" (default: "stdout")
	Exporter string `mapstructure:"exporter"`
	// Endpoint is the OTLP gRPC receiver (default: "localhost:4317")
	Endpoint string `mapstructure:"endpoint"`
	// Insecure disables TLS for the OTLP connection (default: true)
	Insecure bool `mapstructure:"insecure"`
	// SampleRatio is the fraction of traces kept (default: 1.0)
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Adaptive: AdaptiveConfig{
			PredictionIntervalMs:   10000,
			AdaptationThreshold:    adaptive.DefaultAdaptationThreshold,
			MaxResourceIncrease:    adaptive.DefaultMaxResourceIncrease,
			ConservativeMode:       false,
			EnableProactiveScaling: true,
			CostOptimization:       false,
			HistoryWindowMs:        300000, // 5 minutes
			MaxEvents:              adaptive.DefaultMaxEvents,
			AuditRejections:        false,
		},
		Limits: LimitsConfig{
			MaxThreads:        map[string]int{},
			MaxMemoryMB:       0, // No limit by default
			MaxCPUUtilization: adaptive.DefaultMaxCPUUtilization,
		},
		Monitor: MonitorConfig{
			MaxSamples:       360, // 1h at the default cadence
			LinkCapacityMbps: 1000,
		},
		Pools: map[string]int{
			"default": 4,
		},
		Runtime: RuntimeConfig{
			QueueCapacity:    1024,
			RateLimit:        10000,
			Burst:            1000,
			RecoveryPeriodMs: 120000, // 2 minutes
			BallastTTLMs:     900000, // 15 minutes
		},
		Policies: PoliciesConfig{
			File:  "",
			Watch: false,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Address: ":9090",
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    "stdout",
			Endpoint:    "localhost:4317",
			Insecure:    true,
			SampleRatio: 1.0,
		},
	}
}

// PredictionInterval returns the cycle interval as a time.Duration
func (c *AdaptiveConfig) PredictionInterval() time.Duration {
	return time.Duration(c.PredictionIntervalMs) * time.Millisecond
}

// HistoryWindow returns the prediction history window as a time.Duration
func (c *AdaptiveConfig) HistoryWindow() time.Duration {
	return time.Duration(c.HistoryWindowMs) * time.Millisecond
}

// AdaptiveConfig converts the adaptive and limits sections into the
// manager's configuration.
func (c *Config) AdaptiveConfig() adaptive.Config {
	maxThreads := make(map[string]int, len(c.Limits.MaxThreads))
	for pool, n := range c.Limits.MaxThreads {
		maxThreads[pool] = n
	}
	return adaptive.Config{
		PredictionInterval:     c.Adaptive.PredictionInterval(),
		AdaptationThreshold:    c.Adaptive.AdaptationThreshold,
		MaxResourceIncrease:    c.Adaptive.MaxResourceIncrease,
		ConservativeMode:       c.Adaptive.ConservativeMode,
		EnableProactiveScaling: c.Adaptive.EnableProactiveScaling,
		Limits: adaptive.Limits{
			MaxThreads:        maxThreads,
			MaxMemoryMB:       c.Limits.MaxMemoryMB,
			MaxCPUUtilization: c.Limits.MaxCPUUtilization,
		},
		CostOptimization: c.Adaptive.CostOptimization,
		HistoryWindow:    c.Adaptive.HistoryWindow(),
		MaxEvents:        c.Adaptive.MaxEvents,
	}
}

// RecoveryPeriod returns the throttle recovery period as a time.Duration
func (c *RuntimeConfig) RecoveryPeriod() time.Duration {
	return time.Duration(c.RecoveryPeriodMs) * time.Millisecond
}

// BallastTTL returns the memory reservation lifetime as a time.Duration
func (c *RuntimeConfig) BallastTTL() time.Duration {
	return time.Duration(c.BallastTTLMs) * time.Millisecond
}

// ResolveLogDir returns the directory log files are written to
func (l *LoggingConfig) ResolveLogDir() string {
	if l.Dir == "" {
		return filepath.Join(ConfigDir(), "logs")
	}
	if len(l.Dir) >= 2 && l.Dir[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, l.Dir[2:])
		}
	}
	return l.Dir
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Adaptive defaults
	viper.SetDefault("adaptive.prediction_interval_ms", defaults.Adaptive.PredictionIntervalMs)
	viper.SetDefault("adaptive.adaptation_threshold", defaults.Adaptive.AdaptationThreshold)
	viper.SetDefault("adaptive.max_resource_increase", defaults.Adaptive.MaxResourceIncrease)
	viper.SetDefault("adaptive.conservative_mode", defaults.Adaptive.ConservativeMode)
	viper.SetDefault("adaptive.enable_proactive_scaling", defaults.Adaptive.EnableProactiveScaling)
	viper.SetDefault("adaptive.cost_optimization", defaults.Adaptive.CostOptimization)
	viper.SetDefault("adaptive.history_window_ms", defaults.Adaptive.HistoryWindowMs)
	viper.SetDefault("adaptive.max_events", defaults.Adaptive.MaxEvents)
	viper.SetDefault("adaptive.audit_rejections", defaults.Adaptive.AuditRejections)

	// Limits defaults
	viper.SetDefault("limits.max_threads", defaults.Limits.MaxThreads)
	viper.SetDefault("limits.max_memory_mb", defaults.Limits.MaxMemoryMB)
	viper.SetDefault("limits.max_cpu_utilization", defaults.Limits.MaxCPUUtilization)

	// Monitor defaults
	viper.SetDefault("monitor.max_samples", defaults.Monitor.MaxSamples)
	viper.SetDefault("monitor.link_capacity_mbps", defaults.Monitor.LinkCapacityMbps)

	// Pool and runtime defaults
	viper.SetDefault("pools", defaults.Pools)
	viper.SetDefault("runtime.queue_capacity", defaults.Runtime.QueueCapacity)
	viper.SetDefault("runtime.rate_limit", defaults.Runtime.RateLimit)
	viper.SetDefault("runtime.burst", defaults.Runtime.Burst)
	viper.SetDefault("runtime.recovery_period_ms", defaults.Runtime.RecoveryPeriodMs)
	viper.SetDefault("runtime.ballast_ttl_ms", defaults.Runtime.BallastTTLMs)

	// Policies defaults
	viper.SetDefault("policies.file", defaults.Policies.File)
	viper.SetDefault("policies.watch", defaults.Policies.Watch)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	viper.SetDefault("metrics.address", defaults.Metrics.Address)
	viper.SetDefault("metrics.path", defaults.Metrics.Path)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.endpoint", defaults.Tracing.Endpoint)
	viper.SetDefault("tracing.insecure", defaults.Tracing.Insecure)
	viper.SetDefault("tracing.sample_ratio", defaults.Tracing.SampleRatio)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "foresight")
	}
	// Fall back to ~/.config/foresight
	home, err := os.UserHomeDir()
	if err != nil {
		return ".foresight"
	}
	return filepath.Join(home, ".config", "foresight")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

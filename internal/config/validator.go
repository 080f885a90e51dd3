package config

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "adaptive.max_events")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// poolNameRegex validates pool names. Glob metacharacters are excluded so
// names stay addressable from policy metric paths.
var poolNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

const (
	minPredictionIntervalMs = 100
	maxEvents               = 100000
	maxLogSizeMB            = 1000 // 1GB
)

// ValidTraceExporters returns the list of valid tracing exporters
func ValidTraceExporters() []string {
	return []string{"stdout", "otlp"}
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateAdaptive()...)
	errors = append(errors, c.validateLimits()...)
	errors = append(errors, c.validateMonitor()...)
	errors = append(errors, c.validatePools()...)
	errors = append(errors, c.validateRuntime()...)
	errors = append(errors, c.validatePolicies()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateMetrics()...)
	errors = append(errors, c.validateTracing()...)

	return errors
}

// validateAdaptive validates the AdaptiveConfig
func (c *Config) validateAdaptive() []ValidationError {
	var errors []ValidationError
	a := c.Adaptive

	if a.PredictionIntervalMs < minPredictionIntervalMs {
		errors = append(errors, ValidationError{
			Field:   "adaptive.prediction_interval_ms",
			Value:   a.PredictionIntervalMs,
			Message: fmt.Sprintf("must be at least %d", minPredictionIntervalMs),
		})
	}

	errors = append(errors, unitFraction("adaptive.adaptation_threshold", a.AdaptationThreshold)...)
	errors = append(errors, unitFraction("adaptive.max_resource_increase", a.MaxResourceIncrease)...)

	if a.HistoryWindowMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "adaptive.history_window_ms",
			Value:   a.HistoryWindowMs,
			Message: "must be positive",
		})
	}

	if a.MaxEvents <= 0 || a.MaxEvents > maxEvents {
		errors = append(errors, ValidationError{
			Field:   "adaptive.max_events",
			Value:   a.MaxEvents,
			Message: fmt.Sprintf("must be between 1 and %d", maxEvents),
		})
	}

	return errors
}

// validateLimits validates the LimitsConfig
func (c *Config) validateLimits() []ValidationError {
	var errors []ValidationError

	for _, pool := range sortedKeys(c.Limits.MaxThreads) {
		field := "limits.max_threads." + pool
		if !poolNameRegex.MatchString(pool) {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   pool,
				Message: "pool name must start with a letter or digit and contain only letters, digits, '-' or '_'",
			})
		}
		if n := c.Limits.MaxThreads[pool]; n <= 0 {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   n,
				Message: "must be positive",
			})
		}
	}

	if c.Limits.MaxMemoryMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "limits.max_memory_mb",
			Value:   c.Limits.MaxMemoryMB,
			Message: "must be non-negative (0 disables the limit)",
		})
	}

	errors = append(errors, unitFraction("limits.max_cpu_utilization", c.Limits.MaxCPUUtilization)...)

	return errors
}

// validateMonitor validates the MonitorConfig
func (c *Config) validateMonitor() []ValidationError {
	var errors []ValidationError

	if c.Monitor.MaxSamples <= 0 {
		errors = append(errors, ValidationError{
			Field:   "monitor.max_samples",
			Value:   c.Monitor.MaxSamples,
			Message: "must be positive",
		})
	}
	if c.Monitor.LinkCapacityMbps <= 0 {
		errors = append(errors, ValidationError{
			Field:   "monitor.link_capacity_mbps",
			Value:   c.Monitor.LinkCapacityMbps,
			Message: "must be positive",
		})
	}

	return errors
}

// validatePools validates the initial pool sizes and their limits
func (c *Config) validatePools() []ValidationError {
	var errors []ValidationError

	for _, pool := range sortedKeys(c.Pools) {
		field := "pools." + pool
		size := c.Pools[pool]
		if !poolNameRegex.MatchString(pool) {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   pool,
				Message: "pool name must start with a letter or digit and contain only letters, digits, '-' or '_'",
			})
		}
		if size < 0 {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   size,
				Message: "must be non-negative",
			})
		}
		if limit, ok := c.Limits.MaxThreads[pool]; ok && limit > 0 && size > limit {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   size,
				Message: fmt.Sprintf("exceeds limits.max_threads.%s (%d)", pool, limit),
			})
		}
	}

	return errors
}

// validateRuntime validates the RuntimeConfig
func (c *Config) validateRuntime() []ValidationError {
	var errors []ValidationError

	if c.Runtime.QueueCapacity <= 0 {
		errors = append(errors, ValidationError{
			Field:   "runtime.queue_capacity",
			Value:   c.Runtime.QueueCapacity,
			Message: "must be positive",
		})
	}
	if c.Runtime.RateLimit < 1 {
		errors = append(errors, ValidationError{
			Field:   "runtime.rate_limit",
			Value:   c.Runtime.RateLimit,
			Message: "must be at least 1",
		})
	}
	if c.Runtime.Burst <= 0 {
		errors = append(errors, ValidationError{
			Field:   "runtime.burst",
			Value:   c.Runtime.Burst,
			Message: "must be positive",
		})
	}
	if c.Runtime.RecoveryPeriodMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "runtime.recovery_period_ms",
			Value:   c.Runtime.RecoveryPeriodMs,
			Message: "must be non-negative (0 disables recovery)",
		})
	}
	if c.Runtime.BallastTTLMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "runtime.ballast_ttl_ms",
			Value:   c.Runtime.BallastTTLMs,
			Message: "must be non-negative (0 keeps reservations until a forced GC)",
		})
	}

	return errors
}

// validatePolicies validates the PoliciesConfig
func (c *Config) validatePolicies() []ValidationError {
	var errors []ValidationError

	if c.Policies.Watch && c.Policies.File == "" {
		errors = append(errors, ValidationError{
			Field:   "policies.watch",
			Value:   c.Policies.Watch,
			Message: "requires policies.file to be set",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateMetrics validates the MetricsConfig
func (c *Config) validateMetrics() []ValidationError {
	var errors []ValidationError

	if !c.Metrics.Enabled {
		return nil
	}
	if c.Metrics.Address == "" {
		errors = append(errors, ValidationError{
			Field:   "metrics.address",
			Value:   c.Metrics.Address,
			Message: "must be set when metrics are enabled",
		})
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		errors = append(errors, ValidationError{
			Field:   "metrics.path",
			Value:   c.Metrics.Path,
			Message: "must start with '/'",
		})
	}

	return errors
}

// validateTracing validates the TracingConfig
func (c *Config) validateTracing() []ValidationError {
	var errors []ValidationError
	t := c.Tracing

	if !t.Enabled {
		return nil
	}
	if !slices.Contains(ValidTraceExporters(), t.Exporter) {
		errors = append(errors, ValidationError{
			Field:   "tracing.exporter",
			Value:   t.Exporter,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidTraceExporters(), ", ")),
		})
	}
	if t.Exporter == "otlp" && t.Endpoint == "" {
		errors = append(errors, ValidationError{
			Field:   "tracing.endpoint",
			Value:   t.Endpoint,
			Message: "must be set for the otlp exporter",
		})
	}
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		errors = append(errors, ValidationError{
			Field:   "tracing.sample_ratio",
			Value:   t.SampleRatio,
			Message: "must be between 0 and 1",
		})
	}

	return errors
}

// unitFraction requires 0 < v <= 1.
func unitFraction(field string, v float64) []ValidationError {
	if v > 0 && v <= 1 {
		return nil
	}
	return []ValidationError{{
		Field:   field,
		Value:   v,
		Message: "must be greater than 0 and at most 1",
	}}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

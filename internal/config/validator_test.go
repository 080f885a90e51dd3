package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	cfg := Default()
	errs := cfg.Validate()
	if len(errs) != 0 {
		t.Errorf("Default config should be valid, got %d errors: %v", len(errs), errs)
	}
}

// hasField reports whether errs contains an error for field.
func hasField(errs []ValidationError, field string) bool {
	for _, err := range errs {
		if err.Field == field {
			return true
		}
	}
	return false
}

func TestConfig_Validate_Adaptive(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		field   string
		wantErr bool
	}{
		{"minimum interval", func(c *Config) { c.Adaptive.PredictionIntervalMs = 100 }, "adaptive.prediction_interval_ms", false},
		{"interval too short", func(c *Config) { c.Adaptive.PredictionIntervalMs = 99 }, "adaptive.prediction_interval_ms", true},
		{"threshold at one", func(c *Config) { c.Adaptive.AdaptationThreshold = 1 }, "adaptive.adaptation_threshold", false},
		{"threshold zero", func(c *Config) { c.Adaptive.AdaptationThreshold = 0 }, "adaptive.adaptation_threshold", true},
		{"threshold above one", func(c *Config) { c.Adaptive.AdaptationThreshold = 1.01 }, "adaptive.adaptation_threshold", true},
		{"max increase negative", func(c *Config) { c.Adaptive.MaxResourceIncrease = -0.5 }, "adaptive.max_resource_increase", true},
		{"max increase small", func(c *Config) { c.Adaptive.MaxResourceIncrease = 0.01 }, "adaptive.max_resource_increase", false},
		{"history window zero", func(c *Config) { c.Adaptive.HistoryWindowMs = 0 }, "adaptive.history_window_ms", true},
		{"max events zero", func(c *Config) { c.Adaptive.MaxEvents = 0 }, "adaptive.max_events", true},
		{"max events at cap", func(c *Config) { c.Adaptive.MaxEvents = 100000 }, "adaptive.max_events", false},
		{"max events over cap", func(c *Config) { c.Adaptive.MaxEvents = 100001 }, "adaptive.max_events", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			errs := cfg.Validate()
			if got := hasField(errs, tt.field); got != tt.wantErr {
				t.Errorf("error for %s = %v, want %v (errors: %v)", tt.field, got, tt.wantErr, errs)
			}
		})
	}
}

func TestConfig_Validate_Limits(t *testing.T) {
	t.Run("valid per-pool limits", func(t *testing.T) {
		cfg := Default()
		cfg.Limits.MaxThreads = map[string]int{"io": 16, "cpu-bound": 8, "db_pool": 4}
		if errs := cfg.Validate(); len(errs) != 0 {
			t.Errorf("expected no errors, got %v", errs)
		}
	})

	t.Run("non-positive thread limit", func(t *testing.T) {
		cfg := Default()
		cfg.Limits.MaxThreads = map[string]int{"io": 0}
		if !hasField(cfg.Validate(), "limits.max_threads.io") {
			t.Error("expected error for zero thread limit")
		}
	})

	t.Run("invalid pool name", func(t *testing.T) {
		cfg := Default()
		cfg.Limits.MaxThreads = map[string]int{"io*": 4}
		if !hasField(cfg.Validate(), "limits.max_threads.io*") {
			t.Error("expected error for glob characters in pool name")
		}
	})

	t.Run("negative memory limit", func(t *testing.T) {
		cfg := Default()
		cfg.Limits.MaxMemoryMB = -1
		if !hasField(cfg.Validate(), "limits.max_memory_mb") {
			t.Error("expected error for negative memory limit")
		}
	})

	t.Run("cpu utilization bounds", func(t *testing.T) {
		for _, v := range []float64{0, -0.1, 1.5} {
			cfg := Default()
			cfg.Limits.MaxCPUUtilization = v
			if !hasField(cfg.Validate(), "limits.max_cpu_utilization") {
				t.Errorf("expected error for max_cpu_utilization %v", v)
			}
		}
	})
}

func TestConfig_Validate_Monitor(t *testing.T) {
	cfg := Default()
	cfg.Monitor.MaxSamples = 0
	cfg.Monitor.LinkCapacityMbps = -10
	errs := cfg.Validate()

	for _, field := range []string{"monitor.max_samples", "monitor.link_capacity_mbps"} {
		if !hasField(errs, field) {
			t.Errorf("expected error for %s", field)
		}
	}
}

func TestConfig_Validate_Pools(t *testing.T) {
	tests := []struct {
		name    string
		pools   map[string]int
		limits  map[string]int
		field   string
		wantErr bool
	}{
		{"valid", map[string]int{"io": 8}, nil, "pools.io", false},
		{"empty pool allowed", map[string]int{"io": 0}, nil, "pools.io", false},
		{"negative size", map[string]int{"io": -1}, nil, "pools.io", true},
		{"leading dash", map[string]int{"-io": 1}, nil, "pools.-io", true},
		{"space in name", map[string]int{"my pool": 1}, nil, "pools.my pool", true},
		{"within limit", map[string]int{"io": 8}, map[string]int{"io": 8}, "pools.io", false},
		{"over limit", map[string]int{"io": 9}, map[string]int{"io": 8}, "pools.io", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Pools = tt.pools
			if tt.limits != nil {
				cfg.Limits.MaxThreads = tt.limits
			}
			errs := cfg.Validate()
			if got := hasField(errs, tt.field); got != tt.wantErr {
				t.Errorf("error for %s = %v, want %v (errors: %v)", tt.field, got, tt.wantErr, errs)
			}
		})
	}
}

func TestConfig_Validate_Runtime(t *testing.T) {
	cfg := Default()
	cfg.Runtime.QueueCapacity = 0
	cfg.Runtime.RateLimit = 0.5
	cfg.Runtime.Burst = -1
	cfg.Runtime.RecoveryPeriodMs = -1
	cfg.Runtime.BallastTTLMs = -1
	errs := cfg.Validate()

	for _, field := range []string{
		"runtime.queue_capacity",
		"runtime.rate_limit",
		"runtime.burst",
		"runtime.recovery_period_ms",
		"runtime.ballast_ttl_ms",
	} {
		if !hasField(errs, field) {
			t.Errorf("expected error for %s", field)
		}
	}
}

func TestConfig_Validate_Policies(t *testing.T) {
	t.Run("watch without file", func(t *testing.T) {
		cfg := Default()
		cfg.Policies.Watch = true
		if !hasField(cfg.Validate(), "policies.watch") {
			t.Error("expected error when watching without a file")
		}
	})

	t.Run("watch with file", func(t *testing.T) {
		cfg := Default()
		cfg.Policies.File = "/etc/foresight/policies.yaml"
		cfg.Policies.Watch = true
		if errs := cfg.Validate(); len(errs) != 0 {
			t.Errorf("expected no errors, got %v", errs)
		}
	})
}

func TestConfig_Validate_Logging(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", ""} {
			cfg := Default()
			cfg.Logging.Level = level
			if hasField(cfg.Validate(), "logging.level") {
				t.Errorf("level %q should be valid", level)
			}
		}
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Level = "invalid"
		if !hasField(cfg.Validate(), "logging.level") {
			t.Error("expected error for invalid log level")
		}
	})

	t.Run("case sensitive log level", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Level = "INFO"
		if !hasField(cfg.Validate(), "logging.level") {
			t.Error("expected error for uppercase log level")
		}
	})

	t.Run("max size bounds", func(t *testing.T) {
		for _, size := range []int{0, -5, maxLogSizeMB + 1} {
			cfg := Default()
			cfg.Logging.MaxSizeMB = size
			if !hasField(cfg.Validate(), "logging.max_size_mb") {
				t.Errorf("expected error for max_size_mb %d", size)
			}
		}
	})

	t.Run("zero backups allowed", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.MaxBackups = 0
		if hasField(cfg.Validate(), "logging.max_backups") {
			t.Error("max_backups 0 should be valid")
		}
	})

	t.Run("negative backups", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.MaxBackups = -1
		if !hasField(cfg.Validate(), "logging.max_backups") {
			t.Error("expected error for negative max_backups")
		}
	})
}

func TestConfig_Validate_Metrics(t *testing.T) {
	t.Run("disabled skips checks", func(t *testing.T) {
		cfg := Default()
		cfg.Metrics.Enabled = false
		cfg.Metrics.Address = ""
		cfg.Metrics.Path = "metrics"
		if errs := cfg.Validate(); len(errs) != 0 {
			t.Errorf("expected no errors, got %v", errs)
		}
	})

	t.Run("enabled requires address and absolute path", func(t *testing.T) {
		cfg := Default()
		cfg.Metrics.Address = ""
		cfg.Metrics.Path = "metrics"
		errs := cfg.Validate()
		if !hasField(errs, "metrics.address") {
			t.Error("expected error for empty address")
		}
		if !hasField(errs, "metrics.path") {
			t.Error("expected error for relative path")
		}
	})
}

func TestConfig_Validate_Tracing(t *testing.T) {
	t.Run("disabled skips checks", func(t *testing.T) {
		cfg := Default()
		cfg.Tracing.Exporter = "zipkin"
		cfg.Tracing.SampleRatio = 2
		if errs := cfg.Validate(); len(errs) != 0 {
			t.Errorf("expected no errors, got %v", errs)
		}
	})

	tests := []struct {
		name    string
		modify  func(*TracingConfig)
		field   string
		wantErr bool
	}{
		{"stdout exporter", func(c *TracingConfig) {}, "tracing.exporter", false},
		{"otlp exporter", func(c *TracingConfig) { c.Exporter = "otlp" }, "tracing.exporter", false},
		{"unknown exporter", func(c *TracingConfig) { c.Exporter = "zipkin" }, "tracing.exporter", true},
		{"otlp without endpoint", func(c *TracingConfig) { c.Exporter, c.Endpoint = "otlp", "" }, "tracing.endpoint", true},
		{"stdout ignores endpoint", func(c *TracingConfig) { c.Endpoint = "" }, "tracing.endpoint", false},
		{"zero sample ratio", func(c *TracingConfig) { c.SampleRatio = 0 }, "tracing.sample_ratio", false},
		{"negative sample ratio", func(c *TracingConfig) { c.SampleRatio = -0.1 }, "tracing.sample_ratio", true},
		{"sample ratio above one", func(c *TracingConfig) { c.SampleRatio = 1.5 }, "tracing.sample_ratio", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Tracing.Enabled = true
			tt.modify(&cfg.Tracing)
			errs := cfg.Validate()
			if got := hasField(errs, tt.field); got != tt.wantErr {
				t.Errorf("error for %s = %v, want %v (errors: %v)", tt.field, got, tt.wantErr, errs)
			}
		})
	}
}

func TestValidLogLevels(t *testing.T) {
	levels := ValidLogLevels()
	expected := []string{"debug", "info", "warn", "error"}

	if len(levels) != len(expected) {
		t.Fatalf("ValidLogLevels() returned %d levels, want %d", len(levels), len(expected))
	}
	for i, level := range expected {
		if levels[i] != level {
			t.Errorf("ValidLogLevels()[%d] = %q, want %q", i, levels[i], level)
		}
	}
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := Default()
	cfg.Adaptive.MaxEvents = -1
	cfg.Monitor.MaxSamples = 0
	cfg.Logging.Level = "nope"

	errs := cfg.Validate()
	if len(errs) != 3 {
		t.Errorf("expected 3 errors, got %d: %v", len(errs), errs)
	}
}

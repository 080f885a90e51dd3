package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/foresight/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify foresight configuration",
	Long: `View or modify foresight configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  foresight config set adaptive.prediction_interval_ms 5000
  foresight config set adaptive.conservative_mode true
  foresight config set pools.io 8
  foresight config set limits.max_threads.io 32

The resulting configuration is validated before it is written.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/foresight/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	data, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// dynamicKeyPrefixes are map sections whose keys are pool names.
var dynamicKeyPrefixes = []string{"pools.", "limits.max_threads."}

func isKnownKey(key string) bool {
	for _, prefix := range dynamicKeyPrefixes {
		if name, ok := strings.CutPrefix(key, prefix); ok && name != "" && !strings.Contains(name, ".") {
			return true
		}
	}
	return slices.Contains(viper.AllKeys(), key)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := strings.ToLower(args[0])
	value := args[1]

	if !isKnownKey(key) {
		return fmt.Errorf("unknown configuration key: %s\nRun 'foresight config show' to see valid keys", key)
	}

	// Parse the value as a YAML scalar so numbers and booleans keep their type
	var typedValue any
	if err := yaml.Unmarshal([]byte(value), &typedValue); err != nil || typedValue == nil {
		typedValue = value
	}

	previous := viper.Get(key)
	viper.Set(key, typedValue)
	if _, err := config.Load(); err != nil {
		viper.Set(key, previous)
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	// Ensure config directory exists
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = config.ConfigFile()
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", configFile)
	return nil
}

// defaultConfigContent is written by config init.
const defaultConfigContent = `# Foresight Configuration

# Adaptation loop
adaptive:
  # Time between scheduled cycles in milliseconds
  prediction_interval_ms: 10000
  # Minimum forecast confidence (0-1] before the planner acts on it
  adaptation_threshold: 0.7
  # Largest single growth step as a fraction of current size
  max_resource_increase: 0.5
  # Halve max_resource_increase
  conservative_mode: false
  # Act on forecasts, not only on policies
  enable_proactive_scaling: true
  # Drop planned actions whose estimated cost exceeds their benefit
  cost_optimization: false
  # History fed to each forecast, in milliseconds
  history_window_ms: 300000
  # Scaling events kept for analytics
  max_events: 1000
  # Record actions rejected by admission control as failed events
  audit_rejections: false

# Admission limits
limits:
  # Per-pool thread caps; pools without an entry are unbounded
  max_threads: {}
  # Resident memory plus reservations in MB (0 = no limit)
  max_memory_mb: 0
  # CPU utilization that fires the cpu-overload-prevention policy
  max_cpu_utilization: 0.9

# Metric sampling
monitor:
  # Samples kept in history
  max_samples: 360
  # Bandwidth counted as full network utilization
  link_capacity_mbps: 1000

# Worker pools and their initial sizes
pools:
  default: 4

# Worker pool runtime
runtime:
  queue_capacity: 1024
  # Admitted submissions per second before any throttling
  rate_limit: 10000
  burst: 1000
  # Quiet time after which a throttled rate limit halves its distance to
  # rate_limit, in milliseconds (0 = stay throttled)
  recovery_period_ms: 120000
  # Lifetime of a memory reservation in milliseconds (0 = until forced GC)
  ballast_ttl_ms: 900000

# Declarative policies
policies:
  # YAML policy file (see 'foresight policies export')
  file: ""
  # Reload the file when it changes
  watch: false

# Structured logging
logging:
  enabled: true
  # debug, info, warn or error
  level: info
  # Log directory (default: ~/.config/foresight/logs)
  dir: ""
  max_size_mb: 10
  max_backups: 3
  compress: false

# Prometheus endpoint
metrics:
  enabled: true
  address: ":9090"
  path: /metrics

# OpenTelemetry tracing of adaptation cycles
tracing:
  enabled: false
  # stdout or otlp
  exporter: stdout
  # OTLP gRPC receiver
  endpoint: localhost:4317
  insecure: true
  # Fraction of traces kept
  sample_ratio: 1.0
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'foresight config set' to modify values", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	fmt.Fprintln(cmd.OutOrStdout(), "Edit this file to customize foresight's behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", configFile)
	fmt.Fprintln(out, "  2. $HOME/.config/foresight/config.yaml")
	fmt.Fprintln(out, "  3. ./config.yaml (current directory)")
	fmt.Fprintln(out, "\nEnvironment variables: FORESIGHT_* (e.g., FORESIGHT_ADAPTIVE_MAX_EVENTS)")
	return nil
}

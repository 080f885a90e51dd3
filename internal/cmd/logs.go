package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/foresight/internal/config"
	"github.com/Iron-Ham/foresight/internal/errors"
	"github.com/Iron-Ham/foresight/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View controller logs",
	Long: `View and filter controller logs, including rotated and compressed
backups.

Examples:
  # Show the last 50 entries
  foresight logs

  # Everything one cycle did
  foresight logs --cycle 4c1d... -n 0

  # Warnings and errors from the last hour, as JSON
  foresight logs --level warn --since 1h --format json`,
	RunE: runLogs,
}

var (
	logsDir       string
	logsTail      int
	logsLevel     string
	logsSince     string
	logsComponent string
	logsCycle     string
	logsGrep      string
	logsFormat    string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVar(&logsDir, "dir", "", "Log directory (default: logging.dir)")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsComponent, "component", "", "Filter by component (e.g., adaptive, runtime)")
	logsCmd.Flags().StringVar(&logsCycle, "cycle", "", "Filter by adaptation cycle ID")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter by substring of the message")
	logsCmd.Flags().StringVar(&logsFormat, "format", "text", "Output format (text/json)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	dir := logsDir
	if dir == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		dir = cfg.Logging.ResolveLogDir()
	}

	filter := logging.LogFilter{
		Component:       logsComponent,
		CycleID:         logsCycle,
		MessageContains: logsGrep,
	}
	if logsLevel != "" {
		filter.Level = logging.ParseLevel(logsLevel)
	}
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return fmt.Errorf("invalid duration format: %w", err)
		}
		filter.Since = time.Now().Add(-d)
	}

	entries, err := logging.ReadLogs(dir)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(cmd.OutOrStdout(), "No logs found in %s\n", dir)
		return nil
	}
	if err != nil {
		return err
	}

	entries = logging.FilterLogs(entries, filter)
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No matching log entries found.")
		return nil
	}
	return logging.WriteEntries(cmd.OutOrStdout(), entries, logsFormat)
}

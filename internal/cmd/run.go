package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/foresight/internal/adaptive"
	"github.com/Iron-Ham/foresight/internal/config"
	"github.com/Iron-Ham/foresight/internal/errors"
	"github.com/Iron-Ham/foresight/internal/resource"
	"github.com/Iron-Ham/foresight/internal/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the adaptive controller",
	Long: `Run the adaptive controller until interrupted.

Every adaptive.prediction_interval_ms the controller samples the host and
its worker pools, forecasts load over 1, 5 and 15 minutes, and applies the
actions its planner and policies produce. Prometheus metrics are served on
metrics.address while it runs. With tracing.enabled each cycle and the
actions it applies are exported as OpenTelemetry spans.

Use --once to run a single cycle and print what it applied.`,
	RunE: runRun,
}

var (
	runOnce         bool
	shutdownTimeout = 5 * time.Second
)

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "Run a single adaptation cycle and exit")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The manager binds its tracer at construction, so tracing starts first.
	shutdownTracing, err := startTracing(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	c, err := newController(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	p := newPrinter(cmd.OutOrStdout())
	if runOnce {
		applied, err := c.manager.OptimizeResources(ctx)
		if err != nil {
			return fmt.Errorf("adaptation cycle failed: %w", err)
		}
		printActions(p, applied)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Enabled {
		serveMetrics(gctx, g, cfg.Metrics)
	}
	g.Go(func() error {
		if err := c.manager.Start(gctx); err != nil {
			return err
		}
		p.println(p.render(mutedStyle, fmt.Sprintf("Controller running every %s (Ctrl+C to stop)",
			cfg.Adaptive.PredictionInterval())))
		<-gctx.Done()
		c.manager.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	printAnalytics(p, c.manager.ScalingHistory())
	return nil
}

// startTracing installs the configured tracer provider. When tracing is
// disabled it installs nothing and returns a no-op shutdown.
func startTracing(ctx context.Context, cfg config.TracingConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "foresight",
		Exporter:    cfg.Exporter,
		Endpoint:    cfg.Endpoint,
		Insecure:    cfg.Insecure,
		SampleRatio: cfg.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start tracing: %w", err)
	}
	return shutdown, nil
}

// serveMetrics exposes the Prometheus registry until ctx is done.
func serveMetrics(ctx context.Context, g *errgroup.Group, cfg config.MetricsConfig) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func printActions(p *printer, actions []resource.Action) {
	if len(actions) == 0 {
		p.println(p.render(mutedStyle, "No actions applied."))
		return
	}

	p.title(fmt.Sprintf("Applied %d action(s)", len(actions)))
	rows := make([][]string, 0, len(actions))
	for _, a := range actions {
		rows = append(rows, []string{
			a.Type.String(),
			a.Target,
			strconv.FormatFloat(a.Magnitude, 'g', 4, 64),
			strconv.Itoa(a.Priority),
			a.Description,
		})
	}
	p.table([]string{"TYPE", "TARGET", "MAGNITUDE", "PRIORITY", "DESCRIPTION"}, rows, nil)
}

func printAnalytics(p *printer, a adaptive.Analytics) {
	p.title("Adaptation summary")
	p.println(fmt.Sprintf("Adaptations:      %d (last %s)", a.TotalAdaptations, adaptive.AnalyticsWindow))
	rate := fmt.Sprintf("%.0f%%", a.SuccessRate*100)
	style := okStyle
	if a.TotalAdaptations > 0 && a.SuccessRate < 1 {
		style = errorStyle
	}
	p.println("Success rate:     " + p.render(style, rate))
	p.println(fmt.Sprintf("Average impact:   %.3f", a.AverageImpact))
	p.println(fmt.Sprintf("Resource savings: %.3f", a.ResourceSavings))
	p.println(fmt.Sprintf("Performance gain: %.3f", a.PerformanceGain))

	if len(a.RecentEvents) == 0 {
		return
	}
	p.println("")
	rows := make([][]string, 0, len(a.RecentEvents))
	for _, e := range a.RecentEvents {
		result := "ok"
		if !e.Success {
			result = e.Error
		}
		rows = append(rows, []string{
			e.Timestamp.Format(time.TimeOnly),
			e.Origin(),
			e.Action.String(),
			result,
		})
	}
	p.table([]string{"TIME", "SOURCE", "ACTION", "RESULT"}, rows, func(row, col int) (lipgloss.Style, bool) {
		if col == 3 && !a.RecentEvents[row].Success {
			return errorStyle, true
		}
		return lipgloss.Style{}, false
	})
}

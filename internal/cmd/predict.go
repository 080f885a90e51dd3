package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/foresight/internal/config"
	"github.com/Iron-Ham/foresight/internal/resource"
	"github.com/Iron-Ham/foresight/internal/util"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Sample the host and print load forecasts",
	Long: `Sample host and pool metrics, then print the forecast for each horizon.

Confidence grows with the number of samples; a handful of samples gives a
low-confidence forecast that the controller would not act on.

Examples:
  # Ten samples one second apart
  foresight predict

  # A longer baseline, as JSON
  foresight predict --samples 60 --interval 500ms --json`,
	RunE: runPredict,
}

var (
	predictSamples  int
	predictInterval time.Duration
	predictJSON     bool
)

func init() {
	predictCmd.Flags().IntVarP(&predictSamples, "samples", "n", 10, "Number of samples to take before forecasting")
	predictCmd.Flags().DurationVar(&predictInterval, "interval", time.Second, "Time between samples")
	predictCmd.Flags().BoolVar(&predictJSON, "json", false, "Output forecasts as JSON")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	if predictSamples < 1 {
		return fmt.Errorf("--samples must be at least 1")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	c, err := newController(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	// CurrentPredictions takes the final sample itself.
	for i := 1; i < predictSamples; i++ {
		if _, err := c.monitor.CurrentMetrics(ctx); err != nil {
			return fmt.Errorf("failed to sample metrics: %w", err)
		}
		if err := sleepCtx(ctx, predictInterval); err != nil {
			return err
		}
	}

	predictions, err := c.manager.CurrentPredictions(ctx)
	if err != nil {
		return fmt.Errorf("failed to predict: %w", err)
	}

	if predictJSON {
		return writePredictionsJSON(cmd.OutOrStdout(), predictions)
	}
	p := newPrinter(cmd.OutOrStdout())
	printPredictions(p, predictions)
	if rss, err := c.monitor.CurrentMemoryUsage(ctx); err == nil {
		p.println(p.render(mutedStyle, fmt.Sprintf("Resident memory: %s over %d samples", util.FormatMB(rss), c.monitor.Len())))
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func printPredictions(p *printer, predictions []resource.Prediction) {
	p.title("Load forecast")

	rows := make([][]string, 0, len(predictions))
	for _, pred := range predictions {
		busiest := "-"
		if pool, ok := pred.Load.BusiestPool(); ok {
			busiest = fmt.Sprintf("%s %s", pool, util.Percent(pred.Load.ThreadPools[pool]))
		}
		actions := make([]string, 0, len(pred.RecommendedActions))
		for _, a := range pred.RecommendedActions {
			actions = append(actions, a.Type.String())
		}
		recommended := strings.Join(actions, ", ")
		if recommended == "" {
			recommended = "-"
		}
		rows = append(rows, []string{
			pred.Horizon.String(),
			util.Percent(pred.Load.CPU),
			util.Percent(pred.Load.Memory),
			util.Percent(pred.Load.Network),
			busiest,
			fmt.Sprintf("%.2f", pred.Confidence),
			pred.Risk.String(),
			recommended,
		})
	}

	headers := []string{"HORIZON", "CPU", "MEMORY", "NETWORK", "BUSIEST POOL", "CONFIDENCE", "RISK", "RECOMMENDED"}
	p.table(headers, rows, func(row, col int) (lipgloss.Style, bool) {
		if col != 6 {
			return lipgloss.Style{}, false
		}
		s, ok := riskStyles[predictions[row].Risk]
		return s, ok
	})
}

// predictionView is the JSON shape of a forecast.
type predictionView struct {
	HorizonSeconds float64            `json:"horizon_seconds"`
	CPU            float64            `json:"cpu"`
	Memory         float64            `json:"memory"`
	Network        float64            `json:"network"`
	ThreadPools    map[string]float64 `json:"thread_pools,omitempty"`
	Confidence     float64            `json:"confidence"`
	Risk           string             `json:"risk"`
	Recommended    []resource.Action  `json:"recommended_actions,omitempty"`
}

func writePredictionsJSON(w io.Writer, predictions []resource.Prediction) error {
	views := make([]predictionView, 0, len(predictions))
	for _, pred := range predictions {
		views = append(views, predictionView{
			HorizonSeconds: pred.Horizon.Seconds(),
			CPU:            pred.Load.CPU,
			Memory:         pred.Load.Memory,
			Network:        pred.Load.Network,
			ThreadPools:    pred.Load.ThreadPools,
			Confidence:     pred.Confidence,
			Risk:           pred.Risk.String(),
			Recommended:    pred.RecommendedActions,
		})
	}
	data, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode predictions: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

package predictor

import (
	"time"

	"github.com/Iron-Ham/foresight/internal/resource"
)

// Strategy contributes an additive correction to a metric forecast.
// Implementations must be pure functions of their inputs.
type Strategy interface {
	// Correction returns the adjustment for metric (e.g. "cpu",
	// "threads.io") at the given horizon.
	Correction(metric string, current float64, history []resource.SystemMetrics, horizon time.Duration) float64
}

// StrategyFunc adapts a function to the Strategy interface.
type StrategyFunc func(metric string, current float64, history []resource.SystemMetrics, horizon time.Duration) float64

// Correction calls f.
func (f StrategyFunc) Correction(metric string, current float64, history []resource.SystemMetrics, horizon time.Duration) float64 {
	return f(metric, current, history, horizon)
}

// ZeroStrategy contributes nothing. It is the default for both the pattern
// and seasonal slots.
type ZeroStrategy struct{}

// Correction always returns 0.
func (ZeroStrategy) Correction(string, float64, []resource.SystemMetrics, time.Duration) float64 {
	return 0
}

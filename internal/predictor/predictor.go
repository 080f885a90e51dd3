package predictor

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/Iron-Ham/foresight/internal/errors"
	"github.com/Iron-Ham/foresight/internal/resource"
)

// Defaults for the forecast model.
const (
	DefaultTrendWindow         = 10
	DefaultAdaptationThreshold = 0.7

	// fullConfidenceSamples is the history length at which data quality saturates.
	fullConfidenceSamples = 100
	minStabilityFactor    = 0.3
)

// Recommendation thresholds and their fixed action parameters.
const (
	cpuRecommendThreshold    = 0.8
	memoryRecommendThreshold = 0.85

	redistributeBaseline     = 0.7
	maxRedistributeMagnitude = 0.3
	redistributePriority     = 8
	redistributeBenefit      = 0.5
	redistributeCost         = 0.3

	// MemoryIncrementMB is the fixed allocation recommended under memory pressure.
	MemoryIncrementMB  = 256
	allocatePriority   = 7
	allocateBenefit    = 0.6
	allocateCost       = 0.3
	systemTarget       = "system"
	memoryTarget       = "heap"
	metricCPU          = "cpu"
	metricMemory       = "memory"
	metricNetwork      = "network"
	threadMetricPrefix = "threads."
)

// Option configures a Predictor.
type Option func(*Predictor)

// WithTrendWindow sets K, the number of samples averaged on each side of
// the trend split. Values below 1 are ignored.
func WithTrendWindow(k int) Option {
	return func(p *Predictor) {
		if k > 0 {
			p.trendWindow = k
		}
	}
}

// WithAdaptationThreshold sets the confidence above which recommendations
// are attached.
func WithAdaptationThreshold(threshold float64) Option {
	return func(p *Predictor) { p.adaptationThreshold = threshold }
}

// WithPatternStrategy installs the pattern correction slot.
func WithPatternStrategy(s Strategy) Option {
	return func(p *Predictor) {
		if s != nil {
			p.pattern = s
		}
	}
}

// WithSeasonalStrategy installs the seasonal correction slot.
func WithSeasonalStrategy(s Strategy) Option {
	return func(p *Predictor) {
		if s != nil {
			p.seasonal = s
		}
	}
}

// Predictor forecasts load from the current snapshot and history.
// It holds configuration only and is safe for concurrent use.
type Predictor struct {
	trendWindow         int
	adaptationThreshold float64
	pattern             Strategy
	seasonal            Strategy
}

// New creates a Predictor with the given options.
func New(opts ...Option) *Predictor {
	p := &Predictor{
		trendWindow:         DefaultTrendWindow,
		adaptationThreshold: DefaultAdaptationThreshold,
		pattern:             ZeroStrategy{},
		seasonal:            ZeroStrategy{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AdaptationThreshold returns the configured confidence threshold.
func (p *Predictor) AdaptationThreshold() float64 {
	return p.adaptationThreshold
}

// Predict forecasts load at horizon. It returns an error wrapping
// errors.ErrInvalidMetrics if any input is malformed.
func (p *Predictor) Predict(current resource.SystemMetrics, history []resource.SystemMetrics, horizon time.Duration) (resource.Prediction, error) {
	if horizon <= 0 {
		return resource.Prediction{}, errors.NewValidationError("horizon must be positive").
			WithField("horizon").WithValue(horizon).WithCause(errors.ErrInvalidMetrics)
	}
	if err := current.Validate(); err != nil {
		return resource.Prediction{}, fmt.Errorf("current snapshot: %w", err)
	}
	for i := range history {
		if err := history[i].Validate(); err != nil {
			return resource.Prediction{}, fmt.Errorf("history[%d]: %w", i, err)
		}
	}

	trendCPU := p.trend(history, func(m resource.SystemMetrics) (float64, bool) { return m.CPUUtilization, true })
	trendMem := p.trend(history, func(m resource.SystemMetrics) (float64, bool) { return m.MemoryUtilization, true })
	trendNet := p.trend(history, func(m resource.SystemMetrics) (float64, bool) { return m.NetworkUtilization, true })

	load := resource.PredictedLoad{
		CPU:         p.forecast(metricCPU, current.CPUUtilization, trendCPU, history, horizon),
		Memory:      p.forecast(metricMemory, current.MemoryUtilization, trendMem, history, horizon),
		Network:     p.forecast(metricNetwork, current.NetworkUtilization, trendNet, history, horizon),
		ThreadPools: make(map[string]float64, len(current.ThreadPoolUtilization)),
	}
	// Sorted so strategy calls happen in a reproducible order.
	for _, pool := range slices.Sorted(maps.Keys(current.ThreadPoolUtilization)) {
		trend := p.trend(history, func(m resource.SystemMetrics) (float64, bool) {
			v, ok := m.ThreadPoolUtilization[pool]
			return v, ok
		})
		load.ThreadPools[pool] = p.forecast(threadMetricPrefix+pool,
			current.ThreadPoolUtilization[pool], trend, history, horizon)
	}

	confidence := resource.Clamp01(DataQuality(len(history)) * StabilityFactor(trendCPU, trendMem))

	prediction := resource.Prediction{
		Horizon:    horizon,
		Load:       load,
		Confidence: confidence,
		Risk:       resource.RiskFromLoad(load.Max()),
	}
	if confidence > p.adaptationThreshold {
		prediction.RecommendedActions = recommend(load)
	}
	return prediction, nil
}

// DataQuality is min(1, n/100): history depth as a fraction of the depth at
// which the forecast is fully trusted.
func DataQuality(n int) float64 {
	if n <= 0 {
		return 0
	}
	return math.Min(1, float64(n)/fullConfidenceSamples)
}

// StabilityFactor is max(0.3, 1 - (|trendCPU| + |trendMemory|)).
func StabilityFactor(trendCPU, trendMemory float64) float64 {
	return math.Max(minStabilityFactor, 1-(math.Abs(trendCPU)+math.Abs(trendMemory)))
}

// Trend returns avg(recent k) - avg(preceding k) over values with
// k = min(window, len(values)/2). Fewer than two values yield 0.
func Trend(values []float64, window int) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	k := min(window, n/2)
	recent := values[n-k:]
	preceding := values[n-2*k : n-k]
	return mean(recent) - mean(preceding)
}

func (p *Predictor) trend(history []resource.SystemMetrics, pick func(resource.SystemMetrics) (float64, bool)) float64 {
	values := make([]float64, 0, len(history))
	for _, m := range history {
		if v, ok := pick(m); ok {
			values = append(values, v)
		}
	}
	return Trend(values, p.trendWindow)
}

func (p *Predictor) forecast(metric string, current, trend float64, history []resource.SystemMetrics, horizon time.Duration) float64 {
	pattern := finiteOrZero(p.pattern.Correction(metric, current, history, horizon))
	seasonal := finiteOrZero(p.seasonal.Correction(metric, current, history, horizon))
	return resource.Clamp01(current + trend + pattern + seasonal)
}

// recommend builds the fixed recommendations for high-confidence forecasts.
func recommend(load resource.PredictedLoad) []resource.Action {
	var actions []resource.Action

	if load.CPU > cpuRecommendThreshold {
		target := systemTarget
		if pool, ok := load.BusiestPool(); ok {
			target = pool
		}
		actions = append(actions, resource.Action{
			Type:             resource.ActionRedistributeLoad,
			Target:           target,
			Magnitude:        math.Min(maxRedistributeMagnitude, load.CPU-redistributeBaseline),
			Priority:         redistributePriority,
			EstimatedBenefit: redistributeBenefit,
			EstimatedCost:    redistributeCost,
			Description:      fmt.Sprintf("predicted cpu %.2f: shift load away from %s", load.CPU, target),
		})
	}

	if load.Memory > memoryRecommendThreshold {
		actions = append(actions, resource.Action{
			Type:             resource.ActionAllocateMemory,
			Target:           memoryTarget,
			Magnitude:        MemoryIncrementMB,
			Priority:         allocatePriority,
			EstimatedBenefit: allocateBenefit,
			EstimatedCost:    allocateCost,
			Description:      fmt.Sprintf("predicted memory %.2f: reserve %d MB", load.Memory, MemoryIncrementMB),
		})
	}

	resource.SortActions(actions)
	return actions
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

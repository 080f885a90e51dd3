// Package predictor forecasts system load at a future horizon.
//
// [Predictor.Predict] is a deterministic pure function of the current
// snapshot and the monitor history: no I/O, no randomness, no retained state.
//
// # Model
//
// For each metric (cpu, memory, network and every thread pool present in the
// current snapshot):
//
//	trend     = avg(most recent k samples) - avg(preceding k samples)
//	k         = min(trendWindow, len(history)/2)
//	predicted = clamp01(current + trend + pattern + seasonal)
//
// pattern and seasonal come from pluggable [Strategy] slots. Both default to
// [ZeroStrategy], so out of the box the forecast is trend extrapolation only.
//
// Confidence is dataQuality x stabilityFactor where
//
//	dataQuality     = min(1, len(history)/100)
//	stabilityFactor = max(0.3, 1 - (|trendCPU| + |trendMemory|))
//
// Recommended actions are attached only when confidence exceeds the
// adaptation threshold.
package predictor

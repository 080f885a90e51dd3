package resource

import (
	"maps"
	"time"
)

// RiskLevel classifies how close predicted load is to saturation.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Risk thresholds on the maximum predicted utilization.
const (
	CriticalRiskThreshold = 0.95
	HighRiskThreshold     = 0.85
	MediumRiskThreshold   = 0.70
)

// String returns the string representation of the risk level.
func (r RiskLevel) String() string {
	return string(r)
}

// RiskFromLoad maps a maximum utilization to its risk level.
func RiskFromLoad(maxLoad float64) RiskLevel {
	switch {
	case maxLoad >= CriticalRiskThreshold:
		return RiskCritical
	case maxLoad >= HighRiskThreshold:
		return RiskHigh
	case maxLoad >= MediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// PredictedLoad has the same utilization shape as SystemMetrics, with every
// value clamped to [0,1].
type PredictedLoad struct {
	CPU         float64
	Memory      float64
	Network     float64
	ThreadPools map[string]float64
}

// Max returns the largest predicted utilization across all resources.
func (l PredictedLoad) Max() float64 {
	m := max(l.CPU, l.Memory, l.Network)
	for _, v := range l.ThreadPools {
		m = max(m, v)
	}
	return m
}

// BusiestPool returns the pool with the highest predicted utilization.
// Ties resolve to the lexically smallest name. ok is false when there are
// no pools.
func (l PredictedLoad) BusiestPool() (name string, ok bool) {
	best := -1.0
	for pool, v := range l.ThreadPools {
		if v > best || (v == best && pool < name) {
			best = v
			name = pool
		}
	}
	return name, best >= 0
}

// Prediction is a forecast of system load at a future horizon.
type Prediction struct {
	Horizon            time.Duration
	Load               PredictedLoad
	Confidence         float64
	Risk               RiskLevel
	RecommendedActions []Action
}

// Clone returns a deep copy of the prediction.
func (p Prediction) Clone() Prediction {
	p.Load.ThreadPools = maps.Clone(p.Load.ThreadPools)
	if p.RecommendedActions != nil {
		p.RecommendedActions = append([]Action(nil), p.RecommendedActions...)
	}
	return p
}

package adaptive

import (
	"time"

	"github.com/Iron-Ham/foresight/internal/policy"
	"github.com/Iron-Ham/foresight/internal/resource"
)

// Defaults for Config.
const (
	DefaultPredictionInterval  = 10 * time.Second
	DefaultAdaptationThreshold = 0.7
	DefaultMaxResourceIncrease = 0.5
	DefaultMaxCPUUtilization   = 0.9
	DefaultHistoryWindow       = 5 * time.Minute
	DefaultMaxEvents           = 1000
)

// AnalyticsWindow is how far back ScalingHistory looks.
const AnalyticsWindow = 24 * time.Hour

// recentEventCount is the number of events reported in Analytics.RecentEvents.
const recentEventCount = 20

// Horizons are the forecast offsets evaluated every cycle.
var Horizons = []time.Duration{60 * time.Second, 300 * time.Second, 900 * time.Second}

// Limits bound what admission lets through.
type Limits struct {
	// MaxThreads caps each pool's size. Pools without an entry are unbounded.
	MaxThreads map[string]int
	// MaxMemoryMB caps resident memory plus any preallocation. 0 disables
	// the check.
	MaxMemoryMB int
	// MaxCPUUtilization is the threshold of the cpu-overload-prevention
	// policy.
	MaxCPUUtilization float64
}

// Config controls the Manager.
type Config struct {
	PredictionInterval  time.Duration
	AdaptationThreshold float64
	// MaxResourceIncrease caps a single scaling step as a growth fraction.
	MaxResourceIncrease    float64
	ConservativeMode       bool
	EnableProactiveScaling bool
	Limits                 Limits
	// CostOptimization drops candidates whose cost exceeds their benefit.
	CostOptimization bool
	HistoryWindow    time.Duration
	MaxEvents        int
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		PredictionInterval:     DefaultPredictionInterval,
		AdaptationThreshold:    DefaultAdaptationThreshold,
		MaxResourceIncrease:    DefaultMaxResourceIncrease,
		EnableProactiveScaling: true,
		Limits: Limits{
			MaxThreads:        map[string]int{},
			MaxCPUUtilization: DefaultMaxCPUUtilization,
		},
		HistoryWindow: DefaultHistoryWindow,
		MaxEvents:     DefaultMaxEvents,
	}
}

// withDefaults fills unset numeric fields. Booleans are taken as given.
func (c Config) withDefaults() Config {
	if c.AdaptationThreshold <= 0 {
		c.AdaptationThreshold = DefaultAdaptationThreshold
	}
	if c.MaxResourceIncrease <= 0 {
		c.MaxResourceIncrease = DefaultMaxResourceIncrease
	}
	if c.Limits.MaxCPUUtilization <= 0 {
		c.Limits.MaxCPUUtilization = DefaultMaxCPUUtilization
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = DefaultHistoryWindow
	}
	if c.MaxEvents <= 0 {
		c.MaxEvents = DefaultMaxEvents
	}
	return c
}

// maxIncrease is the effective growth cap; conservative mode halves it.
func (c Config) maxIncrease() float64 {
	if c.ConservativeMode {
		return c.MaxResourceIncrease / 2
	}
	return c.MaxResourceIncrease
}

// State is the lifecycle state of a Manager.
type State string

const (
	StateIdle     State = "idle"
	StateAdapting State = "adapting"
	StateStopped  State = "stopped"
)

// Source says which layer produced an action.
type Source string

const (
	SourcePredictive Source = "predictive"
	SourcePolicy     Source = "policy"
)

// ScalingEvent is one audit record of an attempted action.
type ScalingEvent struct {
	ID        string
	CycleID   string
	Timestamp time.Time
	Action    resource.Action
	// Prediction is the forecast that triggered the action; nil for
	// policy-triggered events.
	Prediction *resource.Prediction
	Source     Source
	PolicyName string
	Success    bool
	Error      string
	// MeasuredImpact is filled in by the first cycle after the event.
	MeasuredImpact *float64

	baseline    float64
	hasBaseline bool
}

// Origin renders the source as "predictive" or "policy:<name>".
func (e ScalingEvent) Origin() string {
	return origin(e.Source, e.PolicyName)
}

func origin(src Source, policyName string) string {
	if src == SourcePolicy && policyName != "" {
		return string(src) + ":" + policyName
	}
	return string(src)
}

// clone deep-copies the pointer fields.
func (e ScalingEvent) clone() ScalingEvent {
	if e.Prediction != nil {
		p := e.Prediction.Clone()
		e.Prediction = &p
	}
	if e.MeasuredImpact != nil {
		v := *e.MeasuredImpact
		e.MeasuredImpact = &v
	}
	return e
}

// Analytics aggregates the trailing AnalyticsWindow of scaling events.
type Analytics struct {
	TotalAdaptations int
	SuccessRate      float64
	// AverageImpact counts unmeasured events as zero.
	AverageImpact float64
	// RecentEvents holds up to the last 20 events, oldest first.
	RecentEvents []ScalingEvent
	// ResourceSavings is the mean measured impact of successful reclaiming
	// actions (trigger-gc, throttle-requests).
	ResourceSavings float64
	// PerformanceGain is the mean measured impact of successful capacity
	// actions (scale-threads, allocate-memory, redistribute-load).
	PerformanceGain float64
}

// DefaultPolicies returns the built-in policies New seeds into the policy
// engine. The CPU threshold follows cfg.Limits.MaxCPUUtilization.
func DefaultPolicies(cfg Config) []policy.Policy {
	return []policy.Policy{
		{
			Name: "cpu-overload-prevention",
			Conditions: []policy.Condition{
				{Metric: policy.MetricCPU, Operator: policy.OpGreater, Threshold: cfg.Limits.MaxCPUUtilization},
			},
			Actions: []resource.Action{
				{
					Type:             resource.ActionThrottleRequests,
					Target:           "system",
					Magnitude:        0.2,
					Priority:         8,
					EstimatedBenefit: 0.6,
					EstimatedCost:    0.4,
					Description:      "throttle incoming requests under cpu overload",
				},
				{
					Type:             resource.ActionRedistributeLoad,
					Target:           "system",
					Magnitude:        0.2,
					Priority:         7,
					EstimatedBenefit: 0.5,
					EstimatedCost:    0.3,
					Description:      "shift new work off the busiest pool",
				},
			},
			Cooldown: 60 * time.Second,
		},
		{
			Name: "memory-pressure-relief",
			Conditions: []policy.Condition{
				{Metric: policy.MetricMemory, Operator: policy.OpGreater, Threshold: 0.9},
			},
			Actions: []resource.Action{
				{
					Type:             resource.ActionTriggerGC,
					Target:           "system",
					Priority:         7,
					EstimatedBenefit: 0.4,
					EstimatedCost:    0.2,
					Description:      "force a collection under memory pressure",
				},
			},
			Cooldown: 30 * time.Second,
		},
	}
}

package resource

import (
	"errors"
	"math"
	"testing"
	"time"

	ferrors "github.com/Iron-Ham/foresight/internal/errors"
)

func TestRiskFromLoad(t *testing.T) {
	tests := []struct {
		load float64
		want RiskLevel
	}{
		{0, RiskLow},
		{0.6999, RiskLow},
		{0.70, RiskMedium},
		{0.8499, RiskMedium},
		{0.85, RiskHigh},
		{0.9499, RiskHigh},
		{0.95, RiskCritical},
		{1, RiskCritical},
	}

	for _, tt := range tests {
		if got := RiskFromLoad(tt.load); got != tt.want {
			t.Errorf("RiskFromLoad(%v) = %s, want %s", tt.load, got, tt.want)
		}
	}
}

func TestPredictedLoad_Max(t *testing.T) {
	l := PredictedLoad{
		CPU:         0.4,
		Memory:      0.5,
		Network:     0.1,
		ThreadPools: map[string]float64{"io": 0.9, "cpu-bound": 0.3},
	}
	if got := l.Max(); got != 0.9 {
		t.Errorf("Max() = %v, want 0.9", got)
	}
}

func TestPredictedLoad_BusiestPool(t *testing.T) {
	if _, ok := (PredictedLoad{}).BusiestPool(); ok {
		t.Error("BusiestPool() on empty load should report ok=false")
	}

	l := PredictedLoad{ThreadPools: map[string]float64{"b": 0.8, "a": 0.8, "c": 0.1}}
	name, ok := l.BusiestPool()
	if !ok || name != "a" {
		t.Errorf("BusiestPool() = (%q, %v), want (\"a\", true)", name, ok)
	}
}

func TestAction_CompositeScore(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		want   float64
	}{
		{"regular", Action{Priority: 7, EstimatedBenefit: 0.4, EstimatedCost: 0.2}, 9},
		{"cost floor", Action{Priority: 5, EstimatedBenefit: 0.5, EstimatedCost: 0}, 10},
		{"zero benefit", Action{Priority: 3, EstimatedCost: 0.9}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.action.CompositeScore(); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CompositeScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSortActions_StableDescending(t *testing.T) {
	actions := []Action{
		{Type: ActionTriggerGC, Priority: 7, EstimatedBenefit: 0.4, EstimatedCost: 0.2},
		{Type: ActionThrottleRequests, Target: "first", Priority: 5, EstimatedBenefit: 0.1, EstimatedCost: 0.1},
		{Type: ActionAllocateMemory, Priority: 9, EstimatedBenefit: 0.6, EstimatedCost: 0.4},
		{Type: ActionThrottleRequests, Target: "second", Priority: 5, EstimatedBenefit: 0.1, EstimatedCost: 0.1},
	}
	SortActions(actions)

	wantOrder := []string{"allocate-memory", "trigger-gc", "throttle-requests/first", "throttle-requests/second"}
	for i, a := range actions {
		got := string(a.Type)
		if a.Target != "" {
			got += "/" + a.Target
		}
		if got != wantOrder[i] {
			t.Errorf("actions[%d] = %s, want %s", i, got, wantOrder[i])
		}
	}
}

func TestActionType_Valid(t *testing.T) {
	for _, at := range ActionTypes() {
		if !at.Valid() {
			t.Errorf("%s should be valid", at)
		}
	}
	if ActionType("reboot").Valid() {
		t.Error("unknown action type should be invalid")
	}
}

func TestSystemMetrics_Validate(t *testing.T) {
	valid := SystemMetrics{
		Timestamp:             time.Now(),
		CPUUtilization:        0.5,
		MemoryUtilization:     0.4,
		ThreadPoolUtilization: map[string]float64{"io": 0.2},
		QueueSizes:            map[string]int{"io": 3},
		AverageTaskDuration:   map[string]time.Duration{"io": time.Millisecond},
		SystemLoad:            1.7,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	tests := []struct {
		name   string
		mutate func(*SystemMetrics)
	}{
		{"nan cpu", func(m *SystemMetrics) { m.CPUUtilization = math.NaN() }},
		{"memory above one", func(m *SystemMetrics) { m.MemoryUtilization = 1.2 }},
		{"negative network", func(m *SystemMetrics) { m.NetworkUtilization = -0.1 }},
		{"inf pool", func(m *SystemMetrics) { m.ThreadPoolUtilization["io"] = math.Inf(1) }},
		{"negative queue", func(m *SystemMetrics) { m.QueueSizes["io"] = -1 }},
		{"negative load", func(m *SystemMetrics) { m.SystemLoad = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid.Clone()
			tt.mutate(&m)
			err := m.Validate()
			if !errors.Is(err, ferrors.ErrInvalidMetrics) {
				t.Errorf("Validate() = %v, want ErrInvalidMetrics", err)
			}
		})
	}
}

func TestSystemMetrics_CloneIsDeep(t *testing.T) {
	m := SystemMetrics{ThreadPoolUtilization: map[string]float64{"io": 0.2}}
	c := m.Clone()
	c.ThreadPoolUtilization["io"] = 0.9
	if m.ThreadPoolUtilization["io"] != 0.2 {
		t.Error("Clone() shares the pool utilization map")
	}
}

func TestClamp01(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{-1, 0}, {0.3, 0.3}, {1.5, 1}, {math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := Clamp01(tt.in); got != tt.want {
			t.Errorf("Clamp01(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

package resource

import (
	"fmt"
	"sort"
)

// ActionType identifies what an Action does to the execution substrate.
type ActionType string

const (
	// ActionScaleThreads grows a pool by Magnitude workers.
	ActionScaleThreads ActionType = "scale-threads"
	// ActionAllocateMemory reserves Magnitude megabytes.
	ActionAllocateMemory ActionType = "allocate-memory"
	// ActionTriggerGC forces a garbage collection. Magnitude is ignored.
	ActionTriggerGC ActionType = "trigger-gc"
	// ActionRedistributeLoad diverts a Magnitude fraction of new work away from Target.
	ActionRedistributeLoad ActionType = "redistribute-load"
	// ActionThrottleRequests reduces admitted request rate by a Magnitude fraction.
	ActionThrottleRequests ActionType = "throttle-requests"
)

// String returns the string representation of the action type.
func (t ActionType) String() string {
	return string(t)
}

// Valid reports whether t is one of the known action types.
func (t ActionType) Valid() bool {
	switch t {
	case ActionScaleThreads, ActionAllocateMemory, ActionTriggerGC,
		ActionRedistributeLoad, ActionThrottleRequests:
		return true
	default:
		return false
	}
}

// ActionTypes returns all known action types.
func ActionTypes() []ActionType {
	return []ActionType{
		ActionScaleThreads,
		ActionAllocateMemory,
		ActionTriggerGC,
		ActionRedistributeLoad,
		ActionThrottleRequests,
	}
}

// Action is both a planning candidate and a substrate directive.
type Action struct {
	Type             ActionType `yaml:"type" json:"type"`
	Target           string     `yaml:"target" json:"target"`
	Magnitude        float64    `yaml:"magnitude" json:"magnitude"`
	Priority         int        `yaml:"priority" json:"priority"`
	EstimatedBenefit float64    `yaml:"estimated_benefit" json:"estimated_benefit"`
	EstimatedCost    float64    `yaml:"estimated_cost" json:"estimated_cost"`
	Description      string     `yaml:"description,omitempty" json:"description,omitempty"`
}

// minCostDivisor keeps near-free actions from dominating the score.
const minCostDivisor = 0.1

// CompositeScore is priority + benefit / max(0.1, cost).
func (a Action) CompositeScore() float64 {
	return float64(a.Priority) + a.EstimatedBenefit/max(minCostDivisor, a.EstimatedCost)
}

// String returns a compact human-readable form of the action.
func (a Action) String() string {
	return fmt.Sprintf("%s(%s, %.3g) p%d", a.Type, a.Target, a.Magnitude, a.Priority)
}

// SortActions orders actions by descending composite score. The sort is
// stable, so equal scores keep their original order.
func SortActions(actions []Action) {
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].CompositeScore() > actions[j].CompositeScore()
	})
}

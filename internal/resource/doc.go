// Package resource defines the value types shared by the foresight controller:
// point-in-time [SystemMetrics] snapshots, forecasts ([Prediction]) and the
// [Action] directives that flow from planning through admission to the
// execution substrate.
//
// All types here are plain values. Snapshots are never mutated after they are
// produced; use [SystemMetrics.Clone] before modifying a copy.
//
// # Risk Classification
//
// [RiskFromLoad] maps the maximum predicted utilization to a [RiskLevel]:
//
//	>= 0.95  critical
//	>= 0.85  high
//	>= 0.70  medium
//	<  0.70  low
//
// # Action Ordering
//
// Candidate actions within a cycle are ordered by [Action.CompositeScore],
// priority + benefit / max(0.1, cost), descending. [SortActions] is stable so
// equal scores keep their planning order.
package resource

package adaptive

import (
	"context"
	"math"

	"github.com/Iron-Ham/foresight/internal/resource"
)

const bytesPerMB = 1 << 20

// CanApplyAction reports whether a fits within the configured limits. It
// has no side effects: repeated calls against an unchanged substrate give
// the same answer.
//
// scale-threads is admitted while the pool's size plus the magnitude stays
// within its MaxThreads entry; pools without an entry are unbounded, but a
// pool whose size cannot be read is rejected. allocate-memory is admitted
// while resident memory plus the magnitude stays within MaxMemoryMB.
// trigger-gc, redistribute-load and throttle-requests are always admitted.
func (m *Manager) CanApplyAction(ctx context.Context, a resource.Action) bool {
	if math.IsNaN(a.Magnitude) || math.IsInf(a.Magnitude, 0) || a.Magnitude < 0 {
		return false
	}

	switch a.Type {
	case resource.ActionScaleThreads:
		size, err := m.sub.PoolSize(ctx, a.Target)
		if err != nil {
			return false
		}
		limit, ok := m.cfg.Limits.MaxThreads[a.Target]
		if !ok {
			return true
		}
		return float64(size)+math.Ceil(a.Magnitude) <= float64(limit)

	case resource.ActionAllocateMemory:
		if m.cfg.Limits.MaxMemoryMB <= 0 {
			return true
		}
		rss, err := m.monitor.CurrentMemoryUsage(ctx)
		if err != nil {
			return false
		}
		return float64(rss)/bytesPerMB+a.Magnitude <= float64(m.cfg.Limits.MaxMemoryMB)

	case resource.ActionTriggerGC, resource.ActionRedistributeLoad, resource.ActionThrottleRequests:
		return true

	default:
		return false
	}
}

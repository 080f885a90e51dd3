package adaptive

import (
	"context"
	"math"
	"slices"

	"github.com/Iron-Ham/foresight/internal/resource"
)

// Planning thresholds on predicted utilization.
const (
	redistributeCPUThreshold = 0.8
	gcMemoryThreshold        = 0.85
	allocateMemoryThreshold  = 0.9
	scalePoolThreshold       = 0.85
	urgentPoolThreshold      = 0.95

	// minimum predicted rise over current pool utilization before scaling
	scaleTrendMargin = 0.2

	maxRedistribution = 0.3
	loadBaseline      = 0.7
	memoryBaseline    = 0.8
)

// PlanResourceActions derives candidate actions from one prediction and the
// current snapshot, ordered by descending composite score. Pool sizes and
// resident memory are read from the substrate and monitor; a pool whose
// size cannot be read is skipped, as is memory allocation when resident
// memory is unknown.
func (m *Manager) PlanResourceActions(ctx context.Context, pred resource.Prediction, current resource.SystemMetrics) []resource.Action {
	maxInc := m.cfg.maxIncrease()
	var out []resource.Action

	if cpu := pred.Load.CPU; cpu > redistributeCPUThreshold {
		target := "system"
		if pool, ok := pred.Load.BusiestPool(); ok {
			target = pool
		}
		out = append(out, resource.Action{
			Type:             resource.ActionRedistributeLoad,
			Target:           target,
			Magnitude:        min(maxRedistribution, cpu-loadBaseline),
			Priority:         8,
			EstimatedBenefit: 0.5,
			EstimatedCost:    0.3,
			Description:      "predicted cpu saturation",
		})
	}

	if mem := pred.Load.Memory; mem > gcMemoryThreshold {
		out = append(out, resource.Action{
			Type:             resource.ActionTriggerGC,
			Target:           "system",
			Priority:         7,
			EstimatedBenefit: 0.4,
			EstimatedCost:    0.2,
			Description:      "predicted memory pressure",
		})

		if mem > allocateMemoryThreshold {
			if mb, ok := m.allocationMB(ctx, min(maxInc, mem-memoryBaseline)); ok {
				out = append(out, resource.Action{
					Type:             resource.ActionAllocateMemory,
					Target:           "system",
					Magnitude:        mb,
					Priority:         9,
					EstimatedBenefit: 0.6,
					EstimatedCost:    0.4,
					Description:      "predicted memory exhaustion",
				})
			}
		}
	}

	pools := make([]string, 0, len(pred.Load.ThreadPools))
	for pool := range pred.Load.ThreadPools {
		pools = append(pools, pool)
	}
	slices.Sort(pools)

	for _, pool := range pools {
		if a, ok := m.planScale(ctx, pool, pred.Load.ThreadPools[pool], current.ThreadPoolUtilization[pool], maxInc); ok {
			out = append(out, a)
		}
	}

	if m.cfg.CostOptimization {
		out = slices.DeleteFunc(out, func(a resource.Action) bool {
			return a.EstimatedCost > a.EstimatedBenefit
		})
	}

	resource.SortActions(out)
	return out
}

func (m *Manager) planScale(ctx context.Context, pool string, predicted, current, maxInc float64) (resource.Action, bool) {
	if predicted <= scalePoolThreshold || predicted-current <= scaleTrendMargin {
		return resource.Action{}, false
	}

	size, err := m.sub.PoolSize(ctx, pool)
	if err != nil {
		m.logger.Debug("skipping pool with unknown size", "pool", pool, "error", err)
		return resource.Action{}, false
	}

	amount := int(math.Ceil(float64(size) * min(maxInc, (predicted-loadBaseline)*2)))
	if amount <= 0 {
		return resource.Action{}, false
	}
	if limit, ok := m.cfg.Limits.MaxThreads[pool]; ok && size+amount > limit {
		return resource.Action{}, false
	}

	priority := 6
	if predicted > urgentPoolThreshold {
		priority = 10
	}
	return resource.Action{
		Type:             resource.ActionScaleThreads,
		Target:           pool,
		Magnitude:        float64(amount),
		Priority:         priority,
		EstimatedBenefit: 0.7,
		EstimatedCost:    0.5,
		Description:      "predicted pool saturation",
	}, true
}

// allocationMB converts a growth fraction into whole megabytes of the
// current resident set.
func (m *Manager) allocationMB(ctx context.Context, fraction float64) (float64, bool) {
	rss, err := m.monitor.CurrentMemoryUsage(ctx)
	if err != nil {
		m.logger.Debug("skipping memory allocation", "error", err)
		return 0, false
	}
	mb := math.Ceil(fraction * float64(rss) / bytesPerMB)
	return mb, mb > 0
}

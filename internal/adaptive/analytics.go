package adaptive

import "github.com/Iron-Ham/foresight/internal/resource"

// summarize builds Analytics from events, oldest first.
func summarize(events []ScalingEvent) Analytics {
	a := Analytics{TotalAdaptations: len(events)}
	if len(events) == 0 {
		return a
	}

	var successes int
	var impactSum float64
	var savings, gains meanAcc
	for _, e := range events {
		impact := 0.0
		if e.MeasuredImpact != nil {
			impact = *e.MeasuredImpact
		}
		impactSum += impact

		if !e.Success {
			continue
		}
		successes++
		if e.MeasuredImpact == nil {
			continue
		}
		switch e.Action.Type {
		case resource.ActionTriggerGC, resource.ActionThrottleRequests:
			savings.add(impact)
		case resource.ActionScaleThreads, resource.ActionAllocateMemory, resource.ActionRedistributeLoad:
			gains.add(impact)
		}
	}

	a.SuccessRate = float64(successes) / float64(len(events))
	a.AverageImpact = impactSum / float64(len(events))
	a.ResourceSavings = savings.mean()
	a.PerformanceGain = gains.mean()

	recent := events[max(0, len(events)-recentEventCount):]
	a.RecentEvents = append([]ScalingEvent(nil), recent...)
	return a
}

type meanAcc struct {
	sum float64
	n   int
}

func (m *meanAcc) add(v float64) {
	m.sum += v
	m.n++
}

func (m meanAcc) mean() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

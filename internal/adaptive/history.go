package adaptive

import (
	"sync"
	"time"

	"github.com/Iron-Ham/foresight/internal/resource"
)

// eventLog is the append-only, capacity-capped audit log.
type eventLog struct {
	mu       sync.Mutex
	events   []ScalingEvent
	capacity int
}

func newEventLog(capacity int) *eventLog {
	return &eventLog{capacity: capacity}
}

// append adds e, dropping the oldest events beyond capacity.
func (l *eventLog) append(e ScalingEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, e)
	if over := len(l.events) - l.capacity; over > 0 {
		l.events = append(l.events[:0], l.events[over:]...)
	}
	scalingEvents.Set(float64(len(l.events)))
}

// since returns copies of the events at or after cutoff, oldest first.
func (l *eventLog) since(cutoff time.Time) []ScalingEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []ScalingEvent
	for _, e := range l.events {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, e.clone())
	}
	return out
}

func (l *eventLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// measure fills MeasuredImpact on every successful, unmeasured event that
// has a baseline and whose metric is present in current. It returns the
// number of events measured.
func (l *eventLog) measure(current resource.SystemMetrics) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for i := range l.events {
		e := &l.events[i]
		if !e.Success || !e.hasBaseline || e.MeasuredImpact != nil {
			continue
		}
		value, ok := observedMetric(e.Action, current)
		if !ok {
			continue
		}
		impact := resource.Clamp01(e.baseline - value)
		e.MeasuredImpact = &impact
		n++
	}
	return n
}

// observedMetric is the utilization an action is expected to lower.
func observedMetric(a resource.Action, m resource.SystemMetrics) (float64, bool) {
	switch a.Type {
	case resource.ActionRedistributeLoad, resource.ActionThrottleRequests:
		return m.CPUUtilization, true
	case resource.ActionTriggerGC, resource.ActionAllocateMemory:
		return m.MemoryUtilization, true
	case resource.ActionScaleThreads:
		v, ok := m.ThreadPoolUtilization[a.Target]
		return v, ok
	default:
		return 0, false
	}
}

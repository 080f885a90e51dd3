package adaptive

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/foresight/internal/resource"
)

func TestEventLog_DropsOldest(t *testing.T) {
	log := newEventLog(3)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 5 {
		log.append(ScalingEvent{ID: strconv.Itoa(i), Timestamp: base.Add(time.Duration(i) * time.Second)})
	}

	events := log.since(time.Time{})
	require.Len(t, events, 3)
	assert.Equal(t, "2", events[0].ID)
	assert.Equal(t, "4", events[2].ID)

	assert.Len(t, log.since(base.Add(4*time.Second)), 1)
}

func TestEventLog_SinceReturnsCopies(t *testing.T) {
	log := newEventLog(10)
	impact := 0.2
	log.append(ScalingEvent{ID: "a", MeasuredImpact: &impact, Prediction: &resource.Prediction{
		Load: resource.PredictedLoad{ThreadPools: map[string]float64{"io": 0.9}},
	}})

	got := log.since(time.Time{})
	*got[0].MeasuredImpact = 0.9
	got[0].Prediction.Load.ThreadPools["io"] = 0

	again := log.since(time.Time{})
	assert.Equal(t, 0.2, *again[0].MeasuredImpact)
	assert.Equal(t, 0.9, again[0].Prediction.Load.ThreadPools["io"])
}

func TestEventLog_Measure(t *testing.T) {
	log := newEventLog(10)
	log.append(ScalingEvent{ID: "pool", Success: true, hasBaseline: true, baseline: 0.9,
		Action: resource.Action{Type: resource.ActionScaleThreads, Target: "io"}})
	log.append(ScalingEvent{ID: "gone", Success: true, hasBaseline: true, baseline: 0.9,
		Action: resource.Action{Type: resource.ActionScaleThreads, Target: "batch"}})
	log.append(ScalingEvent{ID: "failed", hasBaseline: true, baseline: 0.9,
		Action: resource.Action{Type: resource.ActionTriggerGC}})
	log.append(ScalingEvent{ID: "worse", Success: true, hasBaseline: true, baseline: 0.3,
		Action: resource.Action{Type: resource.ActionTriggerGC}})

	n := log.measure(resource.SystemMetrics{
		MemoryUtilization:     0.5,
		ThreadPoolUtilization: map[string]float64{"io": 0.6},
	})
	assert.Equal(t, 2, n)

	byID := map[string]ScalingEvent{}
	for _, e := range log.since(time.Time{}) {
		byID[e.ID] = e
	}
	assert.InDelta(t, 0.3, *byID["pool"].MeasuredImpact, 1e-9)
	assert.Nil(t, byID["gone"].MeasuredImpact, "pool missing from the snapshot")
	assert.Nil(t, byID["failed"].MeasuredImpact)
	assert.Equal(t, 0.0, *byID["worse"].MeasuredImpact, "impact is clamped at zero")

	assert.Zero(t, log.measure(resource.SystemMetrics{}), "already measured events are left alone")
}

func TestSummarize(t *testing.T) {
	var events []ScalingEvent
	for i := range 25 {
		e := ScalingEvent{ID: strconv.Itoa(i), Success: i%5 != 0, Action: resource.Action{Type: resource.ActionTriggerGC}}
		if i < 10 {
			impact := 0.5
			e.MeasuredImpact = &impact
		}
		events = append(events, e)
	}

	a := summarize(events)
	assert.Equal(t, 25, a.TotalAdaptations)
	assert.InDelta(t, 0.8, a.SuccessRate, 1e-9)
	assert.InDelta(t, 0.2, a.AverageImpact, 1e-9, "unmeasured events count as zero")
	assert.InDelta(t, 0.5, a.ResourceSavings, 1e-9)
	assert.Zero(t, a.PerformanceGain)

	require.Len(t, a.RecentEvents, recentEventCount)
	assert.Equal(t, "5", a.RecentEvents[0].ID)
	assert.Equal(t, "24", a.RecentEvents[19].ID)
}

// Package internal contains integration tests that run the controller
// against the real worker pool runtime, with only host sampling faked.
package internal

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/foresight/internal/adaptive"
	"github.com/Iron-Ham/foresight/internal/event"
	"github.com/Iron-Ham/foresight/internal/monitor"
	"github.com/Iron-Ham/foresight/internal/policy"
	"github.com/Iron-Ham/foresight/internal/resource"
	"github.com/Iron-Ham/foresight/internal/substrate"
)

// hostLoad is the part of a sample the runtime cannot report itself.
type hostLoad struct {
	mu     sync.Mutex
	cpu    float64
	memory float64
}

func (h *hostLoad) set(cpu, memory float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cpu, h.memory = cpu, memory
}

// runtimeProvider samples pool state from rt and host load from h.
func runtimeProvider(rt *substrate.Runtime, h *hostLoad) monitor.ProviderFunc {
	return monitor.ProviderFunc{
		SampleFunc: func(context.Context) (resource.SystemMetrics, error) {
			h.mu.Lock()
			m := resource.SystemMetrics{
				CPUUtilization:        h.cpu,
				MemoryUtilization:     h.memory,
				ThreadPoolUtilization: make(map[string]float64),
				QueueSizes:            make(map[string]int),
				AverageTaskDuration:   make(map[string]time.Duration),
			}
			h.mu.Unlock()
			for name, s := range rt.PoolStats() {
				m.ThreadPoolUtilization[name] = s.Utilization
				m.QueueSizes[name] = s.QueueLength
				m.AverageTaskDuration[name] = s.AvgTaskDuration
			}
			return m, nil
		},
		MemoryFunc: func(context.Context) (uint64, error) {
			return 256 << 20, nil
		},
	}
}

// eventLog collects bus events for assertions.
type eventLog struct {
	mu     sync.Mutex
	events []event.Event
}

func (l *eventLog) record(e event.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) applied() []event.ActionAppliedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []event.ActionAppliedEvent
	for _, e := range l.events {
		if a, ok := e.(event.ActionAppliedEvent); ok {
			out = append(out, a)
		}
	}
	return out
}

func newTestManager(t *testing.T, rt *substrate.Runtime, h *hostLoad) (*adaptive.Manager, *eventLog) {
	t.Helper()

	cfg := adaptive.DefaultConfig()
	cfg.EnableProactiveScaling = false

	bus := event.NewBus()
	log := &eventLog{}
	bus.SubscribeAll(log.record)

	mon := monitor.New(runtimeProvider(rt, h))
	mgr := adaptive.New(rt, mon, cfg, adaptive.WithEventBus(bus))
	t.Cleanup(mgr.Shutdown)
	return mgr, log
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestPolicyScalesSaturatedPool verifies that a pool-level policy grows a
// real pool once both of its workers are busy, and respects its cooldown.
func TestPolicyScalesSaturatedPool(t *testing.T) {
	ctx := context.Background()
	rt := substrate.New(substrate.WithPool("io", 2))
	defer rt.Close()

	release := make(chan struct{})
	defer close(release)
	for range 2 {
		if err := rt.Submit(ctx, "io", func(context.Context) error {
			<-release
			return nil
		}); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}
	waitFor(t, 2*time.Second, func() bool {
		return rt.PoolStats()["io"].Utilization == 1
	})

	h := &hostLoad{}
	h.set(0.3, 0.3)
	mgr, log := newTestManager(t, rt, h)

	err := mgr.UpdatePolicy(policy.Policy{
		Name: "io-saturated",
		Conditions: []policy.Condition{
			{Metric: "threads.io", Operator: policy.OpGreaterEqual, Threshold: 1},
		},
		Actions: []resource.Action{
			{Type: resource.ActionScaleThreads, Target: "io", Magnitude: 2, Priority: 5, EstimatedBenefit: 0.5, EstimatedCost: 0.2},
		},
		Cooldown: time.Minute,
	})
	if err != nil {
		t.Fatalf("UpdatePolicy() error = %v", err)
	}

	applied, err := mgr.OptimizeResources(ctx)
	if err != nil {
		t.Fatalf("OptimizeResources() error = %v", err)
	}
	if len(applied) != 1 || applied[0].Type != resource.ActionScaleThreads {
		t.Fatalf("applied = %v, want one scale-threads", applied)
	}
	if size, _ := rt.PoolSize(ctx, "io"); size != 4 {
		t.Errorf("io pool size = %d, want 4", size)
	}

	events := log.applied()
	if len(events) != 1 || events[0].Source != "policy:io-saturated" {
		t.Errorf("applied events = %+v, want one from policy:io-saturated", events)
	}

	// Still inside the cooldown, so nothing fires again.
	applied, err = mgr.OptimizeResources(ctx)
	if err != nil {
		t.Fatalf("OptimizeResources() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("second cycle applied %v, want nothing", applied)
	}

	stats := mgr.ScalingHistory()
	if stats.TotalAdaptations != 1 || stats.SuccessRate != 1 {
		t.Errorf("analytics = %+v, want one successful adaptation", stats)
	}
}

// TestBuiltInPoliciesRelieveCPU verifies the built-in CPU policy against
// the runtime: intake is throttled and load is diverted from a pool.
func TestBuiltInPoliciesRelieveCPU(t *testing.T) {
	ctx := context.Background()
	rt := substrate.New(
		substrate.WithPool("a", 1),
		substrate.WithPool("b", 1),
		substrate.WithRateLimit(100, 10),
	)
	defer rt.Close()

	h := &hostLoad{}
	h.set(0.95, 0.4)
	mgr, log := newTestManager(t, rt, h)

	applied, err := mgr.OptimizeResources(ctx)
	if err != nil {
		t.Fatalf("OptimizeResources() error = %v", err)
	}
	if len(applied) != 2 {
		t.Fatalf("applied = %v, want throttle and redistribute", applied)
	}

	if got := rt.RateLimit(); math.Abs(got-80) > 1e-9 {
		t.Errorf("RateLimit() = %v, want 80", got)
	}
	from, fraction := rt.Diversion()
	if from != "a" || fraction != 0.2 {
		t.Errorf("Diversion() = (%q, %v), want (\"a\", 0.2)", from, fraction)
	}
	for _, e := range log.applied() {
		if e.Source != "policy:cpu-overload-prevention" {
			t.Errorf("unexpected source %q", e.Source)
		}
	}
}

// TestPolicyFileHotReload verifies that editing a watched policy file
// changes what the next cycle does.
func TestPolicyFileHotReload(t *testing.T) {
	ctx := context.Background()
	rt := substrate.New(substrate.WithPool("io", 1), substrate.WithRateLimit(100, 10))
	defer rt.Close()

	h := &hostLoad{}
	h.set(0.6, 0.3)
	mgr, _ := newTestManager(t, rt, h)

	path := filepath.Join(t.TempDir(), "policies.yaml")
	write := func(threshold string) {
		t.Helper()
		content := `policies:
  - name: shed
    conditions:
      - metric: cpu
        operator: ">"
        threshold: ` + threshold + `
    actions:
      - type: throttle-requests
        target: system
        magnitude: 0.5
        priority: 9
`
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	threshold := func() float64 {
		for _, p := range mgr.Policies() {
			if p.Name == "shed" {
				return p.Conditions[0].Threshold
			}
		}
		return -1
	}

	write("0.99")
	w, err := policy.NewWatcher(path, mgr.UpdatePolicy,
		policy.WithRemove(mgr.RemovePolicy),
		policy.WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	if got := threshold(); got != 0.99 {
		t.Fatalf("initial threshold = %v, want 0.99", got)
	}
	if applied, _ := mgr.OptimizeResources(ctx); len(applied) != 0 {
		t.Fatalf("applied = %v before reload, want nothing", applied)
	}

	write("0.5")
	waitFor(t, 2*time.Second, func() bool { return threshold() == 0.5 })

	applied, err := mgr.OptimizeResources(ctx)
	if err != nil {
		t.Fatalf("OptimizeResources() error = %v", err)
	}
	if len(applied) != 1 || applied[0].Type != resource.ActionThrottleRequests {
		t.Fatalf("applied = %v, want one throttle", applied)
	}
	if got := rt.RateLimit(); math.Abs(got-50) > 1e-9 {
		t.Errorf("RateLimit() = %v, want 50", got)
	}

	// Deleting the policy from the file removes it from the manager.
	if err := os.WriteFile(path, []byte("policies: []\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return threshold() == -1 })
	if n := len(mgr.Policies()); n != 2 {
		t.Errorf("manager has %d policies after removal, want the 2 defaults", n)
	}
}

// TestPredictionsFollowRisingLoad verifies the monitor to predictor path:
// a steadily rising CPU series forecasts above its latest sample.
func TestPredictionsFollowRisingLoad(t *testing.T) {
	ctx := context.Background()
	rt := substrate.New(substrate.WithPool("io", 2))
	defer rt.Close()

	h := &hostLoad{}
	mgr, _ := newTestManager(t, rt, h)

	var last float64
	for i := range 20 {
		last = 0.2 + 0.02*float64(i)
		h.set(last, 0.3)
		if i < 19 {
			if _, err := mgr.OptimizeResources(ctx); err != nil {
				t.Fatalf("OptimizeResources() error = %v", err)
			}
		}
	}

	predictions, err := mgr.CurrentPredictions(ctx)
	if err != nil {
		t.Fatalf("CurrentPredictions() error = %v", err)
	}
	if len(predictions) != len(adaptive.Horizons) {
		t.Fatalf("got %d predictions, want %d", len(predictions), len(adaptive.Horizons))
	}
	for i, p := range predictions {
		if p.Horizon != adaptive.Horizons[i] {
			t.Errorf("predictions[%d].Horizon = %v, want %v", i, p.Horizon, adaptive.Horizons[i])
		}
		if p.Load.CPU <= last {
			t.Errorf("predictions[%d].Load.CPU = %v, want above %v", i, p.Load.CPU, last)
		}
		if p.Confidence <= 0 || p.Confidence >= adaptive.DefaultAdaptationThreshold {
			t.Errorf("predictions[%d].Confidence = %v, want low but positive", i, p.Confidence)
		}
		if _, ok := p.Load.ThreadPools["io"]; !ok {
			t.Errorf("predictions[%d] missing io pool", i)
		}
	}
}

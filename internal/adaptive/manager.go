package adaptive

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Iron-Ham/foresight/internal/errors"
	"github.com/Iron-Ham/foresight/internal/event"
	"github.com/Iron-Ham/foresight/internal/logging"
	"github.com/Iron-Ham/foresight/internal/monitor"
	"github.com/Iron-Ham/foresight/internal/policy"
	"github.com/Iron-Ham/foresight/internal/predictor"
	"github.com/Iron-Ham/foresight/internal/resource"
	"github.com/Iron-Ham/foresight/internal/substrate"
)

// rejectedByAdmission is the error recorded for audited admission rejections.
const rejectedByAdmission = "rejected by admission"

// TracerName is the instrumentation scope of the manager's spans.
const TracerName = "github.com/Iron-Ham/foresight/internal/adaptive"

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l.WithComponent("adaptive")
		}
	}
}

// WithEventBus publishes cycle, action and policy events to bus.
func WithEventBus(bus *event.Bus) Option {
	return func(m *Manager) { m.bus = bus }
}

// WithPredictor replaces the default predictor.
func WithPredictor(p *predictor.Predictor) Option {
	return func(m *Manager) { m.predictor = p }
}

// WithPolicyEngine replaces the default policy engine. The default policies
// are only added when the engine has none with the same name.
func WithPolicyEngine(e *policy.Engine) Option {
	return func(m *Manager) { m.policies = e }
}

// WithClock sets the time source for event timestamps, the analytics window
// and the default policy engine.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithTracerProvider sets where cycle and action spans are recorded. The
// default is the global provider at construction time.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Manager) {
		if tp != nil {
			m.tracer = tp.Tracer(TracerName)
		}
	}
}

// WithAuditRejections records admission rejections as failed scaling events.
func WithAuditRejections() Option {
	return func(m *Manager) { m.auditRejections = true }
}

// Manager runs the adaptation loop. All methods are safe for concurrent use.
type Manager struct {
	sub       substrate.Substrate
	monitor   *monitor.Monitor
	predictor *predictor.Predictor
	policies  *policy.Engine
	cfg       Config

	bus             *event.Bus
	logger          *logging.Logger
	tracer          trace.Tracer
	now             func() time.Time
	auditRejections bool

	events *eventLog

	adapting atomic.Bool
	stopped  atomic.Bool

	loopMu       sync.Mutex
	stopFunc     context.CancelFunc
	loopDone     chan struct{}
	shutdownOnce sync.Once
}

// New creates a Manager and seeds the default policies.
func New(sub substrate.Substrate, mon *monitor.Monitor, cfg Config, opts ...Option) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{
		sub:     sub,
		monitor: mon,
		cfg:     cfg,
		logger:  logging.NopLogger(),
		tracer:  otel.Tracer(TracerName),
		now:     time.Now,
		events:  newEventLog(cfg.MaxEvents),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.predictor == nil {
		m.predictor = predictor.New(predictor.WithAdaptationThreshold(cfg.AdaptationThreshold))
	}
	if m.policies == nil {
		m.policies = policy.NewEngine(policy.WithClock(m.now))
	}
	for _, p := range DefaultPolicies(cfg) {
		if _, exists := m.policies.Get(p.Name); exists {
			continue
		}
		if err := m.policies.UpdatePolicy(p); err != nil {
			m.logger.Error("failed to seed default policy", "policy", p.Name, "error", err)
		}
	}
	return m
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// State reports whether the manager is idle, running a cycle or stopped.
func (m *Manager) State() State {
	switch {
	case m.stopped.Load():
		return StateStopped
	case m.adapting.Load():
		return StateAdapting
	default:
		return StateIdle
	}
}

// CurrentPredictions samples the monitor once and forecasts it at every
// horizon in Horizons using HistoryWindow of history.
func (m *Manager) CurrentPredictions(ctx context.Context) ([]resource.Prediction, error) {
	current, err := m.monitor.CurrentMetrics(ctx)
	if err != nil {
		return nil, err
	}
	return m.predict(current)
}

func (m *Manager) predict(current resource.SystemMetrics) ([]resource.Prediction, error) {
	history := m.monitor.History(m.cfg.HistoryWindow)
	preds := make([]resource.Prediction, 0, len(Horizons))
	for _, h := range Horizons {
		p, err := m.predictor.Predict(current, history, h)
		if err != nil {
			return nil, fmt.Errorf("predict %s horizon: %w", h, err)
		}
		horizon := strconv.Itoa(int(h.Seconds()))
		predictionConfidence.WithLabelValues(horizon).Set(p.Confidence)
		predictedUtilization.WithLabelValues(horizon, "cpu").Set(p.Load.CPU)
		predictedUtilization.WithLabelValues(horizon, "memory").Set(p.Load.Memory)
		preds = append(preds, p)
	}
	return preds, nil
}

// cycle carries per-cycle bookkeeping.
type cycle struct {
	id      string
	logger  *logging.Logger
	current resource.SystemMetrics
	applied []resource.Action
	failed  int
	scaled  map[string]bool
}

// OptimizeResources runs one adaptation cycle and returns the actions that
// were applied successfully. If a cycle is already in flight it returns
// (nil, nil) immediately. After Shutdown it returns errors.ErrManagerStopped.
// A metrics failure aborts the cycle with that error; substrate failures do
// not.
func (m *Manager) OptimizeResources(ctx context.Context) ([]resource.Action, error) {
	if m.stopped.Load() {
		return nil, errors.ErrManagerStopped
	}
	if !m.adapting.CompareAndSwap(false, true) {
		cyclesTotal.WithLabelValues(cycleSkipped).Inc()
		m.logger.Debug("adaptation cycle already running")
		return nil, nil
	}
	defer m.adapting.Store(false)

	c := &cycle{id: uuid.NewString(), scaled: make(map[string]bool)}
	c.logger = m.logger.WithCycle(c.id)

	ctx, span := m.tracer.Start(ctx, "adaptive.OptimizeResources",
		trace.WithAttributes(attribute.String("cycle.id", c.id)))
	defer span.End()

	start := time.Now()
	c.logger.Debug("adaptation cycle started")
	m.publish(event.NewCycleStartedEvent(c.id))

	err := m.runCycle(ctx, c)

	elapsed := time.Since(start)
	cycleDuration.Observe(elapsed.Seconds())
	span.SetAttributes(
		attribute.Int("actions.applied", len(c.applied)),
		attribute.Int("actions.failed", c.failed),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cycle aborted")
		cyclesTotal.WithLabelValues(cycleAborted).Inc()
		c.logger.Warn("adaptation cycle aborted", "error", err)
		m.publish(event.NewCycleCompletedEvent(c.id, len(c.applied), c.failed, elapsed, err.Error()))
		return c.applied, err
	}

	cyclesTotal.WithLabelValues(cycleCompleted).Inc()
	c.logger.Debug("adaptation cycle completed",
		"applied", len(c.applied),
		"failed", c.failed,
		"duration", elapsed,
	)
	m.publish(event.NewCycleCompletedEvent(c.id, len(c.applied), c.failed, elapsed, ""))
	return c.applied, nil
}

func (m *Manager) runCycle(ctx context.Context, c *cycle) error {
	current, err := m.monitor.CurrentMetrics(ctx)
	if err != nil {
		return err
	}
	c.current = current

	if n := m.events.measure(current); n > 0 {
		c.logger.Debug("measured impact of earlier actions", "events", n)
	}

	if m.cfg.EnableProactiveScaling {
		preds, err := m.predict(current)
		if err != nil {
			return err
		}
		for i := range preds {
			pred := preds[i]
			if pred.Confidence < m.cfg.AdaptationThreshold {
				continue
			}
			for _, a := range m.PlanResourceActions(ctx, pred, current) {
				m.execute(ctx, c, a, &pred, SourcePredictive, "")
			}
		}
	}

	for _, f := range m.policies.Fire(current) {
		c.logger.Info("policy fired", "policy", f.Policy, "actions", len(f.Actions))
		m.publish(event.NewPolicyFiredEvent(c.id, f.Policy, len(f.Actions)))
		for _, a := range f.Actions {
			m.execute(ctx, c, a, nil, SourcePolicy, f.Policy)
		}
	}
	return nil
}

// execute admits, applies and records one action.
func (m *Manager) execute(ctx context.Context, c *cycle, a resource.Action, pred *resource.Prediction, src Source, policyName string) {
	from := origin(src, policyName)
	counter := func(result string) {
		actionsTotal.WithLabelValues(a.Type.String(), string(src), result).Inc()
	}

	if a.Type == resource.ActionScaleThreads && c.scaled[a.Target] {
		counter(resultSkipped)
		c.logger.Debug("pool already scaled this cycle", "pool", a.Target, "source", from)
		return
	}

	ev := ScalingEvent{
		ID:         uuid.NewString(),
		CycleID:    c.id,
		Timestamp:  m.now(),
		Action:     a,
		Source:     src,
		PolicyName: policyName,
	}
	if pred != nil {
		p := pred.Clone()
		ev.Prediction = &p
	}

	if !m.CanApplyAction(ctx, a) {
		counter(resultRejected)
		c.logger.Debug("action rejected by admission", "action", a.String(), "source", from)
		if m.auditRejections {
			ev.Error = rejectedByAdmission
			m.events.append(ev)
			m.publish(event.NewActionFailedEvent(c.id, a, from, rejectedByAdmission))
		}
		return
	}

	if a.Type == resource.ActionScaleThreads {
		c.scaled[a.Target] = true
	}
	ev.baseline, ev.hasBaseline = observedMetric(a, c.current)

	if err := m.ApplyAction(ctx, a); err != nil {
		c.failed++
		counter(resultFailed)
		ev.Error = err.Error()
		c.logger.Warn("action failed", "action", a.String(), "source", from, "error", err)
		m.events.append(ev)
		m.publish(event.NewActionFailedEvent(c.id, a, from, err.Error()))
		return
	}

	ev.Success = true
	c.applied = append(c.applied, a)
	counter(resultApplied)
	c.logger.Info("action applied", "action", a.String(), "source", from)
	m.events.append(ev)
	m.publish(event.NewActionAppliedEvent(c.id, a, from))
}

// ApplyAction dispatches a to the substrate without admission. Substrate
// errors are returned wrapped in an errors.ActionError; an unknown type
// yields errors.ErrUnknownAction.
func (m *Manager) ApplyAction(ctx context.Context, a resource.Action) error {
	ctx, span := m.tracer.Start(ctx, "adaptive.ApplyAction", trace.WithAttributes(
		attribute.String("action.type", a.Type.String()),
		attribute.String("action.target", a.Target),
		attribute.Float64("action.magnitude", a.Magnitude),
	))
	defer span.End()

	var err error
	switch a.Type {
	case resource.ActionScaleThreads:
		err = m.sub.ScalePool(ctx, a.Target, int(math.Ceil(a.Magnitude)))
	case resource.ActionAllocateMemory:
		err = m.sub.PreallocateMemory(ctx, int(math.Ceil(a.Magnitude)))
	case resource.ActionTriggerGC:
		err = m.sub.ForceGC(ctx)
	case resource.ActionRedistributeLoad:
		err = m.sub.Redistribute(ctx, a.Target, a.Magnitude)
	case resource.ActionThrottleRequests:
		err = m.sub.Throttle(ctx, a.Magnitude)
	default:
		err = errors.NewActionError("cannot apply action", errors.ErrUnknownAction).
			WithAction(a.Type.String(), a.Target)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown action")
		return err
	}
	if err != nil {
		err = errors.NewActionError("substrate rejected action", err).
			WithAction(a.Type.String(), a.Target).
			WithRetryable(true)
		span.RecordError(err)
		span.SetStatus(codes.Error, "substrate failure")
		return err
	}
	return nil
}

// ScalingHistory aggregates the scaling events of the trailing 24 hours.
func (m *Manager) ScalingHistory() Analytics {
	return summarize(m.events.since(m.now().Add(-AnalyticsWindow)))
}

// UpdatePolicy inserts or replaces a policy.
func (m *Manager) UpdatePolicy(p policy.Policy) error {
	if err := m.policies.UpdatePolicy(p); err != nil {
		return err
	}
	policyUpdates.Inc()
	m.logger.Info("policy updated", "policy", p.Name)
	m.publish(event.NewPolicyUpdatedEvent(p.Name))
	return nil
}

// RemovePolicy deletes the named policy. A built-in default is reset to its
// built-in definition instead, keeping its cooldown state.
func (m *Manager) RemovePolicy(name string) error {
	for _, p := range DefaultPolicies(m.cfg) {
		if p.Name == name {
			return m.UpdatePolicy(p)
		}
	}
	if err := m.policies.RemovePolicy(name); err != nil {
		return err
	}
	m.logger.Info("policy removed", "policy", name)
	m.publish(event.NewPolicyRemovedEvent(name))
	return nil
}

// Policies returns copies of the registered policies in evaluation order.
func (m *Manager) Policies() []policy.Policy {
	return m.policies.Policies()
}

// Start runs OptimizeResources every PredictionInterval until ctx is
// canceled or Shutdown is called. A non-positive interval starts no ticker;
// cycles then only run when triggered manually. Calling Start twice is a
// no-op.
func (m *Manager) Start(ctx context.Context) error {
	if m.stopped.Load() {
		return errors.ErrManagerStopped
	}

	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if m.stopFunc != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	m.stopFunc = cancel
	m.loopDone = make(chan struct{})
	go m.loop(ctx, m.loopDone)

	m.logger.Info("adaptive manager started", "interval", m.cfg.PredictionInterval)
	return nil
}

func (m *Manager) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if m.cfg.PredictionInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(m.cfg.PredictionInterval)
	defer ticker.Stop()

	// An in-flight cycle finishes even when the loop is canceled.
	cycleCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.OptimizeResources(cycleCtx); err != nil && !errors.Is(err, errors.ErrManagerStopped) {
				m.logger.Warn("scheduled adaptation failed", "error", err)
			}
		}
	}
}

// Shutdown stops the ticker, waits for the loop goroutine (and so for a
// scheduled cycle in flight) and discards the monitor's history. It is
// safe to call more than once.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() {
		m.stopped.Store(true)

		m.loopMu.Lock()
		cancel, done := m.stopFunc, m.loopDone
		m.loopMu.Unlock()
		if cancel != nil {
			cancel()
			<-done
		}

		m.monitor.Cleanup()
		m.logger.Info("adaptive manager stopped", "events", m.events.len())
	})
}

func (m *Manager) publish(e event.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}

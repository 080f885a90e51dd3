package policy

import (
	"slices"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/foresight/internal/errors"
	"github.com/Iron-Ham/foresight/internal/resource"
)

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used for cooldown checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine holds the policy table and evaluates it against metrics.
// It is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	order    []string
	policies map[string]*Policy
	globs    map[string]glob.Glob
	now      func() time.Time
}

// NewEngine creates an empty Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		policies: make(map[string]*Policy),
		globs:    make(map[string]glob.Glob),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// UpdatePolicy inserts p, or replaces the policy with the same name in place.
// A zero LastApplied on p keeps the stored timestamp so that replacing a
// policy does not reset its cooldown.
func (e *Engine) UpdatePolicy(p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p = p.Clone()

	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.policies[p.Name]; ok {
		if p.LastApplied.IsZero() {
			p.LastApplied = existing.LastApplied
		}
		*existing = p
		return nil
	}
	e.policies[p.Name] = &p
	e.order = append(e.order, p.Name)
	return nil
}

// RemovePolicy deletes the named policy.
func (e *Engine) RemovePolicy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.policies[name]; !ok {
		return errors.NewPolicyError("remove", errors.ErrPolicyNotFound).WithPolicy(name)
	}
	delete(e.policies, name)
	for i, n := range e.order {
		if n == name {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a copy of the named policy.
func (e *Engine) Get(name string) (Policy, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.policies[name]
	if !ok {
		return Policy{}, false
	}
	return p.Clone(), true
}

// Policies returns copies of all policies in registration order.
func (e *Engine) Policies() []Policy {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Policy, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, e.policies[name].Clone())
	}
	return out
}

// Len returns the number of registered policies.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.order)
}

// Firing is one policy that fired during evaluation and the actions it
// produced.
type Firing struct {
	Policy  string
	Actions []resource.Action
}

// Fire evaluates every policy against metrics in registration order. A
// policy fires when its cooldown has elapsed and all of its conditions hold;
// firing sets LastApplied to now.
func (e *Engine) Fire(metrics resource.SystemMetrics) []Firing {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var fired []Firing
	for _, name := range e.order {
		p := e.policies[name]

		if !p.LastApplied.IsZero() && now.Sub(p.LastApplied) < p.Cooldown {
			continue
		}
		if !e.allHoldLocked(p.Conditions, metrics) {
			continue
		}

		fired = append(fired, Firing{Policy: name, Actions: slices.Clone(p.Actions)})
		p.LastApplied = now
	}
	return fired
}

// Evaluate is Fire flattened to the concatenated actions.
func (e *Engine) Evaluate(metrics resource.SystemMetrics) []resource.Action {
	var actions []resource.Action
	for _, f := range e.Fire(metrics) {
		actions = append(actions, f.Actions...)
	}
	return actions
}

// Matching reports which policies would fire against metrics right now,
// without firing them.
func (e *Engine) Matching(metrics resource.SystemMetrics) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var names []string
	for _, name := range e.order {
		p := e.policies[name]
		if !p.LastApplied.IsZero() && now.Sub(p.LastApplied) < p.Cooldown {
			continue
		}
		if e.allHoldLocked(p.Conditions, metrics) {
			names = append(names, name)
		}
	}
	return names
}

func (e *Engine) allHoldLocked(conditions []Condition, metrics resource.SystemMetrics) bool {
	for _, c := range conditions {
		if !e.holdsLocked(c, metrics) {
			return false
		}
	}
	return true
}

func (e *Engine) holdsLocked(c Condition, m resource.SystemMetrics) bool {
	switch c.Metric {
	case MetricCPU:
		return compare(c.Operator, m.CPUUtilization, c.Threshold)
	case MetricMemory:
		return compare(c.Operator, m.MemoryUtilization, c.Threshold)
	case MetricNetwork:
		return compare(c.Operator, m.NetworkUtilization, c.Threshold)
	case MetricLoad:
		return compare(c.Operator, m.SystemLoad, c.Threshold)
	}

	root, pattern, ok := splitPoolPath(c.Metric)
	if !ok {
		return false
	}
	g := e.globLocked(pattern)
	if g == nil {
		return false
	}

	switch root {
	case "threads":
		for pool, v := range m.ThreadPoolUtilization {
			if g.Match(pool) && compare(c.Operator, v, c.Threshold) {
				return true
			}
		}
	case "queue":
		for pool, v := range m.QueueSizes {
			if g.Match(pool) && compare(c.Operator, float64(v), c.Threshold) {
				return true
			}
		}
	}
	return false
}

func (e *Engine) globLocked(pattern string) glob.Glob {
	if g, ok := e.globs[pattern]; ok {
		return g
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil
	}
	e.globs[pattern] = g
	return g
}

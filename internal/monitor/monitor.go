package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Iron-Ham/foresight/internal/errors"
	"github.com/Iron-Ham/foresight/internal/resource"
)

// DefaultMaxSamples keeps one hour of history at a 10s cadence.
const DefaultMaxSamples = 360

// Option configures a Monitor.
type Option func(*Monitor)

// WithMaxSamples sets the history capacity. Values below 1 are ignored.
func WithMaxSamples(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.maxSamples = n
		}
	}
}

// WithClock overrides the clock used to stamp samples and window history.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithProviderName sets the name reported in metrics errors.
func WithProviderName(name string) Option {
	return func(m *Monitor) { m.providerName = name }
}

// Monitor samples a Provider and keeps a bounded ring of snapshots.
type Monitor struct {
	mu           sync.RWMutex
	provider     Provider
	providerName string
	now          func() time.Time

	// ring buffer; head is the index of the oldest sample
	samples    []resource.SystemMetrics
	head       int
	count      int
	maxSamples int
}

// New creates a Monitor reading from provider.
func New(provider Provider, opts ...Option) *Monitor {
	m := &Monitor{
		provider:     provider,
		providerName: "default",
		now:          time.Now,
		maxSamples:   DefaultMaxSamples,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.samples = make([]resource.SystemMetrics, m.maxSamples)
	return m
}

// CurrentMetrics samples the provider, appends the snapshot to history and
// returns it. A provider failure yields an error wrapping
// errors.ErrMetricsUnavailable; nothing is appended in that case.
func (m *Monitor) CurrentMetrics(ctx context.Context) (resource.SystemMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot, err := m.provider.Sample(ctx)
	if err != nil {
		return resource.SystemMetrics{}, errors.NewMetricsError("sample failed",
			fmt.Errorf("%w: %w", errors.ErrMetricsUnavailable, err)).WithProvider(m.providerName)
	}
	if err := snapshot.Validate(); err != nil {
		return resource.SystemMetrics{}, errors.NewMetricsError("provider returned invalid snapshot", err).
			WithProvider(m.providerName).
			WithRetryable(false)
	}

	snapshot = snapshot.Clone()
	snapshot.Timestamp = m.now()
	if last, ok := m.latestLocked(); ok && !snapshot.Timestamp.After(last.Timestamp) {
		snapshot.Timestamp = last.Timestamp.Add(time.Nanosecond)
	}
	m.appendLocked(snapshot)

	return snapshot.Clone(), nil
}

// History returns the retained samples with Timestamp >= now-d, oldest first.
func (m *Monitor) History(d time.Duration) []resource.SystemMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := m.now().Add(-d)
	out := make([]resource.SystemMetrics, 0, m.count)
	for i := 0; i < m.count; i++ {
		s := m.samples[(m.head+i)%m.maxSamples]
		if s.Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, s.Clone())
	}
	return out
}

// Latest returns the most recent sample, if any.
func (m *Monitor) Latest() (resource.SystemMetrics, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.latestLocked()
	if !ok {
		return resource.SystemMetrics{}, false
	}
	return s.Clone(), true
}

// Len returns the number of retained samples.
func (m *Monitor) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count
}

// CurrentMemoryUsage returns resident memory in bytes from the provider.
func (m *Monitor) CurrentMemoryUsage(ctx context.Context) (uint64, error) {
	rss, err := m.provider.ResidentMemory(ctx)
	if err != nil {
		return 0, errors.NewMetricsError("resident memory query failed",
			fmt.Errorf("%w: %w", errors.ErrMetricsUnavailable, err)).WithProvider(m.providerName).WithField("rss")
	}
	return rss, nil
}

// Cleanup discards all retained history.
func (m *Monitor) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.samples)
	m.head = 0
	m.count = 0
}

func (m *Monitor) latestLocked() (resource.SystemMetrics, bool) {
	if m.count == 0 {
		return resource.SystemMetrics{}, false
	}
	return m.samples[(m.head+m.count-1)%m.maxSamples], true
}

func (m *Monitor) appendLocked(s resource.SystemMetrics) {
	if m.count < m.maxSamples {
		m.samples[(m.head+m.count)%m.maxSamples] = s
		m.count++
		return
	}
	// Full: overwrite the oldest and advance head.
	m.samples[m.head] = s
	m.head = (m.head + 1) % m.maxSamples
}

package monitor

import (
	"context"
	"time"

	"github.com/Iron-Ham/foresight/internal/resource"
)

// Provider produces raw metric snapshots on demand.
type Provider interface {
	// Sample returns the current system metrics. The Timestamp field is
	// ignored; the Monitor stamps snapshots itself.
	Sample(ctx context.Context) (resource.SystemMetrics, error)

	// ResidentMemory returns the resident memory of the process in bytes.
	ResidentMemory(ctx context.Context) (uint64, error)
}

// PoolStats describes one worker pool at sampling time.
type PoolStats struct {
	Size            int
	Utilization     float64 // busy workers / size
	QueueLength     int
	AvgTaskDuration time.Duration
}

// PoolStatsSource exposes per-pool statistics of the execution substrate.
type PoolStatsSource interface {
	PoolStats() map[string]PoolStats
}

// ProviderFunc adapts ordinary functions to the Provider interface.
type ProviderFunc struct {
	SampleFunc func(ctx context.Context) (resource.SystemMetrics, error)
	MemoryFunc func(ctx context.Context) (uint64, error)
}

// Sample calls SampleFunc.
func (f ProviderFunc) Sample(ctx context.Context) (resource.SystemMetrics, error) {
	return f.SampleFunc(ctx)
}

// ResidentMemory calls MemoryFunc, returning 0 when it is unset.
func (f ProviderFunc) ResidentMemory(ctx context.Context) (uint64, error) {
	if f.MemoryFunc == nil {
		return 0, nil
	}
	return f.MemoryFunc(ctx)
}

package monitor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/Iron-Ham/foresight/internal/resource"
)

const defaultLinkCapacityMbps = 1000

// HostOption configures a HostProvider.
type HostOption func(*HostProvider)

// WithLinkCapacityMbps sets the link capacity used to normalize network
// throughput into a utilization fraction.
func WithLinkCapacityMbps(mbps float64) HostOption {
	return func(h *HostProvider) {
		if mbps > 0 {
			h.linkBytesPerSec = mbps * 1e6 / 8
		}
	}
}

// HostProvider reads host-level counters through gopsutil and merges them
// with per-pool statistics from the execution substrate.
type HostProvider struct {
	pools           PoolStatsSource
	linkBytesPerSec float64

	mu        sync.Mutex
	proc      *process.Process
	cores     int
	lastBytes uint64
	lastAt    time.Time
}

// NewHostProvider creates a HostProvider. pools may be nil, in which case
// snapshots carry no per-pool data.
func NewHostProvider(pools PoolStatsSource, opts ...HostOption) *HostProvider {
	h := &HostProvider{
		pools:           pools,
		linkBytesPerSec: defaultLinkCapacityMbps * 1e6 / 8,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Sample implements Provider.
func (h *HostProvider) Sample(ctx context.Context) (resource.SystemMetrics, error) {
	// Zero interval compares against the previous call instead of blocking.
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return resource.SystemMetrics{}, fmt.Errorf("cpu percent: %w", err)
	}
	if len(percents) == 0 {
		return resource.SystemMetrics{}, fmt.Errorf("cpu percent: no data")
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return resource.SystemMetrics{}, fmt.Errorf("virtual memory: %w", err)
	}

	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return resource.SystemMetrics{}, fmt.Errorf("load average: %w", err)
	}

	cores, err := h.coreCount(ctx)
	if err != nil {
		return resource.SystemMetrics{}, err
	}

	network, err := h.networkUtilization(ctx)
	if err != nil {
		return resource.SystemMetrics{}, err
	}

	m := resource.SystemMetrics{
		CPUUtilization:     resource.Clamp01(percents[0] / 100),
		MemoryUtilization:  resource.Clamp01(vm.UsedPercent / 100),
		NetworkUtilization: network,
		SystemLoad:         avg.Load1 / float64(cores),
	}

	if h.pools != nil {
		stats := h.pools.PoolStats()
		m.ThreadPoolUtilization = make(map[string]float64, len(stats))
		m.QueueSizes = make(map[string]int, len(stats))
		m.AverageTaskDuration = make(map[string]time.Duration, len(stats))
		for name, s := range stats {
			m.ThreadPoolUtilization[name] = resource.Clamp01(s.Utilization)
			m.QueueSizes[name] = s.QueueLength
			m.AverageTaskDuration[name] = s.AvgTaskDuration
		}
	}

	return m, nil
}

// ResidentMemory implements Provider.
func (h *HostProvider) ResidentMemory(ctx context.Context) (uint64, error) {
	h.mu.Lock()
	if h.proc == nil {
		p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
		if err != nil {
			h.mu.Unlock()
			return 0, fmt.Errorf("open self process: %w", err)
		}
		h.proc = p
	}
	proc := h.proc
	h.mu.Unlock()

	info, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("memory info: %w", err)
	}
	return info.RSS, nil
}

func (h *HostProvider) coreCount(ctx context.Context) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cores > 0 {
		return h.cores, nil
	}
	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("cpu counts: %w", err)
	}
	h.cores = max(n, 1)
	return h.cores, nil
}

// networkUtilization returns throughput since the previous sample as a
// fraction of link capacity. The first call reports 0.
func (h *HostProvider) networkUtilization(ctx context.Context) (float64, error) {
	counters, err := psnet.IOCountersWithContext(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("net io counters: %w", err)
	}
	if len(counters) == 0 {
		return 0, nil
	}
	total := counters[0].BytesSent + counters[0].BytesRecv
	now := time.Now()

	h.mu.Lock()
	defer h.mu.Unlock()
	prevBytes, prevAt := h.lastBytes, h.lastAt
	h.lastBytes, h.lastAt = total, now

	if prevAt.IsZero() || total < prevBytes {
		return 0, nil
	}
	elapsed := now.Sub(prevAt).Seconds()
	if elapsed <= 0 {
		return 0, nil
	}
	rate := float64(total-prevBytes) / elapsed
	return resource.Clamp01(rate / h.linkBytesPerSec), nil
}

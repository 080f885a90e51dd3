package substrate

import "context"

// Substrate executes resource actions. Implementations must be safe for
// concurrent use. Errors are reported to the caller and never retried here.
type Substrate interface {
	// PoolSize returns the current worker count of pool.
	PoolSize(ctx context.Context, pool string) (int, error)

	// ScalePool changes the worker count of pool by delta.
	ScalePool(ctx context.Context, pool string, delta int) error

	// PreallocateMemory reserves mb megabytes.
	PreallocateMemory(ctx context.Context, mb int) error

	// ForceGC runs a garbage collection and returns freed memory to the OS.
	ForceGC(ctx context.Context) error

	// Redistribute diverts an intensity fraction of new work away from
	// target. The target "system" selects the busiest pool.
	Redistribute(ctx context.Context, target string, intensity float64) error

	// Throttle reduces the admitted request rate by factor.
	Throttle(ctx context.Context, factor float64) error
}

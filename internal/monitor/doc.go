// Package monitor samples point-in-time system metrics and retains a bounded,
// time-ordered history of them.
//
// The [Monitor] owns the sampling cadence; a [Provider] only answers pull
// requests. Every call to [Monitor.CurrentMetrics] produces one snapshot,
// stamps it with the monitor clock and appends it to a fixed-capacity ring
// buffer, evicting the oldest sample when full. Timestamps in the history are
// strictly ascending.
//
// # Providers
//
//   - [HostProvider]: reads host CPU, memory, load and network counters via
//     gopsutil and per-pool statistics from a [PoolStatsSource]
//   - [ProviderFunc]: adapts a plain function, mostly for tests
//
// # Basic Usage
//
//	provider := monitor.NewHostProvider(runtime, monitor.WithLinkCapacityMbps(1000))
//	mon := monitor.New(provider, monitor.WithMaxSamples(360))
//
//	current, err := mon.CurrentMetrics(ctx)
//	recent := mon.History(5 * time.Minute)
//
// # Thread Safety
//
// All [Monitor] methods are safe for concurrent use. Sampling and eviction
// share one critical section, so readers never observe a torn history.
package monitor

package substrate

import (
	"context"
	"fmt"
	"maps"
	"math"
	"runtime"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/Iron-Ham/foresight/internal/errors"
	"github.com/Iron-Ham/foresight/internal/logging"
	"github.com/Iron-Ham/foresight/internal/monitor"
)

// Runtime defaults.
const (
	DefaultQueueCapacity = 1024
	DefaultRateLimit     = 10000 // tasks per second
	DefaultBurst         = 1000
	MinRateLimit         = 1

	// DefaultRecoveryPeriod is how long intake must go unthrottled before
	// the limit relaxes toward its baseline.
	DefaultRecoveryPeriod = 2 * time.Minute
	// DefaultBallastTTL is how long a memory reservation is held. It
	// matches the longest forecast horizon.
	DefaultBallastTTL = 15 * time.Minute

	// SystemTarget asks Redistribute to pick the busiest pool.
	SystemTarget = "system"
)

var errRuntimeClosed = errors.Wrap(errors.ErrSubstrateFailure, "runtime closed")

// Task is a unit of work run by a pool worker. The context is canceled when
// the Runtime closes.
type Task func(ctx context.Context) error

// Option configures a Runtime.
type Option func(*Runtime)

// WithPool declares a pool with an initial worker count.
func WithPool(name string, size int) Option {
	return func(r *Runtime) { r.initial[name] = max(0, size) }
}

// WithQueueCapacity sets the per-pool queue bound.
func WithQueueCapacity(n int) Option {
	return func(r *Runtime) {
		if n > 0 {
			r.queueCapacity = n
		}
	}
}

// WithRateLimit sets the baseline admission rate and burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(r *Runtime) {
		if perSecond > 0 {
			r.baseLimit = rate.Limit(perSecond)
		}
		if burst > 0 {
			r.burst = burst
		}
	}
}

// WithLogger sets the logger used for task failures.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRecovery sets how throttling and memory reservations wear off.
// Each period without a new Throttle halves the gap between the current
// rate limit and the baseline. Reservations older than ballastTTL are
// dropped. A zero value disables that half of the recovery.
func WithRecovery(period, ballastTTL time.Duration) Option {
	return func(r *Runtime) {
		r.recoveryPeriod = max(0, period)
		r.ballastTTL = max(0, ballastTTL)
	}
}

// WithClock sets the time source used for recovery.
func WithClock(now func() time.Time) Option {
	return func(r *Runtime) {
		if now != nil {
			r.now = now
		}
	}
}

// WithGCFunc replaces the collector hook run by ForceGC.
func WithGCFunc(fn func()) Option {
	return func(r *Runtime) {
		if fn != nil {
			r.gc = fn
		}
	}
}

// diversion moves a fraction of submissions aimed at one pool elsewhere.
type diversion struct {
	from     string
	fraction float64
}

// reservation is one block of memory ballast.
type reservation struct {
	buf []byte
	at  time.Time
}

// Runtime is an in-process Substrate backed by goroutine worker pools.
type Runtime struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	pools        map[string]*pool
	diversion    diversion
	ballast      []reservation
	lastThrottle time.Time
	closed       bool

	limiter        *rate.Limiter
	baseLimit      rate.Limit
	burst          int
	queueCapacity  int
	recoveryPeriod time.Duration
	ballastTTL     time.Duration
	initial        map[string]int
	submitted      atomic.Uint64
	gc             func()
	now            func() time.Time
	logger         *logging.Logger
	recoveryDone   chan struct{}
}

// New creates and starts a Runtime.
func New(opts ...Option) *Runtime {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runtime{
		ctx:            ctx,
		cancel:         cancel,
		pools:          make(map[string]*pool),
		baseLimit:      DefaultRateLimit,
		burst:          DefaultBurst,
		queueCapacity:  DefaultQueueCapacity,
		recoveryPeriod: DefaultRecoveryPeriod,
		ballastTTL:     DefaultBallastTTL,
		initial:        make(map[string]int),
		gc:             forceGC,
		now:            time.Now,
		logger:         logging.NopLogger(),
		recoveryDone:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.limiter = rate.NewLimiter(r.baseLimit, r.burst)

	for name, size := range r.initial {
		p := newPool(name, r.queueCapacity, r.logger)
		p.grow(r.ctx, size)
		r.pools[name] = p
	}
	go r.recoveryLoop()
	return r
}

// recoveryLoop runs Recover a few times per recovery period until Close.
func (r *Runtime) recoveryLoop() {
	defer close(r.recoveryDone)

	tick := min(r.recoveryPeriod, r.ballastTTL)
	if tick <= 0 {
		tick = max(r.recoveryPeriod, r.ballastTTL)
	}
	if tick <= 0 {
		<-r.ctx.Done()
		return
	}

	ticker := time.NewTicker(max(tick/4, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.Recover()
		}
	}
}

// Recover relaxes throttling and drops expired memory reservations. It runs
// periodically on its own; calling it directly applies the same rules at
// the current time.
func (r *Runtime) Recover() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.relaxRateLocked(now)
	r.expireBallastLocked(now)
}

// relaxRateLocked halves the gap to the baseline limit for each full
// recovery period since the last throttle. Within 1% it snaps to baseline.
func (r *Runtime) relaxRateLocked(now time.Time) {
	limit := r.limiter.Limit()
	if r.recoveryPeriod <= 0 || limit >= r.baseLimit {
		return
	}
	quiet := now.Sub(r.lastThrottle)
	steps := int(quiet / r.recoveryPeriod)
	if steps <= 0 {
		return
	}

	gap := math.Ldexp(float64(r.baseLimit-limit), -min(steps, 64))
	next := r.baseLimit - rate.Limit(gap)
	if gap < 0.01*float64(r.baseLimit) {
		next = r.baseLimit
	}
	r.limiter.SetLimit(next)
	r.lastThrottle = r.lastThrottle.Add(time.Duration(steps) * r.recoveryPeriod)
	r.logger.Debug("intake limit relaxed", "limit", float64(next), "baseline", float64(r.baseLimit))
}

func (r *Runtime) expireBallastLocked(now time.Time) {
	if r.ballastTTL <= 0 || len(r.ballast) == 0 {
		return
	}
	kept := r.ballast[:0]
	for _, b := range r.ballast {
		if now.Sub(b.at) < r.ballastTTL {
			kept = append(kept, b)
		}
	}
	if dropped := len(r.ballast) - len(kept); dropped > 0 {
		clear(r.ballast[len(kept):])
		r.logger.Debug("memory reservations expired", "dropped", dropped)
	}
	r.ballast = kept
}

// Submit queues task on the named pool, waiting for rate-limit admission
// and queue space. A diversion in effect may route it to another pool.
func (r *Runtime) Submit(ctx context.Context, poolName string, task Task) error {
	if task == nil {
		return errors.NewValidationError("task is nil").WithField("task")
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("admission: %w", err)
	}

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return errRuntimeClosed
	}
	p, ok := r.pools[poolName]
	if !ok {
		r.mu.RUnlock()
		return errors.Wrapf(errors.ErrPoolNotFound, "submit to %q", poolName)
	}
	if alt := r.divertLocked(poolName); alt != nil {
		p = alt
	}
	r.mu.RUnlock()

	return p.enqueue(ctx, r.ctx, task)
}

// divertLocked returns the pool a submission to name should go to instead,
// or nil. Diversion is deterministic: of every 100 submissions to the source
// pool, fraction*100 are sent to the least loaded other pool.
func (r *Runtime) divertLocked(name string) *pool {
	d := r.diversion
	if d.fraction <= 0 || d.from != name {
		return nil
	}
	n := r.submitted.Add(1)
	if float64(n%100) >= d.fraction*100 {
		return nil
	}

	var best *pool
	bestLoad := math.Inf(1)
	for _, other := range slices.Sorted(maps.Keys(r.pools)) {
		if other == name {
			continue
		}
		p := r.pools[other]
		if p.size() == 0 {
			continue
		}
		if load := p.load(); load < bestLoad {
			best, bestLoad = p, load
		}
	}
	return best
}

// PoolSize implements Substrate.
func (r *Runtime) PoolSize(_ context.Context, name string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pools[name]
	if !ok {
		return 0, errors.Wrapf(errors.ErrPoolNotFound, "pool %q", name)
	}
	return p.size(), nil
}

// ScalePool implements Substrate. Shrinking below zero workers is rejected.
func (r *Runtime) ScalePool(_ context.Context, name string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errRuntimeClosed
	}
	p, ok := r.pools[name]
	if !ok {
		return errors.Wrapf(errors.ErrPoolNotFound, "scale %q", name)
	}
	switch {
	case delta > 0:
		p.grow(r.ctx, delta)
	case delta < 0:
		if p.size()+delta < 0 {
			return errors.NewValidationError("pool cannot shrink below zero workers").
				WithField("delta").WithValue(delta)
		}
		p.shrink(-delta)
	}
	r.logger.Debug("pool scaled", "pool", name, "delta", delta, "size", p.size())
	return nil
}

// PreallocateMemory implements Substrate by retaining a zeroed ballast
// slice of mb megabytes.
func (r *Runtime) PreallocateMemory(_ context.Context, mb int) error {
	if mb <= 0 {
		return errors.NewValidationError("allocation must be positive").WithField("mb").WithValue(mb)
	}
	buf := make([]byte, mb<<20)
	// Touch each page so the reservation is resident.
	for i := 0; i < len(buf); i += 4096 {
		buf[i] = 1
	}

	r.mu.Lock()
	r.ballast = append(r.ballast, reservation{buf: buf, at: r.now()})
	r.mu.Unlock()
	return nil
}

// ReleaseMemory drops all reserved ballast. ForceGC calls it first.
func (r *Runtime) ReleaseMemory() {
	r.mu.Lock()
	r.ballast = nil
	r.mu.Unlock()
}

// ReservedMB returns the total ballast held, in megabytes.
func (r *Runtime) ReservedMB() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, b := range r.ballast {
		total += len(b.buf) >> 20
	}
	return total
}

// ForceGC implements Substrate. Reserved ballast is released before the
// collection so the collector can return it to the OS.
func (r *Runtime) ForceGC(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.ReleaseMemory()
	r.gc()
	return nil
}

func forceGC() {
	runtime.GC()
	debug.FreeOSMemory()
}

// Redistribute implements Substrate. A later call replaces the earlier
// diversion; intensity 0 clears it.
func (r *Runtime) Redistribute(_ context.Context, target string, intensity float64) error {
	if math.IsNaN(intensity) || intensity < 0 || intensity > 1 {
		return errors.NewValidationError("intensity must be within [0,1]").
			WithField("intensity").WithValue(intensity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	from := target
	if target == SystemTarget {
		from = r.busiestLocked()
		if from == "" {
			return errors.Wrap(errors.ErrPoolNotFound, "no pools to redistribute")
		}
	} else if _, ok := r.pools[target]; !ok {
		return errors.Wrapf(errors.ErrPoolNotFound, "redistribute from %q", target)
	}

	r.diversion = diversion{from: from, fraction: intensity}
	r.logger.Debug("load redistributed", "from", from, "fraction", intensity)
	return nil
}

// Diversion returns the pool currently shedding load and the fraction shed.
func (r *Runtime) Diversion() (pool string, fraction float64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.diversion.from, r.diversion.fraction
}

func (r *Runtime) busiestLocked() string {
	best, bestLoad := "", -1.0
	for _, name := range slices.Sorted(maps.Keys(r.pools)) {
		p := r.pools[name]
		if p.size() == 0 {
			continue
		}
		if load := p.load(); load > bestLoad {
			best, bestLoad = name, load
		}
	}
	return best
}

// Throttle implements Substrate. Each call compounds: the current limit is
// multiplied by 1-factor, floored at MinRateLimit. The limit relaxes again
// once a recovery period passes without another call.
func (r *Runtime) Throttle(_ context.Context, factor float64) error {
	if math.IsNaN(factor) || factor < 0 || factor >= 1 {
		return errors.NewValidationError("throttle factor must be within [0,1)").
			WithField("factor").WithValue(factor)
	}
	r.mu.Lock()
	next := max(rate.Limit(MinRateLimit), r.limiter.Limit()*rate.Limit(1-factor))
	r.limiter.SetLimit(next)
	r.lastThrottle = r.now()
	r.mu.Unlock()

	r.logger.Debug("intake throttled", "factor", factor, "limit", float64(next))
	return nil
}

// RateLimit returns the current admission rate in tasks per second.
func (r *Runtime) RateLimit() float64 {
	return float64(r.limiter.Limit())
}

// PoolStats implements monitor.PoolStatsSource.
func (r *Runtime) PoolStats() map[string]monitor.PoolStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]monitor.PoolStats, len(r.pools))
	for name, p := range r.pools {
		out[name] = p.stats()
	}
	return out
}

// Close stops all workers and waits for in-flight tasks to return. Queued
// tasks that have not started are dropped. Safe to call more than once.
func (r *Runtime) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	pools := slices.Collect(maps.Values(r.pools))
	r.mu.Unlock()

	r.cancel()
	for _, p := range pools {
		p.wait()
	}
	<-r.recoveryDone
}

// pool is a named set of workers draining one bounded queue.
type pool struct {
	name   string
	tasks  chan Task
	logger *logging.Logger

	mu      sync.Mutex
	workers []chan struct{}
	wg      sync.WaitGroup

	busy          atomic.Int64
	completed     atomic.Int64
	failed        atomic.Int64
	totalDuration atomic.Int64
}

func newPool(name string, capacity int, logger *logging.Logger) *pool {
	return &pool{
		name:   name,
		tasks:  make(chan Task, capacity),
		logger: logger,
	}
}

func (p *pool) enqueue(ctx, runCtx context.Context, task Task) error {
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-runCtx.Done():
		return errRuntimeClosed
	}
}

func (p *pool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

func (p *pool) grow(ctx context.Context, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for range n {
		stop := make(chan struct{})
		p.workers = append(p.workers, stop)
		p.wg.Add(1)
		go p.work(ctx, stop)
	}
}

// shrink stops the n most recently started workers. A worker mid-task
// finishes that task first.
func (p *pool) shrink(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n = min(n, len(p.workers))
	for _, stop := range p.workers[len(p.workers)-n:] {
		close(stop)
	}
	p.workers = p.workers[:len(p.workers)-n]
}

func (p *pool) wait() {
	p.wg.Wait()
}

func (p *pool) work(ctx context.Context, stop <-chan struct{}) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case task := <-p.tasks:
			p.run(ctx, task)
		}
	}
}

func (p *pool) run(ctx context.Context, task Task) {
	p.busy.Add(1)
	start := time.Now()
	defer func() {
		p.busy.Add(-1)
		p.totalDuration.Add(int64(time.Since(start)))
		p.completed.Add(1)
		if r := recover(); r != nil {
			p.failed.Add(1)
			p.logger.Error("task panicked", "pool", p.name, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()

	if err := task(ctx); err != nil {
		p.failed.Add(1)
		p.logger.Warn("task failed", "pool", p.name, "error", err)
	}
}

// load is busy workers plus queued tasks per worker. Empty pools report +Inf.
func (p *pool) load() float64 {
	size := p.size()
	if size == 0 {
		return math.Inf(1)
	}
	return float64(p.busy.Load()+int64(len(p.tasks))) / float64(size)
}

func (p *pool) stats() monitor.PoolStats {
	size := p.size()
	s := monitor.PoolStats{
		Size:        size,
		QueueLength: len(p.tasks),
	}
	if size > 0 {
		s.Utilization = math.Min(1, float64(p.busy.Load())/float64(size))
	}
	if n := p.completed.Load(); n > 0 {
		s.AvgTaskDuration = time.Duration(p.totalDuration.Load() / n)
	}
	return s
}

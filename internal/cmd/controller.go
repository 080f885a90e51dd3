package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/Iron-Ham/foresight/internal/adaptive"
	"github.com/Iron-Ham/foresight/internal/config"
	"github.com/Iron-Ham/foresight/internal/event"
	"github.com/Iron-Ham/foresight/internal/logging"
	"github.com/Iron-Ham/foresight/internal/monitor"
	"github.com/Iron-Ham/foresight/internal/policy"
	"github.com/Iron-Ham/foresight/internal/substrate"
)

// controller is the assembled runtime, monitor and manager of one process.
type controller struct {
	runtime *substrate.Runtime
	monitor *monitor.Monitor
	manager *adaptive.Manager
	bus     *event.Bus
	logger  *logging.Logger
	watcher *policy.Watcher
}

// newController builds the worker pool runtime from cfg, samples it through
// the host provider and hands both to an adaptive manager. Policies from
// cfg.Policies.File are applied on top of the built-in ones.
func newController(cfg *config.Config, logger *logging.Logger) (*controller, error) {
	rtOpts := []substrate.Option{
		substrate.WithQueueCapacity(cfg.Runtime.QueueCapacity),
		substrate.WithRateLimit(cfg.Runtime.RateLimit, cfg.Runtime.Burst),
		substrate.WithRecovery(cfg.Runtime.RecoveryPeriod(), cfg.Runtime.BallastTTL()),
		substrate.WithLogger(logger),
	}
	names := make([]string, 0, len(cfg.Pools))
	for name := range cfg.Pools {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rtOpts = append(rtOpts, substrate.WithPool(name, cfg.Pools[name]))
	}
	rt := substrate.New(rtOpts...)

	host := monitor.NewHostProvider(rt, monitor.WithLinkCapacityMbps(cfg.Monitor.LinkCapacityMbps))
	mon := monitor.New(host,
		monitor.WithMaxSamples(cfg.Monitor.MaxSamples),
		monitor.WithProviderName("host"),
	)

	bus := event.NewBus(event.WithLogger(logger))
	bus.SubscribeAll(logEvent(logger.WithComponent("events")))

	mgrOpts := []adaptive.Option{
		adaptive.WithLogger(logger),
		adaptive.WithEventBus(bus),
	}
	if cfg.Adaptive.AuditRejections {
		mgrOpts = append(mgrOpts, adaptive.WithAuditRejections())
	}
	mgr := adaptive.New(rt, mon, cfg.AdaptiveConfig(), mgrOpts...)

	c := &controller{
		runtime: rt,
		monitor: mon,
		manager: mgr,
		bus:     bus,
		logger:  logger,
	}
	if cfg.Policies.File != "" {
		if err := c.loadPolicies(cfg.Policies); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *controller) loadPolicies(pc config.PoliciesConfig) error {
	if !pc.Watch {
		policies, err := policy.LoadFile(pc.File)
		if err != nil {
			return fmt.Errorf("failed to load policies: %w", err)
		}
		for _, p := range policies {
			if err := c.manager.UpdatePolicy(p); err != nil {
				return fmt.Errorf("failed to apply policy %q: %w", p.Name, err)
			}
		}
		return nil
	}

	w, err := policy.NewWatcher(pc.File, c.manager.UpdatePolicy,
		policy.WithRemove(c.manager.RemovePolicy),
		policy.WithWatcherLogger(c.logger.WithComponent("policy-watcher")))
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		w.Stop()
		return fmt.Errorf("failed to load policies: %w", err)
	}
	c.watcher = w
	return nil
}

// Close stops the watcher, the manager and the runtime, in that order.
func (c *controller) Close() {
	if c.watcher != nil {
		c.watcher.Stop()
	}
	c.manager.Shutdown()
	c.runtime.Close()
}

// logEvent records every published event at debug level.
func logEvent(logger *logging.Logger) event.Handler {
	return func(e event.Event) {
		switch ev := e.(type) {
		case event.CycleCompletedEvent:
			logger.WithCycle(ev.CycleID).Debug("event",
				"type", e.EventType(),
				"applied", ev.Applied,
				"failed", ev.Failed,
				"duration_ms", ev.Duration.Milliseconds(),
			)
		case event.PolicyFiredEvent:
			logger.WithCycle(ev.CycleID).Debug("event",
				"type", e.EventType(),
				"policy", ev.PolicyName,
				"actions", ev.ActionCount,
			)
		case event.PolicyRemovedEvent:
			logger.Debug("event", "type", e.EventType(), "policy", ev.PolicyName)
		default:
			logger.Debug("event", "type", e.EventType())
		}
	}
}

// newLogger opens the rotating log file described by cfg. With logging
// disabled, warnings and errors still reach stderr.
func newLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	if !cfg.Enabled {
		return logging.NewLoggerWithWriter(os.Stderr, logging.LevelWarn), nil
	}
	logger, err := logging.NewLoggerWithRotation(cfg.ResolveLogDir(), cfg.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// Package adaptive runs the predictive control loop of the controller.
//
// The [Manager] samples metrics through a [monitor.Monitor], forecasts load
// at three horizons with a [predictor.Predictor], plans candidate actions,
// admits them against configured [Limits] and applies them through a
// [substrate.Substrate]. After the predictive pass it evaluates the
// [policy.Engine] and pushes fired policy actions through the same
// admit, apply and record path.
//
// # Cycles
//
// A cycle is triggered by the internal ticker (see [Manager.Start]) or
// manually through [Manager.OptimizeResources]. Only one cycle runs at a
// time; a trigger that arrives while a cycle is in flight returns
// immediately with no actions. Actions inside a cycle are applied one after
// another, and a pool is scaled at most once per cycle.
//
// # Failure Isolation
//
// Substrate errors are logged, recorded as failed [ScalingEvent]s and never
// abort the cycle. Admission rejections are skipped silently unless
// [WithAuditRejections] is set.
//
// # Basic Usage
//
//	mon := monitor.New(monitor.NewHostProvider(rt))
//	mgr := adaptive.New(rt, mon, adaptive.DefaultConfig(),
//	    adaptive.WithLogger(logger),
//	    adaptive.WithEventBus(bus),
//	)
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Shutdown()
//
//	stats := mgr.ScalingHistory()
//
// # Observability
//
// Every cycle and every applied action runs inside an OpenTelemetry span,
// and the package registers Prometheus collectors under the
// "foresight_adaptive" prefix.
package adaptive

// Package substrate is the execution boundary the controller acts on.
//
// [Substrate] is the narrow set of operations the adaptive manager issues:
// resize a pool, reserve memory, force a collection, redistribute load and
// throttle intake. [Runtime] is the in-process implementation: named pools of
// goroutine workers fed by bounded queues, with intake gated by a token
// bucket limiter.
package substrate

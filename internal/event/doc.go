// Package event provides a pub-sub event bus for observing the adaptive
// resource manager without coupling to it.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Adaptation cycles:
//   - [CycleStartedEvent]: an optimization cycle began
//   - [CycleCompletedEvent]: an optimization cycle ended, with applied/failed counts
//
// Actions:
//   - [ActionAppliedEvent]: the execution substrate accepted an action
//   - [ActionFailedEvent]: the substrate rejected an action, or admission did (when audited)
//
// Policies:
//   - [PolicyFiredEvent]: a declarative policy matched outside its cooldown
//   - [PolicyUpdatedEvent]: a policy was inserted or replaced
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Multiple goroutines can publish
// and subscribe concurrently. Handlers are called synchronously and protected
// against panics - a panicking handler will not prevent other handlers from
// being called.
//
// Because delivery is synchronous, handlers run on the adaptation loop's
// goroutine and should return quickly.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	bus.Subscribe(event.TypeActionApplied, func(e event.Event) {
//	    applied := e.(event.ActionAppliedEvent)
//	    log.Printf("applied %s from %s", applied.Action, applied.Source)
//	})
//
//	bus.SubscribeAll(func(e event.Event) {
//	    log.Printf("Event: %s at %v", e.EventType(), e.Timestamp())
//	})
package event

// Package policy implements the declarative rule layer of the controller.
//
// A [Policy] is a named set of [Condition] values joined by AND, a list of
// actions fired together when every condition holds, and a cooldown that
// suppresses refiring. The [Engine] evaluates policies in registration order
// against a metrics snapshot and stamps LastApplied on each one that fires.
//
// Condition metrics are addressed by path:
//
//	cpu, memory, network, load
//	threads.<pool>   thread-pool utilization
//	queue.<pool>     queue length
//
// The pool segment may be a glob ("threads.io-*"). Such a condition holds
// when any matching pool satisfies it. Unknown paths never hold.
//
// Policies can be loaded from YAML with [LoadFile] and kept in sync with the
// file by a [Watcher].
package policy

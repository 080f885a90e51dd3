// Package event defines event types for decoupling the controller from its
// observers. The adaptive manager publishes, while loggers, metrics sinks
// and tests subscribe.
package event

import (
	"time"

	"github.com/Iron-Ham/foresight/internal/resource"
)

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "adaptation.cycle_started").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// Event type identifiers.
const (
	TypeCycleStarted   = "adaptation.cycle_started"
	TypeCycleCompleted = "adaptation.cycle_completed"
	TypeActionApplied  = "adaptation.action_applied"
	TypeActionFailed   = "adaptation.action_failed"
	TypePolicyFired    = "policy.fired"
	TypePolicyUpdated  = "policy.updated"
	TypePolicyRemoved  = "policy.removed"
)

// -----------------------------------------------------------------------------
// Adaptation Cycle Events
// -----------------------------------------------------------------------------

// CycleStartedEvent is emitted when an optimization cycle acquires the
// reentrancy guard.
type CycleStartedEvent struct {
	baseEvent
	CycleID string
}

// NewCycleStartedEvent creates a CycleStartedEvent.
func NewCycleStartedEvent(cycleID string) CycleStartedEvent {
	return CycleStartedEvent{
		baseEvent: newBaseEvent(TypeCycleStarted),
		CycleID:   cycleID,
	}
}

// CycleCompletedEvent is emitted when an optimization cycle ends, whether or
// not it applied anything.
type CycleCompletedEvent struct {
	baseEvent
	CycleID  string
	Applied  int           // Actions applied successfully
	Failed   int           // Actions the substrate rejected
	Duration time.Duration // Wall time of the cycle
	Error    string        // Non-empty if the cycle aborted
}

// NewCycleCompletedEvent creates a CycleCompletedEvent.
func NewCycleCompletedEvent(cycleID string, applied, failed int, duration time.Duration, errMsg string) CycleCompletedEvent {
	return CycleCompletedEvent{
		baseEvent: newBaseEvent(TypeCycleCompleted),
		CycleID:   cycleID,
		Applied:   applied,
		Failed:    failed,
		Duration:  duration,
		Error:     errMsg,
	}
}

// Succeeded reports whether the cycle ran to completion.
func (e CycleCompletedEvent) Succeeded() bool {
	return e.Error == ""
}

// -----------------------------------------------------------------------------
// Action Events
// -----------------------------------------------------------------------------

// ActionAppliedEvent is emitted after the substrate accepts an action.
type ActionAppliedEvent struct {
	baseEvent
	CycleID string
	Action  resource.Action
	Source  string // "predictive" or "policy:<name>"
}

// NewActionAppliedEvent creates an ActionAppliedEvent.
func NewActionAppliedEvent(cycleID string, action resource.Action, source string) ActionAppliedEvent {
	return ActionAppliedEvent{
		baseEvent: newBaseEvent(TypeActionApplied),
		CycleID:   cycleID,
		Action:    action,
		Source:    source,
	}
}

// ActionFailedEvent is emitted when the substrate rejects an action, or
// when admission rejects one and rejections are audited.
type ActionFailedEvent struct {
	baseEvent
	CycleID string
	Action  resource.Action
	Source  string
	Reason  string
}

// NewActionFailedEvent creates an ActionFailedEvent.
func NewActionFailedEvent(cycleID string, action resource.Action, source, reason string) ActionFailedEvent {
	return ActionFailedEvent{
		baseEvent: newBaseEvent(TypeActionFailed),
		CycleID:   cycleID,
		Action:    action,
		Source:    source,
		Reason:    reason,
	}
}

// -----------------------------------------------------------------------------
// Policy Events
// -----------------------------------------------------------------------------

// PolicyFiredEvent is emitted when a policy's conditions hold outside its
// cooldown.
type PolicyFiredEvent struct {
	baseEvent
	CycleID     string
	PolicyName  string
	ActionCount int
}

// NewPolicyFiredEvent creates a PolicyFiredEvent.
func NewPolicyFiredEvent(cycleID, policyName string, actionCount int) PolicyFiredEvent {
	return PolicyFiredEvent{
		baseEvent:   newBaseEvent(TypePolicyFired),
		CycleID:     cycleID,
		PolicyName:  policyName,
		ActionCount: actionCount,
	}
}

// PolicyUpdatedEvent is emitted when a policy is inserted or replaced.
type PolicyUpdatedEvent struct {
	baseEvent
	PolicyName string
}

// NewPolicyUpdatedEvent creates a PolicyUpdatedEvent.
func NewPolicyUpdatedEvent(policyName string) PolicyUpdatedEvent {
	return PolicyUpdatedEvent{
		baseEvent:  newBaseEvent(TypePolicyUpdated),
		PolicyName: policyName,
	}
}

// PolicyRemovedEvent is emitted when a policy is deleted.
type PolicyRemovedEvent struct {
	baseEvent
	PolicyName string
}

// NewPolicyRemovedEvent creates a PolicyRemovedEvent.
func NewPolicyRemovedEvent(policyName string) PolicyRemovedEvent {
	return PolicyRemovedEvent{
		baseEvent:  newBaseEvent(TypePolicyRemoved),
		PolicyName: policyName,
	}
}

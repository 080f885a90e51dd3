// Package errors provides centralized error definitions and error handling utilities
// for the foresight controller. It defines domain-specific errors, semantic error
// types, error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - MetricsError: errors sampling or validating system metrics
//   - ActionError: errors applying a resource action to the execution substrate
//   - PolicyError: errors related to declarative policy rules
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid input or state
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewMetricsError("sample failed", errors.ErrMetricsUnavailable).WithProvider("host")
//	err := errors.NewActionError("scale failed", cause).WithAction("scale-threads", "io")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrMetricsUnavailable) { ... }
//
//	var actionErr *errors.ActionError
//	if errors.As(err, &actionErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on a later cycle
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Metrics-related sentinel errors
var (
	// ErrMetricsUnavailable indicates the metrics provider could not produce a snapshot.
	ErrMetricsUnavailable = New("metrics unavailable")
	// ErrInvalidMetrics indicates a snapshot contained non-finite or out-of-range values.
	ErrInvalidMetrics = New("invalid metrics")
)

// Action-related sentinel errors
var (
	// ErrUnknownAction indicates an action type the controller does not understand.
	ErrUnknownAction = New("unknown action type")
	// ErrActionRejected indicates an action failed admission against resource limits.
	ErrActionRejected = New("action rejected by admission")
	// ErrSubstrateFailure indicates the execution substrate failed to apply an action.
	ErrSubstrateFailure = New("execution substrate failure")
	// ErrPoolNotFound indicates the substrate has no pool with the requested name.
	ErrPoolNotFound = New("pool not found")
)

// Controller-related sentinel errors
var (
	// ErrManagerStopped indicates the manager has been shut down.
	ErrManagerStopped = New("manager stopped")
	// ErrInvalidPolicy indicates a policy definition is malformed.
	ErrInvalidPolicy = New("invalid policy")
	// ErrPolicyNotFound indicates a policy could not be found.
	ErrPolicyNotFound = New("policy not found")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// formatWithContext renders "prefix [k=v, ...]: message: cause".
func (e *baseError) formatWithContext(prefix string, parts []string) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// MetricsError represents errors sampling or validating system metrics.
//
// Example:
//
//	err := errors.NewMetricsError("sample failed", errors.ErrMetricsUnavailable)
//	err = err.WithProvider("host").WithField("cpu")
//	fmt.Println(err) // "metrics error [provider=host, field=cpu]: sample failed: metrics unavailable"
type MetricsError struct {
	baseError
	Provider string
	Field    string
}

// NewMetricsError creates a new MetricsError. Metrics errors are retryable
// by default since the next monitor tick may succeed.
func NewMetricsError(message string, cause error) *MetricsError {
	return &MetricsError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityWarning,
			retryable: true,
		},
	}
}

// WithProvider adds the metrics provider name to the error context.
func (e *MetricsError) WithProvider(name string) *MetricsError {
	e.Provider = name
	return e
}

// WithField adds the offending metric field to the error context.
func (e *MetricsError) WithField(field string) *MetricsError {
	e.Field = field
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *MetricsError) WithRetryable(r bool) *MetricsError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *MetricsError) Error() string {
	var parts []string
	if e.Provider != "" {
		parts = append(parts, fmt.Sprintf("provider=%s", e.Provider))
	}
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	return e.formatWithContext("metrics error", parts)
}

// Is checks if this error matches the target.
func (e *MetricsError) Is(target error) bool {
	if _, ok := target.(*MetricsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ActionError represents errors applying a resource action.
//
// Example:
//
//	err := errors.NewActionError("scale pool", errors.ErrPoolNotFound)
//	err = err.WithAction("scale-threads", "io")
type ActionError struct {
	baseError
	ActionType string
	Target     string
}

// NewActionError creates a new ActionError.
func NewActionError(message string, cause error) *ActionError {
	return &ActionError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: false,
		},
	}
}

// WithAction adds the action type and target to the error context.
func (e *ActionError) WithAction(actionType, target string) *ActionError {
	e.ActionType = actionType
	e.Target = target
	return e
}

// WithSeverity sets the error severity.
func (e *ActionError) WithSeverity(s Severity) *ActionError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *ActionError) WithRetryable(r bool) *ActionError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *ActionError) Error() string {
	var parts []string
	if e.ActionType != "" {
		parts = append(parts, fmt.Sprintf("type=%s", e.ActionType))
	}
	if e.Target != "" {
		parts = append(parts, fmt.Sprintf("target=%s", e.Target))
	}
	return e.formatWithContext("action error", parts)
}

// Is checks if this error matches the target.
func (e *ActionError) Is(target error) bool {
	if _, ok := target.(*ActionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PolicyError represents errors related to declarative policies.
type PolicyError struct {
	baseError
	PolicyName string
	Source     string // file the policy was loaded from, if any
}

// NewPolicyError creates a new PolicyError.
func NewPolicyError(message string, cause error) *PolicyError {
	return &PolicyError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
	}
}

// WithPolicy adds the policy name to the error context.
func (e *PolicyError) WithPolicy(name string) *PolicyError {
	e.PolicyName = name
	return e
}

// WithSource adds the policy file path to the error context.
func (e *PolicyError) WithSource(path string) *PolicyError {
	e.Source = path
	return e
}

// Error returns the formatted error message.
func (e *PolicyError) Error() string {
	var parts []string
	if e.PolicyName != "" {
		parts = append(parts, fmt.Sprintf("policy=%s", e.PolicyName))
	}
	if e.Source != "" {
		parts = append(parts, fmt.Sprintf("source=%s", e.Source))
	}
	return e.formatWithContext("policy error", parts)
}

// Is checks if this error matches the target.
func (e *PolicyError) Is(target error) bool {
	if _, ok := target.(*PolicyError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError indicates invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("must be within [0,1]").WithField("cpu").WithValue(1.4)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:  message,
			cause:    ErrInvalidInput,
			severity: SeverityWarning,
		},
	}
}

// WithField sets the field that failed validation.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue sets the invalid value.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause replaces the underlying cause.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation error")
	if e.Field != "" {
		sb.WriteString(fmt.Sprintf(" [field=%s]", e.Field))
	}
	sb.WriteString(": ")
	sb.WriteString(e.message)
	if e.Value != nil {
		sb.WriteString(fmt.Sprintf(" (got: %v)", e.Value))
	}
	return sb.String()
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable reports whether err is transient. Context deadline and
// timeout errors are retryable; typed errors report their own flag.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) {
		return true
	}

	var retryable interface{ IsRetryable() bool }
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	return false
}

// GetSeverity returns the severity of err, defaulting to SeverityError for
// errors that do not carry one.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityInfo
	}
	var sev interface{ Severity() Severity }
	if errors.As(err, &sev) {
		return sev.Severity()
	}
	return SeverityError
}

// Wrap wraps err with a message. Returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps err with a formatted message. Returns nil if err is nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

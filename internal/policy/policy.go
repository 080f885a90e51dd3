package policy

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/foresight/internal/errors"
	"github.com/Iron-Ham/foresight/internal/resource"
)

// Operator compares a metric value against a condition threshold.
type Operator string

const (
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "=="

	// OpTrendUp and OpTrendDown are accepted but never hold.
	OpTrendUp   Operator = "trend_up"
	OpTrendDown Operator = "trend_down"
)

// String returns the string representation of the operator.
func (o Operator) String() string {
	return string(o)
}

// Valid reports whether o is a known operator.
func (o Operator) Valid() bool {
	switch o {
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual, OpEqual, OpTrendUp, OpTrendDown:
		return true
	default:
		return false
	}
}

// Metric path roots.
const (
	MetricCPU     = "cpu"
	MetricMemory  = "memory"
	MetricNetwork = "network"
	MetricLoad    = "load"

	threadsPrefix = "threads."
	queuePrefix   = "queue."
)

// Condition is a single threshold test on a metric path.
type Condition struct {
	Metric    string   `yaml:"metric" json:"metric"`
	Operator  Operator `yaml:"operator" json:"operator"`
	Threshold float64  `yaml:"threshold" json:"threshold"`

	// TimeWindow is reserved for windowed conditions and currently unused.
	TimeWindow time.Duration `yaml:"time_window,omitempty" json:"time_window,omitempty"`
}

// String renders the condition as "metric op threshold".
func (c Condition) String() string {
	return fmt.Sprintf("%s %s %g", c.Metric, c.Operator, c.Threshold)
}

// Policy is a declarative rule: when every condition holds and the cooldown
// has elapsed, all actions fire.
type Policy struct {
	Name       string            `yaml:"name" json:"name"`
	Conditions []Condition       `yaml:"conditions" json:"conditions"`
	Actions    []resource.Action `yaml:"actions" json:"actions"`
	Cooldown   time.Duration     `yaml:"cooldown" json:"cooldown"`

	// LastApplied is when the policy last fired. The zero value means never.
	// Only the Engine advances it.
	LastApplied time.Time `yaml:"-" json:"last_applied,omitzero"`
}

// Clone returns a deep copy of p.
func (p Policy) Clone() Policy {
	p.Conditions = slices.Clone(p.Conditions)
	p.Actions = slices.Clone(p.Actions)
	return p
}

// Validate checks the policy's structure. The returned error wraps
// errors.ErrInvalidPolicy.
func (p Policy) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid(p.Name, "name is required")
	}
	if p.Cooldown < 0 {
		return invalid(p.Name, fmt.Sprintf("cooldown must be non-negative, got %s", p.Cooldown))
	}
	for i, c := range p.Conditions {
		if !c.Operator.Valid() {
			return invalid(p.Name, fmt.Sprintf("condition %d: unknown operator %q", i, c.Operator))
		}
		if c.Metric == "" {
			return invalid(p.Name, fmt.Sprintf("condition %d: metric is required", i))
		}
		if _, pattern, ok := splitPoolPath(c.Metric); ok {
			if _, err := glob.Compile(pattern); err != nil {
				return invalid(p.Name, fmt.Sprintf("condition %d: bad pool pattern %q: %v", i, pattern, err))
			}
		}
	}
	for i, a := range p.Actions {
		if !a.Type.Valid() {
			return invalid(p.Name, fmt.Sprintf("action %d: unknown type %q", i, a.Type))
		}
		if a.Magnitude < 0 {
			return invalid(p.Name, fmt.Sprintf("action %d: magnitude must be non-negative", i))
		}
	}
	return nil
}

func invalid(name, msg string) error {
	return errors.NewPolicyError(msg, errors.ErrInvalidPolicy).WithPolicy(name)
}

// splitPoolPath splits "threads.<pattern>" or "queue.<pattern>" into its
// root and pattern.
func splitPoolPath(metric string) (root, pattern string, ok bool) {
	for _, prefix := range []string{threadsPrefix, queuePrefix} {
		if rest, found := strings.CutPrefix(metric, prefix); found && rest != "" {
			return strings.TrimSuffix(prefix, "."), rest, true
		}
	}
	return "", "", false
}

// compare applies op. Trend operators always report false.
func compare(op Operator, value, threshold float64) bool {
	switch op {
	case OpGreater:
		return value > threshold
	case OpLess:
		return value < threshold
	case OpGreaterEqual:
		return value >= threshold
	case OpLessEqual:
		return value <= threshold
	case OpEqual:
		return value == threshold
	default:
		return false
	}
}

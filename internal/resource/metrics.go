package resource

import (
	"fmt"
	"maps"
	"math"
	"time"

	"github.com/Iron-Ham/foresight/internal/errors"
)

// SystemMetrics is a point-in-time snapshot of controller-relevant load.
// Utilization values are fractions in [0,1].
type SystemMetrics struct {
	Timestamp          time.Time
	CPUUtilization     float64
	MemoryUtilization  float64
	NetworkUtilization float64

	// Per-pool views keyed by pool name.
	ThreadPoolUtilization map[string]float64
	QueueSizes            map[string]int
	AverageTaskDuration   map[string]time.Duration

	// SystemLoad is the normalized load average (>= 0, may exceed 1).
	SystemLoad float64
}

// Clone returns a deep copy of the snapshot.
func (m SystemMetrics) Clone() SystemMetrics {
	m.ThreadPoolUtilization = maps.Clone(m.ThreadPoolUtilization)
	m.QueueSizes = maps.Clone(m.QueueSizes)
	m.AverageTaskDuration = maps.Clone(m.AverageTaskDuration)
	return m
}

// Validate checks that every value is finite and within its documented range.
// The returned error wraps errors.ErrInvalidMetrics.
func (m SystemMetrics) Validate() error {
	check := func(field string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
			return invalidField(field, v)
		}
		return nil
	}

	if err := check("cpu", m.CPUUtilization); err != nil {
		return err
	}
	if err := check("memory", m.MemoryUtilization); err != nil {
		return err
	}
	if err := check("network", m.NetworkUtilization); err != nil {
		return err
	}
	for pool, v := range m.ThreadPoolUtilization {
		if err := check("threads."+pool, v); err != nil {
			return err
		}
	}
	for pool, n := range m.QueueSizes {
		if n < 0 {
			return invalidField("queue."+pool, n)
		}
	}
	for pool, d := range m.AverageTaskDuration {
		if d < 0 {
			return invalidField("duration."+pool, d)
		}
	}
	if math.IsNaN(m.SystemLoad) || math.IsInf(m.SystemLoad, 0) || m.SystemLoad < 0 {
		return invalidField("load", m.SystemLoad)
	}
	return nil
}

func invalidField(field string, v any) error {
	return errors.NewValidationError(fmt.Sprintf("%s out of range", field)).
		WithField(field).
		WithValue(v).
		WithCause(errors.ErrInvalidMetrics)
}

// Clamp01 limits v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

package anomaly

import (
	"fmt"
	"math"

	"github.com/HerbHall/solarwatch/pkg/energy"
)

// Method selects the detection strategy applied to a window.
type Method string

// Detection methods.
const (
	MethodWindowAverage Method = "windowAverage"
	MethodAbsolute      Method = "absolute"
)

// Default thresholds.
const (
	DefaultWindowThresholdPercent = 40.0
	DefaultAbsoluteThreshold      = 5.0
)

// Methods lists every supported method in display order.
func Methods() []Method {
	return []Method{MethodWindowAverage, MethodAbsolute}
}

// ParseMethod maps a method name to a Method. The empty string selects
// MethodWindowAverage; any other unknown name is an ErrInvalidArgument.
func ParseMethod(name string) (Method, error) {
	switch Method(name) {
	case "":
		return MethodWindowAverage, nil
	case MethodWindowAverage, MethodAbsolute:
		return Method(name), nil
	default:
		return "", fmt.Errorf("%w: unknown detection method %q (want %q or %q)",
			ErrInvalidArgument, name, MethodWindowAverage, MethodAbsolute)
	}
}

// ParseMethodLenient is ParseMethod for callers that still send free-form
// names: unknown names fall back to MethodWindowAverage. The second result
// reports whether the name was recognized.
func ParseMethodLenient(name string) (Method, bool) {
	m, err := ParseMethod(name)
	if err != nil {
		return MethodWindowAverage, false
	}
	return m, true
}

// DefaultOptions returns the default thresholds for both methods.
func DefaultOptions() energy.Options {
	return energy.Options{
		WindowThresholdPercent: DefaultWindowThresholdPercent,
		AbsoluteThreshold:      DefaultAbsoluteThreshold,
	}
}

// ValidateOptions checks that both thresholds are usable.
// The window threshold must be positive; the absolute threshold may be zero.
func ValidateOptions(opts energy.Options) error {
	if !isFinite(opts.WindowThresholdPercent) || opts.WindowThresholdPercent <= 0 {
		return fmt.Errorf("%w: windowThresholdPercent must be a positive number, got %v",
			ErrInvalidArgument, opts.WindowThresholdPercent)
	}
	if !isFinite(opts.AbsoluteThreshold) || opts.AbsoluteThreshold < 0 {
		return fmt.Errorf("%w: absoluteThreshold must be a non-negative number, got %v",
			ErrInvalidArgument, opts.AbsoluteThreshold)
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

package metrics

import (
	"context"
	"errors"
	"strconv"
)

// Source represents a single host metric that can be sampled at runtime.
// Each source returns its current value as a string so that the caller can
// publish the data without further conversions. Keeping the value as a
// string makes it trivial to add sources that do not naturally fit into a
// numerical type (e.g. battery state).
type Source interface {
	// Sample returns the current metric value encoded as a string. It
	// returns an error wrapping ErrUnavailable when the underlying
	// resource does not exist on this host right now (no battery fitted,
	// drive not mounted); callers are expected to skip publication for
	// such samples rather than treat them as failures.
	Sample(ctx context.Context) (string, error)
}

// ErrUnavailable signals that the metric has no value on this host at the
// moment.
var ErrUnavailable = errors.New("metric unavailable")

// formatPercent clamps v to the [0, 100] range and renders it with two
// decimals, the precision used for every percentage metric.
func formatPercent(v float64) string {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

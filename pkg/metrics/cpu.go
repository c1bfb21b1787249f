package metrics

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
)

// CPU reports the share of CPU time spent busy since the previous sample.
// Busy counts user plus system time, total adds idle on top; everything else
// (iowait, irq, steal) is deliberately left out of the ratio. The first
// window opens when the source is created, so a sample taken before any
// window has elapsed reports ErrUnavailable.
type CPU struct {
	prevBusy    float64
	prevTotal   float64
	initialized bool
}

// NewCPU returns a CPU source primed with an initial reading so that the
// first real sample covers the window since construction.
func NewCPU() *CPU {
	c := &CPU{}
	if times, err := cpu.Times(false); err == nil && len(times) > 0 {
		c.observe(times[0].User+times[0].System, times[0].Idle)
	}
	return c
}

// Sample implements Source: reads the aggregate CPU times, computes the busy
// share of the delta since the previous call, and returns it clamped to
// [0, 100] with two decimals.
func (c *CPU) Sample(ctx context.Context) (string, error) {
	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return "", err
	}
	if len(times) == 0 {
		return "", ErrUnavailable
	}

	pct, ok := c.observe(times[0].User+times[0].System, times[0].Idle)
	if !ok {
		return "", ErrUnavailable
	}
	return formatPercent(pct), nil
}

// observe folds a new (busy, idle) reading into the source state and returns
// the busy percentage over the closed window. The first observation only
// opens the window; a window with no elapsed time cannot produce a ratio.
func (c *CPU) observe(busy, idle float64) (float64, bool) {
	total := busy + idle

	if !c.initialized {
		c.prevBusy = busy
		c.prevTotal = total
		c.initialized = true
		return 0, false
	}

	busyDelta := busy - c.prevBusy
	totalDelta := total - c.prevTotal
	c.prevBusy = busy
	c.prevTotal = total

	if totalDelta <= 0 {
		return 0, false
	}
	return 100 * busyDelta / totalDelta, true
}

package metrics

import (
	"context"

	"github.com/shirou/gopsutil/v3/mem"
)

// Swap reports used swap space as a percentage of total. Hosts with no swap
// configured report zero rather than unavailable.
type Swap struct{}

// NewSwap returns a new Swap source.
func NewSwap() *Swap { return &Swap{} }

// Sample implements Source.
func (s *Swap) Sample(ctx context.Context) (string, error) {
	sw, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return "", err
	}
	return formatPercent(sw.UsedPercent), nil
}

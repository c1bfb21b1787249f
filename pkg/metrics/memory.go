package metrics

import (
	"context"

	"github.com/shirou/gopsutil/v3/mem"
)

// Memory reports used physical memory as a percentage of total. Used is
// total minus available, so reclaimable caches do not count against the
// host.
type Memory struct{}

// NewMemory returns a new Memory source.
func NewMemory() *Memory { return &Memory{} }

// Sample implements Source.
func (m *Memory) Sample(ctx context.Context) (string, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return "", err
	}
	if vm.Total == 0 {
		return "", ErrUnavailable
	}
	return formatPercent(100 * float64(vm.Total-vm.Available) / float64(vm.Total)), nil
}

package metrics

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
)

// Drive reports the used share of the filesystem mounted at a path. A path
// that cannot be statted (device unplugged, not mounted yet) reports
// ErrUnavailable so that one missing drive does not disturb the rest of the
// tick.
type Drive struct {
	path string
}

// NewDrive returns a Drive source for the filesystem at path.
func NewDrive(path string) *Drive {
	return &Drive{path: path}
}

// Sample implements Source.
func (d *Drive) Sample(ctx context.Context) (string, error) {
	usage, err := disk.UsageWithContext(ctx, d.path)
	if err != nil {
		return "", fmt.Errorf("%w: stat %s: %v", ErrUnavailable, d.path, err)
	}
	if usage.Total == 0 {
		return "", fmt.Errorf("%w: %s reports zero capacity", ErrUnavailable, d.path)
	}
	return formatPercent(100 * float64(usage.Total-usage.Free) / float64(usage.Total)), nil
}

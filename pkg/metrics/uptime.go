package metrics

import (
	"context"
	"strconv"

	"github.com/shirou/gopsutil/v3/host"
)

// Uptime reports the time since the host booted, in days. Days keep the
// number readable on long-lived machines where seconds overflow dashboards.
type Uptime struct{}

// NewUptime returns a new Uptime source.
func NewUptime() *Uptime { return &Uptime{} }

// Sample implements Source.
func (u *Uptime) Sample(ctx context.Context) (string, error) {
	secs, err := host.UptimeWithContext(ctx)
	if err != nil {
		return "", err
	}
	return uptimeDays(secs), nil
}

// uptimeDays renders seconds since boot as days with two decimals.
func uptimeDays(secs uint64) string {
	return strconv.FormatFloat(float64(secs)/86400, 'f', 2, 64)
}

package metrics

import (
	"context"
	"strconv"
	"testing"
)

func TestUptimeSample(t *testing.T) {
	value, err := NewUptime().Sample(context.Background())
	if err != nil {
		t.Fatalf("expected an uptime reading, got %v", err)
	}

	days, err := strconv.ParseFloat(value, 64)
	if err != nil {
		t.Fatalf("expected a numeric day count, got %q", value)
	}
	if days < 0 {
		t.Fatalf("expected a non-negative day count, got %v", days)
	}
}

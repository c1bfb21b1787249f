package metrics

import (
	"context"
	"strconv"
	"testing"
)

func TestSwapSample(t *testing.T) {
	value, err := NewSwap().Sample(context.Background())
	if err != nil {
		t.Fatalf("expected a swap reading even without swap configured, got %v", err)
	}

	pct, err := strconv.ParseFloat(value, 64)
	if err != nil {
		t.Fatalf("expected a numeric percentage, got %q", value)
	}
	if pct < 0 || pct > 100 {
		t.Fatalf("expected percentage in [0, 100], got %v", pct)
	}
}

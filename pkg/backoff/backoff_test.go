package backoff

import (
	"testing"
	"time"
)

func TestNextBounds(t *testing.T) {
	base := 100 * time.Millisecond
	max := 5 * time.Second
	b := New(base, max)

	prev := time.Duration(0)
	for i := 0; i < 50; i++ {
		d := b.Next()
		if d > max {
			t.Fatalf("attempt %d: delay %v exceeds cap %v", i, d, max)
		}
		if d < prev {
			t.Fatalf("attempt %d: delay %v is shorter than previous %v", i, d, prev)
		}
		prev = d
	}

	if prev != max {
		t.Fatalf("expected sequence to settle at cap %v, got %v", max, prev)
	}
}

func TestNextStepRanges(t *testing.T) {
	base := time.Second
	max := time.Minute
	b := New(base, max)

	// Each un-jittered step is base*2^n; jitter adds at most half of that.
	for i := 0; i < 5; i++ {
		want := base << uint(i)
		d := b.Next()
		if d < want {
			t.Fatalf("attempt %d: delay %v below un-jittered step %v", i, d, want)
		}
		if d > want+want/2 {
			t.Fatalf("attempt %d: delay %v above jitter ceiling %v", i, d, want+want/2)
		}
	}
}

func TestNextAtCap(t *testing.T) {
	b := New(time.Second, 4*time.Second)

	for i := 0; i < 10; i++ {
		b.Next()
	}
	for i := 0; i < 5; i++ {
		if d := b.Next(); d != 4*time.Second {
			t.Fatalf("expected capped delay 4s, got %v", d)
		}
	}
}

func TestReset(t *testing.T) {
	base := time.Second
	b := New(base, time.Minute)

	for i := 0; i < 6; i++ {
		b.Next()
	}
	b.Reset()

	d := b.Next()
	if d < base || d > base+base/2 {
		t.Fatalf("expected delay in [%v, %v] after reset, got %v", base, base+base/2, d)
	}
}

func TestNewDefaults(t *testing.T) {
	tests := []struct {
		name     string
		base     time.Duration
		max      time.Duration
		wantBase time.Duration
		wantMax  time.Duration
	}{
		{
			name:     "zero base falls back to one second",
			base:     0,
			max:      time.Minute,
			wantBase: time.Second,
			wantMax:  time.Minute,
		},
		{
			name:     "negative base falls back to one second",
			base:     -time.Second,
			max:      time.Minute,
			wantBase: time.Second,
			wantMax:  time.Minute,
		},
		{
			name:     "max below base is raised to base",
			base:     10 * time.Second,
			max:      time.Second,
			wantBase: 10 * time.Second,
			wantMax:  10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(tt.base, tt.max)
			if b.base != tt.wantBase {
				t.Errorf("base = %v, want %v", b.base, tt.wantBase)
			}
			if b.max != tt.wantMax {
				t.Errorf("max = %v, want %v", b.max, tt.wantMax)
			}
		})
	}
}

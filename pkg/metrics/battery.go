package metrics

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/distatus/battery"
)

// The battery sources all read through firstBattery, which surfaces the
// first battery the host exposes. distatus reports partial failures through
// its Errors slice; a battery whose read failed is skipped the same way a
// missing one is.

// BatteryLevel reports the charge of the first battery as an integer
// percentage of its full capacity.
type BatteryLevel struct{}

// NewBatteryLevel returns a new BatteryLevel source.
func NewBatteryLevel() *BatteryLevel { return &BatteryLevel{} }

// Sample implements Source.
func (b *BatteryLevel) Sample(_ context.Context) (string, error) {
	bat, err := firstBattery()
	if err != nil {
		return "", err
	}
	if bat.Full == 0 {
		return "", ErrUnavailable
	}
	pct := 100 * bat.Current / bat.Full
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return strconv.Itoa(int(math.Round(pct))), nil
}

// BatteryState reports the charging state of the first battery as one of
// charging, discharging, empty, full, idle or unknown.
type BatteryState struct{}

// NewBatteryState returns a new BatteryState source.
func NewBatteryState() *BatteryState { return &BatteryState{} }

// Sample implements Source.
func (b *BatteryState) Sample(_ context.Context) (string, error) {
	bat, err := firstBattery()
	if err != nil {
		return "", err
	}
	return stateToken(bat.State.String()), nil
}

// BatteryCharging reports ON while the first battery is charging and OFF
// otherwise, shaped for a binary sensor.
type BatteryCharging struct{}

// NewBatteryCharging returns a new BatteryCharging source.
func NewBatteryCharging() *BatteryCharging { return &BatteryCharging{} }

// Sample implements Source.
func (b *BatteryCharging) Sample(_ context.Context) (string, error) {
	bat, err := firstBattery()
	if err != nil {
		return "", err
	}
	if stateToken(bat.State.String()) == "charging" {
		return "ON", nil
	}
	return "OFF", nil
}

// firstBattery returns the first battery distatus can fully read, or
// ErrUnavailable when the host has none.
func firstBattery() (*battery.Battery, error) {
	batteries, err := battery.GetAll()
	if err != nil {
		partial, ok := err.(battery.Errors)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		for i, bat := range batteries {
			if i < len(partial) && partial[i] != nil {
				continue
			}
			if bat != nil {
				return bat, nil
			}
		}
		return nil, ErrUnavailable
	}
	for _, bat := range batteries {
		if bat != nil {
			return bat, nil
		}
	}
	return nil, ErrUnavailable
}

// stateToken normalizes a battery state to the fixed vocabulary published on
// the state topic. Platform-specific states collapse to unknown.
func stateToken(state string) string {
	switch strings.ToLower(state) {
	case "charging":
		return "charging"
	case "discharging":
		return "discharging"
	case "empty":
		return "empty"
	case "full":
		return "full"
	case "idle":
		return "idle"
	default:
		return "unknown"
	}
}

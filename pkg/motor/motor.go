// Package motor drives the throttle body stepper.
package motor

import (
	"math"

	"github.com/golang/glog"
)

// Driver positions the stepper.
type Driver interface {
	TargetPosition() int64
	SetTargetPosition(int64)
}

// Config defines stepper limits.
type Config struct {
	// Speed is the maximum speed in steps/s.
	Speed float64 `yaml:"speed" env:"SPEED"`
	// Acceleration in steps/s².
	Acceleration float64 `yaml:"acceleration" env:"ACCELERATION"`
	// Deceleration in steps/s².
	Deceleration float64 `yaml:"deceleration" env:"DECELERATION"`
	// Deadband is the minimum target change in steps worth commanding.
	Deadband int64 `yaml:"deadband" env:"DEADBAND"`
}

// Defaults
const (
	DefaultSpeed        float64 = 100000
	DefaultAcceleration float64 = 200000
	DefaultDeceleration float64 = 400000
	DefaultDeadband     int64   = 16
)

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		Speed:        DefaultSpeed,
		Acceleration: DefaultAcceleration,
		Deceleration: DefaultDeceleration,
		Deadband:     DefaultDeadband,
	}
}

// Commander is the last pipeline stage: it turns control values into
// stepper targets, ignoring changes smaller than Deadband.
type Commander struct {
	Driver   Driver
	Deadband int64
}

// NewCommander creates a Commander.
func NewCommander(d Driver, deadband int64) *Commander {
	return &Commander{Driver: d, Deadband: deadband}
}

// SetValue implements pipeline.Consumer.
func (c *Commander) SetValue(v float64) {
	target := int64(math.Round(v))
	diff := target - c.Driver.TargetPosition()
	if diff < 0 {
		diff = -diff
	}
	if diff < c.Deadband {
		return
	}
	glog.V(2).Infof("motor target %d", target)
	c.Driver.SetTargetPosition(target)
}

package filter

import (
	"fmt"
	"math"
)

// Defaults of the adaptive filter.
const (
	DefaultAdaptiveThreshold float64 = 20
	DefaultFastGain          float64 = 0.9
	DefaultSlowGain          float64 = 0.001
)

// AdaptiveConfig configures an AdaptiveExp.
type AdaptiveConfig struct {
	Threshold float64 `yaml:"threshold" env:"THRESHOLD"`
	FastGain  float64 `yaml:"fastGain" env:"FAST_GAIN"`
	SlowGain  float64 `yaml:"slowGain" env:"SLOW_GAIN"`
}

// DefaultAdaptiveConfig returns the defaults.
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		Threshold: DefaultAdaptiveThreshold,
		FastGain:  DefaultFastGain,
		SlowGain:  DefaultSlowGain,
	}
}

// Validate checks the options.
func (c AdaptiveConfig) Validate() error {
	if c.Threshold < 0 || math.IsNaN(c.Threshold) {
		return fmt.Errorf("%w: adaptive threshold %v", ErrInvalidConfig, c.Threshold)
	}
	if !validGain(c.FastGain) {
		return fmt.Errorf("%w: fast gain %v not in (0, 1]", ErrInvalidConfig, c.FastGain)
	}
	if !validGain(c.SlowGain) {
		return fmt.Errorf("%w: slow gain %v not in (0, 1]", ErrInvalidConfig, c.SlowGain)
	}
	return nil
}

func validGain(g float64) bool {
	return g > 0 && g <= 1
}

// AdaptiveExp is an exponential low-pass filter switching between a
// fast gain on steps larger than Threshold and a slow gain on jitter.
// The previous output is seeded with the first sample.
type AdaptiveExp struct {
	conf   AdaptiveConfig
	prev   float64
	primed bool
}

// NewAdaptiveExp creates an AdaptiveExp.
func NewAdaptiveExp(conf AdaptiveConfig) (*AdaptiveExp, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &AdaptiveExp{conf: conf}, nil
}

// Filter implements Filter.
func (f *AdaptiveExp) Filter(sample float64) float64 {
	if !f.primed {
		f.prev, f.primed = sample, true
		return f.prev
	}
	gain := f.conf.SlowGain
	if math.Abs(sample-f.prev) > f.conf.Threshold {
		gain = f.conf.FastGain
	}
	f.prev += gain * (sample - f.prev)
	return f.prev
}

// Value returns the last output.
func (f *AdaptiveExp) Value() float64 {
	return f.prev
}

// Reset implements Resetter.
func (f *AdaptiveExp) Reset() {
	f.prev, f.primed = 0, false
}

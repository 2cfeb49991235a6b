// Package filter provides the stateful signal conditioning filters.
//
// Every filter owns its state; instances are independent and are meant
// to be driven from a single goroutine (the executor's), so they do no
// locking.
package filter

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig indicates filter options are out of range.
var ErrInvalidConfig = errors.New("invalid filter config")

// Filter conditions one sample.
type Filter interface {
	Filter(sample float64) float64
}

// Resetter is implemented by filters with resettable state.
type Resetter interface {
	Reset()
}

// AverageConfig configures a SlidingAverage.
type AverageConfig struct {
	Window    int     `yaml:"window" env:"WINDOW"`
	Threshold float64 `yaml:"threshold" env:"THRESHOLD"`
}

// Validate checks the options.
func (c AverageConfig) Validate() error {
	if c.Window < 1 {
		return fmt.Errorf("%w: window %d must be at least 1", ErrInvalidConfig, c.Window)
	}
	if c.Threshold < 0 || math.IsNaN(c.Threshold) {
		return fmt.Errorf("%w: average threshold %v", ErrInvalidConfig, c.Threshold)
	}
	return nil
}

// SlidingAverage keeps the last N samples and rejects outliers.
//
// A sample deviating from the window mean by at most Threshold is
// trusted and returned as-is; a sample deviating more is treated as
// noise and the mean is returned instead. The first sample is
// replicated into every slot so the mean is always defined.
type SlidingAverage struct {
	threshold float64
	window    []float64
	next      int
	primed    bool
}

// NewSlidingAverage creates a SlidingAverage.
func NewSlidingAverage(conf AverageConfig) (*SlidingAverage, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &SlidingAverage{
		threshold: conf.Threshold,
		window:    make([]float64, conf.Window),
	}, nil
}

// Filter implements Filter.
func (f *SlidingAverage) Filter(sample float64) float64 {
	if !f.primed {
		for n := range f.window {
			f.window[n] = sample
		}
		f.primed = true
	} else {
		f.window[f.next] = sample
		f.next = (f.next + 1) % len(f.window)
	}
	mean := f.Mean()
	if math.Abs(sample-mean) > f.threshold {
		return mean
	}
	return sample
}

// Mean returns the arithmetic mean over the window, 0 before the
// first sample.
func (f *SlidingAverage) Mean() float64 {
	if !f.primed {
		return 0
	}
	var sum float64
	for _, v := range f.window {
		sum += v
	}
	return sum / float64(len(f.window))
}

// Samples returns the window from the oldest to the newest sample.
func (f *SlidingAverage) Samples() []float64 {
	if !f.primed {
		return nil
	}
	samples := make([]float64, 0, len(f.window))
	samples = append(samples, f.window[f.next:]...)
	return append(samples, f.window[:f.next]...)
}

// Reset implements Resetter.
func (f *SlidingAverage) Reset() {
	f.next, f.primed = 0, false
}

package pipeline

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// ErrEmptyRange indicates the input range has no width.
var ErrEmptyRange = errors.New("empty input range")

// MapperConfig defines a linear range remap.
type MapperConfig struct {
	MinInput  float64 `yaml:"minInput" env:"MIN_INPUT"`
	MaxInput  float64 `yaml:"maxInput" env:"MAX_INPUT"`
	MinOutput float64 `yaml:"minOutput" env:"MIN_OUTPUT"`
	MaxOutput float64 `yaml:"maxOutput" env:"MAX_OUTPUT"`
	// Round rounds the output to the nearest integer.
	Round bool `yaml:"round" env:"ROUND"`
}

// Validate checks the ranges.
func (c MapperConfig) Validate() error {
	if c.MinInput == c.MaxInput {
		return fmt.Errorf("%w: [%v, %v]", ErrEmptyRange, c.MinInput, c.MaxInput)
	}
	for _, v := range []float64{c.MinInput, c.MaxInput, c.MinOutput, c.MaxOutput} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("range bound %v is not finite", v)
		}
	}
	return nil
}

// Map remaps v from the input range to the output range, clamping
// at the output bounds.
func (c MapperConfig) Map(v float64) float64 {
	ratio := (v - c.MinInput) / (c.MaxInput - c.MinInput)
	out := c.MinOutput + ratio*(c.MaxOutput-c.MinOutput)
	lo, hi := c.MinOutput, c.MaxOutput
	if lo > hi {
		lo, hi = hi, lo
	}
	out = math.Max(lo, math.Min(hi, out))
	if c.Round {
		out = math.Round(out)
	}
	return out
}

// Mapper is a Formatter/Scaler stage. It forwards the remapped value
// only when it differs from the last forwarded one. While disabled,
// values are dropped.
type Mapper struct {
	Next Consumer

	conf     MapperConfig
	confLock sync.RWMutex

	disabled int32
	resume   int32

	last     float64
	hasLast  bool
	lastIn   float64
	hasInput bool
}

// NewMapper creates an enabled Mapper.
func NewMapper(conf MapperConfig) (*Mapper, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &Mapper{conf: conf}, nil
}

// Config returns the current ranges.
func (m *Mapper) Config() MapperConfig {
	m.confLock.RLock()
	defer m.confLock.RUnlock()
	return m.conf
}

// SetOutputRange changes the output range and re-emits the last input
// through the new range.
func (m *Mapper) SetOutputRange(minOutput, maxOutput float64) {
	m.confLock.Lock()
	m.conf.MinOutput, m.conf.MaxOutput = minOutput, maxOutput
	m.confLock.Unlock()
	if m.hasInput {
		m.SetValue(m.lastIn)
	}
}

// SetValue implements Consumer.
func (m *Mapper) SetValue(v float64) {
	m.lastIn, m.hasInput = v, true
	if !m.Enabled() {
		return
	}
	out := m.Config().Map(v)
	if atomic.SwapInt32(&m.resume, 0) == 0 && m.hasLast && out == m.last {
		return
	}
	m.last, m.hasLast = out, true
	forward(m.Next, out)
}

// Value returns the last forwarded value. It must be called from the
// goroutine driving the stage.
func (m *Mapper) Value() (float64, bool) {
	return m.last, m.hasLast
}

// Enable implements Switch. The next update after enabling is always
// forwarded.
func (m *Mapper) Enable() {
	if atomic.CompareAndSwapInt32(&m.disabled, 1, 0) {
		atomic.StoreInt32(&m.resume, 1)
	}
}

// Disable implements Switch.
func (m *Mapper) Disable() {
	atomic.StoreInt32(&m.disabled, 1)
}

// Enabled implements Switch.
func (m *Mapper) Enabled() bool {
	return atomic.LoadInt32(&m.disabled) == 0
}

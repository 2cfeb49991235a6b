// Package gpio defines the digital and analog pin collaborators used by
// input nodes, with simulated pins for the bench and tests.
package gpio

import (
	"sync/atomic"
)

// PinLevel is the logic level of a digital pin.
type PinLevel int

// Pin levels.
const (
	Low  PinLevel = 0
	High PinLevel = 1
)

func (l PinLevel) String() string {
	if l == High {
		return "HIGH"
	}
	return "LOW"
}

// Invert returns the opposite level.
func (l PinLevel) Invert() PinLevel {
	if l == High {
		return Low
	}
	return High
}

// InputPin reads a digital level.
type InputPin interface {
	GetLevel() PinLevel
}

// OutputPin drives a digital level.
type OutputPin interface {
	SetLevel(PinLevel)
}

// AnalogInput reads a raw ADC sample.
type AnalogInput interface {
	Read() (int, error)
}

// SimPin is a simulated digital pin safe for concurrent use.
type SimPin struct {
	level int32
}

// NewSimPin creates a SimPin at the given level.
func NewSimPin(level PinLevel) *SimPin {
	p := &SimPin{}
	p.SetLevel(level)
	return p
}

// GetLevel implements InputPin.
func (p *SimPin) GetLevel() PinLevel {
	return PinLevel(atomic.LoadInt32(&p.level))
}

// SetLevel implements OutputPin.
func (p *SimPin) SetLevel(level PinLevel) {
	atomic.StoreInt32(&p.level, int32(level))
}

// SimAnalog is a simulated ADC channel safe for concurrent use.
type SimAnalog struct {
	value int64
	err   atomic.Value
}

// NewSimAnalog creates a SimAnalog with an initial reading.
func NewSimAnalog(value int) *SimAnalog {
	a := &SimAnalog{}
	a.Set(value)
	return a
}

// Set changes the reading.
func (a *SimAnalog) Set(value int) {
	atomic.StoreInt64(&a.value, int64(value))
}

// Fail makes subsequent reads fail with err, nil clears it.
func (a *SimAnalog) Fail(err error) {
	a.err.Store(errBox{err})
}

// Read implements AnalogInput.
func (a *SimAnalog) Read() (int, error) {
	if box, ok := a.err.Load().(errBox); ok && box.err != nil {
		return 0, box.err
	}
	return int(atomic.LoadInt64(&a.value)), nil
}

type errBox struct {
	err error
}

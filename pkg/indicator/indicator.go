// Package indicator drives a status LED with repeating blink patterns.
//
// The Indicator is a Node: each Process compares the clock with the end
// of the current step, so patterns advance without a goroutine per LED.
package indicator

import (
	"sync"
	"time"

	"github.com/robotalks/throttle.go/pkg/gpio"
)

// Step holds a level for a duration.
type Step struct {
	Level    gpio.PinLevel
	Duration time.Duration
}

// Pattern is a sequence of steps repeated until replaced.
// An empty pattern keeps the LED off.
type Pattern []Step

// Blink timings.
const (
	BlinkOn  = 500 * time.Millisecond
	BlinkOff = 500 * time.Millisecond

	CodeLong       = 500 * time.Millisecond
	CodeShort      = 250 * time.Millisecond
	CodeDigitGap   = 250 * time.Millisecond
	CodeRepeatGap  = 3 * time.Second
	MaxErrorCode   = 99
	errorCodeDigit = 10
)

// Off keeps the LED dark.
var Off Pattern

// Blink is a steady on/off blink.
func Blink(on, off time.Duration) Pattern {
	return Pattern{{gpio.High, on}, {gpio.Low, off}}
}

// ErrorCode blinks a two digit code: the tens digit as long flashes,
// the units digit as short flashes, then a long pause.
func ErrorCode(code int) Pattern {
	if code < 0 {
		code = 0
	}
	if code > MaxErrorCode {
		code = MaxErrorCode
	}
	var p Pattern
	for n := 0; n < code/errorCodeDigit; n++ {
		p = append(p, Step{gpio.High, CodeLong}, Step{gpio.Low, CodeLong})
	}
	p = append(p, Step{gpio.Low, CodeDigitGap})
	for n := 0; n < code%errorCodeDigit; n++ {
		p = append(p, Step{gpio.High, CodeShort}, Step{gpio.Low, CodeShort})
	}
	return append(p, Step{gpio.Low, CodeRepeatGap})
}

// Indicator is a Node playing a Pattern on an output pin.
type Indicator struct {
	Pin   gpio.OutputPin
	Clock func() time.Time

	lock    sync.Mutex
	pattern Pattern
	changed bool

	step    int
	until   time.Time
	started bool
	level   gpio.PinLevel
	init    bool
}

// New creates an Indicator, initially off.
func New(pin gpio.OutputPin) *Indicator {
	return &Indicator{Pin: pin, Clock: time.Now}
}

// Name implements framework.Named.
func (ind *Indicator) Name() string {
	return "indicator"
}

// SetPattern replaces the pattern. It restarts from the first step on
// the next Process. Setting an equal pattern is a no-op.
func (ind *Indicator) SetPattern(p Pattern) {
	ind.lock.Lock()
	defer ind.lock.Unlock()
	if equal(ind.pattern, p) {
		return
	}
	ind.pattern, ind.changed = p, true
}

// Pattern returns the current pattern.
func (ind *Indicator) Pattern() Pattern {
	ind.lock.Lock()
	defer ind.lock.Unlock()
	return ind.pattern
}

// Process implements framework.Node.
func (ind *Indicator) Process() {
	ind.lock.Lock()
	pattern, restart := ind.pattern, ind.changed
	ind.changed = false
	ind.lock.Unlock()

	now := ind.now()
	switch {
	case len(pattern) == 0:
		ind.step = 0
		ind.set(gpio.Low)
		return
	case totalDuration(pattern) <= 0:
		ind.step = 0
		ind.set(pattern[0].Level)
		return
	}
	if restart || !ind.started {
		ind.step, ind.until, ind.started = 0, now.Add(pattern[0].Duration), true
	}
	for !now.Before(ind.until) {
		ind.step = (ind.step + 1) % len(pattern)
		ind.until = ind.until.Add(pattern[ind.step].Duration)
	}
	ind.set(pattern[ind.step].Level)
}

func (ind *Indicator) set(level gpio.PinLevel) {
	if ind.init && level == ind.level {
		return
	}
	ind.init, ind.level = true, level
	ind.Pin.SetLevel(level)
}

func (ind *Indicator) now() time.Time {
	if ind.Clock != nil {
		return ind.Clock()
	}
	return time.Now()
}

func totalDuration(p Pattern) (d time.Duration) {
	for _, s := range p {
		d += s.Duration
	}
	return
}

func equal(a, b Pattern) bool {
	if len(a) != len(b) {
		return false
	}
	for n := range a {
		if a[n] != b[n] {
			return false
		}
	}
	return true
}

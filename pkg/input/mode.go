package input

import (
	"strconv"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/throttle.go/pkg/gpio"
)

// ModeState is the position of the three-way mode selector.
type ModeState int32

// Mode states.
const (
	ModeUnknown ModeState = -1
	Mode1       ModeState = 1
	Mode2       ModeState = 2
	Mode3       ModeState = 3
)

func (s ModeState) String() string {
	if s == ModeUnknown {
		return "unknown"
	}
	return "mode" + strconv.Itoa(int(s))
}

// ResolveMode maps the selector pin levels to a mode.
// Combinations outside the truth table resolve to ModeUnknown.
func ResolveMode(level1, level2 gpio.PinLevel) ModeState {
	switch {
	case level1 == gpio.Low && level2 == gpio.High:
		return Mode1
	case level1 == gpio.High && level2 == gpio.High:
		return Mode2
	case level1 == gpio.High && level2 == gpio.Low:
		return Mode3
	}
	return ModeUnknown
}

// ModeListener is notified on mode transitions.
type ModeListener interface {
	ModeChanged(ModeState)
}

// ModeChangedFunc is the func form of ModeListener.
type ModeChangedFunc func(ModeState)

// ModeChanged implements ModeListener.
func (f ModeChangedFunc) ModeChanged(s ModeState) {
	f(s)
}

// ModeButton is a Node sampling the two selector pins.
type ModeButton struct {
	Pin1     gpio.InputPin
	Pin2     gpio.InputPin
	Listener ModeListener

	state int32
}

// NewModeButton creates a ModeButton in ModeUnknown.
func NewModeButton(pin1, pin2 gpio.InputPin) *ModeButton {
	return &ModeButton{Pin1: pin1, Pin2: pin2, state: int32(ModeUnknown)}
}

// Name implements Named.
func (b *ModeButton) Name() string {
	return "mode-button"
}

// State returns the last recorded mode.
func (b *ModeButton) State() ModeState {
	return ModeState(atomic.LoadInt32(&b.state))
}

// Process implements Node.
func (b *ModeButton) Process() {
	state := ResolveMode(b.Pin1.GetLevel(), b.Pin2.GetLevel())
	if state == b.State() {
		return
	}
	atomic.StoreInt32(&b.state, int32(state))
	glog.Infof("mode %v", state)
	if l := b.Listener; l != nil {
		l.ModeChanged(state)
	}
}

package input

import (
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/throttle.go/pkg/gpio"
)

// SetupState is the state of the setup push button.
type SetupState int32

// Setup button states.
const (
	SetupUnknown SetupState = iota
	SetupReleased
	SetupPressed
	SetupHeld
)

func (s SetupState) String() string {
	switch s {
	case SetupReleased:
		return "released"
	case SetupPressed:
		return "pressed"
	case SetupHeld:
		return "held"
	}
	return "unknown"
}

// DefaultHoldTime is how long the button must stay pressed to be held.
const DefaultHoldTime = 3 * time.Second

// SetupListener is notified on setup button transitions.
type SetupListener interface {
	SetupChanged(SetupState)
}

// SetupChangedFunc is the func form of SetupListener.
type SetupChangedFunc func(SetupState)

// SetupChanged implements SetupListener.
func (f SetupChangedFunc) SetupChanged(s SetupState) {
	f(s)
}

// SetupButton is a Node sampling a push button and distinguishing a
// short press from a hold.
type SetupButton struct {
	Pin         gpio.InputPin
	ActiveLevel gpio.PinLevel
	HoldTime    time.Duration
	Clock       func() time.Time
	Listener    SetupListener

	state     int32
	pressedAt time.Time
}

// NewSetupButton creates a SetupButton. When inverted the button is
// active low.
func NewSetupButton(pin gpio.InputPin, inverted bool) *SetupButton {
	b := &SetupButton{
		Pin:         pin,
		ActiveLevel: gpio.High,
		HoldTime:    DefaultHoldTime,
		Clock:       time.Now,
	}
	if inverted {
		b.ActiveLevel = gpio.Low
	}
	return b
}

// Name implements Named.
func (b *SetupButton) Name() string {
	return "setup-button"
}

// State returns the last recorded state.
func (b *SetupButton) State() SetupState {
	return SetupState(atomic.LoadInt32(&b.state))
}

// Process implements Node.
func (b *SetupButton) Process() {
	now := b.now()
	current := b.State()
	var state SetupState
	switch {
	case b.Pin.GetLevel() != b.ActiveLevel:
		state = SetupReleased
	case current == SetupHeld:
		state = SetupHeld
	case current == SetupPressed:
		state = SetupPressed
		if now.Sub(b.pressedAt) >= b.HoldTime {
			state = SetupHeld
		}
	default:
		state, b.pressedAt = SetupPressed, now
	}
	if state == current {
		return
	}
	atomic.StoreInt32(&b.state, int32(state))
	glog.Infof("setup button %v", state)
	if l := b.Listener; l != nil {
		l.SetupChanged(state)
	}
}

func (b *SetupButton) now() time.Time {
	if b.Clock != nil {
		return b.Clock()
	}
	return time.Now()
}

package ecu

import (
	"time"

	"github.com/robotalks/throttle.go/pkg/gpio"
)

// Fast init timings: the bus is pulled low, then left idle before the
// first frame.
const (
	FastInitLow  = 70 * time.Millisecond
	FastInitIdle = 130 * time.Millisecond
)

// PinWaker wakes the bus by driving the TX line directly.
type PinWaker struct {
	Pin   gpio.OutputPin
	Low   time.Duration
	Idle  time.Duration
	Sleep func(time.Duration)
}

// NewPinWaker creates a PinWaker with fast init timings.
func NewPinWaker(pin gpio.OutputPin) *PinWaker {
	return &PinWaker{Pin: pin, Low: FastInitLow, Idle: FastInitIdle}
}

// Wake implements Waker.
func (w *PinWaker) Wake() error {
	sleep := w.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	w.Pin.SetLevel(gpio.Low)
	sleep(w.Low)
	w.Pin.SetLevel(gpio.High)
	sleep(w.Idle)
	return nil
}

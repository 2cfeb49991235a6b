package input

import (
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/throttle.go/pkg/gpio"
	"github.com/robotalks/throttle.go/pkg/pipeline"
)

// Accelerator is a Node sampling the pedal position sensor and pushing
// changed readings into the pipeline.
type Accelerator struct {
	Input gpio.AnalogInput
	Next  pipeline.Consumer

	last    int
	hasLast bool
	failing int32
}

// NewAccelerator creates an Accelerator.
func NewAccelerator(in gpio.AnalogInput, next pipeline.Consumer) *Accelerator {
	return &Accelerator{Input: in, Next: next}
}

// Name implements Named.
func (a *Accelerator) Name() string {
	return "accelerator"
}

// Failing tells whether the last read failed.
func (a *Accelerator) Failing() bool {
	return atomic.LoadInt32(&a.failing) != 0
}

// Process implements Node.
func (a *Accelerator) Process() {
	raw, err := a.Input.Read()
	if err != nil {
		if atomic.SwapInt32(&a.failing, 1) == 0 {
			glog.Warningf("accelerator read error: %v", err)
		}
		return
	}
	if atomic.SwapInt32(&a.failing, 0) == 1 {
		glog.Info("accelerator recovered")
	}
	if a.hasLast && raw == a.last {
		return
	}
	a.last, a.hasLast = raw, true
	glog.V(3).Infof("accelerator %d", raw)
	if a.Next != nil {
		a.Next.SetValue(float64(raw))
	}
}

// Package pipeline wires signal conditioning stages.
//
// Each stage is a Consumer holding an explicit reference to the next
// Consumer. Values are pushed synchronously: a call to SetValue runs
// the remainder of the chain before it returns.
package pipeline

// Consumer receives values pushed by an upstream stage.
type Consumer interface {
	SetValue(float64)
}

// ConsumerFunc is the func form of Consumer.
type ConsumerFunc func(float64)

// SetValue implements Consumer.
func (f ConsumerFunc) SetValue(v float64) {
	f(v)
}

// Switch is implemented by stages which can stop forwarding.
type Switch interface {
	Enable()
	Disable()
	Enabled() bool
}

func forward(next Consumer, v float64) {
	if next != nil {
		next.SetValue(v)
	}
}

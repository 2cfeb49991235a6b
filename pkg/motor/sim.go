package motor

import (
	"math"
	"sync/atomic"
	"time"
)

// SimStepper is a Node simulating a speed and acceleration limited
// stepper. It advances toward the target on every tick.
type SimStepper struct {
	Config Config
	Clock  func() time.Time

	target   int64
	posBits  uint64
	velocity float64
	lastTick time.Time
}

// NewSimStepper creates a SimStepper at position 0.
func NewSimStepper(conf Config) *SimStepper {
	return &SimStepper{Config: conf, Clock: time.Now}
}

// Name implements Named.
func (s *SimStepper) Name() string {
	return "sim-stepper"
}

// TargetPosition implements Driver.
func (s *SimStepper) TargetPosition() int64 {
	return atomic.LoadInt64(&s.target)
}

// SetTargetPosition implements Driver.
func (s *SimStepper) SetTargetPosition(target int64) {
	atomic.StoreInt64(&s.target, target)
}

// Position returns the current position in steps.
func (s *SimStepper) Position() float64 {
	return math.Float64frombits(atomic.LoadUint64(&s.posBits))
}

// Process implements Node.
func (s *SimStepper) Process() {
	now := s.Clock()
	if !s.lastTick.IsZero() {
		s.Step(now.Sub(s.lastTick))
	}
	s.lastTick = now
}

// Step advances the simulation by d.
func (s *SimStepper) Step(d time.Duration) {
	dt := d.Seconds()
	if dt <= 0 {
		return
	}
	pos, target := s.Position(), float64(s.TargetPosition())
	dist := target - pos
	if dist == 0 && s.velocity == 0 {
		return
	}
	dir := 1.0
	if dist < 0 {
		dir = -1
	}
	// v is the speed toward the target, negative when moving away.
	v := s.velocity * dir
	switch {
	case v < 0:
		v = math.Min(0, v+s.Config.Deceleration*dt)
	case math.Abs(dist) <= v*v/(2*s.Config.Deceleration):
		v = math.Max(0, v-s.Config.Deceleration*dt)
	default:
		v = math.Min(s.Config.Speed, v+s.Config.Acceleration*dt)
	}
	if step := v * dt; step >= math.Abs(dist) {
		pos, s.velocity = target, 0
	} else {
		pos, s.velocity = pos+dir*step, dir*v
	}
	atomic.StoreUint64(&s.posBits, math.Float64bits(pos))
}

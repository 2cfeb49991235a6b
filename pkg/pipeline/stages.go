package pipeline

import (
	"math"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/robotalks/throttle.go/pkg/filter"
)

// FilterStage runs a filter and forwards its output.
type FilterStage struct {
	Filter filter.Filter
	Next   Consumer
}

// NewFilterStage creates a FilterStage.
func NewFilterStage(f filter.Filter, next Consumer) *FilterStage {
	return &FilterStage{Filter: f, Next: next}
}

// SetValue implements Consumer.
func (s *FilterStage) SetValue(v float64) {
	forward(s.Next, s.Filter.Filter(v))
}

// Gain multiplies values by a constant factor.
type Gain struct {
	Factor float64
	Next   Consumer
}

// SetValue implements Consumer.
func (g *Gain) SetValue(v float64) {
	forward(g.Next, v*g.Factor)
}

// Hold is a zero-order hold. It keeps the last value and forwards it
// on every Process, so stages behind it are clocked by the executor
// rather than by upstream changes.
type Hold struct {
	Next Consumer

	value float64
	has   bool
}

// SetValue implements Consumer.
func (h *Hold) SetValue(v float64) {
	h.value, h.has = v, true
}

// Name implements framework.Named.
func (h *Hold) Name() string {
	return "hold"
}

// Process implements framework.Node.
func (h *Hold) Process() {
	if h.has {
		forward(h.Next, h.value)
	}
}

// Probe records the last value passing through, optionally exporting
// it as a gauge. Value is safe to call from any goroutine.
type Probe struct {
	Gauge prometheus.Gauge
	Next  Consumer

	bits  uint64
	count uint64
}

// SetValue implements Consumer.
func (p *Probe) SetValue(v float64) {
	atomic.StoreUint64(&p.bits, math.Float64bits(v))
	atomic.AddUint64(&p.count, 1)
	if p.Gauge != nil {
		p.Gauge.Set(v)
	}
	forward(p.Next, v)
}

// Value returns the last value and the number of values seen.
func (p *Probe) Value() (float64, uint64) {
	count := atomic.LoadUint64(&p.count)
	return math.Float64frombits(atomic.LoadUint64(&p.bits)), count
}

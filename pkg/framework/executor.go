package framework

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/throttle.go/pkg/metrics"
)

// DefaultInterval is the pause between two spin cycles.
const DefaultInterval = 10 * time.Millisecond

var (
	// ErrAlreadyStarted indicates Spin is called more than once.
	ErrAlreadyStarted = errors.New("executor already started")
	// ErrStopped indicates the executor has been disabled.
	ErrStopped = errors.New("executor stopped")
)

type runState int

const (
	runStateIdle runState = iota
	runStateEnabled
	runStateDisabled
)

// Executor polls registered nodes on a single goroutine.
type Executor struct {
	Interval time.Duration
	Metrics  *metrics.Executor

	// nodes is replaced, never mutated in place, so a cycle can
	// iterate its snapshot without holding the lock.
	nodes []Node
	state runState
	lock  sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
	err      error
}

// NewExecutor creates an Executor.
func NewExecutor() *Executor {
	return &Executor{
		Interval: DefaultInterval,
		stopCh:   make(chan struct{}),
	}
}

// AddNode appends nodes to the collection.
func (e *Executor) AddNode(nodes ...Node) *Executor {
	e.lock.Lock()
	updated := make([]Node, 0, len(e.nodes)+len(nodes))
	updated = append(append(updated, e.nodes...), nodes...)
	e.nodes = updated
	e.lock.Unlock()
	e.updateNodeCount(len(updated))
	return e
}

// RemoveNode removes the first entry matching node.
// Removing a node which is not registered is a no-op.
func (e *Executor) RemoveNode(node Node) bool {
	e.lock.Lock()
	index := -1
	for n, item := range e.nodes {
		if item == node {
			index = n
			break
		}
	}
	if index < 0 {
		e.lock.Unlock()
		return false
	}
	updated := make([]Node, 0, len(e.nodes)-1)
	updated = append(append(updated, e.nodes[:index]...), e.nodes[index+1:]...)
	e.nodes = updated
	e.lock.Unlock()
	e.updateNodeCount(len(updated))
	return true
}

// Nodes returns a snapshot of registered nodes.
func (e *Executor) Nodes() []Node {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.nodes
}

// Len returns the number of registered nodes.
func (e *Executor) Len() int {
	return len(e.Nodes())
}

// Enabled indicates the spin loop is running.
func (e *Executor) Enabled() bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.state == runStateEnabled
}

// Spin runs the polling loop until Stop is called or ctx is done.
// An executor can only spin once.
func (e *Executor) Spin(ctx context.Context) error {
	e.lock.Lock()
	switch e.state {
	case runStateEnabled:
		e.lock.Unlock()
		return ErrAlreadyStarted
	case runStateDisabled:
		e.lock.Unlock()
		return ErrStopped
	}
	e.state = runStateEnabled
	stopCh := e.stopChan()
	e.lock.Unlock()

	defer func() {
		e.lock.Lock()
		e.state = runStateDisabled
		e.lock.Unlock()
	}()

	interval := e.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	glog.V(1).Infof("executor started, interval %v", interval)
	for {
		e.RunCycle()
		select {
		case <-ctx.Done():
			glog.V(1).Info("executor canceled")
			return ctx.Err()
		case <-stopCh:
			glog.V(1).Info("executor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Run implements Runnable.
func (e *Executor) Run(ctx context.Context) error {
	return e.Spin(ctx)
}

// Start spins the executor on a dedicated goroutine.
func (e *Executor) Start(ctx context.Context) {
	done := make(chan struct{})
	e.lock.Lock()
	e.doneCh = done
	e.lock.Unlock()
	go func() {
		err := e.Spin(ctx)
		e.lock.Lock()
		e.err = err
		e.lock.Unlock()
		close(done)
	}()
}

// Stop disables the executor and waits for the goroutine
// spawned by Start to exit.
func (e *Executor) Stop() error {
	e.lock.Lock()
	stopCh := e.stopChan()
	done := e.doneCh
	e.lock.Unlock()
	e.stopOnce.Do(func() { close(stopCh) })
	if done == nil {
		return nil
	}
	<-done
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.err == context.Canceled {
		return nil
	}
	return e.err
}

// RunCycle advances every registered node once.
func (e *Executor) RunCycle() {
	start := time.Now()
	for _, node := range e.Nodes() {
		e.processNode(node)
	}
	if m := e.Metrics; m != nil {
		m.Cycles.Inc()
		m.CycleDuration.Observe(time.Since(start).Seconds())
	}
}

func (e *Executor) processNode(node Node) {
	defer func() {
		if r := recover(); r != nil {
			name := NodeName(node)
			glog.Errorf("node %s fault: %v", name, r)
			if m := e.Metrics; m != nil {
				m.NodeFaults.WithLabelValues(name).Inc()
			}
		}
	}()
	node.Process()
}

// stopChan must be called with lock held.
func (e *Executor) stopChan() chan struct{} {
	if e.stopCh == nil {
		e.stopCh = make(chan struct{})
	}
	return e.stopCh
}

func (e *Executor) updateNodeCount(n int) {
	if m := e.Metrics; m != nil {
		m.Nodes.Set(float64(n))
	}
}

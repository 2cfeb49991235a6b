package framework

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/throttle.go/pkg/metrics"
)

type recordNode struct {
	name string
	log  *[]string
}

func (n *recordNode) Process()     { *n.log = append(*n.log, n.name) }
func (n *recordNode) Name() string { return n.name }

type countNode struct {
	count int64
}

func (n *countNode) Process()     { atomic.AddInt64(&n.count, 1) }
func (n *countNode) Count() int64 { return atomic.LoadInt64(&n.count) }

type faultNode struct{}

func (n *faultNode) Process()     { panic("sensor exploded") }
func (n *faultNode) Name() string { return "fault" }

type selfRemovingNode struct {
	exec      *Executor
	processed int
}

func (n *selfRemovingNode) Process() {
	n.processed++
	n.exec.RemoveNode(n)
}

func waitFor(t *testing.T, cond func() bool) {
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timeout")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestExecutorAddRemove(t *testing.T) {
	var log []string
	a, b, c := &recordNode{"a", &log}, &recordNode{"b", &log}, &recordNode{"c", &log}
	e := NewExecutor()
	e.AddNode(a, b, c)
	require.Equal(t, 3, e.Len())

	e.RunCycle()
	require.Equal(t, []string{"a", "b", "c"}, log)

	require.True(t, e.RemoveNode(b))
	require.False(t, e.RemoveNode(b))
	require.False(t, e.RemoveNode(&recordNode{"x", &log}))

	log = nil
	e.RunCycle()
	require.Equal(t, []string{"a", "c"}, log)
}

func TestExecutorDuplicates(t *testing.T) {
	var log []string
	a := &recordNode{"a", &log}
	e := NewExecutor().AddNode(a, a)
	e.RunCycle()
	require.Equal(t, []string{"a", "a"}, log)
	require.True(t, e.RemoveNode(a))
	log = nil
	e.RunCycle()
	require.Equal(t, []string{"a"}, log)
}

func TestExecutorFaultIsolation(t *testing.T) {
	var log []string
	m := metrics.New()
	e := NewExecutor()
	e.Metrics = m.Executor
	e.AddNode(&recordNode{"before", &log}, &faultNode{}, &recordNode{"after", &log})

	e.RunCycle()
	e.RunCycle()
	require.Equal(t, []string{"before", "after", "before", "after"}, log)
	require.Equal(t, float64(2), testutil.ToFloat64(m.Executor.NodeFaults.WithLabelValues("fault")))
	require.Equal(t, float64(2), testutil.ToFloat64(m.Executor.Cycles))
	require.Equal(t, float64(3), testutil.ToFloat64(m.Executor.Nodes))
}

func TestExecutorSelfRemoval(t *testing.T) {
	e := NewExecutor()
	n := &selfRemovingNode{exec: e}
	e.AddNode(n)
	e.RunCycle()
	e.RunCycle()
	require.Equal(t, 1, n.processed)
	require.Zero(t, e.Len())
}

func TestExecutorSpinStop(t *testing.T) {
	e := NewExecutor()
	e.Interval = time.Millisecond
	n := &countNode{}
	e.AddNode(n)
	e.Start(context.Background())
	waitFor(t, func() bool { return n.Count() >= 3 })
	require.True(t, e.Enabled())
	require.NoError(t, e.Stop())
	require.False(t, e.Enabled())

	count := n.Count()
	time.Sleep(5 * time.Millisecond)
	require.Equal(t, count, n.Count())

	require.Equal(t, ErrStopped, e.Spin(context.Background()))
}

func TestExecutorSpinCanceled(t *testing.T) {
	e := NewExecutor()
	e.Interval = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- e.Spin(ctx) }()
	waitFor(t, e.Enabled)
	require.Equal(t, ErrAlreadyStarted, e.Spin(ctx))
	cancel()
	select {
	case err := <-errCh:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestExecutorConcurrentMembership(t *testing.T) {
	e := NewExecutor()
	e.Interval = time.Microsecond
	permanent := &countNode{}
	e.AddNode(permanent)
	e.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				n := &countNode{}
				e.AddNode(n)
				e.RemoveNode(n)
			}
		}()
	}
	wg.Wait()
	waitFor(t, func() bool { return permanent.Count() > 0 })
	require.NoError(t, e.Stop())
	require.Equal(t, 1, e.Len())
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil).Aggregate())
	errs.Add(ErrStopped)
	require.Equal(t, ErrStopped.Error(), errs.Error())
	errs.Add(ErrAlreadyStarted)
	err := errs.Aggregate()
	require.ErrorIs(t, err, ErrAlreadyStarted)
	require.Contains(t, err.Error(), "multiple errors:")
}

package metrics

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDump(t *testing.T) {
	m := New()
	m.Executor.Cycles.Add(3)
	m.Executor.NodeFaults.WithLabelValues("ecu").Inc()
	m.Link.State.Set(2)
	m.Engine.RPM.Set(1200)
	m.Executor.CycleDuration.Observe(0.002)
	m.Pipeline.Values.WithLabelValues("pedal").Set(42.5)

	var buf bytes.Buffer
	require.NoError(t, m.Dump(&buf))
	out := buf.String()
	require.Contains(t, out, "throttle_executor_cycles_total 3\n")
	require.Contains(t, out, `throttle_executor_node_faults_total{node="ecu"} 1`)
	require.Contains(t, out, "throttle_ecu_link_state 2\n")
	require.Contains(t, out, "throttle_engine_rpm 1200\n")
	require.Contains(t, out, "throttle_executor_cycle_duration_seconds count=1 sum=0.002\n")
	require.Contains(t, out, `throttle_pipeline_value{stage="pedal"} 42.5`)
	require.Less(t, bytes.Index(buf.Bytes(), []byte("throttle_ecu_")), bytes.Index(buf.Bytes(), []byte("throttle_engine_")))
}

package pipeline

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/throttle.go/pkg/filter"
)

type recorder struct {
	values []float64
}

func (r *recorder) SetValue(v float64) { r.values = append(r.values, v) }

func mustMapper(t *testing.T, conf MapperConfig, next Consumer) *Mapper {
	m, err := NewMapper(conf)
	require.NoError(t, err)
	m.Next = next
	return m
}

func TestMapperConfigMap(t *testing.T) {
	conf := MapperConfig{MinInput: 840, MaxInput: 2570, MinOutput: 0, MaxOutput: 100}
	testCases := []struct {
		name   string
		in     float64
		expect float64
	}{
		{"lower bound", 840, 0},
		{"upper bound", 2570, 100},
		{"midpoint", 1705, 50},
		{"below range clamps", 100, 0},
		{"above range clamps", 4000, 100},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.expect, conf.Map(tc.in), 1e-9)
		})
	}

	inverted := MapperConfig{MinInput: 0, MaxInput: 100, MinOutput: 100, MaxOutput: 0}
	require.Equal(t, float64(75), inverted.Map(25))
	require.Equal(t, float64(0), inverted.Map(300))
}

func TestMapperConfigValidate(t *testing.T) {
	_, err := NewMapper(MapperConfig{MinInput: 5, MaxInput: 5, MaxOutput: 1})
	require.ErrorIs(t, err, ErrEmptyRange)
}

func TestMapperForwardsOnChange(t *testing.T) {
	var rec recorder
	m := mustMapper(t, MapperConfig{MinInput: 0, MaxInput: 10, MinOutput: 0, MaxOutput: 10, Round: true}, &rec)
	for _, v := range []float64{1, 1.2, 1.4, 2, 2} {
		m.SetValue(v)
	}
	require.Equal(t, []float64{1, 2}, rec.values)
	last, ok := m.Value()
	require.True(t, ok)
	require.Equal(t, float64(2), last)
}

func TestMapperDisable(t *testing.T) {
	var rec recorder
	m := mustMapper(t, MapperConfig{MinInput: 0, MaxInput: 100, MinOutput: 0, MaxOutput: 100}, &rec)
	m.SetValue(10)
	m.Disable()
	require.False(t, m.Enabled())
	for _, v := range []float64{20, 30, 40} {
		m.SetValue(v)
	}
	require.Equal(t, []float64{10}, rec.values)

	m.Enable()
	require.True(t, m.Enabled())
	m.SetValue(10)
	m.SetValue(10)
	m.SetValue(50)
	require.Equal(t, []float64{10, 10, 50}, rec.values)
}

func TestMapperSetOutputRange(t *testing.T) {
	var rec recorder
	m := mustMapper(t, MapperConfig{MinInput: 0, MaxInput: 100, MinOutput: 0, MaxOutput: 1000}, &rec)
	m.SetOutputRange(0, 500)
	require.Empty(t, rec.values)
	m.SetValue(50)
	m.SetOutputRange(0, 800)
	require.Equal(t, []float64{250, 400}, rec.values)
	require.Equal(t, float64(800), m.Config().MaxOutput)
}

func TestStages(t *testing.T) {
	var rec recorder
	avg, err := filter.NewSlidingAverage(filter.AverageConfig{Window: 2, Threshold: 1000})
	require.NoError(t, err)
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "probe"})
	probe := &Probe{Gauge: gauge, Next: &rec}
	chain := NewFilterStage(avg, &Gain{Factor: 4, Next: probe})

	chain.SetValue(10)
	chain.SetValue(20)
	require.Equal(t, []float64{40, 80}, rec.values)
	v, count := probe.Value()
	require.Equal(t, float64(80), v)
	require.Equal(t, uint64(2), count)
	require.Equal(t, float64(80), testutil.ToFloat64(gauge))
}

func TestHold(t *testing.T) {
	var rec recorder
	h := &Hold{Next: &rec}
	h.Process()
	require.Empty(t, rec.values)
	h.SetValue(5)
	h.SetValue(6)
	h.Process()
	h.Process()
	require.Equal(t, []float64{6, 6}, rec.values)
}

func TestConsumerFunc(t *testing.T) {
	var got float64
	var c Consumer = ConsumerFunc(func(v float64) { got = v })
	c.SetValue(3)
	require.Equal(t, float64(3), got)
}

func TestFormatterScalerScenario(t *testing.T) {
	var rec recorder
	probe := &Probe{Next: &rec}
	scaler := mustMapper(t, MapperConfig{MinInput: 0, MaxInput: 100, MinOutput: 0, MaxOutput: 100, Round: true}, probe)
	formatter := mustMapper(t, MapperConfig{MinInput: 840, MaxInput: 2570, MinOutput: 0, MaxOutput: 100, Round: true}, scaler)

	var outputs []float64
	for _, raw := range []float64{840, 845, 2000, 2570} {
		formatter.SetValue(raw)
		v, _ := probe.Value()
		outputs = append(outputs, v)
	}
	require.Equal(t, []float64{0, 0, 67, 100}, outputs)
	require.Equal(t, []float64{0, 67, 100}, rec.values)
}

// Package metrics provides Prometheus collectors for the executor,
// the signal pipeline and the ECU link.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "throttle"

// Executor contains metrics of the node scheduler.
type Executor struct {
	Cycles        prometheus.Counter
	CycleDuration prometheus.Histogram
	Nodes         prometheus.Gauge
	NodeFaults    *prometheus.CounterVec
}

// Link contains metrics of the ECU diagnostic link.
type Link struct {
	State           prometheus.Gauge
	ConnectAttempts prometheus.Counter
	ConnectFailures prometheus.Counter
	Disconnects     prometheus.Counter
	FramesRead      prometheus.Counter
	FramesWritten   prometheus.Counter
}

// Engine contains the last engine data read from the ECU.
type Engine struct {
	RPM             prometheus.Gauge
	ThrottlePercent prometheus.Gauge
	CoolantCelsius  prometheus.Gauge
	IntakeCelsius   prometheus.Gauge
	ManifoldKPa     prometheus.Gauge
	BatteryVolts    prometheus.Gauge
	SpeedKPH        prometheus.Gauge
}

// Pipeline contains metrics of the signal conditioning pipeline.
type Pipeline struct {
	Values *prometheus.GaugeVec
}

// Metrics bundles all collectors on a private registry.
type Metrics struct {
	Executor *Executor
	Link     *Link
	Engine   *Engine
	Pipeline *Pipeline

	registry *prometheus.Registry
}

// New creates all collectors and registers them on a new registry.
func New() *Metrics {
	m := &Metrics{
		Executor: newExecutor(),
		Link:     newLink(),
		Engine:   newEngine(),
		Pipeline: newPipeline(),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(
		m.Executor.Cycles,
		m.Executor.CycleDuration,
		m.Executor.Nodes,
		m.Executor.NodeFaults,
		m.Link.State,
		m.Link.ConnectAttempts,
		m.Link.ConnectFailures,
		m.Link.Disconnects,
		m.Link.FramesRead,
		m.Link.FramesWritten,
		m.Engine.RPM,
		m.Engine.ThrottlePercent,
		m.Engine.CoolantCelsius,
		m.Engine.IntakeCelsius,
		m.Engine.ManifoldKPa,
		m.Engine.BatteryVolts,
		m.Engine.SpeedKPH,
		m.Pipeline.Values,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func newExecutor() *Executor {
	return &Executor{
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "cycles_total",
			Help:      "Total number of completed spin cycles",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "cycle_duration_seconds",
			Help:      "Time spent processing all nodes in one cycle",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		Nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "nodes",
			Help:      "Number of registered nodes",
		}),
		NodeFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "node_faults_total",
			Help:      "Total number of recovered node faults",
		}, []string{"node"}),
	}
}

func newLink() *Link {
	return &Link{
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ecu",
			Name:      "link_state",
			Help:      "ECU link state (0=disconnected, 1=connecting, 2=connected)",
		}),
		ConnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ecu",
			Name:      "connect_attempts_total",
			Help:      "Total number of handshake attempts",
		}),
		ConnectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ecu",
			Name:      "connect_failures_total",
			Help:      "Total number of failed handshakes",
		}),
		Disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ecu",
			Name:      "disconnects_total",
			Help:      "Total number of connection losses",
		}),
		FramesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ecu",
			Name:      "frames_read_total",
			Help:      "Total number of valid frames read",
		}),
		FramesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ecu",
			Name:      "frames_written_total",
			Help:      "Total number of frames written",
		}),
	}
}

func engineGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      name,
		Help:      help,
	})
}

func newEngine() *Engine {
	return &Engine{
		RPM:             engineGauge("rpm", "Engine speed"),
		ThrottlePercent: engineGauge("throttle_percent", "Throttle position reported by the ECU"),
		CoolantCelsius:  engineGauge("coolant_celsius", "Engine coolant temperature"),
		IntakeCelsius:   engineGauge("intake_celsius", "Intake air temperature"),
		ManifoldKPa:     engineGauge("manifold_kpa", "Manifold absolute pressure"),
		BatteryVolts:    engineGauge("battery_volts", "Battery voltage"),
		SpeedKPH:        engineGauge("speed_kph", "Vehicle speed"),
	}
}

func newPipeline() *Pipeline {
	return &Pipeline{
		Values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "value",
			Help:      "Last value seen by a pipeline probe",
		}, []string{"stage"}),
	}
}

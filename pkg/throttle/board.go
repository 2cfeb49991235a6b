package throttle

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/throttle.go/pkg/ecu"
	"github.com/robotalks/throttle.go/pkg/filter"
	"github.com/robotalks/throttle.go/pkg/framework"
	"github.com/robotalks/throttle.go/pkg/gpio"
	"github.com/robotalks/throttle.go/pkg/indicator"
	"github.com/robotalks/throttle.go/pkg/input"
	"github.com/robotalks/throttle.go/pkg/metrics"
	"github.com/robotalks/throttle.go/pkg/motor"
	"github.com/robotalks/throttle.go/pkg/pipeline"
)

// Hardware are the collaborators of the Board.
type Hardware struct {
	Pedal    gpio.AnalogInput
	ModePin1 gpio.InputPin
	ModePin2 gpio.InputPin
	SetupPin gpio.InputPin
	Motor    motor.Driver
	// Indicator is the optional status LED.
	Indicator gpio.OutputPin
	// Link is optional, without it the Board runs no ECU session.
	Link *Link
}

// Fault codes blinked by the status LED.
const (
	FaultNone  = 0
	FaultPedal = 11
	FaultLink  = 21
)

// SimHardware is simulated Hardware for the bench.
type SimHardware struct {
	Pedal     *gpio.SimAnalog
	ModePin1  *gpio.SimPin
	ModePin2  *gpio.SimPin
	SetupPin  *gpio.SimPin
	Indicator *gpio.SimPin
	Motor     *motor.SimStepper
}

// NewSimHardware creates simulated hardware at rest: pedal released,
// selector in mode 2 and setup button released.
func NewSimHardware(conf *Config) *SimHardware {
	release := gpio.Low
	if conf.Setup.ActiveLow {
		release = gpio.High
	}
	return &SimHardware{
		Pedal:     gpio.NewSimAnalog(int(conf.Pedal.MinInput)),
		ModePin1:  gpio.NewSimPin(gpio.High),
		ModePin2:  gpio.NewSimPin(gpio.High),
		SetupPin:  gpio.NewSimPin(release),
		Indicator: gpio.NewSimPin(gpio.Low),
		Motor:     motor.NewSimStepper(conf.Motor),
	}
}

// Hardware returns the collaborators.
func (h *SimHardware) Hardware() Hardware {
	return Hardware{
		Pedal:     h.Pedal,
		ModePin1:  h.ModePin1,
		ModePin2:  h.ModePin2,
		SetupPin:  h.SetupPin,
		Indicator: h.Indicator,
		Motor:     h.Motor,
	}
}

// Board is the throttle controller.
type Board struct {
	Config   *Config
	Metrics  *metrics.Metrics
	Executor *framework.Executor

	Accelerator *input.Accelerator
	ModeButton  *input.ModeButton
	SetupButton *input.SetupButton
	Formatter   *pipeline.Mapper
	Hold        *pipeline.Hold
	Average     *filter.SlidingAverage
	Adaptive    *filter.AdaptiveExp
	Controller  *pipeline.Mapper
	Commander   *motor.Commander
	Motor       motor.Driver

	// Probes of the pedal percent, the filtered percent and the
	// commanded motor target.
	PedalProbe    *pipeline.Probe
	FilteredProbe *pipeline.Probe
	OutputProbe   *pipeline.Probe

	Link  *Link
	KLine *ecu.KLine
	ECU   *ecu.HondaECU

	Indicator *indicator.Indicator

	fault int32
}

// statusLight picks the indicator pattern each cycle.
type statusLight struct {
	board *Board
}

func (l *statusLight) Name() string {
	return "status-light"
}

func (l *statusLight) Process() {
	l.board.updateIndicator()
}

// NewBoard wires all nodes and stages.
func NewBoard(conf *Config, hw Hardware) (*Board, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	b := &Board{
		Config:   conf,
		Metrics:  metrics.New(),
		Executor: framework.NewExecutor(),
		Motor:    hw.Motor,
		Link:     hw.Link,
	}
	b.Executor.Interval = conf.Interval
	b.Executor.Metrics = b.Metrics.Executor
	values := b.Metrics.Pipeline.Values

	b.Commander = motor.NewCommander(hw.Motor, conf.Motor.Deadband)
	b.OutputProbe = &pipeline.Probe{Gauge: values.WithLabelValues("output"), Next: b.Commander}

	var err error
	if b.Controller, err = pipeline.NewMapper(pipeline.MapperConfig{
		MinInput:  conf.Pedal.MinOutput,
		MaxInput:  conf.Pedal.MaxOutput,
		MaxOutput: conf.Controller.MaxSteps * b.initialPercent() / 100,
		Round:     true,
	}); err != nil {
		return nil, err
	}
	b.Controller.Next = &pipeline.Gain{Factor: conf.Controller.Microsteps, Next: b.OutputProbe}
	if !conf.Controller.StartEnabled {
		b.Controller.Disable()
	}
	b.FilteredProbe = &pipeline.Probe{Gauge: values.WithLabelValues("filtered"), Next: b.Controller}

	if b.Adaptive, err = filter.NewAdaptiveExp(conf.Adaptive); err != nil {
		return nil, err
	}
	if b.Average, err = filter.NewSlidingAverage(conf.Average); err != nil {
		return nil, err
	}
	b.Hold = &pipeline.Hold{
		Next: pipeline.NewFilterStage(b.Average,
			pipeline.NewFilterStage(b.Adaptive, b.FilteredProbe)),
	}
	b.PedalProbe = &pipeline.Probe{Gauge: values.WithLabelValues("pedal"), Next: b.Hold}

	if b.Formatter, err = pipeline.NewMapper(conf.Pedal); err != nil {
		return nil, err
	}
	b.Formatter.Next = b.PedalProbe
	b.Accelerator = input.NewAccelerator(hw.Pedal, b.Formatter)

	b.ModeButton = input.NewModeButton(hw.ModePin1, hw.ModePin2)
	b.ModeButton.Listener = input.ModeChangedFunc(b.modeChanged)
	b.SetupButton = input.NewSetupButton(hw.SetupPin, conf.Setup.ActiveLow)
	b.SetupButton.HoldTime = conf.Setup.HoldTime
	b.SetupButton.Listener = input.SetupChangedFunc(b.setupChanged)

	b.Executor.AddNode(b.ModeButton, b.SetupButton, b.Accelerator, b.Hold)
	if n, ok := hw.Motor.(framework.Node); ok {
		b.Executor.AddNode(n)
	}
	if hw.Indicator != nil {
		b.Indicator = indicator.New(hw.Indicator)
		b.Executor.AddNode(&statusLight{board: b}, b.Indicator)
	}

	if hw.Link != nil {
		b.KLine = ecu.NewKLine(hw.Link.Transport)
		b.KLine.Waker = hw.Link.Waker
		b.KLine.Echo = conf.ECU.Echo
		b.KLine.SettleDelay = conf.ECU.SettleDelay
		b.KLine.ResponseTimeout = conf.ECU.ResponseTimeout
		b.KLine.Metrics = b.Metrics.Link
		b.ECU = ecu.NewHondaECU(b.KLine, ecu.EngineDataFunc(b.engineData))
		b.Executor.AddNode(b.ECU)
	}
	return b, nil
}

// Name implements framework.Named.
func (b *Board) Name() string {
	return "board"
}

// Run implements framework.Runnable.
func (b *Board) Run(ctx context.Context) error {
	glog.Infof("board %s: %d nodes, interval %v", b.Config.DeviceID, b.Executor.Len(), b.Executor.Interval)
	err := b.Executor.Run(ctx)
	if err == context.Canceled {
		err = nil
	}
	if b.Link != nil {
		err = (&framework.AggregatedError{}).Add(err, b.Link.Close()).Aggregate()
	}
	return err
}

// the lowest limit applies until the selector is read.
func (b *Board) initialPercent() float64 {
	c := b.Config.Controller
	return math.Min(c.Mode1, math.Min(c.Mode2, c.Mode3))
}

func (b *Board) modeChanged(m input.ModeState) {
	percent, ok := b.Config.Controller.ModePercent(m)
	if !ok {
		glog.Warning("mode selector in unknown position, keeping limit")
		return
	}
	max := b.Config.Controller.MaxSteps * percent / 100
	glog.Infof("%v: limit %v%% (%v steps)", m, percent, max)
	b.Controller.SetOutputRange(0, max)
}

func (b *Board) setupChanged(s input.SetupState) {
	glog.Infof("setup %v", s)
	switch s {
	case input.SetupHeld:
		if b.Controller.Enabled() {
			return
		}
		b.Controller.Enable()
		glog.Info("throttle control enabled")
		if v, n := b.FilteredProbe.Value(); n > 0 {
			b.Controller.SetValue(v)
		}
	case input.SetupPressed:
		if !b.Controller.Enabled() {
			return
		}
		b.Controller.Disable()
		glog.Info("throttle control disabled")
	}
}

// fault codes take precedence over the control blink.
func (b *Board) updateIndicator() {
	code := FaultNone
	switch {
	case b.Accelerator.Failing():
		code = FaultPedal
	case b.ECU != nil && b.KLine.State() != ecu.Connected && b.ECU.Err() != nil:
		code = FaultLink
	}
	if prev := atomic.SwapInt32(&b.fault, int32(code)); prev != int32(code) {
		if code != FaultNone {
			glog.Warningf("fault %d", code)
		} else {
			glog.Infof("fault %d cleared", prev)
		}
	}
	switch {
	case code != FaultNone:
		b.Indicator.SetPattern(indicator.ErrorCode(code))
	case b.Controller.Enabled():
		b.Indicator.SetPattern(indicator.Blink(indicator.BlinkOn, indicator.BlinkOff))
	default:
		b.Indicator.SetPattern(indicator.Off)
	}
}

func (b *Board) engineData(d ecu.EngineData) {
	glog.V(2).Infof("engine %+v", d)
	m := b.Metrics.Engine
	m.RPM.Set(float64(d.RPM))
	m.ThrottlePercent.Set(d.TPSPercent)
	m.CoolantCelsius.Set(float64(d.ECTCelsius))
	m.IntakeCelsius.Set(float64(d.IATCelsius))
	m.ManifoldKPa.Set(float64(d.MAPKPa))
	m.BatteryVolts.Set(d.Battery)
	m.SpeedKPH.Set(float64(d.SpeedKPH))
}

// Status is a snapshot of the board for display.
type Status struct {
	Mode              input.ModeState
	Setup             input.SetupState
	ControlEnabled    bool
	Pedal             float64
	Filtered          float64
	Output            float64
	MotorTarget       int64
	LinkState         ecu.ConnectorState
	Engine            ecu.EngineData
	EngineValid       bool
	EngineErr         error
	LinkConfigured    bool
	FaultCode         int
	ExecutorNodeCount int
}

// Status returns a snapshot, safe to call from any goroutine.
func (b *Board) Status() Status {
	s := Status{
		Mode:              b.ModeButton.State(),
		Setup:             b.SetupButton.State(),
		ControlEnabled:    b.Controller.Enabled(),
		MotorTarget:       b.Motor.TargetPosition(),
		FaultCode:         int(atomic.LoadInt32(&b.fault)),
		ExecutorNodeCount: b.Executor.Len(),
	}
	s.Pedal, _ = b.PedalProbe.Value()
	s.Filtered, _ = b.FilteredProbe.Value()
	s.Output, _ = b.OutputProbe.Value()
	if b.ECU != nil {
		s.LinkConfigured = true
		s.LinkState = b.KLine.State()
		s.Engine, s.EngineValid = b.ECU.Last()
		s.EngineErr = b.ECU.Err()
	}
	return s
}

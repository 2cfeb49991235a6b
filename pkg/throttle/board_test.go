package throttle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/throttle.go/pkg/ecu"
	"github.com/robotalks/throttle.go/pkg/gpio"
	"github.com/robotalks/throttle.go/pkg/indicator"
	"github.com/robotalks/throttle.go/pkg/input"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type benchEnv struct {
	t     *testing.T
	conf  *Config
	hw    *SimHardware
	link  *Link
	board *Board
	clock *fakeClock
}

func newBenchEnv(t *testing.T) *benchEnv {
	conf := NewConfig()
	conf.DeviceID = "bench"
	conf.ECU.SettleDelay = 0
	link, err := conf.ECU.Open()
	require.NoError(t, err)

	env := &benchEnv{t: t, conf: conf, hw: NewSimHardware(conf), link: link}
	hw := env.hw.Hardware()
	hw.Link = link
	env.board, err = NewBoard(conf, hw)
	require.NoError(t, err)
	env.clock = &fakeClock{now: time.Unix(1000, 0)}
	env.board.SetupButton.Clock = env.clock.Now
	env.board.Indicator.Clock = env.clock.Now
	env.board.KLine.PollInterval = 0
	return env
}

func (e *benchEnv) cycles(n int) {
	for i := 0; i < n; i++ {
		e.board.Executor.RunCycle()
	}
}

func (e *benchEnv) holdSetup() {
	e.hw.SetupPin.SetLevel(gpio.Low)
	e.cycles(1)
	e.clock.Advance(e.conf.Setup.HoldTime)
	e.cycles(1)
}

func (e *benchEnv) pressSetup() {
	e.hw.SetupPin.SetLevel(gpio.High)
	e.cycles(1)
	e.hw.SetupPin.SetLevel(gpio.Low)
	e.cycles(1)
}

func TestBoardStartsDisabled(t *testing.T) {
	env := newBenchEnv(t)
	b := env.board
	require.Equal(t, 8, b.Executor.Len())

	env.cycles(1)
	s := b.Status()
	require.Equal(t, input.Mode2, s.Mode)
	require.Equal(t, input.SetupReleased, s.Setup)
	require.False(t, s.ControlEnabled)
	require.Equal(t, float64(800), b.Controller.Config().MaxOutput)
	require.True(t, s.LinkConfigured)
	require.Equal(t, ecu.Connected, s.LinkState)
	require.True(t, s.EngineValid)
	require.Equal(t, 1200, s.Engine.RPM)
	require.Equal(t, float64(1200), testutil.ToFloat64(b.Metrics.Engine.RPM))

	env.hw.Pedal.Set(2570)
	env.cycles(50)
	s = b.Status()
	require.Equal(t, float64(100), s.Pedal)
	require.Greater(t, s.Filtered, 95.0)
	require.Zero(t, s.MotorTarget)
	_, outputs := b.OutputProbe.Value()
	require.Zero(t, outputs)
}

func TestBoardThrottleControl(t *testing.T) {
	env := newBenchEnv(t)
	b := env.board
	env.cycles(1)

	env.holdSetup()
	require.Equal(t, input.SetupHeld, b.SetupButton.State())
	require.True(t, b.Status().ControlEnabled)
	require.Zero(t, b.Status().MotorTarget)

	env.hw.Pedal.Set(2570)
	env.cycles(200)
	s := b.Status()
	require.InDelta(t, 100, s.Filtered, 0.05)
	require.Equal(t, float64(800*4), s.Output)
	// the commander ignores changes within its deadband
	require.InDelta(t, 800*4, s.MotorTarget, float64(env.conf.Motor.Deadband))

	// mode 1 limits the output to 60%
	env.hw.ModePin1.SetLevel(gpio.Low)
	env.cycles(1)
	require.Equal(t, input.Mode1, b.Status().Mode)
	require.Equal(t, int64(600*4), b.Status().MotorTarget)

	// an unknown selector position keeps the limit
	env.hw.ModePin2.SetLevel(gpio.Low)
	env.cycles(1)
	require.Equal(t, input.ModeUnknown, b.Status().Mode)
	require.Equal(t, float64(600), b.Controller.Config().MaxOutput)

	env.pressSetup()
	require.Equal(t, input.SetupPressed, b.SetupButton.State())
	require.False(t, b.Status().ControlEnabled)
	env.hw.Pedal.Set(840)
	env.cycles(200)
	require.Less(t, b.Status().Filtered, 0.5)
	require.Equal(t, int64(600*4), b.Status().MotorTarget)

	// enabling again moves to the current pedal position
	env.holdSetup()
	require.InDelta(t, 0, b.Status().MotorTarget, float64(env.conf.Motor.Deadband))
}

func TestBoardMotorFollowsTarget(t *testing.T) {
	env := newBenchEnv(t)
	env.conf.Controller.StartEnabled = true
	hw := env.hw.Hardware()
	board, err := NewBoard(env.conf, hw)
	require.NoError(t, err)
	require.Equal(t, 7, board.Executor.Len())

	env.hw.Pedal.Set(1705)
	for i := 0; i < 100; i++ {
		board.Executor.RunCycle()
	}
	target := board.Status().MotorTarget
	require.InDelta(t, 1600, target, 16)
	for i := 0; i < 100; i++ {
		env.hw.Motor.Step(10 * time.Millisecond)
	}
	require.Equal(t, float64(target), env.hw.Motor.Position())
}

func TestBoardLinkRecovers(t *testing.T) {
	env := newBenchEnv(t)
	b := env.board
	env.cycles(1)
	require.Equal(t, ecu.Connected, b.Status().LinkState)

	env.link.Sim.Drop(errors.New("connector unplugged"))
	env.cycles(3)
	s := b.Status()
	require.Equal(t, ecu.Disconnected, s.LinkState)
	require.Error(t, s.EngineErr)
	require.True(t, s.EngineValid)
	require.Equal(t, float64(1), testutil.ToFloat64(b.Metrics.Link.Disconnects))
	require.Equal(t, FaultLink, s.FaultCode)

	// the pedal keeps working while the link is down
	env.hw.Pedal.Set(2570)
	env.cycles(1)
	require.Equal(t, float64(100), b.Status().Pedal)

	env.link.Sim.Restore()
	env.link.Sim.SetEngineData(ecu.EngineData{RPM: 4500})
	env.cycles(1)
	s = b.Status()
	require.Equal(t, ecu.Connected, s.LinkState)
	require.NoError(t, s.EngineErr)
	require.Equal(t, 4500, s.Engine.RPM)
	env.cycles(1)
	require.Equal(t, FaultNone, b.Status().FaultCode)
}

func TestBoardIndicator(t *testing.T) {
	env := newBenchEnv(t)
	b := env.board
	led := env.hw.Indicator
	env.cycles(1)
	require.Equal(t, gpio.Low, led.GetLevel())

	env.holdSetup()
	require.Equal(t, gpio.High, led.GetLevel())
	env.clock.Advance(indicator.BlinkOn)
	env.cycles(1)
	require.Equal(t, gpio.Low, led.GetLevel())

	env.hw.Pedal.Fail(errors.New("adc timeout"))
	env.cycles(1)
	require.Equal(t, FaultPedal, b.Status().FaultCode)
	require.Equal(t, indicator.ErrorCode(FaultPedal), b.Indicator.Pattern())
	require.Equal(t, gpio.High, led.GetLevel())

	env.hw.Pedal.Fail(nil)
	env.cycles(1)
	require.Equal(t, FaultNone, b.Status().FaultCode)
	require.Equal(t, indicator.Blink(indicator.BlinkOn, indicator.BlinkOff), b.Indicator.Pattern())

	env.pressSetup()
	require.Equal(t, gpio.Low, led.GetLevel())
	require.Empty(t, b.Indicator.Pattern())
}

func TestBoardInvalidConfig(t *testing.T) {
	conf := NewConfig()
	conf.Average.Window = 0
	_, err := NewBoard(conf, NewSimHardware(conf).Hardware())
	require.Error(t, err)
}

func TestBoardRun(t *testing.T) {
	env := newBenchEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.board.Run(ctx) }()
	require.Eventually(t, func() bool {
		return env.board.Status().LinkState == ecu.Connected
	}, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("board did not stop")
	}
}

package sh

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/throttle.go/pkg/ecu"
	"github.com/robotalks/throttle.go/pkg/gpio"
	"github.com/robotalks/throttle.go/pkg/throttle"
)

// ErrSimulatedFailure is injected by the pedal and ecu commands.
var ErrSimulatedFailure = errors.New("simulated failure")

type statusView struct {
	Mode           string          `json:"mode"`
	Setup          string          `json:"setup"`
	ControlEnabled bool            `json:"controlEnabled"`
	Pedal          float64         `json:"pedal"`
	Filtered       float64         `json:"filtered"`
	Output         float64         `json:"output"`
	MotorTarget    int64           `json:"motorTarget"`
	Link           string          `json:"link,omitempty"`
	LinkError      string          `json:"linkError,omitempty"`
	Engine         *ecu.EngineData `json:"engine,omitempty"`
	Fault          int             `json:"fault,omitempty"`
}

func newStatusView(st throttle.Status) statusView {
	v := statusView{
		Mode:           st.Mode.String(),
		Setup:          st.Setup.String(),
		ControlEnabled: st.ControlEnabled,
		Pedal:          st.Pedal,
		Filtered:       st.Filtered,
		Output:         st.Output,
		MotorTarget:    st.MotorTarget,
		Fault:          st.FaultCode,
	}
	if st.LinkConfigured {
		v.Link = st.LinkState.String()
		if st.EngineErr != nil {
			v.LinkError = st.EngineErr.Error()
		}
		if st.EngineValid {
			engine := st.Engine
			v.Engine = &engine
		}
	}
	return v
}

func formatEngine(d *ecu.EngineData) string {
	if d == nil {
		return "no engine data\n"
	}
	return fmt.Sprintf("rpm %d, throttle %.1f%%, coolant %dC, intake %dC, map %dkPa, battery %.1fV, speed %dkm/h\n",
		d.RPM, d.TPSPercent, d.ECTCelsius, d.IATCelsius, d.MAPKPa, d.Battery, d.SpeedKPH)
}

func (v statusView) String() string {
	var w bytes.Buffer
	control := "disabled"
	if v.ControlEnabled {
		control = "enabled"
	}
	fmt.Fprintf(&w, "mode:   %s\n", v.Mode)
	fmt.Fprintf(&w, "setup:  %s (control %s)\n", v.Setup, control)
	fmt.Fprintf(&w, "pedal:  %.1f%% (filtered %.1f%%)\n", v.Pedal, v.Filtered)
	fmt.Fprintf(&w, "output: %.0f (motor target %d)\n", v.Output, v.MotorTarget)
	if v.Fault != 0 {
		fmt.Fprintf(&w, "fault:  %d\n", v.Fault)
	}
	if v.Link != "" {
		fmt.Fprintf(&w, "ecu:    %s", v.Link)
		if v.LinkError != "" {
			fmt.Fprintf(&w, " (%s)", v.LinkError)
		}
		fmt.Fprintf(&w, "\n        %s", formatEngine(v.Engine))
	}
	return w.String()
}

// modePins are the selector levels of each mode.
var modePins = map[string][2]gpio.PinLevel{
	"1":       {gpio.Low, gpio.High},
	"2":       {gpio.High, gpio.High},
	"3":       {gpio.High, gpio.Low},
	"unknown": {gpio.Low, gpio.Low},
}

func (s *Shell) setSetupPin(active bool) {
	level := gpio.High
	if s.Board.Config.Setup.ActiveLow {
		level = gpio.Low
	}
	if !active {
		level = level.Invert()
	}
	s.Sim.SetupPin.SetLevel(level)
}

func (s *Shell) simLink(c *ishell.Context) bool {
	if s.Board.Link == nil || s.Board.Link.Sim == nil {
		c.Err(fmt.Errorf("ECU link is not simulated"))
		return false
	}
	return true
}

var (
	// StatusCmd shows the board status.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"s"},
		Help:    "show board status",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			v := newStatusView(s.Board.Status())
			s.Print(c, v, v.String())
		},
	}

	// PedalCmd moves the simulated pedal.
	PedalCmd = ishell.Cmd{
		Name:    "pedal",
		Aliases: []string{"p"},
		Help:    "RAW | PERCENT% | fail | ok",
		Func: MustBeSimulated(func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) == 0 {
				raw, err := s.Sim.Pedal.Read()
				if err != nil {
					c.Err(err)
					return
				}
				s.Print(c, raw, fmt.Sprintf("%d\n", raw))
				return
			}
			arg := c.Args[0]
			switch arg {
			case "fail":
				s.Sim.Pedal.Fail(ErrSimulatedFailure)
				return
			case "ok":
				s.Sim.Pedal.Fail(nil)
				return
			}
			conf := s.Board.Config.Pedal
			var raw float64
			if strings.HasSuffix(arg, "%") {
				percent, err := strconv.ParseFloat(strings.TrimSuffix(arg, "%"), 64)
				if err != nil {
					c.Err(err)
					return
				}
				raw = conf.MinInput + (conf.MaxInput-conf.MinInput)*percent/100
			} else {
				val, err := strconv.Atoi(arg)
				if err != nil {
					c.Err(err)
					return
				}
				raw = float64(val)
			}
			s.Sim.Pedal.Set(int(math.Round(raw)))
		}),
	}

	// ModeCmd moves the simulated mode selector.
	ModeCmd = ishell.Cmd{
		Name:    "mode",
		Aliases: []string{"m"},
		Help:    "1 | 2 | 3 | unknown",
		Func: MustBeSimulated(func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) == 0 {
				st := s.Board.ModeButton.State()
				s.Print(c, st.String(), st.String()+"\n")
				return
			}
			levels, ok := modePins[c.Args[0]]
			if !ok {
				c.Err(fmt.Errorf("unknown mode %q", c.Args[0]))
				return
			}
			s.Sim.ModePin1.SetLevel(levels[0])
			s.Sim.ModePin2.SetLevel(levels[1])
		}),
	}

	// SetupCmd operates the simulated setup button.
	SetupCmd = ishell.Cmd{
		Name: "setup",
		Help: "press | hold | down | up",
		Func: MustBeSimulated(func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) == 0 {
				st := s.Board.SetupButton.State()
				s.Print(c, st.String(), st.String()+"\n")
				return
			}
			switch c.Args[0] {
			case "press":
				s.setSetupPin(true)
				s.waitCycles(3)
				s.setSetupPin(false)
			case "hold":
				s.setSetupPin(true)
				s.Sleep(s.Board.SetupButton.HoldTime)
				s.waitCycles(3)
				s.setSetupPin(false)
			case "down":
				s.setSetupPin(true)
			case "up":
				s.setSetupPin(false)
			default:
				c.Err(fmt.Errorf("unknown action %q", c.Args[0]))
			}
		}),
	}

	// MotorCmd shows the motor.
	MotorCmd = ishell.Cmd{
		Name: "motor",
		Help: "show motor target and position",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			v := map[string]interface{}{"target": s.Board.Motor.TargetPosition()}
			text := fmt.Sprintf("target %d", v["target"])
			if s.Sim != nil {
				v["position"] = s.Sim.Motor.Position()
				text += fmt.Sprintf(", position %.0f", v["position"])
			}
			s.Print(c, v, text+"\n")
		},
	}

	// ECUCmd shows and controls the ECU link.
	ECUCmd = ishell.Cmd{
		Name: "ecu",
		Help: "[drop | restore | silent | respond | rpm N]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if s.Board.ECU == nil {
				c.Err(throttle.ErrLinkDisabled)
				return
			}
			if len(c.Args) == 0 {
				v := newStatusView(s.Board.Status())
				s.Print(c, v.Engine, v.Link+": "+formatEngine(v.Engine))
				return
			}
			if !s.simLink(c) {
				return
			}
			sim := s.Board.Link.Sim
			switch c.Args[0] {
			case "drop":
				sim.Drop(ErrSimulatedFailure)
			case "restore":
				sim.Restore()
			case "silent":
				sim.SetResponding(false)
			case "respond":
				sim.SetResponding(true)
			case "rpm":
				if len(c.Args) < 2 {
					c.Err(fmt.Errorf("rpm expected"))
					return
				}
				rpm, err := strconv.Atoi(c.Args[1])
				if err != nil {
					c.Err(err)
					return
				}
				d, _ := s.Board.ECU.Last()
				d.RPM = rpm
				sim.SetEngineData(d)
			default:
				c.Err(fmt.Errorf("unknown action %q", c.Args[0]))
			}
		},
	}

	// MetricsCmd dumps all metrics.
	MetricsCmd = ishell.Cmd{
		Name: "metrics",
		Help: "dump metrics",
		Func: func(c *ishell.Context) {
			var w bytes.Buffer
			if err := ShellFrom(c).Board.Metrics.Dump(&w); err != nil {
				c.Err(err)
				return
			}
			c.Print(w.String())
		},
	}
)

package throttle

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/denisbrodbeck/machineid"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/throttle.go/pkg/ecu"
	"github.com/robotalks/throttle.go/pkg/ecu/ecusim"
	"github.com/robotalks/throttle.go/pkg/ecu/transport"
	"github.com/robotalks/throttle.go/pkg/filter"
	"github.com/robotalks/throttle.go/pkg/framework"
	"github.com/robotalks/throttle.go/pkg/input"
	"github.com/robotalks/throttle.go/pkg/motor"
	"github.com/robotalks/throttle.go/pkg/pipeline"
)

// EnvPrefix prefixes all environment overrides.
const EnvPrefix = "THROTTLE_"

// LinkNone disables the ECU link.
const LinkNone = "none"

// Config is the calibration of the throttle controller.
type Config struct {
	// DeviceID identifies the controller, defaults to the machine ID.
	DeviceID string        `yaml:"deviceId" env:"DEVICE_ID"`
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`

	// Pedal maps raw pedal ADC readings to percent.
	Pedal      pipeline.MapperConfig `yaml:"pedal" envPrefix:"PEDAL_"`
	Average    filter.AverageConfig  `yaml:"average" envPrefix:"AVERAGE_"`
	Adaptive   filter.AdaptiveConfig `yaml:"adaptive" envPrefix:"ADAPTIVE_"`
	Controller ControllerConfig      `yaml:"controller" envPrefix:"CONTROLLER_"`
	Setup      SetupConfig           `yaml:"setup" envPrefix:"SETUP_"`
	Motor      motor.Config          `yaml:"motor" envPrefix:"MOTOR_"`
	ECU        ECUConfig             `yaml:"ecu" envPrefix:"ECU_"`
}

// ControllerConfig scales percent to stepper positions. The maximum
// position of each mode is a percentage of MaxSteps. Positions are in
// full steps, the motor target is multiplied by Microsteps.
type ControllerConfig struct {
	MaxSteps     float64 `yaml:"maxSteps" env:"MAX_STEPS"`
	Microsteps   float64 `yaml:"microsteps" env:"MICROSTEPS"`
	Mode1        float64 `yaml:"mode1" env:"MODE1"`
	Mode2        float64 `yaml:"mode2" env:"MODE2"`
	Mode3        float64 `yaml:"mode3" env:"MODE3"`
	StartEnabled bool    `yaml:"startEnabled" env:"START_ENABLED"`
}

// ModePercent returns the output limit of a mode, ok is false for
// an unknown mode.
func (c ControllerConfig) ModePercent(m input.ModeState) (percent float64, ok bool) {
	switch m {
	case input.Mode1:
		return c.Mode1, true
	case input.Mode2:
		return c.Mode2, true
	case input.Mode3:
		return c.Mode3, true
	}
	return 0, false
}

// SetupConfig configures the setup button.
type SetupConfig struct {
	HoldTime  time.Duration `yaml:"holdTime" env:"HOLD_TIME"`
	ActiveLow bool          `yaml:"activeLow" env:"ACTIVE_LOW"`
}

// ECUConfig configures the diagnostic link.
type ECUConfig struct {
	// URL selects the transport:
	//   sim:                   simulated ECU
	//   serial:///dev/ttyUSB0  K-line adapter
	//   tcp://host:port        raw byte stream, e.g. a serial server
	//   ws://host/path         websocket tunnel
	//   none                   no ECU
	URL             string                 `yaml:"url" env:"URL"`
	Serial          transport.SerialConfig `yaml:"serial" envPrefix:"SERIAL_"`
	Echo            bool                   `yaml:"echo" env:"ECHO"`
	SettleDelay     time.Duration          `yaml:"settleDelay" env:"SETTLE_DELAY"`
	ResponseTimeout time.Duration          `yaml:"responseTimeout" env:"RESPONSE_TIMEOUT"`
}

var defaultConfig = Config{
	Interval: framework.DefaultInterval,
	Pedal: pipeline.MapperConfig{
		MinInput:  840,
		MaxInput:  2570,
		MinOutput: 0,
		MaxOutput: 100,
	},
	Average: filter.AverageConfig{Window: 8, Threshold: 5},
	Adaptive: filter.AdaptiveConfig{
		Threshold: 2,
		FastGain:  0.9,
		SlowGain:  0.05,
	},
	Controller: ControllerConfig{
		MaxSteps:   1000,
		Microsteps: 4,
		Mode1:      60,
		Mode2:      80,
		Mode3:      100,
	},
	Setup: SetupConfig{HoldTime: input.DefaultHoldTime, ActiveLow: true},
	Motor: motor.DefaultConfig(),
	ECU: ECUConfig{
		URL:             "sim:",
		Serial:          transport.DefaultSerialConfig(),
		Echo:            true,
		SettleDelay:     ecu.DefaultSettleDelay,
		ResponseTimeout: ecu.DefaultResponseTimeout,
	},
}

var cmdline struct {
	configFile string
	interval   time.Duration
	ecuURL     string
	deviceID   string
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&cmdline.configFile, "config", os.Getenv(EnvPrefix+"CONFIG"), "Calibration file (YAML).")
	flag.DurationVar(&cmdline.interval, "interval", 0, "Executor spin interval, overrides the calibration.")
	flag.StringVar(&cmdline.ecuURL, "ecu", "", "ECU link URL (sim:, serial:///dev/ttyUSB0, tcp://host:port, ws://host/path or none), overrides the calibration.")
	flag.StringVar(&cmdline.deviceID, "device-id", "", "Device ID, defaults to the machine ID.")
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Load loads the configuration selected by command line flags.
func Load() (*Config, error) {
	conf, err := LoadConfig(cmdline.configFile)
	if err != nil {
		return nil, err
	}
	if cmdline.interval > 0 {
		conf.Interval = cmdline.interval
	}
	if cmdline.ecuURL != "" {
		conf.ECU.URL = cmdline.ecuURL
	}
	if cmdline.deviceID != "" {
		conf.DeviceID = cmdline.deviceID
	}
	return conf, conf.Validate()
}

// LoadConfig builds a Config from defaults, the optional calibration
// file and environment variables, in that order.
func LoadConfig(path string) (*Config, error) {
	conf := NewConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err = yaml.Unmarshal(data, conf); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(conf, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if conf.DeviceID == "" {
		conf.DeviceID = MachineID()
	}
	return conf, nil
}

// MachineID retrieves the unique ID identifying the machine, or
// "unknown" when unavailable.
func MachineID() string {
	id, err := machineid.ProtectedID("throttle")
	if err != nil {
		return "unknown"
	}
	return id
}

// Validate checks all options.
func (c *Config) Validate() error {
	errs := &framework.AggregatedError{}
	if c.Interval <= 0 {
		errs.Add(fmt.Errorf("interval must be positive"))
	}
	if err := c.Pedal.Validate(); err != nil {
		errs.Add(fmt.Errorf("pedal: %w", err))
	}
	if err := c.Average.Validate(); err != nil {
		errs.Add(fmt.Errorf("average: %w", err))
	}
	if err := c.Adaptive.Validate(); err != nil {
		errs.Add(fmt.Errorf("adaptive: %w", err))
	}
	if c.Controller.MaxSteps <= 0 {
		errs.Add(fmt.Errorf("controller: maxSteps must be positive"))
	}
	if c.Controller.Microsteps <= 0 {
		errs.Add(fmt.Errorf("controller: microsteps must be positive"))
	}
	for _, m := range []input.ModeState{input.Mode1, input.Mode2, input.Mode3} {
		if p, _ := c.Controller.ModePercent(m); p <= 0 || p > 100 {
			errs.Add(fmt.Errorf("controller: %v percent %v out of (0, 100]", m, p))
		}
	}
	if c.Setup.HoldTime <= 0 {
		errs.Add(fmt.Errorf("setup: holdTime must be positive"))
	}
	if c.Motor.Speed <= 0 || c.Motor.Acceleration <= 0 || c.Motor.Deceleration <= 0 {
		errs.Add(fmt.Errorf("motor: speed, acceleration and deceleration must be positive"))
	}
	if c.Motor.Deadband < 0 {
		errs.Add(fmt.Errorf("motor: negative deadband"))
	}
	if _, err := c.ECU.parseURL(); err != nil {
		errs.Add(err)
	}
	return errs.Aggregate()
}

// Enabled reports whether an ECU link is configured.
func (c ECUConfig) Enabled() bool {
	return c.URL != "" && c.URL != LinkNone
}

func (c ECUConfig) parseURL() (*url.URL, error) {
	if !c.Enabled() {
		return nil, nil
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("ecu: invalid URL: %w", err)
	}
	switch u.Scheme {
	case "sim", "serial", "tcp", "ws", "wss":
		return u, nil
	}
	return nil, fmt.Errorf("ecu: unknown URL scheme: %q", u.Scheme)
}

// ErrLinkDisabled indicates no ECU link is configured.
var ErrLinkDisabled = errors.New("ecu link disabled")

// Link is an opened ECU transport.
type Link struct {
	Transport ecu.Transport
	// Waker is set when the transport can generate the wake-up pattern.
	Waker ecu.Waker
	// Sim is set for the simulated ECU.
	Sim *ecusim.ECU

	close func() error
}

// Close releases the transport.
func (l *Link) Close() error {
	if l.close != nil {
		return l.close()
	}
	return nil
}

// Open opens the transport selected by URL.
func (c ECUConfig) Open() (*Link, error) {
	u, err := c.parseURL()
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrLinkDisabled
	}
	switch u.Scheme {
	case "sim":
		sim := ecusim.New()
		sim.Echo = c.Echo
		return &Link{Transport: sim, Sim: sim}, nil
	case "serial":
		conf := c.Serial
		if p := u.Path; p != "" {
			conf.Port = p
		} else if u.Opaque != "" {
			conf.Port = u.Opaque
		}
		port, err := transport.OpenSerial(conf)
		if err != nil {
			return nil, err
		}
		return &Link{Transport: port, Waker: port, close: port.Close}, nil
	case "tcp":
		conn, err := net.Dial("tcp", u.Host)
		if err != nil {
			return nil, fmt.Errorf("ecu: %w", err)
		}
		s := transport.NewStream(conn)
		if c.Serial.ReadTimeout > 0 {
			s.ReadTimeout = c.Serial.ReadTimeout
		}
		return &Link{Transport: s, close: s.Close}, nil
	default:
		origin := "http://" + u.Host + "/"
		ws, err := transport.DialWebsocket(c.URL, origin)
		if err != nil {
			return nil, fmt.Errorf("ecu: %w", err)
		}
		if c.Serial.ReadTimeout > 0 {
			ws.ReadTimeout = c.Serial.ReadTimeout
		}
		return &Link{Transport: ws, close: ws.Close}, nil
	}
}

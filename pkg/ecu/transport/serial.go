package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/robotalks/throttle.go/pkg/ecu"
)

// DefaultBaudRate is the K-line bit rate.
const DefaultBaudRate = 10400

// SerialConfig configures a serial port.
type SerialConfig struct {
	Port        string        `yaml:"port" env:"PORT"`
	BaudRate    int           `yaml:"baudRate" env:"BAUD_RATE"`
	ReadTimeout time.Duration `yaml:"readTimeout" env:"READ_TIMEOUT"`
}

// DefaultSerialConfig returns the K-line settings, 10400 8N1.
func DefaultSerialConfig() SerialConfig {
	return SerialConfig{BaudRate: DefaultBaudRate, ReadTimeout: DefaultReadTimeout}
}

// Serial implements ecu.Transport and ecu.Waker on a serial port.
type Serial struct {
	Port serial.Port
	// BreakLow and BreakIdle time the wake-up break.
	BreakLow  time.Duration
	BreakIdle time.Duration

	buf []byte
}

// NewSerial wraps an opened port.
func NewSerial(port serial.Port) *Serial {
	return &Serial{
		Port:      port,
		BreakLow:  ecu.FastInitLow,
		BreakIdle: ecu.FastInitIdle,
		buf:       make([]byte, readBufferSize),
	}
}

// OpenSerial opens and configures the port.
func OpenSerial(conf SerialConfig) (*Serial, error) {
	if conf.Port == "" {
		return nil, fmt.Errorf("serial port not specified")
	}
	if conf.BaudRate <= 0 {
		conf.BaudRate = DefaultBaudRate
	}
	port, err := serial.Open(conf.Port, &serial.Mode{
		BaudRate: conf.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", conf.Port, err)
	}
	timeout := conf.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	if err = port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", conf.Port, err)
	}
	return NewSerial(port), nil
}

// ListSerialPorts returns the names of the serial ports on the host.
func ListSerialPorts() ([]string, error) {
	return serial.GetPortsList()
}

// ReadData implements ecu.Transport. It returns no data when the read
// timeout of the port expires.
func (s *Serial) ReadData() ([]byte, error) {
	if s.buf == nil {
		s.buf = make([]byte, readBufferSize)
	}
	n, err := s.Port.Read(s.buf)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), s.buf[:n]...), nil
}

// WriteData implements ecu.Transport.
func (s *Serial) WriteData(data []byte) error {
	for len(data) > 0 {
		n, err := s.Port.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// Wake implements ecu.Waker with a line break.
func (s *Serial) Wake() error {
	if err := s.Port.ResetInputBuffer(); err != nil {
		return err
	}
	if err := s.Port.Break(s.BreakLow); err != nil {
		return err
	}
	time.Sleep(s.BreakIdle)
	return nil
}

// Close closes the port.
func (s *Serial) Close() error {
	return s.Port.Close()
}

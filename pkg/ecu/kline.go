package ecu

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/throttle.go/pkg/metrics"
)

// Default timings of the K-line connector.
const (
	DefaultSettleDelay     = 50 * time.Millisecond
	DefaultResponseTimeout = 500 * time.Millisecond
	DefaultPollInterval    = time.Millisecond
)

// KLine is the framing Connector for a Honda K-line bus.
// Connect, ReadData and WriteData must be called from a single
// goroutine; State is safe from any goroutine.
type KLine struct {
	Transport Transport
	// Waker is optional, it's invoked before the wake-up frame.
	Waker Waker
	// Echo makes the connector consume the bus echo of every write.
	Echo bool

	SettleDelay     time.Duration
	ResponseTimeout time.Duration
	// PollInterval is the pause after a read returned nothing.
	PollInterval time.Duration

	Clock   func() time.Time
	Sleep   func(time.Duration)
	Metrics *metrics.Link

	state   int32
	pending []byte
}

// NewKLine creates a KLine connector with default timings.
func NewKLine(t Transport) *KLine {
	return &KLine{
		Transport:       t,
		Echo:            true,
		SettleDelay:     DefaultSettleDelay,
		ResponseTimeout: DefaultResponseTimeout,
		PollInterval:    DefaultPollInterval,
	}
}

// State implements Connector.
func (c *KLine) State() ConnectorState {
	return ConnectorState(atomic.LoadInt32(&c.state))
}

// Connect implements Connector.
func (c *KLine) Connect() error {
	c.setState(Connecting)
	if m := c.Metrics; m != nil {
		m.ConnectAttempts.Inc()
	}
	if err := c.handshake(); err != nil {
		c.setState(Disconnected)
		if m := c.Metrics; m != nil {
			m.ConnectFailures.Inc()
		}
		return err
	}
	c.setState(Connected)
	glog.Info("ECU link connected")
	return nil
}

// ReadData implements Connector.
func (c *KLine) ReadData() ([]byte, error) {
	if c.State() != Connected {
		return nil, ErrNotConnected
	}
	f, err := c.readFrame()
	if err != nil {
		c.drop(err)
		return nil, err
	}
	return f.Payload(), nil
}

// WriteData implements Connector.
func (c *KLine) WriteData(payload []byte) error {
	if c.State() != Connected {
		return ErrNotConnected
	}
	f, err := FrameFrom(payload)
	if err != nil {
		return err
	}
	if err = c.writeFrame(f); err != nil {
		c.drop(err)
	}
	return err
}

// Exchange writes a frame and reads the reply.
func (c *KLine) Exchange(payload []byte) ([]byte, error) {
	if err := c.WriteData(payload); err != nil {
		return nil, err
	}
	return c.ReadData()
}

func (c *KLine) handshake() error {
	if err := c.flush(); err != nil {
		return &HandshakeError{Stage: "flush", Err: err}
	}
	if c.Waker != nil {
		if err := c.Waker.Wake(); err != nil {
			return &HandshakeError{Stage: "wake", Err: err}
		}
	}
	if err := c.writeFrame(WakeupFrame); err != nil {
		return &HandshakeError{Stage: "wakeup", Err: err}
	}
	c.sleep(c.SettleDelay)
	// Anything received during the settle delay is line noise.
	c.pending = nil
	if err := c.writeFrame(InitFrame); err != nil {
		return &HandshakeError{Stage: "init", Err: err}
	}
	reply, err := c.readFrame()
	if err != nil {
		return &HandshakeError{Stage: "init", Err: err}
	}
	if !bytes.Equal(reply.Bytes(), InitReply.Bytes()) {
		return &HandshakeError{Stage: "init", Err: fmt.Errorf("%w: % x", ErrUnexpectedReply, reply.Bytes())}
	}
	return nil
}

func (c *KLine) writeFrame(f Frame) error {
	raw := f.Bytes()
	if err := c.Transport.WriteData(raw); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	if m := c.Metrics; m != nil {
		m.FramesWritten.Inc()
	}
	glog.V(3).Infof("ECU > % x", raw)
	if !c.Echo {
		return nil
	}
	if err := c.fill(len(raw)); err != nil {
		return err
	}
	echo := c.pending[:len(raw)]
	c.pending = c.pending[len(raw):]
	if !bytes.Equal(echo, raw) {
		return fmt.Errorf("%w: sent % x, got % x", ErrEchoMismatch, raw, echo)
	}
	return nil
}

func (c *KLine) readFrame() (Frame, error) {
	if err := c.fill(2); err != nil {
		return Frame{}, err
	}
	size := int(c.pending[1])
	if size < MinFrameLength {
		c.pending = nil
		return Frame{}, fmt.Errorf("%w: %d", ErrFrameLength, size)
	}
	if err := c.fill(size); err != nil {
		return Frame{}, err
	}
	f, n, err := SplitFrame(c.pending)
	if err != nil {
		c.pending = nil
		return Frame{}, err
	}
	c.pending = c.pending[n:]
	if m := c.Metrics; m != nil {
		m.FramesRead.Inc()
	}
	glog.V(3).Infof("ECU < % x", f.Bytes())
	return f, nil
}

// maxFlushReads bounds flush on a chattering line.
const maxFlushReads = 16

// flush discards stale input left by an aborted session.
func (c *KLine) flush() error {
	c.pending = nil
	for i := 0; i < maxFlushReads; i++ {
		data, err := c.Transport.ReadData()
		if err != nil {
			return &TransportError{Op: "read", Err: err}
		}
		if len(data) == 0 {
			break
		}
	}
	return nil
}

// fill reads from the transport until at least n bytes are pending.
func (c *KLine) fill(n int) error {
	deadline := c.now().Add(c.ResponseTimeout)
	for len(c.pending) < n {
		data, err := c.Transport.ReadData()
		if err != nil {
			return &TransportError{Op: "read", Err: err}
		}
		if len(data) > 0 {
			c.pending = append(c.pending, data...)
			continue
		}
		if !c.now().Before(deadline) {
			return &TransportError{Op: "read", Err: ErrTimeout}
		}
		c.sleep(c.PollInterval)
	}
	return nil
}

func (c *KLine) drop(err error) {
	c.pending = nil
	if c.State() != Connected {
		return
	}
	c.setState(Disconnected)
	if m := c.Metrics; m != nil {
		m.Disconnects.Inc()
	}
	glog.Warningf("ECU link lost: %v", err)
}

func (c *KLine) setState(s ConnectorState) {
	atomic.StoreInt32(&c.state, int32(s))
	if m := c.Metrics; m != nil {
		m.State.Set(float64(s))
	}
}

func (c *KLine) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

func (c *KLine) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if c.Sleep != nil {
		c.Sleep(d)
		return
	}
	time.Sleep(d)
}

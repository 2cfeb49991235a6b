// Package ecusim simulates a Honda ECU on the diagnostic bus.
package ecusim

import (
	"bytes"
	"io"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/throttle.go/pkg/ecu"
)

// ECU is a simulated Honda ECU. It implements ecu.Transport so a
// connector can talk to it directly, and it can be served over any
// io.ReadWriter.
type ECU struct {
	// Echo replays every written byte like a half-duplex bus.
	Echo bool

	lock       sync.Mutex
	in         []byte
	out        []byte
	awake      bool
	ready      bool
	responding bool
	failure    error
	tables     map[byte][]byte
	requests   int
}

// New creates a simulated ECU with idle engine data.
func New() *ECU {
	e := &ECU{Echo: true, responding: true, tables: make(map[byte][]byte)}
	e.tables[ecu.TableEngine] = ecu.EncodeEngineData(ecu.EngineData{
		RPM:        1200,
		TPSVolts:   0.5,
		ECTVolts:   1.2,
		ECTCelsius: 85,
		IATVolts:   2.5,
		IATCelsius: 30,
		MAPVolts:   1.5,
		MAPKPa:     35,
		Battery:    13.8,
	})
	return e
}

// SetEngineData replaces the engine table.
func (e *ECU) SetEngineData(d ecu.EngineData) {
	e.SetTable(ecu.TableEngine, ecu.EncodeEngineData(d))
}

// SetTable replaces the body of a table.
func (e *ECU) SetTable(table byte, data []byte) {
	e.lock.Lock()
	e.tables[table] = append([]byte(nil), data...)
	e.lock.Unlock()
}

// SetResponding makes the ECU silent when false; written frames are
// still echoed.
func (e *ECU) SetResponding(responding bool) {
	e.lock.Lock()
	e.responding = responding
	e.lock.Unlock()
}

// Drop makes all I/O fail with err until Restore, and ends the
// diagnostic session.
func (e *ECU) Drop(err error) {
	e.lock.Lock()
	e.failure = err
	e.awake, e.ready = false, false
	e.in, e.out = nil, nil
	e.lock.Unlock()
}

// Restore undoes Drop.
func (e *ECU) Restore() {
	e.lock.Lock()
	e.failure = nil
	e.lock.Unlock()
}

// Ready reports whether the init handshake completed.
func (e *ECU) Ready() bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.ready
}

// Requests returns the number of table requests answered.
func (e *ECU) Requests() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.requests
}

// WriteData implements ecu.Transport.
func (e *ECU) WriteData(data []byte) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.failure != nil {
		return e.failure
	}
	if e.Echo {
		e.out = append(e.out, data...)
	}
	e.in = append(e.in, data...)
	for {
		f, n, err := ecu.SplitFrame(e.in)
		if err != nil {
			glog.V(2).Infof("ecusim: %v", err)
			e.in = nil
			break
		}
		if n == 0 {
			break
		}
		e.in = e.in[n:]
		e.handle(f)
	}
	return nil
}

// ReadData implements ecu.Transport.
func (e *ECU) ReadData() ([]byte, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.failure != nil {
		return nil, e.failure
	}
	out := e.out
	e.out = nil
	return out, nil
}

func (e *ECU) handle(f ecu.Frame) {
	if !e.responding {
		return
	}
	switch {
	case f.Type == ecu.WakeupFrame.Type:
		e.awake = true
	case bytes.Equal(f.Bytes(), ecu.InitFrame.Bytes()):
		e.ready = true
		e.reply(ecu.InitReply)
	case f.Type == ecu.TypeQuery && len(f.Body) == 2 && f.Body[0] == ecu.SubTable:
		if !e.ready {
			return
		}
		table, ok := e.tables[f.Body[1]]
		if !ok {
			return
		}
		e.requests++
		body := append([]byte{ecu.SubTable, f.Body[1]}, table...)
		e.reply(ecu.Frame{Type: ecu.TypeReply, Body: body})
	}
}

func (e *ECU) reply(f ecu.Frame) {
	e.out = append(e.out, f.Bytes()...)
}

// Serve answers requests read from rw until it fails.
func (e *ECU) Serve(rw io.ReadWriter) error {
	buf := make([]byte, 256)
	for {
		n, err := rw.Read(buf)
		if err != nil {
			return err
		}
		if err = e.WriteData(buf[:n]); err != nil {
			return err
		}
		out, err := e.ReadData()
		if err != nil {
			return err
		}
		if len(out) == 0 {
			continue
		}
		if _, err = rw.Write(out); err != nil {
			return err
		}
	}
}

// Handler serves the ECU over websocket binary frames.
func (e *ECU) Handler() websocket.Handler {
	return func(conn *websocket.Conn) {
		conn.PayloadType = websocket.BinaryFrame
		if err := e.Serve(conn); err != nil && err != io.EOF {
			glog.V(1).Infof("ecusim: %v", err)
		}
	}
}

package ecu

import "strconv"

// ConnectorState is the state of the link.
type ConnectorState int32

// Connector states.
const (
	Disconnected ConnectorState = iota
	Connecting
	Connected
)

func (s ConnectorState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Transport reads and writes raw bytes on the physical link.
// ReadData returns whatever is available, possibly nothing when its
// read timeout expires.
type Transport interface {
	ReadData() ([]byte, error)
	WriteData([]byte) error
}

// Connector is the framing layer above a Transport. Payloads are
// [type, body...]; the connector adds and strips length and checksum.
type Connector interface {
	Connect() error
	ReadData() ([]byte, error)
	WriteData([]byte) error
	State() ConnectorState
}

// Waker generates the electrical wake-up pattern on the bus.
type Waker interface {
	Wake() error
}

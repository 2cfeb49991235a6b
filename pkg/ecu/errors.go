package ecu

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected indicates I/O was requested on a link which is not
	// connected.
	ErrNotConnected = errors.New("not connected")
	// ErrTimeout indicates no complete frame arrived in time.
	ErrTimeout = errors.New("timeout")
	// ErrChecksum indicates a frame with a bad checksum.
	ErrChecksum = errors.New("checksum mismatch")
	// ErrFrameLength indicates an invalid length byte.
	ErrFrameLength = errors.New("invalid frame length")
	// ErrEchoMismatch indicates the bus echo differs from what was sent.
	ErrEchoMismatch = errors.New("echo mismatch")
	// ErrUnexpectedReply indicates a well-formed but unexpected reply.
	ErrUnexpectedReply = errors.New("unexpected reply")
	// ErrShortFrame indicates a reply too short to decode.
	ErrShortFrame = errors.New("short data")
)

// TransportError wraps a failure of the byte level transport.
type TransportError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// HandshakeError indicates Connect failed at a given stage.
type HandshakeError struct {
	Stage string
	Err   error
}

// Error implements error.
func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// IsTransportFailure reports whether err is caused by the transport.
func IsTransportFailure(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

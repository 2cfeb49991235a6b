// Package transport provides byte transports for the ECU link.
package transport

import (
	"errors"
	"io"
	"net"
	"os"
	"time"
)

const readBufferSize = 256

// DefaultReadTimeout bounds a single ReadData call.
const DefaultReadTimeout = 20 * time.Millisecond

type readDeadliner interface {
	SetReadDeadline(time.Time) error
}

// Stream implements ecu.Transport over an io.ReadWriter.
// When the stream supports read deadlines, ReadData returns no data
// after ReadTimeout instead of blocking.
type Stream struct {
	io.ReadWriter
	ReadTimeout time.Duration

	buf []byte
}

// NewStream creates a Stream with io.ReadWriter.
func NewStream(s io.ReadWriter) *Stream {
	return &Stream{ReadWriter: s, ReadTimeout: DefaultReadTimeout, buf: make([]byte, readBufferSize)}
}

// ReadData implements ecu.Transport.
func (s *Stream) ReadData() ([]byte, error) {
	if d, ok := s.ReadWriter.(readDeadliner); ok && s.ReadTimeout > 0 {
		if err := d.SetReadDeadline(time.Now().Add(s.ReadTimeout)); err != nil {
			return nil, err
		}
	}
	if s.buf == nil {
		s.buf = make([]byte, readBufferSize)
	}
	n, err := s.Read(s.buf)
	if err != nil {
		if isTimeout(err) {
			return nil, nil
		}
		return nil, err
	}
	return append([]byte(nil), s.buf[:n]...), nil
}

// WriteData implements ecu.Transport.
func (s *Stream) WriteData(data []byte) error {
	_, err := s.Write(data)
	return err
}

// Close closes the underlying stream if it's an io.Closer.
func (s *Stream) Close() error {
	if c, ok := s.ReadWriter.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

package ecu

import "fmt"

// Frame limits.
const (
	MinFrameLength = 3
	MaxFrameLength = 0xff
)

// Frame is a K-line frame without its length and checksum.
type Frame struct {
	Type byte
	Body []byte
}

// FrameFrom splits a payload [type, body...] into a Frame.
func FrameFrom(payload []byte) (Frame, error) {
	if len(payload) == 0 || len(payload)+2 > MaxFrameLength {
		return Frame{}, fmt.Errorf("%w: payload of %d bytes", ErrFrameLength, len(payload))
	}
	return Frame{Type: payload[0], Body: payload[1:]}, nil
}

// Payload returns [type, body...].
func (f Frame) Payload() []byte {
	p := make([]byte, len(f.Body)+1)
	p[0] = f.Type
	copy(p[1:], f.Body)
	return p
}

// Bytes returns the encoded frame.
func (f Frame) Bytes() []byte {
	n := len(f.Body) + MinFrameLength
	b := make([]byte, n)
	b[0], b[1] = f.Type, byte(n)
	copy(b[2:], f.Body)
	b[n-1] = Checksum(b[:n-1])
	return b
}

// Checksum returns the byte which makes the sum of data and itself
// zero (mod 256).
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return -sum
}

// SplitFrame decodes the first frame in buf. It returns n == 0 when
// buf doesn't hold a complete frame yet.
func SplitFrame(buf []byte) (f Frame, n int, err error) {
	if len(buf) < 2 {
		return
	}
	size := int(buf[1])
	if size < MinFrameLength {
		return f, 0, fmt.Errorf("%w: %d", ErrFrameLength, size)
	}
	if len(buf) < size {
		return
	}
	if Checksum(buf[:size]) != 0 {
		return f, 0, ErrChecksum
	}
	f.Type = buf[0]
	f.Body = append([]byte(nil), buf[2:size-1]...)
	return f, size, nil
}

// Honda K-line frames.
var (
	WakeupFrame = Frame{Type: 0xfe, Body: []byte{0xff}}
	InitFrame   = Frame{Type: 0x72, Body: []byte{0x00, 0xf0}}
	InitReply   = Frame{Type: 0x02, Body: []byte{0x00}}
)

// Frame types.
const (
	TypeQuery byte = 0x72
	TypeReply byte = 0x02

	SubTable byte = 0x71
)

// TableRequest returns the frame reading a data table.
func TableRequest(table byte) Frame {
	return Frame{Type: TypeQuery, Body: []byte{SubTable, table}}
}

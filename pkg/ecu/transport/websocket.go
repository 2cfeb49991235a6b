package transport

import (
	"time"

	"golang.org/x/net/websocket"
)

// Websocket implements ecu.Transport with binary websocket messages.
type Websocket struct {
	Conn        *websocket.Conn
	ReadTimeout time.Duration
}

// NewWebsocket wraps websocket.Conn.
func NewWebsocket(conn *websocket.Conn) *Websocket {
	conn.PayloadType = websocket.BinaryFrame
	return &Websocket{Conn: conn, ReadTimeout: DefaultReadTimeout}
}

// DialWebsocket connects to a websocket endpoint.
func DialWebsocket(url, origin string) (*Websocket, error) {
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	return NewWebsocket(conn), nil
}

// ReadData implements ecu.Transport.
func (w *Websocket) ReadData() (data []byte, err error) {
	if w.ReadTimeout > 0 {
		if err = w.Conn.SetReadDeadline(time.Now().Add(w.ReadTimeout)); err != nil {
			return
		}
	}
	if err = websocket.Message.Receive(w.Conn, &data); err != nil && isTimeout(err) {
		return nil, nil
	}
	return
}

// WriteData implements ecu.Transport.
func (w *Websocket) WriteData(data []byte) error {
	return websocket.Message.Send(w.Conn, data)
}

// Close closes the connection.
func (w *Websocket) Close() error {
	return w.Conn.Close()
}

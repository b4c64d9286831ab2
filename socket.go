package subscriber

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait is the time allowed to write a message to the peer.
const writeWait = 10 * time.Second

var errSocketClosed = errors.New("socket closed")

// socket wraps a websocket connection with serialized writes. gorilla
// connections support at most one concurrent writer, and relays, renewal
// error reports, and teardown all race for it.
type socket struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func newSocket(conn *websocket.Conn) *socket {
	return &socket{conn: conn}
}

// Send writes data to the client as a single binary message. Payloads
// are relayed as raw bytes, so a binary frame keeps non-UTF-8 content
// legal on the wire.
func (s *socket) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSocketClosed
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Close closes the underlying connection. Send after Close returns an
// error instead of panicking.
func (s *socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.conn.Close()
}

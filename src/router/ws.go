package router

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/itay-sho/co-buddies-server/src/session"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

// wsConn adapts a gorilla websocket connection to the session.Conn
// contract: writes go through a buffered channel drained by a single
// writer goroutine, reads are pumped into the session.
type wsConn struct {
	ws        *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
}

// Send queues a frame for the writer goroutine. A saturated buffer means
// the client stopped reading; the frame is rejected rather than blocking
// the session loop.
func (c *wsConn) Send(data []byte) error {
	select {
	case <-c.closed:
		return websocket.ErrCloseSent
	case c.send <- data:
		return nil
	default:
		return websocket.ErrCloseSent
	}
}

// Close stops accepting frames and lets the writer flush what is already
// queued before tearing the socket down.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// readPump feeds inbound frames to the session until the connection drops.
func (c *wsConn) readPump(s *session.Session) {
	defer func() {
		s.ConnClosed()
		c.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", "error", err)
			}
			return
		}
		s.Receive(data)
	}
}

// writePump is the sole writer on the underlying connection.
func (c *wsConn) writePump() {
	defer c.ws.Close()

	for {
		select {
		case <-c.closed:
			// Flush frames queued before the close, then say goodbye.
			for {
				select {
				case data := <-c.send:
					c.ws.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
						return
					}
				default:
					c.ws.SetWriteDeadline(time.Now().Add(writeWait))
					c.ws.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
			}
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

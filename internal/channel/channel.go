// Package channel wraps a WebSocket connection as a duplex frame channel.
package channel

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/form-automation/tracker/internal/model"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed for the opening handshake to complete.
	handshakeTimeout = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 65536
)

// Channel is one open duplex connection. Inbound frames are delivered in
// receipt order on Events; the channel is closed for events exactly once,
// after which CloseError reports why.
type Channel struct {
	conn   *websocket.Conn
	events chan []byte
	done   chan struct{}

	mu          sync.Mutex
	closed      bool
	intentional bool
	closeErr    error
}

// Dial opens a WebSocket connection to the given URL and starts reading
// inbound frames.
func Dial(ctx context.Context, url string) (*Channel, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	conn.SetReadLimit(maxMessageSize)

	c := &Channel{
		conn:   conn,
		events: make(chan []byte, 16),
		done:   make(chan struct{}),
	}

	go c.readPump()

	return c, nil
}

// Events returns the inbound frame stream. The channel is closed when the
// connection is no longer readable; call CloseError to learn why.
func (c *Channel) Events() <-chan []byte {
	return c.events
}

// Send writes v as a single JSON frame.
func (c *Channel) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return model.ErrChannelClosed
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Close shuts the channel down intentionally, attempting the normal-closure
// handshake so the peer does not treat the disconnect as a failure.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.intentional = true
	close(c.done)
	c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

// CloseError returns the error that ended the read loop, or nil if the
// channel is still open or was closed intentionally before any read failure.
func (c *Channel) CloseError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

// NormalClose reports whether the channel ended by intentional shutdown or by
// the peer sending the normal closure code. Anything else is an abnormal
// closure and should trigger reconnection.
func (c *Channel) NormalClose() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.intentional {
		return true
	}
	return websocket.IsCloseError(c.closeErr, websocket.CloseNormalClosure)
}

// readPump pumps frames from the WebSocket connection to the events channel
// until the connection fails or the channel is closed.
func (c *Channel) readPump() {
	defer close(c.events)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if !c.closed {
				c.closeErr = err
				c.closed = true
			}
			c.mu.Unlock()
			c.conn.Close()
			return
		}

		select {
		case c.events <- message:
		case <-c.done:
			return
		}
	}
}

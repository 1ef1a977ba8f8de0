// Package cdp implements the wire side of the remote debugging protocol:
// JSON envelopes, request/reply correlation, notification routing and the
// WebSocket transport.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport carries text frames to and from the remote endpoint.
type Transport interface {
	// Send writes one frame.
	Send(data []byte) error

	// Receive blocks until the next frame arrives.
	Receive() ([]byte, error)

	// Close closes the connection. Pending Receive calls return an error.
	Close() error
}

// Dialer opens a Transport to a WebSocket debugger URL.
type Dialer func(ctx context.Context, url string) (Transport, error)

// MaxFrameSize bounds a single inbound frame (scriptSource replies can be large).
const MaxFrameSize = 64 * 1024 * 1024

// WebSocketTransport implements Transport over a WebSocket connection.
type WebSocketTransport struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// DialWebSocket connects to a debugger WebSocket URL.
func DialWebSocket(ctx context.Context, url string) (Transport, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn.SetReadLimit(MaxFrameSize)

	return NewWebSocketTransport(conn), nil
}

// NewWebSocketTransport wraps an established connection.
func NewWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	return &WebSocketTransport{conn: conn}
}

// Send writes data as a single text frame.
func (t *WebSocketTransport) Send(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return ErrTransportClosed
		}
		return err
	}
	return nil
}

// Receive reads the next text frame. Binary frames are skipped.
func (t *WebSocketTransport) Receive() ([]byte, error) {
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage {
			return data, nil
		}
	}
}

// Close sends a close frame and closes the connection.
func (t *WebSocketTransport) Close() error {
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		_ = t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		t.writeMu.Unlock()
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

// Package transport provides the duplex text-frame channel the Connection
// Manager drives: a Transport connects to a URL, exchanges text frames, and
// reports lifecycle events through callbacks. The one implementation is a
// gorilla/websocket client dialer — the same library
// bken/server/internal/ws/handler.go uses server-side, used here in the
// inverse, outbound role.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Callbacks receives Transport lifecycle events. All fields are optional;
// a nil callback is simply not invoked.
type Callbacks struct {
	OnConnecting   func()
	OnConnected    func()
	OnUnauthorized func()
	OnNetBroken    func(reason string)
	OnMessage      func(frame string)
}

// Transport is a duplex text-frame channel abstraction over a live
// connection.
type Transport interface {
	// Connect dials url (with token attached) and blocks, dispatching cb's
	// callbacks as the session progresses, until ctx is canceled or the
	// connection breaks. It returns when the session ends for any reason.
	// A fresh Callbacks is supplied on every call, one per reconnect
	// attempt.
	Connect(ctx context.Context, url, token string, cb Callbacks) error
	// Send writes one text frame. Safe to call concurrently, with Connect's
	// read loop and with itself.
	Send(frame string) error
	// Close tears down the live connection, if any.
	Close() error
}

// WSTransport is the gorilla/websocket-backed Transport implementation.
type WSTransport struct {
	HandshakeTimeout time.Duration
	// PingInterval and PingTimeout drive the WS-level ping/pong liveness
	// check, separate from the Connection Manager's application-level nop
	// keepalive frame: a control-frame ping is sent every PingInterval, and
	// the connection is considered dead if no pong (or other traffic)
	// arrives within PingTimeout of the last one.
	PingInterval time.Duration
	PingTimeout  time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex // serializes Send's data-frame writes
}

// NewWSTransport builds a WSTransport with the given handshake timeout and
// ping/pong cadence.
func NewWSTransport(handshakeTimeout, pingInterval, pingTimeout time.Duration) *WSTransport {
	return &WSTransport{
		HandshakeTimeout: handshakeTimeout,
		PingInterval:     pingInterval,
		PingTimeout:      pingTimeout,
	}
}

func (t *WSTransport) Connect(ctx context.Context, url, token string, cb Callbacks) error {
	if cb.OnConnecting != nil {
		cb.OnConnecting()
	}

	dialer := websocket.Dialer{HandshakeTimeout: t.HandshakeTimeout}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			if cb.OnUnauthorized != nil {
				cb.OnUnauthorized()
			}
		}
		return fmt.Errorf("transport: dial failed: %w", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	conn.SetPingHandler(func(data string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	pingTimeout := t.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	conn.SetReadDeadline(time.Now().Add(pingTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pingTimeout))
		return nil
	})

	if cb.OnConnected != nil {
		cb.OnConnected()
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		<-ctx.Done()
		_ = t.Close()
	}()

	if t.PingInterval > 0 {
		go t.pingLoop(done)
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if cb.OnNetBroken != nil {
				cb.OnNetBroken(err.Error())
			}
			return nil
		}
		conn.SetReadDeadline(time.Now().Add(pingTimeout))
		if msgType != websocket.TextMessage {
			continue
		}
		if cb.OnMessage != nil {
			cb.OnMessage(string(data))
		}
	}
}

// pingLoop sends a WS-level ping control frame every PingInterval until done
// is closed, driving the peer's pong replies that reset the read deadline.
func (t *WSTransport) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(t.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			t.mu.Lock()
			conn := t.conn
			t.mu.Unlock()
			if conn == nil {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

func (t *WSTransport) Send(frame string) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("transport: not connected")
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (t *WSTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

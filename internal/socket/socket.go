// Package socket wraps a client WebSocket in the multivox message framing.
//
// Frames are JSON text messages; see [chat.Message] for the union. Receive
// distinguishes clean disconnects from protocol violations so the session
// orchestrator can pick the right close code.
package socket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/rjpio/multivox/internal/chat"
)

// ErrDisconnected is returned by Receive when the peer has gone away
// (normal closure or dropped transport). Treated as the start of teardown,
// never as a fault.
var ErrDisconnected = errors.New("socket: client disconnected")

// ErrProtocol is returned by Receive for frames that violate the wire
// protocol (unknown type, malformed JSON, binary frames). Sessions close
// with [websocket.StatusPolicyViolation] (1008) on this error.
var ErrProtocol = errors.New("socket: protocol error")

// Socket is a typed, bidirectional message channel over one WebSocket.
// Receive is intended for a single reader goroutine; Send and Close are safe
// for concurrent use.
type Socket struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// Accept upgrades an HTTP request to a WebSocket and wraps it.
func Accept(w http.ResponseWriter, r *http.Request) (*Socket, error) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The practice client is a same-origin SPA; cross-origin upgrades
		// are rejected by default.
	})
	if err != nil {
		return nil, fmt.Errorf("socket: accept: %w", err)
	}
	return New(conn), nil
}

// New wraps an already-established WebSocket connection. Used directly by
// tests that dial a local server.
func New(conn *websocket.Conn) *Socket {
	return &Socket{conn: conn}
}

// Receive blocks for the next frame and decodes it. It returns
// [ErrDisconnected] when the peer closed or the transport failed, and an
// error wrapping [ErrProtocol] for invalid frames.
func (s *Socket) Receive(ctx context.Context) (*chat.Message, error) {
	typ, data, err := s.conn.Read(ctx)
	if err != nil {
		status := websocket.CloseStatus(err)
		if status != -1 || ctx.Err() != nil {
			return nil, ErrDisconnected
		}
		return nil, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	if typ != websocket.MessageText {
		return nil, fmt.Errorf("%w: binary frame", ErrProtocol)
	}

	msg, err := chat.ParseMessage(data)
	if err != nil {
		// Unknown kinds and malformed JSON are the same offence on the wire.
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return msg, nil
}

// Send serialises msg and writes it as a text frame.
func (s *Socket) Send(ctx context.Context, msg *chat.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("socket: write: %w", err)
	}
	return nil
}

// Close performs the closing handshake with the given status. Idempotent;
// only the first call's status reaches the peer.
func (s *Socket) Close(code websocket.StatusCode, reason string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.conn.Close(code, reason); err != nil {
		// The peer may already be gone; closing a dead connection is fine.
		return nil
	}
	return nil
}

// Closed reports whether Close has been called locally.
func (s *Socket) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

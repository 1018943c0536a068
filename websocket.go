package statedb

import (
	"context"
	"io"
	"net/http"

	"github.com/gorilla/websocket"
)

// WebSocketDialer returns a DialFunc that tunnels the byte stream through a
// WebSocket, for servers exposed behind an HTTP endpoint. addr is the
// WebSocket URL, e.g. "ws://host:8080/statedb".
//
// If dialer is nil, websocket.DefaultDialer is used.
func WebSocketDialer(dialer *websocket.Dialer, header http.Header) DialFunc {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return func(ctx context.Context, addr string) (io.ReadWriteCloser, error) {
		conn, resp, err := dialer.DialContext(ctx, addr, header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			return nil, err
		}
		return NewWebSocketStream(conn), nil
	}
}

// WebSocketStream adapts a WebSocket to a byte stream.
//
// Each Write is sent as one binary message. Reads concatenate incoming
// messages, so frames may be split across messages in any way. Text and
// binary messages are treated alike.
//
// Reads and writes may run concurrently with each other, but not with
// themselves.
type WebSocketStream struct {
	conn *websocket.Conn
	r    io.Reader
}

// NewWebSocketStream wraps an established WebSocket, on either side.
func NewWebSocketStream(conn *websocket.Conn) *WebSocketStream {
	return &WebSocketStream{conn: conn}
}

func (s *WebSocketStream) Read(p []byte) (int, error) {
	for {
		if s.r == nil {
			_, r, err := s.conn.NextReader()
			if err != nil {
				return 0, err
			}
			s.r = r
		}

		n, err := s.r.Read(p)
		if err == io.EOF {
			s.r = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (s *WebSocketStream) Write(p []byte) (int, error) {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *WebSocketStream) Close() error {
	return s.conn.Close()
}

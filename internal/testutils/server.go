package testutils

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/pior/statedb/wire"
)

type storedValue struct {
	value any
	t     wire.DataType
}

type serverConn struct {
	mu sync.Mutex
	w  io.Writer
}

// Server is a minimal in-process statedb server.
//
//   - Set stores the value and answers Value
//   - Delete removes the key and answers Deleted (even when absent)
//   - Get answers Value, or Error when the key is missing
//   - GetAll answers one Value per key
//   - Ping answers Pong
//   - unknown kinds answer Error
type Server struct {
	t        testing.TB
	listener net.Listener
	codec    wire.Codec

	mu       sync.Mutex
	data     map[string]storedValue
	order    []string
	requests []*wire.Request
	conns    map[*serverConn]struct{}
	accepted map[net.Conn]struct{}
	versions []uint8

	wg sync.WaitGroup
}

// NewServer starts a server on a random local TCP port.
// It is closed by t.Cleanup.
func NewServer(t testing.TB) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("testutils: listen: %v", err)
	}

	s := NewDetachedServer(t)
	s.listener = ln

	s.wg.Add(1)
	go s.accept()

	t.Cleanup(s.Close)
	return s
}

// NewDetachedServer creates a server with no listener. Feed it streams with
// Serve.
func NewDetachedServer(t testing.TB) *Server {
	return &Server{
		t:        t,
		data:     make(map[string]storedValue),
		conns:    make(map[*serverConn]struct{}),
		accepted: make(map[net.Conn]struct{}),
	}
}

// Addr returns the listening address
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

func (s *Server) accept() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.accepted[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.accepted, conn)
				s.mu.Unlock()
				_ = conn.Close()
			}()

			if err := s.Serve(conn); err != nil {
				s.t.Logf("testutils: serve: %v", err)
			}
		}()
	}
}

// Serve reads the handshake then answers requests from rw until it fails.
// Returns nil when the client closed the stream.
func (s *Server) Serve(rw io.ReadWriter) error {
	r := bufio.NewReader(rw)

	version, err := wire.ReadHandshake(r)
	if err != nil {
		return err
	}

	sc := &serverConn{w: rw}
	s.mu.Lock()
	s.versions = append(s.versions, version)
	s.conns[sc] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, sc)
		s.mu.Unlock()
	}()

	for {
		req, err := wire.ReadRequest(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		if err := s.write(sc, s.handle(req)...); err != nil {
			return err
		}
	}
}

func (s *Server) handle(req *wire.Request) []*wire.Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)

	switch req.Kind {
	case wire.RequestSet:
		s.put(req.Key, req.Value, req.Type)
		return []*wire.Response{wire.NewValueResponse(req.Key, req.Value, req.Type)}

	case wire.RequestDelete:
		if _, ok := s.data[req.Key]; ok {
			delete(s.data, req.Key)
			for i, k := range s.order {
				if k == req.Key {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		}
		return []*wire.Response{wire.NewDeletedResponse(req.Key)}

	case wire.RequestGet:
		v, ok := s.data[req.Key]
		if !ok {
			return []*wire.Response{wire.NewErrorResponse("key not found: " + req.Key)}
		}
		return []*wire.Response{wire.NewValueResponse(req.Key, v.value, v.t)}

	case wire.RequestGetAll:
		out := make([]*wire.Response, 0, len(s.order))
		for _, k := range s.order {
			v := s.data[k]
			out = append(out, wire.NewValueResponse(k, v.value, v.t))
		}
		return out

	case wire.RequestPing:
		return []*wire.Response{{Kind: wire.ResponsePong}}
	}

	return []*wire.Response{wire.NewErrorResponse("unknown request " + req.Kind.String())}
}

// put stores a value (must be called with lock held)
func (s *Server) put(key string, value any, t wire.DataType) {
	if _, ok := s.data[key]; !ok {
		s.order = append(s.order, key)
	}
	s.data[key] = storedValue{value: value, t: t}
}

func (s *Server) write(sc *serverConn, resps ...*wire.Response) error {
	var frames []byte
	for _, resp := range resps {
		var err error
		frames, err = s.codec.AppendResponse(frames, resp)
		if err != nil {
			return err
		}
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	_, err := sc.w.Write(frames)
	return err
}

// Put stores a value without telling any client.
func (s *Server) Put(key string, value any, t wire.DataType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(key, value, t)
}

// Push sends unsolicited responses to every connected client.
func (s *Server) Push(resps ...*wire.Response) {
	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for sc := range s.conns {
		conns = append(conns, sc)
	}
	s.mu.Unlock()

	for _, sc := range conns {
		if err := s.write(sc, resps...); err != nil {
			s.t.Logf("testutils: push: %v", err)
		}
	}
}

// Requests returns the requests received so far, in arrival order.
func (s *Server) Requests() []*wire.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*wire.Request(nil), s.requests...)
}

// Clients returns the number of clients past the handshake.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Versions returns the protocol versions announced by handshakes.
func (s *Server) Versions() []uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint8(nil), s.versions...)
}

// Close stops accepting, drops every accepted connection and waits for their
// goroutines to exit.
func (s *Server) Close() {
	if s.listener != nil {
		_ = s.listener.Close()
	}

	s.mu.Lock()
	for conn := range s.accepted {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

package testutils

import (
	"bytes"
	"io"
	"net"
	"sync"
)

// ConnectionMock is an in-memory transport for testing.
//
// Reads return the fed data, then block until more is fed, EndOfStream is
// called or the mock is closed. Writes are recorded.
type ConnectionMock struct {
	mu       sync.Mutex
	cond     *sync.Cond
	readBuf  bytes.Buffer
	writeBuf bytes.Buffer
	eof      bool
	closed   bool
	writeErr error
}

// NewConnectionMock creates a mock connection with pre-configured response data
func NewConnectionMock(responseData ...[]byte) *ConnectionMock {
	m := &ConnectionMock{}
	m.cond = sync.NewCond(&m.mu)
	for _, data := range responseData {
		m.readBuf.Write(data)
	}
	return m
}

// Feed appends data for the reader
func (m *ConnectionMock) Feed(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readBuf.Write(data)
	m.cond.Broadcast()
}

// EndOfStream makes reads return io.EOF once the fed data is consumed.
func (m *ConnectionMock) EndOfStream() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.eof = true
	m.cond.Broadcast()
}

// FailWrites makes every later Write return err.
func (m *ConnectionMock) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

func (m *ConnectionMock) Read(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.readBuf.Len() == 0 {
		switch {
		case m.closed:
			return 0, net.ErrClosed
		case m.eof:
			return 0, io.EOF
		}
		m.cond.Wait()
	}
	return m.readBuf.Read(b)
}

func (m *ConnectionMock) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, net.ErrClosed
	}
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	return m.writeBuf.Write(b)
}

func (m *ConnectionMock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.cond.Broadcast()
	return nil
}

// Closed reports whether Close was called
func (m *ConnectionMock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Written returns a copy of the bytes written to the mock connection
func (m *ConnectionMock) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bytes.Clone(m.writeBuf.Bytes())
}

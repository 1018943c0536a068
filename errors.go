package statedb

import (
	"errors"
)

var (
	ErrNotConnected     = errors.New("statedb: not connected")
	ErrAlreadyConnected = errors.New("statedb: already connected")
	ErrAlreadyListening = errors.New("statedb: receive loop already running")
	ErrConnectionClosed = errors.New("statedb: connection closed")
)

// ConnectionError reports a transport failure: dial, handshake, read or
// write. It is fatal to the call or loop that hit it and is never retried.
type ConnectionError struct {
	Op   string // "dial", "handshake", "read" or "write"
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return "statedb: " + e.Op + " " + e.Addr + ": " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

package statedb

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/pior/statedb/wire"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// DialFunc opens the byte stream to the server at addr.
// The stream must be reliable and ordered.
type DialFunc func(ctx context.Context, addr string) (io.ReadWriteCloser, error)

// Config holds configuration for a statedb connection.
type Config struct {
	// Addr is the server address handed to Dial.
	// Required.
	Addr string

	// DialTimeout bounds Connect when the context has no earlier deadline.
	// Zero means no limit.
	DialTimeout time.Duration

	// Dialer is the net.Dialer used by the default TCP Dial.
	// If nil, the default net.Dialer is used.
	Dialer *net.Dialer

	// Dial opens the transport.
	// If nil, a TCP connection is dialed with Dialer. See WebSocketDialer for
	// an alternative.
	Dial DialFunc

	// FloatPrecision picks the type inferred for Go floats by AutoSuggest.
	// The zero value infers Float64.
	FloatPrecision wire.Precision

	// ReadBufferSize is the size of the buffered reader over the transport.
	// Zero uses bufio's default.
	ReadBufferSize int

	// Logger receives connection and dispatch logs.
	// If nil, logs are discarded.
	Logger *zap.Logger

	// NewCircuitBreaker creates a circuit breaker guarding Connect.
	// Called once per connection with the server address.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func(serverAddr string) *gobreaker.CircuitBreaker[io.ReadWriteCloser]
}

func (c Config) codec() wire.Codec {
	return wire.Codec{FloatPrecision: c.FloatPrecision}
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c Config) readBufferSize() int {
	if c.ReadBufferSize <= 0 {
		return 4096
	}
	return c.ReadBufferSize
}

func (c Config) dialFunc() DialFunc {
	if c.Dial != nil {
		return c.Dial
	}

	dialer := c.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	return func(ctx context.Context, addr string) (io.ReadWriteCloser, error) {
		return dialer.DialContext(ctx, "tcp", addr)
	}
}

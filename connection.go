package statedb

import (
	"bufio"
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pior/statedb/internal/coarsetime"
	"github.com/pior/statedb/wire"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// maxWriteBuffer bounds the frame buffer kept between sends
const maxWriteBuffer = 64 << 10

// State is the lifecycle stage of a Connection.
type State int32

const (
	StateDisconnected State = iota // not yet connected
	StateConnected                 // handshake sent, receive loop not started
	StateListening                 // receive loop running
	StateClosed                    // receive loop exited or Close called
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateListening:
		return "listening"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Handler is invoked on the receive goroutine for every response of the kind
// it was registered for. Handlers run synchronously, in registration order,
// and must not block.
//
// For unknown kinds the response only carries Kind and Size.
type Handler func(resp *wire.Response)

type handlerEntry struct {
	fn Handler
}

// Connection owns one transport to a statedb server.
// Writes may come from any goroutine; reads belong to the receive loop.
type Connection struct {
	addr           string
	codec          wire.Codec
	dial           DialFunc
	dialTimeout    time.Duration
	readBufferSize int
	breaker        *gobreaker.CircuitBreaker[io.ReadWriteCloser]
	logger         *zap.Logger

	mu              sync.Mutex
	state           State
	connecting      bool
	transport       io.ReadWriteCloser
	reader          *bufio.Reader
	transportClosed bool

	// writeMu serializes frames so concurrent senders never interleave.
	writeMu sync.Mutex
	wbuf    []byte

	handlersMu sync.RWMutex
	handlers   map[wire.ResponseKind][]*handlerEntry

	stopping     atomic.Bool
	lastReceived atomic.Int64
	startOnce    sync.Once
	done         chan struct{}
	loopErr      error

	stats *statsCollector
}

// NewConnection creates a disconnected Connection.
// A handler logging Error responses is registered up front.
func NewConnection(config Config) *Connection {
	var breaker *gobreaker.CircuitBreaker[io.ReadWriteCloser]
	if config.NewCircuitBreaker != nil {
		breaker = config.NewCircuitBreaker(config.Addr)
	}

	c := &Connection{
		addr:           config.Addr,
		codec:          config.codec(),
		dial:           config.dialFunc(),
		dialTimeout:    config.DialTimeout,
		readBufferSize: config.readBufferSize(),
		breaker:        breaker,
		logger:         config.logger().With(zap.String("addr", config.Addr)),
		handlers:       make(map[wire.ResponseKind][]*handlerEntry),
		done:           make(chan struct{}),
		stats:          newStatsCollector(),
	}

	c.Register(wire.ResponseError, c.logServerError)
	c.Register(wire.ResponseForceLogout, c.logForceLogout)

	return c
}

// Addr returns the server address
func (c *Connection) Addr() string {
	return c.addr
}

// Codec returns the codec used to encode requests.
func (c *Connection) Codec() wire.Codec {
	return c.codec
}

// State returns the current lifecycle state
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a snapshot of connection statistics.
func (c *Connection) Stats() ConnectionStats {
	return c.stats.snapshot()
}

// LastReceived returns the coarse time of the last response read, or the zero
// time if none was read yet.
func (c *Connection) LastReceived() time.Time {
	ns := c.lastReceived.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// CircuitBreakerState returns the state of the Connect circuit breaker.
// It is StateClosed when no breaker is configured.
func (c *Connection) CircuitBreakerState() gobreaker.State {
	if c.breaker == nil {
		return gobreaker.StateClosed
	}
	return c.breaker.State()
}

// Connect opens the transport and sends the handshake.
// It does not wait for any acknowledgment: the server sends none.
//
// The dial runs without holding the connection lock, so State and Close
// answer while it is in progress. A Close during the dial wins: the new
// transport is closed and ErrConnectionClosed returned.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.state == StateClosed:
		c.mu.Unlock()
		return ErrConnectionClosed
	case c.state != StateDisconnected, c.connecting:
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.connecting = true
	c.mu.Unlock()

	transport, err := c.dialAndHandshake(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.connecting = false

	if err != nil {
		return err
	}
	if c.state == StateClosed {
		_ = transport.Close()
		return ErrConnectionClosed
	}

	c.transport = transport
	c.reader = bufio.NewReaderSize(transport, c.readBufferSize)
	c.state = StateConnected

	c.logger.Debug("connected")
	return nil
}

// dialAndHandshake runs open under the dial timeout and the circuit breaker
func (c *Connection) dialAndHandshake(ctx context.Context) (io.ReadWriteCloser, error) {
	if c.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.dialTimeout)
		defer cancel()
	}

	open := func() (io.ReadWriteCloser, error) {
		return c.open(ctx)
	}

	var transport io.ReadWriteCloser
	var err error
	if c.breaker != nil {
		transport, err = c.breaker.Execute(open)
	} else {
		transport, err = open()
	}
	if err != nil {
		var connErr *ConnectionError
		if !errors.As(err, &connErr) {
			// open state of the breaker
			err = &ConnectionError{Op: "dial", Addr: c.addr, Err: err}
		}
		return nil, err
	}
	return transport, nil
}

// open dials and writes the handshake
func (c *Connection) open(ctx context.Context) (io.ReadWriteCloser, error) {
	transport, err := c.dial(ctx, c.addr)
	if err != nil {
		return nil, &ConnectionError{Op: "dial", Addr: c.addr, Err: err}
	}

	if err := wire.WriteHandshake(transport); err != nil {
		_ = transport.Close()
		return nil, &ConnectionError{Op: "handshake", Addr: c.addr, Err: err}
	}

	return transport, nil
}

// Register adds h to the handlers of kind. Handlers of one kind run in
// registration order. The returned function removes h.
func (c *Connection) Register(kind wire.ResponseKind, h Handler) (unregister func()) {
	entry := &handlerEntry{fn: h}

	c.handlersMu.Lock()
	c.handlers[kind] = append(c.handlers[kind], entry)
	c.handlersMu.Unlock()

	return func() {
		c.handlersMu.Lock()
		defer c.handlersMu.Unlock()

		// copy on write: dispatch may be iterating the old slice
		hs := c.handlers[kind]
		if i := slices.Index(hs, entry); i >= 0 {
			c.handlers[kind] = slices.Delete(slices.Clone(hs), i, i+1)
		}
	}
}

// Send serializes req and writes it to the transport.
// Encode errors are returned before anything is written.
func (c *Connection) Send(req *wire.Request) error {
	c.mu.Lock()
	state, transport := c.state, c.transport
	c.mu.Unlock()

	switch state {
	case StateDisconnected:
		return ErrNotConnected
	case StateClosed:
		return ErrConnectionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	frame, err := c.codec.AppendRequest(c.wbuf[:0], req)
	if err != nil {
		return err
	}
	if cap(frame) <= maxWriteBuffer {
		c.wbuf = frame
	} else {
		c.wbuf = nil
	}

	if _, err := transport.Write(frame); err != nil {
		return &ConnectionError{Op: "write", Addr: c.addr, Err: err}
	}

	c.stats.recordSent(len(frame))
	return nil
}

// Listen runs the receive loop on the calling goroutine until Stop, Close,
// ctx cancellation or a read failure.
//
// Each iteration reads one response, decodes or drains its body and invokes
// the handlers registered for its kind. The stop condition is checked between
// iterations only; a read in progress is interrupted by Close, not by Stop.
//
// Returns nil when stopped, a *ConnectionError on transport failure or a
// *wire.DecodeError on a malformed body. In every case the connection ends
// up closed; there is no reconnection.
func (c *Connection) Listen(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateDisconnected:
		c.mu.Unlock()
		return ErrNotConnected
	case StateListening:
		c.mu.Unlock()
		return ErrAlreadyListening
	case StateClosed:
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	c.state = StateListening
	reader := c.reader
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, c.Stop)
	defer stop()

	c.logger.Debug("receive loop entered")
	err := c.receiveLoop(reader)
	c.shutdown()

	if err != nil {
		c.logger.Error("receive loop failed", zap.Error(err))
	} else {
		c.logger.Debug("receive loop exited")
	}
	return err
}

// Start runs Listen on a new goroutine. Only the first call has an effect.
// Use Wait or Done to observe the end of the loop.
func (c *Connection) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		go func() {
			c.loopErr = c.Listen(ctx)
			close(c.done)
		}()
	})
}

// Done is closed when the loop started by Start has exited.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the loop started by Start exits and returns its error.
func (c *Connection) Wait() error {
	<-c.done
	return c.loopErr
}

// Stop asks the receive loop to exit after the current iteration.
func (c *Connection) Stop() {
	c.stopping.Store(true)
}

// Close stops the receive loop and closes the transport, which unblocks a
// pending read.
// If Start was never called, Done is closed and Wait returns nil.
func (c *Connection) Close() error {
	c.Stop()
	c.startOnce.Do(func() { close(c.done) })

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateClosed
	return c.closeTransport()
}

// shutdown marks the connection closed once the loop has exited
func (c *Connection) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateClosed
	_ = c.closeTransport()
}

// closeTransport closes the transport once (must be called with lock held)
func (c *Connection) closeTransport() error {
	if c.transport == nil || c.transportClosed {
		return nil
	}
	c.transportClosed = true
	return c.transport.Close()
}

func (c *Connection) receiveLoop(r *bufio.Reader) error {
	for !c.stopping.Load() {
		if err := c.receiveOne(r); err != nil {
			if c.stopping.Load() {
				// read interrupted by Close
				return nil
			}
			return err
		}
	}
	return nil
}

// receiveOne reads a single response and dispatches it
func (c *Connection) receiveOne(r *bufio.Reader) error {
	resp, err := wire.ReadResponse(r)
	if err != nil {
		// a malformed body was consumed whole; the stream is still aligned,
		// but the loop ends as for any other peer failure
		var decErr *wire.DecodeError
		if errors.As(err, &decErr) {
			return err
		}
		return &ConnectionError{Op: "read", Addr: c.addr, Err: err}
	}

	c.lastReceived.Store(coarsetime.Now().UnixNano())
	c.stats.recordReceived(resp)

	if resp.Kind.Known() {
		c.logger.Debug("received response", zap.Stringer("kind", resp.Kind), zap.Uint32("size", resp.Size))
	} else {
		c.logger.Debug("discarded unknown response", zap.Stringer("kind", resp.Kind), zap.Uint32("size", resp.Size))
	}

	c.dispatch(resp)
	return nil
}

// dispatch invokes the handlers registered for resp.Kind, in order
func (c *Connection) dispatch(resp *wire.Response) {
	c.handlersMu.RLock()
	hs := c.handlers[resp.Kind]
	c.handlersMu.RUnlock()

	for _, h := range hs {
		h.fn(resp)
	}
	c.stats.recordHandlerCalls(len(hs))
}

func (c *Connection) logServerError(resp *wire.Response) {
	c.logger.Error("server error", zap.String("message", resp.Message))
}

func (c *Connection) logForceLogout(resp *wire.Response) {
	c.logger.Warn("server requested logout")
}

package statedb

import (
	"context"
	"errors"

	"github.com/pior/statedb/wire"
)

// Client bundles a Connection and the Storage mirror fed by it.
type Client struct {
	conn    *Connection
	storage *Storage
}

// NewClient creates a client for config.Addr. Nothing is dialed until Connect.
func NewClient(config Config) (*Client, error) {
	if config.Addr == "" {
		return nil, errors.New("statedb: Config.Addr is required")
	}

	conn := NewConnection(config)
	return &Client{
		conn:    conn,
		storage: NewStorage(conn, conn.Codec()),
	}, nil
}

// Connect dials the server, sends the handshake and starts the receive loop
// in the background. The loop outlives ctx; stop it with Close.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.conn.Connect(ctx); err != nil {
		return err
	}
	c.conn.Start(context.WithoutCancel(ctx))
	return nil
}

// Storage returns the local mirror
func (c *Client) Storage() *Storage {
	return c.storage
}

// Connection returns the underlying connection, for handler registration.
func (c *Client) Connection() *Connection {
	return c.conn
}

// Stats returns the connection statistics
func (c *Client) Stats() ConnectionStats {
	return c.conn.Stats()
}

// Ping sends a Ping and waits for a Pong.
// Pongs are not correlated: any Pong received after the send counts.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Await(ctx, wire.NewRequest(wire.RequestPing, ""), func(resp *wire.Response) bool {
		return resp.Kind == wire.ResponsePong
	})
	return err
}

// Await sends req and blocks until a response accepted by match arrives, ctx
// is done or the receive loop exits. An accepted Error response is returned
// as a *wire.ServerError.
//
// The protocol has no request ids, so match decides which response answers
// req. Handlers registered before Await still see the response.
func (c *Client) Await(ctx context.Context, req *wire.Request, match func(*wire.Response) bool) (*wire.Response, error) {
	found := make(chan *wire.Response, 1)
	deliver := func(resp *wire.Response) {
		if !match(resp) {
			return
		}
		select {
		case found <- resp:
		default:
		}
	}

	for _, kind := range []wire.ResponseKind{
		wire.ResponseValue, wire.ResponseDeleted, wire.ResponsePong, wire.ResponseError, wire.ResponseForceLogout,
	} {
		unregister := c.conn.Register(kind, deliver)
		defer unregister()
	}

	if err := c.conn.Send(req); err != nil {
		return nil, err
	}

	select {
	case resp := <-found:
		return resp, resp.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.conn.Done():
		if err := c.conn.Wait(); err != nil {
			return nil, err
		}
		return nil, ErrConnectionClosed
	}
}

// Close stops the receive loop and closes the transport.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Wait blocks until the receive loop exits and returns its error.
func (c *Client) Wait() error {
	return c.conn.Wait()
}

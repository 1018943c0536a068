package statedb

import (
	"sync/atomic"

	"github.com/pior/statedb/wire"
)

// ConnectionStats contains statistics about a connection.
// All fields are safe for concurrent access.
//
// Struct is sized to a single cache line (64 bytes).
//
// For Prometheus integration, expose these as counters:
// RequestsSent, BytesSent, ResponsesReceived, BytesReceived,
// UnknownResponses, ServerErrors, HandlerCalls.
type ConnectionStats struct {
	RequestsSent      uint64 // Requests written to the transport
	BytesSent         uint64 // Request bytes written, preambles included
	ResponsesReceived uint64 // Responses read, unknown kinds included
	BytesReceived     uint64 // Response bytes consumed, preambles included
	UnknownResponses  uint64 // Responses of unknown kind, drained and discarded
	ServerErrors      uint64 // Error responses
	HandlerCalls      uint64 // Handler invocations
	_                 uint64 // Padding to align to 64 bytes
}

// statsCollector provides internal methods for updating connection stats.
// Not exported - the connection updates its own stats.
type statsCollector struct {
	stats *ConnectionStats
}

func newStatsCollector() *statsCollector {
	return &statsCollector{
		stats: &ConnectionStats{},
	}
}

func (c *statsCollector) recordSent(n int) {
	atomic.AddUint64(&c.stats.RequestsSent, 1)
	atomic.AddUint64(&c.stats.BytesSent, uint64(n))
}

func (c *statsCollector) recordReceived(resp *wire.Response) {
	atomic.AddUint64(&c.stats.ResponsesReceived, 1)
	atomic.AddUint64(&c.stats.BytesReceived, uint64(wire.ResponseHeaderSize)+uint64(resp.Size))

	switch {
	case resp.Kind == wire.ResponseError:
		atomic.AddUint64(&c.stats.ServerErrors, 1)
	case !resp.Kind.Known():
		atomic.AddUint64(&c.stats.UnknownResponses, 1)
	}
}

func (c *statsCollector) recordHandlerCalls(n int) {
	atomic.AddUint64(&c.stats.HandlerCalls, uint64(n))
}

func (c *statsCollector) snapshot() ConnectionStats {
	return ConnectionStats{
		RequestsSent:      atomic.LoadUint64(&c.stats.RequestsSent),
		BytesSent:         atomic.LoadUint64(&c.stats.BytesSent),
		ResponsesReceived: atomic.LoadUint64(&c.stats.ResponsesReceived),
		BytesReceived:     atomic.LoadUint64(&c.stats.BytesReceived),
		UnknownResponses:  atomic.LoadUint64(&c.stats.UnknownResponses),
		ServerErrors:      atomic.LoadUint64(&c.stats.ServerErrors),
		HandlerCalls:      atomic.LoadUint64(&c.stats.HandlerCalls),
	}
}

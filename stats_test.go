package statedb

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/pior/statedb/wire"
	"github.com/stretchr/testify/assert"
)

func TestConnectionStatsSize(t *testing.T) {
	assert.Equal(t, uintptr(64), unsafe.Sizeof(ConnectionStats{}))
}

func TestStatsCollector(t *testing.T) {
	c := newStatsCollector()

	c.recordSent(9)
	c.recordSent(7)
	c.recordReceived(&wire.Response{Kind: wire.ResponseValue, Size: 10})
	c.recordReceived(&wire.Response{Kind: wire.ResponseError, Size: 4})
	c.recordReceived(&wire.Response{Kind: wire.ResponseKind(0xFF77), Size: 0})
	c.recordHandlerCalls(2)
	c.recordHandlerCalls(0)

	assert.Equal(t, ConnectionStats{
		RequestsSent:      2,
		BytesSent:         16,
		ResponsesReceived: 3,
		BytesReceived:     3*wire.ResponseHeaderSize + 14,
		UnknownResponses:  1,
		ServerErrors:      1,
		HandlerCalls:      2,
	}, c.snapshot())
}

func TestStatsCollectorConcurrent(t *testing.T) {
	c := newStatsCollector()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				c.recordSent(1)
				c.recordReceived(&wire.Response{Kind: wire.ResponsePong})
			}
		}()
	}
	wg.Wait()

	stats := c.snapshot()
	assert.Equal(t, uint64(1000), stats.RequestsSent)
	assert.Equal(t, uint64(1000), stats.ResponsesReceived)
	assert.Equal(t, uint64(1000*wire.ResponseHeaderSize), stats.BytesReceived)
}

package statedb

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pior/statedb/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	var config Config

	assert.Equal(t, wire.Codec{}, config.codec())
	assert.NotNil(t, config.logger())
	assert.Equal(t, 4096, config.readBufferSize())
	assert.NotNil(t, config.dialFunc())

	config.ReadBufferSize = 512
	config.FloatPrecision = wire.PrecisionSingle
	assert.Equal(t, 512, config.readBufferSize())
	assert.Equal(t, wire.PrecisionSingle, config.codec().FloatPrecision)
}

func TestConfigDefaultDialUsesTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	config := Config{Dialer: &net.Dialer{Timeout: time.Second}}
	rwc, err := config.dialFunc()(context.Background(), ln.Addr().String())
	require.NoError(t, err)
	defer rwc.Close()

	select {
	case conn := <-accepted:
		conn.Close()
	case <-time.After(time.Second):
		t.Fatal("no connection accepted")
	}
}

package statedb

import (
	"errors"
	"maps"
	"math/big"
	"sync"
	"testing"

	"github.com/pior/statedb/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMessenger records requests and lets tests deliver responses the way
// the receive loop does.
type fakeMessenger struct {
	mu       sync.Mutex
	handlers map[wire.ResponseKind][]*handlerEntry
	sent     []*wire.Request
	sendErr  error
	codec    wire.Codec
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{handlers: make(map[wire.ResponseKind][]*handlerEntry)}
}

func (m *fakeMessenger) Register(kind wire.ResponseKind, h Handler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := &handlerEntry{fn: h}
	m.handlers[kind] = append(m.handlers[kind], entry)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		hs := m.handlers[kind]
		for i, e := range hs {
			if e == entry {
				m.handlers[kind] = append(hs[:i:i], hs[i+1:]...)
				return
			}
		}
	}
}

func (m *fakeMessenger) Send(req *wire.Request) error {
	// encode like the connection does, so encode errors surface here too
	if _, err := m.codec.AppendRequest(nil, req); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, req)
	return nil
}

func (m *fakeMessenger) deliver(resp *wire.Response) {
	m.mu.Lock()
	hs := m.handlers[resp.Kind]
	m.mu.Unlock()

	for _, h := range hs {
		h.fn(resp)
	}
}

func (m *fakeMessenger) requests() []*wire.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*wire.Request(nil), m.sent...)
}

func newTestStorage() (*Storage, *fakeMessenger) {
	m := newFakeMessenger()
	return NewStorage(m, wire.Codec{}), m
}

func TestStorageSetIsEventuallyConsistent(t *testing.T) {
	s, m := newTestStorage()

	require.NoError(t, s.Set("answer", 42, wire.AutoSuggest))

	reqs := m.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, wire.RequestSet, reqs[0].Kind)
	assert.Equal(t, "answer", reqs[0].Key)
	assert.Equal(t, wire.TypeInt32, reqs[0].Type)

	_, ok := s.Get("answer")
	assert.False(t, ok, "mirror must not change before confirmation")
	assert.True(t, s.Pending("answer"))

	m.deliver(wire.NewValueResponse("answer", int32(42), wire.TypeInt32))

	v, typ, ok := s.GetWithType("answer")
	require.True(t, ok)
	assert.Equal(t, int32(42), v)
	assert.Equal(t, wire.TypeInt32, typ)
	assert.False(t, s.Pending("answer"))
}

func TestStorageDeleteIsEventuallyConsistent(t *testing.T) {
	s, m := newTestStorage()
	m.deliver(wire.NewValueResponse("k", "v", wire.TypeString))

	require.NoError(t, s.Delete("k"))
	require.Len(t, m.requests(), 1)
	assert.Equal(t, wire.RequestDelete, m.requests()[0].Kind)

	v, ok := s.Get("k")
	assert.True(t, ok, "key stays until the server confirms")
	assert.Equal(t, "v", v)
	assert.True(t, s.Pending("k"))

	// a Value for the key does not clear a pending delete
	m.deliver(wire.NewValueResponse("k", "v2", wire.TypeString))
	assert.True(t, s.Pending("k"))

	m.deliver(wire.NewDeletedResponse("k"))

	_, ok = s.Get("k")
	assert.False(t, ok)
	_, ok = s.Type("k")
	assert.False(t, ok)
	assert.False(t, s.Pending("k"))
	assert.Zero(t, s.Len())
}

func TestStorageDeletedAbsentKey(t *testing.T) {
	s, m := newTestStorage()
	m.deliver(wire.NewValueResponse("a", nil, wire.TypeNone))

	assert.NotPanics(t, func() {
		m.deliver(wire.NewDeletedResponse("missing"))
	})
	assert.Equal(t, []string{"a"}, s.Keys())
}

func TestStorageValueOverwritesType(t *testing.T) {
	s, m := newTestStorage()

	m.deliver(wire.NewValueResponse("k", int8(1), wire.TypeInt8))
	m.deliver(wire.NewValueResponse("k", []byte{0xDE, 0xAD}, wire.TypeBlob))

	v, typ, ok := s.GetWithType("k")
	require.True(t, ok)
	assert.Equal(t, []byte{0xDE, 0xAD}, v)
	assert.Equal(t, wire.TypeBlob, typ)
	assert.Equal(t, 1, s.Len())
}

func TestStorageSetSuppression(t *testing.T) {
	tests := []struct {
		name     string
		cached   *wire.Response
		value    any
		typ      wire.DataType
		wantSent bool
	}{
		{
			name:     "uncached key",
			value:    "x",
			typ:      wire.AutoSuggest,
			wantSent: true,
		},
		{
			name:     "equal string",
			cached:   wire.NewValueResponse("k", "x", wire.TypeString),
			value:    "x",
			typ:      wire.AutoSuggest,
			wantSent: false,
		},
		{
			name:     "equal number of another width",
			cached:   wire.NewValueResponse("k", int32(7), wire.TypeInt32),
			value:    7,
			typ:      wire.AutoSuggest,
			wantSent: false,
		},
		{
			name:     "equal value, other type",
			cached:   wire.NewValueResponse("k", int32(7), wire.TypeInt32),
			value:    uint8(7),
			typ:      wire.TypeUInt8,
			wantSent: false,
		},
		{
			name:     "equal big int",
			cached:   wire.NewValueResponse("k", new(big.Int).Lsh(big.NewInt(1), 40), wire.TypeBigInt),
			value:    int64(1) << 40,
			typ:      wire.AutoSuggest,
			wantSent: false,
		},
		{
			name:     "equal blob",
			cached:   wire.NewValueResponse("k", []byte{1, 2}, wire.TypeBlob),
			value:    []byte{1, 2},
			typ:      wire.AutoSuggest,
			wantSent: false,
		},
		{
			name:     "different value",
			cached:   wire.NewValueResponse("k", "x", wire.TypeString),
			value:    "y",
			typ:      wire.AutoSuggest,
			wantSent: true,
		},
		{
			name:     "none over value",
			cached:   wire.NewValueResponse("k", "x", wire.TypeString),
			value:    nil,
			typ:      wire.AutoSuggest,
			wantSent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m := newTestStorage()
			if tt.cached != nil {
				m.deliver(tt.cached)
			}

			require.NoError(t, s.Set("k", tt.value, tt.typ))
			if tt.wantSent {
				assert.Len(t, m.requests(), 1)
			} else {
				assert.Empty(t, m.requests())
			}

			// Assign always sends
			require.NoError(t, s.Assign("k", tt.value, tt.typ))
			assert.Len(t, m.requests(), map[bool]int{true: 2, false: 1}[tt.wantSent])
		})
	}
}

func TestStorageSetSuppressesIdenticalInFlightWrite(t *testing.T) {
	s, m := newTestStorage()

	require.NoError(t, s.Set("k", "v", wire.AutoSuggest))
	require.NoError(t, s.Set("k", "v", wire.AutoSuggest))
	assert.Len(t, m.requests(), 1)

	// same value, other type is another write
	require.NoError(t, s.Set("k", 5, wire.TypeInt8))
	require.NoError(t, s.Set("k", 5, wire.TypeInt16))
	assert.Len(t, m.requests(), 3)

	m.deliver(wire.NewValueResponse("k", int16(5), wire.TypeInt16))
	assert.False(t, s.Pending("k"))

	require.NoError(t, s.Set("k", "v", wire.AutoSuggest))
	assert.Len(t, m.requests(), 4)
}

func TestStorageSetAfterDeleteInFlight(t *testing.T) {
	s, m := newTestStorage()
	m.deliver(wire.NewValueResponse("k", "v", wire.TypeString))

	require.NoError(t, s.Delete("k"))
	require.NoError(t, s.Set("k", "v", wire.AutoSuggest))
	require.Len(t, m.requests(), 2)
	assert.Equal(t, wire.RequestSet, m.requests()[1].Kind)

	m.deliver(wire.NewDeletedResponse("k"))
	m.deliver(wire.NewValueResponse("k", "v", wire.TypeString))

	v, ok := s.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	assert.False(t, s.Pending("k"))
}

func TestStorageSetEncodeErrorSendsNothing(t *testing.T) {
	tests := []struct {
		name  string
		value any
		typ   wire.DataType
		is    error
	}{
		{name: "uninferable", value: struct{}{}, typ: wire.AutoSuggest, is: wire.ErrUnknownType},
		{name: "out of range", value: 300, typ: wire.TypeInt8},
		{name: "kind mismatch", value: "text", typ: wire.TypeFloat64},
		{name: "invalid tag", value: 1, typ: wire.DataType(77), is: wire.ErrUnknownType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m := newTestStorage()

			err := s.Set("k", tt.value, tt.typ)
			require.Error(t, err)

			var encErr *wire.EncodeError
			assert.ErrorAs(t, err, &encErr)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}

			assert.Empty(t, m.requests())
			assert.False(t, s.Pending("k"))
			assert.Zero(t, s.Len())
		})
	}
}

func TestStorageSendFailureClearsPending(t *testing.T) {
	s, m := newTestStorage()
	m.sendErr = errors.New("write failed")

	assert.ErrorIs(t, s.Set("k", "v", wire.AutoSuggest), m.sendErr)
	assert.False(t, s.Pending("k"))

	assert.ErrorIs(t, s.Delete("k"), m.sendErr)
	assert.False(t, s.Pending("k"))

	// the failed write is not treated as in flight
	m.sendErr = nil
	require.NoError(t, s.Set("k", "v", wire.AutoSuggest))
	assert.Len(t, m.requests(), 1)
}

func TestStorageErrorResponseClearsPending(t *testing.T) {
	s, m := newTestStorage()

	require.NoError(t, s.Set("a", 1, wire.AutoSuggest))
	require.NoError(t, s.Delete("b"))

	m.deliver(wire.NewErrorResponse("rejected"))

	assert.False(t, s.Pending("a"))
	assert.False(t, s.Pending("b"))
	assert.Zero(t, s.Len())
}

func TestStorageRequests(t *testing.T) {
	s, m := newTestStorage()

	require.NoError(t, s.RequestValue("k"))
	require.NoError(t, s.UpdateAll())

	reqs := m.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, wire.RequestGet, reqs[0].Kind)
	assert.Equal(t, "k", reqs[0].Key)
	assert.Equal(t, wire.RequestGetAll, reqs[1].Kind)
	assert.False(t, s.Pending("k"))
}

func TestStorageKeysAndSnapshot(t *testing.T) {
	s, m := newTestStorage()

	m.deliver(wire.NewValueResponse("zeta", float32(1.5), wire.TypeFloat32))
	m.deliver(wire.NewValueResponse("alpha", "a", wire.TypeString))
	m.deliver(wire.NewValueResponse("mid", nil, wire.TypeNone))

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, s.Keys())
	assert.Equal(t, map[string]Entry{
		"zeta":  {Value: float32(1.5), Type: wire.TypeFloat32},
		"alpha": {Value: "a", Type: wire.TypeString},
		"mid":   {Value: nil, Type: wire.TypeNone},
	}, s.Snapshot())

	// None is a stored value, not an absence
	v, ok := s.Get("mid")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestStorageDetach(t *testing.T) {
	s, m := newTestStorage()
	s.Detach()

	m.deliver(wire.NewValueResponse("k", "v", wire.TypeString))
	assert.Zero(t, s.Len())
}

func TestStoragePairingInvariant(t *testing.T) {
	s, m := newTestStorage()

	keys := []string{"a", "b", "c", "d"}
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := range 2000 {
			k := keys[i%len(keys)]
			if i%3 == 0 {
				m.deliver(wire.NewDeletedResponse(k))
			} else {
				m.deliver(wire.NewValueResponse(k, int32(i), wire.TypeInt32))
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}

		s.mu.RLock()
		values := maps.Clone(s.values)
		types := maps.Clone(s.types)
		s.mu.RUnlock()

		require.Len(t, types, len(values))
		for k := range values {
			_, ok := types[k]
			require.True(t, ok, "key %q has a value but no type", k)
		}

		for _, k := range keys {
			v, typ, ok := s.GetWithType(k)
			if ok {
				require.Equal(t, wire.TypeInt32, typ)
				require.IsType(t, int32(0), v)
			}
		}
	}
}

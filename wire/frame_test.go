package wire

import (
	"bufio"
	"bytes"
	"io"
	"runtime"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test request serialization

func TestWriteRequest(t *testing.T) {
	tests := []struct {
		name     string
		req      *Request
		expected []byte
	}{
		{
			name: "get",
			req:  NewRequest(RequestGet, "k"),
			expected: []byte{
				0x01, 0x00, // kind
				0x00,                   // flags
				0x02, 0x00, 0x00, 0x00, // body length
				'k', 0x00,
			},
		},
		{
			name: "delete",
			req:  NewRequest(RequestDelete, "ab"),
			expected: []byte{
				0x02, 0x00,
				0x00,
				0x03, 0x00, 0x00, 0x00,
				'a', 'b', 0x00,
			},
		},
		{
			name:     "ping",
			req:      NewRequest(RequestPing, "ignored"),
			expected: []byte{0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		},
		{
			name:     "get all",
			req:      NewRequest(RequestGetAll, ""),
			expected: []byte{0x05, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		},
		{
			name: "set auto int",
			req:  NewSetRequest("k", 42, AutoSuggest),
			expected: []byte{
				0x04, 0x00,
				0x00,
				0x07, 0x00, 0x00, 0x00,
				'k', 0x00,
				byte(TypeInt32),
				0x2A, 0x00, 0x00, 0x00,
			},
		},
		{
			name: "set explicit uint8",
			req:  NewSetRequest("n", 42, TypeUInt8),
			expected: []byte{
				0x04, 0x00,
				0x00,
				0x04, 0x00, 0x00, 0x00,
				'n', 0x00,
				byte(TypeUInt8),
				0x2A,
			},
		},
		{
			name: "set none",
			req:  NewSetRequest("z", nil, AutoSuggest),
			expected: []byte{
				0x04, 0x00,
				0x00,
				0x03, 0x00, 0x00, 0x00,
				'z', 0x00,
				byte(TypeNone),
			},
		},
	}

	var codec Codec
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			n, err := codec.WriteRequest(&buf, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, buf.Bytes())
			assert.Equal(t, len(tt.expected), n)
		})
	}
}

func TestWriteRequestUnencodableWritesNothing(t *testing.T) {
	var codec Codec
	var buf bytes.Buffer

	_, err := codec.WriteRequest(&buf, NewSetRequest("k", struct{}{}, AutoSuggest))
	require.ErrorIs(t, err, ErrUnknownType)
	assert.Zero(t, buf.Len())

	_, err = codec.WriteRequest(&buf, NewRequest(RequestGet, "bad\x00key"))
	require.Error(t, err)
	assert.Zero(t, buf.Len())

	_, err = codec.WriteRequest(&buf, NewRequest(RequestKind(99), "k"))
	require.ErrorIs(t, err, ErrInvalidKind)
	assert.Zero(t, buf.Len())
}

func TestHandshake(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHandshake(&buf))
	assert.Equal(t, []byte{'H', 'e', 'L', 'l', 'O', 0x01}, buf.Bytes())

	version, err := ReadHandshake(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, uint8(ProtocolVersion), version)

	_, err = ReadHandshake(bytes.NewReader([]byte("HELLO\x01")))
	var decErr *DecodeError
	assert.ErrorAs(t, err, &decErr)
}

func TestRequestRoundTrip(t *testing.T) {
	var codec Codec
	var buf bytes.Buffer

	reqs := []*Request{
		NewRequest(RequestGet, "alpha"),
		NewSetRequest("beta", "value", AutoSuggest),
		NewSetRequest("gamma", []byte{1, 2, 3}, TypeBlob),
		NewRequest(RequestPing, ""),
		NewRequest(RequestDelete, "alpha"),
		NewRequest(RequestGetAll, ""),
	}
	for _, req := range reqs {
		_, err := codec.WriteRequest(&buf, req)
		require.NoError(t, err)
	}

	r := bufio.NewReader(&buf)
	for _, want := range reqs {
		got, err := ReadRequest(r)
		require.NoError(t, err)
		assert.Equal(t, want.Kind, got.Kind)
		if want.Kind.HasKey() {
			assert.Equal(t, want.Key, got.Key)
		}
		if want.Kind == RequestSet {
			assert.Equal(t, want.Value, got.Value)
		}
	}

	_, err := ReadRequest(r)
	assert.ErrorIs(t, err, io.EOF)
}

// Test response parsing

func buildResponses(t *testing.T, resps ...*Response) []byte {
	t.Helper()

	var codec Codec
	var out []byte
	for _, resp := range resps {
		var err error
		out, err = codec.AppendResponse(out, resp)
		require.NoError(t, err)
	}
	return out
}

func TestReadResponseValue(t *testing.T) {
	data := []byte{
		0x01, 0xFF, // kind Value
		0x08, 0x00, 0x00, 0x00, // body length
		'k', 'e', 'y', 0x00,
		byte(TypeInt16),
		0x39, 0x30, // 12345
		0xAA, // trailing byte inside the declared body
	}

	resp, err := ReadResponse(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, ResponseValue, resp.Kind)
	assert.Equal(t, uint32(8), resp.Size)
	assert.Equal(t, "key", resp.Key)
	assert.Equal(t, TypeInt16, resp.Type)
	assert.Equal(t, int16(12345), resp.Value)
}

func TestReadResponseKinds(t *testing.T) {
	data := buildResponses(t,
		NewValueResponse("s", "text", AutoSuggest),
		NewDeletedResponse("s"),
		NewErrorResponse("no such key"),
		&Response{Kind: ResponsePong},
		&Response{Kind: ResponseForceLogout, Body: []byte("bye")},
	)
	r := bytes.NewReader(data)

	resp, err := ReadResponse(r)
	require.NoError(t, err)
	assert.Equal(t, ResponseValue, resp.Kind)
	assert.Equal(t, TypeString, resp.Type)
	assert.Equal(t, "text", resp.Value)

	resp, err = ReadResponse(r)
	require.NoError(t, err)
	assert.Equal(t, ResponseDeleted, resp.Kind)
	assert.Equal(t, "s", resp.Key)

	resp, err = ReadResponse(r)
	require.NoError(t, err)
	assert.Equal(t, ResponseError, resp.Kind)
	assert.Equal(t, "no such key", resp.Message)
	var serverErr *ServerError
	require.ErrorAs(t, resp.Err(), &serverErr)
	assert.Equal(t, "no such key", serverErr.Message)

	resp, err = ReadResponse(r)
	require.NoError(t, err)
	assert.Equal(t, ResponsePong, resp.Kind)
	assert.NoError(t, resp.Err())

	resp, err = ReadResponse(r)
	require.NoError(t, err)
	assert.Equal(t, ResponseForceLogout, resp.Kind)
	assert.Equal(t, uint32(3), resp.Size)
	assert.Nil(t, resp.Body)

	_, err = ReadResponse(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadResponseFrameAlignment(t *testing.T) {
	data := buildResponses(t,
		NewValueResponse("first", int32(1), TypeInt32),
		&Response{Kind: ResponseKind(0xFF7A), Body: []byte("\x00opaque\x00body")},
		NewValueResponse("third", []byte{0xCA, 0xFE}, TypeBlob),
	)

	sources := map[string]func() Source{
		"memory": func() Source { return bytes.NewReader(data) },
		"stream": func() Source {
			return bufio.NewReaderSize(iotest.OneByteReader(bytes.NewReader(data)), 16)
		},
	}

	for name, newSource := range sources {
		t.Run(name, func(t *testing.T) {
			src := newSource()

			first, err := ReadResponse(src)
			require.NoError(t, err)
			assert.Equal(t, ResponseValue, first.Kind)
			assert.Equal(t, "first", first.Key)
			assert.Equal(t, int32(1), first.Value)

			unknown, err := ReadResponse(src)
			require.NoError(t, err)
			assert.Equal(t, ResponseKind(0xFF7A), unknown.Kind)
			assert.False(t, unknown.Kind.Known())
			assert.Equal(t, uint32(12), unknown.Size)

			third, err := ReadResponse(src)
			require.NoError(t, err)
			assert.Equal(t, ResponseValue, third.Kind)
			assert.Equal(t, "third", third.Key)
			assert.Equal(t, TypeBlob, third.Type)
			assert.Equal(t, []byte{0xCA, 0xFE}, third.Value)

			_, err = ReadResponse(src)
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestReadResponseErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "truncated body",
			data: []byte{0x02, 0xFF, 0x05, 0x00, 0x00, 0x00, 'a', 'b'},
		},
		{
			name: "unterminated key",
			data: []byte{0x02, 0xFF, 0x02, 0x00, 0x00, 0x00, 'a', 'b'},
		},
		{
			name: "unknown type tag",
			data: []byte{0x01, 0xFF, 0x03, 0x00, 0x00, 0x00, 'k', 0x00, 0x0C},
		},
		{
			name: "missing type tag",
			data: []byte{0x01, 0xFF, 0x02, 0x00, 0x00, 0x00, 'k', 0x00},
		},
		{
			name: "value shorter than type",
			data: []byte{0x01, 0xFF, 0x04, 0x00, 0x00, 0x00, 'k', 0x00, byte(TypeInt32), 0x01},
		},
		{
			name: "unknown kind truncated body",
			data: []byte{0x55, 0xFF, 0x09, 0x00, 0x00, 0x00, 'x'},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadResponse(bytes.NewReader(tt.data))
			require.Error(t, err)

			var decErr *DecodeError
			assert.ErrorAs(t, err, &decErr)
		})
	}
}

func TestReadOversizedLengthFromStream(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(Source) error
	}{
		{
			name: "response body",
			data: []byte{0x01, 0xFF, 0x00, 0x00, 0x00, 0x40, 'k', 0x00},
			read: func(src Source) error {
				_, err := ReadResponse(src)
				return err
			},
		},
		{
			name: "request body",
			data: []byte{0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x40, 'k', 0x00},
			read: func(src Source) error {
				_, err := ReadRequest(src)
				return err
			},
		},
		{
			name: "blob",
			data: []byte{0x00, 0x00, 0x00, 0x40, 0xDE, 0xAD},
			read: func(src Source) error {
				_, err := ReadValue(src, TypeBlob)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var before, after runtime.MemStats
			runtime.ReadMemStats(&before)

			// bufio.Reader has no Len, the declared 1GiB is all it knows
			err := tt.read(bufio.NewReader(bytes.NewReader(tt.data)))

			runtime.ReadMemStats(&after)

			var decErr *DecodeError
			require.ErrorAs(t, err, &decErr)
			assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
			assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20))
		})
	}
}

func TestReadBodyFromStream(t *testing.T) {
	data := buildResponses(t,
		NewValueResponse("blob", bytes.Repeat([]byte{0xAB}, 10000), TypeBlob),
		NewValueResponse("empty", []byte{}, TypeBlob),
	)
	src := bufio.NewReaderSize(iotest.HalfReader(bytes.NewReader(data)), 16)

	resp, err := ReadResponse(src)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xAB}, 10000), resp.Value)

	resp, err = ReadResponse(src)
	require.NoError(t, err)
	assert.Equal(t, []byte{}, resp.Value)
}

func TestReadResponseShortPreamble(t *testing.T) {
	_, err := ReadResponse(bytes.NewReader([]byte{0x01, 0xFF, 0x00}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestResponseKindBand(t *testing.T) {
	for _, k := range []ResponseKind{ResponseValue, ResponseDeleted, ResponseForceLogout, ResponsePong, ResponseError} {
		assert.Equal(t, uint16(0xFF00), uint16(k)&0xFF00, k.String())
		assert.True(t, k.Known())
	}
	for _, k := range []RequestKind{RequestGet, RequestDelete, RequestPing, RequestSet, RequestGetAll} {
		assert.Zero(t, uint16(k)&0xFF00, k.String())
	}
	assert.Equal(t, ResponseKind(0xFFEE), ResponseError)
	assert.Equal(t, "ResponseKind(0xff7a)", ResponseKind(0xFF7A).String())
}

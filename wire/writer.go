package wire

import (
	"errors"
	"io"
	"math"
	"sync"
)

// ErrInvalidKind is returned when encoding a message kind with no serializer.
var ErrInvalidKind = errors.New("statedb encode: invalid message kind")

const maxPooledBuffer = 64 << 10

// Buffer pool for building frames
var bufferPool = sync.Pool{
	New: func() any {
		// Typical frame is a short key plus a small value
		b := make([]byte, 0, 256)
		return &b
	},
}

func getBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

func putBuffer(b *[]byte) {
	if cap(*b) > maxPooledBuffer {
		return
	}
	*b = (*b)[:0]
	bufferPool.Put(b)
}

// AppendRequest appends the framed request to dst.
// Format: <kind u16><flags u8><len u32><body>
//
// Body by kind:
//   - Get, Delete: key\0
//   - Set: key\0 <type u8> <value>
//   - Ping, GetAll: empty
//
// AutoSuggest is resolved here, so an unencodable value fails before any
// byte is produced. On error dst is returned unchanged.
func (c Codec) AppendRequest(dst []byte, req *Request) ([]byte, error) {
	start := len(dst)
	dst = ByteOrder.AppendUint16(dst, uint16(req.Kind))
	dst = append(dst, req.Flags)
	dst = append(dst, 0, 0, 0, 0)
	bodyStart := len(dst)

	var err error
	switch req.Kind {
	case RequestGet, RequestDelete:
		dst, err = appendString(dst, TypeString, req.Key)
	case RequestSet:
		dst, err = c.appendTypedValue(dst, req.Key, req.Value, req.Type)
	case RequestPing, RequestGetAll:
	default:
		err = ErrInvalidKind
	}
	if err != nil {
		return dst[:start], err
	}

	return finishFrame(dst, start, bodyStart, 3)
}

// appendTypedValue writes key\0 <type u8> <value>, shared by Set and Value.
func (c Codec) appendTypedValue(dst []byte, key string, v any, t DataType) ([]byte, error) {
	t, err := c.Resolve(v, t)
	if err != nil {
		return dst, err
	}
	dst, err = appendString(dst, TypeString, key)
	if err != nil {
		return dst, err
	}
	dst = append(dst, byte(t))
	return c.AppendValue(dst, v, t)
}

// finishFrame patches the body length at offset lenAt within the frame.
func finishFrame(dst []byte, start, bodyStart, lenAt int) ([]byte, error) {
	size := len(dst) - bodyStart
	if uint64(size) > math.MaxUint32 {
		return dst[:start], ErrBodyTooLarge
	}
	ByteOrder.PutUint32(dst[start+lenAt:], uint32(size))
	return dst, nil
}

// ErrBodyTooLarge is returned when a body does not fit the u32 length field.
var ErrBodyTooLarge = errors.New("statedb encode: body exceeds 4GiB")

// WriteRequest serializes req and writes it to w in a single Write call.
// Returns the number of bytes written.
func (c Codec) WriteRequest(w io.Writer, req *Request) (int, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	b, err := c.AppendRequest(*buf, req)
	if err != nil {
		return 0, err
	}
	*buf = b

	return w.Write(b)
}

// AppendHandshake appends the magic tag and protocol version.
func AppendHandshake(dst []byte) []byte {
	dst = append(dst, Magic...)
	return append(dst, ProtocolVersion)
}

// WriteHandshake writes the handshake sent once after connecting.
// No reply is expected.
func WriteHandshake(w io.Writer) error {
	var buf [HandshakeSize]byte
	_, err := w.Write(AppendHandshake(buf[:0]))
	return err
}

// AppendResponse appends the framed response to dst.
// Format: <kind u16><len u32><body>
//
// Kinds without a body encoder write resp.Body verbatim, which lets tests
// and tools produce frames of kinds this package does not know.
func (c Codec) AppendResponse(dst []byte, resp *Response) ([]byte, error) {
	start := len(dst)
	dst = ByteOrder.AppendUint16(dst, uint16(resp.Kind))
	dst = append(dst, 0, 0, 0, 0)
	bodyStart := len(dst)

	var err error
	switch resp.Kind {
	case ResponseValue:
		dst, err = c.appendTypedValue(dst, resp.Key, resp.Value, resp.Type)
	case ResponseDeleted:
		dst, err = appendString(dst, TypeString, resp.Key)
	case ResponseError:
		dst, err = appendString(dst, TypeString, resp.Message)
	default:
		dst = append(dst, resp.Body...)
	}
	if err != nil {
		return dst[:start], err
	}

	return finishFrame(dst, start, bodyStart, 2)
}

// WriteResponse serializes resp and writes it to w.
func (c Codec) WriteResponse(w io.Writer, resp *Response) error {
	buf := getBuffer()
	defer putBuffer(buf)

	b, err := c.AppendResponse(*buf, resp)
	if err != nil {
		return err
	}
	*buf = b

	_, err = w.Write(b)
	return err
}

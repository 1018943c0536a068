package wire

import (
	"bytes"
	"errors"
	"io"
	"math"
	"math/big"
	"strings"
)

// Source is what every decoder reads from. bytes.Reader and bufio.Reader both
// satisfy it, so the same decoders serve in-memory bodies and live streams.
// ReadByte lets the String decoder stop exactly at the terminator.
type Source interface {
	io.Reader
	io.ByteReader
}

// Precision selects the DataType inferred for Go floats.
type Precision uint8

const (
	// PrecisionDouble infers Float64. It is the zero value.
	PrecisionDouble Precision = iota
	// PrecisionSingle infers Float32.
	PrecisionSingle
)

func (p Precision) String() string {
	if p == PrecisionSingle {
		return "single"
	}
	return "double"
}

// Codec encodes values and requests.
// The zero value is ready to use and infers Float64 for floats.
type Codec struct {
	FloatPrecision Precision
}

var (
	minInt32 = big.NewInt(math.MinInt32)
	maxInt32 = big.NewInt(math.MaxInt32)
)

// InferType maps the Go representation of v to a DataType.
// Integers outside the signed 32-bit range become BigInt.
func (c Codec) InferType(v any) (DataType, error) {
	switch v.(type) {
	case nil:
		return TypeNone, nil
	case float32, float64:
		if c.FloatPrecision == PrecisionSingle {
			return TypeFloat32, nil
		}
		return TypeFloat64, nil
	case string:
		return TypeString, nil
	case []byte:
		return TypeBlob, nil
	}

	if n, ok := asBig(v); ok {
		if n.Cmp(minInt32) < 0 || n.Cmp(maxInt32) > 0 {
			return TypeBigInt, nil
		}
		return TypeInt32, nil
	}

	return 0, &EncodeError{Type: AutoSuggest, Message: "cannot infer type", Err: ErrUnknownType}
}

// Resolve returns t, or the inferred type when t is AutoSuggest.
func (c Codec) Resolve(v any, t DataType) (DataType, error) {
	if t == AutoSuggest {
		return c.InferType(v)
	}
	if !t.Valid() {
		return 0, &EncodeError{Type: t, Message: "invalid type tag", Err: ErrUnknownType}
	}
	return t, nil
}

// AppendValue appends the encoding of v as type t to dst.
// On error dst is returned unchanged.
func (c Codec) AppendValue(dst []byte, v any, t DataType) ([]byte, error) {
	t, err := c.Resolve(v, t)
	if err != nil {
		return dst, err
	}

	switch t {
	case TypeNone:
		if v != nil {
			return dst, encodeErr(t, "value must be nil")
		}
		return dst, nil

	case TypeString:
		s, ok := v.(string)
		if !ok {
			return dst, encodeErr(t, "value is not a string")
		}
		return appendString(dst, t, s)

	case TypeBlob:
		b, ok := v.([]byte)
		if !ok {
			return dst, encodeErr(t, "value is not a byte slice")
		}
		if uint64(len(b)) > math.MaxUint32 {
			return dst, encodeErr(t, "blob exceeds 4GiB")
		}
		dst = ByteOrder.AppendUint32(dst, uint32(len(b)))
		return append(dst, b...), nil

	case TypeBigInt:
		n, ok := asBig(v)
		if !ok {
			return dst, encodeErr(t, "value is not an integer")
		}
		return appendString(dst, t, n.String())

	case TypeFloat32:
		f, ok := asFloat(v)
		if !ok {
			return dst, encodeErr(t, "value is not a number")
		}
		if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
			return dst, encodeErr(t, "value out of range")
		}
		return ByteOrder.AppendUint32(dst, math.Float32bits(float32(f))), nil

	case TypeFloat64:
		f, ok := asFloat(v)
		if !ok {
			return dst, encodeErr(t, "value is not a number")
		}
		return ByteOrder.AppendUint64(dst, math.Float64bits(f)), nil
	}

	// Fixed-width integers
	n, ok := asBig(v)
	if !ok {
		return dst, encodeErr(t, "value is not an integer")
	}
	lo, hi := intRange(t)
	if !n.IsInt64() || n.Int64() < lo || (n.Int64() > 0 && uint64(n.Int64()) > hi) {
		return dst, encodeErr(t, "value out of range: "+n.String())
	}
	x := n.Int64()

	switch t {
	case TypeInt8, TypeUInt8:
		return append(dst, byte(x)), nil
	case TypeInt16, TypeUInt16:
		return ByteOrder.AppendUint16(dst, uint16(x)), nil
	default:
		return ByteOrder.AppendUint32(dst, uint32(x)), nil
	}
}

// intRange returns the inclusive bounds of a fixed-width integer type.
func intRange(t DataType) (int64, uint64) {
	switch t {
	case TypeInt8:
		return math.MinInt8, math.MaxInt8
	case TypeUInt8:
		return 0, math.MaxUint8
	case TypeInt16:
		return math.MinInt16, math.MaxInt16
	case TypeUInt16:
		return 0, math.MaxUint16
	case TypeInt32:
		return math.MinInt32, math.MaxInt32
	default:
		return 0, math.MaxUint32
	}
}

func appendString(dst []byte, t DataType, s string) ([]byte, error) {
	if strings.IndexByte(s, StringTerminator) >= 0 {
		return dst, encodeErr(t, "string contains a zero byte")
	}
	dst = append(dst, s...)
	return append(dst, StringTerminator), nil
}

// ReadValue decodes one value of type t from src.
//
// Decoded Go types: nil, int8, uint8, int16, uint16, int32, uint32, float32,
// float64, string, []byte and *big.Int.
func ReadValue(src Source, t DataType) (any, error) {
	switch t {
	case TypeNone:
		return nil, nil
	case TypeString:
		return ReadString(src)
	case TypeBigInt:
		s, err := ReadString(src)
		if err != nil {
			return nil, err
		}
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, decodeErr("invalid bigint text "+quote(s), nil)
		}
		return n, nil
	case TypeBlob:
		return readBlob(src)
	}

	if !t.Valid() {
		return nil, decodeErr("unknown data type "+t.String(), nil)
	}

	var buf [8]byte
	b := buf[:fixedSize(t)]
	if _, err := io.ReadFull(src, b); err != nil {
		return nil, decodeErr("read "+t.String(), eofToUnexpected(err))
	}

	switch t {
	case TypeInt8:
		return int8(b[0]), nil
	case TypeUInt8:
		return b[0], nil
	case TypeInt16:
		return int16(ByteOrder.Uint16(b)), nil
	case TypeUInt16:
		return ByteOrder.Uint16(b), nil
	case TypeInt32:
		return int32(ByteOrder.Uint32(b)), nil
	case TypeUInt32:
		return ByteOrder.Uint32(b), nil
	case TypeFloat32:
		return math.Float32frombits(ByteOrder.Uint32(b)), nil
	default:
		return math.Float64frombits(ByteOrder.Uint64(b)), nil
	}
}

func fixedSize(t DataType) int {
	switch t {
	case TypeInt8, TypeUInt8:
		return 1
	case TypeInt16, TypeUInt16:
		return 2
	case TypeFloat64:
		return 8
	default:
		return 4
	}
}

// ReadString reads bytes up to and including the zero terminator and returns
// them without it. It never reads past the terminator.
func ReadString(src Source) (string, error) {
	var sb strings.Builder
	for {
		c, err := src.ReadByte()
		if err != nil {
			return "", decodeErr("unterminated string", eofToUnexpected(err))
		}
		if c == StringTerminator {
			return sb.String(), nil
		}
		sb.WriteByte(c)
	}
}

func readBlob(src Source) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(src, hdr[:]); err != nil {
		return nil, decodeErr("read blob length", eofToUnexpected(err))
	}
	size := ByteOrder.Uint32(hdr[:])

	data, err := readExactly(src, size)
	if err != nil {
		return nil, decodeErr("read blob data", err)
	}
	return data, nil
}

// readExactly reads size bytes from src. The declared size is untrusted:
// in-memory sources reject it against their remaining length, streams grow
// the buffer only as bytes arrive.
func readExactly(src Source, size uint32) ([]byte, error) {
	if r, ok := src.(interface{ Len() int }); ok {
		if uint64(size) > uint64(r.Len()) {
			return nil, io.ErrUnexpectedEOF
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(src, data); err != nil {
			return nil, eofToUnexpected(err)
		}
		return data, nil
	}

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, src, int64(size)); err != nil {
		return nil, eofToUnexpected(err)
	}
	if buf.Len() == 0 {
		return []byte{}, nil
	}
	return buf.Bytes(), nil
}

func eofToUnexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Equal reports whether two values are the same for redundant-write checks.
// Numbers compare by value across Go widths, blobs by content.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	}

	if x, ok := asBig(a); ok {
		if y, ok := asBig(b); ok {
			return x.Cmp(y) == 0
		}
	}

	x, ok1 := asFloat(a)
	y, ok2 := asFloat(b)
	return ok1 && ok2 && x == y
}

// asBig converts any Go integer, big.Int or *big.Int to a *big.Int.
func asBig(v any) (*big.Int, bool) {
	switch x := v.(type) {
	case int:
		return big.NewInt(int64(x)), true
	case int8:
		return big.NewInt(int64(x)), true
	case int16:
		return big.NewInt(int64(x)), true
	case int32:
		return big.NewInt(int64(x)), true
	case int64:
		return big.NewInt(x), true
	case uint:
		return new(big.Int).SetUint64(uint64(x)), true
	case uint8:
		return new(big.Int).SetUint64(uint64(x)), true
	case uint16:
		return new(big.Int).SetUint64(uint64(x)), true
	case uint32:
		return new(big.Int).SetUint64(uint64(x)), true
	case uint64:
		return new(big.Int).SetUint64(x), true
	case *big.Int:
		if x == nil {
			return nil, false
		}
		return x, true
	case big.Int:
		return &x, true
	}
	return nil, false
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	if n, ok := asBig(v); ok {
		f, _ := new(big.Float).SetInt(n).Float64()
		return f, true
	}
	return 0, false
}

func quote(s string) string {
	if len(s) > 32 {
		s = s[:29] + "..."
	}
	return "\"" + s + "\""
}

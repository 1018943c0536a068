package wire

import (
	"encoding/binary"
	"strconv"
	"strings"
)

// DataType is the wire tag identifying how a value is encoded.
type DataType uint8

const (
	TypeNone    DataType = 0
	TypeBlob    DataType = 1
	TypeString  DataType = 2
	TypeInt8    DataType = 3
	TypeUInt8   DataType = 4
	TypeInt16   DataType = 5
	TypeUInt16  DataType = 6
	TypeInt32   DataType = 7
	TypeUInt32  DataType = 8
	TypeFloat32 DataType = 9
	TypeFloat64 DataType = 10
	TypeBigInt  DataType = 11

	// AutoSuggest asks the encoder to infer the type from the Go value.
	// It is never written to or read from the wire.
	AutoSuggest DataType = 0xFF
)

var typeNames = [...]string{
	TypeNone:    "None",
	TypeBlob:    "Blob",
	TypeString:  "String",
	TypeInt8:    "Int8",
	TypeUInt8:   "UInt8",
	TypeInt16:   "Int16",
	TypeUInt16:  "UInt16",
	TypeInt32:   "Int32",
	TypeUInt32:  "UInt32",
	TypeFloat32: "Float32",
	TypeFloat64: "Float64",
	TypeBigInt:  "BigInt",
}

// Valid reports whether t is a concrete type that may appear on the wire.
func (t DataType) Valid() bool {
	return t <= TypeBigInt
}

func (t DataType) String() string {
	if t.Valid() {
		return typeNames[t]
	}
	if t == AutoSuggest {
		return "AutoSuggest"
	}
	return "DataType(" + strconv.Itoa(int(t)) + ")"
}

// ParseDataType parses a type name as printed by DataType.String, ignoring
// case. "auto" maps to AutoSuggest.
func ParseDataType(name string) (DataType, bool) {
	if strings.EqualFold(name, "auto") || strings.EqualFold(name, "AutoSuggest") {
		return AutoSuggest, true
	}
	for i, n := range typeNames {
		if strings.EqualFold(n, name) {
			return DataType(i), true
		}
	}
	return 0, false
}

// RequestKind identifies a client to server message.
type RequestKind uint16

const (
	RequestGet    RequestKind = 1
	RequestDelete RequestKind = 2
	RequestPing   RequestKind = 3
	RequestSet    RequestKind = 4
	RequestGetAll RequestKind = 5
)

func (k RequestKind) String() string {
	switch k {
	case RequestGet:
		return "Get"
	case RequestDelete:
		return "Delete"
	case RequestPing:
		return "Ping"
	case RequestSet:
		return "Set"
	case RequestGetAll:
		return "GetAll"
	}
	return "RequestKind(" + strconv.Itoa(int(k)) + ")"
}

// ResponseKind identifies a server to client message.
// Response kinds live in the 0xFF00 band so they never collide with requests.
type ResponseKind uint16

const responseBand = 0xFF << 8

const (
	ResponseValue       ResponseKind = responseBand | 0x01
	ResponseDeleted     ResponseKind = responseBand | 0x02
	ResponseForceLogout ResponseKind = responseBand | 0x03
	ResponsePong        ResponseKind = responseBand | 0x04
	ResponseError       ResponseKind = responseBand | 0xEE
)

// Known reports whether k is one of the response kinds this package understands.
func (k ResponseKind) Known() bool {
	switch k {
	case ResponseValue, ResponseDeleted, ResponseForceLogout, ResponsePong, ResponseError:
		return true
	}
	return false
}

func (k ResponseKind) String() string {
	switch k {
	case ResponseValue:
		return "Value"
	case ResponseDeleted:
		return "Deleted"
	case ResponseForceLogout:
		return "ForceLogout"
	case ResponsePong:
		return "Pong"
	case ResponseError:
		return "Error"
	}
	return "ResponseKind(0x" + strconv.FormatUint(uint64(k), 16) + ")"
}

// Protocol constants
const (
	// Magic opens the handshake, followed by a one-byte ProtocolVersion.
	Magic           = "HeLlO"
	ProtocolVersion = 1
	HandshakeSize   = len(Magic) + 1

	// RequestHeaderSize is kind(2) + flags(1) + body length(4).
	RequestHeaderSize = 7
	// ResponseHeaderSize is kind(2) + body length(4). No flags byte.
	ResponseHeaderSize = 6

	// StringTerminator ends String and BigInt encodings.
	StringTerminator byte = 0x00
)

// ByteOrder is used for every fixed-width field on the wire.
var ByteOrder = binary.LittleEndian

// Package wire implements the statedb binary protocol: typed value encoding
// and the framing of requests and responses.
//
// The package is pure serialization. It owns no connection and makes no
// decision about dispatch, so it can be used by the client, by test servers
// and by tools alike.
//
// # Core Types
//
//   - DataType: the closed set of value encodings, plus the encode-only
//     AutoSuggest sentinel
//   - Codec: encoder configuration (float precision for AutoSuggest)
//   - Request: a client message (Get, Delete, Ping, Set, GetAll)
//   - Response: a server message (Value, Deleted, ForceLogout, Pong, Error)
//   - Source: io.Reader + io.ByteReader, the only thing decoders read from
//
// # Value Encoding
//
// All fixed-width fields are little-endian.
//
//	None              0 bytes
//	Int8, UInt8       1 byte
//	Int16, UInt16     2 bytes
//	Int32, UInt32     4 bytes
//	Float32           4 bytes IEEE 754
//	Float64           8 bytes IEEE 754
//	String            bytes followed by 0x00
//	BigInt            base-10 text, encoded as String
//	Blob              u32 length followed by the bytes
//
// # Framing
//
// Requests and responses use different preambles:
//
//	request:  <kind u16><flags u8><len u32><body>
//	response: <kind u16><len u32><body>
//
// Response kinds live in the 0xFF00 band. A reader always consumes exactly
// len body bytes, including for kinds it does not know, so one unknown
// message never desynchronizes the stream.
//
// Usage:
//
//	var codec wire.Codec
//	_, err := codec.WriteRequest(conn, wire.NewSetRequest("answer", 42, wire.AutoSuggest))
//
//	resp, err := wire.ReadResponse(bufio.NewReader(conn))
//	if err == nil && resp.Kind == wire.ResponseValue {
//	    fmt.Println(resp.Key, resp.Type, resp.Value)
//	}
//
// # Handshake
//
// Right after connecting the client writes "HeLlO" followed by the protocol
// version byte. The server sends no acknowledgment.
//
// # Error Handling
//
//   - *EncodeError: the value cannot be encoded; nothing was written
//   - *DecodeError: the body is truncated or malformed, or carries an unknown
//     type tag
//   - *ServerError: built from an Error response by Response.Err
package wire

package wire

import (
	"bytes"
	"io"
)

// ReadResponse reads one framed response from src.
// Format: <kind u16><len u32><body>
//
// Exactly Size body bytes are consumed whatever the kind, so the next call
// starts on a frame boundary:
//   - Value, Deleted, Error: the body is read in full, then parsed from memory
//   - every other kind: the body is discarded without being buffered
//
// Errors:
//   - io.EOF: stream closed cleanly before a new preamble
//   - io.ErrUnexpectedEOF or other I/O errors: preamble cut short
//   - *DecodeError: truncated or malformed body
func ReadResponse(src Source) (*Response, error) {
	var hdr [ResponseHeaderSize]byte
	if _, err := io.ReadFull(src, hdr[:]); err != nil {
		return nil, err
	}

	resp := &Response{
		Kind: ResponseKind(ByteOrder.Uint16(hdr[0:2])),
		Size: ByteOrder.Uint32(hdr[2:6]),
	}

	if !resp.Kind.HasBodyDecoder() {
		if err := drain(src, resp.Size); err != nil {
			return nil, err
		}
		return resp, nil
	}

	body, err := readBody(src, resp.Size)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(body)

	switch resp.Kind {
	case ResponseValue:
		resp.Key, resp.Type, resp.Value, err = readTypedValue(r)
	case ResponseDeleted:
		resp.Key, err = ReadString(r)
	case ResponseError:
		resp.Message, err = ReadString(r)
	}
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// ReadRequest reads one framed request from src. It is the server side of
// Codec.WriteRequest, used by tests and tools that play the server.
// Format: <kind u16><flags u8><len u32><body>
//
// Unknown kinds are returned with their body discarded.
func ReadRequest(src Source) (*Request, error) {
	var hdr [RequestHeaderSize]byte
	if _, err := io.ReadFull(src, hdr[:]); err != nil {
		return nil, err
	}

	req := &Request{
		Kind:  RequestKind(ByteOrder.Uint16(hdr[0:2])),
		Flags: hdr[2],
	}
	size := ByteOrder.Uint32(hdr[3:7])

	if !req.Kind.HasKey() {
		if err := drain(src, size); err != nil {
			return nil, err
		}
		return req, nil
	}

	body, err := readBody(src, size)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(body)

	if req.Kind == RequestSet {
		req.Key, req.Type, req.Value, err = readTypedValue(r)
	} else {
		req.Key, err = ReadString(r)
	}
	if err != nil {
		return nil, err
	}

	return req, nil
}

// ReadHandshake reads the handshake and returns the protocol version.
func ReadHandshake(src Source) (uint8, error) {
	var buf [HandshakeSize]byte
	if _, err := io.ReadFull(src, buf[:]); err != nil {
		return 0, err
	}
	if string(buf[:len(Magic)]) != Magic {
		return 0, decodeErr("bad handshake magic "+quote(string(buf[:len(Magic)])), nil)
	}
	return buf[len(Magic)], nil
}

// readTypedValue parses key\0 <type u8> <value>.
func readTypedValue(r Source) (string, DataType, any, error) {
	key, err := ReadString(r)
	if err != nil {
		return "", 0, nil, err
	}

	tag, err := r.ReadByte()
	if err != nil {
		return "", 0, nil, decodeErr("read type tag", eofToUnexpected(err))
	}
	t := DataType(tag)
	if !t.Valid() {
		return "", 0, nil, decodeErr("unknown data type "+t.String()+" for key "+quote(key), nil)
	}

	v, err := ReadValue(r, t)
	if err != nil {
		return "", 0, nil, err
	}
	return key, t, v, nil
}

func readBody(src Source, size uint32) ([]byte, error) {
	body, err := readExactly(src, size)
	if err != nil {
		return nil, decodeErr("read body", err)
	}
	return body, nil
}

func drain(src Source, size uint32) error {
	if size == 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, src, int64(size)); err != nil {
		return decodeErr("discard body", eofToUnexpected(err))
	}
	return nil
}

package wire

import (
	"errors"
)

// Error types for wire protocol operations.
// Encode errors are raised before any byte reaches the writer. Decode errors
// mean the current frame could not be parsed and the stream state is suspect.

// ErrUnknownType is wrapped by EncodeError when a Go value has no DataType.
var ErrUnknownType = errors.New("unknown type")

// EncodeError reports a value that cannot be encoded with the requested type.
//
// Common causes:
//   - Unsupported Go type with AutoSuggest (wraps ErrUnknownType)
//   - Integer outside the range of an explicit fixed-width type
//   - String containing a zero byte
//   - Blob longer than 4GiB
type EncodeError struct {
	Type    DataType
	Message string
	Err     error
}

func (e *EncodeError) Error() string {
	msg := "statedb encode " + e.Type.String() + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// DecodeError reports a malformed or truncated body, or a type tag outside
// the known set.
type DecodeError struct {
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return "statedb decode: " + e.Message + ": " + e.Err.Error()
	}
	return "statedb decode: " + e.Message
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ServerError carries the message of an Error response from the server.
// Requests and responses are not correlated, so it is never returned to the
// caller that caused it.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "statedb server error: " + e.Message
}

func encodeErr(t DataType, msg string) error {
	return &EncodeError{Type: t, Message: msg}
}

func decodeErr(msg string, err error) error {
	return &DecodeError{Message: msg, Err: err}
}

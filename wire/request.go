package wire

// Request represents a client to server message.
// This is a low-level container for request data without serialization logic.
// Fields map directly to protocol elements.
type Request struct {
	// Kind is the message kind written in the preamble.
	Kind RequestKind

	// Flags is the reserved preamble byte. Always 0 today.
	Flags uint8

	// Key is the target key for Get, Delete and Set. Empty for Ping and GetAll.
	Key string

	// Value and Type are used by Set only.
	// Type may be AutoSuggest; it is resolved when the request is encoded.
	Value any
	Type  DataType
}

// NewRequest creates a request that carries at most a key.
//
// The key is used according to the kind:
//   - RequestGet, RequestDelete: key required
//   - RequestPing, RequestGetAll: key ignored
//
// Usage:
//
//	req := NewRequest(RequestGet, "mykey")
//	req = NewRequest(RequestPing, "")
func NewRequest(kind RequestKind, key string) *Request {
	return &Request{
		Kind: kind,
		Key:  key,
	}
}

// NewSetRequest creates a Set request. Pass AutoSuggest to let the codec
// infer the type from value.
func NewSetRequest(key string, value any, t DataType) *Request {
	return &Request{
		Kind:  RequestSet,
		Key:   key,
		Value: value,
		Type:  t,
	}
}

// HasKey reports whether the kind carries a key in its body.
func (k RequestKind) HasKey() bool {
	return k == RequestGet || k == RequestDelete || k == RequestSet
}

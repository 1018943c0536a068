package wire

// Response represents a parsed server to client message.
// Fields are filled according to Kind:
//   - ResponseValue: Key, Type, Value
//   - ResponseDeleted: Key
//   - ResponseError: Message
//   - ResponseForceLogout, ResponsePong and unknown kinds: nothing; the body
//     has been drained from the stream
type Response struct {
	// Kind is the message kind from the preamble. It may be a kind this
	// package does not know.
	Kind ResponseKind

	// Size is the body length declared in the preamble.
	Size uint32

	Key     string
	Type    DataType
	Value   any
	Message string

	// Body is written verbatim by WriteResponse for kinds without a body
	// encoder. ReadResponse never sets it.
	Body []byte
}

// NewValueResponse creates a Value response. t must be a concrete type or
// AutoSuggest.
func NewValueResponse(key string, value any, t DataType) *Response {
	return &Response{Kind: ResponseValue, Key: key, Value: value, Type: t}
}

// NewDeletedResponse creates a Deleted response.
func NewDeletedResponse(key string) *Response {
	return &Response{Kind: ResponseDeleted, Key: key}
}

// NewErrorResponse creates an Error response.
func NewErrorResponse(message string) *Response {
	return &Response{Kind: ResponseError, Message: message}
}

// HasBodyDecoder reports whether ReadResponse decodes the body of kind k
// rather than discarding it.
func (k ResponseKind) HasBodyDecoder() bool {
	return k == ResponseValue || k == ResponseDeleted || k == ResponseError
}

// Err returns a ServerError for Error responses and nil otherwise.
func (r *Response) Err() error {
	if r.Kind != ResponseError {
		return nil
	}
	return &ServerError{Message: r.Message}
}

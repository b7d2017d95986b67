package corvid

// Response is the value a handler returns. Status must be a code drawn
// from the closed StatusCode enumeration. Content-Length is computed
// and set by the serializer whenever Body is non-empty; a handler must
// never set it itself (serialize.go overwrites it unconditionally, as
// must Connection).
type Response struct {
	Status  StatusCode
	Headers *Headers
	Body    []byte
}

// NewResponse returns a Response with the given status and an empty,
// ready-to-use Headers map.
func NewResponse(status StatusCode) *Response {
	return &Response{
		Status:  status,
		Headers: NewHeaders(),
	}
}

// WithBody sets r's body and returns r, for chaining at the call site
// of a handler.
func (r *Response) WithBody(body []byte) *Response {
	r.Body = body
	return r
}

// WithHeader sets a header on r and returns r, for chaining.
func (r *Response) WithHeader(name, value string) *Response {
	r.Headers.Set(name, value)
	return r
}

// TextResponse builds a response with the given status and a
// text/plain body, the shape used by the "Hello" scenario in spec.md §8.
func TextResponse(status StatusCode, body string) *Response {
	return NewResponse(status).
		WithHeader("Content-Type", ContentTypeText).
		WithBody([]byte(body))
}

// notFoundResponse is the default fallback handler's response: 404
// Not Found with an empty body, per spec.md §4.4.
func notFoundResponse() *Response {
	return NewResponse(StatusNotFound)
}

package corvid

// Request is an inbound HTTP/1.1 request as assembled by the parser.
//
// Target always begins with "/". Body is empty unless Method is one of
// POST, PUT, PATCH, DELETE, or the Content-Type/Content-Length headers
// were present on the wire (see parse.go for the exact rule).
type Request struct {
	Method  Method
	Target  string
	Headers *Headers
	Body    []byte
}

// ContentType is a convenience accessor over the Content-Type header.
func (r *Request) ContentType() string {
	v, _ := r.Headers.Get("Content-Type")
	return v
}

// ContentLength is a convenience accessor over the Content-Length
// header; ok is false if absent or unparsable.
func (r *Request) ContentLength() (n int, ok bool) {
	v, present := r.Headers.Get("Content-Length")
	if !present {
		return 0, false
	}
	n, err := parseContentLength(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

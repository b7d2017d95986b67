package corvid

import (
	"io"
	"strconv"
	"strings"
)

// writer is the minimal surface serializeResponse needs from a
// Connection; kept as an interface for the same reason reader is in
// parse.go — serialize_test.go exercises it without a real socket.
type writer interface {
	Send(buf []byte) (int, error)
}

// serializeResponse composes resp per spec.md §4.6 — status line,
// headers in insertion order, a blank line, then the body — and
// writes it to conn in a send-loop that retries on partial writes.
// Connection: Close is unconditionally set, and Content-Length is set
// whenever Body is non-empty; any handler-supplied values for those
// two headers are overwritten.
func serializeResponse(conn writer, resp *Response) error {
	var b strings.Builder

	b.WriteString("HTTP/1.1 ")
	b.WriteString(resp.Status.String())
	b.WriteString("\r\n")

	headers := resp.Headers
	if headers == nil {
		headers = NewHeaders()
	}
	headers.Set("Connection", "Close")
	if len(resp.Body) > 0 {
		headers.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	} else {
		headers.Del("Content-Length")
	}

	headers.Each(func(name, value string) {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	})
	b.WriteString("\r\n")

	out := append([]byte(b.String()), resp.Body...)

	for len(out) > 0 {
		n, err := conn.Send(out)
		if err != nil {
			return &IOError{Op: "send", Err: err}
		}
		if n == 0 {
			return &IOError{Op: "send", Err: io.ErrShortWrite}
		}
		out = out[n:]
	}
	return nil
}

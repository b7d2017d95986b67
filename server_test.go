package corvid

import (
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newBoundServer(t *testing.T) (*Server, string) {
	t.Helper()
	s := NewServer(WithWorkerCount(2))
	require.NoError(t, s.Bind("127.0.0.1", 0))
	port, err := s.Port()
	require.NoError(t, err)

	go func() { _ = s.Serve() }()
	t.Cleanup(s.Shutdown)

	return s, net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
}

// rawRequest dials addr, writes raw, and returns the full response
// text read until the peer closes — exactly what corvid always does,
// since every response is followed by Connection: Close.
func rawRequest(t *testing.T, addr string, raw string) string {
	t.Helper()

	var conn net.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, err = net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	_, err = conn.Write([]byte(raw))
	require.NoError(t, err)

	out, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(out)
}

// TestServer_Hello is scenario 1 of spec.md §8.
func TestServer_Hello(t *testing.T) {
	s, addr := newBoundServer(t)
	require.NoError(t, s.Route0(MethodGet, "/hello", func() *Response {
		return TextResponse(StatusOK, "Hello world!")
	}))

	resp := rawRequest(t, addr, "GET /hello HTTP/1.1\r\n\r\n")
	require.Contains(t, resp, "HTTP/1.1 200 OK")
	require.Contains(t, resp, "Content-Length: 12")
	require.Contains(t, resp, "Hello world!")
}

// TestServer_EchoPost is scenario 2.
func TestServer_EchoPost(t *testing.T) {
	s, addr := newBoundServer(t)
	require.NoError(t, s.Route1(MethodPost, "/echo", func(req *Request) *Response {
		return NewResponse(StatusOK).
			WithHeader("Content-Type", req.ContentType()).
			WithBody(req.Body)
	}))

	raw := "POST /echo HTTP/1.1\r\nContent-Length: 5\r\nContent-Type: text/plain\r\n\r\nhello"
	resp := rawRequest(t, addr, raw)
	require.Contains(t, resp, "Content-Type: text/plain")
	require.True(t, endsWithBody(resp, "hello"))
}

// TestServer_Parameters is scenario 3.
func TestServer_Parameters(t *testing.T) {
	s, addr := newBoundServer(t)
	require.NoError(t, s.RouteParams(MethodGet, "/:name/*action", func(params PathParameters) *Response {
		name, _ := params.Get(0)
		action, _ := params.Get(1)
		return TextResponse(StatusOK, name+":"+action)
	}))

	resp := rawRequest(t, addr, "GET /alice/greet HTTP/1.1\r\n\r\n")
	require.True(t, endsWithBody(resp, "alice:greet"))
}

// TestServer_LiteralWins is scenario 4.
func TestServer_LiteralWins(t *testing.T) {
	s, addr := newBoundServer(t)
	require.NoError(t, s.Route0(MethodGet, "/foo/bar", func() *Response {
		return TextResponse(StatusOK, "literal")
	}))
	require.NoError(t, s.RouteParams(MethodGet, "/:x/:y", func(params PathParameters) *Response {
		x, _ := params.Get(0)
		y, _ := params.Get(1)
		return TextResponse(StatusOK, x+","+y)
	}))

	resp1 := rawRequest(t, addr, "GET /foo/bar HTTP/1.1\r\n\r\n")
	require.True(t, endsWithBody(resp1, "literal"))

	resp2 := rawRequest(t, addr, "GET /foo/baz HTTP/1.1\r\n\r\n")
	require.True(t, endsWithBody(resp2, "foo,baz"))
}

// TestServer_ParameterRollback is scenario 5: a request that could be
// captured by the :x branch must still reach the literal /a/b/d route.
// Literal children are tried before parameter children, so the lookup
// takes the literal "b" branch and no capture is made.
func TestServer_ParameterRollback(t *testing.T) {
	s, addr := newBoundServer(t)
	require.NoError(t, s.RouteParams(MethodGet, "/a/:x/c", func(params PathParameters) *Response {
		x, _ := params.Get(0)
		return TextResponse(StatusOK, "A:"+x)
	}))
	require.NoError(t, s.Route0(MethodGet, "/a/b/d", func() *Response {
		return TextResponse(StatusOK, "B")
	}))

	resp := rawRequest(t, addr, "GET /a/b/d HTTP/1.1\r\n\r\n")
	require.True(t, endsWithBody(resp, "B"))
}

// TestServer_DuplicateRejected is scenario 6.
func TestServer_DuplicateRejected(t *testing.T) {
	s := NewServer()
	require.NoError(t, s.Route0(MethodGet, "/x", func() *Response { return TextResponse(StatusOK, "1") }))

	err := s.Route0(MethodGet, "/x", func() *Response { return TextResponse(StatusOK, "2") })
	require.Error(t, err)
	var rre *RouteRegistrationError
	require.ErrorAs(t, err, &rre)

	require.NoError(t, s.Route0(MethodPost, "/x", func() *Response { return TextResponse(StatusOK, "3") }))
}

// TestServer_InvalidTarget is scenario 7.
func TestServer_InvalidTarget(t *testing.T) {
	s := NewServer()

	err := s.Route0(MethodGet, "/a?b", func() *Response { return nil })
	require.Error(t, err)
	var rre *RouteRegistrationError
	require.ErrorAs(t, err, &rre)

	err = s.Route0(MethodGet, "/**name", func() *Response { return nil })
	require.Error(t, err)
	require.ErrorAs(t, err, &rre)
}

func TestServer_NotFoundFallback(t *testing.T) {
	_, addr := newBoundServer(t)

	resp := rawRequest(t, addr, "GET /nope HTTP/1.1\r\n\r\n")
	require.Contains(t, resp, "HTTP/1.1 404 Not Found")
}

func TestServer_ConnectionCloseAlwaysAnnounced(t *testing.T) {
	s, addr := newBoundServer(t)
	require.NoError(t, s.Route0(MethodGet, "/hello", func() *Response {
		return TextResponse(StatusOK, "hi")
	}))

	resp := rawRequest(t, addr, "GET /hello HTTP/1.1\r\n\r\n")
	require.Contains(t, resp, "Connection: Close")
}

func endsWithBody(resp, body string) bool {
	sep := "\r\n\r\n"
	idx := lastIndex(resp, sep)
	if idx < 0 {
		return false
	}
	return resp[idx+len(sep):] == body
}

func lastIndex(s, substr string) int {
	last := -1
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			last = i
		}
	}
	return last
}

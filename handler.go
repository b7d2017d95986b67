package corvid

// Handler is the single capability the router dispatches to: given the
// matched request and its captured path parameters, produce a
// response. spec.md §4.7 describes four overloaded registration
// shapes; Handler and the adapters below model that as one
// capability with wrapper functions at the registration surface,
// rather than four distinct interfaces.
type Handler func(req *Request, params PathParameters) *Response

// HandlerFunc0 ignores both the request and the path parameters.
type HandlerFunc0 func() *Response

// HandlerFunc1 takes only the request.
type HandlerFunc1 func(req *Request) *Response

// HandlerFuncParams takes only the captured path parameters.
type HandlerFuncParams func(params PathParameters) *Response

// adapt0 lifts a HandlerFunc0 to the canonical Handler shape.
func adapt0(f HandlerFunc0) Handler {
	return func(*Request, PathParameters) *Response { return f() }
}

// adapt1 lifts a HandlerFunc1 to the canonical Handler shape.
func adapt1(f HandlerFunc1) Handler {
	return func(req *Request, _ PathParameters) *Response { return f(req) }
}

// adaptParams lifts a HandlerFuncParams to the canonical Handler
// shape.
func adaptParams(f HandlerFuncParams) Handler {
	return func(_ *Request, params PathParameters) *Response { return f(params) }
}

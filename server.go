package corvid

import (
	"errors"
	"sync"

	"github.com/corvidhttp/corvid/internal/ioprim"
	"github.com/corvidhttp/corvid/internal/reactor"
	"github.com/corvidhttp/corvid/internal/scheduler"
)

var errNotBound = errors.New("corvid: Serve called before Bind")

// Server is the embeddable HTTP/1.1 serving engine's façade: register
// routes, Bind an address, and Serve. It composes the route tree, the
// task scheduler, the I/O reactor, and the listening Acceptor exactly
// as spec.md §4.7 describes.
type Server struct {
	tree     *RouteTree
	notFound Handler
	opts     *serverOptions
	logger   Logger
	metrics  Metrics

	acceptor *ioprim.Acceptor
	reactor  *reactor.Reactor
	sched    *scheduler.Scheduler

	shutdownOnce sync.Once
	done         chan struct{}
}

// NewServer constructs a Server with an empty route tree and the
// default fallback handler (404 Not Found, empty body).
func NewServer(opts ...Option) *Server {
	cfg := resolveOptions(opts)
	return &Server{
		tree:     NewRouteTree(),
		notFound: func(*Request, PathParameters) *Response { return notFoundResponse() },
		opts:     cfg,
		logger:   cfg.logger,
		done:     make(chan struct{}),
	}
}

// Route registers handler for (method, target), taking the canonical
// Handler shape (request and path parameters), the fullest of the four
// registration shapes. It fails with a *RouteRegistrationError
// wrapping ErrInvalidRoute or ErrDuplicateRoute.
func (s *Server) Route(method Method, target string, handler Handler) error {
	if err := ValidateTarget(target); err != nil {
		return &RouteRegistrationError{Method: method, Target: target, Err: err}
	}
	if err := s.tree.Insert(method, target, handler); err != nil {
		return &RouteRegistrationError{Method: method, Target: target, Err: err}
	}
	return nil
}

// Route0 registers a handler that ignores both the request and its
// path parameters, per spec.md §4.7's shortest overload.
func (s *Server) Route0(method Method, target string, handler HandlerFunc0) error {
	return s.Route(method, target, adapt0(handler))
}

// Route1 registers a handler that only needs the request.
func (s *Server) Route1(method Method, target string, handler HandlerFunc1) error {
	return s.Route(method, target, adapt1(handler))
}

// RouteParams registers a handler that only needs the captured path
// parameters.
func (s *Server) RouteParams(method Method, target string, handler HandlerFuncParams) error {
	return s.Route(method, target, adaptParams(handler))
}

// SetNotFoundHandler replaces the fallback handler invoked when no
// route matches.
func (s *Server) SetNotFoundHandler(handler Handler) {
	s.notFound = handler
}

// Metrics returns the Server's live connection/request counters.
func (s *Server) Metrics() *Metrics { return &s.metrics }

// Bind constructs the listening Acceptor on addr:port with the
// configured (or default) backlog. It must be called before Serve.
func (s *Server) Bind(addr string, port int) error {
	acc, err := ioprim.Bind(addr, port, s.opts.backlog)
	if err != nil {
		return &BindError{Op: "bind", Err: err}
	}
	s.acceptor = acc
	return nil
}

// Port returns the local port Bind chose, useful in tests that Bind
// to port 0 and let the kernel assign one.
func (s *Server) Port() (int, error) {
	if s.acceptor == nil {
		return 0, errNotBound
	}
	return s.acceptor.Port()
}

// Serve constructs the scheduler and reactor, spawns the acceptor
// task, and blocks until Shutdown is called or the reactor fails
// fatally — the Go rendering of spec.md §4.7's "drives the reactor
// until process termination" (embedding applications call Shutdown
// from their own termination path; a long-running binary simply never
// calls it).
func (s *Server) Serve() error {
	if s.acceptor == nil {
		return &BindError{Op: "bind", Err: errNotBound}
	}

	s.sched = scheduler.New(s.opts.workerCount)

	var reactorErr error
	r, err := reactor.New(s.sched.Spawn)
	if err != nil {
		return &IOError{Op: "poll", Err: err}
	}
	s.reactor = r

	s.sched.Start()

	if err := s.acceptor.Listen(r); err != nil {
		return &IOError{Op: "poll", Err: err}
	}

	go func() {
		if err := r.Run(); err != nil {
			reactorErr = err
			s.logger.Error("reactor stopped", err)
			s.Shutdown()
		}
	}()

	s.sched.Spawn(s.acceptLoop)

	<-s.done
	return reactorErr
}

// Shutdown stops Serve: the acceptor and reactor are closed (waking
// any task parked awaiting them) and the scheduler drains pending
// tasks before returning. Idempotent.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		if s.acceptor != nil {
			_ = s.acceptor.Close()
		}
		if s.reactor != nil {
			_ = s.reactor.Close()
		}
		if s.sched != nil {
			s.sched.Shutdown()
		}
		close(s.done)
	})
}

// acceptLoop is the one long-lived task spec.md §2 calls "the acceptor
// task": it awaits one connection at a time and spawns a handler task
// for each, until Accept itself reports an error (including the one
// produced by Shutdown closing the listening fd).
func (s *Server) acceptLoop() {
	for {
		conn, err := s.acceptor.Accept()
		if err != nil {
			return
		}
		s.metrics.connectionAccepted()
		s.sched.Spawn(func() { s.handleConnection(conn) })
	}
}

// handleConnection realizes the handler task state machine from
// spec.md §4.7: accepted → reading_head → [reading_body] → dispatched
// → writing → closed. Any error at any stage is logged and the
// connection is closed without completing later stages — a dispatch
// miss is not an error, it is converted to the fallback handler.
func (s *Server) handleConnection(conn *ioprim.Connection) {
	defer func() {
		_ = conn.Close()
		s.metrics.connectionClosed()
	}()

	req, err := parseRequest(conn)
	if err != nil {
		s.logParseOrIOError(err)
		return
	}

	handler, params, ok := s.tree.Route(req.Method, req.Target)
	if !ok {
		handler, params = s.notFound, nil
	}

	resp := handler(req, params)
	if resp == nil {
		resp = notFoundResponse()
	}

	if err := serializeResponse(conn, resp); err != nil {
		s.metrics.ioError()
		s.logger.Error("send failed", err, F("target", req.Target))
		return
	}

	s.metrics.requestServed()
}

func (s *Server) logParseOrIOError(err error) {
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		s.metrics.ioError()
		s.logger.Error("connection failed", err)
		return
	}
	s.metrics.parseError()
	s.logger.Error("request parse failed", err)
}

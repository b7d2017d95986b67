// Package reactor implements the readiness-based I/O multiplexer of
// spec.md §4.2: one poller goroutine blocks in the platform syscall
// (epoll on Linux, kqueue on Darwin, a portable fallback elsewhere),
// and every readiness notification is handed to a scheduler instead of
// being run inline on the poller goroutine — the poller never blocks
// on application code.
package reactor

import (
	"errors"
	"sync"
)

// Events is a bitset of readiness conditions, mirroring eventloop's
// own IOEvents enum.
type Events uint32

const (
	// EventRead indicates the file descriptor is ready for a
	// non-blocking read.
	EventRead Events = 1 << iota
	// EventWrite indicates the file descriptor is ready for a
	// non-blocking write.
	EventWrite
	// EventError indicates an error condition on the file descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup
)

// Callback is invoked with the readiness events observed for a
// registered file descriptor. It is always invoked on a scheduler
// worker goroutine, never on the poller's own goroutine.
type Callback func(Events)

// Standard errors, mirroring eventloop's own error set.
var (
	ErrClosed            = errors.New("reactor: closed")
	ErrAlreadyRegistered = errors.New("reactor: fd already registered")
	ErrNotRegistered     = errors.New("reactor: fd not registered")
)

// poller is the platform-specific readiness multiplexer. Each GOOS
// gets its own implementation in poller_<os>.go.
type poller interface {
	init() error
	close() error
	register(fd int, events Events) error
	unregister(fd int) error
	modify(fd int, events Events) error
	// wait blocks until at least one fd is ready or timeoutMs elapses
	// (negative means block indefinitely), delivering each ready fd's
	// events via deliver. wait never invokes a subscriber's Callback
	// itself: deliver is Reactor.Run's function, which hands the
	// Callback to the scheduler.
	wait(timeoutMs int, deliver func(fd int, ev Events)) error
}

// Resubmit hands a unit of work to the scheduler that owns it. The
// reactor is scheduler-agnostic: it depends only on being given a
// function that enqueues a callback invocation for later execution,
// so it never runs application code on the poller goroutine.
type Resubmit func(run func())

// Reactor owns one platform poller and the registry of callbacks
// associated with its registered file descriptors.
type Reactor struct {
	p poller

	mu   sync.RWMutex
	subs map[int]Callback

	resubmit Resubmit

	closeOnce sync.Once
	closed    chan struct{}
}

// New constructs a Reactor that dispatches readiness callbacks through
// resubmit (ordinarily Scheduler.Spawn).
func New(resubmit Resubmit) (*Reactor, error) {
	p := newPoller()
	if err := p.init(); err != nil {
		return nil, err
	}
	return &Reactor{
		p:        p,
		subs:     make(map[int]Callback),
		resubmit: resubmit,
		closed:   make(chan struct{}),
	}, nil
}

// Subscribe registers fd for the given events; cb fires (on a
// scheduler worker, not inline) whenever the poller observes any of
// them. Subscribing an already-registered fd returns
// ErrAlreadyRegistered — callers that want to change interest set use
// Modify.
func (r *Reactor) Subscribe(fd int, events Events, cb Callback) error {
	r.mu.Lock()
	if _, ok := r.subs[fd]; ok {
		r.mu.Unlock()
		return ErrAlreadyRegistered
	}
	r.subs[fd] = cb
	r.mu.Unlock()

	if err := r.p.register(fd, events); err != nil {
		r.mu.Lock()
		delete(r.subs, fd)
		r.mu.Unlock()
		return err
	}
	return nil
}

// Modify changes the interest set for an already-registered fd.
func (r *Reactor) Modify(fd int, events Events) error {
	r.mu.RLock()
	_, ok := r.subs[fd]
	r.mu.RUnlock()
	if !ok {
		return ErrNotRegistered
	}
	return r.p.modify(fd, events)
}

// Unregister removes fd from the poller. Per spec.md §4.2's ordering
// guarantee, the caller must not close fd until Unregister has
// returned: a callback invocation that was already queued on the
// scheduler before Unregister ran may still fire after it returns, but
// no new invocation is queued afterward.
func (r *Reactor) Unregister(fd int) error {
	r.mu.Lock()
	if _, ok := r.subs[fd]; !ok {
		r.mu.Unlock()
		return ErrNotRegistered
	}
	delete(r.subs, fd)
	r.mu.Unlock()

	return r.p.unregister(fd)
}

// Run blocks, polling for readiness and dispatching callbacks via
// Resubmit, until Close is called. It is meant to be run on its own
// goroutine — exactly one Reactor owns exactly one poller loop.
func (r *Reactor) Run() error {
	for {
		select {
		case <-r.closed:
			return nil
		default:
		}

		err := r.p.wait(250, func(fd int, ev Events) {
			r.mu.RLock()
			cb, ok := r.subs[fd]
			r.mu.RUnlock()
			if !ok || cb == nil {
				return
			}
			// Dispatch through the scheduler: the poller goroutine
			// must never run application code inline, since a slow
			// or blocking handler would stall every other fd's
			// readiness notifications.
			r.resubmit(func() { cb(ev) })
		})
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}
	}
}

// Close shuts down the poller. It is idempotent.
func (r *Reactor) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.closed)
		err = r.p.close()
	})
	return err
}

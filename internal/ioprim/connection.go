package ioprim

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/corvidhttp/corvid/internal/reactor"
)

// Connection is a non-blocking accepted TCP stream, registered with a
// Reactor. It exclusively owns its file descriptor; Close unregisters
// from the reactor before closing the fd, so no reactor entry ever
// dangles, per spec.md §4.1.
//
// Write interest is registered on demand rather than held permanently
// alongside read interest: a socket's send buffer is almost always
// writable, so a level-triggered poller would otherwise wake the
// reactor for write-readiness on every idle connection. Send escalates
// interest to EventRead|EventWrite via Reactor.Modify only while it is
// actually backpressured, and drops back to EventRead once the buffer
// drains.
type Connection struct {
	fd int
	r  *reactor.Reactor

	mu          sync.Mutex
	interest    reactor.Events
	readWaiter  chan reactor.Events
	writeWaiter chan reactor.Events

	closeOnce sync.Once
}

func (c *Connection) onReady(ev reactor.Events) {
	c.mu.Lock()
	var rw, ww chan reactor.Events
	if ev&(reactor.EventRead|reactor.EventError|reactor.EventHangup) != 0 {
		rw = c.readWaiter
		c.readWaiter = nil
	}
	if ev&(reactor.EventWrite|reactor.EventError|reactor.EventHangup) != 0 {
		ww = c.writeWaiter
		c.writeWaiter = nil
	}
	c.mu.Unlock()
	if rw != nil {
		rw <- ev
	}
	if ww != nil {
		ww <- ev
	}
}

// await blocks the calling goroutine — a scheduler task — until the
// reactor reports readiness for one of dir (EventRead or EventWrite).
// This is the suspend-on-awaitable rendering of spec.md §4.1/§9: the
// task's goroutine parks on a channel a reactor callback fills in.
func (c *Connection) await(dir reactor.Events) {
	ch := make(chan reactor.Events, 1)
	c.mu.Lock()
	if dir&reactor.EventRead != 0 {
		c.readWaiter = ch
	}
	if dir&reactor.EventWrite != 0 {
		c.writeWaiter = ch
	}
	c.mu.Unlock()
	<-ch
}

// Recv reads into buf, retrying transparently on EAGAIN/EWOULDBLOCK by
// resuspending on read-readiness. A return of (0, nil) means the peer
// closed its end, matching spec.md §4.1's recv() contract.
func (c *Connection) Recv(buf []byte) (int, error) {
	for {
		n, err := unix.Read(c.fd, buf)
		if err == nil {
			return n, nil
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			c.await(reactor.EventRead)
			continue
		}
		return 0, &Errno{Op: "recv", Err: err}
	}
}

// Send writes buf in full, looping until every byte is flushed or an
// Io error is surfaced, matching spec.md §4.1's send() contract (the
// caller-facing loop spec.md leaves to callers is done here so every
// corvid call site gets "fully written or error", matching
// serialize.go's send-loop requirement in spec.md §4.6).
func (c *Connection) Send(buf []byte) (int, error) {
	escalated := false
	defer func() {
		if escalated {
			c.setInterest(reactor.EventRead)
		}
	}()

	written := 0
	for written < len(buf) {
		n, err := unix.Write(c.fd, buf[written:])
		if err == nil {
			written += n
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			if !escalated {
				c.setInterest(reactor.EventRead | reactor.EventWrite)
				escalated = true
			}
			c.await(reactor.EventWrite)
			continue
		}
		return written, &Errno{Op: "send", Err: err}
	}
	return written, nil
}

// setInterest updates the reactor's interest set for this connection's
// fd to events. Errors are ignored: a Close racing with a trailing
// Send's deferred de-escalation leaves the fd unregistered already, at
// which point there is no interest set left to fix up.
func (c *Connection) setInterest(events reactor.Events) {
	c.mu.Lock()
	if c.interest == events {
		c.mu.Unlock()
		return
	}
	c.interest = events
	c.mu.Unlock()

	_ = c.r.Modify(c.fd, events)
}

// Close unregisters the Connection from its reactor, then closes its
// file descriptor. Idempotent; safe to defer unconditionally.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.r != nil {
			_ = c.r.Unregister(c.fd)
		}
		err = unix.Close(c.fd)
	})
	return err
}

// Fd exposes the underlying file descriptor for diagnostics/metrics.
// It must not be used to read or write outside Recv/Send — doing so
// would violate the reactor's single-owner readiness bookkeeping.
func (c *Connection) Fd() int { return c.fd }

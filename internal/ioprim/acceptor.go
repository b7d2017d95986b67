package ioprim

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/corvidhttp/corvid/internal/reactor"
)

// Acceptor is a non-blocking listening TCP socket. It owns exactly one
// file descriptor; Close releases it exactly once.
type Acceptor struct {
	fd int
	r  *reactor.Reactor

	mu        sync.Mutex
	acceptor  chan reactor.Events
	closeOnce sync.Once
}

// Bind constructs the Acceptor: socket, SO_REUSEADDR, bind, listen, all
// with O_NONBLOCK set, matching spec.md §4.1 exactly. The error
// identifies which syscall failed, mirroring spec.md's
// AddressParse/Bind/Listen distinction.
func Bind(addr string, port int, backlog int) (*Acceptor, error) {
	ip, err := parseIPv4(addr)
	if err != nil {
		return nil, fmt.Errorf("ioprim: address parse %q: %w", addr, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("ioprim: socket: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("ioprim: set nonblock: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("ioprim: setsockopt SO_REUSEADDR: %w", err)
	}

	sa := &unix.SockaddrInet4{Port: port, Addr: ip}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("ioprim: bind %s:%d: %w", addr, port, err)
	}

	if backlog <= 0 {
		backlog = 100
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("ioprim: listen: %w", err)
	}

	return &Acceptor{fd: fd}, nil
}

func parseIPv4(addr string) ([4]byte, error) {
	var out [4]byte
	if addr == "" || addr == "0.0.0.0" {
		return out, nil
	}
	var a, b, c, d int
	n, err := fmt.Sscanf(addr, "%d.%d.%d.%d", &a, &b, &c, &d)
	if err != nil || n != 4 {
		return out, fmt.Errorf("not a dotted-quad IPv4 address")
	}
	for _, v := range []int{a, b, c, d} {
		if v < 0 || v > 255 {
			return out, fmt.Errorf("octet out of range")
		}
	}
	return [4]byte{byte(a), byte(b), byte(c), byte(d)}, nil
}

// Port returns the local port the Acceptor is bound to, useful when
// Bind was called with port 0 to let the kernel choose one.
func (a *Acceptor) Port() (int, error) {
	sa, err := unix.Getsockname(a.fd)
	if err != nil {
		return 0, err
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return 0, fmt.Errorf("ioprim: unexpected sockaddr type %T", sa)
	}
	return in4.Port, nil
}

// Listen registers the Acceptor's fd with r for read-readiness, so
// Accept can await incoming connections instead of busy-polling. It
// must be called once, before the first Accept.
func (a *Acceptor) Listen(r *reactor.Reactor) error {
	a.r = r
	return r.Subscribe(a.fd, reactor.EventRead, a.onReady)
}

func (a *Acceptor) onReady(ev reactor.Events) {
	a.mu.Lock()
	ch := a.acceptor
	a.acceptor = nil
	a.mu.Unlock()
	if ch != nil {
		ch <- ev
	}
}

// Accept awaits and returns the next inbound connection, retrying
// transparently on EAGAIN/EWOULDBLOCK by resuspending on reactor
// readiness, matching spec.md §4.1's accept() contract. The returned
// Connection is non-blocking and registered with r for read interest
// only; it escalates to write interest itself, via Reactor.Modify,
// only while a Send is backpressured (see connection.go).
func (a *Acceptor) Accept() (*Connection, error) {
	for {
		fd, err := acceptNonblocking(a.fd)
		if err == nil {
			conn := &Connection{fd: fd, r: a.r, interest: reactor.EventRead}
			if err := a.r.Subscribe(fd, reactor.EventRead, conn.onReady); err != nil {
				_ = unix.Close(fd)
				return nil, &Errno{Op: "accept/register", Err: err}
			}
			return conn, nil
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			ch := make(chan reactor.Events, 1)
			a.mu.Lock()
			a.acceptor = ch
			a.mu.Unlock()
			<-ch
			continue
		}
		return nil, &Errno{Op: "accept", Err: err}
	}
}

// Close releases the Acceptor's file descriptor exactly once. A goroutine
// parked in Accept is woken so it observes the now-closed fd and returns
// an error instead of blocking forever.
func (a *Acceptor) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.r != nil {
			_ = a.r.Unregister(a.fd)
		}
		err = unix.Close(a.fd)

		a.mu.Lock()
		ch := a.acceptor
		a.acceptor = nil
		a.mu.Unlock()
		if ch != nil {
			ch <- 0
		}
	})
	return err
}

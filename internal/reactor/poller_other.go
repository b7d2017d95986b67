//go:build !linux && !darwin && !windows

package reactor

import (
	"sync"

	"golang.org/x/sys/unix"
)

// pollPoller is the portable fallback poller for Unix targets without
// a dedicated epoll or kqueue implementation (spec.md §4.2's "or an
// equivalent mechanism on other platforms"). It uses poll(2) via
// golang.org/x/sys/unix, same dependency the Linux and Darwin pollers
// use, just the lowest-common-denominator syscall instead of the
// readiness-list ones.
//
// This excludes windows deliberately rather than folding it into the
// same fallback: golang.org/x/sys/unix does not exist as a usable
// syscall surface on GOOS=windows (Windows syscalls live in the
// disjoint golang.org/x/sys/windows package), and internal/ioprim's
// socket/accept/read/write calls are unix-syscall-based throughout,
// not just this poller. See the Non-goals note in DESIGN.md.
type pollPoller struct {
	mu   sync.RWMutex
	want map[int]Events
}

func newPoller() poller {
	return &pollPoller{want: make(map[int]Events)}
}

func (p *pollPoller) init() error { return nil }

func (p *pollPoller) close() error { return nil }

func (p *pollPoller) register(fd int, events Events) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.want[fd]; ok {
		return ErrAlreadyRegistered
	}
	p.want[fd] = events
	return nil
}

func (p *pollPoller) unregister(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.want[fd]; !ok {
		return ErrNotRegistered
	}
	delete(p.want, fd)
	return nil
}

func (p *pollPoller) modify(fd int, events Events) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.want[fd]; !ok {
		return ErrNotRegistered
	}
	p.want[fd] = events
	return nil
}

func (p *pollPoller) wait(timeoutMs int, deliver func(fd int, ev Events)) error {
	p.mu.RLock()
	fds := make([]unix.PollFd, 0, len(p.want))
	for fd, events := range p.want {
		var e int16
		if events&EventRead != 0 {
			e |= unix.POLLIN
		}
		if events&EventWrite != 0 {
			e |= unix.POLLOUT
		}
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: e})
	}
	p.mu.RUnlock()

	if len(fds) == 0 {
		// Nothing registered; still honor the timeout so Reactor.Run's
		// loop keeps checking for Close.
		_, err := unix.Poll(nil, timeoutMs)
		if err != nil && err != unix.EINTR {
			return err
		}
		return nil
	}

	_, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}

	for _, pfd := range fds {
		if pfd.Revents == 0 {
			continue
		}
		var events Events
		if pfd.Revents&unix.POLLIN != 0 {
			events |= EventRead
		}
		if pfd.Revents&unix.POLLOUT != 0 {
			events |= EventWrite
		}
		if pfd.Revents&unix.POLLERR != 0 {
			events |= EventError
		}
		if pfd.Revents&(unix.POLLHUP|unix.POLLNVAL) != 0 {
			events |= EventHangup
		}
		deliver(int(pfd.Fd), events)
	}
	return nil
}

//go:build linux

package reactor

import (
	"sync"

	"golang.org/x/sys/unix"
)

// epollPoller is the Linux poller, adapted from eventloop's
// FastPoller: an epoll instance plus a map from fd to its
// current interest set (the reactor itself owns the callback map, so
// this type only needs enough state to translate Events to epoll
// flags on modify).
type epollPoller struct {
	epfd int

	mu   sync.RWMutex
	want map[int]Events

	eventBuf [256]unix.EpollEvent
}

func newPoller() poller {
	return &epollPoller{want: make(map[int]Events)}
}

func (p *epollPoller) init() error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = epfd
	return nil
}

func (p *epollPoller) close() error {
	return unix.Close(p.epfd)
}

func (p *epollPoller) register(fd int, events Events) error {
	p.mu.Lock()
	p.want[fd] = events
	p.mu.Unlock()

	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		p.mu.Lock()
		delete(p.want, fd)
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *epollPoller) unregister(fd int) error {
	p.mu.Lock()
	delete(p.want, fd)
	p.mu.Unlock()
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) modify(fd int, events Events) error {
	p.mu.Lock()
	p.want[fd] = events
	p.mu.Unlock()

	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev)
}

func (p *epollPoller) wait(timeoutMs int, deliver func(fd int, ev Events)) error {
	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Fd)
		deliver(fd, epollToEvents(p.eventBuf[i].Events))
	}
	return nil
}

func eventsToEpoll(events Events) uint32 {
	var e uint32
	if events&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToEvents(e uint32) Events {
	var events Events
	if e&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if e&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if e&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}

//go:build !linux

package ioprim

import "golang.org/x/sys/unix"

// acceptNonblocking accepts one connection from fd, returning it
// already non-blocking. Platforms without accept4 (Darwin and other
// BSDs) accept first, then set O_NONBLOCK as a second syscall.
func acceptNonblocking(fd int) (int, error) {
	connFd, _, err := unix.Accept(fd)
	if err != nil {
		return -1, err
	}
	if err := unix.SetNonblock(connFd, true); err != nil {
		_ = unix.Close(connFd)
		return -1, err
	}
	return connFd, nil
}

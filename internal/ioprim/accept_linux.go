//go:build linux

package ioprim

import "golang.org/x/sys/unix"

// acceptNonblocking accepts one connection from fd, returning it
// already non-blocking. Linux has accept4, which sets O_NONBLOCK
// atomically with the accept.
func acceptNonblocking(fd int) (int, error) {
	connFd, _, err := unix.Accept4(fd, unix.SOCK_NONBLOCK)
	return connFd, err
}

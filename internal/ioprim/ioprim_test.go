package ioprim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/corvidhttp/corvid/internal/reactor"
	"github.com/corvidhttp/corvid/internal/scheduler"
)

func newTestEnv(t *testing.T) (*reactor.Reactor, func()) {
	t.Helper()
	sched := scheduler.New(2)
	sched.Start()

	r, err := reactor.New(sched.Spawn)
	require.NoError(t, err)

	go func() { _ = r.Run() }()

	return r, func() {
		_ = r.Close()
		sched.Shutdown()
	}
}

func TestAcceptor_BindAcceptRecvSend(t *testing.T) {
	r, stop := newTestEnv(t)
	defer stop()

	acc, err := Bind("127.0.0.1", 0, 16)
	require.NoError(t, err)
	defer acc.Close()
	require.NoError(t, acc.Listen(r))

	addr, err := unix.Getsockname(acc.fd)
	require.NoError(t, err)
	sa, ok := addr.(*unix.SockaddrInet4)
	require.True(t, ok)

	serverConnCh := make(chan *Connection, 1)
	serverErrCh := make(chan error, 1)
	go func() {
		c, err := acc.Accept()
		if err != nil {
			serverErrCh <- err
			return
		}
		serverConnCh <- c
	}()

	clientFd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(clientFd)
	require.NoError(t, unix.Connect(clientFd, &unix.SockaddrInet4{Port: sa.Port, Addr: sa.Addr}))

	var serverConn *Connection
	select {
	case serverConn = <-serverConnCh:
	case err := <-serverErrCh:
		t.Fatalf("accept failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("accept never completed")
	}
	defer serverConn.Close()

	payload := []byte("hello from client")
	n, err := unix.Write(clientFd, payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	buf := make([]byte, 64)
	n, err = serverConn.Recv(buf)
	require.NoError(t, err)
	require.Equal(t, payload, buf[:n])

	reply := []byte("hello from server")
	n, err = serverConn.Send(reply)
	require.NoError(t, err)
	require.Equal(t, len(reply), n)

	got := make([]byte, 64)
	n, err = unix.Read(clientFd, got)
	require.NoError(t, err)
	require.Equal(t, reply, got[:n])
}

// TestConnection_SendEscalatesWriteInterestWhenBackpressured shrinks
// both ends' socket buffers so a large write blocks on EAGAIN at least
// once, forcing Send through its write-interest escalation path before
// the client finally drains the socket and the write completes.
func TestConnection_SendEscalatesWriteInterestWhenBackpressured(t *testing.T) {
	r, stop := newTestEnv(t)
	defer stop()

	acc, err := Bind("127.0.0.1", 0, 16)
	require.NoError(t, err)
	defer acc.Close()
	require.NoError(t, acc.Listen(r))

	addr, err := unix.Getsockname(acc.fd)
	require.NoError(t, err)
	sa := addr.(*unix.SockaddrInet4)

	serverConnCh := make(chan *Connection, 1)
	go func() {
		c, err := acc.Accept()
		require.NoError(t, err)
		serverConnCh <- c
	}()

	clientFd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(clientFd)
	require.NoError(t, unix.SetsockoptInt(clientFd, unix.SOL_SOCKET, unix.SO_RCVBUF, 4096))
	require.NoError(t, unix.Connect(clientFd, &unix.SockaddrInet4{Port: sa.Port, Addr: sa.Addr}))

	var serverConn *Connection
	select {
	case serverConn = <-serverConnCh:
	case <-time.After(5 * time.Second):
		t.Fatal("accept never completed")
	}
	defer serverConn.Close()
	require.NoError(t, unix.SetsockoptInt(serverConn.fd, unix.SOL_SOCKET, unix.SO_SNDBUF, 4096))

	payload := make([]byte, 1<<20)
	for i := range payload {
		payload[i] = byte(i)
	}

	sendDone := make(chan error, 1)
	go func() {
		_, err := serverConn.Send(payload)
		sendDone <- err
	}()

	// Give Send a moment to fill the send buffer and hit EAGAIN at
	// least once before the client starts draining it.
	time.Sleep(50 * time.Millisecond)

	serverConn.mu.Lock()
	escalatedMidFlight := serverConn.interest == reactor.EventRead|reactor.EventWrite
	serverConn.mu.Unlock()
	require.True(t, escalatedMidFlight, "Send should have escalated to write interest under backpressure")

	received := 0
	buf := make([]byte, 4096)
	for received < len(payload) {
		n, err := unix.Read(clientFd, buf)
		require.NoError(t, err)
		received += n
	}

	select {
	case err := <-sendDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Send never completed")
	}

	serverConn.mu.Lock()
	finalInterest := serverConn.interest
	serverConn.mu.Unlock()
	require.Equal(t, reactor.EventRead, finalInterest, "Send should de-escalate write interest once drained")
}

func TestConnection_RecvReturnsZeroOnPeerClose(t *testing.T) {
	r, stop := newTestEnv(t)
	defer stop()

	acc, err := Bind("127.0.0.1", 0, 16)
	require.NoError(t, err)
	defer acc.Close()
	require.NoError(t, acc.Listen(r))

	addr, err := unix.Getsockname(acc.fd)
	require.NoError(t, err)
	sa := addr.(*unix.SockaddrInet4)

	serverConnCh := make(chan *Connection, 1)
	go func() {
		c, err := acc.Accept()
		require.NoError(t, err)
		serverConnCh <- c
	}()

	clientFd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.Connect(clientFd, &unix.SockaddrInet4{Port: sa.Port, Addr: sa.Addr}))

	var serverConn *Connection
	select {
	case serverConn = <-serverConnCh:
	case <-time.After(5 * time.Second):
		t.Fatal("accept never completed")
	}
	defer serverConn.Close()

	require.NoError(t, unix.Close(clientFd))

	buf := make([]byte, 16)
	n, err := serverConn.Recv(buf)
	require.NoError(t, err)
	require.Zero(t, n)
}

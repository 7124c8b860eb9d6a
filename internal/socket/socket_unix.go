// Copyright (c) 2020 Andy Pan
// Copyright (c) 2017 Max Riveiro
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

package socket

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

var listenerBacklogMaxSize = maxListenerBacklog()

// Socket is a non-blocking stream socket.
type Socket struct {
	fd       int
	local    net.Addr
	remote   net.Addr
	noDelay  bool
	shutdown bool
	closed   bool
}

// Listen creates, binds and listens on a non-blocking TCP socket.
func Listen(network, address string, opts Options) (s *Socket, err error) {
	if err = checkNetwork(network); err != nil {
		return nil, err
	}
	sa, family, tcpAddr, ipv6only, err := getTCPSockaddr(network, address)
	if err != nil {
		return nil, err
	}

	fd, err := sysSocket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	defer func() {
		if err != nil {
			_ = unix.Close(fd)
		}
	}()

	if family == unix.AF_INET6 && ipv6only {
		if err = SetIPv6Only(fd, 1); err != nil {
			return
		}
	}
	if opts.ReuseAddr {
		if err = SetReuseAddr(fd, 1); err != nil {
			return
		}
	}
	if opts.ReusePort {
		if err = SetReuseport(fd, 1); err != nil {
			return
		}
	}

	if err = os.NewSyscallError("bind", unix.Bind(fd, sa)); err != nil {
		return
	}
	backlog := opts.Backlog
	if backlog <= 0 || backlog > listenerBacklogMaxSize {
		backlog = listenerBacklogMaxSize
	}
	if err = os.NewSyscallError("listen", unix.Listen(fd, backlog)); err != nil {
		return
	}

	s = &Socket{fd: fd, local: tcpAddr, noDelay: opts.NoDelay}
	// Pick up the port chosen by the kernel when listening on port 0.
	if lsa, e := unix.Getsockname(fd); e == nil {
		s.local = SockaddrToTCPAddr(lsa)
	}
	return
}

// Pair returns a connected pair of non-blocking stream sockets.
func Pair() (*Socket, *Socket, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, nil, os.NewSyscallError("socketpair", err)
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err = unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return nil, nil, os.NewSyscallError("setnonblock", err)
		}
	}
	addr := &net.UnixAddr{Net: "unix"}
	return &Socket{fd: fds[0], local: addr, remote: addr}, &Socket{fd: fds[1], local: addr, remote: addr}, nil
}

// Accept accepts one pending connection, the returned socket is non-blocking.
// The raw errno is returned as is so that callers can tell transient errors apart.
func (s *Socket) Accept() (*Socket, error) {
	nfd, sa, err := sysAccept(s.fd)
	if err != nil {
		return nil, err
	}
	c := &Socket{fd: nfd, local: s.local, remote: SockaddrToTCPAddr(sa)}
	if lsa, e := unix.Getsockname(nfd); e == nil {
		c.local = SockaddrToTCPAddr(lsa)
	}
	if s.noDelay {
		_ = SetNoDelay(nfd, 1)
	}
	return c, nil
}

// Read reads from the socket, it returns the raw errno on failure.
func (s *Socket) Read(p []byte) (int, error) {
	n, err := unix.Read(s.fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

// Write writes to the socket, it returns the raw errno on failure.
func (s *Socket) Write(p []byte) (int, error) {
	n, err := unix.Write(s.fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

// Writev writes the given buffers with one gathering write where supported.
func (s *Socket) Writev(bs [][]byte) (int, error) {
	if len(bs) == 1 {
		return s.Write(bs[0])
	}
	if len(bs) > iovMax {
		bs = bs[:iovMax]
	}
	return writev(s.fd, bs)
}

// SetNonblock toggles the O_NONBLOCK flag of the socket.
func (s *Socket) SetNonblock(nonblocking bool) error {
	return os.NewSyscallError("setnonblock", unix.SetNonblock(s.fd, nonblocking))
}

// SockError fetches and clears the pending error of the socket (SO_ERROR).
func (s *Socket) SockError() error {
	errno, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return os.NewSyscallError("getsockopt", err)
	}
	if errno != 0 {
		return unix.Errno(errno)
	}
	return nil
}

// Shutdown shuts down both directions of the socket, it is idempotent.
func (s *Socket) Shutdown() error {
	if s.shutdown || s.closed {
		return nil
	}
	s.shutdown = true
	err := unix.Shutdown(s.fd, unix.SHUT_RDWR)
	if err == unix.ENOTCONN {
		// The peer is gone already, or it is a listening socket.
		err = nil
	}
	return os.NewSyscallError("shutdown", err)
}

// Close releases the descriptor, it is idempotent.
func (s *Socket) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return os.NewSyscallError("close", unix.Close(s.fd))
}

// Fd returns the underlying file descriptor.
func (s *Socket) Fd() int { return s.fd }

// LocalAddr returns the local address of the socket.
func (s *Socket) LocalAddr() net.Addr { return s.local }

// RemoteAddr returns the peer address of the socket, nil for listeners.
func (s *Socket) RemoteAddr() net.Addr { return s.remote }

// IsShutdown reports whether Shutdown or Close has been called.
func (s *Socket) IsShutdown() bool { return s.shutdown || s.closed }

// Closed reports whether Close has been called.
func (s *Socket) Closed() bool { return s.closed }

// IsWouldBlock reports whether err means the operation should simply be retried later.
func IsWouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR
}

// IsTransientAccept reports whether an accept(2) failure only concerns the
// connection being accepted, or no connection at all, and the listener stays usable.
func IsTransientAccept(err error) bool {
	switch err {
	case unix.EAGAIN, unix.EINTR, unix.ECONNABORTED, unix.EPROTO:
		return true
	}
	return false
}

// IsInterrupted reports whether a blocking syscall was interrupted by a signal.
func IsInterrupted(err error) bool {
	return err == unix.EINTR
}

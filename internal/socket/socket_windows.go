// Copyright (c) 2026 The Gnet Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build windows

package socket

import (
	"net"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	wsaEINTR          = windows.Errno(10004)
	wsaEWOULDBLOCK    = windows.Errno(10035)
	wsaEOPNOTSUPP     = windows.Errno(10045)
	wsaECONNABORTED   = windows.Errno(10053)
	wsaECONNRESET     = windows.Errno(10054)
	wsaENOTCONN       = windows.Errno(10057)
	errNetnameDeleted = windows.Errno(64)

	soError   = 0x1007
	somaxconn = 0x7fffffff
)

// Socket is an overlapped-capable stream socket.
type Socket struct {
	fd       windows.Handle
	family   int
	local    net.Addr
	remote   net.Addr
	noDelay  bool
	shutdown bool
	closed   bool
}

// Listen creates, binds and listens on a TCP socket.
func Listen(network, address string, opts Options) (s *Socket, err error) {
	if err = checkNetwork(network); err != nil {
		return nil, err
	}
	tcpAddr, err := net.ResolveTCPAddr(network, address)
	if err != nil {
		return nil, err
	}
	version, err := determineTCPProto(network, tcpAddr)
	if err != nil {
		return nil, err
	}

	var (
		sa     windows.Sockaddr
		family = windows.AF_INET6
	)
	switch version {
	case "tcp4":
		sa4 := &windows.SockaddrInet4{Port: tcpAddr.Port}
		if ip4 := tcpAddr.IP.To4(); ip4 != nil {
			copy(sa4.Addr[:], ip4)
		}
		sa, family = sa4, windows.AF_INET
	default:
		sa6 := &windows.SockaddrInet6{Port: tcpAddr.Port}
		if tcpAddr.IP != nil {
			copy(sa6.Addr[:], tcpAddr.IP.To16())
		}
		sa = sa6
	}

	fd, err := windows.Socket(family, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	defer func() {
		if err != nil {
			_ = windows.Closesocket(fd)
		}
	}()

	if family == windows.AF_INET6 {
		v6only := 0
		if version == "tcp6" {
			v6only = 1
		}
		if err = os.NewSyscallError("setsockopt", windows.SetsockoptInt(fd, windows.IPPROTO_IPV6, windows.IPV6_V6ONLY, v6only)); err != nil {
			return
		}
	}
	if opts.ReuseAddr || opts.ReusePort {
		if err = os.NewSyscallError("setsockopt", windows.SetsockoptInt(fd, windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)); err != nil {
			return
		}
	}
	if err = os.NewSyscallError("bind", windows.Bind(fd, sa)); err != nil {
		return
	}
	backlog := opts.Backlog
	if backlog <= 0 {
		backlog = somaxconn
	}
	if err = os.NewSyscallError("listen", windows.Listen(fd, backlog)); err != nil {
		return
	}

	s = &Socket{fd: fd, family: family, local: tcpAddr, noDelay: opts.NoDelay}
	if lsa, e := windows.Getsockname(fd); e == nil {
		s.local = sockaddrToTCPAddr(lsa)
	}
	return
}

// NewAcceptSocket creates the socket handed to AcceptEx for the listener s.
func (s *Socket) NewAcceptSocket() (*Socket, error) {
	fd, err := windows.Socket(s.family, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	return &Socket{fd: fd, family: s.family, noDelay: s.noDelay}, nil
}

// UpdateAcceptContext finishes an AcceptEx on c for the listener ln, it
// inherits the listener properties and resolves both addresses.
func (c *Socket) UpdateAcceptContext(ln *Socket) error {
	h := ln.fd
	err := windows.Setsockopt(c.fd, windows.SOL_SOCKET, windows.SO_UPDATE_ACCEPT_CONTEXT,
		(*byte)(unsafe.Pointer(&h)), int32(unsafe.Sizeof(h)))
	if err != nil {
		return os.NewSyscallError("setsockopt", err)
	}
	if sa, err := windows.Getsockname(c.fd); err == nil {
		c.local = sockaddrToTCPAddr(sa)
	}
	if sa, err := windows.Getpeername(c.fd); err == nil {
		c.remote = sockaddrToTCPAddr(sa)
	}
	if c.noDelay {
		_ = windows.SetsockoptInt(c.fd, windows.IPPROTO_TCP, windows.TCP_NODELAY, 1)
	}
	return nil
}

// Accept is not available on the completion port, connections come from AcceptEx.
func (s *Socket) Accept() (*Socket, error) {
	return nil, wsaEOPNOTSUPP
}

// Read receives from the socket synchronously.
func (s *Socket) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	var (
		n     uint32
		flags uint32
	)
	buf := windows.WSABuf{Len: uint32(len(p)), Buf: &p[0]}
	err := windows.WSARecv(s.fd, &buf, 1, &n, &flags, nil, nil)
	return int(n), err
}

// Write sends to the socket synchronously.
func (s *Socket) Write(p []byte) (int, error) {
	return s.Writev([][]byte{p})
}

// Writev sends the given buffers with one gathering WSASend.
func (s *Socket) Writev(bs [][]byte) (int, error) {
	bufs := make([]windows.WSABuf, 0, len(bs))
	for _, b := range bs {
		if len(b) > 0 {
			bufs = append(bufs, windows.WSABuf{Len: uint32(len(b)), Buf: &b[0]})
		}
	}
	if len(bufs) == 0 {
		return 0, nil
	}
	var n uint32
	err := windows.WSASend(s.fd, &bufs[0], uint32(len(bufs)), &n, 0, nil, nil)
	return int(n), err
}

// SockError fetches and clears the pending error of the socket (SO_ERROR).
func (s *Socket) SockError() error {
	var (
		errno int32
		l     = int32(unsafe.Sizeof(errno))
	)
	if err := windows.Getsockopt(s.fd, windows.SOL_SOCKET, soError, (*byte)(unsafe.Pointer(&errno)), &l); err != nil {
		return os.NewSyscallError("getsockopt", err)
	}
	if errno != 0 {
		return windows.Errno(errno)
	}
	return nil
}

// Shutdown shuts down both directions of the socket, it is idempotent.
func (s *Socket) Shutdown() error {
	if s.shutdown || s.closed {
		return nil
	}
	s.shutdown = true
	err := windows.Shutdown(s.fd, windows.SHUT_RDWR)
	if err == wsaENOTCONN {
		err = nil
	}
	return os.NewSyscallError("shutdown", err)
}

// Close releases the socket handle, it is idempotent.
func (s *Socket) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return os.NewSyscallError("closesocket", windows.Closesocket(s.fd))
}

// Handle returns the underlying socket handle.
func (s *Socket) Handle() windows.Handle { return s.fd }

// Fd returns the underlying socket handle as an int.
func (s *Socket) Fd() int { return int(s.fd) }

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
	return err == wsaEWOULDBLOCK || err == wsaEINTR
}

// IsTransientAccept reports whether an AcceptEx failure only concerns the connection being accepted.
func IsTransientAccept(err error) bool {
	switch err {
	case wsaECONNRESET, wsaECONNABORTED, errNetnameDeleted, wsaEINTR:
		return true
	}
	return false
}

// IsInterrupted reports whether a blocking call was interrupted.
func IsInterrupted(err error) bool {
	return err == wsaEINTR
}

func sockaddrToTCPAddr(sa windows.Sockaddr) net.Addr {
	switch sa := sa.(type) {
	case *windows.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, sa.Addr[:])
		return &net.TCPAddr{IP: ip, Port: sa.Port}
	case *windows.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, sa.Addr[:])
		return &net.TCPAddr{IP: ip, Port: sa.Port}
	}
	return nil
}

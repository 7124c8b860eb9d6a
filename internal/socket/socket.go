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

// Package socket wraps the stream socket syscalls the event loop relies on:
// listen, accept, read, write(v), shutdown and close on raw descriptors.
// Every socket it hands out is non-blocking.
package socket

import (
	"net"

	"github.com/panjf2000/evloop/pkg/errors"
)

// Options are the socket options applied before a listening socket is bound.
type Options struct {
	// ReuseAddr sets SO_REUSEADDR.
	ReuseAddr bool
	// ReusePort sets SO_REUSEPORT where the platform supports it.
	ReusePort bool
	// NoDelay sets TCP_NODELAY on every accepted socket.
	NoDelay bool
	// Backlog is the listen(2) backlog, defaults to the maximum the system allows.
	Backlog int
}

func checkNetwork(network string) error {
	switch network {
	case "tcp", "tcp4", "tcp6":
		return nil
	}
	return errors.ErrUnsupportedProtocol
}

func determineTCPProto(proto string, addr *net.TCPAddr) (string, error) {
	// When the protocol is the plain "tcp", take the actual version from the
	// resolved address, otherwise respect what the caller asked for.
	switch proto {
	case "tcp4", "tcp6":
		return proto, nil
	case "tcp":
	default:
		return "", errors.ErrUnsupportedProtocol
	}
	if addr.IP.To4() != nil {
		return "tcp4", nil
	}
	if addr.IP.To16() != nil {
		return "tcp6", nil
	}
	return proto, nil
}

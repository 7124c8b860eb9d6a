// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package evloop

import (
	"net"

	"github.com/panjf2000/evloop/internal/socket"
	"github.com/panjf2000/evloop/pkg/errors"
)

// Watcher is a resource monitored by a Loop, either a *ConnectionWatcher or an *IOWatcher.
type Watcher interface {
	// Active reports whether the watcher is registered with its loop.
	Active() bool
	// Fd returns the socket descriptor, or -1 once the socket is closed.
	Fd() int
	// State returns the lifecycle state.
	State() State
	// Err returns the error the watcher was killed with.
	Err() error

	base() *watcher
}

type watcher struct {
	loop   *Loop
	sock   *socket.Socket
	active bool
	state  State
	mask   EventMask
	err    error
	queued bool
}

func (w *watcher) base() *watcher { return w }

func (w *watcher) Active() bool { return w.active }

func (w *watcher) State() State { return w.state }

func (w *watcher) Err() error { return w.err }

func (w *watcher) Fd() int {
	if w.sock == nil || w.sock.Closed() {
		return -1
	}
	return w.sock.Fd()
}

// ConnectionWatcher watches a listening socket and creates an IOWatcher for
// every connection it accepts.
type ConnectionWatcher struct {
	watcher

	addr    net.Addr
	factory ProtocolFactory
	onError func(error)
}

// Listen opens a non-blocking listening socket, network must be "tcp", "tcp4" or "tcp6".
// The returned watcher is inactive until it is handed to Loop.Start.
func Listen(network, addr string, opts ...ListenOption) (*ConnectionWatcher, error) {
	var sockOpts socket.Options
	for _, opt := range opts {
		opt(&sockOpts)
	}
	s, err := socket.Listen(network, addr, sockOpts)
	if err != nil {
		return nil, err
	}
	return &ConnectionWatcher{watcher: watcher{sock: s}, addr: s.LocalAddr()}, nil
}

// SetProtocolFactory binds the function creating the Protocol of every accepted connection.
func (cw *ConnectionWatcher) SetProtocolFactory(f ProtocolFactory) {
	cw.factory = f
}

// SetErrorHandler binds the function notified on the drain pass after the listener is killed.
func (cw *ConnectionWatcher) SetErrorHandler(f func(err error)) {
	cw.onError = f
}

// Addr returns the address the watcher listens on.
func (cw *ConnectionWatcher) Addr() net.Addr {
	return cw.addr
}

// Close releases the listening socket of a stopped watcher.
func (cw *ConnectionWatcher) Close() error {
	switch {
	case cw.active:
		return errors.ErrWatcherActive
	case cw.state >= StateClosing:
		return nil
	}
	cw.state = StateClosed
	return cw.sock.Close()
}

// IOWatcher watches one accepted connection.
type IOWatcher struct {
	watcher

	listener *ConnectionWatcher
	proto    Protocol
	trans    *transport
}

// Protocol returns the Protocol instance serving the connection.
func (c *IOWatcher) Protocol() Protocol {
	return c.proto
}

// Transport returns the write side of the connection.
func (c *IOWatcher) Transport() Transport {
	return c.trans
}

// Listener returns the watcher that accepted the connection.
func (c *IOWatcher) Listener() *ConnectionWatcher {
	return c.listener
}

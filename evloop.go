// Copyright (c) 2019 Andy Pan
// Copyright (c) 2018 Joshua J Baker
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

package evloop

import (
	"net"
	"strings"
)

// Event is a single kind of interest a watcher can register with a backend.
type Event uint8

const (
	// EventNone is the empty interest, a watcher with it is not registered.
	EventNone Event = 0
	// EventRead fires when a connection has inbound bytes or hit EOF.
	EventRead Event = 1 << (iota - 1)
	// EventWrite fires when a connection can take more outbound bytes.
	EventWrite
	// EventAccept fires when a listening socket has pending connections.
	EventAccept
	// EventError fires when the socket is in an error state.
	EventError
)

// EventMask is a set of Event.
type EventMask = Event

// Has reports whether every bit of e is set in m.
func (m Event) Has(e Event) bool {
	return e != EventNone && m&e == e
}

// With returns m plus e.
func (m Event) With(e Event) Event {
	return m | e
}

// Without returns m minus e.
func (m Event) Without(e Event) Event {
	return m &^ e
}

func (m Event) String() string {
	if m == EventNone {
		return "none"
	}
	var parts []string
	for _, e := range [...]struct {
		ev   Event
		name string
	}{{EventRead, "read"}, {EventWrite, "write"}, {EventAccept, "accept"}, {EventError, "error"}} {
		if m&e.ev != 0 {
			parts = append(parts, e.name)
		}
	}
	return strings.Join(parts, "|")
}

// State is the lifecycle state of a watcher.
type State int32

const (
	// StateInactive is a watcher that is not registered with any backend.
	StateInactive State = iota
	// StateListening is a started listening watcher.
	StateListening
	// StateConnected is a live connection watcher.
	StateConnected
	// StateClosing is a watcher that has been torn down and waits for its deferred notification.
	StateClosing
	// StateClosed is a watcher whose resources are gone and whose notification has fired.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateListening:
		return "listening"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Family tells how a backend reports I/O.
type Family int

const (
	// Readiness backends (epoll, kqueue) report that a socket can be operated on without blocking.
	Readiness Family = iota
	// Completion backends (iocp) report that a previously submitted operation has finished.
	Completion
)

func (f Family) String() string {
	if f == Completion {
		return "completion"
	}
	return "readiness"
}

// Protocol is the set of callbacks the loop invokes for one connection.
// Every callback runs on the loop goroutine and must not block.
type Protocol interface {
	// Connected fires once the connection has been accepted and registered.
	Connected(t Transport)

	// Received fires with the bytes read from the connection, the slice is
	// only valid until the callback returns.
	Received(data []byte)

	// Disconnected fires exactly once, on the drain pass after the connection
	// was torn down. err is nil after a graceful close.
	Disconnected(err error)
}

// ProtocolFactory creates the Protocol of a freshly accepted connection.
type ProtocolFactory func() Protocol

// BuiltinProtocol is a Protocol whose callbacks do nothing. Embed it to
// implement only the callbacks you need.
type BuiltinProtocol struct{}

// Connected fires once the connection has been accepted and registered.
func (*BuiltinProtocol) Connected(Transport) {}

// Received fires with the bytes read from the connection.
func (*BuiltinProtocol) Received([]byte) {}

// Disconnected fires once the connection is gone.
func (*BuiltinProtocol) Disconnected(error) {}

// Transport is the write side of a connection handed to its Protocol.
// Its methods must be called on the loop goroutine, use Loop.Trigger from
// other goroutines.
type Transport interface {
	// Write sends p, whatever cannot be written right away is buffered and
	// flushed once the socket becomes writable again.
	Write(p []byte) (n int, err error)

	// Writev is like Write for a list of buffers.
	Writev(bs [][]byte) (n int, err error)

	// Buffered returns the number of bytes waiting to be flushed.
	Buffered() int

	// Close flushes what it can without blocking and closes the connection,
	// Disconnected fires with a nil error on the next drain pass.
	Close() error

	// LocalAddr is the local socket address.
	LocalAddr() net.Addr

	// RemoteAddr is the peer address.
	RemoteAddr() net.Addr

	// Context returns the user-defined context.
	Context() interface{}

	// SetContext sets a user-defined context.
	SetContext(ctx interface{})
}

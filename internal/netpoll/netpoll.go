// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2017 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package netpoll wraps the operating system readiness and completion
// notification facilities used by the event loop backends.
package netpoll

// IOEvents is a set of readiness conditions on a file descriptor.
type IOEvents uint8

const (
	// Readable means the descriptor can be read or accepted from without blocking.
	Readable IOEvents = 1 << iota
	// Writable means the descriptor can be written to without blocking.
	Writable
	// Error means the descriptor is in an error or hang-up state.
	Error
)

// Event is a single readiness notification.
type Event struct {
	Fd     int
	Events IOEvents
}

// InitPollEventsCap is the default capacity of the event list handed to Wait.
const InitPollEventsCap = 128

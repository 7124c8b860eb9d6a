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

package evloop

import (
	"time"

	"github.com/panjf2000/evloop/pkg/errors"
)

// Backend is the platform specific poller a Loop drives.
//
// Readiness backends re-arm the interest of a watcher explicitly on every
// mask change. Completion backends submit operations when interest is added,
// resubmit them as they complete while the interest remains and cancel them
// when it is removed.
type Backend interface {
	// Reify moves the interest of w from old to new. It is a no-op when both
	// masks are equal and deregisters w when new is EventNone.
	Reify(w Watcher, old, new EventMask) error

	// Poll waits for at most blockTime and handles up to maxEvents
	// notifications. Accepted connections, received bytes and flushes are
	// handled synchronously while failures are routed to Loop.Kill.
	// It returns the number of notifications handled.
	Poll(maxEvents int, blockTime time.Duration) (int, error)

	// Wake unblocks a Poll in progress, it is safe for concurrent use.
	Wake() error

	// Family tells how the backend reports I/O.
	Family() Family

	// Name is the name the backend is registered under.
	Name() string

	// Close releases the OS resources of the backend.
	Close() error
}

type backendFactory func(l *Loop) (Backend, error)

type backendEntry struct {
	name    string
	factory backendFactory
}

// backends holds the backends compiled in for the platform, in order of preference.
var backends []backendEntry

func registerBackend(name string, factory backendFactory) {
	backends = append(backends, backendEntry{name, factory})
}

// Backends returns the names of the backends available on this platform, the
// first one is the default.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for _, b := range backends {
		names = append(names, b.name)
	}
	return names
}

func lookupBackend(name string) (backendFactory, error) {
	if len(backends) == 0 {
		return nil, errors.ErrNoBackend
	}
	if name == "" {
		return backends[0].factory, nil
	}
	for _, b := range backends {
		if b.name == name {
			return b.factory, nil
		}
	}
	return nil, errors.ErrUnknownBackend
}

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

//go:build !darwin && !dragonfly && !freebsd && !linux && !netbsd && !openbsd && !windows

package socket

import (
	"net"

	"github.com/panjf2000/evloop/pkg/errors"
)

// Socket is unavailable on this platform.
type Socket struct{}

// Listen always fails with ErrUnsupportedOp.
func Listen(string, string, Options) (*Socket, error) {
	return nil, errors.ErrUnsupportedOp
}

// Accept always fails with ErrUnsupportedOp.
func (*Socket) Accept() (*Socket, error) { return nil, errors.ErrUnsupportedOp }

// Read always fails with ErrUnsupportedOp.
func (*Socket) Read([]byte) (int, error) { return 0, errors.ErrUnsupportedOp }

// Write always fails with ErrUnsupportedOp.
func (*Socket) Write([]byte) (int, error) { return 0, errors.ErrUnsupportedOp }

// Writev always fails with ErrUnsupportedOp.
func (*Socket) Writev([][]byte) (int, error) { return 0, errors.ErrUnsupportedOp }

// SockError always returns nil.
func (*Socket) SockError() error { return nil }

// Shutdown does nothing.
func (*Socket) Shutdown() error { return nil }

// Close does nothing.
func (*Socket) Close() error { return nil }

// Fd returns -1.
func (*Socket) Fd() int { return -1 }

// LocalAddr returns nil.
func (*Socket) LocalAddr() net.Addr { return nil }

// RemoteAddr returns nil.
func (*Socket) RemoteAddr() net.Addr { return nil }

// IsShutdown returns true.
func (*Socket) IsShutdown() bool { return true }

// Closed returns true.
func (*Socket) Closed() bool { return true }

// IsWouldBlock returns false.
func IsWouldBlock(error) bool { return false }

// IsTransientAccept returns false.
func IsTransientAccept(error) bool { return false }

// IsInterrupted returns false.
func IsInterrupted(error) bool { return false }

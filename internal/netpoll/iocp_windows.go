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

package netpoll

import (
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sys/windows"
)

const (
	wakeKey     = ^uintptr(0)
	waitTimeout = windows.Errno(258)
)

// Completion is a finished overlapped operation harvested from a Port.
type Completion struct {
	Key        uintptr
	Overlapped *windows.Overlapped
	Bytes      uint32
	Err        error
}

// Port is an I/O completion port.
type Port struct {
	h          windows.Handle
	wakeupCall int32
}

// OpenPort creates a completion port serviced by a single thread.
func OpenPort() (*Port, error) {
	h, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 1)
	if err != nil {
		return nil, os.NewSyscallError("CreateIoCompletionPort", err)
	}
	return &Port{h: h}, nil
}

// Associate binds the handle h to the port, completions on h carry key.
func (p *Port) Associate(h windows.Handle, key uintptr) error {
	_, err := windows.CreateIoCompletionPort(h, p.h, key, 0)
	return os.NewSyscallError("CreateIoCompletionPort", err)
}

// Wake interrupts a Wait in progress, or makes the next one return immediately.
func (p *Port) Wake() error {
	if !atomic.CompareAndSwapInt32(&p.wakeupCall, 0, 1) {
		return nil
	}
	return os.NewSyscallError("PostQueuedCompletionStatus", windows.PostQueuedCompletionStatus(p.h, 0, wakeKey, nil))
}

// Wait blocks for at most timeout, a negative timeout blocks indefinitely,
// and harvests up to len(out) completions. Wake notifications are consumed
// and never reported.
func (p *Port) Wait(out []Completion, timeout time.Duration) (int, error) {
	ms := uint32(windows.INFINITE)
	if timeout >= 0 {
		ms = uint32((timeout + time.Millisecond - 1) / time.Millisecond)
	}
	n := 0
	for n < len(out) {
		var (
			qty uint32
			key uintptr
			ov  *windows.Overlapped
		)
		err := windows.GetQueuedCompletionStatus(p.h, &qty, &key, &ov, ms)
		// Only the first dequeue may block.
		ms = 0
		if ov == nil {
			if key == wakeKey && err == nil {
				atomic.StoreInt32(&p.wakeupCall, 0)
				continue
			}
			if err == nil || err == waitTimeout {
				break
			}
			return n, os.NewSyscallError("GetQueuedCompletionStatus", err)
		}
		out[n] = Completion{Key: key, Overlapped: ov, Bytes: qty, Err: err}
		n++
	}
	return n, nil
}

// Close closes the port.
func (p *Port) Close() error {
	return os.NewSyscallError("CloseHandle", windows.CloseHandle(p.h))
}

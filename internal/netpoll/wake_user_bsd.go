// Copyright (c) 2019 Andy Pan
// Copyright (c) 2017 Joshua J Baker
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

//go:build darwin || dragonfly || freebsd

package netpoll

import (
	"os"

	"golang.org/x/sys/unix"
)

// waker triggers an EVFILT_USER event registered on the kqueue itself.
type waker struct{}

var note = []unix.Kevent_t{{
	Ident:  0,
	Filter: unix.EVFILT_USER,
	Fflags: unix.NOTE_TRIGGER,
}}

func (waker) open(kq int) error {
	_, err := unix.Kevent(kq, []unix.Kevent_t{{
		Ident:  0,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}, nil, nil)
	return os.NewSyscallError("kevent add|clear", err)
}

func (waker) wake(kq int) error {
	_, err := unix.Kevent(kq, note, nil, nil)
	if err == unix.EAGAIN {
		err = nil
	}
	return os.NewSyscallError("kevent trigger", err)
}

func (waker) owns(ev *unix.Kevent_t) bool {
	return ev.Filter == unix.EVFILT_USER
}

func (waker) drain() {}

func (waker) close() error { return nil }

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

//go:build netbsd || openbsd

package netpoll

import (
	"os"

	"golang.org/x/sys/unix"
)

// waker writes to a self-pipe whose read end is registered on the kqueue.
type waker struct {
	fds [2]int
	buf [64]byte
}

func (w *waker) open(kq int) error {
	if err := unix.Pipe2(w.fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return os.NewSyscallError("pipe2", err)
	}
	var ev unix.Kevent_t
	unix.SetKevent(&ev, w.fds[0], unix.EVFILT_READ, unix.EV_ADD)
	if _, err := unix.Kevent(kq, []unix.Kevent_t{ev}, nil, nil); err != nil {
		_ = w.close()
		return os.NewSyscallError("kevent add", err)
	}
	return nil
}

func (w *waker) wake(int) (err error) {
	for _, err = unix.Write(w.fds[1], w.buf[:1]); err == unix.EINTR; _, err = unix.Write(w.fds[1], w.buf[:1]) {
	}
	if err == unix.EAGAIN {
		err = nil
	}
	return os.NewSyscallError("write", err)
}

func (w *waker) owns(ev *unix.Kevent_t) bool {
	return int(ev.Ident) == w.fds[0]
}

func (w *waker) drain() {
	for {
		if n, err := unix.Read(w.fds[0], w.buf[:]); n <= 0 || err != nil {
			return
		}
	}
}

func (w *waker) close() error {
	_ = unix.Close(w.fds[1])
	return os.NewSyscallError("close", unix.Close(w.fds[0]))
}

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

//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package netpoll

import (
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Poller monitors file descriptors with kqueue.
type Poller struct {
	fd         int
	wakeupCall int32
	waker      waker
	events     []unix.Kevent_t
}

// OpenPoller instantiates a poller.
func OpenPoller() (poller *Poller, err error) {
	poller = new(Poller)
	if poller.fd, err = unix.Kqueue(); err != nil {
		poller = nil
		err = os.NewSyscallError("kqueue", err)
		return
	}
	unix.CloseOnExec(poller.fd)
	if err = poller.waker.open(poller.fd); err != nil {
		_ = unix.Close(poller.fd)
		poller = nil
		return
	}
	poller.events = make([]unix.Kevent_t, InitPollEventsCap)
	return
}

// Close closes the poller.
func (p *Poller) Close() error {
	if err := os.NewSyscallError("close", unix.Close(p.fd)); err != nil {
		return err
	}
	return p.waker.close()
}

// Register moves the interest of fd from old to new.
// An empty old adds fd to the poller, an empty new removes it.
func (p *Poller) Register(fd int, old, new IOEvents) error {
	var changes [2]unix.Kevent_t
	n := 0
	for _, f := range [...]struct {
		ev     IOEvents
		filter int
	}{{Readable, unix.EVFILT_READ}, {Writable, unix.EVFILT_WRITE}} {
		had, want := old&f.ev != 0, new&f.ev != 0
		switch {
		case want && !had:
			unix.SetKevent(&changes[n], fd, f.filter, unix.EV_ADD)
			n++
		case had && !want:
			unix.SetKevent(&changes[n], fd, f.filter, unix.EV_DELETE)
			n++
		}
	}
	if n == 0 {
		return nil
	}
	_, err := unix.Kevent(p.fd, changes[:n], nil, nil)
	return os.NewSyscallError("kevent", err)
}

// Wake interrupts a Wait in progress, or makes the next one return immediately.
func (p *Poller) Wake() (err error) {
	if atomic.CompareAndSwapInt32(&p.wakeupCall, 0, 1) {
		err = p.waker.wake(p.fd)
	}
	return
}

// Wait blocks for at most timeout, a negative timeout blocks indefinitely, and
// fills events with what became ready. Wake notifications are consumed and
// never reported.
func (p *Poller) Wait(events []Event, timeout time.Duration) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	if len(p.events) < len(events) {
		p.events = make([]unix.Kevent_t, len(events))
	}
	var tsp *unix.Timespec
	if timeout >= 0 {
		ts := unix.NsecToTimespec(int64(timeout))
		tsp = &ts
	}
	n, err := unix.Kevent(p.fd, nil, p.events[:len(events)], tsp)
	if n < 0 || err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, os.NewSyscallError("kevent wait", err)
	}

	j := 0
	for i := 0; i < n; i++ {
		ev := &p.events[i]
		if p.waker.owns(ev) {
			p.waker.drain()
			atomic.StoreInt32(&p.wakeupCall, 0)
			continue
		}
		var e IOEvents
		switch ev.Filter {
		case unix.EVFILT_READ:
			e = Readable
		case unix.EVFILT_WRITE:
			e = Writable
		}
		if ev.Flags&unix.EV_ERROR != 0 {
			e |= Error
		}
		events[j] = Event{Fd: int(ev.Ident), Events: e}
		j++
	}
	return j, nil
}

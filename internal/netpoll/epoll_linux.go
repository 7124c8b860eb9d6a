// Copyright (c) 2019 Andy Pan
// Copyright (c) 2017 Joshua J Baker
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

//go:build linux

package netpoll

import (
	"os"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Poller monitors file descriptors with epoll.
type Poller struct {
	fd         int
	wfd        int
	wfdBuf     []byte
	wakeupCall int32
	events     []unix.EpollEvent
}

// OpenPoller instantiates a poller.
func OpenPoller() (poller *Poller, err error) {
	poller = new(Poller)
	if poller.fd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC); err != nil {
		poller = nil
		err = os.NewSyscallError("epoll_create1", err)
		return
	}
	if poller.wfd, err = unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC); err != nil {
		_ = unix.Close(poller.fd)
		poller = nil
		err = os.NewSyscallError("eventfd", err)
		return
	}
	poller.wfdBuf = make([]byte, 8)
	if err = os.NewSyscallError("epoll_ctl add", unix.EpollCtl(poller.fd, unix.EPOLL_CTL_ADD, poller.wfd,
		&unix.EpollEvent{Fd: int32(poller.wfd), Events: unix.EPOLLIN})); err != nil {
		_ = poller.Close()
		poller = nil
		return
	}
	poller.events = make([]unix.EpollEvent, InitPollEventsCap)
	return
}

// Close closes the poller.
func (p *Poller) Close() error {
	if err := os.NewSyscallError("close", unix.Close(p.fd)); err != nil {
		return err
	}
	return os.NewSyscallError("close", unix.Close(p.wfd))
}

func epollEvents(ev IOEvents) uint32 {
	var e uint32
	if ev&Readable != 0 {
		e |= unix.EPOLLIN | unix.EPOLLPRI | unix.EPOLLRDHUP
	}
	if ev&Writable != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

// Register moves the interest of fd from old to new.
// An empty old adds fd to the poller, an empty new removes it.
func (p *Poller) Register(fd int, old, new IOEvents) error {
	old, new = old&(Readable|Writable), new&(Readable|Writable)
	switch {
	case old == new:
		return nil
	case old == 0:
		return os.NewSyscallError("epoll_ctl add",
			unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: epollEvents(new)}))
	case new == 0:
		return os.NewSyscallError("epoll_ctl del", unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil))
	default:
		return os.NewSyscallError("epoll_ctl mod",
			unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Fd: int32(fd), Events: epollEvents(new)}))
	}
}

// Make the endianness of bytes compatible with more linux OSs under different processor-architectures,
// according to http://man7.org/linux/man-pages/man2/eventfd.2.html.
var (
	u uint64 = 1
	b        = (*(*[8]byte)(unsafe.Pointer(&u)))[:]
)

// Wake interrupts a Wait in progress, or makes the next one return immediately.
func (p *Poller) Wake() (err error) {
	if atomic.CompareAndSwapInt32(&p.wakeupCall, 0, 1) {
		for _, err = unix.Write(p.wfd, b); err == unix.EINTR; _, err = unix.Write(p.wfd, b) {
		}
		if err == unix.EAGAIN {
			err = nil
		}
	}
	return os.NewSyscallError("write", err)
}

// Wait blocks for at most timeout, a negative timeout blocks indefinitely, and
// fills events with what became ready. Wake notifications are consumed and
// never reported.
func (p *Poller) Wait(events []Event, timeout time.Duration) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	if len(p.events) < len(events) {
		p.events = make([]unix.EpollEvent, len(events))
	}
	n, err := unix.EpollWait(p.fd, p.events[:len(events)], timeoutMillis(timeout))
	if n < 0 || err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, os.NewSyscallError("epoll_wait", err)
	}

	j := 0
	for i := 0; i < n; i++ {
		ev := &p.events[i]
		if fd := int(ev.Fd); fd == p.wfd {
			_, _ = unix.Read(p.wfd, p.wfdBuf)
			atomic.StoreInt32(&p.wakeupCall, 0)
			continue
		}
		var e IOEvents
		if ev.Events&(unix.EPOLLIN|unix.EPOLLPRI|unix.EPOLLRDHUP) != 0 {
			e |= Readable
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			e |= Writable
		}
		if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			e |= Error
		}
		events[j] = Event{Fd: int(ev.Fd), Events: e}
		j++
	}
	return j, nil
}

func timeoutMillis(timeout time.Duration) int {
	if timeout < 0 {
		return -1
	}
	// Round up so a sub-millisecond block does not become a busy poll.
	return int((timeout + time.Millisecond - 1) / time.Millisecond)
}

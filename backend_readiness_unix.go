// Copyright (c) 2019 The Gnet Authors. All rights reserved.
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

//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

package evloop

import (
	"io"
	"os"
	"time"

	"github.com/panjf2000/evloop/internal/netpoll"
	"github.com/panjf2000/evloop/internal/socket"
)

// readiness drives epoll or kqueue, whichever netpoll was built with.
type readiness struct {
	name     string
	loop     *Loop
	poller   *netpoll.Poller
	events   []netpoll.Event
	watchers map[int]Watcher
	buffer   []byte // read packet buffer whose capacity is set by user, default value is 64KB
}

func newReadiness(name string) backendFactory {
	return func(l *Loop) (Backend, error) {
		p, err := netpoll.OpenPoller()
		if err != nil {
			return nil, err
		}
		return &readiness{
			name:     name,
			loop:     l,
			poller:   p,
			events:   make([]netpoll.Event, l.opts.MaxEvents),
			watchers: make(map[int]Watcher),
			buffer:   make([]byte, l.opts.ReadBufferCap),
		}, nil
	}
}

func (*readiness) Family() Family { return Readiness }

func (b *readiness) Name() string { return b.name }

func (b *readiness) Wake() error { return b.poller.Wake() }

func (b *readiness) Close() error { return b.poller.Close() }

func interest(m EventMask) (ev netpoll.IOEvents) {
	if m&(EventRead|EventAccept) != 0 {
		ev |= netpoll.Readable
	}
	if m&EventWrite != 0 {
		ev |= netpoll.Writable
	}
	return
}

func (b *readiness) Reify(w Watcher, old, new EventMask) error {
	if old == new {
		return nil
	}
	fd := w.base().sock.Fd()
	if err := b.poller.Register(fd, interest(old), interest(new)); err != nil {
		return err
	}
	if new == EventNone {
		delete(b.watchers, fd)
	} else {
		b.watchers[fd] = w
	}
	return nil
}

func (b *readiness) Poll(maxEvents int, blockTime time.Duration) (int, error) {
	if len(b.events) < maxEvents {
		b.events = make([]netpoll.Event, maxEvents)
	}
	n, err := b.poller.Wait(b.events[:maxEvents], blockTime)
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		ev := b.events[i]
		// The watcher may have been killed by an earlier event of this batch.
		w, ok := b.watchers[ev.Fd]
		if !ok {
			continue
		}
		switch w := w.(type) {
		case *ConnectionWatcher:
			b.accept(w)
		case *IOWatcher:
			b.serve(w, ev.Events)
		}
	}
	return n, nil
}

func (b *readiness) accept(ln *ConnectionWatcher) {
	for ln.active {
		s, err := ln.sock.Accept()
		if err != nil {
			switch {
			case socket.IsWouldBlock(err) && !socket.IsInterrupted(err):
				return
			case socket.IsTransientAccept(err):
				continue
			}
			b.loop.Kill(ln, os.NewSyscallError("accept", err))
			return
		}
		b.loop.accepted(ln, s)
	}
}

func (b *readiness) serve(c *IOWatcher, ev netpoll.IOEvents) {
	// Drain the outbound buffer first, the read side may close the connection.
	if ev&netpoll.Writable != 0 && !c.trans.out.IsEmpty() {
		if c.trans.flush() != nil {
			return
		}
		b.loop.syncWriteInterest(c)
	}
	if !c.active {
		return
	}
	if ev&(netpoll.Readable|netpoll.Error) == 0 {
		return
	}

	n, err := c.sock.Read(b.buffer)
	switch {
	case err != nil:
		if socket.IsWouldBlock(err) {
			if ev&netpoll.Error != 0 {
				if err = c.sock.SockError(); err != nil {
					b.loop.Kill(c, err)
				}
			}
			return
		}
		b.loop.Kill(c, os.NewSyscallError("read", err))
	case n == 0:
		b.loop.Kill(c, io.EOF)
	default:
		b.loop.received(c, b.buffer[:n])
	}
}

// Copyright (c) 2019 Andy Pan
// Copyright (c) 2018 Joshua J Baker
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

package evloop

import (
	"net"
	"os"

	"github.com/panjf2000/evloop/internal/socket"
	"github.com/panjf2000/evloop/pkg/buffer/linkedlist"
	"github.com/panjf2000/evloop/pkg/errors"
)

type transport struct {
	c        *IOWatcher
	out      linkedlist.Buffer
	ctx      interface{}
	released bool
	// closing is set by a graceful stop waiting for the outbound buffer to drain.
	closing bool
}

func newTransport(c *IOWatcher) *transport {
	return &transport{c: c}
}

func (t *transport) Write(p []byte) (int, error) {
	return t.Writev([][]byte{p})
}

func (t *transport) Writev(bs [][]byte) (n int, err error) {
	if t.released || t.closing {
		return 0, errors.ErrWatcherClosed
	}
	var total int
	for _, b := range bs {
		total += len(b)
	}
	if total == 0 {
		return 0, nil
	}

	c := t.c
	l := c.loop
	// Append to the queue while older bytes are still pending, and always on
	// completion backends which only ever send from the outbound buffer.
	if !t.out.IsEmpty() || l.backend.Family() != Readiness {
		for _, b := range bs {
			t.out.PushBack(b)
		}
		l.syncWriteInterest(c)
		return total, nil
	}

	sent, err := c.sock.Writev(bs)
	if err != nil && !socket.IsWouldBlock(err) {
		err = os.NewSyscallError("write", err)
		l.Kill(c, err)
		return sent, err
	}
	if sent < total {
		skip := sent
		for _, b := range bs {
			if skip >= len(b) {
				skip -= len(b)
				continue
			}
			t.out.PushBack(b[skip:])
			skip = 0
		}
		l.syncWriteInterest(c)
	}
	return total, nil
}

// flush writes as much of the outbound buffer as the socket takes without
// blocking, it kills the connection on failure.
func (t *transport) flush() error {
	c := t.c
	for !t.out.IsEmpty() {
		n, err := c.sock.Writev(t.out.Peek(-1))
		t.out.Discard(n)
		if err != nil {
			if socket.IsWouldBlock(err) {
				break
			}
			err = os.NewSyscallError("write", err)
			c.loop.Kill(c, err)
			return err
		}
		if n == 0 {
			break
		}
	}
	return nil
}

func (t *transport) release() {
	t.released = true
	t.out.Reset()
}

func (t *transport) Buffered() int {
	return t.out.Buffered()
}

func (t *transport) Close() error {
	if t.released || t.closing {
		return nil
	}
	return t.c.loop.Stop(t.c)
}

func (t *transport) LocalAddr() net.Addr {
	return t.c.sock.LocalAddr()
}

func (t *transport) RemoteAddr() net.Addr {
	return t.c.sock.RemoteAddr()
}

func (t *transport) Context() interface{} {
	return t.ctx
}

func (t *transport) SetContext(ctx interface{}) {
	t.ctx = ctx
}

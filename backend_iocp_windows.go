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
	"errors"
	"io"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/panjf2000/evloop/internal/netpoll"
	"github.com/panjf2000/evloop/internal/socket"
	"github.com/panjf2000/evloop/pkg/pool/bytebuffer"
	bsPool "github.com/panjf2000/evloop/pkg/pool/byteslice"
)

const (
	errInvalidParameter = windows.Errno(87)
	errOperationAborted = windows.Errno(995)
	errIOPending        = windows.Errno(997)
	errNotFound         = windows.Errno(1168)

	acceptAddrLen = uint32(unsafe.Sizeof(windows.RawSockaddrAny{})) + 16
)

func init() {
	registerBackend("iocp", newIOCP)
}

type opKind uint8

const (
	opAccept opKind = iota
	opRecv
	opSend
)

var opEvents = [...]Event{opAccept: EventAccept, opRecv: EventRead, opSend: EventWrite}

// operation is one overlapped request, ov must stay the first field so that
// the *windows.Overlapped handed back by the port can be cast back to it.
type operation struct {
	ov      windows.Overlapped
	kind    opKind
	st      *iocpState
	pending bool
	buf     windows.WSABuf
	conn    *socket.Socket
	addrs   [2 * acceptAddrLen]byte
	staged  *bytebuffer.ByteBuffer
}

// iocpState is kept alive until every operation submitted for its watcher has
// been harvested, the kernel writes into it until then.
type iocpState struct {
	w    Watcher
	h    windows.Handle
	mask EventMask
	ops  [3]operation
	rbuf []byte
}

type iocp struct {
	loop   *Loop
	port   *netpoll.Port
	states map[Watcher]*iocpState
	out    []netpoll.Completion
}

func newIOCP(l *Loop) (Backend, error) {
	p, err := netpoll.OpenPort()
	if err != nil {
		return nil, err
	}
	return &iocp{
		loop:   l,
		port:   p,
		states: make(map[Watcher]*iocpState),
		out:    make([]netpoll.Completion, l.opts.MaxEvents),
	}, nil
}

func (*iocp) Family() Family { return Completion }

func (*iocp) Name() string { return "iocp" }

func (b *iocp) Wake() error { return b.port.Wake() }

func (b *iocp) Close() error {
	b.states = make(map[Watcher]*iocpState)
	return b.port.Close()
}

func (b *iocp) Reify(w Watcher, old, new EventMask) error {
	if old == new {
		return nil
	}
	st := b.states[w]
	if st == nil {
		if new == EventNone {
			return nil
		}
		h := w.base().sock.Handle()
		// A restarted listener is associated already.
		if err := b.port.Associate(h, 0); err != nil && !errors.Is(err, errInvalidParameter) {
			return err
		}
		st = &iocpState{w: w, h: h}
		for i := range st.ops {
			st.ops[i].kind, st.ops[i].st = opKind(i), st
		}
		b.states[w] = st
	}
	st.mask = new

	for i := range st.ops {
		op := &st.ops[i]
		ev := opEvents[op.kind]
		if old.Has(ev) && !new.Has(ev) {
			b.cancel(op)
		}
	}
	for i := range st.ops {
		op := &st.ops[i]
		if ev := opEvents[op.kind]; !new.Has(ev) || old.Has(ev) {
			continue
		}
		if err := b.submit(op); err != nil {
			for j := 0; j < i; j++ {
				if ev := opEvents[st.ops[j].kind]; new.Has(ev) && !old.Has(ev) {
					b.cancel(&st.ops[j])
				}
			}
			st.mask = old
			b.release(st)
			return err
		}
	}
	b.release(st)
	return nil
}

func (b *iocp) cancel(op *operation) {
	if !op.pending {
		return
	}
	if err := windows.CancelIoEx(op.st.h, &op.ov); err != nil && err != errNotFound {
		b.loop.logger.Debugf("failed to cancel overlapped operation on handle %d: %v", op.st.h, err)
	}
}

func (b *iocp) submit(op *operation) (err error) {
	if op.pending {
		return nil
	}
	st := op.st
	op.ov = windows.Overlapped{}

	var n uint32
	switch op.kind {
	case opAccept:
		ln := st.w.(*ConnectionWatcher)
		if op.conn, err = ln.sock.NewAcceptSocket(); err != nil {
			return
		}
		err = windows.AcceptEx(st.h, op.conn.Handle(), &op.addrs[0], 0, acceptAddrLen, acceptAddrLen, &n, &op.ov)
		if err != nil && err != errIOPending {
			_ = op.conn.Close()
			op.conn = nil
			return os.NewSyscallError("AcceptEx", err)
		}
	case opRecv:
		if st.rbuf == nil {
			st.rbuf = bsPool.Get(b.loop.opts.ReadBufferCap)
		}
		var flags uint32
		op.buf = windows.WSABuf{Len: uint32(len(st.rbuf)), Buf: &st.rbuf[0]}
		err = windows.WSARecv(st.h, &op.buf, 1, &n, &flags, &op.ov, nil)
		if err != nil && err != errIOPending {
			return os.NewSyscallError("WSARecv", err)
		}
	case opSend:
		c := st.w.(*IOWatcher)
		if c.trans.out.IsEmpty() {
			return nil
		}
		op.staged = bytebuffer.Get()
		for _, p := range c.trans.out.Peek(-1) {
			_, _ = op.staged.Write(p)
		}
		op.buf = windows.WSABuf{Len: uint32(op.staged.Len()), Buf: &op.staged.B[0]}
		err = windows.WSASend(st.h, &op.buf, 1, &n, 0, &op.ov, nil)
		if err != nil && err != errIOPending {
			bytebuffer.Put(op.staged)
			op.staged = nil
			return os.NewSyscallError("WSASend", err)
		}
	}
	// A synchronous success is queued on the port as well.
	op.pending = true
	return nil
}

// release forgets st once it has no interest and no operation in flight.
func (b *iocp) release(st *iocpState) {
	if st.mask != EventNone {
		return
	}
	for i := range st.ops {
		if st.ops[i].pending {
			return
		}
	}
	if b.states[st.w] == st {
		delete(b.states, st.w)
	}
	if st.rbuf != nil {
		bsPool.Put(st.rbuf)
		st.rbuf = nil
	}
}

func (b *iocp) Poll(maxEvents int, blockTime time.Duration) (int, error) {
	if len(b.out) < maxEvents {
		b.out = make([]netpoll.Completion, maxEvents)
	}
	n, err := b.port.Wait(b.out[:maxEvents], blockTime)
	if err != nil {
		return n, err
	}
	for i := 0; i < n; i++ {
		cp := b.out[i]
		op := (*operation)(unsafe.Pointer(cp.Overlapped))
		op.pending = false
		b.complete(op, int(cp.Bytes), cp.Err)
		b.release(op.st)
		b.out[i] = netpoll.Completion{}
	}
	return n, nil
}

func (b *iocp) complete(op *operation, qty int, err error) {
	st := op.st
	switch op.kind {
	case opAccept:
		b.completeAccept(op, err)
	case opRecv:
		c := st.w.(*IOWatcher)
		if !st.mask.Has(EventRead) {
			return
		}
		switch {
		case err == errOperationAborted:
		case err != nil:
			b.loop.Kill(c, os.NewSyscallError("WSARecv", err))
			return
		case qty == 0:
			b.loop.Kill(c, io.EOF)
			return
		default:
			b.loop.received(c, st.rbuf[:qty])
		}
		if st.mask.Has(EventRead) {
			if err = b.submit(op); err != nil {
				b.loop.Kill(c, err)
			}
		}
	case opSend:
		c := st.w.(*IOWatcher)
		bytebuffer.Put(op.staged)
		op.staged = nil
		if !c.active {
			return
		}
		switch {
		case err == errOperationAborted:
		case err != nil:
			b.loop.Kill(c, os.NewSyscallError("WSASend", err))
			return
		default:
			c.trans.out.Discard(qty)
		}
		if !st.mask.Has(EventWrite) {
			return
		}
		if c.trans.out.IsEmpty() {
			b.loop.syncWriteInterest(c)
		} else if err = b.submit(op); err != nil {
			b.loop.Kill(c, err)
		}
	}
}

func (b *iocp) completeAccept(op *operation, err error) {
	st := op.st
	ln := st.w.(*ConnectionWatcher)
	conn := op.conn
	op.conn = nil

	listening := st.mask.Has(EventAccept)
	switch {
	case !listening || err == errOperationAborted:
		_ = conn.Close()
	case err != nil:
		_ = conn.Close()
		if !socket.IsTransientAccept(err) {
			b.loop.Kill(ln, os.NewSyscallError("AcceptEx", err))
			return
		}
	default:
		if err = conn.UpdateAcceptContext(ln.sock); err != nil {
			b.loop.logger.Warnf("dropping connection accepted on %v: %v", ln.addr, err)
			_ = conn.Close()
		} else {
			b.loop.accepted(ln, conn)
		}
	}
	if st.mask.Has(EventAccept) {
		if err = b.submit(op); err != nil {
			b.loop.Kill(ln, err)
		}
	}
}

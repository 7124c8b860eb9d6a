// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2017 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"

	"github.com/panjf2000/evloop"
	errorx "github.com/panjf2000/evloop/pkg/errors"
	"github.com/panjf2000/evloop/pkg/logging"
	"github.com/panjf2000/evloop/pkg/pool/bytebuffer"
	"github.com/panjf2000/evloop/pkg/pool/goroutine"
)

// maxLineSize bounds a line that is still waiting for its terminator.
const maxLineSize = 64 << 10

var errLineTooLong = errors.New("evecho: line too long")

type echoServer struct {
	loop  *evloop.Loop
	pool  *goroutine.Pool
	upper bool
}

func (s *echoServer) newConn() evloop.Protocol {
	return &echoConn{server: s}
}

type echoConn struct {
	server *echoServer
	t      evloop.Transport
	line   *bytebuffer.ByteBuffer

	// Lines waiting for the batch in flight on the worker pool.
	backlog [][]byte
	busy    bool
	closed  bool
}

func (c *echoConn) Connected(t evloop.Transport) {
	c.t = t
	logging.Debugf("connection from %v opened", t.RemoteAddr())
}

func (c *echoConn) Received(p []byte) {
	if !c.server.upper {
		_, _ = c.t.Write(p)
		return
	}
	if c.line == nil {
		c.line = bytebuffer.Get()
	}
	lines, err := splitLines(c.line, p)
	if err != nil {
		logging.Warnf("closing connection from %v: %v", c.t.RemoteAddr(), err)
		_ = c.t.Close()
		return
	}
	c.backlog = append(c.backlog, lines...)
	c.dispatch()
}

// dispatch hands the backlog to the worker pool as one batch and writes the
// result back from the loop goroutine. At most one batch per connection is in
// flight, replies leave in the order the lines came in.
func (c *echoConn) dispatch() {
	if c.busy || c.closed || len(c.backlog) == 0 {
		return
	}
	batch := c.backlog
	c.backlog = nil
	c.busy = true

	t, loop := c.t, c.server.loop
	err := c.server.pool.Submit(func() {
		out := upperLines(batch)
		_ = loop.Trigger(func() error {
			c.busy = false
			if _, err := t.Writev(out); err != nil {
				if errors.Is(err, errorx.ErrWatcherClosed) {
					return nil
				}
				return err
			}
			c.dispatch()
			return nil
		})
	})
	if err != nil {
		// The pool is saturated, answer inline.
		c.busy = false
		_, _ = t.Writev(upperLines(batch))
	}
}

func upperLines(lines [][]byte) [][]byte {
	out := make([][]byte, len(lines))
	for i, line := range lines {
		out[i] = bytes.ToUpper(line)
	}
	return out
}

func (c *echoConn) Disconnected(err error) {
	c.closed = true
	c.backlog = nil
	bytebuffer.Put(c.line)
	c.line = nil
	logging.Debugf("connection from %v closed: %v", c.t.RemoteAddr(), err)
}

// splitLines appends p to pending and returns a copy of every complete line,
// terminator included. What is left after the last terminator stays in pending.
func splitLines(pending *bytebuffer.ByteBuffer, p []byte) (lines [][]byte, err error) {
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			if pending.Len()+len(p) > maxLineSize {
				pending.Reset()
				return lines, errLineTooLong
			}
			_, _ = pending.Write(p)
			return
		}
		line := make([]byte, 0, pending.Len()+i+1)
		line = append(line, pending.B...)
		line = append(line, p[:i+1]...)
		lines = append(lines, line)
		pending.Reset()
		p = p[i+1:]
	}
	return
}

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

//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

package evloop

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panjf2000/evloop/internal/socket"
	errorx "github.com/panjf2000/evloop/pkg/errors"
)

type recorder struct {
	t              Transport
	received       [][]byte
	errs           []error
	onConnected    func(Transport)
	onReceived     func([]byte)
	onDisconnected func(error)
}

func (r *recorder) Connected(t Transport) {
	r.t = t
	if r.onConnected != nil {
		r.onConnected(t)
	}
}

func (r *recorder) Received(p []byte) {
	r.received = append(r.received, append([]byte(nil), p...))
	if r.onReceived != nil {
		r.onReceived(p)
	}
}

func (r *recorder) Disconnected(err error) {
	r.errs = append(r.errs, err)
	if r.onDisconnected != nil {
		r.onDisconnected(err)
	}
}

// newTestConn hands one end of a socket pair to l as if it had been accepted
// and returns the watcher along with the other end.
func newTestConn(t *testing.T, l *Loop, rec *recorder) (*IOWatcher, *socket.Socket) {
	ln := newListener(t)
	ln.SetProtocolFactory(func() Protocol { return rec })
	require.NoError(t, l.own(ln))

	local, peer, err := socket.Pair()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = local.Close()
		_ = peer.Close()
	})
	l.accepted(ln, local)
	require.NotNil(t, rec.t, "Connected was not called")
	return rec.t.(*transport).c, peer
}

func readAvailable(t *testing.T, s *socket.Socket, into *bytes.Buffer) (eof bool) {
	buf := make([]byte, 64<<10)
	for {
		n, err := s.Read(buf)
		if err != nil {
			require.True(t, socket.IsWouldBlock(err), "unexpected read error: %v", err)
			return false
		}
		if n == 0 {
			return true
		}
		into.Write(buf[:n])
	}
}

func TestAcceptedConnectionIsRegistered(t *testing.T) {
	l, fb := newFakeLoop(t)
	rec := new(recorder)
	c, _ := newTestConn(t, l, rec)

	assert.Equal(t, EventRead, fb.masks[c])
	assert.True(t, c.Active())
	assert.Equal(t, StateConnected, c.State())
	assert.Same(t, rec, c.Protocol())
	assert.NotNil(t, c.Listener())
	assert.NotNil(t, c.Transport().LocalAddr())
	assert.NotNil(t, c.Transport().RemoteAddr())
	assert.Contains(t, l.watchers, Watcher(c))

	c.Transport().SetContext("ctx")
	assert.Equal(t, "ctx", c.Transport().Context())

	// Starting it again registers nothing new.
	calls := len(fb.calls)
	require.NoError(t, l.Start(c))
	assert.Len(t, fb.calls, calls)
}

func TestKillConnection(t *testing.T) {
	l, fb := newFakeLoop(t)
	var peerEOF bool
	rec := new(recorder)
	c, peer := newTestConn(t, l, rec)
	rec.onDisconnected = func(error) {
		var sink bytes.Buffer
		peerEOF = readAvailable(t, peer, &sink)
	}

	boom := errors.New("connection reset by peer")
	l.Kill(c, boom)
	l.Kill(c, errors.New("second kill"))

	assert.Empty(t, rec.errs)
	assert.Equal(t, StateClosing, c.State())
	assert.Equal(t, -1, c.Fd())
	assert.NotContains(t, fb.masks, Watcher(c))
	_, err := c.Transport().Write([]byte("late"))
	assert.ErrorIs(t, err, errorx.ErrWatcherClosed)

	require.NoError(t, l.RunOnce())
	require.Equal(t, []error{boom}, rec.errs)
	assert.True(t, peerEOF, "the socket is shut down before Disconnected fires")
	assert.Equal(t, StateClosed, c.State())
	assert.NotContains(t, l.watchers, Watcher(c))

	require.NoError(t, l.RunOnce())
	assert.Len(t, rec.errs, 1)
}

func TestWriteInterestFollowsBacklog(t *testing.T) {
	l, fb := newFakeLoop(t)
	rec := new(recorder)
	c, peer := newTestConn(t, l, rec)

	payload := bytes.Repeat([]byte("0123456789abcdef"), 1<<19) // 8MB
	n, err := rec.t.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Greater(t, rec.t.Buffered(), 0, "the socket pair cannot take 8MB at once")
	assert.Equal(t, EventRead|EventWrite, fb.masks[c])

	// Writes made while a backlog exists are queued behind it.
	tail := []byte("tail")
	_, err = rec.t.Writev([][]byte{tail})
	require.NoError(t, err)

	var got bytes.Buffer
	deadline := time.Now().Add(10 * time.Second)
	for rec.t.Buffered() > 0 {
		require.True(t, time.Now().Before(deadline), "flush did not complete")
		readAvailable(t, peer, &got)
		require.NoError(t, c.trans.flush())
		l.syncWriteInterest(c)
		if rec.t.Buffered() > 0 {
			assert.Equal(t, EventRead|EventWrite, fb.masks[c])
		}
	}
	assert.Equal(t, EventRead, fb.masks[c])
	for got.Len() < len(payload)+len(tail) {
		require.True(t, time.Now().Before(deadline), "peer did not receive everything")
		readAvailable(t, peer, &got)
	}
	assert.Equal(t, append(payload, tail...), got.Bytes())
}

func TestStopConnectionIsGraceful(t *testing.T) {
	l, _ := newFakeLoop(t)
	rec := new(recorder)
	_, peer := newTestConn(t, l, rec)

	_, err := rec.t.Write([]byte("bye"))
	require.NoError(t, err)
	require.NoError(t, rec.t.Close())
	require.NoError(t, rec.t.Close())
	assert.Empty(t, rec.errs)

	require.NoError(t, l.RunOnce())
	require.Equal(t, []error{nil}, rec.errs)

	var got bytes.Buffer
	assert.True(t, readAvailable(t, peer, &got))
	assert.Equal(t, "bye", got.String())
}

func TestCompletionWriteIsBuffered(t *testing.T) {
	l, fb := newFakeLoop(t)
	fb.family = Completion
	rec := new(recorder)
	c, peer := newTestConn(t, l, rec)

	n, err := rec.t.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, rec.t.Buffered())
	assert.Equal(t, EventRead|EventWrite, fb.masks[c])

	var got bytes.Buffer
	assert.False(t, readAvailable(t, peer, &got))
	assert.Zero(t, got.Len(), "nothing is written until the backend sends it")

	// The backend reports the whole buffer as sent.
	c.trans.out.Discard(5)
	l.syncWriteInterest(c)
	assert.Equal(t, EventRead, fb.masks[c])
	assert.Zero(t, rec.t.Buffered())
}

func TestCompletionStopWaitsForSend(t *testing.T) {
	l, fb := newFakeLoop(t)
	fb.family = Completion
	rec := new(recorder)
	c, _ := newTestConn(t, l, rec)

	_, err := rec.t.Write([]byte("bye"))
	require.NoError(t, err)
	require.NoError(t, rec.t.Close())
	assert.Equal(t, EventWrite, fb.masks[c], "reads stop while the send stays in flight")
	assert.Equal(t, StateConnected, c.State())
	assert.False(t, c.sock.Closed())

	_, err = rec.t.Write([]byte("more"))
	assert.ErrorIs(t, err, errorx.ErrWatcherClosed)
	require.NoError(t, rec.t.Close())
	require.NoError(t, l.RunOnce())
	assert.Empty(t, rec.errs)

	c.trans.out.Discard(3)
	l.syncWriteInterest(c)
	assert.NotContains(t, fb.masks, c)
	assert.Equal(t, StateClosing, c.State())
	assert.True(t, c.sock.Closed())

	require.NoError(t, l.RunOnce())
	assert.Equal(t, []error{nil}, rec.errs)
	assert.Equal(t, StateClosed, c.State())
}

func TestCompletionStopWithoutBacklog(t *testing.T) {
	l, fb := newFakeLoop(t)
	fb.family = Completion
	rec := new(recorder)
	c, _ := newTestConn(t, l, rec)

	require.NoError(t, l.Stop(c))
	assert.NotContains(t, fb.masks, c)
	assert.True(t, c.sock.Closed())
	require.NoError(t, l.RunOnce())
	assert.Equal(t, []error{nil}, rec.errs)
}

func TestCompletionSendFailureWhileStopping(t *testing.T) {
	l, fb := newFakeLoop(t)
	fb.family = Completion
	rec := new(recorder)
	c, _ := newTestConn(t, l, rec)

	_, err := rec.t.Write([]byte("bye"))
	require.NoError(t, err)
	require.NoError(t, l.Stop(c))

	boom := errors.New("send failed")
	l.Kill(c, boom)
	assert.NotContains(t, fb.masks, c)
	require.NoError(t, l.RunOnce())
	require.Len(t, rec.errs, 1)
	assert.ErrorIs(t, rec.errs[0], boom)
}

func TestCallbackPanicKillsConnection(t *testing.T) {
	l, _ := newFakeLoop(t)
	rec := &recorder{onReceived: func([]byte) { panic("bad frame") }}
	c, _ := newTestConn(t, l, rec)

	l.received(c, []byte("x"))
	assert.Equal(t, StateClosing, c.State())
	require.NoError(t, l.RunOnce())
	require.Len(t, rec.errs, 1)
	assert.ErrorIs(t, rec.errs[0], errorx.ErrCallbackPanic)
	assert.Contains(t, rec.errs[0].Error(), "bad frame")

	rec2 := &recorder{onConnected: func(Transport) { panic("refused") }}
	c2, _ := newTestConn(t, l, rec2)
	assert.Equal(t, StateClosing, c2.State())
	require.NoError(t, l.RunOnce())
	require.Len(t, rec2.errs, 1)
	assert.ErrorIs(t, rec2.errs[0], errorx.ErrCallbackPanic)
}

func TestDisconnectedPanicIsContained(t *testing.T) {
	l, _ := newFakeLoop(t)
	bad := &recorder{onDisconnected: func(error) { panic("oops") }}
	good := new(recorder)
	c1, _ := newTestConn(t, l, bad)
	c2, _ := newTestConn(t, l, good)

	l.Kill(c1, errorx.ErrWatcherClosed)
	l.Kill(c2, errorx.ErrWatcherClosed)
	require.NoError(t, l.RunOnce())
	assert.Len(t, bad.errs, 1)
	assert.Equal(t, []error{errorx.ErrWatcherClosed}, good.errs)
	assert.Equal(t, StateClosed, c1.State())
}

func TestProtocolFactoryClearedAfterStart(t *testing.T) {
	l, fb := newFakeLoop(t)
	ln := newListener(t)
	require.NoError(t, l.Start(ln))
	ln.SetProtocolFactory(nil)

	local, peer, err := socket.Pair()
	require.NoError(t, err)
	defer peer.Close()
	l.accepted(ln, local)

	assert.True(t, local.Closed())
	assert.Len(t, fb.masks, 1)
	var sink bytes.Buffer
	assert.True(t, readAvailable(t, peer, &sink))
}

func TestCloseLoopKillsConnections(t *testing.T) {
	l, _ := newFakeLoop(t)
	rec := new(recorder)
	c, _ := newTestConn(t, l, rec)

	require.NoError(t, l.Close())
	require.Len(t, rec.errs, 1)
	assert.ErrorIs(t, rec.errs[0], errorx.ErrLoopClosed)
	assert.Equal(t, StateClosed, c.State())
}

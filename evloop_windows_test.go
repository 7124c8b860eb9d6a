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

package evloop

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"
)

type echoProtocol struct {
	BuiltinProtocol
	t    Transport
	done chan error
}

func (e *echoProtocol) Connected(t Transport) { e.t = t }

func (e *echoProtocol) Received(p []byte) { _, _ = e.t.Write(p) }

func (e *echoProtocol) Disconnected(err error) { e.done <- err }

// farewellProtocol writes a message and closes the connection right away.
type farewellProtocol struct {
	BuiltinProtocol
	msg  string
	c    *IOWatcher
	done chan error
}

func (f *farewellProtocol) Connected(t Transport) {
	f.c = t.(*transport).c
	if f.msg == "" {
		return
	}
	_, _ = t.Write([]byte(f.msg))
	_ = t.Close()
}

func (f *farewellProtocol) Disconnected(err error) {
	if f.done != nil {
		f.done <- err
	}
}

func runLoop(t *testing.T, ln *ConnectionWatcher) *Loop {
	l, err := NewLoop(WithMaxBlockTime(time.Second))
	require.NoError(t, err)
	require.NoError(t, l.Start(ln))

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run() }()
	t.Cleanup(func() {
		l.Unloop()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("the loop did not stop")
			return
		}
		assert.NoError(t, l.Close())
	})
	return l
}

func TestBackendsForPlatform(t *testing.T) {
	assert.Equal(t, []string{"iocp"}, Backends())
	l, err := NewLoop()
	require.NoError(t, err)
	assert.Equal(t, Completion, l.Backend().Family())
	assert.Equal(t, "iocp", l.Backend().Name())
	require.NoError(t, l.Close())
}

func TestEchoRoundTrip(t *testing.T) {
	ln, err := Listen("tcp", "127.0.0.1:0", WithReuseAddr(true), WithTCPNoDelay(true))
	require.NoError(t, err)
	done := make(chan error, 1)
	ln.SetProtocolFactory(func() Protocol { return &echoProtocol{done: done} })
	runLoop(t, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("evloop "), 1<<15)
	go func() {
		_, _ = conn.Write(payload)
	}()
	got := make([]byte, len(payload))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	_, err = io.ReadFull(conn, got)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, conn.Close())
	select {
	case err := <-done:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(5 * time.Second):
		t.Fatal("Disconnected was not called")
	}
}

func TestStopAfterWriteDeliversData(t *testing.T) {
	ln, err := Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	ln.SetProtocolFactory(func() Protocol { return &farewellProtocol{msg: "bye", done: done} })
	runLoop(t, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	got, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "bye", string(got))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Disconnected was not called")
	}
}

func TestReifyFailureCancelsSubmittedOps(t *testing.T) {
	ln, err := Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	proto := new(farewellProtocol)
	ln.SetProtocolFactory(func() Protocol { return proto })

	l, err := NewLoop(WithMaxBlockTime(100 * time.Millisecond))
	require.NoError(t, err)
	defer l.Close()
	require.NoError(t, l.Start(ln))

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	for i := 0; proto.c == nil && i < 50; i++ {
		require.NoError(t, l.RunOnce())
	}
	require.NotNil(t, proto.c, "Connected was not called")

	c := proto.c
	b := l.Backend().(*iocp)
	require.NoError(t, b.Reify(c, EventRead, EventNone))
	for i := 0; b.states[c] != nil && i < 50; i++ {
		require.NoError(t, l.RunOnce())
	}
	require.NotContains(t, b.states, c)

	// The receive is accepted, the send fails on the shut down socket.
	require.NoError(t, windows.Shutdown(c.sock.Handle(), windows.SHUT_WR))
	c.trans.out.PushBack([]byte("x"))
	require.Error(t, b.Reify(c, EventNone, EventRead|EventWrite))

	for i := 0; b.states[c] != nil && i < 50; i++ {
		require.NoError(t, l.RunOnce())
	}
	assert.NotContains(t, b.states, c, "the receive submitted before the failure is still pending")

	l.Kill(c, nil)
}

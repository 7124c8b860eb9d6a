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

package netpoll

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (int, int) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	for _, fd := range fds {
		require.NoError(t, unix.SetNonblock(fd, true))
	}
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestPollerReadable(t *testing.T) {
	p, err := OpenPoller()
	require.NoError(t, err)
	defer p.Close()

	a, b := socketPair(t)
	require.NoError(t, p.Register(a, 0, Readable))

	events := make([]Event, InitPollEventsCap)
	n, err := p.Wait(events, 0)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing written yet")

	_, err = unix.Write(b, []byte("ping"))
	require.NoError(t, err)

	n, err = p.Wait(events, time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, a, events[0].Fd)
	assert.NotZero(t, events[0].Events&Readable)

	require.NoError(t, p.Register(a, Readable, 0))
	n, err = p.Wait(events, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Zero(t, n, "descriptor was removed")
}

func TestPollerWritableInterest(t *testing.T) {
	p, err := OpenPoller()
	require.NoError(t, err)
	defer p.Close()

	a, _ := socketPair(t)
	require.NoError(t, p.Register(a, 0, Readable))
	require.NoError(t, p.Register(a, Readable, Readable|Writable))

	events := make([]Event, InitPollEventsCap)
	n, err := p.Wait(events, time.Second)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)
	var writable bool
	for _, ev := range events[:n] {
		writable = writable || (ev.Fd == a && ev.Events&Writable != 0)
	}
	assert.True(t, writable)

	require.NoError(t, p.Register(a, Readable|Writable, Readable))
	n, err = p.Wait(events, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.NoError(t, p.Register(a, Readable, Readable), "unchanged interest is a no-op")
}

func TestPollerWake(t *testing.T) {
	p, err := OpenPoller()
	require.NoError(t, err)
	defer p.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		assert.NoError(t, p.Wake())
	}()

	start := time.Now()
	n, err := p.Wait(make([]Event, InitPollEventsCap), 10*time.Second)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Less(t, time.Since(start), 5*time.Second)

	// A wake issued while not waiting is kept for the next Wait.
	require.NoError(t, p.Wake())
	require.NoError(t, p.Wake())
	start = time.Now()
	_, err = p.Wait(make([]Event, InitPollEventsCap), 10*time.Second)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

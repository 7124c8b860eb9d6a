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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingQueueFIFO(t *testing.T) {
	pq := NewPendingQueue()
	assert.True(t, pq.Empty())
	assert.Nil(t, pq.Front())
	assert.Nil(t, pq.PopFront())

	// Cross the initial capacity of the ring buffer a few times.
	watchers := make([]*ConnectionWatcher, 100)
	for round := 0; round < 3; round++ {
		for i := range watchers {
			watchers[i] = new(ConnectionWatcher)
			pq.InsertBack(watchers[i])
		}
		require.Equal(t, len(watchers), pq.Len())
		for i := range watchers {
			require.Same(t, watchers[i], pq.Front())
			require.Same(t, watchers[i], pq.PopFront())
		}
		assert.True(t, pq.Empty())
	}
}

func TestPendingQueueInterleaved(t *testing.T) {
	pq := NewPendingQueue()
	a, b, c := new(ConnectionWatcher), new(IOWatcher), new(ConnectionWatcher)
	pq.InsertBack(a)
	pq.InsertBack(b)
	require.Same(t, a, pq.PopFront())
	pq.InsertBack(c)
	require.Same(t, b, pq.PopFront())
	require.Same(t, c, pq.PopFront())
	assert.True(t, pq.Empty())
}

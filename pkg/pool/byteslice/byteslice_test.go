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

package byteslice

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteSliceReuse(t *testing.T) {
	buf := Get(8)
	require.Len(t, buf, 8)
	require.Equal(t, 8, cap(buf))
	copy(buf, "ff")

	// Disable GC to re-acquire the same backing array.
	gc := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(gc)

	Put(buf)
	newBuf := Get(7)
	require.Len(t, newBuf, 7)
	assert.Same(t, &buf[0], &newBuf[0])
	assert.Equal(t, "ff", string(newBuf[:2]))
}

func TestByteSliceSizeClasses(t *testing.T) {
	assert.Nil(t, Get(0))
	assert.Nil(t, Get(-1))
	for _, size := range []int{1, 3, 64, 65, 1000, 4096} {
		buf := Get(size)
		assert.Len(t, buf, size)
		assert.GreaterOrEqual(t, cap(buf), size)
		assert.Zero(t, cap(buf)&(cap(buf)-1), "capacity %d is not a power of two", cap(buf))
		Put(buf)
	}
	// Foreign slices are demoted and must not panic.
	Put(make([]byte, 100))
	Put(nil)
}

func BenchmarkByteSlice(b *testing.B) {
	b.Run("Run.N", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			Put(Get(1024))
		}
	})
	b.Run("Run.Parallel", func(b *testing.B) {
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				Put(Get(1024))
			}
		})
	})
}

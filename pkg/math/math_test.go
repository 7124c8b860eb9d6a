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

package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCeilToPowerOfTwo(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want int
	}{
		{name: "zero", n: 0, want: 2},
		{name: "one", n: 1, want: 2},
		{name: "two", n: 2, want: 2},
		{name: "three", n: 3, want: 1 << 2},
		{name: "five", n: 5, want: 1 << 3},
		{name: "power_of_two_1024", n: 1 << 10, want: 1 << 10},
		{name: "near_power_1023", n: (1 << 10) - 1, want: 1 << 10},
		{name: "near_power_1025", n: (1 << 10) + 1, want: 1 << 11},
		{name: "read_buffer_60k", n: 60 << 10, want: 64 << 10},
		{name: "very_large_1M_plus_1", n: 1<<20 + 1, want: 1 << 21},
		{name: "huge_1G_plus_1", n: 1<<29 + 1, want: 1 << 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CeilToPowerOfTwo(tt.n))
		})
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	assert.False(t, IsPowerOfTwo(0))
	assert.False(t, IsPowerOfTwo(-4))
	assert.True(t, IsPowerOfTwo(1))
	assert.True(t, IsPowerOfTwo(64<<10))
	assert.False(t, IsPowerOfTwo(3))
}

// Copyright (c) 2022 Andy Pan
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

package linkedlist

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLinkedListBuffer_PeekDiscard(t *testing.T) {
	const maxBlocks = 100
	var (
		llb Buffer
		cum int
		buf bytes.Buffer
	)
	r := rand.New(rand.NewSource(42))
	for i := 0; i < maxBlocks; i++ {
		n := r.Intn(1024) + 128
		cum += n
		data := make([]byte, n)
		r.Read(data)
		llb.PushBack(data)
		buf.Write(data)
	}
	require.EqualValues(t, maxBlocks, llb.Len())
	require.EqualValues(t, cum, llb.Buffered())

	var p []byte
	for _, b := range llb.Peek(cum / 4) {
		p = append(p, b...)
	}
	require.GreaterOrEqual(t, len(p), cum/4)
	require.Equal(t, buf.Bytes()[:len(p)], p)

	// Discarding leaves the remainder intact and in order.
	require.EqualValues(t, 100, llb.Discard(100))
	require.EqualValues(t, cum-100, llb.Buffered())
	p = p[:0]
	for _, b := range llb.Peek(-1) {
		p = append(p, b...)
	}
	require.Equal(t, buf.Bytes()[100:], p)

	require.EqualValues(t, cum-100, llb.Discard(cum))
	require.True(t, llb.IsEmpty())
	require.Zero(t, llb.Buffered())
	require.Zero(t, llb.Len())
	require.Empty(t, llb.Peek(-1))
}

func TestLinkedListBuffer_Read(t *testing.T) {
	var llb Buffer
	llb.PushBack([]byte("hello "))
	llb.PushBack(nil)
	llb.PushBack([]byte("world"))
	require.EqualValues(t, 2, llb.Len())

	p := make([]byte, 8)
	n, err := llb.Read(p)
	require.NoError(t, err)
	require.Equal(t, "hello wo", string(p[:n]))
	require.EqualValues(t, 3, llb.Buffered())

	n, err = llb.Read(p)
	require.NoError(t, err)
	require.Equal(t, "rld", string(p[:n]))

	_, err = llb.Read(p)
	require.ErrorIs(t, err, io.EOF)
}

func TestLinkedListBuffer_Reset(t *testing.T) {
	var llb Buffer
	for i := 0; i < 10; i++ {
		llb.PushBack(bytes.Repeat([]byte{'x'}, 64))
	}
	llb.Reset()
	require.True(t, llb.IsEmpty())
	require.Zero(t, llb.Buffered())
	llb.PushBack([]byte("again"))
	require.EqualValues(t, 5, llb.Buffered())
}

// Copyright (c) 2021 Andy Pan
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

// Package linkedlist implements the outbound buffer of a connection: a list of
// pooled byte chunks that can be drained with writev(2) or WSASend without
// copying them into one contiguous slice.
package linkedlist

import (
	"io"
	"math"

	bsPool "github.com/panjf2000/evloop/pkg/pool/byteslice"
)

type node struct {
	buf  []byte
	next *node
}

func (b *node) len() int {
	return len(b.buf)
}

// Buffer is a linked list of node.
type Buffer struct {
	bs    [][]byte
	head  *node
	tail  *node
	size  int
	bytes int
}

// PushBack copies p and appends it to the tail of the list.
func (llb *Buffer) PushBack(p []byte) {
	n := len(p)
	if n == 0 {
		return
	}
	b := bsPool.Get(n)
	copy(b, p)
	llb.pushBack(&node{buf: b})
}

// Peek assembles up to maxBytes of [][]byte from the head of the list, the
// nodes stay in the list until Discard is called. maxBytes <= 0 means all.
func (llb *Buffer) Peek(maxBytes int) [][]byte {
	if maxBytes <= 0 {
		maxBytes = math.MaxInt32
	}
	llb.bs = llb.bs[:0]
	var cum int
	for iter := llb.head; iter != nil; iter = iter.next {
		llb.bs = append(llb.bs, iter.buf)
		if cum += iter.len(); cum >= maxBytes {
			break
		}
	}
	return llb.bs
}

// Discard drops n bytes from the head of the list.
func (llb *Buffer) Discard(n int) (discarded int) {
	for n > 0 {
		b := llb.pop()
		if b == nil {
			break
		}
		if n < b.len() {
			b.buf = b.buf[n:]
			discarded += n
			llb.pushFront(b)
			break
		}
		n -= b.len()
		discarded += b.len()
		bsPool.Put(b.buf)
	}
	return
}

// Read moves data from the head of the list into p.
func (llb *Buffer) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	if llb.IsEmpty() {
		return 0, io.EOF
	}
	for b := llb.pop(); b != nil; b = llb.pop() {
		m := copy(p[n:], b.buf)
		n += m
		if m < b.len() {
			b.buf = b.buf[m:]
			llb.pushFront(b)
		} else {
			bsPool.Put(b.buf)
		}
		if n == len(p) {
			return
		}
	}
	return
}

// Len returns the number of chunks in the list.
func (llb *Buffer) Len() int {
	return llb.size
}

// Buffered returns the number of bytes held by the list.
func (llb *Buffer) Buffered() int {
	return llb.bytes
}

// IsEmpty reports whether the list holds no data.
func (llb *Buffer) IsEmpty() bool {
	return llb.head == nil
}

// Reset releases all chunks back to the pool.
func (llb *Buffer) Reset() {
	for b := llb.pop(); b != nil; b = llb.pop() {
		bsPool.Put(b.buf)
	}
	llb.head = nil
	llb.tail = nil
	llb.size = 0
	llb.bytes = 0
	llb.bs = llb.bs[:0]
}

func (llb *Buffer) pop() *node {
	if llb.head == nil {
		return nil
	}
	b := llb.head
	llb.head = b.next
	if llb.head == nil {
		llb.tail = nil
	}
	b.next = nil
	llb.size--
	llb.bytes -= b.len()
	return b
}

func (llb *Buffer) pushFront(b *node) {
	if llb.head == nil {
		b.next = nil
		llb.tail = b
	} else {
		b.next = llb.head
	}
	llb.head = b
	llb.size++
	llb.bytes += b.len()
}

func (llb *Buffer) pushBack(b *node) {
	if llb.tail == nil {
		llb.head = b
	} else {
		llb.tail.next = b
	}
	b.next = nil
	llb.tail = b
	llb.size++
	llb.bytes += b.len()
}

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

package queue

import (
	"sync/atomic"
	"unsafe"
)

// lockFreeQueue is the non-blocking concurrent queue of Michael and Scott,
// "Simple, Fast, and Practical Non-Blocking and Blocking Concurrent Queue
// Algorithms" (PODC 1996): https://dl.acm.org/doi/10.1145/248052.248106
//
// Enqueue links the new node after the tail with a CAS and then swings the
// tail, Dequeue swings the head to its successor, either side helps a
// lagging tail along.
type lockFreeQueue struct {
	head   unsafe.Pointer
	tail   unsafe.Pointer
	length int32
}

type node struct {
	value *Task
	next  unsafe.Pointer
}

// NewLockFreeQueue instantiates and returns a lockFreeQueue.
func NewLockFreeQueue() AsyncTaskQueue {
	n := unsafe.Pointer(&node{})
	return &lockFreeQueue{head: n, tail: n}
}

// Enqueue puts the given value v at the tail of the queue.
func (q *lockFreeQueue) Enqueue(task *Task) {
	n := &node{value: task}
	for {
		tail := load(&q.tail)
		next := load(&tail.next)
		if tail != load(&q.tail) {
			continue
		}
		if next != nil {
			cas(&q.tail, tail, next) // tail is falling behind
			continue
		}
		if cas(&tail.next, next, n) {
			cas(&q.tail, tail, n)
			atomic.AddInt32(&q.length, 1)
			return
		}
	}
}

// Dequeue removes and returns the value at the head of the queue.
// It returns nil if the queue is empty.
func (q *lockFreeQueue) Dequeue() *Task {
	for {
		head := load(&q.head)
		tail := load(&q.tail)
		next := load(&head.next)
		if head != load(&q.head) {
			continue
		}
		if head == tail {
			if next == nil {
				return nil
			}
			cas(&q.tail, tail, next)
			continue
		}
		// Read value before CAS, otherwise another dequeue might free the next node.
		task := next.value
		if cas(&q.head, head, next) {
			atomic.AddInt32(&q.length, -1)
			return task
		}
	}
}

// IsEmpty indicates whether this queue is empty or not.
func (q *lockFreeQueue) IsEmpty() bool {
	return atomic.LoadInt32(&q.length) == 0
}

// Length returns the number of tasks in the queue.
func (q *lockFreeQueue) Length() int32 {
	return atomic.LoadInt32(&q.length)
}

func load(p *unsafe.Pointer) (n *node) {
	return (*node)(atomic.LoadPointer(p))
}

func cas(p *unsafe.Pointer, old, new *node) bool {
	return atomic.CompareAndSwapPointer(p, unsafe.Pointer(old), unsafe.Pointer(new))
}

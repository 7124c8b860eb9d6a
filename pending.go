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

import "github.com/eapache/queue"

// PendingQueue is a FIFO of watchers waiting for their deferred notification.
// It is backed by a growable ring buffer so queuing does not allocate per entry.
type PendingQueue struct {
	q *queue.Queue
}

// NewPendingQueue returns an empty queue.
func NewPendingQueue() *PendingQueue {
	return &PendingQueue{q: queue.New()}
}

// InsertBack appends w to the tail of the queue.
func (pq *PendingQueue) InsertBack(w Watcher) {
	pq.q.Add(w)
}

// Front returns the head of the queue without removing it, nil if the queue is empty.
func (pq *PendingQueue) Front() Watcher {
	if pq.q.Length() == 0 {
		return nil
	}
	return pq.q.Peek().(Watcher)
}

// PopFront removes and returns the head of the queue, nil if the queue is empty.
func (pq *PendingQueue) PopFront() Watcher {
	if pq.q.Length() == 0 {
		return nil
	}
	return pq.q.Remove().(Watcher)
}

// Empty reports whether no entries remain.
func (pq *PendingQueue) Empty() bool {
	return pq.q.Length() == 0
}

// Len returns the number of queued watchers.
func (pq *PendingQueue) Len() int {
	return pq.q.Length()
}

// Copyright (c) 2019 The Gnet Authors. All rights reserved.
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
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/panjf2000/evloop/internal/queue"
	"github.com/panjf2000/evloop/internal/socket"
	"github.com/panjf2000/evloop/pkg/errors"
	"github.com/panjf2000/evloop/pkg/logging"
)

// maxTasksPerTick is the maximum amount of triggered tasks run by one iteration.
const maxTasksPerTick = 256

// Loop is a single-threaded reactor driving one Backend.
//
// Apart from Unloop and Trigger, every method must be called on the goroutine
// running the loop, or while the loop is not running.
type Loop struct {
	opts    *Options
	logger  logging.Logger
	backend Backend

	// pending[cur] receives new entries, the other one is being drained.
	pending [2]*PendingQueue
	cur     int

	tasks    queue.AsyncTaskQueue
	watchers map[Watcher]struct{}

	running int32
	stop    int32
	closed  int32
}

// NewLoop creates a loop on the backend selected by the options.
func NewLoop(options ...Option) (*Loop, error) {
	opts := loadOptions(options...)
	factory, err := lookupBackend(opts.Backend)
	if err != nil {
		return nil, err
	}
	return newLoop(opts, factory)
}

func newLoop(opts *Options, factory backendFactory) (*Loop, error) {
	l := &Loop{
		opts:     opts,
		logger:   opts.Logger,
		pending:  [2]*PendingQueue{NewPendingQueue(), NewPendingQueue()},
		tasks:    queue.NewLockFreeQueue(),
		watchers: make(map[Watcher]struct{}),
	}
	b, err := factory(l)
	if err != nil {
		return nil, err
	}
	l.backend = b
	l.logger.Infof("event loop created on the %s backend (%s family)", b.Name(), b.Family())
	return l, nil
}

// Backend returns the backend the loop drives.
func (l *Loop) Backend() Backend {
	return l.backend
}

// Options returns the effective options of the loop.
func (l *Loop) Options() Options {
	return *l.opts
}

func (l *Loop) isClosed() bool {
	return atomic.LoadInt32(&l.closed) == 1
}

func (l *Loop) own(w Watcher) error {
	b := w.base()
	if b.loop == nil {
		b.loop = l
	} else if b.loop != l {
		return errors.ErrWatcherForeign
	}
	return nil
}

func (l *Loop) reify(w Watcher, mask EventMask) error {
	b := w.base()
	if err := l.backend.Reify(w, b.mask, mask); err != nil {
		return fmt.Errorf("%w: %s -> %s on fd %d: %v", errors.ErrRegistration, b.mask, mask, b.sock.Fd(), err)
	}
	b.mask = mask
	return nil
}

// Start registers w with the loop. Starting an active watcher is a no-op.
func (l *Loop) Start(w Watcher) error {
	if l.isClosed() {
		return errors.ErrLoopClosed
	}
	if err := l.own(w); err != nil {
		return err
	}
	b := w.base()
	if b.active {
		return nil
	}
	if b.state >= StateClosing {
		return errors.ErrWatcherClosed
	}

	switch w := w.(type) {
	case *ConnectionWatcher:
		if w.factory == nil {
			return errors.ErrNoProtocolFactory
		}
		if err := l.reify(w, EventAccept); err != nil {
			return err
		}
		w.active, w.state = true, StateListening
	case *IOWatcher:
		mask := EventRead
		if !w.trans.out.IsEmpty() {
			mask = mask.With(EventWrite)
		}
		if err := l.reify(w, mask); err != nil {
			return err
		}
		w.active, w.state = true, StateConnected
	}
	l.watchers[w] = struct{}{}
	return nil
}

// Stop deregisters w. A stopped ConnectionWatcher may be started again, a
// stopped IOWatcher is closed gracefully and its Disconnected callback fires
// with a nil error on the next drain pass. On a completion backend a connection
// with buffered output stops reading at once and is torn down when its last
// send completes. Stopping an inactive watcher is a no-op.
func (l *Loop) Stop(w Watcher) error {
	if err := l.own(w); err != nil {
		return err
	}
	if !w.base().active {
		return nil
	}

	switch w := w.(type) {
	case *ConnectionWatcher:
		if err := l.reify(w, EventNone); err != nil {
			return err
		}
		w.active, w.state = false, StateInactive
		delete(l.watchers, w)
	case *IOWatcher:
		if w.trans.closing {
			return nil
		}
		if l.backend.Family() == Readiness {
			if err := w.trans.flush(); err != nil {
				// flush killed the connection already.
				return nil
			}
		} else if !w.trans.out.IsEmpty() {
			// Keep only the send in flight, syncWriteInterest tears w down
			// once the outbound buffer is drained.
			w.trans.closing = true
			if err := l.reify(w, EventWrite); err != nil {
				l.Kill(w, err)
			}
			return nil
		}
		l.teardown(w, nil)
	}
	return nil
}

// Kill tears w down at once: the watcher is deregistered, its socket shut
// down and closed and its transport released before Kill returns, then the
// watcher is queued so that its Disconnected callback (or the error handler
// of a ConnectionWatcher) fires with err on the next drain pass.
// Killing a watcher twice has no further effect.
func (l *Loop) Kill(w Watcher, err error) {
	if l.own(w) != nil {
		return
	}
	l.teardown(w, err)
}

func (l *Loop) teardown(w Watcher, err error) {
	b := w.base()
	if b.queued || b.state >= StateClosing {
		return
	}
	if b.mask != EventNone {
		if e := l.backend.Reify(w, b.mask, EventNone); e != nil {
			l.logger.Debugf("failed to deregister fd %d: %v", b.sock.Fd(), e)
		}
		b.mask = EventNone
	}
	if e := b.sock.Shutdown(); e != nil {
		l.logger.Debugf("failed to shut down fd %d: %v", b.sock.Fd(), e)
	}
	if e := b.sock.Close(); e != nil {
		l.logger.Warnf("failed to close fd %d: %v", b.sock.Fd(), e)
	}
	if c, ok := w.(*IOWatcher); ok {
		c.trans.release()
	} else if err != nil && err != errors.ErrLoopClosed {
		l.logger.Errorf("listener on %s is killed: %v", w.(*ConnectionWatcher).addr, err)
	}
	b.active, b.state, b.err = false, StateClosing, err
	b.queued = true
	l.pending[l.cur].InsertBack(w)
}

// invoke fires the deferred notification of a watcher popped from a PendingQueue.
func (l *Loop) invoke(w Watcher) {
	b := w.base()
	b.queued, b.state = false, StateClosed
	delete(l.watchers, w)

	defer func() {
		if r := recover(); r != nil {
			l.logger.Errorf("panic in the disconnection callback of fd %d: %v\n%s", b.sock.Fd(), r, debug.Stack())
		}
	}()
	switch w := w.(type) {
	case *IOWatcher:
		w.proto.Disconnected(w.err)
	case *ConnectionWatcher:
		if w.onError != nil {
			w.onError(w.err)
		}
	}
}

// protect runs a callback of c, a panic kills the connection.
func (l *Loop) protect(c *IOWatcher, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Errorf("panic in the callback of fd %d: %v\n%s", c.sock.Fd(), r, debug.Stack())
			l.Kill(c, fmt.Errorf("%w: %v", errors.ErrCallbackPanic, r))
		}
	}()
	fn()
}

func (l *Loop) received(c *IOWatcher, data []byte) {
	l.protect(c, func() { c.proto.Received(data) })
}

// accepted builds the IOWatcher of a connection accepted by ln and registers it.
func (l *Loop) accepted(ln *ConnectionWatcher, s *socket.Socket) {
	if ln.factory == nil {
		l.logger.Warnf("dropping connection from %v accepted on %v: no protocol factory", s.RemoteAddr(), ln.addr)
		_ = s.Close()
		return
	}
	c := &IOWatcher{watcher: watcher{loop: l, sock: s}, listener: ln}
	c.trans = newTransport(c)

	var proto Protocol
	func() {
		defer func() {
			if r := recover(); r != nil {
				l.logger.Errorf("panic in the protocol factory of %v: %v\n%s", ln.addr, r, debug.Stack())
			}
		}()
		proto = ln.factory()
	}()
	if proto == nil {
		l.logger.Warnf("dropping connection from %v accepted on %v: no protocol", s.RemoteAddr(), ln.addr)
		_ = s.Close()
		return
	}
	c.proto = proto

	if err := l.Start(c); err != nil {
		l.logger.Warnf("dropping connection from %v accepted on %v: %v", s.RemoteAddr(), ln.addr, err)
		_ = s.Close()
		return
	}
	l.protect(c, func() { proto.Connected(c.trans) })
}

// syncWriteInterest keeps EventWrite registered exactly while c has buffered
// output, a connection being stopped gracefully is torn down once it has none.
func (l *Loop) syncWriteInterest(c *IOWatcher) {
	if !c.active {
		return
	}
	if c.trans.closing {
		if c.trans.out.IsEmpty() {
			l.teardown(c, nil)
		}
		return
	}
	mask := EventRead
	if !c.trans.out.IsEmpty() {
		mask = mask.With(EventWrite)
	}
	if mask == c.mask {
		return
	}
	if err := l.reify(c, mask); err != nil {
		l.Kill(c, err)
	}
}

// blockTime returns how long the next poll may block given the queue drained after it.
func (l *Loop) blockTime(next *PendingQueue) time.Duration {
	if !next.Empty() || !l.tasks.IsEmpty() {
		return 0
	}
	return l.opts.MaxBlockTime
}

// Run runs the loop on the calling goroutine until Unloop is called or the
// backend fails. Unloop takes effect at the top of the next iteration, after
// the current one has drained its queue.
func (l *Loop) Run() error {
	if l.isClosed() {
		return errors.ErrLoopClosed
	}
	if !atomic.CompareAndSwapInt32(&l.running, 0, 1) {
		return errors.ErrLoopRunning
	}
	defer func() {
		atomic.StoreInt32(&l.stop, 0)
		atomic.StoreInt32(&l.running, 0)
	}()

	for atomic.LoadInt32(&l.stop) == 0 {
		if err := l.tick(); err != nil {
			return err
		}
	}
	return nil
}

// RunOnce runs a single iteration of the loop.
func (l *Loop) RunOnce() error {
	if l.isClosed() {
		return errors.ErrLoopClosed
	}
	if !atomic.CompareAndSwapInt32(&l.running, 0, 1) {
		return errors.ErrLoopRunning
	}
	defer atomic.StoreInt32(&l.running, 0)
	return l.tick()
}

func (l *Loop) tick() error {
	drain := l.pending[l.cur]
	l.cur ^= 1

	if _, err := l.backend.Poll(l.opts.MaxEvents, l.blockTime(drain)); err != nil {
		l.logger.Errorf("error occurs in the %s backend: %v", l.backend.Name(), err)
		return err
	}
	l.runTasks()
	for w := drain.PopFront(); w != nil; w = drain.PopFront() {
		l.invoke(w)
	}
	return nil
}

func (l *Loop) runTasks() {
	for i := 0; i < maxTasksPerTick; i++ {
		task := l.tasks.Dequeue()
		if task == nil {
			return
		}
		l.runTask(task.Run)
		queue.PutTask(task)
	}
}

func (l *Loop) runTask(fn queue.Func) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Errorf("panic in triggered task: %v\n%s", r, debug.Stack())
		}
	}()
	if err := fn(); err != nil {
		l.logger.Warnf("error occurs in triggered task: %v", err)
	}
}

// Unloop makes Run return at the top of its next iteration, it is safe for concurrent use.
func (l *Loop) Unloop() {
	atomic.StoreInt32(&l.stop, 1)
	if err := l.backend.Wake(); err != nil {
		l.logger.Errorf("failed to wake up the %s backend: %v", l.backend.Name(), err)
	}
}

// Trigger schedules fn to run on the loop goroutine after the next poll,
// it is safe for concurrent use. An error returned by fn is logged.
func (l *Loop) Trigger(fn func() error) error {
	if fn == nil {
		return errors.ErrNilTask
	}
	if l.isClosed() {
		return errors.ErrLoopClosed
	}
	task := queue.GetTask()
	task.Run = fn
	l.tasks.Enqueue(task)
	return l.backend.Wake()
}

// Close kills every remaining watcher with ErrLoopClosed, fires the pending
// notifications and releases the backend. It fails with ErrLoopRunning while
// the loop is running.
func (l *Loop) Close() error {
	if atomic.LoadInt32(&l.running) == 1 {
		return errors.ErrLoopRunning
	}
	if !atomic.CompareAndSwapInt32(&l.closed, 0, 1) {
		return nil
	}
	for w := range l.watchers {
		l.teardown(w, errors.ErrLoopClosed)
	}
	for i := 0; i < 2; i++ {
		drain := l.pending[l.cur]
		l.cur ^= 1
		for w := drain.PopFront(); w != nil; w = drain.PopFront() {
			l.invoke(w)
		}
	}
	l.runTasks()
	return l.backend.Close()
}

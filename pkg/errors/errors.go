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

// Package errors defines common errors for evloop.
package errors

import "errors"

var (
	// ErrNoBackend occurs when no event backend has been compiled in for the host platform.
	ErrNoBackend = errors.New("evloop: no event backend is available on this platform")
	// ErrUnknownBackend occurs when the requested backend is not compiled in for the host platform.
	ErrUnknownBackend = errors.New("evloop: unknown event backend")
	// ErrNoProtocolFactory occurs when starting a listening watcher that has no protocol factory.
	ErrNoProtocolFactory = errors.New("evloop: the watcher has no protocol factory")
	// ErrRegistration occurs when the backend fails to register or modify the interest of a watcher.
	ErrRegistration = errors.New("evloop: failed to reify watcher interest")
	// ErrWatcherClosed occurs when operating on a watcher that has been stopped or killed.
	ErrWatcherClosed = errors.New("evloop: the watcher is closed")
	// ErrWatcherActive occurs when closing a listening watcher that is still registered with a loop.
	ErrWatcherActive = errors.New("evloop: the watcher is still active")
	// ErrWatcherForeign occurs when a watcher is handed to a loop other than the one it belongs to.
	ErrWatcherForeign = errors.New("evloop: the watcher belongs to another loop")
	// ErrLoopRunning occurs when Run is called on a loop which is already running.
	ErrLoopRunning = errors.New("evloop: the loop is already running")
	// ErrLoopClosed occurs when operating on a loop which has been closed.
	ErrLoopClosed = errors.New("evloop: the loop is closed")
	// ErrDefaultLoopInitialized occurs when overriding the default loop after its first use.
	ErrDefaultLoopInitialized = errors.New("evloop: the default loop has already been initialized")
	// ErrNilTask occurs when triggering a nil task.
	ErrNilTask = errors.New("evloop: nil task is not allowed")
	// ErrUnsupportedProtocol occurs when trying to listen on a network other than tcp/tcp4/tcp6.
	ErrUnsupportedProtocol = errors.New("evloop: only tcp/tcp4/tcp6 are supported")
	// ErrUnsupportedOp occurs when calling some methods that are not supported by the current platform.
	ErrUnsupportedOp = errors.New("evloop: unsupported operation")
	// ErrCallbackPanic wraps a panic recovered from a user callback.
	ErrCallbackPanic = errors.New("evloop: panic in protocol callback")
)

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

/*
Package evloop provides a single-threaded, non-blocking event loop that
multiplexes socket notifications over platform specific backends (epoll on
Linux, kqueue on the BSDs and Darwin, I/O completion ports on Windows) and
dispatches them to user-supplied connection handlers.

A Loop owns one backend and a set of watchers. A ConnectionWatcher wraps a
listening socket and creates an IOWatcher, with a fresh Protocol and its
Transport, for every accepted connection. Terminal notifications are never
fired from inside the backend: a killed watcher is torn down synchronously
and its Disconnected callback runs on the next drain pass of the loop.

Echo server built upon evloop is shown below:

	package main

	import (
		"log"

		"github.com/panjf2000/evloop"
	)

	type echo struct {
		evloop.BuiltinProtocol
		t evloop.Transport
	}

	func (e *echo) Connected(t evloop.Transport) { e.t = t }

	func (e *echo) Received(p []byte) { _, _ = e.t.Write(p) }

	func main() {
		loop, err := evloop.Default()
		if err != nil {
			log.Fatal(err)
		}
		ln, err := evloop.Listen("tcp", ":9000")
		if err != nil {
			log.Fatal(err)
		}
		ln.SetProtocolFactory(func() evloop.Protocol { return new(echo) })
		if err = loop.Start(ln); err != nil {
			log.Fatal(err)
		}
		log.Fatal(loop.Run())
	}
*/
package evloop

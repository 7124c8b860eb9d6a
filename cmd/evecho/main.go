// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2017 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Command evecho is a TCP echo server running on an evloop event loop.
// With -upper, every line is upper-cased on a worker pool and written back
// through Loop.Trigger.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/panjf2000/evloop"
	"github.com/panjf2000/evloop/pkg/logging"
	"github.com/panjf2000/evloop/pkg/pool/goroutine"
)

func main() {
	var (
		addr    string
		backend string
		upper   bool
	)
	flag.StringVar(&addr, "addr", ":9000", "listening address")
	flag.StringVar(&backend, "backend", "", "event backend, one of "+joinBackends())
	flag.BoolVar(&upper, "upper", false, "upper-case every line on a worker pool")
	flag.Parse()
	defer logging.Cleanup()

	var (
		loop *evloop.Loop
		err  error
	)
	if backend == "" {
		loop, err = evloop.Default()
	} else {
		loop, err = evloop.NewLoop(evloop.WithBackend(backend))
	}
	if err != nil {
		logging.Fatalf("failed to create the event loop: %v", err)
	}

	pool := goroutine.Default()
	defer pool.Release()
	server := &echoServer{loop: loop, pool: pool, upper: upper}

	ln, err := evloop.Listen("tcp", addr, evloop.WithReuseAddr(true), evloop.WithTCPNoDelay(true))
	if err != nil {
		logging.Fatalf("failed to listen on %s: %v", addr, err)
	}
	ln.SetProtocolFactory(server.newConn)
	ln.SetErrorHandler(func(err error) {
		logging.Errorf("listener on %v is gone: %v", ln.Addr(), err)
		loop.Unloop()
	})
	if err = loop.Start(ln); err != nil {
		logging.Fatalf("failed to start the listener: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		logging.Infof("received %v, stopping", s)
		loop.Unloop()
	}()

	logging.Infof("echo server is listening on %v with the %s backend (upper: %t)", ln.Addr(), loop.Backend().Name(), upper)
	if err = loop.Run(); err != nil {
		logging.Errorf("the event loop stopped: %v", err)
	}
	if err = loop.Close(); err != nil {
		logging.Errorf("failed to close the event loop: %v", err)
	}
}

func joinBackends() (s string) {
	for i, name := range evloop.Backends() {
		if i > 0 {
			s += ", "
		}
		s += name
	}
	return
}

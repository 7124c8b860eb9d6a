// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package evloop

import (
	"time"

	"github.com/panjf2000/evloop/internal/socket"
	"github.com/panjf2000/evloop/pkg/logging"
	"github.com/panjf2000/evloop/pkg/math"
)

const (
	// MaxBlockTime is the upper bound of the time a loop may spend blocked in its backend.
	MaxBlockTime = time.Hour

	// DefaultMaxEvents is the default number of notifications harvested by one poll.
	DefaultMaxEvents = 128

	// DefaultReadBufferCap is the default capacity of the buffer connections are read into.
	DefaultReadBufferCap = 0x10000
)

// Option is a function that will set up option.
type Option func(opts *Options)

func loadOptions(options ...Option) *Options {
	opts := &Options{
		MaxBlockTime:  MaxBlockTime,
		MaxEvents:     DefaultMaxEvents,
		ReadBufferCap: DefaultReadBufferCap,
	}
	for _, option := range options {
		option(opts)
	}
	normalizeOptions(opts)
	return opts
}

func normalizeOptions(opts *Options) {
	if opts.MaxBlockTime < 0 {
		opts.MaxBlockTime = 0
	} else if opts.MaxBlockTime > MaxBlockTime {
		opts.MaxBlockTime = MaxBlockTime
	}
	if opts.MaxEvents <= 0 {
		opts.MaxEvents = DefaultMaxEvents
	}
	if opts.ReadBufferCap <= 0 {
		opts.ReadBufferCap = DefaultReadBufferCap
	} else if !math.IsPowerOfTwo(opts.ReadBufferCap) {
		opts.ReadBufferCap = math.CeilToPowerOfTwo(opts.ReadBufferCap)
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetDefaultLogger()
	}
}

// Options are configurations for a Loop.
type Options struct {
	// Backend is the name of the event backend to use ("epoll", "kqueue" or "iocp"),
	// the first one available on the platform is picked when it is empty.
	Backend string

	// MaxBlockTime bounds the time spent blocked in a single poll, it is clamped to [0, 1h].
	MaxBlockTime time.Duration

	// MaxEvents is the number of notifications harvested by one poll.
	MaxEvents int

	// ReadBufferCap is the capacity of the buffer connections are read into,
	// it is rounded up to a power of two.
	ReadBufferCap int

	// Logger is the customized logger for logging info, if it is not set,
	// then evloop will use the default logger powered by go.uber.org/zap.
	Logger logging.Logger
}

// WithOptions sets up all options.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

// WithBackend picks the event backend by name.
func WithBackend(name string) Option {
	return func(opts *Options) {
		opts.Backend = name
	}
}

// WithMaxBlockTime sets up the maximum time spent blocked in a single poll.
func WithMaxBlockTime(d time.Duration) Option {
	return func(opts *Options) {
		opts.MaxBlockTime = d
	}
}

// WithMaxEvents sets up the number of notifications harvested by one poll.
func WithMaxEvents(n int) Option {
	return func(opts *Options) {
		opts.MaxEvents = n
	}
}

// WithReadBufferCap sets up ReadBufferCap for reading bytes.
func WithReadBufferCap(readBufferCap int) Option {
	return func(opts *Options) {
		opts.ReadBufferCap = readBufferCap
	}
}

// WithLogger sets up a customized logger.
func WithLogger(logger logging.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// ListenOption is a function that will set up a listening socket option.
type ListenOption func(opts *socket.Options)

// WithReusePort sets up SO_REUSEPORT socket option.
func WithReusePort(reusePort bool) ListenOption {
	return func(opts *socket.Options) {
		opts.ReusePort = reusePort
	}
}

// WithReuseAddr sets up SO_REUSEADDR socket option.
func WithReuseAddr(reuseAddr bool) ListenOption {
	return func(opts *socket.Options) {
		opts.ReuseAddr = reuseAddr
	}
}

// WithBacklog sets up the length of the queue of pending connections,
// a value <= 0 means the system maximum.
func WithBacklog(backlog int) ListenOption {
	return func(opts *socket.Options) {
		opts.Backlog = backlog
	}
}

// WithTCPNoDelay enables TCP_NODELAY on every accepted connection.
func WithTCPNoDelay(noDelay bool) ListenOption {
	return func(opts *socket.Options) {
		opts.NoDelay = noDelay
	}
}

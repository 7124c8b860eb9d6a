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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/panjf2000/evloop/pkg/logging"
)

func TestLoadOptionsDefaults(t *testing.T) {
	opts := loadOptions()
	assert.Equal(t, time.Hour, opts.MaxBlockTime)
	assert.Equal(t, DefaultMaxEvents, opts.MaxEvents)
	assert.Equal(t, DefaultReadBufferCap, opts.ReadBufferCap)
	assert.Equal(t, logging.GetDefaultLogger(), opts.Logger)
	assert.Empty(t, opts.Backend)
}

func TestLoadOptionsNormalize(t *testing.T) {
	opts := loadOptions(
		WithBackend("epoll"),
		WithMaxBlockTime(3*time.Hour),
		WithMaxEvents(-1),
		WithReadBufferCap(1000),
	)
	assert.Equal(t, "epoll", opts.Backend)
	assert.Equal(t, MaxBlockTime, opts.MaxBlockTime)
	assert.Equal(t, DefaultMaxEvents, opts.MaxEvents)
	assert.Equal(t, 1024, opts.ReadBufferCap)

	opts = loadOptions(WithMaxBlockTime(-time.Second))
	assert.Zero(t, opts.MaxBlockTime)

	opts = loadOptions(WithOptions(Options{MaxEvents: 7}))
	assert.Zero(t, opts.MaxBlockTime, "WithOptions replaces the defaults")
	assert.Equal(t, 7, opts.MaxEvents)
	assert.Equal(t, DefaultReadBufferCap, opts.ReadBufferCap)
	assert.NotNil(t, opts.Logger)
}

func TestEventMask(t *testing.T) {
	m := EventNone.With(EventRead).With(EventWrite)
	assert.True(t, m.Has(EventRead))
	assert.True(t, m.Has(EventRead|EventWrite))
	assert.False(t, m.Has(EventAccept))
	assert.False(t, m.Has(EventNone))
	assert.Equal(t, "read|write", m.String())
	assert.Equal(t, EventRead, m.Without(EventWrite))
	assert.Equal(t, "none", EventNone.String())
	assert.Equal(t, Event(1), EventRead)
	assert.Equal(t, Event(8), EventError)
}

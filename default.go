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
	"sync"

	"github.com/panjf2000/evloop/pkg/errors"
)

var (
	defaultMu   sync.Mutex
	defaultLoop *Loop
	defaultErr  error
	defaultUsed bool
)

// Default returns the process-wide loop, it is created on first use on the
// first backend available for the platform and lives as long as the process.
func Default() (*Loop, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if !defaultUsed {
		defaultUsed = true
		if defaultLoop == nil {
			defaultLoop, defaultErr = NewLoop()
		}
	}
	return defaultLoop, defaultErr
}

// SetDefault replaces the loop returned by Default, it fails with
// ErrDefaultLoopInitialized once Default has been called.
func SetDefault(l *Loop) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultUsed {
		return errors.ErrDefaultLoopInitialized
	}
	defaultLoop = l
	return nil
}

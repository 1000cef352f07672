// Copyright 2025 Molt Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shutdown

import (
	"sync"
	"sync/atomic"

	"github.com/google/wire"
)

// ProviderSet is the Wire provider set for the shutdown package.
var ProviderSet = wire.NewSet(NewManager)

// Manager coordinates graceful shutdown between the signal handler, the
// health endpoints, and an optional shutdown endpoint.
type Manager struct {
	once sync.Once
	ch   chan struct{}
	down atomic.Bool
}

func NewManager() *Manager {
	return &Manager{ch: make(chan struct{})}
}

// Shutdown marks the process as shutting down. Safe to call more than once.
func (m *Manager) Shutdown() {
	m.down.Store(true)
	m.once.Do(func() {
		close(m.ch)
	})
}

// Wait returns a channel closed once Shutdown is called.
func (m *Manager) Wait() <-chan struct{} {
	return m.ch
}

// IsShuttingDown reports whether Shutdown was called. Readiness probes use
// it to drain traffic before the listener closes.
func (m *Manager) IsShuttingDown() bool {
	return m.down.Load()
}

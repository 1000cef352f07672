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

package safe

import (
	"runtime/debug"

	"github.com/molthq/molt/pkg/log"
)

// Go runs fn in a new goroutine and recovers panics so one bad handler
// cannot take the process down.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorw("goroutine panic recovered", "panic", r, "stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}

// Do runs fn inline and converts a panic into a logged error.
func Do(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("panic recovered", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}

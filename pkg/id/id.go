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

package id

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/xid"
	"github.com/teris-io/shortid"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)

	sid     *shortid.Shortid
	sidOnce sync.Once
)

// GetUild returns a lowercase ULID. Primary identifier for migrations and
// projects: lexically sortable by creation time.
func GetUild() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String())
}

// GetXid returns an xid string. Used for high-volume sub-records
// (step results, chat messages) where a compact sortable id is enough.
func GetXid() string {
	return xid.New().String()
}

// GetShortId returns a short random id for ephemeral handles such as
// websocket connections. Falls back to xid if the generator fails.
func GetShortId() string {
	sidOnce.Do(func() {
		s, err := shortid.New(1, shortid.DefaultABC, 2342)
		if err == nil {
			sid = s
		}
	})
	if sid == nil {
		return xid.New().String()
	}
	v, err := sid.Generate()
	if err != nil {
		return xid.New().String()
	}
	return v
}

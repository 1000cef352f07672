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

package cache

import "github.com/VictoriaMetrics/fastcache"

// LocalCache is an in-process byte cache for hot read paths that must not
// touch redis, such as log tail chunks.
type LocalCache struct {
	c *fastcache.Cache
}

// NewLocalCache allocates a local cache holding up to maxBytes.
func NewLocalCache(maxBytes int) *LocalCache {
	return &LocalCache{c: fastcache.New(maxBytes)}
}

// Get returns the value for key and whether it was present.
func (l *LocalCache) Get(key []byte) ([]byte, bool) {
	if !l.c.Has(key) {
		return nil, false
	}
	return l.c.Get(nil, key), true
}

// Set stores value under key, evicting older entries when full.
func (l *LocalCache) Set(key, value []byte) {
	l.c.Set(key, value)
}

// Del removes key.
func (l *LocalCache) Del(key []byte) {
	l.c.Del(key)
}

// Reset drops all entries.
func (l *LocalCache) Reset() {
	l.c.Reset()
}

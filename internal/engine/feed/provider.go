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

package feed

import (
	"github.com/google/wire"
	"github.com/molthq/molt/pkg/cache"
)

// NewBus builds the feed bus, bridged through redis when configured.
func NewBus(cfg *Config, c cache.ICache) (Bus, func(), error) {
	cfg.SetDefaults()
	local := NewMemoryBus(cfg)
	if !cfg.Bridge || c == nil {
		return local, func() { _ = local.Close() }, nil
	}
	bridged := NewBridgedBus(local, c)
	return bridged, func() { _ = bridged.Close() }, nil
}

// ProviderSet provides the feed bus.
var ProviderSet = wire.NewSet(NewBus)

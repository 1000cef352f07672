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
	"context"
	"encoding/json"

	"github.com/bytedance/sonic"
	"github.com/molthq/molt/internal/engine/consts"
	"github.com/molthq/molt/pkg/cache"
	"github.com/molthq/molt/pkg/id"
	"github.com/molthq/molt/pkg/log"
	"github.com/molthq/molt/pkg/safe"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// every feed shares one redis channel; the envelope names the feed
var bridgeChannel = consts.FeedRedisChannelPrefix + "events"

// envelope is the wire form mirrored through redis.
type envelope struct {
	Origin  string          `json:"origin"`
	Feed    string          `json:"feed"`
	Payload json.RawMessage `json:"payload"`
}

// BridgedBus wraps a MemoryBus and mirrors every publish through redis
// pub/sub so peer processes (the agent writes results from its own process)
// observe the same feeds. Local delivery never waits on redis.
type BridgedBus struct {
	local  *MemoryBus
	cache  cache.ICache
	origin string
	ps     *redis.PubSub
}

// NewBridgedBus starts the redis mirror around an in-process bus.
func NewBridgedBus(local *MemoryBus, c cache.ICache) *BridgedBus {
	b := &BridgedBus{
		local:  local,
		cache:  c,
		origin: id.GetShortId(),
	}
	b.ps = c.Subscribe(context.Background(), bridgeChannel)
	safe.Go(b.replay)
	return b
}

// replay feeds peer publishes into the local bus until the pubsub closes.
func (b *BridgedBus) replay() {
	for msg := range b.ps.Channel() {
		var env envelope
		if err := sonic.Unmarshal([]byte(msg.Payload), &env); err != nil {
			log.Warnw("discarding malformed feed envelope", "error", err)
			continue
		}
		if env.Origin == b.origin {
			// our own publish, already delivered locally
			continue
		}
		if err := b.local.publishBytes(env.Feed, env.Payload); err != nil && !errors.Is(err, ErrBusClosed) {
			log.Warnw("replay of bridged feed event failed", "feed", env.Feed, "error", err)
		}
	}
}

// Publish delivers locally, then mirrors to redis. A redis failure is logged
// and swallowed; peers miss the event but local observers already have it.
func (b *BridgedBus) Publish(ctx context.Context, feed string, payload any) error {
	buf, err := sonic.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode feed payload")
	}
	if err := b.local.publishBytes(feed, buf); err != nil {
		return err
	}
	env, err := sonic.Marshal(envelope{Origin: b.origin, Feed: feed, Payload: buf})
	if err != nil {
		return errors.Wrap(err, "encode feed envelope")
	}
	if err := b.cache.Publish(ctx, bridgeChannel, env).Err(); err != nil {
		log.Warnw("mirroring feed event to redis failed", "feed", feed, "error", err)
	}
	return nil
}

// Subscribe registers fn on the local bus.
func (b *BridgedBus) Subscribe(feed string, fn Handler) (Disposer, error) {
	return b.local.Subscribe(feed, fn)
}

// Close stops the redis mirror and drops every subscriber.
func (b *BridgedBus) Close() error {
	err := b.ps.Close()
	if localErr := b.local.Close(); err == nil {
		err = localErr
	}
	return err
}

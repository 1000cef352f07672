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
	"sync"
	"sync/atomic"

	"github.com/bytedance/sonic"
	"github.com/molthq/molt/pkg/log"
	"github.com/molthq/molt/pkg/safe"
	"github.com/pkg/errors"
)

type subscriber struct {
	id uint64
	fn Handler
	ch chan Event
}

// feedState holds one feed's subscribers and sequence counter. Its mutex
// serializes stamp plus fan-out so seq order matches every subscriber's
// delivery order.
type feedState struct {
	mu   sync.Mutex
	seq  uint64
	subs map[uint64]*subscriber
}

// MemoryBus is the in-process bus. One goroutine per subscription delivers
// events in publish order; a panicking handler loses that one delivery, not
// the subscription.
type MemoryBus struct {
	mu     sync.RWMutex
	feeds  map[string]*feedState
	buffer int
	nextId uint64
	closed bool
}

// NewMemoryBus creates an in-process feed bus.
func NewMemoryBus(cfg *Config) *MemoryBus {
	cfg.SetDefaults()
	return &MemoryBus{
		feeds:  make(map[string]*feedState),
		buffer: cfg.Buffer,
	}
}

// Publish encodes payload and delivers it to the feed's subscribers.
// Publishing to a feed nobody subscribed is a no-op.
func (b *MemoryBus) Publish(_ context.Context, feed string, payload any) error {
	buf, err := sonic.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode feed payload")
	}
	return b.publishBytes(feed, buf)
}

func (b *MemoryBus) publishBytes(feed string, payload []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	fs := b.feeds[feed]
	b.mu.RUnlock()
	if fs == nil {
		return nil
	}

	fs.mu.Lock()
	fs.seq++
	ev := Event{Feed: feed, Seq: fs.seq, Payload: payload}
	dropped := 0
	for id, sub := range fs.subs {
		select {
		case sub.ch <- ev:
		default:
			// shed the slow subscriber, never block the writer
			delete(fs.subs, id)
			close(sub.ch)
			dropped++
		}
	}
	fs.mu.Unlock()

	if dropped > 0 {
		log.Warnw("dropped slow feed subscribers", "feed", feed, "count", dropped, "buffer", b.buffer)
	}
	return nil
}

// Subscribe registers fn on one feed and returns its Disposer.
func (b *MemoryBus) Subscribe(feed string, fn Handler) (Disposer, error) {
	sub := &subscriber{
		id: atomic.AddUint64(&b.nextId, 1),
		fn: fn,
		ch: make(chan Event, b.buffer),
	}

	// registration happens under the bus lock so a concurrent Close cannot
	// detach the feed state between lookup and insert
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	fs, ok := b.feeds[feed]
	if !ok {
		fs = &feedState{subs: make(map[uint64]*subscriber)}
		b.feeds[feed] = fs
	}
	fs.mu.Lock()
	fs.subs[sub.id] = sub
	fs.mu.Unlock()
	b.mu.Unlock()

	safe.Go(func() {
		for ev := range sub.ch {
			delivery := ev
			safe.Do(func() {
				sub.fn(delivery)
			})
		}
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			fs.mu.Lock()
			// the bus may have shed this subscriber already
			if _, live := fs.subs[sub.id]; live {
				delete(fs.subs, sub.id)
				close(sub.ch)
			}
			fs.mu.Unlock()
		})
	}, nil
}

// Close drops every subscriber and rejects further publishes.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	feeds := b.feeds
	b.feeds = make(map[string]*feedState)
	b.mu.Unlock()

	for _, fs := range feeds {
		fs.mu.Lock()
		for id, sub := range fs.subs {
			delete(fs.subs, id)
			close(sub.ch)
		}
		fs.mu.Unlock()
	}
	return nil
}

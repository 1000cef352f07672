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

package nova

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apache/rocketmq-client-go/v2/primitive"
	mqkafka "github.com/molthq/molt/pkg/mq/kafka"
	mqrocket "github.com/molthq/molt/pkg/mq/rocketmq"
)

type wheelEntry struct {
	key     string
	value   []byte
	headers map[string]string
	dueAt   time.Time
}

// DelayTopicManager holds delayed messages in a hashed timing wheel and
// flushes matured entries to the target topic. Entries whose delay exceeds
// one wheel revolution stay in their slot until their due time arrives.
type DelayTopicManager struct {
	producer     *mqkafka.Producer
	targetTopic  string
	slotCount    int
	slotDuration time.Duration

	mu    sync.Mutex
	slots [][]wheelEntry
	pos   int

	started  atomic.Bool
	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}
}

// NewDelayTopicManager creates a delay manager backed by Kafka
func NewDelayTopicManager(producer *mqkafka.Producer, consumer *mqkafka.Consumer, targetTopic string, slotCount int, slotDuration time.Duration) *DelayTopicManager {
	if slotCount <= 0 {
		slotCount = DefaultDelaySlotCount
	}
	if slotDuration <= 0 {
		slotDuration = DefaultDelaySlotDuration
	}
	return &DelayTopicManager{
		producer:     producer,
		targetTopic:  targetTopic,
		slotCount:    slotCount,
		slotDuration: slotDuration,
		slots:        make([][]wheelEntry, slotCount),
		stopped:      make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start starts the wheel ticker until the context is cancelled
func (m *DelayTopicManager) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return fmt.Errorf("delay manager already started")
	}
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.slotDuration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopped:
				return
			case <-ticker.C:
				m.advance(ctx)
			}
		}
	}()
	return nil
}

// ScheduleMessage places a message in the wheel slot matching its due time
func (m *DelayTopicManager) ScheduleMessage(ctx context.Context, key string, value []byte, headers map[string]string, delay time.Duration) error {
	if delay <= 0 {
		return m.producer.Send(ctx, m.targetTopic, key, value, headers)
	}
	// Round ticks up so an entry never matures before its due time.
	ticks := int(delay / m.slotDuration)
	if delay%m.slotDuration != 0 {
		ticks++
	}
	entry := wheelEntry{
		key:     key,
		value:   value,
		headers: headers,
		dueAt:   time.Now().Add(delay),
	}
	m.mu.Lock()
	slot := (m.pos + ticks) % m.slotCount
	m.slots[slot] = append(m.slots[slot], entry)
	m.mu.Unlock()
	return nil
}

// advance moves the wheel one slot and delivers matured entries
func (m *DelayTopicManager) advance(ctx context.Context) {
	now := time.Now()

	m.mu.Lock()
	m.pos = (m.pos + 1) % m.slotCount
	pos := m.pos
	entries := m.slots[pos]
	var due, waiting []wheelEntry
	for _, e := range entries {
		if e.dueAt.After(now) {
			waiting = append(waiting, e)
		} else {
			due = append(due, e)
		}
	}
	m.slots[pos] = waiting
	m.mu.Unlock()

	for _, e := range due {
		if err := m.producer.Send(ctx, m.targetTopic, e.key, e.value, e.headers); err != nil {
			// Put the entry back for the next revolution instead of dropping it.
			m.mu.Lock()
			m.slots[pos] = append(m.slots[pos], e)
			m.mu.Unlock()
		}
	}
}

// Stop stops the wheel ticker
func (m *DelayTopicManager) Stop() error {
	m.stopOnce.Do(func() {
		close(m.stopped)
	})
	if m.started.Load() {
		<-m.done
	}
	return nil
}

// rocketmqDelayLevels maps RocketMQ built-in delay levels 1..18 to durations
var rocketmqDelayLevels = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
	1 * time.Minute,
	2 * time.Minute,
	3 * time.Minute,
	4 * time.Minute,
	5 * time.Minute,
	6 * time.Minute,
	7 * time.Minute,
	8 * time.Minute,
	9 * time.Minute,
	10 * time.Minute,
	20 * time.Minute,
	30 * time.Minute,
	1 * time.Hour,
	2 * time.Hour,
}

// RocketMQDelayManager schedules messages through RocketMQ built-in delay levels
type RocketMQDelayManager struct {
	producer    *mqrocket.Producer
	targetTopic string
}

// NewRocketMQDelayManager creates a delay manager backed by RocketMQ
func NewRocketMQDelayManager(producer *mqrocket.Producer, consumer *mqrocket.Consumer, targetTopic string, slotCount int, slotDuration time.Duration) *RocketMQDelayManager {
	return &RocketMQDelayManager{
		producer:    producer,
		targetTopic: targetTopic,
	}
}

// Start is a no-op, the broker schedules delivery
func (m *RocketMQDelayManager) Start(ctx context.Context) error {
	return nil
}

// ScheduleMessage sends a message with the smallest delay level covering the delay
func (m *RocketMQDelayManager) ScheduleMessage(ctx context.Context, key string, value []byte, headers map[string]string, delay time.Duration) error {
	if delay <= 0 {
		return m.producer.Send(ctx, m.targetTopic, key, value, headers)
	}
	raw := m.producer.Raw()
	if raw == nil {
		return fmt.Errorf("producer is not initialized")
	}

	msg := primitive.NewMessage(m.targetTopic, value)
	if key != "" {
		msg.WithKeys([]string{key})
	}
	for k, v := range headers {
		msg.WithProperty(k, v)
	}
	msg.WithDelayTimeLevel(delayLevelFor(delay))

	result, err := raw.SendSync(ctx, msg)
	if err != nil {
		return fmt.Errorf("send delayed message: %w", err)
	}
	if result.Status != primitive.SendOK {
		return fmt.Errorf("send delayed message: status=%v", result.Status)
	}
	return nil
}

// Stop is a no-op
func (m *RocketMQDelayManager) Stop() error {
	return nil
}

// delayLevelFor picks the smallest built-in level covering the delay
func delayLevelFor(delay time.Duration) int {
	for i, d := range rocketmqDelayLevels {
		if delay <= d {
			return i + 1
		}
	}
	return len(rocketmqDelayLevels)
}

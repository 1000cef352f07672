// Copyright 2025 Molt Team
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
	"time"
)

// QueueProvider identifies the underlying message broker
type QueueProvider string

const (
	QueueProviderKafka    QueueProvider = "kafka"
	QueueProviderRocketMQ QueueProvider = "rocketmq"
)

// Message is the broker-level message representation
type Message struct {
	Key     string            // Message key
	Value   []byte            // Message body
	Headers map[string]string // Message headers
}

// MessageHandler processes a single broker message
type MessageHandler func(ctx context.Context, msg *Message) error

// MessageQueueBroker abstracts the underlying message broker
type MessageQueueBroker interface {
	// SendMessage sends a single message to a topic
	SendMessage(ctx context.Context, topic string, key string, value []byte, headers map[string]string) error

	// SendBatchMessages sends multiple messages to a topic
	SendBatchMessages(ctx context.Context, topic string, messages []Message) error

	// Subscribe consumes messages from topics until the context is cancelled
	Subscribe(ctx context.Context, topics []string, handler MessageHandler) error

	// Close closes the broker connection
	Close() error
}

// DelayManager schedules messages for delivery after a delay
type DelayManager interface {
	// Start starts background delivery until the context is cancelled
	Start(ctx context.Context) error

	// ScheduleMessage schedules a message for delivery after the given delay
	ScheduleMessage(ctx context.Context, key string, value []byte, headers map[string]string, delay time.Duration) error

	// Stop stops background delivery
	Stop() error
}

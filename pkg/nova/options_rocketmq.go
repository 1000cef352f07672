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
	"strings"

	"github.com/apache/rocketmq-client-go/v2/consumer"
)

// RocketMQOption is the interface for RocketMQ configuration options
type RocketMQOption interface {
	apply(*RocketMQConfig)
}

type rocketmqOptionFunc func(*RocketMQConfig)

func (f rocketmqOptionFunc) apply(c *RocketMQConfig) {
	f(c)
}

// WithRocketMQ configures a RocketMQ broker
func WithRocketMQ(nameServers []string, opts ...RocketMQOption) QueueOption {
	return queueOptionFunc(func(c *queueConfig) {
		c.Provider = QueueProviderRocketMQ
		c.BootstrapServers = strings.Join(nameServers, ",")
		c.rocketmqConfig = NewRocketMQConfig(nameServers, opts...)
	})
}

// WithRocketMQGroupID sets the consumer group ID
func WithRocketMQGroupID(groupID string) RocketMQOption {
	return rocketmqOptionFunc(func(c *RocketMQConfig) {
		c.GroupID = groupID
	})
}

// WithRocketMQTopicPrefix sets the topic prefix
func WithRocketMQTopicPrefix(prefix string) RocketMQOption {
	return rocketmqOptionFunc(func(c *RocketMQConfig) {
		c.TopicPrefix = prefix
	})
}

// WithRocketMQConsumerModel sets the consumer model
func WithRocketMQConsumerModel(model consumer.MessageModel) RocketMQOption {
	return rocketmqOptionFunc(func(c *RocketMQConfig) {
		c.ConsumerModel = model
	})
}

// WithRocketMQAuth sets the ACL credentials
func WithRocketMQAuth(accessKey, secretKey string) RocketMQOption {
	return rocketmqOptionFunc(func(c *RocketMQConfig) {
		c.AccessKey = accessKey
		c.SecretKey = secretKey
	})
}

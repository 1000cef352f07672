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
	"time"
)

// KafkaOption is the interface for Kafka configuration options
type KafkaOption interface {
	apply(*KafkaConfig)
}

type kafkaOptionFunc func(*KafkaConfig)

func (f kafkaOptionFunc) apply(c *KafkaConfig) {
	f(c)
}

// WithKafkaGroupID sets the consumer group ID
func WithKafkaGroupID(groupID string) KafkaOption {
	return kafkaOptionFunc(func(c *KafkaConfig) {
		c.GroupID = groupID
	})
}

// WithKafkaTopicPrefix sets the topic prefix
func WithKafkaTopicPrefix(prefix string) KafkaOption {
	return kafkaOptionFunc(func(c *KafkaConfig) {
		c.TopicPrefix = prefix
	})
}

// WithKafkaClientProgramName sets the client program name
func WithKafkaClientProgramName(name string) KafkaOption {
	return kafkaOptionFunc(func(c *KafkaConfig) {
		c.ClientProgram = name
	})
}

// WithKafkaDelaySlots sets the delay slot configuration
func WithKafkaDelaySlots(count int, duration time.Duration) KafkaOption {
	return kafkaOptionFunc(func(c *KafkaConfig) {
		if count > 0 {
			c.DelaySlotCount = count
		}
		if duration > 0 {
			c.DelaySlotDuration = duration
		}
	})
}

// WithKafkaAutoCommit sets whether offsets are committed automatically
func WithKafkaAutoCommit(autoCommit bool) KafkaOption {
	return kafkaOptionFunc(func(c *KafkaConfig) {
		c.AutoCommit = autoCommit
	})
}

// WithKafkaSessionTimeout sets the session timeout in milliseconds
func WithKafkaSessionTimeout(timeoutMs int) KafkaOption {
	return kafkaOptionFunc(func(c *KafkaConfig) {
		if timeoutMs > 0 {
			c.SessionTimeout = timeoutMs
		}
	})
}

// WithKafkaMaxPollInterval sets the maximum poll interval in milliseconds
func WithKafkaMaxPollInterval(intervalMs int) KafkaOption {
	return kafkaOptionFunc(func(c *KafkaConfig) {
		if intervalMs > 0 {
			c.MaxPollInterval = intervalMs
		}
	})
}

// WithKafkaAuth sets the security protocol and SASL credentials
func WithKafkaAuth(securityProtocol, mechanism, username, password string) KafkaOption {
	return kafkaOptionFunc(func(c *KafkaConfig) {
		c.SecurityProtocol = securityProtocol
		c.SASLMechanism = mechanism
		c.SASLUsername = username
		c.SASLPassword = password
	})
}

// WithKafkaSSL sets the SSL certificate files
func WithKafkaSSL(caFile, certFile, keyFile, password string) KafkaOption {
	return kafkaOptionFunc(func(c *KafkaConfig) {
		c.SSLCAFile = caFile
		c.SSLCertFile = certFile
		c.SSLKeyFile = keyFile
		c.SSLPassword = password
	})
}

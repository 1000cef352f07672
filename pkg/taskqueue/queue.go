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

package taskqueue

import (
	"fmt"
	"time"

	"github.com/molthq/molt/pkg/mq/kafka"
	"github.com/molthq/molt/pkg/nova"
)

// BuildQueue constructs a nova queue from the shared kafka settings and
// the queue tuning block. Returns (nil, nil) when no broker is configured
// so callers can fall back to store polling alone.
func BuildQueue(kafkaCfg kafka.KafkaConfig, queueCfg nova.TaskQueueConfig, clientName string) (nova.TaskQueue, error) {
	if kafkaCfg.BootstrapServers == "" {
		return nil, nil
	}

	delaySlotDuration := time.Duration(queueCfg.DelaySlotDuration) * time.Second
	options := []nova.QueueOption{
		nova.WithKafka(kafkaCfg.BootstrapServers,
			nova.WithKafkaAuth(kafkaCfg.SecurityProtocol, kafkaCfg.Sasl.Mechanism, kafkaCfg.Sasl.Username, kafkaCfg.Sasl.Password),
			nova.WithKafkaSSL(kafkaCfg.Ssl.CaFile, kafkaCfg.Ssl.CertFile, kafkaCfg.Ssl.KeyFile, kafkaCfg.Ssl.Password),
			nova.WithKafkaClientProgramName(clientName),
			nova.WithKafkaAutoCommit(queueCfg.AutoCommit),
			nova.WithKafkaSessionTimeout(queueCfg.SessionTimeout),
			nova.WithKafkaMaxPollInterval(queueCfg.MaxPollInterval),
			nova.WithKafkaDelaySlots(queueCfg.DelaySlotCount, delaySlotDuration),
		),
	}
	if opt := messageFormatOption(queueCfg.MessageFormat); opt != nil {
		options = append(options, opt)
	}
	if opt := messageCodecOption(queueCfg.MessageCodec); opt != nil {
		options = append(options, opt)
	}

	queue, err := nova.NewTaskQueue(options...)
	if err != nil {
		return nil, fmt.Errorf("create task queue: %w", err)
	}
	return queue, nil
}

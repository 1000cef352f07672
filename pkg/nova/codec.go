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
	"fmt"

	"github.com/bytedance/sonic"
)

// MessageFormat identifies the wire encoding for tasks
type MessageFormat string

const (
	// MessageFormatJSON encodes tasks as JSON
	MessageFormatJSON MessageFormat = "json"
)

// MessageCodec encodes and decodes tasks for transport
type MessageCodec interface {
	// Encode serializes a task
	Encode(task *Task) ([]byte, error)

	// Decode deserializes a task
	Decode(data []byte) (*Task, error)

	// Format returns the codec format
	Format() MessageFormat
}

// NewMessageCodec creates a codec for the given format
func NewMessageCodec(format MessageFormat) (MessageCodec, error) {
	switch format {
	case MessageFormatJSON, "":
		return jsonCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported message format: %s", format)
	}
}

type jsonCodec struct{}

func (jsonCodec) Encode(task *Task) ([]byte, error) {
	if task == nil {
		return nil, fmt.Errorf("task cannot be nil")
	}
	data, err := sonic.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task: %w", err)
	}
	return data, nil
}

func (jsonCodec) Decode(data []byte) (*Task, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("message body is empty")
	}
	var task Task
	if err := sonic.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	return &task, nil
}

func (jsonCodec) Format() MessageFormat {
	return MessageFormatJSON
}

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
	"strings"

	"github.com/molthq/molt/pkg/nova"
)

func messageFormatOption(value string) nova.QueueOption {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return nil
	}
	return nova.WithMessageFormat(nova.MessageFormat(value))
}

func messageCodecOption(value string) nova.QueueOption {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return nil
	}
	codec, err := nova.NewMessageCodec(nova.MessageFormat(value))
	if err != nil {
		return nil
	}
	return nova.WithMessageCodec(codec)
}

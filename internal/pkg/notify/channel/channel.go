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

// Package channel implements the outbound notification transports.
package channel

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/pkg/log"
)

// IChannel delivers one rendered notification. Implementations are
// stateless between sends.
type IChannel interface {
	Send(ctx context.Context, title, body string) error
	Validate() error
	Close() error
}

// New builds the transport for a stored channel row.
func New(ch *model.NotifyChannel) (IChannel, error) {
	switch ch.ChannelType {
	case model.ChannelTypeFeishu:
		return NewFeishuAppChannel(ch.Endpoint, ch.Secret), nil
	case model.ChannelTypeWebhook:
		return NewWebhookChannel(ch.Endpoint, ch.Secret), nil
	default:
		return nil, fmt.Errorf("unsupported channel type: %s", ch.ChannelType)
	}
}

type webhookErrorConfig struct {
	codeKey   string
	msgKey    string
	logPrefix string
}

// sendWebhookRequest posts the payload and unwraps provider-style error
// envelopes ({code, msg}) when the endpoint speaks one.
func sendWebhookRequest(ctx context.Context, client *resty.Client, url string, headers map[string]string, payload any, errCfg webhookErrorConfig) error {
	var result map[string]any
	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeaders(headers).
		SetBody(payload).
		SetResult(&result).
		Post(url)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", errCfg.logPrefix, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s request failed: status %d", errCfg.logPrefix, resp.StatusCode())
	}

	if errCfg.codeKey != "" {
		if code, ok := result[errCfg.codeKey].(float64); ok && code != 0 {
			msg, _ := result[errCfg.msgKey].(string)
			return fmt.Errorf("%s rejected message: code=%d msg=%s", errCfg.logPrefix, int(code), msg)
		}
	}

	log.Debugw("notification delivered", "channel", errCfg.logPrefix, "status", resp.StatusCode())
	return nil
}

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

package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

// WebhookChannel posts a plain JSON envelope to any HTTP endpoint. When
// a secret is set, the payload is HMAC-SHA256 signed and the hex digest
// is sent in X-Molt-Signature so receivers can verify origin.
type WebhookChannel struct {
	url    string
	secret string
	client *resty.Client
}

func NewWebhookChannel(url, secret string) *WebhookChannel {
	return &WebhookChannel{
		url:    url,
		secret: secret,
		client: resty.New(),
	}
}

func (c *WebhookChannel) Send(ctx context.Context, title, body string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	// Marshal once so the signature covers the exact bytes on the wire.
	raw, err := sonic.Marshal(map[string]interface{}{
		"title":     title,
		"body":      body,
		"timestamp": time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("webhook marshal payload: %w", err)
	}

	var headers map[string]string
	if c.secret != "" {
		h := hmac.New(sha256.New, []byte(c.secret))
		h.Write(raw)
		headers = map[string]string{"X-Molt-Signature": hex.EncodeToString(h.Sum(nil))}
	}

	return sendWebhookRequest(ctx, c.client, c.url, headers, raw, webhookErrorConfig{
		logPrefix: "webhook",
	})
}

func (c *WebhookChannel) Validate() error {
	if c.url == "" {
		return fmt.Errorf("webhook URL is required")
	}
	return nil
}

func (c *WebhookChannel) Close() error {
	return nil
}

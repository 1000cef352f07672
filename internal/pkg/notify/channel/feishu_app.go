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
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// FeishuAppChannel delivers to a Feishu group robot webhook.
type FeishuAppChannel struct {
	webhookURL string
	secret     string // optional: signing secret, leave empty to disable
	client     *resty.Client
}

// NewFeishuAppChannel creates a Feishu webhook channel.
// secret is optional: pass empty string to disable signature verification.
func NewFeishuAppChannel(webhookURL, secret string) *FeishuAppChannel {
	return &FeishuAppChannel{
		webhookURL: webhookURL,
		secret:     secret,
		client:     resty.New(),
	}
}

// generateSign generates signature for Feishu webhook using HmacSHA256.
// The signing process:
// 1. Concatenate timestamp and secret with newline: timestamp + "\n" + secret
// 2. Use HmacSHA256 with secret as key to sign the concatenated string
// 3. Base64 encode the signature
// Returns nil if secret is not configured (signing is optional).
func (c *FeishuAppChannel) generateSign() map[string]interface{} {
	if c.secret == "" {
		return nil
	}

	timestamp := time.Now().Unix()
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, c.secret)

	h := hmac.New(sha256.New, []byte(c.secret))
	h.Write([]byte(stringToSign))
	signature := h.Sum(nil)

	signBase64 := base64.StdEncoding.EncodeToString(signature)

	return map[string]interface{}{
		"timestamp": strconv.FormatInt(timestamp, 10),
		"sign":      signBase64,
	}
}

// Send sends a markdown card to Feishu; title and body travel together.
func (c *FeishuAppChannel) Send(ctx context.Context, title, body string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	payload := map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"config": map[string]interface{}{
				"wide_screen_mode": true,
			},
			"header": map[string]interface{}{
				"title": map[string]interface{}{
					"tag":     "plain_text",
					"content": title,
				},
			},
			"elements": []map[string]interface{}{
				{
					"tag": "div",
					"text": map[string]interface{}{
						"tag":     "lark_md",
						"content": body,
					},
				},
			},
		},
	}

	// Add signature if secret is configured (optional)
	if signData := c.generateSign(); signData != nil {
		payload["timestamp"] = signData["timestamp"]
		payload["sign"] = signData["sign"]
	}

	return sendWebhookRequest(ctx, c.client, c.webhookURL, nil, payload, webhookErrorConfig{
		codeKey: "code", msgKey: "msg", logPrefix: "feishu",
	})
}

// Validate validates the configuration.
func (c *FeishuAppChannel) Validate() error {
	if c.webhookURL == "" {
		return fmt.Errorf("feishu webhook URL is required")
	}
	return nil
}

// Close closes the connection.
func (c *FeishuAppChannel) Close() error {
	return nil
}

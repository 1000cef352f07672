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

package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// Rep is the uniform response envelope. Business errors keep HTTP 200 and
// carry the failure in Code.
type Rep struct {
	Code      int    `json:"code"`
	Msg       string `json:"msg"`
	Detail    any    `json:"detail,omitempty"`
	Path      string `json:"path,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// WithRep writes a success envelope with detail.
func WithRep(c *fiber.Ctx, detail any) error {
	return c.Status(fiber.StatusOK).JSON(Rep{
		Code:      Success.Code,
		Msg:       Success.Msg,
		Detail:    detail,
		Timestamp: time.Now().UnixMilli(),
	})
}

// WithRepMsg writes an envelope with a custom code and message.
func WithRepMsg(c *fiber.Ctx, code int, msg string) error {
	return c.Status(fiber.StatusOK).JSON(Rep{
		Code:      code,
		Msg:       msg,
		Timestamp: time.Now().UnixMilli(),
	})
}

// WithRepErrMsg writes a failure envelope, recording the request path.
func WithRepErrMsg(c *fiber.Ctx, code int, msg string, path string) error {
	return c.Status(fiber.StatusOK).JSON(Rep{
		Code:      code,
		Msg:       msg,
		Path:      path,
		Timestamp: time.Now().UnixMilli(),
	})
}

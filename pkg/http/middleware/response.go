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

package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/molthq/molt/pkg/http"
)

// Locals keys handlers use to hand their payload to the response wrapper.
const (
	DETAIL    = "detail"
	OPERATION = "operation"
)

// ResponseMiddleware wraps handler results into the uniform envelope.
// Handlers that already wrote a body (error envelopes, websocket upgrades,
// streaming) are left alone.
func ResponseMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}
		// Calling Body() on a streamed response would drain the stream.
		if c.Response().IsBodyStream() {
			return nil
		}
		if len(c.Response().Body()) > 0 {
			return nil
		}

		if detail := c.Locals(DETAIL); detail != nil {
			return http.WithRep(c, detail)
		}
		if op := c.Locals(OPERATION); op != nil {
			return http.WithRep(c, map[string]any{"operation": op})
		}
		return http.WithRepMsg(c, http.Success.Code, http.Success.Msg)
	}
}

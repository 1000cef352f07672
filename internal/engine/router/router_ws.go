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

package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/molthq/molt/internal/engine/service"
	"github.com/molthq/molt/pkg/ws"
)

// wsRouter WebSocket路由
func (rt *Router) wsRouter(r fiber.Router) {
	// WebSocket
	wsHub := ws.NewHub()
	wsHandle := service.NewWSHandle(wsHub, rt.Sync, rt.LogAgg)
	r.Get("/ws", ws.Handle(wsHub, wsHandle))
}

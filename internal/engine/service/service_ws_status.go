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

package service

import (
	"context"
	"fmt"

	"github.com/molthq/molt/pkg/ws"
)

type statusSubscription struct {
	params WSParams
	detach func()
}

func (h *WSHandle) handleStatus(conn ws.Conn, action string, params WSParams) error {
	switch action {
	case actionUnsubscribe:
		h.removeStatusSubscription(conn.ID())
		return h.sendMessage(conn, channelStatus, "unsubscribed", params, nil)
	case actionSubscribe:
	default:
		return h.sendError(conn, channelStatus, params, fmt.Sprintf("unknown action: %s", action))
	}

	if h.sync == nil {
		return h.sendError(conn, channelStatus, params, "sync service is not available")
	}

	// Re-subscribing switches the connection to the new project.
	h.removeStatusSubscription(conn.ID())

	connID := conn.ID()
	snapshot, detach, err := h.sync.Attach(context.Background(), params.ProjectId, func(view *MigrationView) {
		h.pushStatusDelta(connID, params, view)
	})
	if err != nil {
		return h.sendError(conn, channelStatus, params, fmt.Sprintf("load status failed: %v", err))
	}

	h.addStatusSubscription(connID, params, detach)
	return h.sendMessage(conn, channelStatus, "status_snapshot", params, snapshot)
}

// pushStatusDelta runs on the syncer's publish path, so it must never block.
func (h *WSHandle) pushStatusDelta(connID string, params WSParams, view *MigrationView) {
	conn, ok := h.hub.Get(connID)
	if !ok {
		h.removeStatusSubscription(connID)
		return
	}
	if err := h.sendMessage(conn, channelStatus, "status", params, view); err != nil {
		h.removeStatusSubscription(connID)
	}
}

func (h *WSHandle) addStatusSubscription(connID string, params WSParams, detach func()) {
	h.statusMu.Lock()
	defer h.statusMu.Unlock()
	h.statusSubs[connID] = &statusSubscription{params: params, detach: detach}
}

func (h *WSHandle) removeStatusSubscription(connID string) {
	h.statusMu.Lock()
	sub, ok := h.statusSubs[connID]
	if ok {
		delete(h.statusSubs, connID)
	}
	h.statusMu.Unlock()

	// Detach outside the lock: the observer callback itself may be calling
	// in here through pushStatusDelta.
	if ok && sub.detach != nil {
		sub.detach()
	}
}

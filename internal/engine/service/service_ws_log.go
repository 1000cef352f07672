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
	"fmt"

	"github.com/molthq/molt/pkg/safe"
	"github.com/molthq/molt/pkg/ws"
)

const logHistoryChunkSize = 200

type logSubscription struct {
	params WSParams
	cancel func()
	ch     <-chan *LogEntry
}

func (h *WSHandle) handleLog(conn ws.Conn, action string, params WSParams) error {
	switch action {
	case actionUnsubscribe:
		h.cancelLogSubscription(conn.ID())
		return h.sendMessage(conn, channelLog, "unsubscribed", params, nil)
	case actionSubscribe:
	default:
		return h.sendError(conn, channelLog, params, fmt.Sprintf("unknown action: %s", action))
	}

	if params.MigrationId == "" {
		return h.sendError(conn, channelLog, params, "migrationId is required")
	}
	if h.logAgg == nil {
		return h.sendError(conn, channelLog, params, "log aggregator is not available")
	}

	h.cancelLogSubscription(conn.ID())

	ch, cancel := h.logAgg.Subscribe(params.MigrationId)
	sub := &logSubscription{
		params: params,
		cancel: cancel,
		ch:     ch,
	}
	h.logMu.Lock()
	h.logSubs[conn.ID()] = sub
	h.logMu.Unlock()

	_ = h.sendMessage(conn, channelLog, "subscribed", params, nil)
	safe.Go(func() {
		h.sendLogHistory(conn, params)
	})
	safe.Go(func() {
		h.streamRealtimeLogs(conn, sub)
	})
	return nil
}

func (h *WSHandle) sendLogHistory(conn ws.Conn, params WSParams) {
	fromLine := int64(0)
	for {
		logs, next, more := h.logAgg.History(params.MigrationId, fromLine, logHistoryChunkSize)
		if len(logs) > 0 {
			_ = h.sendMessage(conn, channelLog, "log_chunk", params, logs)
		}
		if !more {
			break
		}
		fromLine = next
	}
	_ = h.sendMessage(conn, channelLog, "history_done", params, nil)
}

func (h *WSHandle) streamRealtimeLogs(conn ws.Conn, sub *logSubscription) {
	for entry := range sub.ch {
		if err := h.sendMessage(conn, channelLog, "log", sub.params, entry); err != nil {
			h.cancelLogSubscription(conn.ID())
			return
		}
	}
}

func (h *WSHandle) cancelLogSubscription(connID string) {
	h.logMu.Lock()
	defer h.logMu.Unlock()
	if sub, ok := h.logSubs[connID]; ok {
		sub.cancel()
		delete(h.logSubs, connID)
	}
}

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

package runner

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	agentconfig "github.com/molthq/molt/internal/agent/config"
	"github.com/molthq/molt/internal/engine/repo"
	"github.com/molthq/molt/pkg/log"
	"github.com/molthq/molt/pkg/safe"
)

// heartbeats reports backend liveness through the engine API after
// successful executions, at most once per interval per backend. Status
// flows through the engine rather than a direct row write so the
// engine's cache invalidation sees it.
type heartbeats struct {
	client      *resty.Client
	interval    time.Duration
	agentId     string
	backendRepo repo.IAgentBackendRepository

	mu   sync.Mutex
	last map[string]time.Time
}

func newHeartbeats(conf agentconfig.RunnerConfig, backendRepo repo.IAgentBackendRepository) *heartbeats {
	client := resty.New()
	client.SetTimeout(10 * time.Second)
	client.SetBaseURL(strings.TrimSuffix(conf.EngineEndpoint, "/"))
	return &heartbeats{
		client:      client,
		interval:    conf.HeartbeatInterval,
		agentId:     conf.AgentId,
		backendRepo: backendRepo,
		last:        make(map[string]time.Time),
	}
}

// Beat fires one rate-limited heartbeat. Never blocks the step path.
func (h *heartbeats) Beat(backendName string) {
	h.mu.Lock()
	if t, ok := h.last[backendName]; ok && time.Since(t) < h.interval {
		h.mu.Unlock()
		return
	}
	h.last[backendName] = time.Now()
	h.mu.Unlock()

	safe.Go(func() {
		row, err := h.backendRepo.GetByName(context.Background(), backendName)
		if err != nil {
			log.Debugw("resolve backend for heartbeat failed", "backend", backendName, "error", err)
			return
		}
		resp, err := h.client.R().
			SetHeader("X-Agent-Id", h.agentId).
			Post("/api/v1/backends/" + row.BackendId + "/heartbeat")
		if err != nil {
			log.Debugw("backend heartbeat failed", "backend", backendName, "error", err)
			return
		}
		if resp.IsError() {
			log.Debugw("backend heartbeat rejected", "backend", backendName, "status", resp.StatusCode())
		}
	})
}

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

	"github.com/bytedance/sonic"

	"github.com/molthq/molt/pkg/log"
	"github.com/molthq/molt/pkg/nova"
	"github.com/molthq/molt/pkg/taskqueue"
)

// handleDoorbell turns a queue task into a targeted re-poll. Doorbells
// are at-most-once nudges; anything undecodable is dropped, never
// requeued, because the poll loop covers every miss.
func (r *Runner) handleDoorbell(ctx context.Context, task *nova.Task) error {
	if task == nil || task.Type != taskqueue.TaskTypeMigrationRun {
		return nil
	}
	var payload taskqueue.MigrationRunTaskPayload
	if err := sonic.Unmarshal(task.Payload, &payload); err != nil {
		log.Warnw("decode doorbell payload failed", "taskId", task.ID, "error", err)
		return nil
	}
	if payload.MigrationId == "" {
		return nil
	}
	log.Debugw("doorbell",
		"migrationId", payload.MigrationId,
		"action", payload.Action,
		"epoch", payload.Epoch,
	)
	select {
	case r.nudge <- payload.MigrationId:
	default:
		// Full channel means a poll is imminent anyway.
	}
	return nil
}

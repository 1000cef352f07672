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

package taskqueue

import "strings"

const (
	TaskTypeMigrationRun = "migration.run"
)

// MigrationRunTaskPayload nudges an agent to re-poll a migration record.
// The record itself stays the source of truth; the task only carries
// enough to route the poll.
type MigrationRunTaskPayload struct {
	ProjectId   string `json:"projectId,omitempty"`
	MigrationId string `json:"migrationId,omitempty"`
	Action      string `json:"action,omitempty"`
	StartFrom   string `json:"startFrom,omitempty"`
	ExecuteOnly string `json:"executeOnly,omitempty"`
	Epoch       int64  `json:"epoch,omitempty"`
	AgentId     string `json:"agentId,omitempty"`
}

// MigrationRunKey returns a composite key for the migration run task.
func MigrationRunKey(payload *MigrationRunTaskPayload) string {
	if payload == nil {
		return ""
	}
	parts := []string{
		payload.ProjectId,
		payload.MigrationId,
	}
	return strings.Trim(strings.Join(parts, ":"), ":")
}

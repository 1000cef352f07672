// Copyright 2025 Molt Team
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

package logstream

import "strings"

// ExecLogsTopic is the kafka topic execution log lines travel on.
// The agent produces, the engine log aggregator consumes.
const ExecLogsTopic = "MOLT_EXEC_LOGS"

// ExecLogMessage represents an execution log line sent through Kafka.
type ExecLogMessage struct {
	ProjectId   string `json:"projectId,omitempty"`
	MigrationId string `json:"migrationId,omitempty"`
	Epoch       int64  `json:"epoch,omitempty"`
	StepName    string `json:"stepName,omitempty"`
	Timestamp   int64  `json:"timestamp"`
	LineNumber  int32  `json:"lineNumber"`
	Level       string `json:"level,omitempty"`
	Stream      string `json:"stream,omitempty"`
	Content     string `json:"content,omitempty"`
	AgentId     string `json:"agentId,omitempty"`
	BackendName string `json:"backendName,omitempty"`
}

// ExecLogKey returns a composite key for log message partitioning.
// Lines of one migration always land on one partition so per-run order holds.
func (m *ExecLogMessage) ExecLogKey() string {
	if m == nil {
		return ""
	}
	parts := []string{
		m.ProjectId,
		m.MigrationId,
	}
	return strings.Trim(strings.Join(parts, ":"), ":")
}

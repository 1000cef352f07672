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

package model

import (
	"gorm.io/datatypes"
)

// ProcessResult 迁移执行汇总记录
// One row per completed execution attempt, appended by the agent.
type ProcessResult struct {
	BaseModel
	ResultId       string                      `gorm:"column:result_id;type:VARCHAR(64);uniqueIndex" json:"resultId"`
	MigrationId    string                      `gorm:"column:migration_id;type:VARCHAR(64);index" json:"migrationId"`
	StepsCompleted datatypes.JSONSlice[string] `gorm:"column:steps_completed;type:JSON" json:"stepsCompleted"`
	StartedAt      int64                       `gorm:"column:started_at;type:BIGINT" json:"startedAt"`
	FinishedAt     int64                       `gorm:"column:finished_at;type:BIGINT" json:"finishedAt"`
	Meta           datatypes.JSONMap           `gorm:"column:meta;type:JSON" json:"meta"`
}

func (ProcessResult) TableName() string {
	return "t_process_results"
}

// StepResult 单步执行记录
// Append-only; reruns append new rows. Readers treat the latest row per
// step as authoritative.
type StepResult struct {
	BaseModel
	ResultId    string            `gorm:"column:result_id;type:VARCHAR(64);uniqueIndex" json:"resultId"`
	MigrationId string            `gorm:"column:migration_id;type:VARCHAR(64);index" json:"migrationId"`
	Step        string            `gorm:"column:step;type:VARCHAR(64);index" json:"step"`
	Success     bool              `gorm:"column:success" json:"success"`
	Error       string            `gorm:"column:error;type:TEXT" json:"error,omitempty"`
	Output      datatypes.JSONMap `gorm:"column:output;type:JSON" json:"output"`
	Timestamp   int64             `gorm:"column:timestamp;type:BIGINT;index" json:"timestamp"`
}

func (StepResult) TableName() string {
	return "t_step_results"
}

// ConfigChatMessage 配置会话消息
// Append-only, ordered by timestamp then id; never mutated.
type ConfigChatMessage struct {
	BaseModel
	MessageId   string `gorm:"column:message_id;type:VARCHAR(64);uniqueIndex" json:"messageId"`
	MigrationId string `gorm:"column:migration_id;type:VARCHAR(64);index" json:"migrationId"`
	Role        string `gorm:"column:role;type:VARCHAR(32)" json:"role"` // user/assistant/system
	Content     string `gorm:"column:content;type:TEXT" json:"content"`
	Timestamp   int64  `gorm:"column:timestamp;type:BIGINT" json:"timestamp"`
}

func (ConfigChatMessage) TableName() string {
	return "t_config_chat_messages"
}

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
	ChatRoleSystem    = "system"
)

// ValidChatRole reports whether s is a known chat role.
func ValidChatRole(s string) bool {
	switch s {
	case ChatRoleUser, ChatRoleAssistant, ChatRoleSystem:
		return true
	}
	return false
}

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

// MigrationAction 迁移任务记录表
// One row per migration attempt. Engine and agent both patch it; every
// mutation is a partial Updates(map) so the two writers compose.
type MigrationAction struct {
	BaseModel
	MigrationId  string                                         `gorm:"column:migration_id;type:VARCHAR(64);uniqueIndex" json:"migrationId"`
	ProjectId    string                                         `gorm:"column:project_id;type:VARCHAR(64);index" json:"projectId"`
	Name         string                                         `gorm:"column:name;type:VARCHAR(255)" json:"name"`
	Description  string                                         `gorm:"column:description;type:TEXT" json:"description"`
	Action       string                                         `gorm:"column:action;type:VARCHAR(32)" json:"action"` // pending/start/stop/resume/delete/error
	CurrentStep  *string                                        `gorm:"column:current_step;type:VARCHAR(64)" json:"currentStep"`
	DefaultAgent datatypes.JSONType[StepAgentConfig]            `gorm:"column:default_agent;type:JSON" json:"defaultAgent"`
	StepAgents   datatypes.JSONType[map[string]StepAgentConfig] `gorm:"column:step_agents;type:JSON" json:"stepAgents"`
	IgnoreSteps  datatypes.JSONSlice[string]                    `gorm:"column:ignore_steps;type:JSON" json:"ignoreSteps"`
	StartFrom    *string                                        `gorm:"column:start_from;type:VARCHAR(64)" json:"startFrom"`
	ExecuteOnly  *string                                        `gorm:"column:execute_only;type:VARCHAR(64)" json:"executeOnly"`
	Error        *string                                        `gorm:"column:error;type:TEXT" json:"error"`
	Epoch        int64                                          `gorm:"column:epoch;type:BIGINT" json:"epoch"` // bumped on every start/resume
}

func (MigrationAction) TableName() string {
	return "t_migrations"
}

// StepAgentConfig selects the execution backend for a step.
// Kind is a closed set; unknown kinds are rejected at the API boundary.
type StepAgentConfig struct {
	Name     string            `json:"name,omitempty"`
	Kind     string            `json:"kind,omitempty"` // http/container/command
	Endpoint string            `json:"endpoint,omitempty"`
	Model    string            `json:"model,omitempty"`
	Options  map[string]string `json:"options,omitempty"`
}

const (
	ActionPending = "pending"
	ActionStart   = "start"
	ActionStop    = "stop"
	ActionResume  = "resume"
	ActionDelete  = "delete"
	ActionError   = "error"
)

const (
	AgentKindHTTP      = "http"
	AgentKindContainer = "container"
	AgentKindCommand   = "command"
)

// ValidAction reports whether s is a known action value.
func ValidAction(s string) bool {
	switch s {
	case ActionPending, ActionStart, ActionStop, ActionResume, ActionDelete, ActionError:
		return true
	}
	return false
}

// ValidAgentKind reports whether s is a known execution backend kind.
func ValidAgentKind(s string) bool {
	switch s {
	case AgentKindHTTP, AgentKindContainer, AgentKindCommand:
		return true
	}
	return false
}

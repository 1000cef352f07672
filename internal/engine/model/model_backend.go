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

// AgentBackend 执行后端注册表
// The registry StepAgentConfig.Name refers to.
type AgentBackend struct {
	BaseModel
	BackendId     string `gorm:"column:backend_id;type:VARCHAR(64);uniqueIndex" json:"backendId"`
	Name          string `gorm:"column:name;type:VARCHAR(128);uniqueIndex" json:"name"`
	Kind          string `gorm:"column:kind;type:VARCHAR(32)" json:"kind"` // http/container/command
	Endpoint      string `gorm:"column:endpoint;type:VARCHAR(512)" json:"endpoint"`
	DefaultModel  string `gorm:"column:default_model;type:VARCHAR(128)" json:"defaultModel"`
	Status        int    `gorm:"column:status" json:"status"` // 1:online 2:offline
	LastHeartbeat int64  `gorm:"column:last_heartbeat;type:BIGINT" json:"lastHeartbeat"`
	IsEnabled     int    `gorm:"column:is_enabled" json:"isEnabled"` // 0: disabled, 1: enabled
}

func (AgentBackend) TableName() string {
	return "t_agent_backends"
}

const (
	BackendStatusOnline  = 1
	BackendStatusOffline = 2
)

// Credential 后端访问凭证
// Value is chacha20poly1305-encrypted at rest; only GetValue decrypts.
type Credential struct {
	BaseModel
	CredentialId string `gorm:"column:credential_id;type:VARCHAR(64);uniqueIndex" json:"credentialId"`
	Name         string `gorm:"column:name;type:VARCHAR(128)" json:"name"`
	Scope        string `gorm:"column:scope;type:VARCHAR(128);index" json:"scope"` // backend name the credential belongs to
	Value        []byte `gorm:"column:value;type:BLOB" json:"-"`
	Description  string `gorm:"column:description;type:TEXT" json:"description"`
}

func (Credential) TableName() string {
	return "t_credentials"
}

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

// NotifyChannel 通知渠道表
type NotifyChannel struct {
	BaseModel
	ChannelId   string `gorm:"column:channel_id;type:VARCHAR(64);uniqueIndex" json:"channelId"`
	Name        string `gorm:"column:name;type:VARCHAR(128);uniqueIndex" json:"name"`
	ChannelType string `gorm:"column:channel_type;type:VARCHAR(32)" json:"channelType"` // feishu/webhook
	Endpoint    string `gorm:"column:endpoint;type:VARCHAR(512)" json:"endpoint"`
	Secret      string `gorm:"column:secret;type:VARCHAR(255)" json:"-"`
	IsEnabled   int    `gorm:"column:is_enabled" json:"isEnabled"` // 0: disabled, 1: enabled
}

func (NotifyChannel) TableName() string {
	return "t_notify_channels"
}

const (
	ChannelTypeFeishu  = "feishu"
	ChannelTypeWebhook = "webhook"
)

// NotifyRule 通知规则表
// Condition is an expr-lang expression over the transition environment
// {action, currentStep, error, projectId, progress}.
type NotifyRule struct {
	BaseModel
	RuleId     string `gorm:"column:rule_id;type:VARCHAR(64);uniqueIndex" json:"ruleId"`
	Name       string `gorm:"column:name;type:VARCHAR(128)" json:"name"`
	ProjectId  string `gorm:"column:project_id;type:VARCHAR(64);index" json:"projectId"`
	Condition  string `gorm:"column:condition;type:TEXT" json:"condition"`
	ChannelId  string `gorm:"column:channel_id;type:VARCHAR(64)" json:"channelId"`
	TemplateId string `gorm:"column:template_id;type:VARCHAR(64)" json:"templateId"`
	IsEnabled  int    `gorm:"column:is_enabled" json:"isEnabled"` // 0: disabled, 1: enabled
}

func (NotifyRule) TableName() string {
	return "t_notify_rules"
}

// NotifyTemplate 通知模板表
// Body carries {{var}} placeholders resolved against the rule environment.
type NotifyTemplate struct {
	BaseModel
	TemplateId string `gorm:"column:template_id;type:VARCHAR(64);uniqueIndex" json:"templateId"`
	Name       string `gorm:"column:name;type:VARCHAR(128)" json:"name"`
	Title      string `gorm:"column:title;type:VARCHAR(255)" json:"title"`
	Body       string `gorm:"column:body;type:TEXT" json:"body"`
}

func (NotifyTemplate) TableName() string {
	return "t_notify_templates"
}

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

package repo

import (
	"context"

	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/pkg/database"
)

// INotifyRepository defines notification channel, rule and template persistence.
type INotifyRepository interface {
	CreateChannel(ctx context.Context, channel *model.NotifyChannel) error
	GetChannel(ctx context.Context, channelId string) (*model.NotifyChannel, error)
	GetChannelByName(ctx context.Context, name string) (*model.NotifyChannel, error)
	ListEnabledChannels(ctx context.Context) ([]*model.NotifyChannel, error)
	UpdateChannel(ctx context.Context, channel *model.NotifyChannel) error
	DisableChannel(ctx context.Context, channelId string) error

	CreateRule(ctx context.Context, rule *model.NotifyRule) error
	ListEnabledRules(ctx context.Context, projectId string) ([]*model.NotifyRule, error)
	UpdateRule(ctx context.Context, rule *model.NotifyRule) error
	DeleteRule(ctx context.Context, ruleId string) error

	CreateTemplate(ctx context.Context, tmpl *model.NotifyTemplate) error
	GetTemplate(ctx context.Context, templateId string) (*model.NotifyTemplate, error)
	ListTemplates(ctx context.Context) ([]*model.NotifyTemplate, error)
	UpdateTemplate(ctx context.Context, tmpl *model.NotifyTemplate) error
	DeleteTemplate(ctx context.Context, templateId string) error
}

type NotifyRepo struct {
	database.IDatabase
}

func NewNotifyRepo(db database.IDatabase) INotifyRepository {
	return &NotifyRepo{
		IDatabase: db,
	}
}

// CreateChannel creates a new notify channel.
func (r *NotifyRepo) CreateChannel(ctx context.Context, channel *model.NotifyChannel) error {
	return r.Database().WithContext(ctx).Table(channel.TableName()).Create(channel).Error
}

// GetChannel returns channel by channelId.
func (r *NotifyRepo) GetChannel(ctx context.Context, channelId string) (*model.NotifyChannel, error) {
	var channel model.NotifyChannel
	err := r.Database().WithContext(ctx).
		Table(channel.TableName()).
		Where("channel_id = ?", channelId).
		First(&channel).Error
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// GetChannelByName returns channel by name.
func (r *NotifyRepo) GetChannelByName(ctx context.Context, name string) (*model.NotifyChannel, error) {
	var channel model.NotifyChannel
	err := r.Database().WithContext(ctx).
		Table(channel.TableName()).
		Where("name = ?", name).
		First(&channel).Error
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// ListEnabledChannels lists all enabled channels.
func (r *NotifyRepo) ListEnabledChannels(ctx context.Context) ([]*model.NotifyChannel, error) {
	var channels []*model.NotifyChannel
	err := r.Database().WithContext(ctx).
		Table((&model.NotifyChannel{}).TableName()).
		Where("is_enabled = ?", 1).
		Find(&channels).Error
	return channels, err
}

// UpdateChannel updates an existing channel.
func (r *NotifyRepo) UpdateChannel(ctx context.Context, channel *model.NotifyChannel) error {
	return r.Database().WithContext(ctx).
		Table(channel.TableName()).
		Where("channel_id = ?", channel.ChannelId).
		Omit("id", "channel_id", "created_at").
		Updates(channel).Error
}

// DisableChannel soft-disables channel by channelId.
func (r *NotifyRepo) DisableChannel(ctx context.Context, channelId string) error {
	return r.Database().WithContext(ctx).
		Table((&model.NotifyChannel{}).TableName()).
		Where("channel_id = ?", channelId).
		Update("is_enabled", 0).Error
}

// CreateRule creates a new notify rule.
func (r *NotifyRepo) CreateRule(ctx context.Context, rule *model.NotifyRule) error {
	return r.Database().WithContext(ctx).Table(rule.TableName()).Create(rule).Error
}

// ListEnabledRules lists enabled rules for a project; projectId "" means global rules only.
func (r *NotifyRepo) ListEnabledRules(ctx context.Context, projectId string) ([]*model.NotifyRule, error) {
	var rules []*model.NotifyRule
	tx := r.Database().WithContext(ctx).
		Table((&model.NotifyRule{}).TableName()).
		Where("is_enabled = ?", 1)
	if projectId != "" {
		tx = tx.Where("project_id = ? OR project_id = ''", projectId)
	} else {
		tx = tx.Where("project_id = ''")
	}
	err := tx.Find(&rules).Error
	return rules, err
}

// UpdateRule updates an existing rule.
func (r *NotifyRepo) UpdateRule(ctx context.Context, rule *model.NotifyRule) error {
	return r.Database().WithContext(ctx).
		Table(rule.TableName()).
		Where("rule_id = ?", rule.RuleId).
		Omit("id", "rule_id", "created_at").
		Updates(rule).Error
}

// DeleteRule deletes rule by ruleId.
func (r *NotifyRepo) DeleteRule(ctx context.Context, ruleId string) error {
	return r.Database().WithContext(ctx).
		Table((&model.NotifyRule{}).TableName()).
		Where("rule_id = ?", ruleId).
		Delete(&model.NotifyRule{}).Error
}

// CreateTemplate creates a new notify template.
func (r *NotifyRepo) CreateTemplate(ctx context.Context, tmpl *model.NotifyTemplate) error {
	return r.Database().WithContext(ctx).Table(tmpl.TableName()).Create(tmpl).Error
}

// GetTemplate returns template by templateId.
func (r *NotifyRepo) GetTemplate(ctx context.Context, templateId string) (*model.NotifyTemplate, error) {
	var tmpl model.NotifyTemplate
	err := r.Database().WithContext(ctx).
		Table(tmpl.TableName()).
		Where("template_id = ?", templateId).
		First(&tmpl).Error
	if err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// ListTemplates lists all templates.
func (r *NotifyRepo) ListTemplates(ctx context.Context) ([]*model.NotifyTemplate, error) {
	var tmpls []*model.NotifyTemplate
	err := r.Database().WithContext(ctx).
		Table((&model.NotifyTemplate{}).TableName()).
		Find(&tmpls).Error
	return tmpls, err
}

// UpdateTemplate updates an existing template.
func (r *NotifyRepo) UpdateTemplate(ctx context.Context, tmpl *model.NotifyTemplate) error {
	return r.Database().WithContext(ctx).
		Table(tmpl.TableName()).
		Where("template_id = ?", tmpl.TemplateId).
		Omit("id", "template_id", "created_at").
		Updates(tmpl).Error
}

// DeleteTemplate deletes template by templateId.
func (r *NotifyRepo) DeleteTemplate(ctx context.Context, templateId string) error {
	return r.Database().WithContext(ctx).
		Table((&model.NotifyTemplate{}).TableName()).
		Where("template_id = ?", templateId).
		Delete(&model.NotifyTemplate{}).Error
}

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
	"context"
	"errors"
	"fmt"

	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/internal/engine/repo"
	"github.com/molthq/molt/internal/pkg/notify"
	"github.com/molthq/molt/pkg/id"
	"github.com/molthq/molt/pkg/log"
	"gorm.io/gorm"
)

type CreateChannelReq struct {
	Name        string `json:"name"`
	ChannelType string `json:"channelType"`
	Endpoint    string `json:"endpoint"`
	Secret      string `json:"secret"`
}

type CreateRuleReq struct {
	Name       string `json:"name"`
	ProjectId  string `json:"projectId"`
	Condition  string `json:"condition"`
	ChannelId  string `json:"channelId"`
	TemplateId string `json:"templateId"`
}

type CreateTemplateReq struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NotifyService manages channels, rules and templates. Conditions and
// templates are validated at write time so the dispatcher only ever loads
// rules that can fire.
type NotifyService struct {
	notifyRepo repo.INotifyRepository
}

func NewNotifyService(services *Services) *NotifyService {
	return &NotifyService{
		notifyRepo: services.NotifyRepo,
	}
}

func (s *NotifyService) CreateChannel(ctx context.Context, req *CreateChannelReq) (*model.NotifyChannel, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("channel name is required")
	}
	if req.ChannelType != model.ChannelTypeFeishu && req.ChannelType != model.ChannelTypeWebhook {
		return nil, fmt.Errorf("unsupported channel type: %s", req.ChannelType)
	}
	if req.Endpoint == "" {
		return nil, fmt.Errorf("channel endpoint is required")
	}

	if _, err := s.notifyRepo.GetChannelByName(ctx, req.Name); err == nil {
		return nil, fmt.Errorf("channel name already exists: %s", req.Name)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorw("check channel name failed", "name", req.Name, "error", err)
		return nil, fmt.Errorf("check channel name failed: %w", err)
	}

	ch := &model.NotifyChannel{
		ChannelId:   id.GetUild(),
		Name:        req.Name,
		ChannelType: req.ChannelType,
		Endpoint:    req.Endpoint,
		Secret:      req.Secret,
		IsEnabled:   1,
	}
	if err := s.notifyRepo.CreateChannel(ctx, ch); err != nil {
		log.Errorw("create channel failed", "name", req.Name, "error", err)
		return nil, fmt.Errorf("create channel failed: %w", err)
	}

	log.Infow("success create notify channel", "channelId", ch.ChannelId, "type", ch.ChannelType)
	return ch, nil
}

func (s *NotifyService) GetChannel(ctx context.Context, channelId string) (*model.NotifyChannel, error) {
	ch, err := s.notifyRepo.GetChannel(ctx, channelId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("channel not found: %s", channelId)
		}
		return nil, fmt.Errorf("get channel failed: %w", err)
	}
	return ch, nil
}

func (s *NotifyService) ListChannels(ctx context.Context) ([]*model.NotifyChannel, error) {
	return s.notifyRepo.ListEnabledChannels(ctx)
}

func (s *NotifyService) DisableChannel(ctx context.Context, channelId string) error {
	if _, err := s.GetChannel(ctx, channelId); err != nil {
		return err
	}
	if err := s.notifyRepo.DisableChannel(ctx, channelId); err != nil {
		log.Errorw("disable channel failed", "channelId", channelId, "error", err)
		return fmt.Errorf("disable channel failed: %w", err)
	}
	log.Infow("success disable notify channel", "channelId", channelId)
	return nil
}

func (s *NotifyService) CreateRule(ctx context.Context, req *CreateRuleReq) (*model.NotifyRule, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("rule name is required")
	}
	if req.ChannelId == "" {
		return nil, fmt.Errorf("rule channel is required")
	}
	if err := s.validateRule(ctx, req.Condition, req.ChannelId, req.TemplateId); err != nil {
		return nil, err
	}

	rule := &model.NotifyRule{
		RuleId:     id.GetUild(),
		Name:       req.Name,
		ProjectId:  req.ProjectId,
		Condition:  req.Condition,
		ChannelId:  req.ChannelId,
		TemplateId: req.TemplateId,
		IsEnabled:  1,
	}
	if err := s.notifyRepo.CreateRule(ctx, rule); err != nil {
		log.Errorw("create rule failed", "name", req.Name, "error", err)
		return nil, fmt.Errorf("create rule failed: %w", err)
	}

	log.Infow("success create notify rule", "ruleId", rule.RuleId, "projectId", rule.ProjectId)
	return rule, nil
}

func (s *NotifyService) ListRules(ctx context.Context, projectId string) ([]*model.NotifyRule, error) {
	return s.notifyRepo.ListEnabledRules(ctx, projectId)
}

func (s *NotifyService) UpdateRule(ctx context.Context, rule *model.NotifyRule) (*model.NotifyRule, error) {
	if rule.RuleId == "" {
		return nil, fmt.Errorf("rule id is required")
	}
	if err := s.validateRule(ctx, rule.Condition, rule.ChannelId, rule.TemplateId); err != nil {
		return nil, err
	}
	if err := s.notifyRepo.UpdateRule(ctx, rule); err != nil {
		log.Errorw("update rule failed", "ruleId", rule.RuleId, "error", err)
		return nil, fmt.Errorf("update rule failed: %w", err)
	}
	log.Infow("success update notify rule", "ruleId", rule.RuleId)
	return rule, nil
}

func (s *NotifyService) DeleteRule(ctx context.Context, ruleId string) error {
	if err := s.notifyRepo.DeleteRule(ctx, ruleId); err != nil {
		log.Errorw("delete rule failed", "ruleId", ruleId, "error", err)
		return fmt.Errorf("delete rule failed: %w", err)
	}
	log.Infow("success delete notify rule", "ruleId", ruleId)
	return nil
}

func (s *NotifyService) CreateTemplate(ctx context.Context, req *CreateTemplateReq) (*model.NotifyTemplate, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("template name is required")
	}
	if err := notify.ValidateTemplate(req.Title); err != nil {
		return nil, fmt.Errorf("invalid template title: %w", err)
	}
	if err := notify.ValidateTemplate(req.Body); err != nil {
		return nil, fmt.Errorf("invalid template body: %w", err)
	}

	tmpl := &model.NotifyTemplate{
		TemplateId: id.GetUild(),
		Name:       req.Name,
		Title:      req.Title,
		Body:       req.Body,
	}
	if err := s.notifyRepo.CreateTemplate(ctx, tmpl); err != nil {
		log.Errorw("create template failed", "name", req.Name, "error", err)
		return nil, fmt.Errorf("create template failed: %w", err)
	}

	log.Infow("success create notify template", "templateId", tmpl.TemplateId)
	return tmpl, nil
}

func (s *NotifyService) GetTemplate(ctx context.Context, templateId string) (*model.NotifyTemplate, error) {
	tmpl, err := s.notifyRepo.GetTemplate(ctx, templateId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("template not found: %s", templateId)
		}
		return nil, fmt.Errorf("get template failed: %w", err)
	}
	return tmpl, nil
}

func (s *NotifyService) ListTemplates(ctx context.Context) ([]*model.NotifyTemplate, error) {
	return s.notifyRepo.ListTemplates(ctx)
}

func (s *NotifyService) UpdateTemplate(ctx context.Context, tmpl *model.NotifyTemplate) (*model.NotifyTemplate, error) {
	if tmpl.TemplateId == "" {
		return nil, fmt.Errorf("template id is required")
	}
	if err := notify.ValidateTemplate(tmpl.Title); err != nil {
		return nil, fmt.Errorf("invalid template title: %w", err)
	}
	if err := notify.ValidateTemplate(tmpl.Body); err != nil {
		return nil, fmt.Errorf("invalid template body: %w", err)
	}
	if err := s.notifyRepo.UpdateTemplate(ctx, tmpl); err != nil {
		log.Errorw("update template failed", "templateId", tmpl.TemplateId, "error", err)
		return nil, fmt.Errorf("update template failed: %w", err)
	}
	log.Infow("success update notify template", "templateId", tmpl.TemplateId)
	return tmpl, nil
}

func (s *NotifyService) DeleteTemplate(ctx context.Context, templateId string) error {
	if err := s.notifyRepo.DeleteTemplate(ctx, templateId); err != nil {
		log.Errorw("delete template failed", "templateId", templateId, "error", err)
		return fmt.Errorf("delete template failed: %w", err)
	}
	log.Infow("success delete notify template", "templateId", templateId)
	return nil
}

// validateRule rejects rules whose condition does not compile or whose
// channel or template cannot be loaded. A rule that passes here can always
// be evaluated by the dispatcher.
func (s *NotifyService) validateRule(ctx context.Context, condition, channelId, templateId string) error {
	if condition != "" {
		if _, err := notify.CompileCondition(condition); err != nil {
			return fmt.Errorf("invalid rule condition: %w", err)
		}
	}
	if _, err := s.GetChannel(ctx, channelId); err != nil {
		return err
	}
	if templateId != "" {
		if _, err := s.GetTemplate(ctx, templateId); err != nil {
			return err
		}
	}
	return nil
}

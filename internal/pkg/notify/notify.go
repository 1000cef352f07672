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

// Package notify evaluates rule conditions against record transitions and
// delivers rendered notifications through the configured channels. A fired
// rule is never retried: delivery failures are logged and dropped, matching
// the command-failure semantics of the rest of the engine.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/expr-lang/expr/vm"
	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/internal/engine/repo"
	"github.com/molthq/molt/internal/pkg/notify/channel"
	"github.com/molthq/molt/pkg/log"
)

const defaultSendTimeout = 10 * time.Second

// defaultTitle and defaultBody are used when a rule carries no template.
const (
	defaultTitle = "Migration {{action}}"
	defaultBody  = "Project {{projectId}} is at step {{currentStep}} ({{progress}}%). {{error}}"
)

type compiledCondition struct {
	src     string
	program *vm.Program
}

type cachedChannel struct {
	fingerprint string
	ch          channel.IChannel
}

// Dispatcher fans record transitions out to matching notify rules.
type Dispatcher struct {
	notifyRepo repo.INotifyRepository
	enabled    bool
	timeout    time.Duration

	mu       sync.Mutex
	programs map[string]*compiledCondition // ruleId -> compiled condition
	channels map[string]*cachedChannel     // channelId -> transport
}

func NewDispatcher(notifyRepo repo.INotifyRepository, enabled bool, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Dispatcher{
		notifyRepo: notifyRepo,
		enabled:    enabled,
		timeout:    timeout,
		programs:   make(map[string]*compiledCondition),
		channels:   make(map[string]*cachedChannel),
	}
}

// HandleTransition evaluates every enabled rule for the record's project
// against the transition and sends a notification per matching rule.
// Per-rule failures are logged and skipped so one bad rule cannot starve
// the rest.
func (d *Dispatcher) HandleTransition(ctx context.Context, record *model.MigrationAction, progress int) error {
	if !d.enabled || record == nil {
		return nil
	}

	rules, err := d.notifyRepo.ListEnabledRules(ctx, record.ProjectId)
	if err != nil {
		log.Errorw("list notify rules failed", "projectId", record.ProjectId, "error", err)
		return fmt.Errorf("list notify rules failed: %w", err)
	}
	if len(rules) == 0 {
		return nil
	}

	env := Env{
		Action:      record.Action,
		ProjectId:   record.ProjectId,
		Progress:    progress,
		CurrentStep: stringValue(record.CurrentStep),
		Error:       stringValue(record.Error),
	}

	for _, rule := range rules {
		matched, err := d.matches(rule, env)
		if err != nil {
			log.Warnw("notify rule condition failed", "ruleId", rule.RuleId, "condition", rule.Condition, "error", err)
			continue
		}
		if !matched {
			continue
		}
		if err := d.fire(ctx, rule, env); err != nil {
			log.Warnw("notify send failed", "ruleId", rule.RuleId, "channelId", rule.ChannelId,
				"migrationId", record.MigrationId, "error", err)
		}
	}
	return nil
}

// matches evaluates the rule condition. An empty condition matches every
// transition.
func (d *Dispatcher) matches(rule *model.NotifyRule, env Env) (bool, error) {
	if rule.Condition == "" {
		return true, nil
	}
	program, err := d.program(rule)
	if err != nil {
		return false, err
	}
	return EvalCondition(program, env)
}

// program returns the compiled condition for the rule, recompiling when
// the stored text changed since the last evaluation.
func (d *Dispatcher) program(rule *model.NotifyRule) (*vm.Program, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.programs[rule.RuleId]; ok && c.src == rule.Condition {
		return c.program, nil
	}
	program, err := CompileCondition(rule.Condition)
	if err != nil {
		return nil, err
	}
	d.programs[rule.RuleId] = &compiledCondition{src: rule.Condition, program: program}
	return program, nil
}

func (d *Dispatcher) fire(ctx context.Context, rule *model.NotifyRule, env Env) error {
	title, body, err := d.render(ctx, rule, env)
	if err != nil {
		return err
	}

	ch, err := d.transport(ctx, rule.ChannelId)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return ch.Send(sendCtx, title, body)
}

func (d *Dispatcher) render(ctx context.Context, rule *model.NotifyRule, env Env) (string, string, error) {
	title, body := defaultTitle, defaultBody
	if rule.TemplateId != "" {
		tmpl, err := d.notifyRepo.GetTemplate(ctx, rule.TemplateId)
		if err != nil {
			return "", "", fmt.Errorf("load template %s: %w", rule.TemplateId, err)
		}
		title, body = tmpl.Title, tmpl.Body
	}
	data := env.Data()
	return Render(title, data), Render(body, data), nil
}

// transport returns the channel transport for channelId, rebuilding it
// when the channel row changed since the last send.
func (d *Dispatcher) transport(ctx context.Context, channelId string) (channel.IChannel, error) {
	row, err := d.notifyRepo.GetChannel(ctx, channelId)
	if err != nil {
		return nil, fmt.Errorf("load channel %s: %w", channelId, err)
	}
	if row.IsEnabled != 1 {
		return nil, fmt.Errorf("channel %s is disabled", channelId)
	}

	fingerprint := row.ChannelType + "\x00" + row.Endpoint + "\x00" + row.Secret

	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.channels[channelId]; ok && c.fingerprint == fingerprint {
		return c.ch, nil
	}
	ch, err := channel.New(row)
	if err != nil {
		return nil, err
	}
	if old, ok := d.channels[channelId]; ok {
		_ = old.ch.Close()
	}
	d.channels[channelId] = &cachedChannel{fingerprint: fingerprint, ch: ch}
	return ch, nil
}

// Close releases the cached channel transports.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.channels {
		_ = c.ch.Close()
	}
	d.channels = make(map[string]*cachedChannel)
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

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

// Package plan parses and validates migration plan documents. A plan is
// everything CreateMigration can seed before the first start; it never
// carries commands.
package plan

import (
	"fmt"
	"strings"

	"github.com/molthq/molt/internal/engine/catalog"
	"github.com/molthq/molt/internal/engine/model"
)

// Document is a parsed migration plan.
type Document struct {
	Description  string                           `json:"description,omitempty"`
	DefaultAgent *model.StepAgentConfig           `json:"defaultAgent,omitempty"`
	StepAgents   map[string]model.StepAgentConfig `json:"stepAgents,omitempty"`
	IgnoreSteps  []string                         `json:"ignoreSteps,omitempty"`
	StartFrom    string                           `json:"startFrom,omitempty"`
	Chat         []ChatSeed                       `json:"chat,omitempty"`
}

// ChatSeed is one configuration chat message seeded at create time.
// Role defaults to user.
type ChatSeed struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content"`
}

// Validate checks the document against the step catalog: unknown steps,
// sentinels used as pins, duplicate ignores and unknown agent kinds are
// all rejected before anything reaches the record.
func (d *Document) Validate() error {
	if d == nil {
		return fmt.Errorf("plan is nil")
	}
	if d.DefaultAgent != nil {
		if err := validateAgent("defaultAgent", *d.DefaultAgent); err != nil {
			return err
		}
	}
	for step, agent := range d.StepAgents {
		if err := catalog.ValidateStep(step); err != nil {
			return fmt.Errorf("stepAgents: %w", err)
		}
		if err := validateAgent("stepAgents."+step, agent); err != nil {
			return err
		}
	}
	if err := catalog.ValidateIgnoreSteps(d.IgnoreSteps); err != nil {
		return fmt.Errorf("ignoreSteps: %w", err)
	}
	if d.StartFrom != "" {
		if err := catalog.ValidateStep(d.StartFrom); err != nil {
			return fmt.Errorf("startFrom: %w", err)
		}
	}
	for i, seed := range d.Chat {
		if strings.TrimSpace(seed.Content) == "" {
			return fmt.Errorf("chat[%d]: content is required", i)
		}
		if seed.Role != "" && !model.ValidChatRole(seed.Role) {
			return fmt.Errorf("chat[%d]: unknown role '%s'", i, seed.Role)
		}
	}
	return nil
}

func validateAgent(field string, agent model.StepAgentConfig) error {
	if agent.Kind != "" && !model.ValidAgentKind(agent.Kind) {
		return fmt.Errorf("%s: unknown agent kind '%s'", field, agent.Kind)
	}
	return nil
}

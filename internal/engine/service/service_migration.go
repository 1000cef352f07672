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
	"strings"
	"time"

	"github.com/molthq/molt/internal/engine/catalog"
	"github.com/molthq/molt/internal/engine/feed"
	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/internal/engine/repo"
	"github.com/molthq/molt/internal/pkg/plan"
	"github.com/molthq/molt/pkg/event"
	"github.com/molthq/molt/pkg/id"
	"github.com/molthq/molt/pkg/log"
	"github.com/molthq/molt/pkg/nova"
	"github.com/molthq/molt/pkg/taskqueue"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MigrationTransition is published on the process event bus after every
// successful record write. Notify rules evaluate against it.
type MigrationTransition struct {
	Record   *model.MigrationAction
	Progress int
}

func (MigrationTransition) EventName() string { return "migration.transition" }

// MigrationDetail is the read model served by the API: the record plus
// the two derived counters. Progress is positional; completedStepsCount
// comes from the latest ProcessResult and may disagree with it.
type MigrationDetail struct {
	*model.MigrationAction
	Progress            int `json:"progress"`
	CompletedStepsCount int `json:"completedStepsCount"`
}

type CreateMigrationReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Plan optionally seeds the configuration from a YAML or JSON
	// document: defaultAgent, stepAgents, ignoreSteps, startFrom,
	// description and chat seed messages.
	Plan string `json:"plan,omitempty"`
}

// MigrationService owns the migration record: commands flip the action
// field, configuration calls merge individual columns. Every mutation is
// a partial Updates(map) so engine and agent writes compose.
type MigrationService struct {
	migrationRepo repo.IMigrationRepository
	resultRepo    repo.IResultRepository
	chatRepo      repo.IChatRepository
	projectRepo   repo.IProjectRepository
	feed          feed.Bus
	events        *event.Bus
	queue         nova.TaskQueue
}

func NewMigrationService(services *Services) *MigrationService {
	return &MigrationService{
		migrationRepo: services.MigrationRepo,
		resultRepo:    services.ResultRepo,
		chatRepo:      services.ChatRepo,
		projectRepo:   services.ProjectRepo,
		feed:          services.Feed,
		events:        services.Events,
		queue:         services.Queue,
	}
}

// CreateMigration registers a new migration under a project. The record
// starts in the configuration sentinel with action pending; nothing runs
// until an explicit Start.
func (s *MigrationService) CreateMigration(ctx context.Context, projectId string, req *CreateMigrationReq) (*MigrationDetail, error) {
	if req == nil || strings.TrimSpace(projectId) == "" || strings.TrimSpace(req.Name) == "" {
		return nil, errors.New("projectId and name are required")
	}
	exists, err := s.projectRepo.Exists(ctx, projectId)
	if err != nil {
		log.Errorw("check project exists failed", "projectId", projectId, "error", err)
		return nil, fmt.Errorf("check project exists failed: %w", err)
	}
	if !exists {
		return nil, errors.New("project not found")
	}

	initial := catalog.SentinelConfiguration
	record := &model.MigrationAction{
		MigrationId: id.GetUild(),
		ProjectId:   projectId,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Action:      model.ActionPending,
		CurrentStep: &initial,
	}

	var doc *plan.Document
	if strings.TrimSpace(req.Plan) != "" {
		doc, err = plan.Parse([]byte(req.Plan))
		if err != nil {
			return nil, fmt.Errorf("parse plan failed: %w", err)
		}
		if err := doc.Validate(); err != nil {
			return nil, fmt.Errorf("invalid plan: %w", err)
		}
		applyPlan(record, doc)
	}

	if err := s.migrationRepo.Create(ctx, record); err != nil {
		log.Errorw("create migration failed", "projectId", projectId, "name", record.Name, "error", err)
		return nil, fmt.Errorf("create migration failed: %w", err)
	}

	if doc != nil {
		now := time.Now().UnixMilli()
		for _, seed := range doc.Chat {
			role := seed.Role
			if role == "" {
				role = model.ChatRoleUser
			}
			msg := &model.ConfigChatMessage{
				MessageId:   id.GetXid(),
				MigrationId: record.MigrationId,
				Role:        role,
				Content:     seed.Content,
				Timestamp:   now,
			}
			if err := s.chatRepo.Append(ctx, msg); err != nil {
				log.Warnw("seed chat message failed", "migrationId", record.MigrationId, "error", err)
			}
			now++
		}
	}

	log.Infow("success create migration", "migrationId", record.MigrationId, "projectId", projectId, "name", record.Name)
	s.fanout(ctx, record)
	return &MigrationDetail{MigrationAction: record, Progress: recordProgress(record)}, nil
}

// GetMigration returns the record with progress and completedStepsCount.
// Unknown ids return (nil, nil).
func (s *MigrationService) GetMigration(ctx context.Context, migrationId string) (*MigrationDetail, error) {
	record, err := s.migrationRepo.Get(ctx, migrationId)
	if err != nil {
		log.Errorw("get migration failed", "migrationId", migrationId, "error", err)
		return nil, fmt.Errorf("get migration failed: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	detail := &MigrationDetail{MigrationAction: record, Progress: recordProgress(record)}
	latest, err := s.resultRepo.LatestProcessResult(ctx, migrationId)
	if err != nil {
		log.Warnw("load latest process result failed", "migrationId", migrationId, "error", err)
	} else if latest != nil {
		detail.CompletedStepsCount = len(latest.StepsCompleted)
	}
	return detail, nil
}

// ListMigrations lists records with per-item progress. The heavier
// completedStepsCount is served by GetMigration only.
func (s *MigrationService) ListMigrations(ctx context.Context, query *repo.MigrationQuery) ([]*MigrationDetail, int64, error) {
	list, total, err := s.migrationRepo.List(ctx, query)
	if err != nil {
		log.Errorw("list migrations failed", "error", err)
		return nil, 0, fmt.Errorf("list migrations failed: %w", err)
	}
	out := make([]*MigrationDetail, 0, len(list))
	for _, m := range list {
		out = append(out, &MigrationDetail{MigrationAction: m, Progress: recordProgress(m)})
	}
	return out, total, nil
}

// Apply merges an arbitrary column patch onto the record. The store
// stamps updated_at on every write; nil values clear columns to NULL.
// Unknown ids match zero rows and are a silent no-op.
func (s *MigrationService) Apply(ctx context.Context, migrationId string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	_, err := s.patch(ctx, migrationId, updates)
	return err
}

// Start requests execution. A new start clears the error and opens a new
// run epoch.
func (s *MigrationService) Start(ctx context.Context, migrationId string) error {
	record, err := s.patch(ctx, migrationId, map[string]any{
		"action": model.ActionStart,
		"error":  nil,
		"epoch":  gorm.Expr("epoch + 1"),
	})
	if err != nil {
		return err
	}
	s.ringDoorbell(ctx, record)
	return nil
}

// Stop asks the worker to halt between steps. The worker keeps the last
// currentStep; a later Resume picks up from it.
func (s *MigrationService) Stop(ctx context.Context, migrationId string) error {
	record, err := s.patch(ctx, migrationId, map[string]any{
		"action": model.ActionStop,
	})
	if err != nil {
		return err
	}
	s.ringDoorbell(ctx, record)
	return nil
}

// Resume continues a stopped run from the recorded currentStep.
func (s *MigrationService) Resume(ctx context.Context, migrationId string) error {
	record, err := s.patch(ctx, migrationId, map[string]any{
		"action": model.ActionResume,
		"epoch":  gorm.Expr("epoch + 1"),
	})
	if err != nil {
		return err
	}
	s.ringDoorbell(ctx, record)
	return nil
}

// Delete marks the record for deletion. The row stays until the janitor
// collects it; workers observing the mark halt and never write again.
func (s *MigrationService) Delete(ctx context.Context, migrationId string) error {
	record, err := s.patch(ctx, migrationId, map[string]any{
		"action": model.ActionDelete,
	})
	if err != nil {
		return err
	}
	s.ringDoorbell(ctx, record)
	return nil
}

// RerunStep re-executes exactly one step. The pin and the start action
// land in a single write so no observer ever sees one without the other.
func (s *MigrationService) RerunStep(ctx context.Context, migrationId, step string) error {
	if err := catalog.ValidateStep(step); err != nil {
		return err
	}
	record, err := s.patch(ctx, migrationId, map[string]any{
		"execute_only": step,
		"action":       model.ActionStart,
		"description":  fmt.Sprintf("Re-running step: %s", step),
		"error":        nil,
		"epoch":        gorm.Expr("epoch + 1"),
	})
	if err != nil {
		return err
	}
	s.ringDoorbell(ctx, record)
	return nil
}

// SetDefaultAgent replaces the fallback execution backend.
func (s *MigrationService) SetDefaultAgent(ctx context.Context, migrationId string, agent model.StepAgentConfig) error {
	if agent.Kind != "" && !model.ValidAgentKind(agent.Kind) {
		return fmt.Errorf("unknown agent kind: %s", agent.Kind)
	}
	_, err := s.patch(ctx, migrationId, map[string]any{
		"default_agent": datatypes.NewJSONType(agent),
	})
	return err
}

// SetStepAgent overrides the backend for one step. The current map is
// read first and only the one key replaced, so concurrent overrides for
// other steps survive.
func (s *MigrationService) SetStepAgent(ctx context.Context, migrationId, step string, agent model.StepAgentConfig) error {
	if err := catalog.ValidateStep(step); err != nil {
		return err
	}
	if agent.Kind != "" && !model.ValidAgentKind(agent.Kind) {
		return fmt.Errorf("unknown agent kind: %s", agent.Kind)
	}
	record, err := s.migrationRepo.Get(ctx, migrationId)
	if err != nil {
		log.Errorw("get migration failed", "migrationId", migrationId, "error", err)
		return fmt.Errorf("get migration failed: %w", err)
	}
	if record == nil {
		return nil
	}
	merged := record.StepAgents.Data()
	if merged == nil {
		merged = map[string]model.StepAgentConfig{}
	}
	merged[step] = agent
	_, err = s.patch(ctx, migrationId, map[string]any{
		"step_agents": datatypes.NewJSONType(merged),
	})
	return err
}

// RemoveStepAgent drops one step override, preserving the others.
func (s *MigrationService) RemoveStepAgent(ctx context.Context, migrationId, step string) error {
	if err := catalog.ValidateStep(step); err != nil {
		return err
	}
	record, err := s.migrationRepo.Get(ctx, migrationId)
	if err != nil {
		log.Errorw("get migration failed", "migrationId", migrationId, "error", err)
		return fmt.Errorf("get migration failed: %w", err)
	}
	if record == nil {
		return nil
	}
	merged := record.StepAgents.Data()
	if _, ok := merged[step]; !ok {
		return nil
	}
	delete(merged, step)
	_, err = s.patch(ctx, migrationId, map[string]any{
		"step_agents": datatypes.NewJSONType(merged),
	})
	return err
}

// SetIgnoreSteps replaces the skip set with exactly the given steps.
// Full replace is the documented exception to merge semantics: the
// caller submits the complete desired set.
func (s *MigrationService) SetIgnoreSteps(ctx context.Context, migrationId string, steps []string) error {
	if err := catalog.ValidateIgnoreSteps(steps); err != nil {
		return err
	}
	if steps == nil {
		steps = []string{}
	}
	_, err := s.patch(ctx, migrationId, map[string]any{
		"ignore_steps": datatypes.NewJSONSlice(steps),
	})
	return err
}

// SetStartFrom pins where the next start begins. Empty clears the pin
// to NULL.
func (s *MigrationService) SetStartFrom(ctx context.Context, migrationId, step string) error {
	if step == "" {
		_, err := s.patch(ctx, migrationId, map[string]any{"start_from": nil})
		return err
	}
	if err := catalog.ValidateStep(step); err != nil {
		return err
	}
	_, err := s.patch(ctx, migrationId, map[string]any{"start_from": step})
	return err
}

// SetExecuteOnly pins the next start to a single step. Empty clears the
// pin to NULL.
func (s *MigrationService) SetExecuteOnly(ctx context.Context, migrationId, step string) error {
	if step == "" {
		_, err := s.patch(ctx, migrationId, map[string]any{"execute_only": nil})
		return err
	}
	if err := catalog.ValidateStep(step); err != nil {
		return err
	}
	_, err := s.patch(ctx, migrationId, map[string]any{"execute_only": step})
	return err
}

// patch merges updates onto the record, then reloads and fans the fresh
// row out to the feed and the event bus. Unknown ids match zero rows and
// return (nil, nil) without side effects.
func (s *MigrationService) patch(ctx context.Context, migrationId string, updates map[string]any) (*model.MigrationAction, error) {
	rows, err := s.migrationRepo.Patch(ctx, migrationId, updates)
	if err != nil {
		log.Errorw("patch migration failed", "migrationId", migrationId, "error", err)
		return nil, fmt.Errorf("patch migration failed: %w", err)
	}
	if rows == 0 {
		log.Debugw("patch matched no migration", "migrationId", migrationId)
		return nil, nil
	}
	record, err := s.migrationRepo.Get(ctx, migrationId)
	if err != nil || record == nil {
		// The write landed; losing the reload only costs the fanout.
		log.Warnw("reload migration after patch failed", "migrationId", migrationId, "error", err)
		return nil, nil
	}
	s.fanout(ctx, record)
	return record, nil
}

// fanout publishes the fresh record to its change feed and the process
// event bus. Both are best effort; the row is already committed.
func (s *MigrationService) fanout(ctx context.Context, record *model.MigrationAction) {
	if s.feed != nil {
		if err := s.feed.Publish(ctx, feed.MigrationFeed(record.MigrationId), record); err != nil {
			log.Warnw("publish migration feed failed", "migrationId", record.MigrationId, "error", err)
		}
	}
	if s.events != nil {
		s.events.Publish(MigrationTransition{Record: record, Progress: recordProgress(record)})
	}
}

// ringDoorbell nudges agents to re-poll after a command write. Best
// effort: a missed doorbell is covered by the agent poll loop.
func (s *MigrationService) ringDoorbell(ctx context.Context, record *model.MigrationAction) {
	if s.queue == nil || record == nil {
		return
	}
	payload := &taskqueue.MigrationRunTaskPayload{
		ProjectId:   record.ProjectId,
		MigrationId: record.MigrationId,
		Action:      record.Action,
		StartFrom:   strValue(record.StartFrom),
		ExecuteOnly: strValue(record.ExecuteOnly),
		Epoch:       record.Epoch,
	}
	task, err := nova.NewTask(taskqueue.TaskTypeMigrationRun, payload)
	if err != nil {
		log.Warnw("build doorbell task failed", "migrationId", record.MigrationId, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, task, nova.WithTaskID(taskqueue.MigrationRunKey(payload))); err != nil {
		log.Warnw("publish doorbell task failed", "migrationId", record.MigrationId, "error", err)
	}
}

// applyPlan seeds record configuration from a parsed plan document.
func applyPlan(record *model.MigrationAction, doc *plan.Document) {
	if doc.Description != "" {
		record.Description = doc.Description
	}
	if doc.DefaultAgent != nil {
		record.DefaultAgent = datatypes.NewJSONType(*doc.DefaultAgent)
	}
	if len(doc.StepAgents) > 0 {
		record.StepAgents = datatypes.NewJSONType(doc.StepAgents)
	}
	if len(doc.IgnoreSteps) > 0 {
		record.IgnoreSteps = datatypes.NewJSONSlice(doc.IgnoreSteps)
	}
	if doc.StartFrom != "" {
		startFrom := doc.StartFrom
		record.StartFrom = &startFrom
	}
}

func recordProgress(m *model.MigrationAction) int {
	if m == nil || m.CurrentStep == nil {
		return 0
	}
	return catalog.Progress(*m.CurrentStep)
}

func strValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

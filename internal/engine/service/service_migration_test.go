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
	"sync"
	"testing"

	"github.com/molthq/molt/internal/engine/feed"
	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/internal/engine/repo"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

// memMigrations applies patches the way the store does: partial column
// merge, nil clears to NULL, expressions bump in place. Every patch call
// is recorded so tests can assert write shapes.
type memMigrations struct {
	repo.IMigrationRepository
	mu      sync.Mutex
	records map[string]*model.MigrationAction
	patches []map[string]any
}

func newMemMigrations() *memMigrations {
	return &memMigrations{records: make(map[string]*model.MigrationAction)}
}

func (s *memMigrations) put(m *model.MigrationAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[m.MigrationId] = m
}

func (s *memMigrations) Create(_ context.Context, m *model.MigrationAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[m.MigrationId] = m
	return nil
}

func (s *memMigrations) Get(_ context.Context, migrationId string) (*model.MigrationAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.records[migrationId]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *memMigrations) Patch(_ context.Context, migrationId string, updates map[string]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.records[migrationId]
	if !ok {
		return 0, nil
	}
	s.patches = append(s.patches, updates)
	for col, v := range updates {
		applyColumn(m, col, v)
	}
	return 1, nil
}

func (s *memMigrations) patchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patches)
}

func (s *memMigrations) lastPatch() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.patches) == 0 {
		return nil
	}
	return s.patches[len(s.patches)-1]
}

func applyColumn(m *model.MigrationAction, col string, v any) {
	switch col {
	case "action":
		m.Action = v.(string)
	case "description":
		m.Description = v.(string)
	case "error":
		m.Error = toStrPtr(v)
	case "current_step":
		m.CurrentStep = toStrPtr(v)
	case "start_from":
		m.StartFrom = toStrPtr(v)
	case "execute_only":
		m.ExecuteOnly = toStrPtr(v)
	case "epoch":
		if _, ok := v.(clause.Expr); ok {
			m.Epoch++
		} else if n, ok := v.(int64); ok {
			m.Epoch = n
		}
	case "default_agent":
		m.DefaultAgent = v.(datatypes.JSONType[model.StepAgentConfig])
	case "step_agents":
		m.StepAgents = v.(datatypes.JSONType[map[string]model.StepAgentConfig])
	case "ignore_steps":
		m.IgnoreSteps = v.(datatypes.JSONSlice[string])
	}
}

func toStrPtr(v any) *string {
	if v == nil {
		return nil
	}
	s := v.(string)
	return &s
}

type stubProjects struct {
	repo.IProjectRepository
	exists bool
}

func (s *stubProjects) Exists(_ context.Context, _ string) (bool, error) {
	return s.exists, nil
}

type stubChats struct {
	repo.IChatRepository
	mu       sync.Mutex
	appended []*model.ConfigChatMessage
}

func (s *stubChats) Append(_ context.Context, msg *model.ConfigChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended = append(s.appended, msg)
	return nil
}

func (s *stubChats) List(_ context.Context, migrationId string) ([]*model.ConfigChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.ConfigChatMessage
	for _, m := range s.appended {
		if m.MigrationId == migrationId {
			out = append(out, m)
		}
	}
	return out, nil
}

type migrationFixture struct {
	svc        *MigrationService
	migrations *memMigrations
	chats      *stubChats
	bus        *fakeBus
}

func newMigrationFixture() *migrationFixture {
	migrations := newMemMigrations()
	chats := &stubChats{}
	bus := newFakeBus()
	services := &Services{
		MigrationRepo: migrations,
		ResultRepo:    &stubResults{},
		ChatRepo:      chats,
		ProjectRepo:   &stubProjects{exists: true},
		Feed:          bus,
	}
	return &migrationFixture{
		svc:        NewMigrationService(services),
		migrations: migrations,
		chats:      chats,
		bus:        bus,
	}
}

func (f *migrationFixture) seed(migrationId string) *model.MigrationAction {
	m := pendingRecord("p1", migrationId, "configuration")
	f.migrations.put(m)
	return m
}

func TestCreateMigrationDefaults(t *testing.T) {
	ctx := context.Background()
	f := newMigrationFixture()

	detail, err := f.svc.CreateMigration(ctx, "p1", &CreateMigrationReq{Name: "billing rewrite"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if detail.MigrationId == "" {
		t.Error("migration id not assigned")
	}
	if detail.Action != model.ActionPending {
		t.Errorf("action = %s, want pending", detail.Action)
	}
	if detail.CurrentStep == nil || *detail.CurrentStep != "configuration" {
		t.Errorf("currentStep = %v, want configuration", detail.CurrentStep)
	}
	if detail.Progress != 0 {
		t.Errorf("progress = %d, want 0 in configuration", detail.Progress)
	}
}

func TestCreateMigrationWithPlan(t *testing.T) {
	ctx := context.Background()
	f := newMigrationFixture()

	planDoc := `
description: from the plan
defaultAgent:
  kind: http
  endpoint: http://backend:9090
stepAgents:
  clone:
    kind: command
ignoreSteps: [business-analysis]
startFrom: inventory
chat:
  - content: first note
  - role: system
    content: second note
`
	detail, err := f.svc.CreateMigration(ctx, "p1", &CreateMigrationReq{Name: "planned", Plan: planDoc})
	if err != nil {
		t.Fatalf("create with plan: %v", err)
	}
	if detail.Description != "from the plan" {
		t.Errorf("description = %q", detail.Description)
	}
	if detail.DefaultAgent.Data().Kind != "http" {
		t.Errorf("defaultAgent = %+v", detail.DefaultAgent.Data())
	}
	if detail.StartFrom == nil || *detail.StartFrom != "inventory" {
		t.Errorf("startFrom = %v", detail.StartFrom)
	}
	if len(detail.IgnoreSteps) != 1 || detail.IgnoreSteps[0] != "business-analysis" {
		t.Errorf("ignoreSteps = %v", detail.IgnoreSteps)
	}

	msgs, _ := f.chats.List(ctx, detail.MigrationId)
	if len(msgs) != 2 {
		t.Fatalf("seeded %d chat messages, want 2", len(msgs))
	}
	if msgs[0].Role != model.ChatRoleUser {
		t.Errorf("first seed role = %s, want default user", msgs[0].Role)
	}
	if msgs[1].Role != model.ChatRoleSystem {
		t.Errorf("second seed role = %s", msgs[1].Role)
	}
	if msgs[1].Timestamp <= msgs[0].Timestamp {
		t.Errorf("seed timestamps not ordered: %d then %d", msgs[0].Timestamp, msgs[1].Timestamp)
	}
}

func TestCreateMigrationRejectsBadPlan(t *testing.T) {
	ctx := context.Background()
	f := newMigrationFixture()

	if _, err := f.svc.CreateMigration(ctx, "p1", &CreateMigrationReq{
		Name: "bad", Plan: "startFrom: not-a-step",
	}); err == nil {
		t.Error("plan with unknown step accepted")
	}
	if _, err := f.svc.CreateMigration(ctx, "p1", &CreateMigrationReq{Name: ""}); err == nil {
		t.Error("empty name accepted")
	}
}

func TestStartClearsErrorAndBumpsEpoch(t *testing.T) {
	ctx := context.Background()
	f := newMigrationFixture()
	m := f.seed("m1")
	m.Error = strPtr("previous failure")
	m.Epoch = 3

	if err := f.svc.Start(ctx, "m1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	got, _ := f.migrations.Get(ctx, "m1")
	if got.Action != model.ActionStart {
		t.Errorf("action = %s, want start", got.Action)
	}
	if got.Error != nil {
		t.Errorf("error not cleared: %v", *got.Error)
	}
	if got.Epoch != 4 {
		t.Errorf("epoch = %d, want 4", got.Epoch)
	}
}

func TestStopKeepsErrorAndEpoch(t *testing.T) {
	ctx := context.Background()
	f := newMigrationFixture()
	m := f.seed("m1")
	m.Epoch = 2

	if err := f.svc.Stop(ctx, "m1"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	got, _ := f.migrations.Get(ctx, "m1")
	if got.Action != model.ActionStop || got.Epoch != 2 {
		t.Errorf("record = action %s epoch %d, want stop/2", got.Action, got.Epoch)
	}

	patch := f.migrations.lastPatch()
	if len(patch) != 1 {
		t.Errorf("stop wrote %d columns, want just action: %v", len(patch), patch)
	}
}

func TestRerunStepAtomic(t *testing.T) {
	ctx := context.Background()
	f := newMigrationFixture()
	f.seed("m1")

	if err := f.svc.RerunStep(ctx, "m1", "inventory"); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if n := f.migrations.patchCount(); n != 1 {
		t.Fatalf("rerun issued %d writes, want 1", n)
	}
	patch := f.migrations.lastPatch()
	if patch["execute_only"] != "inventory" {
		t.Errorf("execute_only = %v", patch["execute_only"])
	}
	if patch["action"] != model.ActionStart {
		t.Errorf("action = %v", patch["action"])
	}
	// the pin and the start flag travel in the same write
	if _, ok := patch["execute_only"]; !ok {
		t.Error("write missing execute_only")
	}
	if _, ok := patch["action"]; !ok {
		t.Error("write missing action")
	}

	if err := f.svc.RerunStep(ctx, "m1", "completed"); err == nil {
		t.Error("sentinel accepted as rerun step")
	}
	if err := f.svc.RerunStep(ctx, "m1", "no-such-step"); err == nil {
		t.Error("unknown step accepted")
	}
}

func TestStepAgentMergeSemantics(t *testing.T) {
	ctx := context.Background()
	f := newMigrationFixture()
	f.seed("m1")

	agentA := model.StepAgentConfig{Kind: model.AgentKindHTTP, Endpoint: "http://a"}
	agentB := model.StepAgentConfig{Kind: model.AgentKindCommand, Name: "b"}

	if err := f.svc.SetStepAgent(ctx, "m1", "clone", agentA); err != nil {
		t.Fatalf("set clone: %v", err)
	}
	if err := f.svc.SetStepAgent(ctx, "m1", "inventory", agentB); err != nil {
		t.Fatalf("set inventory: %v", err)
	}
	if err := f.svc.RemoveStepAgent(ctx, "m1", "clone"); err != nil {
		t.Fatalf("remove clone: %v", err)
	}

	got, _ := f.migrations.Get(ctx, "m1")
	agents := got.StepAgents.Data()
	if len(agents) != 1 {
		t.Fatalf("stepAgents = %+v, want exactly inventory", agents)
	}
	if agents["inventory"].Kind != model.AgentKindCommand {
		t.Errorf("inventory override lost: %+v", agents["inventory"])
	}

	// removing a key that is not set writes nothing
	before := f.migrations.patchCount()
	if err := f.svc.RemoveStepAgent(ctx, "m1", "clone"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if f.migrations.patchCount() != before {
		t.Error("removing an absent override still wrote")
	}
}

func TestIgnoreStepsFullReplace(t *testing.T) {
	ctx := context.Background()
	f := newMigrationFixture()
	f.seed("m1")

	if err := f.svc.SetIgnoreSteps(ctx, "m1", []string{"clone", "inventory"}); err != nil {
		t.Fatalf("first set: %v", err)
	}
	if err := f.svc.SetIgnoreSteps(ctx, "m1", []string{"document-generation"}); err != nil {
		t.Fatalf("second set: %v", err)
	}

	got, _ := f.migrations.Get(ctx, "m1")
	if len(got.IgnoreSteps) != 1 || got.IgnoreSteps[0] != "document-generation" {
		t.Errorf("ignoreSteps = %v, want exactly [document-generation]", got.IgnoreSteps)
	}

	if err := f.svc.SetIgnoreSteps(ctx, "m1", []string{"clone", "clone"}); err == nil {
		t.Error("duplicate ignore steps accepted")
	}
	if err := f.svc.SetIgnoreSteps(ctx, "m1", nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, _ = f.migrations.Get(ctx, "m1")
	if len(got.IgnoreSteps) != 0 {
		t.Errorf("ignoreSteps not cleared: %v", got.IgnoreSteps)
	}
}

func TestPinsClearToNull(t *testing.T) {
	ctx := context.Background()
	f := newMigrationFixture()
	f.seed("m1")

	if err := f.svc.SetStartFrom(ctx, "m1", "inventory"); err != nil {
		t.Fatalf("set start-from: %v", err)
	}
	got, _ := f.migrations.Get(ctx, "m1")
	if got.StartFrom == nil || *got.StartFrom != "inventory" {
		t.Fatalf("startFrom = %v", got.StartFrom)
	}

	if err := f.svc.SetStartFrom(ctx, "m1", ""); err != nil {
		t.Fatalf("clear start-from: %v", err)
	}
	patch := f.migrations.lastPatch()
	if v, ok := patch["start_from"]; !ok || v != nil {
		t.Errorf("clear wrote %v, want explicit null", v)
	}
	got, _ = f.migrations.Get(ctx, "m1")
	if got.StartFrom != nil {
		t.Errorf("startFrom not cleared: %v", *got.StartFrom)
	}

	if err := f.svc.SetExecuteOnly(ctx, "m1", "queue"); err == nil {
		t.Error("sentinel accepted as execute-only pin")
	}
}

func TestCommandsOnUnknownIdAreSilentNoops(t *testing.T) {
	ctx := context.Background()
	f := newMigrationFixture()

	if err := f.svc.Start(ctx, "ghost"); err != nil {
		t.Errorf("start unknown id: %v", err)
	}
	if err := f.svc.Stop(ctx, "ghost"); err != nil {
		t.Errorf("stop unknown id: %v", err)
	}
	if err := f.svc.SetIgnoreSteps(ctx, "ghost", []string{"clone"}); err != nil {
		t.Errorf("set ignore steps unknown id: %v", err)
	}
	if n := f.migrations.patchCount(); n != 0 {
		t.Errorf("unknown id produced %d writes", n)
	}

	detail, err := f.svc.GetMigration(ctx, "ghost")
	if err != nil || detail != nil {
		t.Errorf("get unknown id = (%v, %v), want (nil, nil)", detail, err)
	}
}

func TestApplyMergePatch(t *testing.T) {
	ctx := context.Background()
	f := newMigrationFixture()
	f.seed("m1")

	if err := f.svc.Apply(ctx, "m1", nil); err != nil {
		t.Fatalf("empty apply: %v", err)
	}
	if f.migrations.patchCount() != 0 {
		t.Error("empty apply wrote")
	}

	if err := f.svc.Apply(ctx, "m1", map[string]any{
		"current_step": "inventory",
		"description":  "worker heartbeat",
	}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	got, _ := f.migrations.Get(ctx, "m1")
	if got.CurrentStep == nil || *got.CurrentStep != "inventory" {
		t.Errorf("currentStep = %v", got.CurrentStep)
	}
	if got.Action != model.ActionPending {
		t.Errorf("untouched column changed: action = %s", got.Action)
	}
}

func TestFanoutReachesRecordFeed(t *testing.T) {
	ctx := context.Background()
	f := newMigrationFixture()
	f.seed("m1")

	var mu sync.Mutex
	var actions []string
	disp, err := f.bus.Subscribe(feed.MigrationFeed("m1"), func(ev feed.Event) {
		var rec model.MigrationAction
		if err := ev.Decode(&rec); err != nil {
			t.Errorf("decode fanout payload: %v", err)
			return
		}
		mu.Lock()
		actions = append(actions, rec.Action)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer disp()

	if err := f.svc.Start(ctx, "m1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.svc.Stop(ctx, "m1"); err != nil {
		t.Fatalf("stop: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(actions) != 2 || actions[0] != model.ActionStart || actions[1] != model.ActionStop {
		t.Errorf("fanout actions = %v, want [start stop]", actions)
	}
}

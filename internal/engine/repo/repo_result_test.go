// Copyright 2025 Molt Team
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
	"bytes"
	"context"
	"testing"

	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/pkg/cipher"
	"gorm.io/datatypes"
)

func TestResultRepoStepResults(t *testing.T) {
	ctx := context.Background()
	repo := NewResultRepo(newTestDB(t))

	seed := []struct {
		resultId string
		step     string
		ts       int64
		success  bool
	}{
		{"res-1", "clone", 100, true},
		{"res-2", "inventory", 150, false},
		{"res-3", "clone", 200, true},
	}
	for _, s := range seed {
		if err := repo.AppendStepResult(ctx, &model.StepResult{
			ResultId:    s.resultId,
			MigrationId: "mig-1",
			Step:        s.step,
			Success:     s.success,
			Timestamp:   s.ts,
		}); err != nil {
			t.Fatalf("append %s: %v", s.resultId, err)
		}
	}

	list, err := repo.ListStepResults(ctx, "mig-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	for i, want := range []string{"res-1", "res-2", "res-3"} {
		if list[i].ResultId != want {
			t.Errorf("list[%d] = %q, want %q", i, list[i].ResultId, want)
		}
	}

	latest, err := repo.LatestStepResult(ctx, "mig-1", "clone")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ResultId != "res-3" {
		t.Errorf("latest clone = %q, want res-3", latest.ResultId)
	}

	miss, err := repo.LatestStepResult(ctx, "mig-1", "document-generation")
	if err != nil {
		t.Fatalf("latest miss: %v", err)
	}
	if miss != nil {
		t.Errorf("latest miss = %+v, want nil", miss)
	}
}

func TestResultRepoProcessResults(t *testing.T) {
	ctx := context.Background()
	repo := NewResultRepo(newTestDB(t))

	first := &model.ProcessResult{
		ResultId:       "run-1",
		MigrationId:    "mig-1",
		StepsCompleted: datatypes.NewJSONSlice([]string{"clone", "inventory"}),
		StartedAt:      100,
		FinishedAt:     200,
	}
	second := &model.ProcessResult{
		ResultId:       "run-2",
		MigrationId:    "mig-1",
		StepsCompleted: datatypes.NewJSONSlice([]string{"clone"}),
		StartedAt:      300,
		FinishedAt:     400,
	}
	for _, pr := range []*model.ProcessResult{first, second} {
		if err := repo.AppendProcessResult(ctx, pr); err != nil {
			t.Fatalf("append %s: %v", pr.ResultId, err)
		}
	}

	latest, err := repo.LatestProcessResult(ctx, "mig-1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ResultId != "run-2" {
		t.Errorf("latest = %q, want run-2", latest.ResultId)
	}

	miss, err := repo.LatestProcessResult(ctx, "mig-never-ran")
	if err != nil || miss != nil {
		t.Fatalf("miss: got %+v, %v", miss, err)
	}

	if err := repo.AppendStepResult(ctx, &model.StepResult{
		ResultId:    "res-1",
		MigrationId: "mig-1",
		Step:        "clone",
		Timestamp:   100,
	}); err != nil {
		t.Fatalf("append step: %v", err)
	}
	if err := repo.DeleteByMigration(ctx, "mig-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	steps, err := repo.ListStepResults(ctx, "mig-1")
	if err != nil || len(steps) != 0 {
		t.Fatalf("steps after delete: %v, %v", steps, err)
	}
	runs, err := repo.ListProcessResults(ctx, "mig-1", 10)
	if err != nil || len(runs) != 0 {
		t.Fatalf("runs after delete: %v, %v", runs, err)
	}
}

func TestChatRepoOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepo(newTestDB(t))

	seed := []struct {
		id   string
		role string
		ts   int64
	}{
		{"msg-2", "assistant", 200},
		{"msg-1", "user", 100},
		{"msg-3", "user", 300},
	}
	for _, s := range seed {
		if err := repo.Append(ctx, &model.ConfigChatMessage{
			MessageId:   s.id,
			MigrationId: "mig-1",
			Role:        s.role,
			Content:     "hi",
			Timestamp:   s.ts,
		}); err != nil {
			t.Fatalf("append %s: %v", s.id, err)
		}
	}

	list, err := repo.List(ctx, "mig-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i, want := range []string{"msg-1", "msg-2", "msg-3"} {
		if list[i].MessageId != want {
			t.Errorf("list[%d] = %q, want %q", i, list[i].MessageId, want)
		}
	}

	if err := repo.DeleteByMigration(ctx, "mig-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, err = repo.List(ctx, "mig-1")
	if err != nil || len(list) != 0 {
		t.Fatalf("after delete: %v, %v", list, err)
	}
}

func TestCredentialRepoRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	c, err := cipher.New(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	repo := NewCredentialRepo(db, c)

	if err := repo.Create(ctx, &model.Credential{
		CredentialId: "cred-a",
		Name:         "openai-key",
		Scope:        "backend-a",
	}, "sk-secret"); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.Get(ctx, "cred-a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Value) != 0 {
		t.Errorf("metadata get leaked value bytes")
	}

	plain, err := repo.GetValue(ctx, "cred-a")
	if err != nil {
		t.Fatalf("get value: %v", err)
	}
	if plain != "sk-secret" {
		t.Errorf("value = %q, want sk-secret", plain)
	}

	if err := repo.SetValue(ctx, "cred-a", "sk-rotated"); err != nil {
		t.Fatalf("set value: %v", err)
	}
	plain, err = repo.GetValue(ctx, "cred-a")
	if err != nil {
		t.Fatalf("get rotated: %v", err)
	}
	if plain != "sk-rotated" {
		t.Errorf("value = %q, want sk-rotated", plain)
	}
}

func TestCredentialRepoValueBoundToId(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	c, err := cipher.New(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	repo := NewCredentialRepo(db, c)

	if err := repo.Create(ctx, &model.Credential{CredentialId: "cred-a", Scope: "backend-a"}, "secret-a"); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if err := repo.Create(ctx, &model.Credential{CredentialId: "cred-b", Scope: "backend-a"}, "secret-b"); err != nil {
		t.Fatalf("create b: %v", err)
	}

	// graft a's sealed value onto b's row; the id mismatch must fail decrypt
	var a model.Credential
	if err := db.Database().Table(a.TableName()).
		Select("value").Where("credential_id = ?", "cred-a").
		First(&a).Error; err != nil {
		t.Fatalf("read sealed value: %v", err)
	}
	if err := db.Database().Table(a.TableName()).
		Where("credential_id = ?", "cred-b").
		Update("value", a.Value).Error; err != nil {
		t.Fatalf("graft value: %v", err)
	}

	if _, err := repo.GetValue(ctx, "cred-b"); err == nil {
		t.Fatalf("expected decrypt failure on grafted value")
	}
}

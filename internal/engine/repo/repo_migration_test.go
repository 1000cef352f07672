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
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/pkg/database"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"
)

// newTestDB opens a named shared in-memory sqlite database so every pooled
// connection sees the same tables.
func newTestDB(t *testing.T) database.IDatabase {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: glogger.Default.LogMode(glogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&model.MigrationAction{},
		&model.ProcessResult{},
		&model.StepResult{},
		&model.ConfigChatMessage{},
		&model.Project{},
		&model.Credential{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return database.NewGormAdapter(db)
}

func TestMigrationRepoPatchMerges(t *testing.T) {
	ctx := context.Background()
	repo := NewMigrationRepo(newTestDB(t))

	step := "clone"
	if err := repo.Create(ctx, &model.MigrationAction{
		MigrationId: "mig-1",
		ProjectId:   "proj-1",
		Name:        "billing",
		Description: "legacy billing service",
		Action:      model.ActionPending,
		CurrentStep: &step,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	affected, err := repo.Patch(ctx, "mig-1", map[string]any{
		"action":       model.ActionStart,
		"current_step": "inventory",
	})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if affected != 1 {
		t.Fatalf("affected = %d, want 1", affected)
	}

	got, err := repo.Get(ctx, "mig-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Action != model.ActionStart {
		t.Errorf("action = %q, want %q", got.Action, model.ActionStart)
	}
	if got.CurrentStep == nil || *got.CurrentStep != "inventory" {
		t.Errorf("currentStep = %v, want inventory", got.CurrentStep)
	}
	// untouched columns survive the patch
	if got.Name != "billing" || got.Description != "legacy billing service" {
		t.Errorf("unrelated columns changed: %+v", got)
	}
}

func TestMigrationRepoPatchNilClearsColumn(t *testing.T) {
	ctx := context.Background()
	repo := NewMigrationRepo(newTestDB(t))

	executeOnly := "inventory"
	startFrom := "clone"
	if err := repo.Create(ctx, &model.MigrationAction{
		MigrationId: "mig-1",
		ProjectId:   "proj-1",
		Action:      model.ActionPending,
		ExecuteOnly: &executeOnly,
		StartFrom:   &startFrom,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	affected, err := repo.Patch(ctx, "mig-1", map[string]any{
		"execute_only": nil,
		"action":       model.ActionPending,
	})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if affected != 1 {
		t.Fatalf("affected = %d, want 1", affected)
	}

	got, err := repo.Get(ctx, "mig-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ExecuteOnly != nil {
		t.Errorf("executeOnly = %q, want NULL", *got.ExecuteOnly)
	}
	if got.StartFrom == nil || *got.StartFrom != "clone" {
		t.Errorf("startFrom cleared by unrelated patch: %v", got.StartFrom)
	}
}

func TestMigrationRepoPatchUnknownId(t *testing.T) {
	ctx := context.Background()
	repo := NewMigrationRepo(newTestDB(t))

	affected, err := repo.Patch(ctx, "no-such-migration", map[string]any{
		"action": model.ActionStop,
	})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if affected != 0 {
		t.Fatalf("affected = %d, want 0", affected)
	}
}

func TestMigrationRepoGetMiss(t *testing.T) {
	ctx := context.Background()
	repo := NewMigrationRepo(newTestDB(t))

	got, err := repo.Get(ctx, "absent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("got = %+v, want nil", got)
	}

	got, err = repo.Get(ctx, "  ")
	if err != nil || got != nil {
		t.Fatalf("blank id: got %+v, %v", got, err)
	}
}

func TestMigrationRepoMostRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewMigrationRepo(newTestDB(t))

	none, err := repo.MostRecent(ctx, "proj-1")
	if err != nil {
		t.Fatalf("most recent on empty project: %v", err)
	}
	if none != nil {
		t.Fatalf("got = %+v, want nil", none)
	}

	mk := func(id string, createdAt int64, action string) {
		t.Helper()
		m := &model.MigrationAction{
			MigrationId: id,
			ProjectId:   "proj-1",
			Action:      action,
		}
		m.CreatedAt = createdAt
		if err := repo.Create(ctx, m); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	mk("mig-old", 1000, model.ActionPending)
	mk("mig-tied", 2000, model.ActionPending)
	mk("mig-newest", 2000, model.ActionPending)

	got, err := repo.MostRecent(ctx, "proj-1")
	if err != nil {
		t.Fatalf("most recent: %v", err)
	}
	// equal created_at resolves to the higher row id
	if got.MigrationId != "mig-newest" {
		t.Fatalf("mostRecent = %q, want mig-newest", got.MigrationId)
	}

	if _, err := repo.Patch(ctx, "mig-newest", map[string]any{"action": model.ActionDelete}); err != nil {
		t.Fatalf("mark delete: %v", err)
	}
	got, err = repo.MostRecent(ctx, "proj-1")
	if err != nil {
		t.Fatalf("most recent after delete: %v", err)
	}
	if got.MigrationId != "mig-tied" {
		t.Fatalf("mostRecent = %q, want mig-tied", got.MigrationId)
	}
}

func TestMigrationRepoList(t *testing.T) {
	ctx := context.Background()
	repo := NewMigrationRepo(newTestDB(t))

	seed := []struct {
		id, project, name, action string
	}{
		{"mig-1", "proj-1", "billing alpha", model.ActionPending},
		{"mig-2", "proj-1", "billing beta", model.ActionStart},
		{"mig-3", "proj-1", "orders", model.ActionStart},
		{"mig-4", "proj-2", "billing gamma", model.ActionPending},
	}
	for _, s := range seed {
		if err := repo.Create(ctx, &model.MigrationAction{
			MigrationId: s.id,
			ProjectId:   s.project,
			Name:        s.name,
			Action:      s.action,
		}); err != nil {
			t.Fatalf("create %s: %v", s.id, err)
		}
	}

	list, total, err := repo.List(ctx, &MigrationQuery{ProjectId: "proj-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(list) != 3 {
		t.Fatalf("total = %d len = %d, want 3/3", total, len(list))
	}

	list, total, err = repo.List(ctx, &MigrationQuery{ProjectId: "proj-1", Name: "billing"})
	if err != nil {
		t.Fatalf("list by name: %v", err)
	}
	if total != 2 {
		t.Fatalf("total = %d, want 2", total)
	}
	for _, m := range list {
		if !strings.Contains(m.Name, "billing") {
			t.Errorf("name filter leaked %q", m.Name)
		}
	}

	list, total, err = repo.List(ctx, &MigrationQuery{Action: model.ActionStart, PageSize: 1})
	if err != nil {
		t.Fatalf("list by action: %v", err)
	}
	if total != 2 || len(list) != 1 {
		t.Fatalf("total = %d len = %d, want 2/1", total, len(list))
	}
}

func TestMigrationRepoJanitorQueries(t *testing.T) {
	ctx := context.Background()
	repo := NewMigrationRepo(newTestDB(t))

	stale := &model.MigrationAction{
		MigrationId: "mig-stale",
		ProjectId:   "proj-1",
		Action:      model.ActionDelete,
	}
	stale.UpdatedAt = 500
	if err := repo.Create(ctx, stale); err != nil {
		t.Fatalf("create: %v", err)
	}
	fresh := &model.MigrationAction{
		MigrationId: "mig-fresh",
		ProjectId:   "proj-1",
		Action:      model.ActionDelete,
	}
	fresh.UpdatedAt = 9000
	if err := repo.Create(ctx, fresh); err != nil {
		t.Fatalf("create: %v", err)
	}

	marked, err := repo.ListDeleteMarked(ctx, 1000)
	if err != nil {
		t.Fatalf("list delete marked: %v", err)
	}
	if len(marked) != 1 || marked[0].MigrationId != "mig-stale" {
		t.Fatalf("marked = %+v, want only mig-stale", marked)
	}

	if err := repo.HardDelete(ctx, "mig-stale"); err != nil {
		t.Fatalf("hard delete: %v", err)
	}
	got, err := repo.Get(ctx, "mig-stale")
	if err != nil || got != nil {
		t.Fatalf("after hard delete: got %+v, %v", got, err)
	}
}

func TestClampPage(t *testing.T) {
	cases := []struct {
		page, size         int
		wantPage, wantSize int
	}{
		{0, 0, 1, 20},
		{-3, -1, 1, 20},
		{2, 50, 2, 50},
		{1, 1000, 1, 100},
	}
	for _, c := range cases {
		page, size := clampPage(c.page, c.size)
		if page != c.wantPage || size != c.wantSize {
			t.Errorf("clampPage(%d,%d) = (%d,%d), want (%d,%d)",
				c.page, c.size, page, size, c.wantPage, c.wantSize)
		}
	}
}

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
	"errors"
	"strings"

	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/pkg/database"
	"gorm.io/gorm"
)

// MigrationQuery defines query parameters for listing migrations.
type MigrationQuery struct {
	ProjectId string
	Name      string
	Action    string
	Page      int
	PageSize  int
}

// IMigrationRepository defines persistence for migration records.
// Patch is the only mutation path; it merges the given columns and
// reports how many rows matched so callers can tell a no-op from a hit.
type IMigrationRepository interface {
	Create(ctx context.Context, m *model.MigrationAction) error
	Get(ctx context.Context, migrationId string) (*model.MigrationAction, error)
	Patch(ctx context.Context, migrationId string, updates map[string]any) (int64, error)
	List(ctx context.Context, query *MigrationQuery) ([]*model.MigrationAction, int64, error)
	MostRecent(ctx context.Context, projectId string) (*model.MigrationAction, error)
	ListDeleteMarked(ctx context.Context, olderThanMs int64) ([]*model.MigrationAction, error)
	HardDelete(ctx context.Context, migrationId string) error
}

type MigrationRepo struct {
	database.IDatabase
}

// NewMigrationRepo creates the migration repository.
func NewMigrationRepo(db database.IDatabase) IMigrationRepository {
	return &MigrationRepo{IDatabase: db}
}

// Create creates a migration record.
func (r *MigrationRepo) Create(ctx context.Context, m *model.MigrationAction) error {
	return r.Database().WithContext(ctx).Create(m).Error
}

// Get returns a migration by migrationId.
// Returns (nil, nil) when not found; absent records are benign to most callers.
func (r *MigrationRepo) Get(ctx context.Context, migrationId string) (*model.MigrationAction, error) {
	if strings.TrimSpace(migrationId) == "" {
		return nil, nil
	}
	var one model.MigrationAction
	err := r.Database().WithContext(ctx).
		Where("migration_id = ?", migrationId).
		First(&one).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &one, nil
}

// Patch merges the given columns onto the record. Unknown ids match zero
// rows and return (0, nil); nil map values write SQL NULL.
func (r *MigrationRepo) Patch(ctx context.Context, migrationId string, updates map[string]any) (int64, error) {
	tx := r.Database().WithContext(ctx).
		Model(&model.MigrationAction{}).
		Where("migration_id = ?", migrationId).
		Updates(updates)
	return tx.RowsAffected, tx.Error
}

// List returns migrations and total by query.
func (r *MigrationRepo) List(ctx context.Context, query *MigrationQuery) ([]*model.MigrationAction, int64, error) {
	if query == nil {
		query = &MigrationQuery{}
	}
	query.Page, query.PageSize = clampPage(query.Page, query.PageSize)

	tx := r.Database().WithContext(ctx).Model(&model.MigrationAction{})
	if query.ProjectId != "" {
		tx = tx.Where("project_id = ?", query.ProjectId)
	}
	if strings.TrimSpace(query.Name) != "" {
		tx = tx.Where("name LIKE ?", "%"+strings.TrimSpace(query.Name)+"%")
	}
	if query.Action != "" {
		tx = tx.Where("action = ?", query.Action)
	}

	total, err := Count(tx)
	if err != nil {
		return nil, 0, err
	}

	var list []*model.MigrationAction
	err = tx.Order("created_at DESC, id DESC").
		Offset((query.Page - 1) * query.PageSize).
		Limit(query.PageSize).
		Find(&list).Error
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// MostRecent returns the project's newest surviving migration by
// created_at, ties broken by id descending. Delete-marked rows are
// excluded so re-selection after a delete never picks the corpse.
// Returns (nil, nil) when the project has none.
func (r *MigrationRepo) MostRecent(ctx context.Context, projectId string) (*model.MigrationAction, error) {
	var one model.MigrationAction
	err := r.Database().WithContext(ctx).
		Where("project_id = ? AND action <> ?", projectId, model.ActionDelete).
		Order("created_at DESC, id DESC").
		First(&one).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &one, nil
}

// ListDeleteMarked returns delete-marked migrations whose updated_at is
// older than the given ms-epoch bound. Janitor input.
func (r *MigrationRepo) ListDeleteMarked(ctx context.Context, olderThanMs int64) ([]*model.MigrationAction, error) {
	var list []*model.MigrationAction
	err := r.Database().WithContext(ctx).
		Where("action = ? AND updated_at < ?", model.ActionDelete, olderThanMs).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// HardDelete removes the record row. Sub-records are deleted first by
// their own repositories; the janitor drives the order.
func (r *MigrationRepo) HardDelete(ctx context.Context, migrationId string) error {
	return r.Database().WithContext(ctx).
		Where("migration_id = ?", migrationId).
		Delete(&model.MigrationAction{}).Error
}

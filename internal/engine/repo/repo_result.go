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

	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/pkg/database"
	"gorm.io/gorm"
)

// IResultRepository persists the append-only result sub-records.
// Nothing here updates a row; reruns append and readers pick winners.
type IResultRepository interface {
	AppendProcessResult(ctx context.Context, pr *model.ProcessResult) error
	LatestProcessResult(ctx context.Context, migrationId string) (*model.ProcessResult, error)
	ListProcessResults(ctx context.Context, migrationId string, limit int) ([]*model.ProcessResult, error)
	AppendStepResult(ctx context.Context, sr *model.StepResult) error
	ListStepResults(ctx context.Context, migrationId string) ([]*model.StepResult, error)
	LatestStepResult(ctx context.Context, migrationId, step string) (*model.StepResult, error)
	HasStepResult(ctx context.Context, resultId string) (bool, error)
	HasProcessResult(ctx context.Context, resultId string) (bool, error)
	DeleteByMigration(ctx context.Context, migrationId string) error
}

type ResultRepo struct {
	database.IDatabase
}

// NewResultRepo creates the result repository.
func NewResultRepo(db database.IDatabase) IResultRepository {
	return &ResultRepo{IDatabase: db}
}

// AppendProcessResult appends one execution-attempt summary.
func (r *ResultRepo) AppendProcessResult(ctx context.Context, pr *model.ProcessResult) error {
	return r.Database().WithContext(ctx).Create(pr).Error
}

// LatestProcessResult returns the newest attempt summary for a migration.
// Returns (nil, nil) when the migration has never completed an attempt.
func (r *ResultRepo) LatestProcessResult(ctx context.Context, migrationId string) (*model.ProcessResult, error) {
	var one model.ProcessResult
	err := r.Database().WithContext(ctx).
		Where("migration_id = ?", migrationId).
		Order("finished_at DESC, id DESC").
		First(&one).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &one, nil
}

// ListProcessResults returns attempt summaries, newest first.
func (r *ResultRepo) ListProcessResults(ctx context.Context, migrationId string, limit int) ([]*model.ProcessResult, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var list []*model.ProcessResult
	err := r.Database().WithContext(ctx).
		Where("migration_id = ?", migrationId).
		Order("finished_at DESC, id DESC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// AppendStepResult appends one step execution record.
func (r *ResultRepo) AppendStepResult(ctx context.Context, sr *model.StepResult) error {
	return r.Database().WithContext(ctx).Create(sr).Error
}

// ListStepResults returns every step result for a migration in append
// order. Aggregation (latest per step wins) is the caller's job.
func (r *ResultRepo) ListStepResults(ctx context.Context, migrationId string) ([]*model.StepResult, error) {
	var list []*model.StepResult
	err := r.Database().WithContext(ctx).
		Where("migration_id = ?", migrationId).
		Order("timestamp ASC, id ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// LatestStepResult returns the newest result for one step.
// Returns (nil, nil) when the step has never run.
func (r *ResultRepo) LatestStepResult(ctx context.Context, migrationId, step string) (*model.StepResult, error) {
	var one model.StepResult
	err := r.Database().WithContext(ctx).
		Where("migration_id = ? AND step = ?", migrationId, step).
		Order("timestamp DESC, id DESC").
		First(&one).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &one, nil
}

// HasStepResult reports whether a step result with this id exists.
// Replay paths probe before appending so re-delivery stays idempotent.
func (r *ResultRepo) HasStepResult(ctx context.Context, resultId string) (bool, error) {
	var n int64
	err := r.Database().WithContext(ctx).
		Model(&model.StepResult{}).
		Where("result_id = ?", resultId).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// HasProcessResult reports whether a process result with this id exists.
func (r *ResultRepo) HasProcessResult(ctx context.Context, resultId string) (bool, error) {
	var n int64
	err := r.Database().WithContext(ctx).
		Model(&model.ProcessResult{}).
		Where("result_id = ?", resultId).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteByMigration removes all result rows for a migration. Janitor use.
func (r *ResultRepo) DeleteByMigration(ctx context.Context, migrationId string) error {
	if err := r.Database().WithContext(ctx).
		Where("migration_id = ?", migrationId).
		Delete(&model.StepResult{}).Error; err != nil {
		return err
	}
	return r.Database().WithContext(ctx).
		Where("migration_id = ?", migrationId).
		Delete(&model.ProcessResult{}).Error
}

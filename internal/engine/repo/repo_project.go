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

// IProjectRepository defines project persistence with context support for timeout, tracing and cancellation.
type IProjectRepository interface {
	Create(ctx context.Context, p *model.Project) error
	Get(ctx context.Context, projectId string) (*model.Project, error)
	Update(ctx context.Context, projectId string, updates map[string]any) error
	List(ctx context.Context, page, pageSize int, name string) ([]*model.Project, int64, error)
	Exists(ctx context.Context, projectId string) (bool, error)
	Disable(ctx context.Context, projectId string) error
}

type ProjectRepo struct {
	database.IDatabase
}

// NewProjectRepo creates a project repository.
func NewProjectRepo(db database.IDatabase) IProjectRepository {
	return &ProjectRepo{IDatabase: db}
}

// Create creates a new project.
func (r *ProjectRepo) Create(ctx context.Context, p *model.Project) error {
	return r.Database().WithContext(ctx).Create(p).Error
}

// Get returns project by projectId. Returns (nil, nil) when not found.
func (r *ProjectRepo) Get(ctx context.Context, projectId string) (*model.Project, error) {
	var p model.Project
	err := r.Database().WithContext(ctx).
		Where("project_id = ?", projectId).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Update updates project by projectId.
func (r *ProjectRepo) Update(ctx context.Context, projectId string, updates map[string]any) error {
	return r.Database().WithContext(ctx).Model(&model.Project{}).
		Where("project_id = ?", projectId).
		Updates(updates).Error
}

// List returns projects and total, newest first.
func (r *ProjectRepo) List(ctx context.Context, page, pageSize int, name string) ([]*model.Project, int64, error) {
	page, pageSize = clampPage(page, pageSize)

	tx := r.Database().WithContext(ctx).Model(&model.Project{})
	if strings.TrimSpace(name) != "" {
		tx = tx.Where("name LIKE ?", "%"+strings.TrimSpace(name)+"%")
	}

	total, err := Count(tx)
	if err != nil {
		return nil, 0, err
	}

	var list []*model.Project
	err = tx.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&list).Error
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Exists reports whether the project exists.
func (r *ProjectRepo) Exists(ctx context.Context, projectId string) (bool, error) {
	var n int64
	err := r.Database().WithContext(ctx).Model(&model.Project{}).
		Where("project_id = ?", projectId).
		Count(&n).Error
	return n > 0, err
}

// Disable marks the project disabled; migrations under it stay readable.
func (r *ProjectRepo) Disable(ctx context.Context, projectId string) error {
	return r.Database().WithContext(ctx).Model(&model.Project{}).
		Where("project_id = ?", projectId).
		Update("status", model.ProjectStatusDisabled).Error
}

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

// IArtifactRepository indexes generated documents stored in object storage.
type IArtifactRepository interface {
	Create(ctx context.Context, artifact *model.Artifact) error
	Get(ctx context.Context, artifactId string) (*model.Artifact, error)
	ListByMigration(ctx context.Context, migrationId string) ([]*model.Artifact, error)
	DeleteByMigration(ctx context.Context, migrationId string) ([]*model.Artifact, error)
}

type ArtifactRepo struct {
	database.IDatabase
}

// NewArtifactRepo creates the artifact repository.
func NewArtifactRepo(db database.IDatabase) IArtifactRepository {
	return &ArtifactRepo{IDatabase: db}
}

// Create indexes one artifact.
func (r *ArtifactRepo) Create(ctx context.Context, artifact *model.Artifact) error {
	return r.Database().WithContext(ctx).Create(artifact).Error
}

// Get returns artifact by artifactId. Returns (nil, nil) when not found.
func (r *ArtifactRepo) Get(ctx context.Context, artifactId string) (*model.Artifact, error) {
	var one model.Artifact
	err := r.Database().WithContext(ctx).
		Where("artifact_id = ?", artifactId).
		First(&one).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &one, nil
}

// ListByMigration returns artifacts for a migration, newest first.
func (r *ArtifactRepo) ListByMigration(ctx context.Context, migrationId string) ([]*model.Artifact, error) {
	var list []*model.Artifact
	err := r.Database().WithContext(ctx).
		Where("migration_id = ?", migrationId).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteByMigration removes the index rows and returns them so the
// janitor can delete the backing objects.
func (r *ArtifactRepo) DeleteByMigration(ctx context.Context, migrationId string) ([]*model.Artifact, error) {
	list, err := r.ListByMigration(ctx, migrationId)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	err = r.Database().WithContext(ctx).
		Where("migration_id = ?", migrationId).
		Delete(&model.Artifact{}).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

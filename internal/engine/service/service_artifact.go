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
	"io"
	"strings"
	"time"

	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/internal/engine/repo"
	"github.com/molthq/molt/internal/pkg/storage"
	"github.com/molthq/molt/pkg/id"
	"github.com/molthq/molt/pkg/log"
)

// ArtifactService indexes and serves generated documents. Objects live
// in whichever store was default at upload time; rows pin the storage id
// so later default switches don't orphan old artifacts.
type ArtifactService struct {
	artifactRepo repo.IArtifactRepository
	storageRepo  repo.IStorageRepository
	downloadTTL  time.Duration
}

func NewArtifactService(services *Services, downloadTTL time.Duration) *ArtifactService {
	if downloadTTL <= 0 {
		downloadTTL = 15 * time.Minute
	}
	return &ArtifactService{
		artifactRepo: services.ArtifactRepo,
		storageRepo:  services.StorageRepo,
		downloadTTL:  downloadTTL,
	}
}

// UploadArtifact streams an object into the default store and indexes it.
func (s *ArtifactService) UploadArtifact(ctx context.Context, migrationId, step, name, contentType string, size int64, r io.Reader) (*model.Artifact, error) {
	if strings.TrimSpace(migrationId) == "" || strings.TrimSpace(name) == "" {
		return nil, errors.New("migrationId and name are required")
	}

	storageConfig, err := s.storageRepo.GetDefault(ctx)
	if err != nil {
		log.Errorw("get default storage failed", "error", err)
		return nil, fmt.Errorf("get default storage failed: %w", err)
	}
	provider, err := s.providerFor(storageConfig)
	if err != nil {
		return nil, err
	}

	objectKey := fmt.Sprintf("migrations/%s/%s/%s", migrationId, step, name)
	if err := provider.PutObject(ctx, objectKey, r, size, contentType); err != nil {
		log.Errorw("upload artifact failed", "migrationId", migrationId, "objectKey", objectKey, "error", err)
		return nil, fmt.Errorf("upload artifact failed: %w", err)
	}

	artifact := &model.Artifact{
		ArtifactId:  id.GetUild(),
		MigrationId: migrationId,
		Step:        step,
		Name:        name,
		StorageId:   storageConfig.StorageId,
		ObjectKey:   objectKey,
		ContentType: contentType,
		SizeBytes:   size,
	}
	if err := s.artifactRepo.Create(ctx, artifact); err != nil {
		log.Errorw("index artifact failed", "migrationId", migrationId, "objectKey", objectKey, "error", err)
		return nil, fmt.Errorf("index artifact failed: %w", err)
	}

	log.Infow("success upload artifact", "artifactId", artifact.ArtifactId, "migrationId", migrationId, "size", size)

	return artifact, nil
}

// ListArtifacts lists the indexed artifacts of a migration.
func (s *ArtifactService) ListArtifacts(ctx context.Context, migrationId string) ([]*model.Artifact, error) {
	artifacts, err := s.artifactRepo.ListByMigration(ctx, migrationId)
	if err != nil {
		log.Errorw("list artifacts failed", "migrationId", migrationId, "error", err)
		return nil, fmt.Errorf("list artifacts failed: %w", err)
	}
	return artifacts, nil
}

// DownloadArtifact opens the object stream for one artifact. The caller
// owns the returned ReadCloser.
func (s *ArtifactService) DownloadArtifact(ctx context.Context, artifactId string) (*model.Artifact, io.ReadCloser, error) {
	artifact, provider, err := s.resolve(ctx, artifactId)
	if err != nil {
		return nil, nil, err
	}

	body, err := provider.GetObject(ctx, artifact.ObjectKey)
	if err != nil {
		log.Errorw("download artifact failed", "artifactId", artifactId, "error", err)
		return nil, nil, fmt.Errorf("download artifact failed: %w", err)
	}
	return artifact, body, nil
}

// PresignArtifact returns a time-limited direct download URL.
func (s *ArtifactService) PresignArtifact(ctx context.Context, artifactId string) (string, error) {
	artifact, provider, err := s.resolve(ctx, artifactId)
	if err != nil {
		return "", err
	}

	u, err := provider.PresignedGetURL(ctx, artifact.ObjectKey, s.downloadTTL)
	if err != nil {
		log.Errorw("presign artifact failed", "artifactId", artifactId, "error", err)
		return "", fmt.Errorf("presign artifact failed: %w", err)
	}
	return u, nil
}

// DeleteByMigration drops the artifact index of a migration and
// best-effort deletes the backing objects. Object delete failures are
// logged, not fatal; the rows are already gone.
func (s *ArtifactService) DeleteByMigration(ctx context.Context, migrationId string) (int, error) {
	artifacts, err := s.artifactRepo.DeleteByMigration(ctx, migrationId)
	if err != nil {
		log.Errorw("delete artifacts failed", "migrationId", migrationId, "error", err)
		return 0, fmt.Errorf("delete artifacts failed: %w", err)
	}

	for _, artifact := range artifacts {
		storageConfig, err := s.storageRepo.Get(ctx, artifact.StorageId)
		if err != nil {
			log.Warnw("artifact object left behind, storage config gone", "artifactId", artifact.ArtifactId, "storageId", artifact.StorageId, "error", err)
			continue
		}
		provider, err := s.providerFor(storageConfig)
		if err != nil {
			log.Warnw("artifact object left behind, provider init failed", "artifactId", artifact.ArtifactId, "error", err)
			continue
		}
		if err := provider.DeleteObject(ctx, artifact.ObjectKey); err != nil {
			log.Warnw("artifact object left behind, delete failed", "artifactId", artifact.ArtifactId, "objectKey", artifact.ObjectKey, "error", err)
		}
	}
	return len(artifacts), nil
}

func (s *ArtifactService) resolve(ctx context.Context, artifactId string) (*model.Artifact, storage.IStorage, error) {
	artifact, err := s.artifactRepo.Get(ctx, artifactId)
	if err != nil {
		log.Errorw("get artifact failed", "artifactId", artifactId, "error", err)
		return nil, nil, fmt.Errorf("get artifact failed: %w", err)
	}
	if artifact == nil {
		return nil, nil, errors.New("artifact not found")
	}

	storageConfig, err := s.storageRepo.Get(ctx, artifact.StorageId)
	if err != nil {
		log.Errorw("get artifact storage failed", "artifactId", artifactId, "storageId", artifact.StorageId, "error", err)
		return nil, nil, fmt.Errorf("get artifact storage failed: %w", err)
	}

	provider, err := s.providerFor(storageConfig)
	if err != nil {
		return nil, nil, err
	}
	return artifact, provider, nil
}

func (s *ArtifactService) providerFor(storageConfig *model.StorageConfig) (storage.IStorage, error) {
	parsed, err := s.storageRepo.ParseStorageConfig(storageConfig)
	if err != nil {
		return nil, fmt.Errorf("parse storage config failed: %w", err)
	}
	provider, err := storage.NewFromConfig(storageConfig, parsed)
	if err != nil {
		return nil, fmt.Errorf("init storage provider failed: %w", err)
	}
	return provider, nil
}

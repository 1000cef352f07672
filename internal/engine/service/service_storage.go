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

	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/internal/engine/repo"
	"github.com/molthq/molt/pkg/id"
	"github.com/molthq/molt/pkg/log"
)

type CreateStorageReq struct {
	Name        string `json:"name"`
	StorageType string `json:"storageType"`
	Config      string `json:"config"`
	Description string `json:"description"`
	SetDefault  bool   `json:"setDefault"`
}

type UpdateStorageReq struct {
	Name        *string `json:"name,omitempty"`
	Config      *string `json:"config,omitempty"`
	Description *string `json:"description,omitempty"`
	IsEnabled   *int    `json:"isEnabled,omitempty"`
}

// StorageService manages the object storage configuration registry.
// Config payloads are validated by parsing before any row is written.
type StorageService struct {
	storageRepo repo.IStorageRepository
}

func NewStorageService(services *Services) *StorageService {
	return &StorageService{
		storageRepo: services.StorageRepo,
	}
}

// CreateStorage registers a storage config after a parse dry-run.
func (s *StorageService) CreateStorage(ctx context.Context, req *CreateStorageReq) (*model.StorageConfig, error) {
	if req == nil || strings.TrimSpace(req.Name) == "" {
		return nil, errors.New("storage name cannot be empty")
	}

	storageConfig := &model.StorageConfig{
		StorageId:   id.GetUild(),
		Name:        strings.TrimSpace(req.Name),
		StorageType: req.StorageType,
		Config:      req.Config,
		Description: req.Description,
		IsEnabled:   1,
	}
	if _, err := s.storageRepo.ParseStorageConfig(storageConfig); err != nil {
		return nil, fmt.Errorf("invalid storage config: %w", err)
	}

	if err := s.storageRepo.Create(ctx, storageConfig); err != nil {
		log.Errorw("create storage config failed", "name", storageConfig.Name, "error", err)
		return nil, fmt.Errorf("create storage config failed: %w", err)
	}

	if req.SetDefault {
		if err := s.storageRepo.SetDefault(ctx, storageConfig.StorageId); err != nil {
			log.Errorw("set default storage failed", "storageId", storageConfig.StorageId, "error", err)
			return nil, fmt.Errorf("set default storage failed: %w", err)
		}
		storageConfig.IsDefault = 1
	}

	log.Infow("success create storage config", "storageId", storageConfig.StorageId, "type", storageConfig.StorageType)

	return storageConfig, nil
}

// GetStorage returns storage config by storageId.
func (s *StorageService) GetStorage(ctx context.Context, storageId string) (*model.StorageConfig, error) {
	storageConfig, err := s.storageRepo.Get(ctx, storageId)
	if err != nil {
		return nil, fmt.Errorf("get storage config failed: %w", err)
	}
	return storageConfig, nil
}

// ListStorages lists enabled storage configs, default first.
func (s *StorageService) ListStorages(ctx context.Context) ([]model.StorageConfig, error) {
	storageConfigs, err := s.storageRepo.ListEnabled(ctx)
	if err != nil {
		log.Errorw("list storage configs failed", "error", err)
		return nil, fmt.Errorf("list storage configs failed: %w", err)
	}
	return storageConfigs, nil
}

// UpdateStorage merges updates into a storage config. A new config
// payload goes through the same parse dry-run as create.
func (s *StorageService) UpdateStorage(ctx context.Context, storageId string, req *UpdateStorageReq) (*model.StorageConfig, error) {
	storageConfig, err := s.storageRepo.Get(ctx, storageId)
	if err != nil {
		return nil, fmt.Errorf("get storage config failed: %w", err)
	}

	if req != nil {
		if req.Name != nil {
			storageConfig.Name = strings.TrimSpace(*req.Name)
		}
		if req.Config != nil {
			storageConfig.Config = *req.Config
		}
		if req.Description != nil {
			storageConfig.Description = *req.Description
		}
		if req.IsEnabled != nil {
			storageConfig.IsEnabled = *req.IsEnabled
		}
	}
	if _, err := s.storageRepo.ParseStorageConfig(storageConfig); err != nil {
		return nil, fmt.Errorf("invalid storage config: %w", err)
	}

	if err := s.storageRepo.Update(ctx, storageConfig); err != nil {
		log.Errorw("update storage config failed", "storageId", storageId, "error", err)
		return nil, fmt.Errorf("update storage config failed: %w", err)
	}
	return storageConfig, nil
}

// DeleteStorage removes a storage config. The default config cannot be
// deleted; switch the default first.
func (s *StorageService) DeleteStorage(ctx context.Context, storageId string) error {
	storageConfig, err := s.storageRepo.Get(ctx, storageId)
	if err != nil {
		return fmt.Errorf("get storage config failed: %w", err)
	}
	if storageConfig.IsDefault == 1 {
		return errors.New("cannot delete the default storage config")
	}

	if err := s.storageRepo.Delete(ctx, storageId); err != nil {
		log.Errorw("delete storage config failed", "storageId", storageId, "error", err)
		return fmt.Errorf("delete storage config failed: %w", err)
	}

	log.Infow("success delete storage config", "storageId", storageId)

	return nil
}

// SetDefaultStorage flips the default flag to the given config.
func (s *StorageService) SetDefaultStorage(ctx context.Context, storageId string) error {
	storageConfig, err := s.storageRepo.Get(ctx, storageId)
	if err != nil {
		return fmt.Errorf("get storage config failed: %w", err)
	}
	if _, err := s.storageRepo.ParseStorageConfig(storageConfig); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if err := s.storageRepo.SetDefault(ctx, storageId); err != nil {
		log.Errorw("set default storage failed", "storageId", storageId, "error", err)
		return fmt.Errorf("set default storage failed: %w", err)
	}

	log.Infow("success set default storage", "storageId", storageId)

	return nil
}

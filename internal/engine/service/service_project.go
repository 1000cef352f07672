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

type CreateProjectReq struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	SourceRepoUrl string `json:"sourceRepoUrl"`
	TargetStack   string `json:"targetStack"`
	CreatedBy     string `json:"createdBy"`
}

type UpdateProjectReq struct {
	Name          *string `json:"name,omitempty"`
	Description   *string `json:"description,omitempty"`
	SourceRepoUrl *string `json:"sourceRepoUrl,omitempty"`
	TargetStack   *string `json:"targetStack,omitempty"`
}

type ProjectService struct {
	projectRepo repo.IProjectRepository
}

func NewProjectService(services *Services) *ProjectService {
	return &ProjectService{
		projectRepo: services.ProjectRepo,
	}
}

// CreateProject creates a project.
func (s *ProjectService) CreateProject(ctx context.Context, req *CreateProjectReq) (*model.Project, error) {
	if req == nil || strings.TrimSpace(req.Name) == "" {
		return nil, errors.New("project name cannot be empty")
	}

	project := &model.Project{
		ProjectId:     id.GetUild(),
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		SourceRepoUrl: req.SourceRepoUrl,
		TargetStack:   req.TargetStack,
		Status:        model.ProjectStatusActive,
		CreatedBy:     req.CreatedBy,
	}

	if err := s.projectRepo.Create(ctx, project); err != nil {
		log.Errorw("create project failed", "name", project.Name, "error", err)
		return nil, fmt.Errorf("create project failed: %w", err)
	}

	log.Infow("success create project", "name", project.Name, "projectId", project.ProjectId)

	return project, nil
}

// UpdateProject updates a project.
func (s *ProjectService) UpdateProject(ctx context.Context, projectId string, req *UpdateProjectReq) (*model.Project, error) {
	exists, err := s.projectRepo.Exists(ctx, projectId)
	if err != nil {
		log.Errorw("check project exists failed", "projectId", projectId, "error", err)
		return nil, fmt.Errorf("check project exists failed: %w", err)
	}
	if !exists {
		return nil, errors.New("project not found")
	}

	updates := make(map[string]any)
	if req != nil {
		if req.Name != nil {
			if strings.TrimSpace(*req.Name) == "" {
				return nil, errors.New("project name cannot be empty")
			}
			updates["name"] = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.SourceRepoUrl != nil {
			updates["source_repo_url"] = *req.SourceRepoUrl
		}
		if req.TargetStack != nil {
			updates["target_stack"] = *req.TargetStack
		}
	}

	if len(updates) > 0 {
		if err = s.projectRepo.Update(ctx, projectId, updates); err != nil {
			log.Errorw("update project failed", "projectId", projectId, "error", err)
			return nil, fmt.Errorf("update project failed: %w", err)
		}
	}

	project, err := s.projectRepo.Get(ctx, projectId)
	if err != nil {
		log.Errorw("get project failed", "projectId", projectId, "error", err)
		return nil, fmt.Errorf("get project failed: %w", err)
	}

	log.Infow("success update project", "projectId", projectId)

	return project, nil
}

// GetProject returns project by projectId.
func (s *ProjectService) GetProject(ctx context.Context, projectId string) (*model.Project, error) {
	project, err := s.projectRepo.Get(ctx, projectId)
	if err != nil {
		log.Errorw("get project failed", "projectId", projectId, "error", err)
		return nil, fmt.Errorf("get project failed: %w", err)
	}
	if project == nil {
		return nil, errors.New("project not found")
	}
	return project, nil
}

// ListProjects lists projects, optionally filtered by name.
func (s *ProjectService) ListProjects(ctx context.Context, page, pageSize int, name string) ([]*model.Project, int64, error) {
	projects, total, err := s.projectRepo.List(ctx, page, pageSize, name)
	if err != nil {
		log.Errorw("list projects failed", "error", err)
		return nil, 0, fmt.Errorf("list projects failed: %w", err)
	}
	return projects, total, nil
}

// DisableProject disables a project. Existing migrations under it stay
// readable; new ones are rejected at create time.
func (s *ProjectService) DisableProject(ctx context.Context, projectId string) (*model.Project, error) {
	exists, err := s.projectRepo.Exists(ctx, projectId)
	if err != nil {
		log.Errorw("check project exists failed", "projectId", projectId, "error", err)
		return nil, fmt.Errorf("check project exists failed: %w", err)
	}
	if !exists {
		return nil, errors.New("project not found")
	}

	if err = s.projectRepo.Disable(ctx, projectId); err != nil {
		log.Errorw("disable project failed", "projectId", projectId, "error", err)
		return nil, fmt.Errorf("disable project failed: %w", err)
	}

	log.Infow("success disable project", "projectId", projectId)

	return s.projectRepo.Get(ctx, projectId)
}

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
	"time"

	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/internal/engine/repo"
	"github.com/molthq/molt/pkg/id"
	"github.com/molthq/molt/pkg/log"
	"gorm.io/gorm"
)

type RegisterBackendReq struct {
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Endpoint     string `json:"endpoint"`
	DefaultModel string `json:"defaultModel"`
}

type UpdateBackendReq struct {
	Kind         *string `json:"kind,omitempty"`
	Endpoint     *string `json:"endpoint,omitempty"`
	DefaultModel *string `json:"defaultModel,omitempty"`
	IsEnabled    *int    `json:"isEnabled,omitempty"`
}

type CreateCredentialReq struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

// BackendStatistics is the registry overview served to the dashboard.
type BackendStatistics struct {
	Total   int64 `json:"total"`
	Online  int64 `json:"online"`
	Offline int64 `json:"offline"`
}

// BackendService manages the execution backend registry that step agent
// configs resolve against by name.
type BackendService struct {
	backendRepo    repo.IAgentBackendRepository
	credentialRepo repo.ICredentialRepository
}

func NewBackendService(services *Services) *BackendService {
	return &BackendService{
		backendRepo:    services.BackendRepo,
		credentialRepo: services.CredentialRepo,
	}
}

// RegisterBackend registers a new execution backend. It starts offline;
// the first heartbeat flips it online.
func (s *BackendService) RegisterBackend(ctx context.Context, req *RegisterBackendReq) (*model.AgentBackend, error) {
	if req == nil || strings.TrimSpace(req.Name) == "" {
		return nil, errors.New("backend name cannot be empty")
	}
	if !model.ValidAgentKind(req.Kind) {
		return nil, fmt.Errorf("unknown backend kind: %s", req.Kind)
	}

	name := strings.TrimSpace(req.Name)
	_, err := s.backendRepo.GetByName(ctx, name)
	if err == nil {
		return nil, errors.New("backend name already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorw("check backend name failed", "name", name, "error", err)
		return nil, fmt.Errorf("check backend name failed: %w", err)
	}

	backend := &model.AgentBackend{
		BackendId:    id.GetUild(),
		Name:         name,
		Kind:         req.Kind,
		Endpoint:     req.Endpoint,
		DefaultModel: req.DefaultModel,
		Status:       model.BackendStatusOffline,
		IsEnabled:    1,
	}
	if err := s.backendRepo.Create(ctx, backend); err != nil {
		log.Errorw("register backend failed", "name", backend.Name, "error", err)
		return nil, fmt.Errorf("register backend failed: %w", err)
	}

	log.Infow("success register backend", "name", backend.Name, "backendId", backend.BackendId)

	return backend, nil
}

// Heartbeat marks the backend online and stamps the heartbeat time.
func (s *BackendService) Heartbeat(ctx context.Context, backendId string) error {
	if _, err := s.getBackend(ctx, backendId); err != nil {
		return err
	}

	updates := map[string]any{
		"status":         model.BackendStatusOnline,
		"last_heartbeat": time.Now().UnixMilli(),
	}
	if err := s.backendRepo.Patch(ctx, backendId, updates); err != nil {
		log.Errorw("heartbeat backend failed", "backendId", backendId, "error", err)
		return fmt.Errorf("heartbeat backend failed: %w", err)
	}
	return nil
}

// GetBackend returns backend by backendId.
func (s *BackendService) GetBackend(ctx context.Context, backendId string) (*model.AgentBackend, error) {
	return s.getBackend(ctx, backendId)
}

// ListBackends pages through the registry.
func (s *BackendService) ListBackends(ctx context.Context, page, pageSize int) ([]model.AgentBackend, int64, error) {
	backends, total, err := s.backendRepo.List(ctx, page, pageSize)
	if err != nil {
		log.Errorw("list backends failed", "error", err)
		return nil, 0, fmt.Errorf("list backends failed: %w", err)
	}
	return backends, total, nil
}

// UpdateBackend merges the provided fields into the backend row.
func (s *BackendService) UpdateBackend(ctx context.Context, backendId string, req *UpdateBackendReq) (*model.AgentBackend, error) {
	if _, err := s.getBackend(ctx, backendId); err != nil {
		return nil, err
	}

	updates := make(map[string]any)
	if req != nil {
		if req.Kind != nil {
			if !model.ValidAgentKind(*req.Kind) {
				return nil, fmt.Errorf("unknown backend kind: %s", *req.Kind)
			}
			updates["kind"] = *req.Kind
		}
		if req.Endpoint != nil {
			updates["endpoint"] = *req.Endpoint
		}
		if req.DefaultModel != nil {
			updates["default_model"] = *req.DefaultModel
		}
		if req.IsEnabled != nil {
			updates["is_enabled"] = *req.IsEnabled
		}
	}

	if len(updates) > 0 {
		if err := s.backendRepo.Patch(ctx, backendId, updates); err != nil {
			log.Errorw("update backend failed", "backendId", backendId, "error", err)
			return nil, fmt.Errorf("update backend failed: %w", err)
		}
	}

	return s.getBackend(ctx, backendId)
}

// DeleteBackend removes the backend and its scoped credentials.
func (s *BackendService) DeleteBackend(ctx context.Context, backendId string) error {
	backend, err := s.getBackend(ctx, backendId)
	if err != nil {
		return err
	}

	credentials, err := s.credentialRepo.ListByScope(ctx, backend.Name)
	if err != nil {
		log.Errorw("list backend credentials failed", "backendId", backendId, "error", err)
		return fmt.Errorf("list backend credentials failed: %w", err)
	}
	for _, c := range credentials {
		if err := s.credentialRepo.Delete(ctx, c.CredentialId); err != nil {
			log.Errorw("delete backend credential failed", "credentialId", c.CredentialId, "error", err)
			return fmt.Errorf("delete backend credential failed: %w", err)
		}
	}

	if err := s.backendRepo.Delete(ctx, backendId); err != nil {
		log.Errorw("delete backend failed", "backendId", backendId, "error", err)
		return fmt.Errorf("delete backend failed: %w", err)
	}

	log.Infow("success delete backend", "backendId", backendId, "name", backend.Name)

	return nil
}

// Statistics returns registry counts for the dashboard.
func (s *BackendService) Statistics(ctx context.Context) (*BackendStatistics, error) {
	total, online, offline, err := s.backendRepo.Statistics(ctx)
	if err != nil {
		log.Errorw("backend statistics failed", "error", err)
		return nil, fmt.Errorf("backend statistics failed: %w", err)
	}
	return &BackendStatistics{Total: total, Online: online, Offline: offline}, nil
}

// CreateCredential stores an encrypted credential scoped to a backend.
func (s *BackendService) CreateCredential(ctx context.Context, backendId string, req *CreateCredentialReq) (*model.Credential, error) {
	if req == nil || strings.TrimSpace(req.Name) == "" {
		return nil, errors.New("credential name cannot be empty")
	}
	if req.Value == "" {
		return nil, errors.New("credential value cannot be empty")
	}

	backend, err := s.getBackend(ctx, backendId)
	if err != nil {
		return nil, err
	}

	credential := &model.Credential{
		CredentialId: id.GetUild(),
		Name:         strings.TrimSpace(req.Name),
		Scope:        backend.Name,
		Description:  req.Description,
	}
	if err := s.credentialRepo.Create(ctx, credential, req.Value); err != nil {
		log.Errorw("create credential failed", "backendId", backendId, "error", err)
		return nil, fmt.Errorf("create credential failed: %w", err)
	}

	log.Infow("success create credential", "credentialId", credential.CredentialId, "scope", credential.Scope)

	return credential, nil
}

// ListCredentials lists the credentials scoped to a backend. Values stay
// encrypted; the response never carries plaintext.
func (s *BackendService) ListCredentials(ctx context.Context, backendId string) ([]*model.Credential, error) {
	backend, err := s.getBackend(ctx, backendId)
	if err != nil {
		return nil, err
	}

	credentials, err := s.credentialRepo.ListByScope(ctx, backend.Name)
	if err != nil {
		log.Errorw("list credentials failed", "backendId", backendId, "error", err)
		return nil, fmt.Errorf("list credentials failed: %w", err)
	}
	return credentials, nil
}

// DeleteCredential removes one credential.
func (s *BackendService) DeleteCredential(ctx context.Context, credentialId string) error {
	if _, err := s.credentialRepo.Get(ctx, credentialId); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("credential not found")
		}
		log.Errorw("get credential failed", "credentialId", credentialId, "error", err)
		return fmt.Errorf("get credential failed: %w", err)
	}

	if err := s.credentialRepo.Delete(ctx, credentialId); err != nil {
		log.Errorw("delete credential failed", "credentialId", credentialId, "error", err)
		return fmt.Errorf("delete credential failed: %w", err)
	}

	log.Infow("success delete credential", "credentialId", credentialId)

	return nil
}

func (s *BackendService) getBackend(ctx context.Context, backendId string) (*model.AgentBackend, error) {
	backend, err := s.backendRepo.Get(ctx, backendId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("backend not found")
		}
		log.Errorw("get backend failed", "backendId", backendId, "error", err)
		return nil, fmt.Errorf("get backend failed: %w", err)
	}
	return backend, nil
}

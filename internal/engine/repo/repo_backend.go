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
	"time"

	"github.com/molthq/molt/internal/engine/consts"
	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/pkg/cache"
	"github.com/molthq/molt/pkg/database"
	"github.com/molthq/molt/pkg/log"
)

// IAgentBackendRepository defines execution backend persistence with context support.
// All methods use the business identifier backendId; lookups by name serve
// StepAgentConfig resolution.
type IAgentBackendRepository interface {
	Create(ctx context.Context, backend *model.AgentBackend) error
	Get(ctx context.Context, backendId string) (*model.AgentBackend, error)
	GetByName(ctx context.Context, name string) (*model.AgentBackend, error)
	Patch(ctx context.Context, backendId string, updates map[string]any) error
	Delete(ctx context.Context, backendId string) error
	List(ctx context.Context, page, size int) ([]model.AgentBackend, int64, error)
	Statistics(ctx context.Context) (total, online, offline int64, err error)
}

type AgentBackendRepo struct {
	database.IDatabase
	cache.ICache
}

// NewAgentBackendRepo creates a backend repository with optional cache.
func NewAgentBackendRepo(db database.IDatabase, cache cache.ICache) IAgentBackendRepository {
	if cache == nil {
		log.Warnw("AgentBackendRepo initialized without cache, caching will be disabled")
	}
	return &AgentBackendRepo{
		IDatabase: db,
		ICache:    cache,
	}
}

// Create creates a new backend.
func (br *AgentBackendRepo) Create(ctx context.Context, backend *model.AgentBackend) error {
	if err := br.Database().WithContext(ctx).Table(backend.TableName()).Create(backend).Error; err != nil {
		return err
	}
	return nil
}

var backendSelectFields = []string{
	"id",
	"backend_id",
	"name",
	"kind",
	"endpoint",
	"default_model",
	"status",
	"last_heartbeat",
	"is_enabled",
	"created_at",
	"updated_at",
}

// Get returns backend by backendId.
func (br *AgentBackendRepo) Get(ctx context.Context, backendId string) (*model.AgentBackend, error) {
	return br.getBackendCached(ctx, consts.BackendDetailKey, "backend_id", backendId)
}

// GetByName returns backend by its unique name.
func (br *AgentBackendRepo) GetByName(ctx context.Context, name string) (*model.AgentBackend, error) {
	return br.getBackendCached(ctx, consts.BackendByNameKey, "name", name)
}

func (br *AgentBackendRepo) getBackendCached(ctx context.Context, keyPrefix, column, value string) (*model.AgentBackend, error) {
	keyFunc := func(params ...any) string {
		return keyPrefix + params[0].(string)
	}

	queryFunc := func(ctx context.Context) (*model.AgentBackend, error) {
		var backend model.AgentBackend
		if err := br.Database().
			WithContext(ctx).
			Table(backend.TableName()).
			Select(backendSelectFields).
			Where(column+" = ?", value).
			First(&backend).Error; err != nil {
			return nil, err
		}
		return &backend, nil
	}

	cq := cache.NewCachedQuery(
		br.ICache,
		keyFunc,
		queryFunc,
		cache.WithTTL[*model.AgentBackend](5*time.Minute),
		cache.WithLogPrefix[*model.AgentBackend]("[AgentBackendRepo]"),
	)

	return cq.Get(ctx, value)
}

// Patch patches backend fields by backendId.
func (br *AgentBackendRepo) Patch(ctx context.Context, backendId string, updates map[string]any) error {
	if err := br.Database().WithContext(ctx).Table((&model.AgentBackend{}).TableName()).
		Where("backend_id = ?", backendId).Updates(updates).Error; err != nil {
		return err
	}

	// For heartbeat updates (last_heartbeat, status), refresh cache instead of invalidating
	if len(updates) == 2 {
		if _, hasHeartbeat := updates["last_heartbeat"]; hasHeartbeat {
			if _, hasStatus := updates["status"]; hasStatus {
				br.refreshBackendCache(ctx, backendId)
				return nil
			}
		}
	}
	br.invalidateBackendCache(ctx, backendId)
	return nil
}

// Delete deletes backend by backendId.
func (br *AgentBackendRepo) Delete(ctx context.Context, backendId string) error {
	if err := br.Database().WithContext(ctx).Table((&model.AgentBackend{}).TableName()).
		Where("backend_id = ?", backendId).Delete(&model.AgentBackend{}).Error; err != nil {
		return err
	}
	br.invalidateBackendCache(ctx, backendId)
	return nil
}

// List lists backends with pagination.
func (br *AgentBackendRepo) List(ctx context.Context, page, size int) ([]model.AgentBackend, int64, error) {
	var backends []model.AgentBackend
	var backend model.AgentBackend
	var count int64
	page, size = clampPage(page, size)
	offset := (page - 1) * size

	if err := br.Database().WithContext(ctx).Table(backend.TableName()).Count(&count).Error; err != nil {
		return nil, 0, err
	}

	if err := br.Database().WithContext(ctx).Select(backendSelectFields).
		Table(backend.TableName()).
		Offset(offset).Limit(size).Find(&backends).Error; err != nil {
		return nil, 0, err
	}
	return backends, count, nil
}

// Statistics returns backend counts: total, online, offline.
func (br *AgentBackendRepo) Statistics(ctx context.Context) (total, online, offline int64, err error) {
	var backend model.AgentBackend

	if err := br.Database().WithContext(ctx).Table(backend.TableName()).Count(&total).Error; err != nil {
		return 0, 0, 0, err
	}
	if err := br.Database().WithContext(ctx).Table(backend.TableName()).Where("status = ?", model.BackendStatusOnline).Count(&online).Error; err != nil {
		return 0, 0, 0, err
	}
	if err := br.Database().WithContext(ctx).Table(backend.TableName()).Where("status = ?", model.BackendStatusOffline).Count(&offline).Error; err != nil {
		return 0, 0, 0, err
	}
	return total, online, offline, nil
}

// invalidateBackendCache clears both id and name keyed entries.
func (br *AgentBackendRepo) invalidateBackendCache(ctx context.Context, backendId string) {
	byId := cache.NewCachedQuery[*model.AgentBackend](br.ICache, func(params ...any) string {
		return consts.BackendDetailKey + params[0].(string)
	}, nil)
	_ = byId.Invalidate(ctx, backendId)

	backend, err := br.lookupBackend(ctx, backendId)
	if err != nil || backend == nil {
		return
	}
	byName := cache.NewCachedQuery[*model.AgentBackend](br.ICache, func(params ...any) string {
		return consts.BackendByNameKey + params[0].(string)
	}, nil)
	_ = byName.Invalidate(ctx, backend.Name)
}

// refreshBackendCache refreshes backend cache after heartbeat updates.
// Drops the stale entry first, then warms it with the fresh row.
func (br *AgentBackendRepo) refreshBackendCache(ctx context.Context, backendId string) {
	if br.ICache == nil {
		return
	}
	br.invalidateBackendCache(ctx, backendId)
	_, err := br.getBackendCached(ctx, consts.BackendDetailKey, "backend_id", backendId)
	if err == nil {
		log.Debugw("backend cache refreshed after heartbeat update", "backendId", backendId)
	} else {
		log.Warnw("failed to refresh backend cache", "backendId", backendId, "error", err)
	}
}

func (br *AgentBackendRepo) lookupBackend(ctx context.Context, backendId string) (*model.AgentBackend, error) {
	var backend model.AgentBackend
	if err := br.Database().WithContext(ctx).
		Table(backend.TableName()).
		Select("backend_id", "name").
		Where("backend_id = ?", backendId).
		First(&backend).Error; err != nil {
		return nil, err
	}
	return &backend, nil
}

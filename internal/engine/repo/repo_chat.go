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

	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/pkg/database"
)

// IChatRepository persists the per-migration configuration chat.
// Append-only; ordering is timestamp then id and never changes.
type IChatRepository interface {
	Append(ctx context.Context, msg *model.ConfigChatMessage) error
	List(ctx context.Context, migrationId string) ([]*model.ConfigChatMessage, error)
	DeleteByMigration(ctx context.Context, migrationId string) error
}

type ChatRepo struct {
	database.IDatabase
}

// NewChatRepo creates the chat repository.
func NewChatRepo(db database.IDatabase) IChatRepository {
	return &ChatRepo{IDatabase: db}
}

// Append appends one chat message.
func (r *ChatRepo) Append(ctx context.Context, msg *model.ConfigChatMessage) error {
	return r.Database().WithContext(ctx).Create(msg).Error
}

// List returns the full chat for a migration in conversation order.
func (r *ChatRepo) List(ctx context.Context, migrationId string) ([]*model.ConfigChatMessage, error) {
	var list []*model.ConfigChatMessage
	err := r.Database().WithContext(ctx).
		Where("migration_id = ?", migrationId).
		Order("timestamp ASC, id ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteByMigration removes the chat for a migration. Janitor use.
func (r *ChatRepo) DeleteByMigration(ctx context.Context, migrationId string) error {
	return r.Database().WithContext(ctx).
		Where("migration_id = ?", migrationId).
		Delete(&model.ConfigChatMessage{}).Error
}

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
)

// ChatService keeps the configuration conversation of a migration. The
// transcript is append-only; it is removed only when the migration record
// itself is reaped.
type ChatService struct {
	chatRepo      repo.IChatRepository
	migrationRepo repo.IMigrationRepository
}

func NewChatService(services *Services) *ChatService {
	return &ChatService{
		chatRepo:      services.ChatRepo,
		migrationRepo: services.MigrationRepo,
	}
}

// AppendMessage appends one message to the migration's transcript. Role
// defaults to user when empty.
func (s *ChatService) AppendMessage(ctx context.Context, migrationId, role, content string) (*model.ConfigChatMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("content cannot be empty")
	}
	if role == "" {
		role = model.ChatRoleUser
	}
	if !model.ValidChatRole(role) {
		return nil, fmt.Errorf("unknown chat role: %s", role)
	}

	record, err := s.migrationRepo.Get(ctx, migrationId)
	if err != nil {
		log.Errorw("get migration failed", "migrationId", migrationId, "error", err)
		return nil, fmt.Errorf("get migration failed: %w", err)
	}
	if record == nil {
		return nil, errors.New("migration not found")
	}

	msg := &model.ConfigChatMessage{
		MessageId:   id.GetXid(),
		MigrationId: migrationId,
		Role:        role,
		Content:     content,
		Timestamp:   time.Now().UnixMilli(),
	}
	if err := s.chatRepo.Append(ctx, msg); err != nil {
		log.Errorw("append chat message failed", "migrationId", migrationId, "error", err)
		return nil, fmt.Errorf("append chat message failed: %w", err)
	}
	return msg, nil
}

// ListMessages returns the transcript in insertion order.
func (s *ChatService) ListMessages(ctx context.Context, migrationId string) ([]*model.ConfigChatMessage, error) {
	msgs, err := s.chatRepo.List(ctx, migrationId)
	if err != nil {
		log.Errorw("list chat messages failed", "migrationId", migrationId, "error", err)
		return nil, fmt.Errorf("list chat messages failed: %w", err)
	}
	return msgs, nil
}

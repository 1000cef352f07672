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
	"github.com/molthq/molt/internal/engine/feed"
	"github.com/molthq/molt/internal/engine/repo"
	"github.com/molthq/molt/pkg/cache"
	"github.com/molthq/molt/pkg/database"
	"github.com/molthq/molt/pkg/event"
	"github.com/molthq/molt/pkg/nova"
)

// Services 服务层共享依赖
// One instance per process; individual services pick the pieces they need.
type Services struct {
	db    database.IDatabase
	cache cache.ICache

	MigrationRepo  repo.IMigrationRepository
	ResultRepo     repo.IResultRepository
	ChatRepo       repo.IChatRepository
	ProjectRepo    repo.IProjectRepository
	BackendRepo    repo.IAgentBackendRepository
	CredentialRepo repo.ICredentialRepository
	StorageRepo    repo.IStorageRepository
	NotifyRepo     repo.INotifyRepository
	ArtifactRepo   repo.IArtifactRepository

	// Feed fans row changes out to live subscribers.
	Feed feed.Bus
	// Events carries record transitions to in-process consumers (notify).
	Events *event.Bus
	// Queue is the command doorbell toward agents. Nil when no broker is
	// configured; publishes are skipped, the agent poll loop covers.
	Queue nova.TaskQueue
}

// NewServices wires the shared service dependencies.
func NewServices(
	db database.IDatabase,
	cache cache.ICache,
	repos *repo.Repositories,
	feedBus feed.Bus,
	events *event.Bus,
	queue nova.TaskQueue,
) *Services {
	return &Services{
		db:             db,
		cache:          cache,
		MigrationRepo:  repos.Migration,
		ResultRepo:     repos.Result,
		ChatRepo:       repos.Chat,
		ProjectRepo:    repos.Project,
		BackendRepo:    repos.Backend,
		CredentialRepo: repos.Credential,
		StorageRepo:    repos.Storage,
		NotifyRepo:     repos.Notify,
		ArtifactRepo:   repos.Artifact,
		Feed:           feedBus,
		Events:         events,
		Queue:          queue,
	}
}

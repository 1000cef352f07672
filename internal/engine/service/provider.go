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
	"github.com/google/wire"

	"github.com/molthq/molt/internal/engine/config"
	"github.com/molthq/molt/internal/engine/feed"
	"github.com/molthq/molt/internal/engine/repo"
	"github.com/molthq/molt/pkg/cache"
	"github.com/molthq/molt/pkg/database"
	"github.com/molthq/molt/pkg/event"
	"github.com/molthq/molt/pkg/nova"
	"github.com/molthq/molt/pkg/taskqueue"
)

// ProviderSet 提供服务层相关的依赖
var ProviderSet = wire.NewSet(
	ProvideServices,
	ProvideEventBus,
	ProvideTaskQueue,
	NewSyncService,
	NewLogAggregator,
	NewTransitionRelay,
)

// ProvideServices 提供统一的 Services 实例
func ProvideServices(
	db database.IDatabase,
	cache cache.ICache,
	repos *repo.Repositories,
	feedBus feed.Bus,
	events *event.Bus,
	queue nova.TaskQueue,
) *Services {
	return NewServices(db, cache, repos, feedBus, events, queue)
}

// ProvideEventBus provides the engine-internal event bus.
func ProvideEventBus() *event.Bus {
	return event.NewEventBus()
}

// ProvideTaskQueue provides the agent doorbell queue. A nil queue is
// valid: commands then travel through the store alone and the agent poll
// loop picks them up.
func ProvideTaskQueue(conf *config.AppConfig) (nova.TaskQueue, func(), error) {
	queue, err := taskqueue.BuildQueue(conf.MessageQueue.Kafka, conf.TaskQueue, "molt-engine")
	if err != nil {
		return nil, nil, err
	}
	if queue == nil {
		return nil, func() {}, nil
	}
	return queue, func() { _ = queue.Stop() }, nil
}

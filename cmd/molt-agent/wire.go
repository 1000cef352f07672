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

//go:build wireinject

package main

import (
	"github.com/molthq/molt/internal/agent/bootstrap"
	"github.com/molthq/molt/internal/agent/config"
	"github.com/molthq/molt/internal/agent/runner"
	"github.com/molthq/molt/internal/engine/feed"
	"github.com/molthq/molt/internal/engine/repo"
	"github.com/molthq/molt/pkg/cache"
	"github.com/molthq/molt/pkg/database"
	"github.com/molthq/molt/pkg/log"
	"github.com/molthq/molt/pkg/metrics"
	"github.com/google/wire"
)

func initAgent(configPath string) (*bootstrap.Agent, func(), error) {
	panic(wire.Build(
		// 配置层
		config.ProviderSet,
		// 日志层（依赖 config）
		log.ProviderSet,
		// 数据库层（依赖 config, log）
		database.ProviderSet,
		// 缓存层（依赖 config）
		cache.ProviderSet,
		// 事件流层（依赖 config, cache）
		feed.ProviderSet,
		// 指标层（依赖 config）
		metrics.ProviderSet,
		// 仓储层（依赖 database, cache）
		repo.ProviderSet,
		// 执行层（依赖 config, repo, feed）
		runner.NewRunner,
		// 应用层
		bootstrap.ProviderSet,
	))
}

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
// +build wireinject

package main

import (
	"github.com/molthq/molt/internal/engine/bootstrap"
	"github.com/molthq/molt/internal/engine/config"
	"github.com/molthq/molt/internal/engine/feed"
	"github.com/molthq/molt/internal/engine/janitor"
	"github.com/molthq/molt/internal/engine/repo"
	"github.com/molthq/molt/internal/engine/router"
	"github.com/molthq/molt/internal/engine/service"
	"github.com/molthq/molt/pkg/cache"
	"github.com/molthq/molt/pkg/database"
	"github.com/molthq/molt/pkg/log"
	"github.com/molthq/molt/pkg/metrics"
	"github.com/molthq/molt/pkg/shutdown"
	"github.com/google/wire"
)

func initApp(configPath string) (*bootstrap.App, func(), error) {
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
		// 服务层（依赖 repo, feed, database, cache）
		service.ProviderSet,
		// 路由层（依赖 config, service）
		router.ProviderSet,
		// 清理层（依赖 config, service）
		janitor.ProviderSet,
		// 停机协调层
		shutdown.ProviderSet,
		// 应用层
		bootstrap.ProviderSet,
	))
}

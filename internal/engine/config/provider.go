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

package config

import (
	"github.com/google/wire"

	"github.com/molthq/molt/internal/engine/feed"
	"github.com/molthq/molt/pkg/cache"
	"github.com/molthq/molt/pkg/database"
	"github.com/molthq/molt/pkg/log"
	"github.com/molthq/molt/pkg/metrics"
)

func ProvideLogOptions(conf *AppConfig) log.Options {
	return conf.Log
}

func ProvideDatabase(conf *AppConfig) database.Database {
	return conf.Database
}

func ProvideRedis(conf *AppConfig) *cache.Redis {
	return &conf.Redis
}

func ProvideMetricsConfig(conf *AppConfig) metrics.MetricsConfig {
	return conf.Metrics
}

func ProvideFeedConfig(conf *AppConfig) *feed.Config {
	return &conf.Feed
}

// ProviderSet 提供配置层相关的依赖
var ProviderSet = wire.NewSet(
	NewConf,
	ProvideLogOptions,
	ProvideDatabase,
	ProvideRedis,
	ProvideMetricsConfig,
	ProvideFeedConfig,
)

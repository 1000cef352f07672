// Copyright 2025 Molt Team
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
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/molthq/molt/internal/engine/feed"
	"github.com/molthq/molt/pkg/http"
	"github.com/molthq/molt/pkg/mq/kafka"
	"github.com/molthq/molt/pkg/nova"
	"github.com/spf13/viper"

	"github.com/molthq/molt/pkg/cache"
	"github.com/molthq/molt/pkg/database"
	"github.com/molthq/molt/pkg/log"
	"github.com/molthq/molt/pkg/metrics"
	"github.com/molthq/molt/pkg/trace"
)

type MessageQueueConfig struct {
	Kafka kafka.KafkaConfig `mapstructure:"kafka"`
}

// JanitorConfig controls hard deletion of delete-marked migrations.
type JanitorConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Schedule string        `mapstructure:"schedule"`
	Grace    time.Duration `mapstructure:"grace"`
}

func (j *JanitorConfig) SetDefaults() {
	if j.Schedule == "" {
		j.Schedule = "@every 1h"
	}
	if j.Grace <= 0 {
		j.Grace = 24 * time.Hour
	}
}

// StorageConfig carries artifact storage behavior shared by all providers.
type StorageConfig struct {
	DownloadTTL time.Duration `mapstructure:"downloadTTL"`
}

func (s *StorageConfig) SetDefaults() {
	if s.DownloadTTL <= 0 {
		s.DownloadTTL = 15 * time.Minute
	}
}

// NotifyConfig controls outbound notification delivery.
type NotifyConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Timeout int  `mapstructure:"timeout"`
}

type AppConfig struct {
	Log          log.Options           `mapstructure:"log"`
	Http         http.Http             `mapstructure:"http"`
	Database     database.Database     `mapstructure:"database"`
	Redis        cache.Redis           `mapstructure:"redis"`
	MessageQueue MessageQueueConfig    `mapstructure:"messageQueue"`
	Metrics      metrics.MetricsConfig `mapstructure:"metrics"`
	Trace        trace.Config          `mapstructure:"trace"`
	Feed         feed.Config           `mapstructure:"feed"`
	Janitor      JanitorConfig         `mapstructure:"janitor"`
	Storage      StorageConfig         `mapstructure:"storage"`
	Notify       NotifyConfig          `mapstructure:"notify"`
	TaskQueue    nova.TaskQueueConfig  `mapstructure:"taskQueue"`
}

func (c *AppConfig) setDefaults() {
	c.Http.SetDefaults()
	c.Metrics.SetDefaults()
	c.Feed.SetDefaults()
	c.Janitor.SetDefaults()
	c.Storage.SetDefaults()
}

var (
	cfg  AppConfig
	mu   sync.RWMutex // 保护配置的读写
	once sync.Once
)

func NewConf(confDir string) *AppConfig {
	once.Do(func() {
		var err error
		cfg, err = LoadConfigFile(confDir)
		if err != nil {
			panic(fmt.Sprintf("load config file error: %s", err))
		}
	})
	mu.RLock()
	defer mu.RUnlock()
	return &cfg
}

// GetConfig 获取当前配置（用于热重载场景）
func GetConfig() AppConfig {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// LoadConfigFile load config file
func LoadConfigFile(confDir string) (AppConfig, error) {

	config := viper.New()
	config.SetConfigFile(confDir) //文件名
	if err := config.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("failed to read configuration file: %v", err)
	}

	config.WatchConfig()
	config.OnConfigChange(func(e fsnotify.Event) {
		log.Infow("The configuration changes, re-analyze the configuration file", "file", e.Name)
		if err := config.ReadInConfig(); err != nil {
			log.Errorw("failed to re-read configuration file", "error", err, "file", e.Name)
			return
		}
		// 使用写锁保护配置更新
		mu.Lock()
		if err := config.Unmarshal(&cfg); err != nil {
			mu.Unlock()
			log.Errorw("failed to unmarshal configuration file", "error", err, "file", e.Name)
			return
		}
		cfg.setDefaults()
		mu.Unlock()
		log.Infow("configuration reloaded successfully", "file", e.Name)
	})
	if err := config.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal configuration file: %v", err)
	}
	cfg.setDefaults()
	log.Infow("config file loaded",
		"path", confDir,
	)

	return cfg, nil
}

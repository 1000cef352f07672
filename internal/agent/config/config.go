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
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/molthq/molt/internal/engine/feed"
	"github.com/molthq/molt/pkg/cache"
	"github.com/molthq/molt/pkg/database"
	"github.com/molthq/molt/pkg/log"
	"github.com/molthq/molt/pkg/metrics"
	"github.com/molthq/molt/pkg/mq/kafka"
	"github.com/molthq/molt/pkg/nova"
	"github.com/molthq/molt/pkg/trace"
)

type MessageQueueConfig struct {
	Kafka kafka.KafkaConfig `mapstructure:"kafka"`
}

// RunnerConfig controls the worker loop.
type RunnerConfig struct {
	AgentId           string        `mapstructure:"agentId"`
	EngineEndpoint    string        `mapstructure:"engineEndpoint"`
	PollInterval      time.Duration `mapstructure:"pollInterval"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeatInterval"`
	StepTimeout       time.Duration `mapstructure:"stepTimeout"`
	StepRetries       int           `mapstructure:"stepRetries"`
	WorkspaceDir      string        `mapstructure:"workspaceDir"`
	Concurrency       int           `mapstructure:"concurrency"`
}

func (r *RunnerConfig) SetDefaults() {
	if r.AgentId == "" {
		r.AgentId = "molt-agent"
	}
	if r.EngineEndpoint == "" {
		r.EngineEndpoint = "http://127.0.0.1:8080"
	}
	if r.PollInterval <= 0 {
		r.PollInterval = 5 * time.Second
	}
	if r.HeartbeatInterval <= 0 {
		r.HeartbeatInterval = 30 * time.Second
	}
	if r.StepTimeout <= 0 {
		r.StepTimeout = 30 * time.Minute
	}
	if r.StepRetries < 0 {
		r.StepRetries = 0
	}
	if r.WorkspaceDir == "" {
		r.WorkspaceDir = "/var/lib/molt/workspaces"
	}
	if r.Concurrency <= 0 {
		r.Concurrency = 2
	}
}

// ExecutorConfig carries backend execution knobs.
type ExecutorConfig struct {
	ContainerdAddress   string `mapstructure:"containerdAddress"`
	ContainerdNamespace string `mapstructure:"containerdNamespace"`
}

func (e *ExecutorConfig) SetDefaults() {
	if e.ContainerdAddress == "" {
		e.ContainerdAddress = "/run/containerd/containerd.sock"
	}
	if e.ContainerdNamespace == "" {
		e.ContainerdNamespace = "molt"
	}
}

// OutboxConfig maps onto pkg/outbox. Enabled=false drops the fallback
// path entirely; failed store writes are then surfaced as step errors.
type OutboxConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Dir            string        `mapstructure:"dir"`
	SegmentMaxSeq  int           `mapstructure:"segmentMaxSeq"`
	FsyncInterval  time.Duration `mapstructure:"fsyncInterval"`
	SendBatchSize  int           `mapstructure:"sendBatchSize"`
	SendInterval   time.Duration `mapstructure:"sendInterval"`
	MaxDiskUsageMB int64         `mapstructure:"maxDiskUsageMB"`
	MinDiskFreeMB  int64         `mapstructure:"minDiskFreeMB"`
}

type AgentConfig struct {
	Log          log.Options           `mapstructure:"log"`
	Database     database.Database     `mapstructure:"database"`
	Redis        cache.Redis           `mapstructure:"redis"`
	Feed         feed.Config           `mapstructure:"feed"`
	MessageQueue MessageQueueConfig    `mapstructure:"messageQueue"`
	TaskQueue    nova.TaskQueueConfig  `mapstructure:"taskQueue"`
	Runner       RunnerConfig          `mapstructure:"runner"`
	Executor     ExecutorConfig        `mapstructure:"executor"`
	Outbox       OutboxConfig          `mapstructure:"outbox"`
	Metrics      metrics.MetricsConfig `mapstructure:"metrics"`
	Trace        trace.Config          `mapstructure:"trace"`
}

func (c *AgentConfig) setDefaults() {
	c.Feed.SetDefaults()
	c.Runner.SetDefaults()
	c.Executor.SetDefaults()
	c.Metrics.SetDefaults()
}

var (
	cfg  AgentConfig
	mu   sync.RWMutex // 保护配置的读写
	once sync.Once
)

func NewConf(confDir string) *AgentConfig {
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

// LoadConfigFile load config file
func LoadConfigFile(confDir string) (AgentConfig, error) {

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

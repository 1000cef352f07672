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

package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/wire"
	"go.uber.org/zap"

	agentconfig "github.com/molthq/molt/internal/agent/config"
	"github.com/molthq/molt/internal/agent/executor"
	"github.com/molthq/molt/internal/agent/logstream"
	"github.com/molthq/molt/internal/agent/runner"
	"github.com/molthq/molt/internal/engine/repo"
	"github.com/molthq/molt/pkg/log"
	"github.com/molthq/molt/pkg/metrics"
	"github.com/molthq/molt/pkg/nova"
	"github.com/molthq/molt/pkg/taskqueue"
	"github.com/molthq/molt/pkg/trace"
)

// Agent bundles the wired worker process.
type Agent struct {
	Runner        *runner.Runner
	MetricsServer *metrics.Server
	Logger        *log.Logger
	Conf          *agentconfig.AgentConfig
}

// InitAgentFunc init agent function type
type InitAgentFunc func(configPath string) (*Agent, func(), error)

// ProvideExecutor builds the step executor on the shared repositories.
func ProvideExecutor(conf *agentconfig.AgentConfig, repos *repo.Repositories) *executor.Executor {
	return executor.New(conf, repos.Backend, repos.Credential)
}

// ProvideLogPublisher builds the exec-log shipper. Nil without kafka;
// runs then lose the live log tail only.
func ProvideLogPublisher(conf *agentconfig.AgentConfig) (*logstream.KafkaLogPublisher, func(), error) {
	pub, err := logstream.NewKafkaLogPublisher(conf.MessageQueue.Kafka)
	if err != nil {
		return nil, nil, err
	}
	if pub == nil {
		return nil, func() {}, nil
	}
	return pub, func() { pub.Close() }, nil
}

// ProvideTaskQueue provides the doorbell consumer queue. A nil queue is
// valid; the poll loop alone picks up commands then.
func ProvideTaskQueue(conf *agentconfig.AgentConfig) (nova.TaskQueue, func(), error) {
	queue, err := taskqueue.BuildQueue(conf.MessageQueue.Kafka, conf.TaskQueue, "molt-agent")
	if err != nil {
		return nil, nil, err
	}
	if queue == nil {
		return nil, func() {}, nil
	}
	return queue, func() { _ = queue.Stop() }, nil
}

func NewAgent(
	run *runner.Runner,
	metricsServer *metrics.Server,
	logger *log.Logger,
	conf *agentconfig.AgentConfig,
) (*Agent, func(), error) {
	agent := &Agent{
		Runner:        run,
		MetricsServer: metricsServer,
		Logger:        logger,
		Conf:          conf,
	}

	cleanup := func() {
		// stop metrics server
		if metricsServer != nil {
			log.Info("Shutting down metrics server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Stop(shutdownCtx); err != nil {
				log.Errorw("Failed to stop metrics server", zap.Error(err))
			}
		}

		// shutdown OpenTelemetry tracing
		log.Info("Shutting down OpenTelemetry tracing...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := trace.Shutdown(shutdownCtx); err != nil {
			log.Errorw("Failed to shutdown OpenTelemetry tracing", zap.Error(err))
		}
	}

	return agent, cleanup, nil
}

// Bootstrap init agent, return Agent instance and cleanup function
func Bootstrap(configFile string, initAgent InitAgentFunc) (*Agent, func(), *agentconfig.AgentConfig, error) {
	// Wire build Agent (所有依赖都由 wire 自动注入)
	agent, cleanup, err := initAgent(configFile)
	if err != nil {
		return nil, nil, nil, err
	}

	conf := agent.Conf

	// Initialize OpenTelemetry Tracing (在 Run 之前，确保拦截器/中间件生效)
	if err := trace.Init(conf.Trace); err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, nil, nil, fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}

	return agent, cleanup, conf, nil
}

// Run start agent and wait for exit signal, then gracefully shutdown
func Run(agent *Agent, cleanup func()) {
	// start metrics server
	if agent.MetricsServer != nil {
		if err := agent.MetricsServer.Start(); err != nil {
			log.Errorw("Metrics server failed", zap.Error(err))
		}
	}

	// start the worker loop
	if err := agent.Runner.Start(); err != nil {
		log.Errorw("Runner failed to start", zap.Error(err))
		cleanup()
		return
	}

	// set signal listener (graceful shutdown)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-quit
	log.Infow("Received OS signal, shutting down gracefully...", "signal", sig)

	// drain in-flight runs at their next step boundary
	agent.Runner.Stop()

	// close remaining resources
	cleanup()

	log.Info("Agent shutdown complete")
}

// ProviderSet 提供 agent 装配相关的依赖
var ProviderSet = wire.NewSet(
	ProvideExecutor,
	ProvideLogPublisher,
	ProvideTaskQueue,
	NewAgent,
)

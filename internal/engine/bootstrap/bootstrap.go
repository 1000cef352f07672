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

	"github.com/gofiber/fiber/v2"
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/molthq/molt/internal/engine/config"
	"github.com/molthq/molt/internal/engine/janitor"
	"github.com/molthq/molt/internal/engine/repo"
	"github.com/molthq/molt/internal/engine/router"
	"github.com/molthq/molt/internal/engine/service"
	"github.com/molthq/molt/internal/pkg/notify"
	"github.com/molthq/molt/pkg/event"
	"github.com/molthq/molt/pkg/log"
	"github.com/molthq/molt/pkg/metrics"
	"github.com/molthq/molt/pkg/safe"
	"github.com/molthq/molt/pkg/shutdown"
	"github.com/molthq/molt/pkg/trace"
)

type App struct {
	HttpApp       *fiber.App
	MetricsServer *metrics.Server
	Logger        *log.Logger
	AppConf       *config.AppConfig
	Services      *service.Services
	Sync          *service.SyncService
	LogAgg        *service.LogAggregator
	Janitor       *janitor.Janitor
	Relay         *service.TransitionRelay
	ShutdownMgr   *shutdown.Manager
}

// InitAppFunc init app function type
type InitAppFunc func(configPath string) (*App, func(), error)

// ProvideDispatcher builds the notification dispatcher from config.
func ProvideDispatcher(appConf *config.AppConfig, repos *repo.Repositories) *notify.Dispatcher {
	timeout := time.Duration(appConf.Notify.Timeout) * time.Second
	return notify.NewDispatcher(repos.Notify, appConf.Notify.Enabled, timeout)
}

func NewApp(
	rt *router.Router,
	logger *log.Logger,
	metricsServer *metrics.Server,
	appConf *config.AppConfig,
	services *service.Services,
	syncService *service.SyncService,
	logAgg *service.LogAggregator,
	jan *janitor.Janitor,
	relay *service.TransitionRelay,
	dispatcher *notify.Dispatcher,
	events *event.Bus,
	shutdownMgr *shutdown.Manager,
) (*App, func(), error) {
	httpApp := rt.Router()

	// Record transitions are published synchronously on the write path;
	// notification delivery moves off that path here.
	events.RegisterHandler(service.MigrationTransition{}.EventName(), event.HandlerFunc(func(e event.Event) {
		t, ok := e.(service.MigrationTransition)
		if !ok {
			return
		}
		safe.Go(func() {
			if err := dispatcher.HandleTransition(context.Background(), t.Record, t.Progress); err != nil {
				log.Warnw("notify dispatch failed", "error", err)
			}
		})
	}))

	app := &App{
		HttpApp:       httpApp,
		MetricsServer: metricsServer,
		Logger:        logger,
		AppConf:       appConf,
		Services:      services,
		Sync:          syncService,
		LogAgg:        logAgg,
		Janitor:       jan,
		Relay:         relay,
		ShutdownMgr:   shutdownMgr,
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

		// release pooled notification transports
		dispatcher.Close()

		// shutdown OpenTelemetry tracing
		log.Info("Shutting down OpenTelemetry tracing...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := trace.Shutdown(shutdownCtx); err != nil {
			log.Errorw("Failed to shutdown OpenTelemetry tracing", zap.Error(err))
		}
	}

	return app, cleanup, nil
}

// Bootstrap init app, return App instance and cleanup function
func Bootstrap(configFile string, initApp InitAppFunc) (*App, func(), *config.AppConfig, error) {
	// Wire build App (所有依赖都由 wire 自动注入)
	app, cleanup, err := initApp(configFile)
	if err != nil {
		return nil, nil, nil, err
	}

	appConf := app.AppConf

	// Initialize OpenTelemetry Tracing (在 Run 之前，确保拦截器/中间件生效)
	if err := trace.Init(appConf.Trace); err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, nil, nil, fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}

	return app, cleanup, appConf, nil
}

// Run start app and wait for exit signal, then gracefully shutdown
func Run(app *App, cleanup func()) {
	appConf := app.AppConf

	// start metrics server
	if app.MetricsServer != nil {
		if err := app.MetricsServer.Start(); err != nil {
			log.Errorw("Metrics server failed", zap.Error(err))
		}
	}

	// start the exec-log aggregator and its kafka intake
	app.LogAgg.Start()
	app.LogAgg.StartKafkaConsumer(appConf.MessageQueue.Kafka)

	// start the hard-delete janitor
	if err := app.Janitor.Start(); err != nil {
		log.Errorw("Janitor failed to start", zap.Error(err))
	}

	// set signal listener (graceful shutdown)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// start HTTP server (async)
	safe.Go(func() {
		addr := appConf.Http.Host + ":" + fmt.Sprintf("%d", appConf.Http.Port)
		log.Infow("HTTP listener started",
			"address", addr,
		)
		if err := app.HttpApp.Listen(addr); err != nil {
			log.Errorw("HTTP listener failed",
				"address", addr,
				zap.Error(err),
			)
		}
	})

	// wait for exit signal
	sig := <-quit
	log.Infow("Received OS signal, shutting down gracefully...", "signal", sig)
	// mark as shutting down so readiness drains
	if app.ShutdownMgr != nil {
		app.ShutdownMgr.Shutdown()
	}

	// close HTTP server first so no new work arrives
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(appConf.Http.ShutdownTimeout)*time.Second)
	defer shutdownCancel()
	if err := app.HttpApp.ShutdownWithContext(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server shut down gracefully")
	}

	// stop background workers, then tear down live subscriptions
	app.Janitor.Stop()
	app.LogAgg.Stop()
	app.Sync.Close()

	// close remaining resources
	cleanup()

	log.Info("Server shutdown complete")
}

// ProviderSet 提供应用装配相关的依赖
var ProviderSet = wire.NewSet(
	ProvideDispatcher,
	NewApp,
)

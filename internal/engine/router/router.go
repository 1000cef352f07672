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

package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/wire"

	"github.com/molthq/molt/internal/engine/config"
	"github.com/molthq/molt/internal/engine/service"
	"github.com/molthq/molt/pkg/http"
	"github.com/molthq/molt/pkg/http/middleware"
	"github.com/molthq/molt/pkg/shutdown"
)

// Router 注册引擎 HTTP 路由
// Stateless services are built per handler call from the shared Services;
// SyncService and LogAggregator are process singletons injected here.
type Router struct {
	AppConf     *config.AppConfig
	Http        http.Http
	Services    *service.Services
	Sync        *service.SyncService
	LogAgg      *service.LogAggregator
	ShutdownMgr *shutdown.Manager
}

func NewRouter(
	appConf *config.AppConfig,
	services *service.Services,
	syncService *service.SyncService,
	logAgg *service.LogAggregator,
	shutdownMgr *shutdown.Manager,
) *Router {
	return &Router{
		AppConf:     appConf,
		Http:        appConf.Http,
		Services:    services,
		Sync:        syncService,
		LogAgg:      logAgg,
		ShutdownMgr: shutdownMgr,
	}
}

// Router builds the fiber application with the engine middleware chain.
func (rt *Router) Router() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "molt-engine",
		BodyLimit:             rt.Http.BodyLimit,
		ReadTimeout:           time.Duration(rt.Http.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(rt.Http.WriteTimeout) * time.Second,
		IdleTimeout:           time.Duration(rt.Http.IdleTimeout) * time.Second,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(middleware.CorsMiddleware())
	if rt.Http.AccessLog {
		app.Use(middleware.AccessLogMiddleware())
	}
	app.Use(middleware.HttpMetricsMiddleware())
	app.Use(middleware.ResponseMiddleware())

	rt.healthRouter(app)
	rt.RegisterRoutes(app)
	return app
}

// RegisterRoutes mounts every API group under /api/v1.
func (rt *Router) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/v1")
	rt.projectRouter(api)
	rt.migrationRouter(api)
	rt.backendRouter(api)
	rt.storageRouter(api)
	rt.notifyRouter(api)
	rt.artifactRouter(api)
	rt.wsRouter(api)
}

// healthRouter probes live outside the versioned API prefix.
func (rt *Router) healthRouter(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	// Readiness flips as soon as shutdown starts so load balancers drain
	// before the listener closes.
	app.Get("/readyz", func(c *fiber.Ctx) error {
		if rt.ShutdownMgr != nil && rt.ShutdownMgr.IsShuttingDown() {
			return c.Status(fiber.StatusServiceUnavailable).SendString("shutting down")
		}
		return c.SendString("ok")
	})
}

func (rt *Router) migrationService() *service.MigrationService {
	return service.NewMigrationService(rt.Services)
}

func (rt *Router) projectService() *service.ProjectService {
	return service.NewProjectService(rt.Services)
}

func (rt *Router) chatService() *service.ChatService {
	return service.NewChatService(rt.Services)
}

func (rt *Router) backendService() *service.BackendService {
	return service.NewBackendService(rt.Services)
}

func (rt *Router) storageService() *service.StorageService {
	return service.NewStorageService(rt.Services)
}

func (rt *Router) notifyService() *service.NotifyService {
	return service.NewNotifyService(rt.Services)
}

func (rt *Router) artifactService() *service.ArtifactService {
	return service.NewArtifactService(rt.Services, rt.AppConf.Storage.DownloadTTL)
}

// ProviderSet 提供路由层相关的依赖
var ProviderSet = wire.NewSet(
	NewRouter,
)

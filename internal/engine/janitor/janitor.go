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

// Package janitor hard-deletes migrations that carry the delete marker.
// Delete commands only flip action=delete on the record; workers stop
// writing immediately, live views tear down, and this sweeper reclaims
// the rows and objects once the grace window has passed.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/wire"
	"github.com/robfig/cron"

	"github.com/molthq/molt/internal/engine/config"
	"github.com/molthq/molt/internal/engine/service"
	"github.com/molthq/molt/pkg/log"
	"github.com/molthq/molt/pkg/metrics"
)

type Janitor struct {
	conf      config.JanitorConfig
	services  *service.Services
	artifacts *service.ArtifactService
	logAgg    *service.LogAggregator
	cron      *cron.Cron
}

func New(appConf *config.AppConfig, services *service.Services, logAgg *service.LogAggregator) *Janitor {
	return &Janitor{
		conf:      appConf.Janitor,
		services:  services,
		artifacts: service.NewArtifactService(services, appConf.Storage.DownloadTTL),
		logAgg:    logAgg,
	}
}

// Start schedules the sweep. A disabled janitor is a valid deployment;
// delete-marked rows then stay until an operator cleans them up.
func (j *Janitor) Start() error {
	if !j.conf.Enabled {
		log.Infow("janitor disabled")
		return nil
	}

	c := cron.New()
	if err := c.AddFunc(j.conf.Schedule, j.run); err != nil {
		return fmt.Errorf("janitor schedule %q: %w", j.conf.Schedule, err)
	}
	c.Start()
	j.cron = c

	log.Infow("janitor started", "schedule", j.conf.Schedule, "grace", j.conf.Grace)
	return nil
}

func (j *Janitor) Stop() {
	if j.cron != nil {
		j.cron.Stop()
	}
}

func (j *Janitor) run() {
	start := time.Now()
	err := j.Sweep(context.Background())
	metrics.ObserveCronRun("janitor", start, err)
	if err != nil {
		log.Errorw("janitor sweep failed", "error", err)
	}
}

// Sweep hard-deletes every delete-marked migration older than the grace
// window. Failures on one migration do not stop the sweep; the record
// keeps its marker and the next run retries.
func (j *Janitor) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-j.conf.Grace).UnixMilli()
	marked, err := j.services.MigrationRepo.ListDeleteMarked(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list delete-marked migrations: %w", err)
	}
	if len(marked) == 0 {
		return nil
	}

	reaped := 0
	for _, record := range marked {
		if err := j.reap(ctx, record.MigrationId); err != nil {
			log.Errorw("reap migration failed", "migrationId", record.MigrationId, "error", err)
			continue
		}
		reaped++
	}
	log.Infow("janitor sweep done", "marked", len(marked), "reaped", reaped)
	return nil
}

// reap removes sub-records before the record itself so a crash mid-reap
// leaves a delete-marked row the next sweep picks up again.
func (j *Janitor) reap(ctx context.Context, migrationId string) error {
	if err := j.services.ResultRepo.DeleteByMigration(ctx, migrationId); err != nil {
		return fmt.Errorf("delete results: %w", err)
	}
	if err := j.services.ChatRepo.DeleteByMigration(ctx, migrationId); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	removed, err := j.artifacts.DeleteByMigration(ctx, migrationId)
	if err != nil {
		return fmt.Errorf("delete artifacts: %w", err)
	}
	if err := j.services.MigrationRepo.HardDelete(ctx, migrationId); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	j.logAgg.DropMigration(migrationId)

	log.Infow("migration reaped", "migrationId", migrationId, "artifacts", removed)
	return nil
}

// ProviderSet provides the janitor.
var ProviderSet = wire.NewSet(
	New,
)

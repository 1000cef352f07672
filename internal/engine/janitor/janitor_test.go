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

package janitor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/molthq/molt/internal/engine/config"
	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/internal/engine/repo"
	"github.com/molthq/molt/internal/engine/service"
)

// reapLog records every delete in arrival order so tests can assert
// sub-records go before the record itself.
type reapLog struct {
	entries []string
}

func (l *reapLog) add(kind, migrationId string) {
	l.entries = append(l.entries, kind+":"+migrationId)
}

type sweepStore struct {
	repo.IMigrationRepository
	log      *reapLog
	marked   []*model.MigrationAction
	cutoffMs int64
}

func (s *sweepStore) ListDeleteMarked(_ context.Context, olderThanMs int64) ([]*model.MigrationAction, error) {
	s.cutoffMs = olderThanMs
	return s.marked, nil
}

func (s *sweepStore) HardDelete(_ context.Context, migrationId string) error {
	s.log.add("record", migrationId)
	return nil
}

type sweepResults struct {
	repo.IResultRepository
	log   *reapLog
	errOn string
}

func (s *sweepResults) DeleteByMigration(_ context.Context, migrationId string) error {
	if s.errOn == migrationId {
		return errors.New("results table locked")
	}
	s.log.add("results", migrationId)
	return nil
}

type sweepChat struct {
	repo.IChatRepository
	log *reapLog
}

func (s *sweepChat) DeleteByMigration(_ context.Context, migrationId string) error {
	s.log.add("chat", migrationId)
	return nil
}

type sweepArtifacts struct {
	repo.IArtifactRepository
	log *reapLog
}

func (s *sweepArtifacts) DeleteByMigration(_ context.Context, migrationId string) ([]*model.Artifact, error) {
	s.log.add("artifacts", migrationId)
	return nil, nil
}

func newSweepJanitor(grace time.Duration, rows ...*model.MigrationAction) (*Janitor, *reapLog, *sweepStore) {
	l := &reapLog{}
	store := &sweepStore{log: l, marked: rows}
	svcs := &service.Services{
		MigrationRepo: store,
		ResultRepo:    &sweepResults{log: l},
		ChatRepo:      &sweepChat{log: l},
		ArtifactRepo:  &sweepArtifacts{log: l},
	}
	j := &Janitor{
		conf:      config.JanitorConfig{Enabled: true, Grace: grace},
		services:  svcs,
		artifacts: service.NewArtifactService(svcs, 0),
		logAgg:    service.NewLogAggregator(),
	}
	return j, l, store
}

func marked(migrationId string) *model.MigrationAction {
	return &model.MigrationAction{MigrationId: migrationId, Action: model.ActionDelete}
}

func TestSweep_ReapsMarked(t *testing.T) {
	j, l, store := newSweepJanitor(time.Hour, marked("m1"), marked("m2"))
	if err := j.Sweep(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"results:m1", "chat:m1", "artifacts:m1", "record:m1",
		"results:m2", "chat:m2", "artifacts:m2", "record:m2",
	}
	got := strings.Join(l.entries, ",")
	if got != strings.Join(want, ",") {
		t.Errorf("reap order = %s", got)
	}
	if store.cutoffMs > time.Now().UnixMilli() {
		t.Errorf("cutoff %d is in the future", store.cutoffMs)
	}
}

func TestSweep_FailureLeavesMarker(t *testing.T) {
	j, l, _ := newSweepJanitor(time.Hour, marked("m1"), marked("m2"))
	j.services.ResultRepo.(*sweepResults).errOn = "m1"
	if err := j.Sweep(context.Background()); err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(l.entries, ",")
	if strings.Contains(joined, "record:m1") {
		t.Error("failed reap still hard-deleted the record")
	}
	if !strings.Contains(joined, "record:m2") {
		t.Error("one failed reap stopped the sweep")
	}
}

func TestSweep_NothingMarked(t *testing.T) {
	j, l, _ := newSweepJanitor(time.Hour)
	if err := j.Sweep(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(l.entries) != 0 {
		t.Errorf("empty sweep deleted %v", l.entries)
	}
}

func TestStart_Disabled(t *testing.T) {
	j, _, _ := newSweepJanitor(time.Hour)
	j.conf.Enabled = false
	if err := j.Start(); err != nil {
		t.Fatal(err)
	}
	if j.cron != nil {
		t.Error("disabled janitor scheduled a cron")
	}
}

func TestStart_BadSchedule(t *testing.T) {
	j, _, _ := newSweepJanitor(time.Hour)
	j.conf.Schedule = "not a schedule"
	if err := j.Start(); err == nil {
		t.Error("bad schedule accepted")
	}
}

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

package service

import (
	"context"
	"sync"

	"github.com/molthq/molt/internal/engine/catalog"
	"github.com/molthq/molt/internal/engine/feed"
	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/internal/engine/repo"
	"github.com/molthq/molt/pkg/log"
	"github.com/pkg/errors"
)

const (
	viewStateIdle        = "idle"
	viewStateSubscribing = "subscribing"
	viewStateActive      = "active"
)

// MigrationView is the aggregated live view of a project's selected
// migration. Every publish carries a full snapshot; observers never see a
// half-merged update.
type MigrationView struct {
	ProjectId           string                       `json:"projectId"`
	MigrationId         string                       `json:"migrationId,omitempty"`
	State               string                       `json:"state"` // idle/subscribing/active
	Record              *model.MigrationAction       `json:"record,omitempty"`
	Progress            int                          `json:"progress"`
	CompletedStepsCount int                          `json:"completedStepsCount"`
	Steps               map[string]*model.StepResult `json:"steps"`
	Process             *model.ProcessResult         `json:"process,omitempty"`
	Analysis            *model.StepResult            `json:"analysis,omitempty"`
	LastError           string                       `json:"lastError,omitempty"`
}

// ViewObserver receives every published view snapshot.
type ViewObserver func(view *MigrationView)

// SyncService folds the change feeds of each project's selected migration
// into one observable view. 每个项目一个 syncer,按需创建,进程生命周期内常驻。
type SyncService struct {
	migrationRepo repo.IMigrationRepository
	resultRepo    repo.IResultRepository
	feed          feed.Bus

	mu        sync.Mutex
	byProject map[string]*projectSyncer
}

// NewSyncService creates the live-view aggregator.
func NewSyncService(services *Services) *SyncService {
	return &SyncService{
		migrationRepo: services.MigrationRepo,
		resultRepo:    services.ResultRepo,
		feed:          services.Feed,
		byProject:     make(map[string]*projectSyncer),
	}
}

// Select switches the project's active migration and returns the view as of
// the switch. Selecting an id that has no record yet leaves the syncer
// subscribing; the record's first feed delivery completes the transition.
func (s *SyncService) Select(ctx context.Context, projectId, migrationId string) (*MigrationView, error) {
	if projectId == "" || migrationId == "" {
		return nil, errors.New("projectId and migrationId are required")
	}
	p := s.syncer(projectId)
	p.markBootstrapped()
	if err := p.selectMigration(ctx, migrationId); err != nil {
		log.Errorw("select migration failed", "projectId", projectId, "migrationId", migrationId, "err", err)
		return nil, err
	}
	log.Infow("success select migration", "projectId", projectId, "migrationId", migrationId)
	return p.snapshot(), nil
}

// GetView returns the current aggregated view, auto-selecting the newest
// migration the first time a project is looked at.
func (s *SyncService) GetView(ctx context.Context, projectId string) (*MigrationView, error) {
	if projectId == "" {
		return nil, errors.New("projectId is required")
	}
	p := s.syncer(projectId)
	p.ensureBootstrap(ctx)
	return p.snapshot(), nil
}

// Attach registers fn for every subsequent view publish and returns the
// snapshot at attach time plus a detach func. Detaching is idempotent.
func (s *SyncService) Attach(ctx context.Context, projectId string, fn ViewObserver) (*MigrationView, func(), error) {
	if projectId == "" {
		return nil, nil, errors.New("projectId is required")
	}
	if fn == nil {
		return nil, nil, errors.New("observer is required")
	}
	p := s.syncer(projectId)
	p.ensureBootstrap(ctx)
	detach := p.attach(fn)
	return p.snapshot(), detach, nil
}

// Close tears down every syncer. Shutdown path; feed subscriptions are
// released and late callbacks discarded.
func (s *SyncService) Close() {
	s.mu.Lock()
	syncers := make([]*projectSyncer, 0, len(s.byProject))
	for _, p := range s.byProject {
		syncers = append(syncers, p)
	}
	s.byProject = make(map[string]*projectSyncer)
	s.mu.Unlock()
	for _, p := range syncers {
		p.close()
	}
}

func (s *SyncService) syncer(projectId string) *projectSyncer {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byProject[projectId]
	if !ok {
		p = newProjectSyncer(s, projectId)
		s.byProject[projectId] = p
	}
	return p
}

// projectSyncer tracks one project's selection. gen tags every feed callback
// with the selection it was opened under; teardown bumps gen, so a late
// delivery from a disposed subscription can never reach the new view.
type projectSyncer struct {
	svc       *SyncService
	projectId string

	mu           sync.Mutex
	gen          uint64
	bootstrapped bool
	state        string
	migrationId  string
	record       *model.MigrationAction
	steps        map[string]*model.StepResult
	process      *model.ProcessResult
	analysis     *model.StepResult
	disposers    []feed.Disposer
	observers    map[uint64]ViewObserver
	nextObs      uint64
}

func newProjectSyncer(svc *SyncService, projectId string) *projectSyncer {
	return &projectSyncer{
		svc:       svc,
		projectId: projectId,
		state:     viewStateIdle,
		steps:     make(map[string]*model.StepResult),
		observers: make(map[uint64]ViewObserver),
	}
}

// selectMigration opens the record feed before reading the record, so a
// transition committed between the two still reaches the view. The primed
// read goes through the same path as a delivery; whichever lands first
// activates the syncer.
func (p *projectSyncer) selectMigration(ctx context.Context, migrationId string) error {
	p.mu.Lock()
	p.teardownLocked()
	gen := p.gen
	p.migrationId = migrationId
	p.state = viewStateSubscribing
	p.mu.Unlock()

	disp, err := p.svc.feed.Subscribe(feed.MigrationFeed(migrationId), func(ev feed.Event) {
		var rec model.MigrationAction
		if err := ev.Decode(&rec); err != nil {
			log.Warnw("decode migration feed delivery failed", "feed", ev.Feed, "err", err)
			return
		}
		p.applyRecord(gen, &rec)
	})
	if err != nil {
		return errors.Wrap(err, "subscribe migration feed")
	}
	if !p.hold(gen, disp) {
		return nil
	}

	record, err := p.svc.migrationRepo.Get(ctx, migrationId)
	if err != nil {
		// Subscription stays open; the next record write activates the view.
		log.Warnw("prime selected migration failed", "migrationId", migrationId, "err", err)
		return nil
	}
	if record != nil {
		p.applyRecord(gen, record)
	}
	return nil
}

func (p *projectSyncer) applyRecord(gen uint64, record *model.MigrationAction) {
	p.mu.Lock()
	if gen != p.gen || record == nil || record.MigrationId != p.migrationId {
		p.mu.Unlock()
		return
	}
	if record.Action == model.ActionDelete {
		p.teardownLocked()
		p.mu.Unlock()
		p.publish()
		p.reselectSurvivor()
		return
	}
	activate := p.state != viewStateActive
	p.state = viewStateActive
	p.record = record
	p.mu.Unlock()
	if activate {
		p.activate(gen)
	}
	p.publish()
}

// activate opens the result feeds once the record is live: latest process
// result primed then subscribed, step results subscribed, the
// tech-stack-analysis slice primed then subscribed.
func (p *projectSyncer) activate(gen uint64) {
	ctx := context.Background()
	p.mu.Lock()
	migrationId := p.migrationId
	stale := gen != p.gen
	p.mu.Unlock()
	if stale {
		return
	}

	if pr, err := p.svc.resultRepo.LatestProcessResult(ctx, migrationId); err != nil {
		log.Warnw("prime process result failed", "migrationId", migrationId, "err", err)
	} else if pr != nil {
		p.applyProcess(gen, pr)
	}
	p.subscribe(gen, feed.ProcessFeed(migrationId), func(ev feed.Event) {
		var pr model.ProcessResult
		if err := ev.Decode(&pr); err != nil {
			log.Warnw("decode process feed delivery failed", "feed", ev.Feed, "err", err)
			return
		}
		p.applyProcess(gen, &pr)
	})

	p.subscribe(gen, feed.StepFeed(migrationId), func(ev feed.Event) {
		var sr model.StepResult
		if err := ev.Decode(&sr); err != nil {
			log.Warnw("decode step feed delivery failed", "feed", ev.Feed, "err", err)
			return
		}
		p.applyStep(gen, &sr)
	})

	if sr, err := p.svc.resultRepo.LatestStepResult(ctx, migrationId, catalog.AnalysisStep); err != nil {
		log.Warnw("prime analysis result failed", "migrationId", migrationId, "err", err)
	} else if sr != nil {
		p.applyAnalysis(gen, sr)
	}
	p.subscribe(gen, feed.AnalysisFeed(migrationId), func(ev feed.Event) {
		var sr model.StepResult
		if err := ev.Decode(&sr); err != nil {
			log.Warnw("decode analysis feed delivery failed", "feed", ev.Feed, "err", err)
			return
		}
		p.applyAnalysis(gen, &sr)
	})
}

func (p *projectSyncer) applyProcess(gen uint64, pr *model.ProcessResult) {
	p.mu.Lock()
	if gen != p.gen || pr == nil || pr.MigrationId != p.migrationId {
		p.mu.Unlock()
		return
	}
	if p.process != nil && p.process.FinishedAt > pr.FinishedAt {
		p.mu.Unlock()
		return
	}
	p.process = pr
	p.mu.Unlock()
	p.publish()
}

func (p *projectSyncer) applyStep(gen uint64, sr *model.StepResult) {
	p.mu.Lock()
	if gen != p.gen || sr == nil || sr.MigrationId != p.migrationId {
		p.mu.Unlock()
		return
	}
	// latest per step wins; ties go to the newer delivery
	if prev := p.steps[sr.Step]; prev != nil && prev.Timestamp > sr.Timestamp {
		p.mu.Unlock()
		return
	}
	p.steps[sr.Step] = sr
	p.mu.Unlock()
	p.publish()
}

func (p *projectSyncer) applyAnalysis(gen uint64, sr *model.StepResult) {
	p.mu.Lock()
	if gen != p.gen || sr == nil || sr.MigrationId != p.migrationId || sr.Step != catalog.AnalysisStep {
		p.mu.Unlock()
		return
	}
	if p.analysis != nil && p.analysis.Timestamp > sr.Timestamp {
		p.mu.Unlock()
		return
	}
	p.analysis = sr
	p.mu.Unlock()
	p.publish()
}

// reselectSurvivor falls back to the newest remaining migration after the
// selected one was delete-marked. The repo listing already excludes
// delete-marked rows; with none left the syncer stays idle.
func (p *projectSyncer) reselectSurvivor() {
	ctx := context.Background()
	next, err := p.svc.migrationRepo.MostRecent(ctx, p.projectId)
	if err != nil {
		log.Warnw("reselect after delete failed", "projectId", p.projectId, "err", err)
		return
	}
	if next == nil {
		return
	}
	if err := p.selectMigration(ctx, next.MigrationId); err != nil {
		log.Warnw("reselect after delete failed", "projectId", p.projectId, "migrationId", next.MigrationId, "err", err)
	}
}

// ensureBootstrap selects the newest migration the first time anything looks
// at this project. At most once per syncer; a later empty state stays idle
// until an explicit select.
func (p *projectSyncer) ensureBootstrap(ctx context.Context) {
	p.mu.Lock()
	if p.bootstrapped {
		p.mu.Unlock()
		return
	}
	p.bootstrapped = true
	p.mu.Unlock()

	recent, err := p.svc.migrationRepo.MostRecent(ctx, p.projectId)
	if err != nil {
		log.Warnw("bootstrap most recent migration failed", "projectId", p.projectId, "err", err)
		return
	}
	if recent == nil {
		return
	}
	if err := p.selectMigration(ctx, recent.MigrationId); err != nil {
		log.Warnw("bootstrap select failed", "projectId", p.projectId, "migrationId", recent.MigrationId, "err", err)
	}
}

func (p *projectSyncer) markBootstrapped() {
	p.mu.Lock()
	p.bootstrapped = true
	p.mu.Unlock()
}

func (p *projectSyncer) attach(fn ViewObserver) func() {
	p.mu.Lock()
	p.nextObs++
	id := p.nextObs
	p.observers[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.observers, id)
		p.mu.Unlock()
	}
}

// publish hands a fresh snapshot to every observer, outside the slice
// mutation lock.
func (p *projectSyncer) publish() {
	p.mu.Lock()
	view := p.snapshotLocked()
	obs := make([]ViewObserver, 0, len(p.observers))
	for _, fn := range p.observers {
		obs = append(obs, fn)
	}
	p.mu.Unlock()
	for _, fn := range obs {
		fn(view)
	}
}

func (p *projectSyncer) snapshot() *MigrationView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// snapshotLocked copies the view so observers never share the live maps.
func (p *projectSyncer) snapshotLocked() *MigrationView {
	view := &MigrationView{
		ProjectId:   p.projectId,
		MigrationId: p.migrationId,
		State:       p.state,
		Record:      p.record,
		Steps:       make(map[string]*model.StepResult, len(p.steps)),
		Process:     p.process,
		Analysis:    p.analysis,
	}
	for step, sr := range p.steps {
		view.Steps[step] = sr
	}
	if p.record != nil {
		view.Progress = recordProgress(p.record)
		if p.record.Error != nil {
			view.LastError = *p.record.Error
		}
	}
	if p.process != nil {
		view.CompletedStepsCount = len(p.process.StepsCompleted)
	}
	return view
}

// hold registers a disposer under the generation it was opened for. A stale
// generation disposes immediately.
func (p *projectSyncer) hold(gen uint64, disp feed.Disposer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		disp()
		return false
	}
	p.disposers = append(p.disposers, disp)
	return true
}

func (p *projectSyncer) subscribe(gen uint64, feedKey string, fn feed.Handler) {
	disp, err := p.svc.feed.Subscribe(feedKey, fn)
	if err != nil {
		log.Warnw("subscribe feed failed", "feed", feedKey, "err", err)
		return
	}
	p.hold(gen, disp)
}

// teardownLocked disposes every open feed and invalidates in-flight
// callbacks. Caller holds p.mu.
func (p *projectSyncer) teardownLocked() {
	for _, disp := range p.disposers {
		disp()
	}
	p.disposers = nil
	p.gen++
	p.state = viewStateIdle
	p.migrationId = ""
	p.record = nil
	p.steps = make(map[string]*model.StepResult)
	p.process = nil
	p.analysis = nil
}

func (p *projectSyncer) close() {
	p.mu.Lock()
	p.teardownLocked()
	p.observers = make(map[uint64]ViewObserver)
	p.mu.Unlock()
}

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
	"testing"

	"github.com/bytedance/sonic"
	"github.com/molthq/molt/internal/engine/feed"
	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/internal/engine/repo"
	"gorm.io/datatypes"
)

// fakeBus delivers synchronously on the publishing goroutine and keeps
// disposed subscriptions around so tests can replay in-flight deliveries.
type fakeBus struct {
	mu   sync.Mutex
	subs map[string][]*fakeSub
}

type fakeSub struct {
	fn       feed.Handler
	disposed bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{subs: make(map[string][]*fakeSub)}
}

func (b *fakeBus) Publish(_ context.Context, feedKey string, payload any) error {
	raw, err := sonic.Marshal(payload)
	if err != nil {
		return err
	}
	b.mu.Lock()
	subs := append([]*fakeSub(nil), b.subs[feedKey]...)
	b.mu.Unlock()
	for _, s := range subs {
		b.mu.Lock()
		dead := s.disposed
		b.mu.Unlock()
		if !dead {
			s.fn(feed.Event{Feed: feedKey, Seq: 1, Payload: raw})
		}
	}
	return nil
}

func (b *fakeBus) Subscribe(feedKey string, fn feed.Handler) (feed.Disposer, error) {
	s := &fakeSub{fn: fn}
	b.mu.Lock()
	b.subs[feedKey] = append(b.subs[feedKey], s)
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		s.disposed = true
		b.mu.Unlock()
	}, nil
}

func (b *fakeBus) Close() error { return nil }

// deliverStale replays a payload through every handler ever registered on
// the feed, disposed ones included, mimicking a delivery already buffered
// when the disposer ran.
func (b *fakeBus) deliverStale(t *testing.T, feedKey string, payload any) {
	t.Helper()
	raw, err := sonic.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal stale payload: %v", err)
	}
	b.mu.Lock()
	subs := append([]*fakeSub(nil), b.subs[feedKey]...)
	b.mu.Unlock()
	for _, s := range subs {
		s.fn(feed.Event{Feed: feedKey, Seq: 999, Payload: raw})
	}
}

func (b *fakeBus) liveCount(feedKey string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, s := range b.subs[feedKey] {
		if !s.disposed {
			n++
		}
	}
	return n
}

type stubMigrations struct {
	repo.IMigrationRepository
	mu      sync.Mutex
	records map[string]*model.MigrationAction
	recent  *model.MigrationAction
}

func newStubMigrations() *stubMigrations {
	return &stubMigrations{records: make(map[string]*model.MigrationAction)}
}

func (s *stubMigrations) put(m *model.MigrationAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[m.MigrationId] = m
}

func (s *stubMigrations) setRecent(m *model.MigrationAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = m
}

func (s *stubMigrations) Get(_ context.Context, migrationId string) (*model.MigrationAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[migrationId], nil
}

func (s *stubMigrations) MostRecent(_ context.Context, _ string) (*model.MigrationAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recent, nil
}

type stubResults struct {
	repo.IResultRepository
	mu             sync.Mutex
	latestProcess  *model.ProcessResult
	latestAnalysis *model.StepResult
}

func (s *stubResults) LatestProcessResult(_ context.Context, _ string) (*model.ProcessResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestProcess, nil
}

func (s *stubResults) LatestStepResult(_ context.Context, _, _ string) (*model.StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestAnalysis, nil
}

func strPtr(s string) *string { return &s }

func pendingRecord(projectId, migrationId, currentStep string) *model.MigrationAction {
	return &model.MigrationAction{
		MigrationId: migrationId,
		ProjectId:   projectId,
		Name:        migrationId,
		Action:      model.ActionPending,
		CurrentStep: strPtr(currentStep),
	}
}

func newSyncFixture(migrations *stubMigrations, results *stubResults, bus *fakeBus) *SyncService {
	return NewSyncService(&Services{
		MigrationRepo: migrations,
		ResultRepo:    results,
		Feed:          bus,
	})
}

func TestSyncAutoBootstrap(t *testing.T) {
	ctx := context.Background()
	migrations := newStubMigrations()
	results := &stubResults{}
	bus := newFakeBus()
	svc := newSyncFixture(migrations, results, bus)

	m1 := pendingRecord("p1", "m1", "inventory")
	migrations.put(m1)
	migrations.setRecent(m1)

	view, err := svc.GetView(ctx, "p1")
	if err != nil {
		t.Fatalf("get view: %v", err)
	}
	if view.State != viewStateActive || view.MigrationId != "m1" {
		t.Fatalf("view = %s/%s, want active/m1", view.State, view.MigrationId)
	}
	if view.Progress != 25 {
		t.Errorf("progress = %d, want 25 for inventory", view.Progress)
	}

	// bootstrap runs once; a newer record appearing later is not auto-picked
	migrations.setRecent(pendingRecord("p1", "m2", "clone"))
	view, err = svc.GetView(ctx, "p1")
	if err != nil {
		t.Fatalf("second get view: %v", err)
	}
	if view.MigrationId != "m1" {
		t.Errorf("second view picked %s, want m1", view.MigrationId)
	}
}

func TestSyncBootstrapEmptyProjectStaysIdle(t *testing.T) {
	ctx := context.Background()
	svc := newSyncFixture(newStubMigrations(), &stubResults{}, newFakeBus())

	view, err := svc.GetView(ctx, "p1")
	if err != nil {
		t.Fatalf("get view: %v", err)
	}
	if view.State != viewStateIdle || view.Record != nil {
		t.Errorf("view = %s record=%v, want idle/nil", view.State, view.Record)
	}
}

func TestSyncSelectDiscardsStaleCallbacks(t *testing.T) {
	ctx := context.Background()
	migrations := newStubMigrations()
	results := &stubResults{}
	bus := newFakeBus()
	svc := newSyncFixture(migrations, results, bus)

	m1 := pendingRecord("p1", "m1", "clone")
	m2 := pendingRecord("p1", "m2", "clone")
	migrations.put(m1)
	migrations.put(m2)

	if _, err := svc.Select(ctx, "p1", "m1"); err != nil {
		t.Fatalf("select m1: %v", err)
	}
	if _, err := svc.Select(ctx, "p1", "m2"); err != nil {
		t.Fatalf("select m2: %v", err)
	}
	if got := bus.liveCount(feed.StepFeed("m1")); got != 0 {
		t.Fatalf("m1 step feed still has %d live subscribers", got)
	}

	// a delivery that was in flight when the switch happened
	bus.deliverStale(t, feed.StepFeed("m1"), &model.StepResult{
		MigrationId: "m1", Step: "clone", Success: true, Timestamp: 100,
	})

	view, err := svc.GetView(ctx, "p1")
	if err != nil {
		t.Fatalf("get view: %v", err)
	}
	if view.MigrationId != "m2" {
		t.Fatalf("view tracks %s, want m2", view.MigrationId)
	}
	if len(view.Steps) != 0 {
		t.Errorf("stale step result leaked into new view: %+v", view.Steps)
	}

	if err := bus.Publish(ctx, feed.StepFeed("m2"), &model.StepResult{
		MigrationId: "m2", Step: "clone", Success: true, Timestamp: 100,
	}); err != nil {
		t.Fatalf("publish m2 step: %v", err)
	}
	view, _ = svc.GetView(ctx, "p1")
	if sr := view.Steps["clone"]; sr == nil || !sr.Success {
		t.Errorf("live step result missing: %+v", view.Steps)
	}
}

func TestSyncStepLatestWins(t *testing.T) {
	ctx := context.Background()
	migrations := newStubMigrations()
	bus := newFakeBus()
	svc := newSyncFixture(migrations, &stubResults{}, bus)

	migrations.put(pendingRecord("p1", "m1", "clone"))
	if _, err := svc.Select(ctx, "p1", "m1"); err != nil {
		t.Fatalf("select: %v", err)
	}

	publish := func(success bool, ts int64) {
		t.Helper()
		if err := bus.Publish(ctx, feed.StepFeed("m1"), &model.StepResult{
			MigrationId: "m1", Step: "inventory", Success: success, Timestamp: ts,
		}); err != nil {
			t.Fatalf("publish step: %v", err)
		}
	}

	publish(false, 100)
	publish(true, 200)
	view, _ := svc.GetView(ctx, "p1")
	if sr := view.Steps["inventory"]; sr == nil || !sr.Success || sr.Timestamp != 200 {
		t.Fatalf("steps[inventory] = %+v, want succeeded t=200", view.Steps["inventory"])
	}

	// older replay never regresses the slice
	publish(false, 150)
	view, _ = svc.GetView(ctx, "p1")
	if sr := view.Steps["inventory"]; !sr.Success || sr.Timestamp != 200 {
		t.Errorf("old result regressed the view: %+v", sr)
	}
}

func TestSyncDeleteReselectsSurvivor(t *testing.T) {
	ctx := context.Background()
	migrations := newStubMigrations()
	bus := newFakeBus()
	svc := newSyncFixture(migrations, &stubResults{}, bus)

	m1 := pendingRecord("p1", "m1", "clone")
	m2 := pendingRecord("p1", "m2", "inventory")
	migrations.put(m1)
	migrations.put(m2)

	if _, err := svc.Select(ctx, "p1", "m1"); err != nil {
		t.Fatalf("select: %v", err)
	}
	migrations.setRecent(m2)

	deleted := pendingRecord("p1", "m1", "clone")
	deleted.Action = model.ActionDelete
	if err := bus.Publish(ctx, feed.MigrationFeed("m1"), deleted); err != nil {
		t.Fatalf("publish delete: %v", err)
	}

	view, err := svc.GetView(ctx, "p1")
	if err != nil {
		t.Fatalf("get view: %v", err)
	}
	if view.MigrationId != "m2" || view.State != viewStateActive {
		t.Fatalf("view = %s/%s, want m2/active", view.MigrationId, view.State)
	}
	for _, key := range []string{
		feed.MigrationFeed("m1"), feed.ProcessFeed("m1"),
		feed.StepFeed("m1"), feed.AnalysisFeed("m1"),
	} {
		if got := bus.liveCount(key); got != 0 {
			t.Errorf("feed %s still has %d live subscribers after delete", key, got)
		}
	}
}

func TestSyncDeleteWithoutSurvivorGoesIdle(t *testing.T) {
	ctx := context.Background()
	migrations := newStubMigrations()
	bus := newFakeBus()
	svc := newSyncFixture(migrations, &stubResults{}, bus)

	migrations.put(pendingRecord("p1", "m1", "clone"))
	if _, err := svc.Select(ctx, "p1", "m1"); err != nil {
		t.Fatalf("select: %v", err)
	}

	deleted := pendingRecord("p1", "m1", "clone")
	deleted.Action = model.ActionDelete
	if err := bus.Publish(ctx, feed.MigrationFeed("m1"), deleted); err != nil {
		t.Fatalf("publish delete: %v", err)
	}

	view, _ := svc.GetView(ctx, "p1")
	if view.State != viewStateIdle || view.Record != nil || len(view.Steps) != 0 {
		t.Errorf("view not reset after delete: %+v", view)
	}
}

func TestSyncProcessAndAnalysisSlices(t *testing.T) {
	ctx := context.Background()
	migrations := newStubMigrations()
	results := &stubResults{
		latestProcess: &model.ProcessResult{
			MigrationId:    "m1",
			StepsCompleted: datatypes.NewJSONSlice([]string{"clone", "clear-state"}),
			FinishedAt:     100,
		},
		latestAnalysis: &model.StepResult{
			MigrationId: "m1", Step: "tech-stack-analysis", Success: true, Timestamp: 100,
		},
	}
	bus := newFakeBus()
	svc := newSyncFixture(migrations, results, bus)

	migrations.put(pendingRecord("p1", "m1", "inventory"))
	view, err := svc.Select(ctx, "p1", "m1")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if view.CompletedStepsCount != 2 {
		t.Errorf("completedStepsCount = %d, want 2", view.CompletedStepsCount)
	}
	if view.Analysis == nil || view.Analysis.Timestamp != 100 {
		t.Errorf("analysis = %+v, want primed t=100", view.Analysis)
	}

	if err := bus.Publish(ctx, feed.ProcessFeed("m1"), &model.ProcessResult{
		MigrationId:    "m1",
		StepsCompleted: datatypes.NewJSONSlice([]string{"clone", "clear-state", "tech-stack-analysis"}),
		FinishedAt:     200,
	}); err != nil {
		t.Fatalf("publish process: %v", err)
	}
	if err := bus.Publish(ctx, feed.AnalysisFeed("m1"), &model.StepResult{
		MigrationId: "m1", Step: "tech-stack-analysis", Success: true, Timestamp: 300,
	}); err != nil {
		t.Fatalf("publish analysis: %v", err)
	}

	view, _ = svc.GetView(ctx, "p1")
	if view.CompletedStepsCount != 3 {
		t.Errorf("completedStepsCount = %d, want 3 after newer attempt", view.CompletedStepsCount)
	}
	if view.Analysis.Timestamp != 300 {
		t.Errorf("analysis timestamp = %d, want 300", view.Analysis.Timestamp)
	}

	// an older attempt replay never wins
	if err := bus.Publish(ctx, feed.ProcessFeed("m1"), &model.ProcessResult{
		MigrationId:    "m1",
		StepsCompleted: datatypes.NewJSONSlice([]string{"clone"}),
		FinishedAt:     50,
	}); err != nil {
		t.Fatalf("publish stale process: %v", err)
	}
	view, _ = svc.GetView(ctx, "p1")
	if view.CompletedStepsCount != 3 {
		t.Errorf("stale process result regressed count to %d", view.CompletedStepsCount)
	}
}

func TestSyncObserverReceivesDeltas(t *testing.T) {
	ctx := context.Background()
	migrations := newStubMigrations()
	bus := newFakeBus()
	svc := newSyncFixture(migrations, &stubResults{}, bus)

	m1 := pendingRecord("p1", "m1", "clone")
	migrations.put(m1)
	migrations.setRecent(m1)

	var mu sync.Mutex
	var seen []*MigrationView
	snapshot, detach, err := svc.Attach(ctx, "p1", func(view *MigrationView) {
		mu.Lock()
		seen = append(seen, view)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if snapshot.MigrationId != "m1" {
		t.Fatalf("attach snapshot tracks %s, want m1", snapshot.MigrationId)
	}

	if err := bus.Publish(ctx, feed.StepFeed("m1"), &model.StepResult{
		MigrationId: "m1", Step: "clone", Success: true, Timestamp: 10,
	}); err != nil {
		t.Fatalf("publish step: %v", err)
	}
	mu.Lock()
	got := len(seen)
	last := seen[len(seen)-1]
	mu.Unlock()
	if got == 0 {
		t.Fatal("observer saw no deltas")
	}
	if last.Steps["clone"] == nil {
		t.Errorf("delta view missing step result: %+v", last.Steps)
	}

	detach()
	if err := bus.Publish(ctx, feed.StepFeed("m1"), &model.StepResult{
		MigrationId: "m1", Step: "clear-state", Success: true, Timestamp: 20,
	}); err != nil {
		t.Fatalf("publish after detach: %v", err)
	}
	mu.Lock()
	after := len(seen)
	mu.Unlock()
	if after != got {
		t.Errorf("observer still called after detach: %d -> %d", got, after)
	}
}

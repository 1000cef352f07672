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

package runner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/datatypes"

	agentconfig "github.com/molthq/molt/internal/agent/config"
	"github.com/molthq/molt/internal/agent/executor"
	"github.com/molthq/molt/internal/engine/catalog"
	"github.com/molthq/molt/internal/engine/feed"
	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/internal/engine/repo"
	"github.com/molthq/molt/pkg/outbox"
)

// memStore covers the record reads and patches the worker performs.
// Patches apply the same partial column merge the real store does.
type memStore struct {
	repo.IMigrationRepository
	mu       sync.Mutex
	records  map[string]*model.MigrationAction
	patches  []map[string]any
	patchErr error
	getErr   error
	getErrOn string
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*model.MigrationAction)}
}

func (s *memStore) put(m *model.MigrationAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[m.MigrationId] = m
}

func (s *memStore) Get(_ context.Context, migrationId string) (*model.MigrationAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.getErrOn != "" && s.getErrOn == migrationId {
		return nil, errors.New("store unreachable")
	}
	m, ok := s.records[migrationId]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) Patch(_ context.Context, migrationId string, updates map[string]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.patchErr != nil {
		return 0, s.patchErr
	}
	m, ok := s.records[migrationId]
	if !ok {
		return 0, nil
	}
	s.patches = append(s.patches, updates)
	for col, v := range updates {
		switch col {
		case "action":
			m.Action = v.(string)
		case "description":
			m.Description = v.(string)
		case "error":
			m.Error = toStrPtr(v)
		case "current_step":
			m.CurrentStep = toStrPtr(v)
		case "execute_only":
			m.ExecuteOnly = toStrPtr(v)
		}
	}
	return 1, nil
}

func (s *memStore) setAction(migrationId, action string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.records[migrationId]; ok {
		m.Action = action
	}
}

func (s *memStore) patchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patches)
}

func (s *memStore) lastPatch() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.patches) == 0 {
		return nil
	}
	return s.patches[len(s.patches)-1]
}

func toStrPtr(v any) *string {
	if v == nil {
		return nil
	}
	s := v.(string)
	return &s
}

// memResults records appended result rows.
type memResults struct {
	repo.IResultRepository
	mu    sync.Mutex
	steps []*model.StepResult
	procs []*model.ProcessResult
}

func newMemResults() *memResults {
	return &memResults{}
}

func (s *memResults) AppendStepResult(_ context.Context, sr *model.StepResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, sr)
	return nil
}

func (s *memResults) AppendProcessResult(_ context.Context, pr *model.ProcessResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procs = append(s.procs, pr)
	return nil
}

func (s *memResults) HasStepResult(_ context.Context, resultId string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sr := range s.steps {
		if sr.ResultId == resultId {
			return true, nil
		}
	}
	return false, nil
}

func (s *memResults) HasProcessResult(_ context.Context, resultId string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pr := range s.procs {
		if pr.ResultId == resultId {
			return true, nil
		}
	}
	return false, nil
}

func (s *memResults) stepCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}

// recordBus captures publishes without delivering anywhere.
type recordBus struct {
	mu     sync.Mutex
	pubs   []string
	closed bool
}

func (b *recordBus) Publish(_ context.Context, feedName string, _ any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pubs = append(b.pubs, feedName)
	return nil
}

func (b *recordBus) Subscribe(string, feed.Handler) (feed.Disposer, error) {
	return func() {}, nil
}

func (b *recordBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *recordBus) feeds() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.pubs...)
}

type discardSender struct{}

func (discardSender) Send(_ context.Context, events []outbox.Event) (outbox.SendResult, error) {
	if len(events) == 0 {
		return outbox.SendResult{}, nil
	}
	return outbox.SendResult{LastSeq: events[len(events)-1].Seq}, nil
}

func TestRecheck(t *testing.T) {
	rec := func(action string, epoch int64) *model.MigrationAction {
		return &model.MigrationAction{MigrationId: "m1", Action: action, Epoch: epoch}
	}
	tests := []struct {
		name      string
		rec       *model.MigrationAction
		getErr    error
		epoch     int64
		proceed   bool
		wantFresh bool
	}{
		{"same epoch keeps going", rec(model.ActionStart, 3), nil, 3, true, true},
		{"stop halts", rec(model.ActionStop, 3), nil, 3, false, false},
		{"delete halts", rec(model.ActionDelete, 3), nil, 3, false, false},
		{"error halts", rec(model.ActionError, 3), nil, 3, false, false},
		{"newer epoch supersedes", rec(model.ActionStart, 4), nil, 3, false, false},
		{"vanished record halts", nil, nil, 3, false, false},
		{"unreachable store keeps going", nil, errors.New("db down"), 3, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			if tt.rec != nil {
				store.put(tt.rec)
			}
			store.getErr = tt.getErr
			r := &Runner{migrationRepo: store}
			fresh, proceed := r.recheck(context.Background(), "m1", tt.epoch)
			if proceed != tt.proceed {
				t.Errorf("recheck proceed = %v, want %v", proceed, tt.proceed)
			}
			if (fresh != nil) != tt.wantFresh {
				t.Errorf("recheck fresh = %v, want fresh %v", fresh, tt.wantFresh)
			}
		})
	}
}

func TestFailRun(t *testing.T) {
	ctx := context.Background()

	t.Run("full run failure moves the step sentinel", func(t *testing.T) {
		store := newMemStore()
		store.put(&model.MigrationAction{MigrationId: "m1", Action: model.ActionStart})
		r := &Runner{migrationRepo: store}
		r.failRun(ctx, "m1", "clone", "clone: exit status 128", true)
		p := store.lastPatch()
		if p == nil {
			t.Fatal("no patch recorded")
		}
		if p["action"] != model.ActionError {
			t.Errorf("action = %v, want %v", p["action"], model.ActionError)
		}
		if p["error"] != "clone: exit status 128" {
			t.Errorf("error = %v, want raw error text", p["error"])
		}
		if p["current_step"] != catalog.SentinelError {
			t.Errorf("current_step = %v, want %v", p["current_step"], catalog.SentinelError)
		}
		if p["description"] != "Failed at step: clone" {
			t.Errorf("description = %v", p["description"])
		}
	})

	t.Run("single step failure leaves current step alone", func(t *testing.T) {
		store := newMemStore()
		store.put(&model.MigrationAction{MigrationId: "m1", Action: model.ActionStart})
		r := &Runner{migrationRepo: store}
		r.failRun(ctx, "m1", "unit-testing", "exit 1", false)
		p := store.lastPatch()
		if p == nil {
			t.Fatal("no patch recorded")
		}
		if _, ok := p["current_step"]; ok {
			t.Errorf("single step failure patched current_step: %v", p["current_step"])
		}
	})

	t.Run("delete marked record is never written", func(t *testing.T) {
		store := newMemStore()
		store.put(&model.MigrationAction{MigrationId: "m1", Action: model.ActionDelete})
		r := &Runner{migrationRepo: store}
		r.failRun(ctx, "m1", "clone", "boom", true)
		if store.patchCount() != 0 {
			t.Errorf("failRun wrote %d patches over a delete mark", store.patchCount())
		}
	})
}

func TestPatchRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("successful patch fans out", func(t *testing.T) {
		store := newMemStore()
		store.put(&model.MigrationAction{MigrationId: "m1", Action: model.ActionStart})
		bus := &recordBus{}
		r := &Runner{migrationRepo: store, feed: bus}
		rec, err := r.patchRecord(ctx, "m1", map[string]any{"action": model.ActionPending})
		if err != nil {
			t.Fatal(err)
		}
		if rec == nil || rec.Action != model.ActionPending {
			t.Fatalf("patched record = %+v", rec)
		}
		feeds := bus.feeds()
		if len(feeds) != 2 {
			t.Fatalf("fanout published %d feeds, want 2", len(feeds))
		}
		if feeds[0] != feed.MigrationFeed("m1") || feeds[1] != feed.TransitionsFeed() {
			t.Errorf("fanout feeds = %v", feeds)
		}
	})

	t.Run("no matching row is a no-op", func(t *testing.T) {
		store := newMemStore()
		bus := &recordBus{}
		r := &Runner{migrationRepo: store, feed: bus}
		rec, err := r.patchRecord(ctx, "missing", map[string]any{"action": model.ActionPending})
		if err != nil || rec != nil {
			t.Errorf("patchRecord = (%v, %v), want (nil, nil)", rec, err)
		}
		if len(bus.feeds()) != 0 {
			t.Error("no-op patch still fanned out")
		}
	})

	t.Run("store failure without spool surfaces the cause", func(t *testing.T) {
		store := newMemStore()
		store.patchErr = errors.New("db down")
		r := &Runner{migrationRepo: store}
		if _, err := r.patchRecord(ctx, "m1", map[string]any{"action": model.ActionError}); err == nil {
			t.Error("patchRecord returned nil error with spool disabled")
		}
	})

	t.Run("store failure spools for replay", func(t *testing.T) {
		store := newMemStore()
		store.patchErr = errors.New("db down")
		spool, err := outbox.NewOutbox(outbox.Config{
			WALDir:        t.TempDir(),
			AgentId:       "agent1",
			FsyncInterval: 5 * time.Millisecond,
			SendInterval:  time.Hour,
		}, discardSender{})
		if err != nil {
			t.Fatal(err)
		}
		defer spool.Close()
		r := &Runner{migrationRepo: store, spool: spool}
		if _, err := r.patchRecord(ctx, "m1", map[string]any{"action": model.ActionError}); err != nil {
			t.Errorf("spooled patch returned error: %v", err)
		}
	})
}

func TestStoreSender_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("patch replays onto the record and fans out", func(t *testing.T) {
		store := newMemStore()
		store.put(&model.MigrationAction{MigrationId: "m1", Action: model.ActionStart})
		bus := &recordBus{}
		s := NewStoreSender(store, newMemResults(), bus)
		res, err := s.Send(ctx, []outbox.Event{{
			Seq:       7,
			EventType: eventRecordPatch,
			Payload:   map[string]any{"migrationid": "m1", "data": map[string]any{"action": model.ActionPending}},
		}})
		if err != nil {
			t.Fatal(err)
		}
		if res.LastSeq != 7 {
			t.Errorf("LastSeq = %d, want 7", res.LastSeq)
		}
		rec, _ := store.Get(ctx, "m1")
		if rec.Action != model.ActionPending {
			t.Errorf("replayed action = %s, want %s", rec.Action, model.ActionPending)
		}
		if len(bus.feeds()) != 2 {
			t.Errorf("replay published %d feeds, want 2", len(bus.feeds()))
		}
	})

	t.Run("writes for deleted records are acked and dropped", func(t *testing.T) {
		store := newMemStore()
		store.put(&model.MigrationAction{MigrationId: "m1", Action: model.ActionDelete})
		s := NewStoreSender(store, newMemResults(), nil)
		res, err := s.Send(ctx, []outbox.Event{{
			Seq:       3,
			EventType: eventRecordPatch,
			Payload:   map[string]any{"migrationid": "m1", "data": map[string]any{"action": model.ActionPending}},
		}})
		if err != nil {
			t.Fatal(err)
		}
		if res.LastSeq != 3 {
			t.Errorf("LastSeq = %d, want 3", res.LastSeq)
		}
		if store.patchCount() != 0 {
			t.Error("write replayed onto a delete-marked record")
		}
	})

	t.Run("ack stops at the first failed write", func(t *testing.T) {
		store := newMemStore()
		store.put(&model.MigrationAction{MigrationId: "m1", Action: model.ActionStart})
		store.getErrOn = "m2"
		s := NewStoreSender(store, newMemResults(), nil)
		patch := func(seq uint64, id string) outbox.Event {
			return outbox.Event{
				Seq:       seq,
				EventType: eventRecordPatch,
				Payload:   map[string]any{"migrationid": id, "data": map[string]any{"action": model.ActionPending}},
			}
		}
		res, err := s.Send(ctx, []outbox.Event{patch(1, "m1"), patch(2, "m2"), patch(3, "m1")})
		if err != nil {
			t.Fatal(err)
		}
		if res.LastSeq != 1 {
			t.Errorf("LastSeq = %d, want 1", res.LastSeq)
		}
		if res.ExpectedSeq != 2 {
			t.Errorf("ExpectedSeq = %d, want 2", res.ExpectedSeq)
		}
		if store.patchCount() != 1 {
			t.Errorf("applied %d patches, want 1", store.patchCount())
		}
	})

	t.Run("replayed step results do not duplicate", func(t *testing.T) {
		store := newMemStore()
		store.put(&model.MigrationAction{MigrationId: "m1", Action: model.ActionStart})
		results := newMemResults()
		results.steps = append(results.steps, &model.StepResult{ResultId: "r1", MigrationId: "m1", Step: "clone"})
		bus := &recordBus{}
		s := NewStoreSender(store, results, bus)
		res, err := s.Send(ctx, []outbox.Event{{
			Seq:       5,
			EventType: eventStepResult,
			Payload: map[string]any{
				"migrationid": "m1",
				"data":        map[string]any{"resultId": "r1", "migrationId": "m1", "step": "clone", "success": true},
			},
		}})
		if err != nil {
			t.Fatal(err)
		}
		if res.LastSeq != 5 {
			t.Errorf("LastSeq = %d, want 5", res.LastSeq)
		}
		if results.stepCount() != 1 {
			t.Errorf("step rows = %d, want 1 (no duplicate)", results.stepCount())
		}
		if len(bus.feeds()) != 1 {
			t.Errorf("replay published %d feeds, want 1", len(bus.feeds()))
		}
	})

	t.Run("patch without migration id is dropped", func(t *testing.T) {
		store := newMemStore()
		s := NewStoreSender(store, newMemResults(), nil)
		res, err := s.Send(ctx, []outbox.Event{{
			Seq:       9,
			EventType: eventRecordPatch,
			Payload:   map[string]any{"data": map[string]any{"action": model.ActionPending}},
		}})
		if err != nil {
			t.Fatal(err)
		}
		if res.LastSeq != 9 {
			t.Errorf("LastSeq = %d, want 9", res.LastSeq)
		}
	})
}

// stubBackend answers the HTTP step contract and records the steps it
// served, in order. Failed attempts are not recorded as served.
type stubBackend struct {
	mu       sync.Mutex
	served   []string
	failOnce map[string]bool
	after    func(step string)
}

func (b *stubBackend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		step := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/steps/"), ":run")
		b.mu.Lock()
		fail := b.failOnce[step]
		if fail {
			delete(b.failOnce, step)
		} else {
			b.served = append(b.served, step)
		}
		after := b.after
		b.mu.Unlock()

		if fail {
			http.Error(w, "backend busy", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
		if after != nil {
			after(step)
		}
	}
}

func (b *stubBackend) sequence() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.served, ",")
}

func newSeqRunner(t *testing.T, store *memStore, results *memResults, retries int) *Runner {
	t.Helper()
	conf := &agentconfig.AgentConfig{}
	conf.Runner = agentconfig.RunnerConfig{
		AgentId:      "agent-test",
		PollInterval: time.Minute,
		StepTimeout:  10 * time.Second,
		StepRetries:  retries,
		WorkspaceDir: t.TempDir(),
		Concurrency:  1,
	}
	return &Runner{
		conf:          conf,
		migrationRepo: store,
		resultRepo:    results,
		exec:          executor.New(conf, nil, nil),
	}
}

func seqRecord(endpoint string) *model.MigrationAction {
	return &model.MigrationAction{
		MigrationId:  "m1",
		ProjectId:    "p1",
		Action:       model.ActionStart,
		Epoch:        1,
		DefaultAgent: datatypes.NewJSONType(model.StepAgentConfig{Kind: model.AgentKindHTTP, Endpoint: endpoint}),
	}
}

func TestRunAll_Sequencing(t *testing.T) {
	ctx := context.Background()

	t.Run("start pin and ignore list shape the plan", func(t *testing.T) {
		backend := &stubBackend{}
		ts := httptest.NewServer(backend.handler())
		defer ts.Close()

		store := newMemStore()
		results := newMemResults()
		rec := seqRecord(ts.URL)
		rec.StartFrom = toStrPtr(catalog.StepIndexUpload)
		rec.IgnoreSteps = datatypes.NewJSONSlice([]string{catalog.StepModuleDetection})
		store.put(rec)

		r := newSeqRunner(t, store, results, 0)
		r.runAll(ctx, rec)

		want := strings.Join([]string{
			catalog.StepIndexUpload,
			catalog.StepTocGeneration,
			catalog.StepTocEnrichment,
			catalog.StepTocSanitization,
			catalog.StepDocumentGeneration,
		}, ",")
		if got := backend.sequence(); got != want {
			t.Errorf("steps served = %s, want %s", got, want)
		}

		final, _ := store.Get(ctx, "m1")
		if final.Action != model.ActionPending {
			t.Errorf("final action = %s, want %s", final.Action, model.ActionPending)
		}
		if strValue(final.CurrentStep) != catalog.SentinelCompleted {
			t.Errorf("final currentStep = %s, want %s", strValue(final.CurrentStep), catalog.SentinelCompleted)
		}
		if len(results.procs) != 1 {
			t.Fatalf("process results = %d, want 1", len(results.procs))
		}
		if got := strings.Join(results.procs[0].StepsCompleted, ","); got != want {
			t.Errorf("stepsCompleted = %s, want %s", got, want)
		}
		if store.lastPatch() == nil || store.patches[0]["current_step"] != catalog.SentinelQueue {
			t.Errorf("first patch = %v, want the queue sentinel", store.patches[0])
		}
	})

	t.Run("resume picks up at the recorded step", func(t *testing.T) {
		backend := &stubBackend{}
		ts := httptest.NewServer(backend.handler())
		defer ts.Close()

		store := newMemStore()
		results := newMemResults()
		rec := seqRecord(ts.URL)
		rec.Action = model.ActionResume
		rec.CurrentStep = toStrPtr(catalog.StepTocEnrichment)
		store.put(rec)

		r := newSeqRunner(t, store, results, 0)
		r.runAll(ctx, rec)

		want := strings.Join([]string{
			catalog.StepTocEnrichment,
			catalog.StepTocSanitization,
			catalog.StepDocumentGeneration,
		}, ",")
		if got := backend.sequence(); got != want {
			t.Errorf("steps served = %s, want %s", got, want)
		}
	})

	t.Run("stop halts between steps", func(t *testing.T) {
		store := newMemStore()
		results := newMemResults()
		backend := &stubBackend{after: func(step string) {
			if step == catalog.StepClearState {
				store.setAction("m1", model.ActionStop)
			}
		}}
		ts := httptest.NewServer(backend.handler())
		defer ts.Close()

		rec := seqRecord(ts.URL)
		store.put(rec)

		r := newSeqRunner(t, store, results, 0)
		r.runAll(ctx, rec)

		want := catalog.StepClone + "," + catalog.StepClearState
		if got := backend.sequence(); got != want {
			t.Errorf("steps served = %s, want %s", got, want)
		}
		final, _ := store.Get(ctx, "m1")
		if final.Action != model.ActionStop {
			t.Errorf("final action = %s, want stop kept in place", final.Action)
		}
		if strValue(final.CurrentStep) != catalog.StepClearState {
			t.Errorf("final currentStep = %s, want the last executed step", strValue(final.CurrentStep))
		}
		if len(results.procs) != 0 {
			t.Errorf("stopped run appended %d process results", len(results.procs))
		}
	})

	t.Run("unknown start step fails the run", func(t *testing.T) {
		store := newMemStore()
		rec := seqRecord("http://unused")
		rec.StartFrom = toStrPtr("refactor-everything")
		store.put(rec)

		r := newSeqRunner(t, store, newMemResults(), 0)
		r.runAll(ctx, rec)

		final, _ := store.Get(ctx, "m1")
		if final.Action != model.ActionError {
			t.Errorf("final action = %s, want %s", final.Action, model.ActionError)
		}
	})
}

func TestRunSingle(t *testing.T) {
	ctx := context.Background()
	backend := &stubBackend{}
	ts := httptest.NewServer(backend.handler())
	defer ts.Close()

	store := newMemStore()
	results := newMemResults()
	rec := seqRecord(ts.URL)
	rec.ExecuteOnly = toStrPtr(catalog.StepInventory)
	rec.CurrentStep = toStrPtr(catalog.SentinelError)
	store.put(rec)

	r := newSeqRunner(t, store, results, 0)
	r.run(ctx, rec)

	if got := backend.sequence(); got != catalog.StepInventory {
		t.Errorf("steps served = %s, want just %s", got, catalog.StepInventory)
	}
	final, _ := store.Get(ctx, "m1")
	if final.ExecuteOnly != nil {
		t.Errorf("executeOnly = %q, want cleared", *final.ExecuteOnly)
	}
	if final.Action != model.ActionPending {
		t.Errorf("final action = %s, want %s", final.Action, model.ActionPending)
	}
	if strValue(final.CurrentStep) != catalog.SentinelError {
		t.Errorf("currentStep = %s, want left untouched", strValue(final.CurrentStep))
	}
	if results.stepCount() != 1 || !results.steps[0].Success {
		t.Errorf("step results = %+v, want one success", results.steps)
	}
}

func TestExecuteRetries(t *testing.T) {
	ctx := context.Background()
	backend := &stubBackend{failOnce: map[string]bool{catalog.StepInventory: true}}
	ts := httptest.NewServer(backend.handler())
	defer ts.Close()

	store := newMemStore()
	results := newMemResults()
	rec := seqRecord(ts.URL)
	rec.ExecuteOnly = toStrPtr(catalog.StepInventory)
	store.put(rec)

	r := newSeqRunner(t, store, results, 1)
	r.run(ctx, rec)

	if results.stepCount() != 2 {
		t.Fatalf("step results = %d, want failed attempt + success", results.stepCount())
	}
	if results.steps[0].Success || !strings.Contains(results.steps[0].Error, "503") {
		t.Errorf("first attempt = %+v, want recorded failure", results.steps[0])
	}
	if !results.steps[1].Success {
		t.Errorf("second attempt = %+v, want success", results.steps[1])
	}
	final, _ := store.Get(ctx, "m1")
	if final.Action != model.ActionPending {
		t.Errorf("final action = %s, want %s", final.Action, model.ActionPending)
	}
}

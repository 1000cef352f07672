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

// Package runner drives migration records through the step catalog.
//
// The record is the source of truth. The runner polls the store for
// records whose action asks for work and consumes the doorbell queue as
// a wake-up nudge; commands written while a run is in flight are honored
// at step boundaries. Delete is honored the same way: the run abandons
// the record without another write.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/datatypes"

	agentconfig "github.com/molthq/molt/internal/agent/config"
	"github.com/molthq/molt/internal/agent/executor"
	"github.com/molthq/molt/internal/agent/logstream"
	"github.com/molthq/molt/internal/engine/catalog"
	"github.com/molthq/molt/internal/engine/feed"
	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/internal/engine/repo"
	"github.com/molthq/molt/pkg/id"
	"github.com/molthq/molt/pkg/log"
	"github.com/molthq/molt/pkg/nova"
	"github.com/molthq/molt/pkg/outbox"
	"github.com/molthq/molt/pkg/safe"
)

// Runner owns the worker loop of one agent process.
type Runner struct {
	conf          *agentconfig.AgentConfig
	migrationRepo repo.IMigrationRepository
	resultRepo    repo.IResultRepository
	storageRepo   repo.IStorageRepository
	artifactRepo  repo.IArtifactRepository
	feed          feed.Bus
	exec          *executor.Executor
	logPub        *logstream.KafkaLogPublisher
	spool         *outbox.Outbox // nil when the fallback path is disabled
	queue         nova.TaskQueue // nil without a broker
	beats         *heartbeats

	mu      sync.Mutex
	running map[string]context.CancelFunc
	nudge   chan string
	sem     chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner assembles the worker. The returned cleanup closes the write
// spool; Start and Stop manage the loop itself.
func NewRunner(
	conf *agentconfig.AgentConfig,
	repos *repo.Repositories,
	feedBus feed.Bus,
	exec *executor.Executor,
	logPub *logstream.KafkaLogPublisher,
	queue nova.TaskQueue,
) (*Runner, func(), error) {
	r := &Runner{
		conf:          conf,
		migrationRepo: repos.Migration,
		resultRepo:    repos.Result,
		storageRepo:   repos.Storage,
		artifactRepo:  repos.Artifact,
		feed:          feedBus,
		exec:          exec,
		logPub:        logPub,
		queue:         queue,
		beats:         newHeartbeats(conf.Runner, repos.Backend),
		running:       make(map[string]context.CancelFunc),
		nudge:         make(chan string, 64),
		sem:           make(chan struct{}, conf.Runner.Concurrency),
	}

	if conf.Outbox.Enabled {
		spool, err := outbox.NewOutbox(outbox.Config{
			WALDir:         conf.Outbox.Dir,
			AgentId:        conf.Runner.AgentId,
			SegmentMaxSeq:  conf.Outbox.SegmentMaxSeq,
			FsyncInterval:  conf.Outbox.FsyncInterval,
			SendBatchSize:  conf.Outbox.SendBatchSize,
			SendInterval:   conf.Outbox.SendInterval,
			MaxDiskUsageMB: conf.Outbox.MaxDiskUsageMB,
			MinDiskFreeMB:  conf.Outbox.MinDiskFreeMB,
		}, NewStoreSender(repos.Migration, repos.Result, feedBus))
		if err != nil {
			return nil, nil, fmt.Errorf("open write spool: %w", err)
		}
		r.spool = spool
	}

	cleanup := func() {
		if r.spool != nil {
			if err := r.spool.Close(); err != nil {
				log.Warnw("close write spool failed", "error", err)
			}
		}
	}
	return r, cleanup, nil
}

// Start launches the poll loop and the doorbell consumer.
func (r *Runner) Start() error {
	r.ctx, r.cancel = context.WithCancel(context.Background())

	if r.queue != nil {
		if err := r.queue.Start(nova.HandlerFunc(r.handleDoorbell)); err != nil {
			return fmt.Errorf("start doorbell consumer: %w", err)
		}
	}

	r.wg.Add(1)
	safe.Go(func() {
		defer r.wg.Done()
		r.loop()
	})

	log.Infow("runner started",
		"agentId", r.conf.Runner.AgentId,
		"pollInterval", r.conf.Runner.PollInterval,
		"concurrency", r.conf.Runner.Concurrency,
	)
	return nil
}

// Stop cancels in-flight runs at the next step boundary and waits for
// them to drain. Interrupted records keep their action; the next agent
// start picks them up again.
func (r *Runner) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	if r.queue != nil {
		if err := r.queue.Stop(); err != nil {
			log.Warnw("stop doorbell consumer failed", "error", err)
		}
	}
	r.wg.Wait()
	r.exec.Close()
	log.Info("runner stopped")
}

func (r *Runner) loop() {
	ticker := time.NewTicker(r.conf.Runner.PollInterval)
	defer ticker.Stop()

	r.poll()
	for {
		select {
		case <-r.ctx.Done():
			return
		case migrationId := <-r.nudge:
			r.pollOne(migrationId)
		case <-ticker.C:
			r.poll()
		}
	}
}

// poll lists records whose action asks for work and dispatches each.
func (r *Runner) poll() {
	ctx, cancel := context.WithTimeout(r.ctx, 10*time.Second)
	defer cancel()

	for _, action := range []string{model.ActionStart, model.ActionResume} {
		records, _, err := r.migrationRepo.List(ctx, &repo.MigrationQuery{Action: action, Page: 1, PageSize: 100})
		if err != nil {
			log.Warnw("poll migrations failed", "action", action, "error", err)
			continue
		}
		for _, rec := range records {
			r.dispatch(rec)
		}
	}
}

// pollOne re-reads one record after a doorbell nudge.
func (r *Runner) pollOne(migrationId string) {
	ctx, cancel := context.WithTimeout(r.ctx, 10*time.Second)
	defer cancel()

	rec, err := r.migrationRepo.Get(ctx, migrationId)
	if err != nil {
		log.Warnw("read nudged migration failed", "migrationId", migrationId, "error", err)
		return
	}
	if rec == nil {
		return
	}
	if rec.Action == model.ActionStart || rec.Action == model.ActionResume {
		r.dispatch(rec)
	}
}

// dispatch hands one record to a worker goroutine. A record already in
// flight is skipped; polls are idempotent.
func (r *Runner) dispatch(rec *model.MigrationAction) {
	r.mu.Lock()
	if _, inFlight := r.running[rec.MigrationId]; inFlight {
		r.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(r.ctx)
	r.running[rec.MigrationId] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	safe.Go(func() {
		defer r.wg.Done()
		defer r.release(rec.MigrationId)

		select {
		case r.sem <- struct{}{}:
		case <-runCtx.Done():
			return
		}
		defer func() { <-r.sem }()

		r.run(runCtx, rec)
	})
}

func (r *Runner) release(migrationId string) {
	r.mu.Lock()
	if cancel, ok := r.running[migrationId]; ok {
		cancel()
		delete(r.running, migrationId)
	}
	r.mu.Unlock()
}

// run executes one claimed record to its terminal state for this
// command epoch.
func (r *Runner) run(ctx context.Context, rec *model.MigrationAction) {
	if rec.Action == model.ActionStart && strValue(rec.ExecuteOnly) != "" {
		r.runSingle(ctx, rec)
		return
	}
	r.runAll(ctx, rec)
}

// runAll walks the catalog from the effective start step, skipping
// ignored steps, until completion or a halt condition.
func (r *Runner) runAll(ctx context.Context, rec *model.MigrationAction) {
	migrationId := rec.MigrationId
	epoch := rec.Epoch

	startFrom := strValue(rec.StartFrom)
	if rec.Action == model.ActionResume {
		// Resume continues from wherever the record stopped; the
		// startFrom pin only applies to fresh starts.
		if cs := strValue(rec.CurrentStep); catalog.IsStep(cs) {
			startFrom = cs
		}
	}
	plan := catalog.StepsFrom(startFrom)
	if plan == nil {
		r.failRun(ctx, migrationId, "", fmt.Sprintf("unknown start step %q", startFrom), true)
		return
	}
	ignored := make(map[string]bool, len(rec.IgnoreSteps))
	for _, s := range rec.IgnoreSteps {
		ignored[s] = true
	}

	log.Infow("migration run starting",
		"migrationId", migrationId,
		"action", rec.Action,
		"startFrom", startFrom,
		"steps", len(plan),
		"epoch", epoch,
	)

	r.patchRecord(ctx, migrationId, map[string]any{"current_step": catalog.SentinelQueue})

	startedAt := time.Now().UnixMilli()
	completed := make([]string, 0, len(plan))
	for _, step := range plan {
		if ignored[step] {
			continue
		}
		if ctx.Err() != nil {
			log.Infow("run interrupted by shutdown", "migrationId", migrationId, "nextStep", step)
			return
		}
		fresh, proceed := r.recheck(ctx, migrationId, epoch)
		if !proceed {
			return
		}
		if fresh != nil {
			rec = fresh
		}

		if _, err := r.patchRecord(ctx, migrationId, map[string]any{"current_step": step}); err != nil {
			r.failRun(ctx, migrationId, step, err.Error(), true)
			return
		}
		if _, err := r.execute(ctx, rec, step); err != nil {
			if ctx.Err() != nil {
				// Shutdown, not a step failure. The record keeps its
				// action; the next agent start resumes the command.
				log.Infow("run interrupted by shutdown", "migrationId", migrationId, "step", step)
				return
			}
			r.failRun(ctx, migrationId, step, err.Error(), true)
			return
		}
		completed = append(completed, step)
	}

	if _, proceed := r.recheck(ctx, migrationId, epoch); !proceed {
		return
	}
	r.appendProcessResult(ctx, &model.ProcessResult{
		ResultId:       id.GetUild(),
		MigrationId:    migrationId,
		StepsCompleted: datatypes.NewJSONSlice(completed),
		StartedAt:      startedAt,
		FinishedAt:     time.Now().UnixMilli(),
		Meta: datatypes.JSONMap{
			"agentId": r.conf.Runner.AgentId,
			"epoch":   epoch,
		},
	})
	r.patchRecord(ctx, migrationId, map[string]any{
		"current_step": catalog.SentinelCompleted,
		"action":       model.ActionPending,
	})
	log.Infow("migration run completed",
		"migrationId", migrationId,
		"stepsCompleted", len(completed),
		"epoch", epoch,
	)
}

// runSingle executes exactly the pinned step, then clears the pin.
// currentStep is left alone on success so the record keeps showing
// where the full run stands.
func (r *Runner) runSingle(ctx context.Context, rec *model.MigrationAction) {
	migrationId := rec.MigrationId
	epoch := rec.Epoch
	step := strValue(rec.ExecuteOnly)

	if !catalog.IsStep(step) {
		r.failRun(ctx, migrationId, step, fmt.Sprintf("unknown step %q pinned for rerun", step), false)
		return
	}

	log.Infow("single step run starting", "migrationId", migrationId, "step", step, "epoch", epoch)

	if _, err := r.execute(ctx, rec, step); err != nil {
		if ctx.Err() != nil {
			log.Infow("run interrupted by shutdown", "migrationId", migrationId, "step", step)
			return
		}
		// The pin survives the failure; a later start retries the
		// same single step.
		r.failRun(ctx, migrationId, step, err.Error(), false)
		return
	}

	if _, proceed := r.recheck(ctx, migrationId, epoch); !proceed {
		return
	}
	r.patchRecord(ctx, migrationId, map[string]any{
		"execute_only": nil,
		"action":       model.ActionPending,
	})
	log.Infow("single step run completed", "migrationId", migrationId, "step", step)
}

// execute resolves the backend and runs one step, appending a StepResult
// per attempt. The returned error is the raw text of the last attempt.
func (r *Runner) execute(ctx context.Context, rec *model.MigrationAction, step string) (map[string]any, error) {
	migrationId := rec.MigrationId

	target, err := r.exec.Resolve(ctx, rec, step)
	if err != nil {
		r.appendStepResult(ctx, failedStepResult(migrationId, step, err))
		return nil, err
	}

	attempts := r.conf.Runner.StepRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		logger := logstream.NewStepLogger(r.logPub, logstream.StepMessage(
			rec.ProjectId, migrationId, rec.Epoch, step, r.conf.Runner.AgentId, target.Name,
		))
		output, runErr := r.exec.RunStep(ctx, target, migrationId, step, logger)
		if runErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = runErr
			r.appendStepResult(ctx, failedStepResult(migrationId, step, runErr))
			log.Warnw("step attempt failed",
				"migrationId", migrationId,
				"step", step,
				"attempt", attempt,
				"error", runErr,
			)
			continue
		}

		sr := &model.StepResult{
			ResultId:    id.GetUild(),
			MigrationId: migrationId,
			Step:        step,
			Success:     true,
			Output:      datatypes.JSONMap(output),
			Timestamp:   time.Now().UnixMilli(),
		}
		r.appendStepResult(ctx, sr)
		if step == catalog.AnalysisStep {
			r.publishAnalysis(ctx, sr)
		}
		if step == catalog.StepDocumentGeneration {
			r.uploadOutputs(ctx, migrationId, step)
		}
		if target.Name != "" {
			r.beats.Beat(target.Name)
		}
		return output, nil
	}
	return nil, lastErr
}

// recheck re-reads the record between steps and reports whether the run
// may continue. A halt never rewrites the record: stop keeps the last
// currentStep, delete is never written over, and a changed epoch means
// a newer command owns the record now.
func (r *Runner) recheck(ctx context.Context, migrationId string, epoch int64) (*model.MigrationAction, bool) {
	fresh, err := r.migrationRepo.Get(ctx, migrationId)
	if err != nil {
		// Store unreachable. Writes are spooling; executing on the last
		// snapshot beats stalling the run.
		log.Warnw("recheck record failed", "migrationId", migrationId, "error", err)
		return nil, true
	}
	if fresh == nil {
		log.Warnw("record vanished mid-run", "migrationId", migrationId)
		return nil, false
	}
	switch fresh.Action {
	case model.ActionDelete:
		log.Infow("delete observed, abandoning run", "migrationId", migrationId)
		return nil, false
	case model.ActionStop:
		log.Infow("run stopped", "migrationId", migrationId, "currentStep", strValue(fresh.CurrentStep))
		return nil, false
	case model.ActionError:
		return nil, false
	}
	if fresh.Epoch != epoch {
		log.Infow("run superseded by newer command", "migrationId", migrationId, "epoch", epoch, "newEpoch", fresh.Epoch)
		return nil, false
	}
	return fresh, true
}

// failRun records an unrecoverable failure. The raw error text lands on
// the record unedited; sentinel moves currentStep to the error marker
// for full runs and leaves it alone for single-step reruns.
func (r *Runner) failRun(ctx context.Context, migrationId, step, raw string, sentinel bool) {
	if rec, err := r.migrationRepo.Get(ctx, migrationId); err == nil && rec != nil && rec.Action == model.ActionDelete {
		return
	}

	updates := map[string]any{
		"action": model.ActionError,
		"error":  raw,
	}
	if step != "" {
		updates["description"] = fmt.Sprintf("Failed at step: %s", step)
	}
	if sentinel {
		updates["current_step"] = catalog.SentinelError
	}
	r.patchRecord(ctx, migrationId, updates)
	log.Errorw("migration run failed",
		"migrationId", migrationId,
		"step", step,
		"error", raw,
	)
}

func failedStepResult(migrationId, step string, err error) *model.StepResult {
	return &model.StepResult{
		ResultId:    id.GetUild(),
		MigrationId: migrationId,
		Step:        step,
		Success:     false,
		Error:       err.Error(),
		Timestamp:   time.Now().UnixMilli(),
	}
}

func strValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

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

	"github.com/molthq/molt/internal/engine/feed"
	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/pkg/id"
	"github.com/molthq/molt/pkg/log"
)

// Spooled event types. The payload keys double as CloudEvents-style
// attributes the WAL sender surfaces (id, type, stepname).
const (
	eventRecordPatch   = "record.patch"
	eventStepResult    = "stepresult.append"
	eventProcessResult = "processresult.append"
)

// patchRecord merges updates onto the record, then reloads and fans the
// fresh row out, mirroring the engine's write path so either peer's
// patches reach live views the same way. A failed direct write falls
// back to the spool and counts as accepted; the error comes back only
// when the spool is disabled or full.
func (r *Runner) patchRecord(ctx context.Context, migrationId string, updates map[string]any) (*model.MigrationAction, error) {
	rows, err := r.migrationRepo.Patch(ctx, migrationId, updates)
	if err != nil {
		return nil, r.spoolWrite(ctx, map[string]any{
			"id":          id.GetUild(),
			"type":        eventRecordPatch,
			"migrationid": migrationId,
			"data":        updates,
		}, err)
	}
	if rows == 0 {
		log.Debugw("patch matched no migration", "migrationId", migrationId)
		return nil, nil
	}
	record, err := r.migrationRepo.Get(ctx, migrationId)
	if err != nil || record == nil {
		// The write landed; losing the reload only costs the fanout.
		log.Warnw("reload record after patch failed", "migrationId", migrationId, "error", err)
		return nil, nil
	}
	r.fanout(ctx, record)
	return record, nil
}

// fanout publishes the fresh record to its own feed and to the shared
// transitions feed the engine relays onto its event bus.
func (r *Runner) fanout(ctx context.Context, record *model.MigrationAction) {
	if r.feed == nil {
		return
	}
	if err := r.feed.Publish(ctx, feed.MigrationFeed(record.MigrationId), record); err != nil {
		log.Warnw("publish migration feed failed", "migrationId", record.MigrationId, "error", err)
	}
	if err := r.feed.Publish(ctx, feed.TransitionsFeed(), record); err != nil {
		log.Warnw("publish transitions feed failed", "migrationId", record.MigrationId, "error", err)
	}
}

// appendStepResult stores one attempt's result and announces it.
func (r *Runner) appendStepResult(ctx context.Context, sr *model.StepResult) {
	if err := r.resultRepo.AppendStepResult(ctx, sr); err != nil {
		_ = r.spoolWrite(ctx, map[string]any{
			"id":          sr.ResultId,
			"type":        eventStepResult,
			"migrationid": sr.MigrationId,
			"stepname":    sr.Step,
			"data":        sr,
		}, err)
		return
	}
	if r.feed != nil {
		if err := r.feed.Publish(ctx, feed.StepFeed(sr.MigrationId), sr); err != nil {
			log.Warnw("publish step feed failed", "migrationId", sr.MigrationId, "step", sr.Step, "error", err)
		}
	}
}

// publishAnalysis feeds the latest tech-stack-analysis output to live
// views. Store state is already covered by the step result row.
func (r *Runner) publishAnalysis(ctx context.Context, sr *model.StepResult) {
	if r.feed == nil {
		return
	}
	if err := r.feed.Publish(ctx, feed.AnalysisFeed(sr.MigrationId), sr); err != nil {
		log.Warnw("publish analysis feed failed", "migrationId", sr.MigrationId, "error", err)
	}
}

// appendProcessResult stores the run summary and announces it.
func (r *Runner) appendProcessResult(ctx context.Context, pr *model.ProcessResult) {
	if err := r.resultRepo.AppendProcessResult(ctx, pr); err != nil {
		_ = r.spoolWrite(ctx, map[string]any{
			"id":          pr.ResultId,
			"type":        eventProcessResult,
			"migrationid": pr.MigrationId,
			"data":        pr,
		}, err)
		return
	}
	if r.feed != nil {
		if err := r.feed.Publish(ctx, feed.ProcessFeed(pr.MigrationId), pr); err != nil {
			log.Warnw("publish process feed failed", "migrationId", pr.MigrationId, "error", err)
		}
	}
}

// spoolWrite parks a failed store write in the WAL for in-order replay.
// Returns nil when the write is safely spooled, else the original cause.
func (r *Runner) spoolWrite(ctx context.Context, payload map[string]any, cause error) error {
	if r.spool == nil {
		log.Errorw("store write failed, spool disabled", "type", payload["type"], "migrationId", payload["migrationid"], "error", cause)
		return cause
	}
	if _, err := r.spool.AppendMap(ctx, payload); err != nil {
		log.Errorw("spool store write failed", "type", payload["type"], "migrationId", payload["migrationid"], "spoolError", err, "error", cause)
		return cause
	}
	log.Warnw("store write spooled for replay", "type", payload["type"], "migrationId", payload["migrationid"], "error", cause)
	return nil
}

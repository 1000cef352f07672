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

	"github.com/bytedance/sonic"

	"github.com/molthq/molt/internal/engine/feed"
	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/internal/engine/repo"
	"github.com/molthq/molt/pkg/log"
	"github.com/molthq/molt/pkg/outbox"
)

// StoreSender drains the write spool back into the store, in order.
// Acking is continuous: the first event that cannot be applied stops the
// batch and everything from it on is re-delivered next round. Events
// aimed at delete-marked or vanished records are acked and dropped;
// those records are never written again.
type StoreSender struct {
	migrationRepo repo.IMigrationRepository
	resultRepo    repo.IResultRepository
	feed          feed.Bus
}

func NewStoreSender(migrationRepo repo.IMigrationRepository, resultRepo repo.IResultRepository, feedBus feed.Bus) *StoreSender {
	return &StoreSender{
		migrationRepo: migrationRepo,
		resultRepo:    resultRepo,
		feed:          feedBus,
	}
}

// Send applies spooled events until one fails.
func (s *StoreSender) Send(ctx context.Context, events []outbox.Event) (outbox.SendResult, error) {
	var last uint64
	for _, ev := range events {
		if err := s.apply(ctx, ev); err != nil {
			log.Warnw("replay spooled write failed",
				"seq", ev.Seq,
				"type", ev.EventType,
				"error", err,
			)
			return outbox.SendResult{LastSeq: last, ExpectedSeq: ev.Seq}, nil
		}
		last = ev.Seq
	}
	return outbox.SendResult{LastSeq: last, ExpectedSeq: last + 1}, nil
}

func (s *StoreSender) apply(ctx context.Context, ev outbox.Event) error {
	migrationId, _ := ev.Payload["migrationid"].(string)
	if migrationId == "" {
		log.Warnw("spooled write has no migration id, dropping", "seq", ev.Seq, "type", ev.EventType)
		return nil
	}

	rec, err := s.migrationRepo.Get(ctx, migrationId)
	if err != nil {
		return err
	}
	if rec == nil || rec.Action == model.ActionDelete {
		log.Infow("dropping spooled write for deleted record", "migrationId", migrationId, "seq", ev.Seq, "type", ev.EventType)
		return nil
	}

	switch ev.EventType {
	case eventRecordPatch:
		return s.applyPatch(ctx, migrationId, ev)
	case eventStepResult:
		return s.applyStepResult(ctx, ev)
	case eventProcessResult:
		return s.applyProcessResult(ctx, ev)
	default:
		log.Warnw("unknown spooled event type, dropping", "seq", ev.Seq, "type", ev.EventType)
		return nil
	}
}

func (s *StoreSender) applyPatch(ctx context.Context, migrationId string, ev outbox.Event) error {
	updates, ok := ev.Payload["data"].(map[string]any)
	if !ok || len(updates) == 0 {
		log.Warnw("spooled patch has no updates, dropping", "migrationId", migrationId, "seq", ev.Seq)
		return nil
	}
	if _, err := s.migrationRepo.Patch(ctx, migrationId, updates); err != nil {
		return err
	}
	record, err := s.migrationRepo.Get(ctx, migrationId)
	if err != nil || record == nil {
		return nil
	}
	if s.feed != nil {
		if err := s.feed.Publish(ctx, feed.MigrationFeed(migrationId), record); err != nil {
			log.Warnw("publish migration feed failed", "migrationId", migrationId, "error", err)
		}
		if err := s.feed.Publish(ctx, feed.TransitionsFeed(), record); err != nil {
			log.Warnw("publish transitions feed failed", "migrationId", migrationId, "error", err)
		}
	}
	return nil
}

func (s *StoreSender) applyStepResult(ctx context.Context, ev outbox.Event) error {
	var sr model.StepResult
	if !decodeData(ev.Payload["data"], &sr) || sr.ResultId == "" {
		log.Warnw("spooled step result is malformed, dropping", "seq", ev.Seq)
		return nil
	}
	exists, err := s.resultRepo.HasStepResult(ctx, sr.ResultId)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.resultRepo.AppendStepResult(ctx, &sr); err != nil {
			return err
		}
	}
	if s.feed != nil {
		if err := s.feed.Publish(ctx, feed.StepFeed(sr.MigrationId), &sr); err != nil {
			log.Warnw("publish step feed failed", "migrationId", sr.MigrationId, "step", sr.Step, "error", err)
		}
	}
	return nil
}

func (s *StoreSender) applyProcessResult(ctx context.Context, ev outbox.Event) error {
	var pr model.ProcessResult
	if !decodeData(ev.Payload["data"], &pr) || pr.ResultId == "" {
		log.Warnw("spooled process result is malformed, dropping", "seq", ev.Seq)
		return nil
	}
	exists, err := s.resultRepo.HasProcessResult(ctx, pr.ResultId)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.resultRepo.AppendProcessResult(ctx, &pr); err != nil {
			return err
		}
	}
	if s.feed != nil {
		if err := s.feed.Publish(ctx, feed.ProcessFeed(pr.MigrationId), &pr); err != nil {
			log.Warnw("publish process feed failed", "migrationId", pr.MigrationId, "error", err)
		}
	}
	return nil
}

// decodeData round-trips a spooled payload fragment into its model type.
func decodeData(data any, v any) bool {
	raw, err := sonic.Marshal(data)
	if err != nil {
		return false
	}
	return sonic.Unmarshal(raw, v) == nil
}

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

// Package feed fans row changes out to in-process subscribers, optionally
// mirrored across processes through redis pub/sub. Ordering holds within one
// feed only; feeds for different records interleave arbitrarily.
package feed

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/molthq/molt/internal/engine/consts"
	"github.com/pkg/errors"
)

// ErrBusClosed is returned by Publish and Subscribe after Close.
var ErrBusClosed = errors.New("feed: bus is closed")

// Event is one change-feed delivery. Seq is monotonic per feed within this
// process; callers never compare seqs across feeds.
type Event struct {
	Feed    string
	Seq     uint64
	Payload []byte
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return sonic.Unmarshal(e.Payload, v)
}

// Handler consumes one subscription's events, one at a time, in feed order.
type Handler func(ev Event)

// Disposer releases one subscription. Safe to call more than once.
type Disposer func()

// Bus publishes row changes and fans them out to subscribers.
type Bus interface {
	Publish(ctx context.Context, feed string, payload any) error
	Subscribe(feed string, fn Handler) (Disposer, error)
	Close() error
}

// Config tunes the feed bus.
type Config struct {
	// Buffer is the per-subscriber queue length. A subscriber that falls
	// this far behind is dropped rather than allowed to stall writers.
	Buffer int `mapstructure:"buffer"`
	// Bridge mirrors publishes through redis so peer processes see them.
	Bridge bool `mapstructure:"bridge"`
}

// SetDefaults fills missing feed configuration values.
func (c *Config) SetDefaults() {
	if c.Buffer <= 0 {
		c.Buffer = 256
	}
}

// MigrationFeed keys the record feed of one migration.
func MigrationFeed(migrationId string) string {
	return consts.FeedMigrationPrefix + migrationId
}

// ProcessFeed keys the process-result feed of one migration.
func ProcessFeed(migrationId string) string {
	return consts.FeedProcessPrefix + migrationId
}

// StepFeed keys the step-result feed of one migration.
func StepFeed(migrationId string) string {
	return consts.FeedStepPrefix + migrationId
}

// AnalysisFeed keys the tech-stack-analysis feed of one migration.
func AnalysisFeed(migrationId string) string {
	return consts.FeedAnalysisPrefix + migrationId
}

// TransitionsFeed keys the shared feed workers publish record writes to.
func TransitionsFeed() string {
	return consts.FeedTransitions
}

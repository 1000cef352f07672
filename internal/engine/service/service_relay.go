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
	"fmt"

	"github.com/molthq/molt/internal/engine/feed"
	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/pkg/event"
	"github.com/molthq/molt/pkg/log"
)

// TransitionRelay carries worker record writes onto the event bus.
//
// Engine-side writes publish MigrationTransition at the write site.
// Worker processes cannot reach that bus, so they publish every record
// write to the transitions feed as well; the relay subscribes once and
// republishes, and downstream consumers see the same event no matter
// which peer moved the record.
type TransitionRelay struct {
	dispose feed.Disposer
}

// NewTransitionRelay subscribes the relay. The returned cleanup drops
// the subscription.
func NewTransitionRelay(bus feed.Bus, events *event.Bus) (*TransitionRelay, func(), error) {
	dispose, err := bus.Subscribe(feed.TransitionsFeed(), func(ev feed.Event) {
		var record model.MigrationAction
		if err := ev.Decode(&record); err != nil {
			log.Warnw("decode transition event failed", "error", err)
			return
		}
		events.Publish(MigrationTransition{Record: &record, Progress: recordProgress(&record)})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe transitions feed: %w", err)
	}
	relay := &TransitionRelay{dispose: dispose}
	return relay, relay.Close, nil
}

// Close drops the feed subscription.
func (r *TransitionRelay) Close() {
	if r.dispose != nil {
		r.dispose()
	}
}

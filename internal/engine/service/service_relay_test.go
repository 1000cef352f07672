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
	"testing"
	"time"

	"github.com/molthq/molt/internal/engine/catalog"
	"github.com/molthq/molt/internal/engine/feed"
	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/pkg/event"
)

func TestTransitionRelay(t *testing.T) {
	bus := feed.NewMemoryBus(&feed.Config{Buffer: 16})
	defer bus.Close()

	events := event.NewEventBus()
	got := make(chan event.Event, 4)
	events.RegisterHandler(MigrationTransition{}.EventName(), event.HandlerFunc(func(ev event.Event) {
		got <- ev
	}))

	_, cleanup, err := NewTransitionRelay(bus, events)
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	ctx := context.Background()
	step := catalog.StepInventory
	record := &model.MigrationAction{MigrationId: "m1", Action: model.ActionStart, CurrentStep: &step}
	if err := bus.Publish(ctx, feed.TransitionsFeed(), record); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-got:
		tr, ok := ev.(MigrationTransition)
		if !ok {
			t.Fatalf("relayed event type = %T", ev)
		}
		if tr.Record.MigrationId != "m1" || tr.Record.Action != model.ActionStart {
			t.Errorf("relayed record = %+v", tr.Record)
		}
		if tr.Progress != catalog.Progress(step) {
			t.Errorf("relayed progress = %d, want %d", tr.Progress, catalog.Progress(step))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relayed transition")
	}
}

func TestTransitionRelayDropsMalformed(t *testing.T) {
	bus := feed.NewMemoryBus(&feed.Config{Buffer: 16})
	defer bus.Close()

	events := event.NewEventBus()
	got := make(chan event.Event, 4)
	events.RegisterHandler(MigrationTransition{}.EventName(), event.HandlerFunc(func(ev event.Event) {
		got <- ev
	}))

	_, cleanup, err := NewTransitionRelay(bus, events)
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	ctx := context.Background()
	if err := bus.Publish(ctx, feed.TransitionsFeed(), "not a record"); err != nil {
		t.Fatal(err)
	}
	if err := bus.Publish(ctx, feed.TransitionsFeed(), &model.MigrationAction{MigrationId: "m2", Action: model.ActionStop}); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-got:
		tr := ev.(MigrationTransition)
		if tr.Record.MigrationId != "m2" {
			t.Errorf("first relayed record = %+v, want the valid one", tr.Record)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relayed transition")
	}
}

func TestTransitionRelayClose(t *testing.T) {
	bus := feed.NewMemoryBus(&feed.Config{Buffer: 16})
	defer bus.Close()

	events := event.NewEventBus()
	got := make(chan event.Event, 4)
	events.RegisterHandler(MigrationTransition{}.EventName(), event.HandlerFunc(func(ev event.Event) {
		got <- ev
	}))

	relay, _, err := NewTransitionRelay(bus, events)
	if err != nil {
		t.Fatal(err)
	}
	relay.Close()

	if err := bus.Publish(context.Background(), feed.TransitionsFeed(), &model.MigrationAction{MigrationId: "m3"}); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-got:
		t.Fatalf("closed relay still republished %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

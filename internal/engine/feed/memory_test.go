// Copyright 2025 Molt Team
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

package feed

import (
	"context"
	"testing"
	"time"
)

type row struct {
	Id   string `json:"id"`
	Step string `json:"step"`
}

func collect(buffer int) (Handler, <-chan Event) {
	ch := make(chan Event, buffer)
	return func(ev Event) { ch <- ev }, ch
}

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return Event{}
}

func TestMemoryBusOrderedDelivery(t *testing.T) {
	bus := NewMemoryBus(&Config{Buffer: 16})
	defer bus.Close()

	fn, got := collect(16)
	dispose, err := bus.Subscribe(StepFeed("mig-1"), fn)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer dispose()

	ctx := context.Background()
	for _, step := range []string{"clone", "inventory", "index-upload"} {
		if err := bus.Publish(ctx, StepFeed("mig-1"), row{Id: "mig-1", Step: step}); err != nil {
			t.Fatalf("publish %s: %v", step, err)
		}
	}

	for i, want := range []string{"clone", "inventory", "index-upload"} {
		ev := waitEvent(t, got)
		if ev.Seq != uint64(i+1) {
			t.Errorf("seq = %d, want %d", ev.Seq, i+1)
		}
		var r row
		if err := ev.Decode(&r); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if r.Step != want {
			t.Errorf("step = %q, want %q", r.Step, want)
		}
	}
}

func TestMemoryBusFanOut(t *testing.T) {
	bus := NewMemoryBus(&Config{Buffer: 16})
	defer bus.Close()

	fnA, gotA := collect(16)
	fnB, gotB := collect(16)
	if _, err := bus.Subscribe(MigrationFeed("mig-1"), fnA); err != nil {
		t.Fatalf("subscribe a: %v", err)
	}
	if _, err := bus.Subscribe(MigrationFeed("mig-1"), fnB); err != nil {
		t.Fatalf("subscribe b: %v", err)
	}

	if err := bus.Publish(context.Background(), MigrationFeed("mig-1"), row{Id: "mig-1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, got := range []<-chan Event{gotA, gotB} {
		ev := waitEvent(t, got)
		if ev.Feed != MigrationFeed("mig-1") || ev.Seq != 1 {
			t.Errorf("event = %+v", ev)
		}
	}
}

func TestMemoryBusFeedIsolation(t *testing.T) {
	bus := NewMemoryBus(&Config{Buffer: 16})
	defer bus.Close()

	fn, got := collect(16)
	if _, err := bus.Subscribe(StepFeed("mig-1"), fn); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ctx := context.Background()
	if err := bus.Publish(ctx, StepFeed("mig-2"), row{Id: "mig-2"}); err != nil {
		t.Fatalf("publish other feed: %v", err)
	}
	if err := bus.Publish(ctx, StepFeed("mig-1"), row{Id: "mig-1"}); err != nil {
		t.Fatalf("publish own feed: %v", err)
	}

	ev := waitEvent(t, got)
	var r row
	if err := ev.Decode(&r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.Id != "mig-1" {
		t.Fatalf("leaked event from another feed: %+v", r)
	}
	select {
	case ev := <-got:
		t.Fatalf("unexpected extra event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBusDisposeStopsDelivery(t *testing.T) {
	bus := NewMemoryBus(&Config{Buffer: 16})
	defer bus.Close()

	fn, got := collect(16)
	dispose, err := bus.Subscribe(ProcessFeed("mig-1"), fn)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ctx := context.Background()
	if err := bus.Publish(ctx, ProcessFeed("mig-1"), row{Id: "before"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	waitEvent(t, got)

	dispose()
	dispose() // second call is a no-op

	if err := bus.Publish(ctx, ProcessFeed("mig-1"), row{Id: "after"}); err != nil {
		t.Fatalf("publish after dispose: %v", err)
	}
	select {
	case ev := <-got:
		t.Fatalf("delivery after dispose: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBusShedsSlowSubscriber(t *testing.T) {
	bus := NewMemoryBus(&Config{Buffer: 1})
	defer bus.Close()

	gate := make(chan struct{})
	stuck := make(chan Event, 16)
	_, err := bus.Subscribe(AnalysisFeed("mig-1"), func(ev Event) {
		<-gate
		stuck <- ev
	})
	if err != nil {
		t.Fatalf("subscribe slow: %v", err)
	}
	fastFn, fast := collect(16)
	if _, err := bus.Subscribe(AnalysisFeed("mig-1"), fastFn); err != nil {
		t.Fatalf("subscribe fast: %v", err)
	}

	// first event parks the slow handler, second fills its buffer, third
	// overflows and sheds it
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := bus.Publish(ctx, AnalysisFeed("mig-1"), row{Id: "mig-1"}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
		// let the slow goroutine pull the first event off its queue
		time.Sleep(10 * time.Millisecond)
	}
	close(gate)

	for i := 0; i < 5; i++ {
		waitEvent(t, fast)
	}

	// the shed subscriber drains what it had buffered, then stops
	drained := 0
	for {
		select {
		case <-stuck:
			drained++
			continue
		case <-time.After(100 * time.Millisecond):
		}
		break
	}
	if drained >= 5 {
		t.Fatalf("slow subscriber saw all %d events, expected it shed", drained)
	}
}

func TestMemoryBusClose(t *testing.T) {
	bus := NewMemoryBus(&Config{Buffer: 16})

	fn, _ := collect(16)
	if _, err := bus.Subscribe(MigrationFeed("mig-1"), fn); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	if err := bus.Publish(context.Background(), MigrationFeed("mig-1"), row{}); err == nil {
		t.Fatalf("publish after close succeeded")
	}
	if _, err := bus.Subscribe(MigrationFeed("mig-1"), fn); err == nil {
		t.Fatalf("subscribe after close succeeded")
	}
}

func TestMemoryBusPublishWithoutSubscribers(t *testing.T) {
	bus := NewMemoryBus(&Config{})
	defer bus.Close()

	if err := bus.Publish(context.Background(), StepFeed("mig-ghost"), row{Id: "x"}); err != nil {
		t.Fatalf("publish without subscribers: %v", err)
	}
}

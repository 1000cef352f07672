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

package nova

import (
	"testing"
	"time"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	codec, err := NewMessageCodec(MessageFormatJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if codec.Format() != MessageFormatJSON {
		t.Fatalf("expected json format, got %s", codec.Format())
	}

	task, err := NewTask("demo.work", map[string]string{"id": "42"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	task.Priority = PriorityHigh

	data, err := codec.Encode(task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.ID != task.ID {
		t.Errorf("expected id %s, got %s", task.ID, decoded.ID)
	}
	if decoded.Type != "demo.work" {
		t.Errorf("expected type demo.work, got %s", decoded.Type)
	}
	if decoded.Priority != PriorityHigh {
		t.Errorf("expected high priority, got %d", decoded.Priority)
	}
}

func TestNewMessageCodec_UnknownFormat(t *testing.T) {
	if _, err := NewMessageCodec("protobuf"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestCodecEncodeNilTask(t *testing.T) {
	codec, _ := NewMessageCodec(MessageFormatJSON)
	if _, err := codec.Encode(nil); err == nil {
		t.Fatal("expected error for nil task")
	}
	if _, err := codec.Decode(nil); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestTopicForPriority(t *testing.T) {
	q := &taskQueue{config: &queueConfig{TopicPrefix: "MOLT"}}

	if got := q.topicFor(PriorityHigh); got != "MOLT_TASKS_HIGH" {
		t.Errorf("expected MOLT_TASKS_HIGH, got %s", got)
	}
	if got := q.topicFor(PriorityNormal); got != "MOLT_TASKS" {
		t.Errorf("expected MOLT_TASKS, got %s", got)
	}
	if got := q.topicFor(PriorityLow); got != "MOLT_TASKS_LOW" {
		t.Errorf("expected MOLT_TASKS_LOW, got %s", got)
	}
}

func TestPublishOptionsApply(t *testing.T) {
	opts := publishOptions{}
	WithPriority(PriorityHigh).apply(&opts)
	WithDelay(5 * time.Second).apply(&opts)
	WithTaskID("task-1").apply(&opts)

	if opts.priority != PriorityHigh {
		t.Errorf("expected high priority, got %d", opts.priority)
	}
	if opts.delay != 5*time.Second {
		t.Errorf("expected 5s delay, got %s", opts.delay)
	}
	if opts.taskID != "task-1" {
		t.Errorf("expected task-1, got %s", opts.taskID)
	}
}

func TestQueueOptionsApply(t *testing.T) {
	config := &queueConfig{}
	WithKafka("localhost:9092",
		WithKafkaGroupID("group-1"),
		WithKafkaTopicPrefix("MOLT"),
		WithKafkaClientProgramName("molt-agent"),
		WithKafkaAutoCommit(false),
		WithKafkaSessionTimeout(15000),
		WithKafkaMaxPollInterval(600000),
		WithKafkaDelaySlots(30, 2*time.Second),
	).apply(config)
	WithGroupID("group-1").apply(config)
	WithTopicPrefix("MOLT").apply(config)

	if config.Provider != QueueProviderKafka {
		t.Errorf("expected kafka provider, got %s", config.Provider)
	}
	if config.kafkaConfig == nil {
		t.Fatal("expected kafka config to be set")
	}
	if config.kafkaConfig.GroupID != "group-1" {
		t.Errorf("expected group-1, got %s", config.kafkaConfig.GroupID)
	}
	if config.kafkaConfig.ClientProgram != "molt-agent" {
		t.Errorf("expected molt-agent, got %s", config.kafkaConfig.ClientProgram)
	}
	if config.kafkaConfig.AutoCommit {
		t.Error("expected auto commit disabled")
	}
	if config.kafkaConfig.SessionTimeout != 15000 {
		t.Errorf("expected 15000, got %d", config.kafkaConfig.SessionTimeout)
	}
	if config.kafkaConfig.DelaySlotCount != 30 || config.kafkaConfig.DelaySlotDuration != 2*time.Second {
		t.Errorf("unexpected delay slots: %d x %s", config.kafkaConfig.DelaySlotCount, config.kafkaConfig.DelaySlotDuration)
	}
}

func TestDelayLevelFor(t *testing.T) {
	tests := []struct {
		delay time.Duration
		level int
	}{
		{500 * time.Millisecond, 1},
		{time.Second, 1},
		{3 * time.Second, 2},
		{time.Minute, 5},
		{90 * time.Second, 6},
		{time.Hour, 17},
		{24 * time.Hour, 18},
	}
	for _, tt := range tests {
		if got := delayLevelFor(tt.delay); got != tt.level {
			t.Errorf("delayLevelFor(%s) = %d, expected %d", tt.delay, got, tt.level)
		}
	}
}

func TestDelayWheelSlotPlacement(t *testing.T) {
	m := NewDelayTopicManager(nil, nil, "MOLT_TASKS", 10, time.Second)

	if err := m.ScheduleMessage(t.Context(), "k1", []byte("v1"), nil, 3*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 3s with 1s slots rounds to 3 ticks past the current position.
	if len(m.slots[3]) != 1 {
		t.Fatalf("expected entry in slot 3, slots: %v", m.slots)
	}

	// 2.5s rounds up to 3 ticks as well.
	if err := m.ScheduleMessage(t.Context(), "k2", []byte("v2"), nil, 2500*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.slots[3]) != 2 {
		t.Fatalf("expected two entries in slot 3, got %d", len(m.slots[3]))
	}

	// A delay longer than one revolution wraps around.
	if err := m.ScheduleMessage(t.Context(), "k3", []byte("v3"), nil, 12*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.slots[2]) != 1 {
		t.Fatalf("expected entry in slot 2, slots: %v", m.slots)
	}
}

func TestDelayWheelKeepsUnmaturedEntries(t *testing.T) {
	m := NewDelayTopicManager(nil, nil, "MOLT_TASKS", 4, time.Minute)
	if err := m.ScheduleMessage(t.Context(), "k1", []byte("v1"), nil, 5*time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// One full revolution passes before the entry is due; every visit
	// must leave it in place.
	for i := 0; i < 4; i++ {
		m.advance(t.Context())
	}
	total := 0
	for _, slot := range m.slots {
		total += len(slot)
	}
	if total != 1 {
		t.Fatalf("expected entry to survive early revolutions, found %d entries", total)
	}
}

func TestDelayManagerStopBeforeStart(t *testing.T) {
	m := NewDelayTopicManager(nil, nil, "MOLT_TASKS", 4, time.Second)
	done := make(chan struct{})
	go func() {
		_ = m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop before start should not block")
	}
}

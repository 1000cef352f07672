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

// Package nova is a small task queue on top of pluggable message brokers.
// Tasks are serialized through a MessageCodec, routed to per-priority
// topics and optionally delayed through a DelayManager.
package nova

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Priority represents task scheduling priority
type Priority int

const (
	PriorityLow    Priority = -1
	PriorityNormal Priority = 0
	PriorityHigh   Priority = 1
)

// Topic suffixes appended to the topic prefix per priority
const (
	PriorityHighSuffix   = "_TASKS_HIGH"
	PriorityNormalSuffix = "_TASKS"
	PriorityLowSuffix    = "_TASKS_LOW"
)

// Default queue configuration values
const (
	DefaultTopicPrefix       = "NOVA"
	DefaultDelaySlotCount    = 60
	DefaultDelaySlotDuration = 10 * time.Second
	DefaultAutoCommit        = true
	DefaultSessionTimeout    = 10000
	DefaultMaxPollInterval   = 300000
)

// Message headers carrying task routing metadata
const (
	HeaderTaskID   = "nova-task-id"
	HeaderTaskType = "nova-task-type"
	HeaderFormat   = "nova-format"
)

// TaskQueueConfig carries queue settings loaded from configuration files
type TaskQueueConfig struct {
	Type              string `mapstructure:"type"`
	DelaySlotCount    int    `mapstructure:"delaySlotCount"`
	DelaySlotDuration int    `mapstructure:"delaySlotDuration"`
	AutoCommit        bool   `mapstructure:"autoCommit"`
	SessionTimeout    int    `mapstructure:"sessionTimeout"`
	MaxPollInterval   int    `mapstructure:"maxPollInterval"`
	MessageFormat     string `mapstructure:"messageFormat"`
	MessageCodec      string `mapstructure:"messageCodec"`
}

// Task is a unit of work routed through the queue
type Task struct {
	ID       string            `json:"id,omitempty"`       // Task ID
	Type     string            `json:"type"`               // Task type
	Payload  json.RawMessage   `json:"payload,omitempty"`  // Task payload
	Priority Priority          `json:"priority,omitempty"` // Scheduling priority
	Metadata map[string]string `json:"metadata,omitempty"` // Optional metadata
}

// NewTask creates a task with a JSON-encoded payload
func NewTask(taskType string, payload any) (*Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal task payload: %w", err)
	}
	return &Task{
		ID:      uuid.NewString(),
		Type:    taskType,
		Payload: data,
	}, nil
}

// TaskHandler processes tasks delivered by the queue
type TaskHandler interface {
	ProcessTask(ctx context.Context, task *Task) error
}

// HandlerFunc adapts a function to TaskHandler
type HandlerFunc func(ctx context.Context, task *Task) error

func (f HandlerFunc) ProcessTask(ctx context.Context, task *Task) error {
	return f(ctx, task)
}

// PublishOption is the interface for publish-time options
type PublishOption interface {
	apply(*publishOptions)
}

type publishOptions struct {
	priority Priority
	delay    time.Duration
	taskID   string
}

type publishOptionFunc func(*publishOptions)

func (f publishOptionFunc) apply(o *publishOptions) {
	f(o)
}

// WithPriority sets the task priority
func WithPriority(priority Priority) PublishOption {
	return publishOptionFunc(func(o *publishOptions) {
		o.priority = priority
	})
}

// WithDelay schedules the task for delivery after the given delay
func WithDelay(delay time.Duration) PublishOption {
	return publishOptionFunc(func(o *publishOptions) {
		o.delay = delay
	})
}

// WithTaskID overrides the generated task ID
func WithTaskID(taskID string) PublishOption {
	return publishOptionFunc(func(o *publishOptions) {
		o.taskID = taskID
	})
}

// TaskQueue is the public queue facade
type TaskQueue interface {
	// Publish enqueues a task
	Publish(ctx context.Context, task *Task, opts ...PublishOption) error

	// Start begins consuming tasks with the given handler
	Start(handler TaskHandler) error

	// Stop stops consumption and releases broker resources
	Stop() error
}

// NewTaskQueue creates a task queue backed by the configured broker
func NewTaskQueue(opts ...QueueOption) (TaskQueue, error) {
	config := &queueConfig{
		Provider:          QueueProviderKafka,
		TopicPrefix:       DefaultTopicPrefix,
		DelaySlotCount:    DefaultDelaySlotCount,
		DelaySlotDuration: DefaultDelaySlotDuration,
		AutoCommit:        DefaultAutoCommit,
		SessionTimeout:    DefaultSessionTimeout,
		MaxPollInterval:   DefaultMaxPollInterval,
		messageFormat:     MessageFormatJSON,
	}
	for _, opt := range opts {
		opt.apply(config)
	}

	if config.messageCodec == nil {
		codec, err := NewMessageCodec(config.messageFormat)
		if err != nil {
			return nil, err
		}
		config.messageCodec = codec
	}

	var (
		broker MessageQueueBroker
		delay  DelayManager
		err    error
	)
	switch config.Provider {
	case QueueProviderKafka:
		broker, delay, err = newKafkaBroker(config)
	case QueueProviderRocketMQ:
		broker, delay, err = newRocketMQBroker(config)
	default:
		return nil, fmt.Errorf("unsupported queue provider: %s", config.Provider)
	}
	if err != nil {
		return nil, err
	}

	return &taskQueue{
		broker:   broker,
		delay:    delay,
		codec:    config.messageCodec,
		recorder: config.taskRecorder,
		config:   config,
	}, nil
}

// taskQueue is the default TaskQueue implementation
type taskQueue struct {
	broker   MessageQueueBroker
	delay    DelayManager
	codec    MessageCodec
	recorder TaskRecorder
	config   *queueConfig

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func (q *taskQueue) topicFor(priority Priority) string {
	switch priority {
	case PriorityHigh:
		return q.config.TopicPrefix + PriorityHighSuffix
	case PriorityLow:
		return q.config.TopicPrefix + PriorityLowSuffix
	default:
		return q.config.TopicPrefix + PriorityNormalSuffix
	}
}

// Publish enqueues a task, optionally delayed
func (q *taskQueue) Publish(ctx context.Context, task *Task, opts ...PublishOption) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if task.Type == "" {
		return fmt.Errorf("task type cannot be empty")
	}

	options := publishOptions{priority: task.Priority}
	for _, opt := range opts {
		opt.apply(&options)
	}
	if options.taskID != "" {
		task.ID = options.taskID
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.Priority = options.priority

	value, err := q.codec.Encode(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	headers := map[string]string{
		HeaderTaskID:   task.ID,
		HeaderTaskType: task.Type,
		HeaderFormat:   string(q.codec.Format()),
	}

	topic := q.topicFor(options.priority)
	if options.delay > 0 {
		if q.delay == nil {
			return fmt.Errorf("delay manager is not configured")
		}
		err = q.delay.ScheduleMessage(ctx, task.ID, value, headers, options.delay)
	} else {
		err = q.broker.SendMessage(ctx, topic, task.ID, value, headers)
	}

	q.record(ctx, task, topic, options, err)
	return err
}

// record writes the task record, recording is best effort
func (q *taskQueue) record(ctx context.Context, task *Task, topic string, options publishOptions, sendErr error) {
	if q.recorder == nil {
		return
	}
	now := time.Now()
	rec := &TaskRecord{
		TaskID:    task.ID,
		Task:      task,
		Status:    TaskStatusQueued,
		Queue:     topic,
		Priority:  options.priority,
		CreatedAt: now,
		QueuedAt:  &now,
	}
	if options.delay > 0 {
		processAt := now.Add(options.delay)
		rec.ProcessAt = &processAt
	}
	if sendErr != nil {
		rec.Status = TaskStatusFailed
		rec.FailedAt = &now
		rec.Error = sendErr.Error()
	}
	_ = q.recorder.Record(ctx, rec)
}

// Start begins consuming from all priority topics
func (q *taskQueue) Start(handler TaskHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return fmt.Errorf("task queue already started")
	}

	ctx, cancel := context.WithCancel(context.Background())

	if q.delay != nil {
		if err := q.delay.Start(ctx); err != nil {
			cancel()
			return fmt.Errorf("start delay manager: %w", err)
		}
	}

	topics := []string{
		q.config.TopicPrefix + PriorityHighSuffix,
		q.config.TopicPrefix + PriorityNormalSuffix,
		q.config.TopicPrefix + PriorityLowSuffix,
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		_ = q.broker.Subscribe(ctx, topics, q.messageHandler(handler))
	}()

	q.cancel = cancel
	q.started = true
	return nil
}

func (q *taskQueue) messageHandler(handler TaskHandler) MessageHandler {
	return func(ctx context.Context, msg *Message) error {
		if msg == nil {
			return nil
		}
		task, err := q.codec.Decode(msg.Value)
		if err != nil {
			return fmt.Errorf("decode task: %w", err)
		}
		if q.recorder != nil {
			_ = q.recorder.UpdateStatus(ctx, task.ID, TaskStatusProcessing, nil)
		}
		if err := handler.ProcessTask(ctx, task); err != nil {
			if q.recorder != nil {
				_ = q.recorder.UpdateStatus(ctx, task.ID, TaskStatusFailed, err)
			}
			return err
		}
		if q.recorder != nil {
			_ = q.recorder.UpdateStatus(ctx, task.ID, TaskStatusCompleted, nil)
		}
		return nil
	}
}

// Stop stops consumption and closes the broker
func (q *taskQueue) Stop() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		q.cancel()
		q.wg.Wait()
		q.started = false
	}

	var errs []error
	if q.delay != nil {
		if err := q.delay.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := q.broker.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors stopping task queue: %v", errs)
	}
	return nil
}

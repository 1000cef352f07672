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
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/molthq/molt/pkg/cache"
	"github.com/molthq/molt/pkg/log"
	"github.com/molthq/molt/pkg/logstream"
	"github.com/molthq/molt/pkg/mq/kafka"
	"github.com/molthq/molt/pkg/ringbuffer"
	"github.com/molthq/molt/pkg/safe"
	"github.com/pkg/errors"
)

const (
	logRingCapacity = 4096
	logChunkSize    = 256
	logTailWindow   = 2048
	logSubBuffer    = 256
	logCacheBytes   = 64 << 20
)

// LogEntry is one aggregated execution log line. LineNumber is assigned on
// arrival, dense per migration starting at 0; the producer's own counter is
// kept as SourceLine and treated as a hint only.
type LogEntry struct {
	MigrationId string `json:"migrationId"`
	ProjectId   string `json:"projectId,omitempty"`
	Step        string `json:"step,omitempty"`
	Epoch       int64  `json:"epoch,omitempty"`
	Timestamp   int64  `json:"timestamp"`
	LineNumber  int64  `json:"lineNumber"`
	SourceLine  int32  `json:"sourceLine,omitempty"`
	Level       string `json:"level,omitempty"`
	Stream      string `json:"stream,omitempty"`
	Content     string `json:"content"`
	AgentId     string `json:"agentId,omitempty"`
	Backend     string `json:"backend,omitempty"`
}

// logStream is one migration's retained window: a live tail plus older
// fixed-size chunks flushed into the local cache. tailStart is the line
// number of tail[0] and stays chunk-aligned.
type logStream struct {
	nextLine  int64
	tailStart int64
	tail      []*LogEntry
	subs      map[uint64]chan *LogEntry
}

// LogAggregator 日志聚合器
// Lines flow kafka -> ring -> dispatcher, which numbers them, fans them out
// to live subscribers and retains a bounded history per migration. Old
// chunks are evicted by the cache, not tracked; history readers skip gaps.
type LogAggregator struct {
	ring     *ringbuffer.RingBuffer[*LogEntry]
	consumer *ringbuffer.Consumer
	wait     ringbuffer.WaitStrategy
	chunks   *cache.LocalCache

	mu      sync.Mutex
	streams map[string]*logStream
	nextSub uint64

	kafkaConsumer *kafka.Consumer

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	started  bool
}

// NewLogAggregator creates the aggregator. Call Start before pushing.
func NewLogAggregator() *LogAggregator {
	ring := ringbuffer.NewRingBuffer[*LogEntry](logRingCapacity, &ringbuffer.SleepingWaitStrategy{})
	return &LogAggregator{
		ring:     ring,
		consumer: ring.AddConsumer(),
		wait:     &ringbuffer.SleepingWaitStrategy{},
		chunks:   cache.NewLocalCache(logCacheBytes),
		streams:  make(map[string]*logStream),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the dispatcher. Idempotent.
func (a *LogAggregator) Start() {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return
	}
	a.started = true
	a.mu.Unlock()
	safe.Go(a.dispatch)
}

// Stop halts intake and waits for the dispatcher to drain out.
func (a *LogAggregator) Stop() {
	a.mu.Lock()
	started := a.started
	a.mu.Unlock()
	a.stopOnce.Do(func() { close(a.stop) })
	if a.kafkaConsumer != nil {
		_ = a.kafkaConsumer.Close()
	}
	if started {
		<-a.done
	}
}

// PushLog hands one line to the dispatcher. Single producer: only the kafka
// intake goroutine calls this. A full ring drops the line rather than stall
// the intake.
func (a *LogAggregator) PushLog(entry *LogEntry) error {
	if entry == nil || entry.MigrationId == "" {
		return errors.New("log entry needs a migration id")
	}
	if _, ok := a.ring.TryPublish(entry); !ok {
		return errors.New("log ring is full, line dropped")
	}
	return nil
}

// StartKafkaConsumer begins consuming execution log lines from kafka.
// Missing broker configuration disables intake without error; the engine
// still serves whatever arrives through PushLog.
func (a *LogAggregator) StartKafkaConsumer(cfg kafka.KafkaConfig) {
	if cfg.BootstrapServers == "" {
		return
	}
	a.Start()

	clientOptions := []kafka.ClientOption{
		kafka.WithSecurityProtocol(cfg.SecurityProtocol),
		kafka.WithSaslMechanism(cfg.Sasl.Mechanism),
		kafka.WithSaslUsername(cfg.Sasl.Username),
		kafka.WithSaslPassword(cfg.Sasl.Password),
		kafka.WithSslCaFile(cfg.Ssl.CaFile),
		kafka.WithSslCertFile(cfg.Ssl.CertFile),
		kafka.WithSslKeyFile(cfg.Ssl.KeyFile),
		kafka.WithSslPassword(cfg.Ssl.Password),
	}

	consumer, err := kafka.NewConsumer(
		cfg.BootstrapServers,
		logstream.ExecLogsTopic,
		"molt",
		kafka.WithConsumerClientOptions(clientOptions...),
		kafka.WithConsumerAutoOffsetReset("earliest"),
	)
	if err != nil {
		log.Warnw("create kafka log consumer failed", "error", err)
		return
	}
	a.kafkaConsumer = consumer

	safe.Go(func() {
		if err := consumer.Subscribe([]string{logstream.ExecLogsTopic}); err != nil {
			log.Warnw("subscribe exec logs topic failed", "error", err)
			return
		}
		for {
			select {
			case <-a.stop:
				return
			default:
			}
			msg, err := consumer.ReadMessage(200 * time.Millisecond)
			if err != nil {
				continue
			}
			var payload logstream.ExecLogMessage
			if err := sonic.Unmarshal(msg.Value, &payload); err != nil {
				log.Warnw("unmarshal exec log message failed", "error", err)
				continue
			}
			entry := &LogEntry{
				MigrationId: payload.MigrationId,
				ProjectId:   payload.ProjectId,
				Step:        payload.StepName,
				Epoch:       payload.Epoch,
				Timestamp:   payload.Timestamp,
				SourceLine:  payload.LineNumber,
				Level:       payload.Level,
				Stream:      payload.Stream,
				Content:     payload.Content,
				AgentId:     payload.AgentId,
				Backend:     payload.BackendName,
			}
			if err := a.PushLog(entry); err != nil {
				log.Warnw("push log entry failed", "migrationId", payload.MigrationId, "error", err)
			}
		}
	})
}

// Subscribe returns a channel of live lines for one migration plus a cancel
// func. A subscriber that falls behind loses lines, never blocks delivery;
// the channel closes on cancel.
func (a *LogAggregator) Subscribe(migrationId string) (<-chan *LogEntry, func()) {
	ch := make(chan *LogEntry, logSubBuffer)
	a.mu.Lock()
	st := a.streamLocked(migrationId)
	a.nextSub++
	id := a.nextSub
	st.subs[id] = ch
	a.mu.Unlock()
	return ch, func() {
		a.mu.Lock()
		if st, ok := a.streams[migrationId]; ok {
			if _, live := st.subs[id]; live {
				delete(st.subs, id)
				close(ch)
			}
		}
		a.mu.Unlock()
	}
}

// History returns up to limit lines starting at fromLine, the next line to
// ask for, and whether more lines already exist beyond it. Lines evicted
// from the retained window are skipped, not errored.
func (a *LogAggregator) History(migrationId string, fromLine int64, limit int) ([]*LogEntry, int64, bool) {
	if fromLine < 0 {
		fromLine = 0
	}
	if limit <= 0 || limit > 1024 {
		limit = logChunkSize
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.streams[migrationId]
	if !ok {
		return nil, fromLine, false
	}

	out := make([]*LogEntry, 0, limit)
	cursor := fromLine
	for len(out) < limit && cursor < st.tailStart {
		base := cursor - cursor%logChunkSize
		raw, hit := a.chunks.Get(logChunkKey(migrationId, base))
		if !hit {
			// chunk evicted; skip the gap
			cursor = base + logChunkSize
			continue
		}
		var chunk []*LogEntry
		if err := sonic.Unmarshal(raw, &chunk); err != nil {
			log.Warnw("decode log chunk failed", "migrationId", migrationId, "base", base, "error", err)
			cursor = base + logChunkSize
			continue
		}
		for _, e := range chunk {
			if e.LineNumber < cursor {
				continue
			}
			if len(out) == limit {
				break
			}
			out = append(out, e)
			cursor = e.LineNumber + 1
		}
		if cursor < base+logChunkSize && len(out) < limit {
			cursor = base + logChunkSize
		}
	}
	for idx := cursor - st.tailStart; idx >= 0 && int(idx) < len(st.tail) && len(out) < limit; idx++ {
		out = append(out, st.tail[idx])
		cursor++
	}
	return out, cursor, cursor < st.nextLine
}

// LineCount returns the number of lines seen for a migration.
func (a *LogAggregator) LineCount(migrationId string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if st, ok := a.streams[migrationId]; ok {
		return st.nextLine
	}
	return 0
}

// DropMigration forgets a migration's lines. Janitor path after hard
// deletion.
func (a *LogAggregator) DropMigration(migrationId string) {
	a.mu.Lock()
	st, ok := a.streams[migrationId]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.streams, migrationId)
	for _, ch := range st.subs {
		close(ch)
	}
	for base := int64(0); base < st.tailStart; base += logChunkSize {
		a.chunks.Del(logChunkKey(migrationId, base))
	}
	a.mu.Unlock()
}

func (a *LogAggregator) dispatch() {
	defer close(a.done)
	for {
		entry, _, ok := a.ring.TryConsume(a.consumer)
		if !ok {
			select {
			case <-a.stop:
				return
			default:
				a.wait.Wait()
				continue
			}
		}
		a.deliver(entry)
	}
}

// deliver numbers the line, appends it to the tail, flushes a chunk when
// the window slides, and fans out to subscribers. Sends are non-blocking;
// a slow subscriber drops lines instead of stalling dispatch.
func (a *LogAggregator) deliver(entry *LogEntry) {
	a.mu.Lock()
	st := a.streamLocked(entry.MigrationId)
	entry.LineNumber = st.nextLine
	st.nextLine++
	st.tail = append(st.tail, entry)
	if len(st.tail) > logTailWindow {
		a.flushChunkLocked(entry.MigrationId, st)
	}
	for _, ch := range st.subs {
		select {
		case ch <- entry:
		default:
		}
	}
	a.mu.Unlock()
}

// flushChunkLocked moves the oldest chunk of the tail into the cache.
// Caller holds a.mu; the tail start stays chunk-aligned.
func (a *LogAggregator) flushChunkLocked(migrationId string, st *logStream) {
	chunk := st.tail[:logChunkSize]
	raw, err := sonic.Marshal(chunk)
	if err != nil {
		log.Warnw("encode log chunk failed", "migrationId", migrationId, "error", err)
	} else {
		a.chunks.Set(logChunkKey(migrationId, st.tailStart), raw)
	}
	st.tail = append([]*LogEntry(nil), st.tail[logChunkSize:]...)
	st.tailStart += logChunkSize
}

func (a *LogAggregator) streamLocked(migrationId string) *logStream {
	st, ok := a.streams[migrationId]
	if !ok {
		st = &logStream{subs: make(map[uint64]chan *LogEntry)}
		a.streams[migrationId] = st
	}
	return st
}

func logChunkKey(migrationId string, base int64) []byte {
	return []byte(fmt.Sprintf("execlog:%s:%d", migrationId, base))
}

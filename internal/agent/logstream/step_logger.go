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

package logstream

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/molthq/molt/pkg/log"
	"github.com/molthq/molt/pkg/logstream"
)

// StepLogger numbers and ships the log lines of one step execution.
// Publishing is best effort; a dropped line never fails the step.
type StepLogger struct {
	pub  *KafkaLogPublisher
	base logstream.ExecLogMessage

	mu   sync.Mutex
	line int32
}

// NewStepLogger prefills the message envelope for one migration step.
func NewStepLogger(pub *KafkaLogPublisher, base logstream.ExecLogMessage) *StepLogger {
	return &StepLogger{pub: pub, base: base}
}

// StepMessage builds the shared envelope for one step execution.
func StepMessage(projectId, migrationId string, epoch int64, step, agentId, backendName string) logstream.ExecLogMessage {
	return logstream.ExecLogMessage{
		ProjectId:   projectId,
		MigrationId: migrationId,
		Epoch:       epoch,
		StepName:    step,
		Level:       "info",
		AgentId:     agentId,
		BackendName: backendName,
	}
}

// Line publishes one log line on the given stream (stdout/stderr/agent).
func (l *StepLogger) Line(stream, content string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.line++
	msg := l.base
	msg.LineNumber = l.line
	l.mu.Unlock()

	msg.Stream = stream
	msg.Content = content
	msg.Timestamp = time.Now().UnixMilli()

	if err := l.pub.Publish(context.Background(), &msg); err != nil {
		log.Debugw("exec log publish failed", "migrationId", msg.MigrationId, "step", msg.StepName, "error", err)
	}
}

// Writer returns an io.Writer that splits writes into lines and publishes
// each on the given stream. Used for process and container output pipes.
func (l *StepLogger) Writer(stream string) io.Writer {
	return &lineWriter{logger: l, stream: stream}
}

type lineWriter struct {
	logger *StepLogger
	stream string

	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		raw := w.buf.Bytes()
		i := bytes.IndexByte(raw, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimRight(raw[:i], "\r"))
		w.buf.Next(i + 1)
		w.logger.Line(w.stream, line)
	}
	return len(p), nil
}

// Flush publishes any trailing partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() == 0 {
		return
	}
	w.logger.Line(w.stream, w.buf.String())
	w.buf.Reset()
}

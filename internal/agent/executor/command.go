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

package executor

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/molthq/molt/internal/agent/logstream"
)

// runCommand spawns the configured program with the workspace as working
// directory. Endpoint is the program path; options.args carries extra
// arguments. Step identity travels in MOLT_* environment variables.
func (e *Executor) runCommand(ctx context.Context, t Target, migrationId, step, workspace string, logger *logstream.StepLogger) (map[string]any, error) {
	args := splitArgs(t.Options["args"])

	cmd := exec.CommandContext(ctx, t.Endpoint, args...)
	cmd.Dir = workspace
	cmd.Env = append(os.Environ(),
		"MOLT_MIGRATION_ID="+migrationId,
		"MOLT_STEP="+step,
		"MOLT_MODEL="+t.Model,
		"MOLT_WORKSPACE="+workspace,
	)
	if t.credential != "" {
		cmd.Env = append(cmd.Env, "MOLT_BACKEND_TOKEN="+t.credential)
	}

	stdout := logger.Writer("stdout")
	stderr := logger.Writer("stderr")
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	flushWriter(stdout)
	flushWriter(stderr)

	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrapf(ctx.Err(), "command %s", t.Endpoint)
		}
		return nil, errors.Wrapf(err, "command %s", t.Endpoint)
	}

	return map[string]any{
		"exitCode":   0,
		"durationMs": time.Since(start).Milliseconds(),
	}, nil
}

// splitArgs is whitespace splitting, no quoting. Backends that need
// shell semantics wrap themselves in a script.
func splitArgs(s string) []string {
	return strings.Fields(s)
}

type flusher interface{ Flush() }

func flushWriter(w any) {
	if f, ok := w.(flusher); ok {
		f.Flush()
	}
}

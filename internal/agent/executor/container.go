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
	"fmt"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/pkg/errors"

	"github.com/molthq/molt/internal/agent/logstream"
)

const containerWorkspace = "/workspace"

// runContainer pulls the image named by Endpoint and runs it to
// completion under containerd, with the migration workspace bind-mounted
// at /workspace. Exit code zero is success.
func (e *Executor) runContainer(ctx context.Context, t Target, migrationId, step, workspace string, logger *logstream.StepLogger) (map[string]any, error) {
	client, err := e.containerdClient()
	if err != nil {
		return nil, err
	}

	ctx = namespaces.WithNamespace(ctx, e.conf.ContainerdNamespace)
	// Cleanup must survive step timeout cancellation.
	cleanupCtx := namespaces.WithNamespace(context.Background(), e.conf.ContainerdNamespace)

	logger.Line("agent", fmt.Sprintf("pulling image %s", t.Endpoint))
	image, err := client.Pull(ctx, t.Endpoint, containerd.WithPullUnpack)
	if err != nil {
		return nil, errors.Wrapf(err, "pull image %s", t.Endpoint)
	}

	env := []string{
		"MOLT_MIGRATION_ID=" + migrationId,
		"MOLT_STEP=" + step,
		"MOLT_MODEL=" + t.Model,
		"MOLT_WORKSPACE=" + containerWorkspace,
	}
	if t.credential != "" {
		env = append(env, "MOLT_BACKEND_TOKEN="+t.credential)
	}

	specOpts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithEnv(env),
		oci.WithMounts([]specs.Mount{{
			Destination: containerWorkspace,
			Type:        "bind",
			Source:      workspace,
			Options:     []string{"rbind", "rw"},
		}}),
	}
	if args := splitArgs(t.Options["args"]); len(args) > 0 {
		specOpts = append(specOpts, oci.WithProcessArgs(args...))
	}

	id := fmt.Sprintf("molt-%s-%s-%d", migrationId, step, time.Now().Unix())
	container, err := client.NewContainer(ctx, id,
		containerd.WithNewSnapshot(id+"-snap", image),
		containerd.WithNewSpec(specOpts...),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create container")
	}
	defer func() {
		_ = container.Delete(cleanupCtx, containerd.WithSnapshotCleanup)
	}()

	stdout := logger.Writer("stdout")
	stderr := logger.Writer("stderr")
	task, err := container.NewTask(ctx, cio.NewCreator(cio.WithStreams(nil, stdout, stderr)))
	if err != nil {
		return nil, errors.Wrap(err, "create task")
	}
	defer func() {
		_, _ = task.Delete(cleanupCtx)
	}()

	exitCh, err := task.Wait(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "wait task")
	}

	start := time.Now()
	if err := task.Start(ctx); err != nil {
		return nil, errors.Wrap(err, "start task")
	}

	select {
	case <-ctx.Done():
		_ = task.Kill(cleanupCtx, syscall.SIGKILL)
		return nil, errors.Wrapf(ctx.Err(), "container %s", id)
	case status := <-exitCh:
		flushWriter(stdout)
		flushWriter(stderr)
		code, _, err := status.Result()
		if err != nil {
			return nil, errors.Wrap(err, "task result")
		}
		if code != 0 {
			return nil, errors.Errorf("container exited with code %d", code)
		}
		return map[string]any{
			"exitCode":   int64(code),
			"durationMs": time.Since(start).Milliseconds(),
		}, nil
	}
}

func (e *Executor) containerdClient() (*containerd.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.containerd != nil {
		return e.containerd, nil
	}
	client, err := containerd.New(e.conf.ContainerdAddress)
	if err != nil {
		return nil, errors.Wrapf(err, "connect containerd at %s", e.conf.ContainerdAddress)
	}
	e.containerd = client
	return client, nil
}

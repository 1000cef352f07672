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

// Package executor runs one migration step against the configured
// backend. Three kinds: http calls a backend service, container runs an
// image under containerd, command spawns a local process. The executor
// never touches the migration record; the runner owns all store writes.
package executor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/containerd/containerd"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	agentconfig "github.com/molthq/molt/internal/agent/config"
	"github.com/molthq/molt/internal/agent/logstream"
	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/internal/engine/repo"
)

type Executor struct {
	client         *resty.Client
	backendRepo    repo.IAgentBackendRepository
	credentialRepo repo.ICredentialRepository
	conf           agentconfig.ExecutorConfig
	workspaceDir   string
	stepTimeout    time.Duration

	mu         sync.Mutex
	containerd *containerd.Client // dialed on first container step
}

func New(conf *agentconfig.AgentConfig, backendRepo repo.IAgentBackendRepository, credentialRepo repo.ICredentialRepository) *Executor {
	client := resty.New()
	client.SetTimeout(conf.Runner.StepTimeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(15))

	return &Executor{
		client:         client,
		backendRepo:    backendRepo,
		credentialRepo: credentialRepo,
		conf:           conf.Executor,
		workspaceDir:   conf.Runner.WorkspaceDir,
		stepTimeout:    conf.Runner.StepTimeout,
	}
}

// Target is the fully resolved invocation: the effective agent config
// with backend-row fill-ins plus the decrypted credential, if any.
type Target struct {
	model.StepAgentConfig
	credential string
}

// RunStep executes one step against a resolved target and returns the
// backend output. The error carries the raw failure text; the runner
// decides retry and record state from it.
func (e *Executor) RunStep(ctx context.Context, t Target, migrationId, step string, logger *logstream.StepLogger) (map[string]any, error) {
	ws, err := e.workspace(migrationId)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	switch t.Kind {
	case model.AgentKindHTTP:
		return e.runHTTP(ctx, t, migrationId, step, ws, logger)
	case model.AgentKindContainer:
		return e.runContainer(ctx, t, migrationId, step, ws, logger)
	case model.AgentKindCommand:
		return e.runCommand(ctx, t, migrationId, step, ws, logger)
	default:
		return nil, errors.Errorf("unknown agent kind %q", t.Kind)
	}
}

// Resolve merges the per-step override over the migration default, then
// fills missing fields from the registered backend row. A step override
// is authoritative when it names anything; empty overrides fall back.
// Resolution failures are configuration problems; retrying the step
// does not help.
func (e *Executor) Resolve(ctx context.Context, rec *model.MigrationAction, step string) (Target, error) {
	cfg := rec.DefaultAgent.Data()
	if overrides := rec.StepAgents.Data(); overrides != nil {
		if o, ok := overrides[step]; ok && (o.Name != "" || o.Endpoint != "" || o.Kind != "") {
			cfg = o
		}
	}

	if cfg.Name != "" {
		row, err := e.backendRepo.GetByName(ctx, cfg.Name)
		switch {
		case err == nil:
			if cfg.Kind == "" {
				cfg.Kind = row.Kind
			}
			if cfg.Endpoint == "" {
				cfg.Endpoint = row.Endpoint
			}
			if cfg.Model == "" {
				cfg.Model = row.DefaultModel
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			return Target{}, errors.Errorf("backend %q is not registered", cfg.Name)
		default:
			return Target{}, errors.Wrapf(err, "load backend %q", cfg.Name)
		}
	}
	if cfg.Kind == "" {
		cfg.Kind = model.AgentKindHTTP
	}
	if cfg.Endpoint == "" {
		return Target{}, errors.Errorf("no endpoint configured for step %q", step)
	}

	t := Target{StepAgentConfig: cfg}
	if cfg.Name != "" {
		cred, err := e.lookupCredential(ctx, cfg.Name)
		if err != nil {
			return Target{}, err
		}
		t.credential = cred
	}
	return t, nil
}

// lookupCredential returns the decrypted value of the first credential
// scoped to the backend, or "" when none is stored.
func (e *Executor) lookupCredential(ctx context.Context, backendName string) (string, error) {
	rows, err := e.credentialRepo.ListByScope(ctx, backendName)
	if err != nil {
		return "", errors.Wrapf(err, "list credentials for %q", backendName)
	}
	if len(rows) == 0 {
		return "", nil
	}
	value, err := e.credentialRepo.GetValue(ctx, rows[0].CredentialId)
	if err != nil {
		return "", errors.Wrapf(err, "decrypt credential %s", rows[0].CredentialId)
	}
	return value, nil
}

// workspace returns the per-migration working directory, creating it on
// first use. Steps of one migration share it across the whole run.
func (e *Executor) workspace(migrationId string) (string, error) {
	dir := filepath.Join(e.workspaceDir, migrationId)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create workspace %s", dir)
	}
	return dir, nil
}

// OutputDir is where steps drop generated documents; the runner uploads
// whatever lands here after document-generation.
func (e *Executor) OutputDir(migrationId string) string {
	return filepath.Join(e.workspaceDir, migrationId, "out")
}

// Close releases the containerd connection, if one was dialed.
func (e *Executor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.containerd != nil {
		_ = e.containerd.Close()
		e.containerd = nil
	}
}

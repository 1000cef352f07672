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
	"strings"
	"testing"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/molthq/molt/internal/engine/catalog"
	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/internal/engine/repo"
)

type stubBackends struct {
	repo.IAgentBackendRepository
	rows map[string]*model.AgentBackend
}

func (s *stubBackends) GetByName(_ context.Context, name string) (*model.AgentBackend, error) {
	row, ok := s.rows[name]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

type stubCredentials struct {
	repo.ICredentialRepository
	byScope map[string]string
}

func (s *stubCredentials) ListByScope(_ context.Context, scope string) ([]*model.Credential, error) {
	if _, ok := s.byScope[scope]; !ok {
		return nil, nil
	}
	return []*model.Credential{{CredentialId: "c-" + scope, Scope: scope}}, nil
}

func (s *stubCredentials) GetValue(_ context.Context, credentialId string) (string, error) {
	scope := strings.TrimPrefix(credentialId, "c-")
	return s.byScope[scope], nil
}

func newResolveExecutor(backends map[string]*model.AgentBackend, creds map[string]string) *Executor {
	return &Executor{
		backendRepo:    &stubBackends{rows: backends},
		credentialRepo: &stubCredentials{byScope: creds},
	}
}

func record(def model.StepAgentConfig, overrides map[string]model.StepAgentConfig) *model.MigrationAction {
	return &model.MigrationAction{
		MigrationId:  "m1",
		DefaultAgent: datatypes.NewJSONType(def),
		StepAgents:   datatypes.NewJSONType(overrides),
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("default agent, kind falls back to http", func(t *testing.T) {
		e := newResolveExecutor(nil, nil)
		rec := record(model.StepAgentConfig{Endpoint: "http://conv:8080/run"}, nil)
		target, err := e.Resolve(ctx, rec, catalog.StepClone)
		if err != nil {
			t.Fatal(err)
		}
		if target.Kind != model.AgentKindHTTP {
			t.Errorf("kind = %s, want %s", target.Kind, model.AgentKindHTTP)
		}
		if target.Endpoint != "http://conv:8080/run" {
			t.Errorf("endpoint = %s", target.Endpoint)
		}
	})

	t.Run("step override is authoritative", func(t *testing.T) {
		e := newResolveExecutor(nil, nil)
		rec := record(
			model.StepAgentConfig{Endpoint: "http://conv:8080/run"},
			map[string]model.StepAgentConfig{
				catalog.StepDocumentGeneration: {Kind: model.AgentKindCommand, Endpoint: "render-docs"},
			},
		)
		target, err := e.Resolve(ctx, rec, catalog.StepDocumentGeneration)
		if err != nil {
			t.Fatal(err)
		}
		if target.Kind != model.AgentKindCommand || target.Endpoint != "render-docs" {
			t.Errorf("target = %+v, want the step override", target.StepAgentConfig)
		}
	})

	t.Run("blank override falls back to default", func(t *testing.T) {
		e := newResolveExecutor(nil, nil)
		rec := record(
			model.StepAgentConfig{Endpoint: "http://conv:8080/run"},
			map[string]model.StepAgentConfig{catalog.StepClone: {}},
		)
		target, err := e.Resolve(ctx, rec, catalog.StepClone)
		if err != nil {
			t.Fatal(err)
		}
		if target.Endpoint != "http://conv:8080/run" {
			t.Errorf("endpoint = %s, want the migration default", target.Endpoint)
		}
	})

	t.Run("backend row fills blanks and carries the credential", func(t *testing.T) {
		e := newResolveExecutor(
			map[string]*model.AgentBackend{
				"docgen": {Name: "docgen", Kind: model.AgentKindHTTP, Endpoint: "http://docgen:9000/run", DefaultModel: "standard-v1"},
			},
			map[string]string{"docgen": "tok-123"},
		)
		rec := record(model.StepAgentConfig{Name: "docgen"}, nil)
		target, err := e.Resolve(ctx, rec, catalog.StepTocGeneration)
		if err != nil {
			t.Fatal(err)
		}
		if target.Endpoint != "http://docgen:9000/run" || target.Kind != model.AgentKindHTTP || target.Model != "standard-v1" {
			t.Errorf("target = %+v, want backend fill-ins", target.StepAgentConfig)
		}
		if target.credential != "tok-123" {
			t.Errorf("credential = %q", target.credential)
		}
	})

	t.Run("explicit fields beat backend row", func(t *testing.T) {
		e := newResolveExecutor(
			map[string]*model.AgentBackend{
				"docgen": {Name: "docgen", Kind: model.AgentKindHTTP, Endpoint: "http://docgen:9000/run", DefaultModel: "standard-v1"},
			},
			nil,
		)
		rec := record(model.StepAgentConfig{Name: "docgen", Model: "large-v2"}, nil)
		target, err := e.Resolve(ctx, rec, catalog.StepTocGeneration)
		if err != nil {
			t.Fatal(err)
		}
		if target.Model != "large-v2" {
			t.Errorf("model = %s, want the explicit value", target.Model)
		}
	})

	t.Run("unregistered backend", func(t *testing.T) {
		e := newResolveExecutor(nil, nil)
		rec := record(model.StepAgentConfig{Name: "ghost"}, nil)
		if _, err := e.Resolve(ctx, rec, catalog.StepClone); err == nil {
			t.Error("unregistered backend resolved")
		} else if !strings.Contains(err.Error(), "not registered") {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("no endpoint anywhere", func(t *testing.T) {
		e := newResolveExecutor(nil, nil)
		rec := record(model.StepAgentConfig{}, nil)
		if _, err := e.Resolve(ctx, rec, catalog.StepClone); err == nil {
			t.Error("resolved without an endpoint")
		}
	})

	t.Run("backend without stored credential", func(t *testing.T) {
		e := newResolveExecutor(
			map[string]*model.AgentBackend{
				"docgen": {Name: "docgen", Endpoint: "http://docgen:9000/run"},
			},
			nil,
		)
		rec := record(model.StepAgentConfig{Name: "docgen"}, nil)
		target, err := e.Resolve(ctx, rec, catalog.StepClone)
		if err != nil {
			t.Fatal(err)
		}
		if target.credential != "" {
			t.Errorf("credential = %q, want empty", target.credential)
		}
	})
}

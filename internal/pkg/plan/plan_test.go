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

package plan

import (
	"strings"
	"testing"

	"github.com/molthq/molt/internal/engine/model"
)

const yamlPlan = `
description: rewrite the billing mainframe
defaultAgent:
  kind: http
  endpoint: http://agent-pool:9090
stepAgents:
  clone:
    kind: command
    options:
      command: git-clone-wrapper
ignoreSteps:
  - business-analysis
startFrom: inventory
chat:
  - role: user
    content: keep the COBOL copybooks verbatim
  - content: second note without role
`

func TestParseYAML(t *testing.T) {
	doc, err := Parse([]byte(yamlPlan))
	if err != nil {
		t.Fatalf("parse yaml plan: %v", err)
	}
	if doc.Description != "rewrite the billing mainframe" {
		t.Errorf("description = %q", doc.Description)
	}
	if doc.DefaultAgent == nil || doc.DefaultAgent.Kind != "http" || doc.DefaultAgent.Endpoint != "http://agent-pool:9090" {
		t.Errorf("defaultAgent = %+v", doc.DefaultAgent)
	}
	agent, ok := doc.StepAgents["clone"]
	if !ok || agent.Kind != "command" || agent.Options["command"] != "git-clone-wrapper" {
		t.Errorf("stepAgents[clone] = %+v", doc.StepAgents)
	}
	if len(doc.IgnoreSteps) != 1 || doc.IgnoreSteps[0] != "business-analysis" {
		t.Errorf("ignoreSteps = %v", doc.IgnoreSteps)
	}
	if doc.StartFrom != "inventory" {
		t.Errorf("startFrom = %q", doc.StartFrom)
	}
	if len(doc.Chat) != 2 || doc.Chat[1].Role != "" {
		t.Errorf("chat = %+v", doc.Chat)
	}
	if err := doc.Validate(); err != nil {
		t.Errorf("validate parsed plan: %v", err)
	}
}

func TestParseJSON(t *testing.T) {
	raw := `{"description":"lift and shift","ignoreSteps":["toc-enrichment"],"startFrom":"clone"}`
	doc, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse json plan: %v", err)
	}
	if doc.Description != "lift and shift" || doc.StartFrom != "clone" {
		t.Errorf("doc = %+v", doc)
	}
	if err := doc.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("")); err == nil {
		t.Error("empty plan accepted")
	}
	if _, err := Parse([]byte("   \n\t")); err == nil {
		t.Error("blank plan accepted")
	}
	if _, err := Parse([]byte("{not json")); err == nil {
		t.Error("broken json accepted")
	}
	if _, err := Parse([]byte(":\n  - [unbalanced")); err == nil {
		t.Error("broken yaml accepted")
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want string
	}{
		{
			name: "unknown step agent key",
			doc:  Document{StepAgents: map[string]model.StepAgentConfig{"compile": {Kind: "http"}}},
			want: "stepAgents",
		},
		{
			name: "sentinel as start from",
			doc:  Document{StartFrom: "completed"},
			want: "startFrom",
		},
		{
			name: "unknown ignore step",
			doc:  Document{IgnoreSteps: []string{"no-such-step"}},
			want: "ignoreSteps",
		},
		{
			name: "duplicate ignore step",
			doc:  Document{IgnoreSteps: []string{"clone", "clone"}},
			want: "ignoreSteps",
		},
		{
			name: "unknown agent kind",
			doc:  Document{DefaultAgent: &model.StepAgentConfig{Kind: "carrier-pigeon"}},
			want: "defaultAgent",
		},
		{
			name: "unknown chat role",
			doc:  Document{Chat: []ChatSeed{{Role: "moderator", Content: "hi"}}},
			want: "chat[0]",
		},
		{
			name: "empty chat content",
			doc:  Document{Chat: []ChatSeed{{Content: "  "}}},
			want: "chat[0]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.doc.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateEmptyDocumentOK(t *testing.T) {
	doc := &Document{}
	if err := doc.Validate(); err != nil {
		t.Fatalf("empty document should validate: %v", err)
	}
}

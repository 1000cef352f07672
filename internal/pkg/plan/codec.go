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
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"go.yaml.in/yaml/v3"
)

// Parse decodes a plan document from YAML or JSON. YAML input is
// normalized through a generic map so both formats land in the same
// json-tagged struct.
func Parse(content []byte) (*Document, error) {
	raw, err := normalizeToJSON(content)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := sonic.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}
	return &doc, nil
}

func normalizeToJSON(content []byte) ([]byte, error) {
	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return nil, fmt.Errorf("plan is empty")
	}
	if strings.HasPrefix(trimmed, "{") {
		return []byte(trimmed), nil
	}
	var obj map[string]any
	if err := yaml.Unmarshal([]byte(trimmed), &obj); err != nil {
		return nil, fmt.Errorf("invalid plan yaml: %w", err)
	}
	raw, err := sonic.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("normalize plan: %w", err)
	}
	return raw, nil
}

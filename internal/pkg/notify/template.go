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

package notify

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches {{var}} placeholders. Variable names follow
// Go identifier rules; surrounding whitespace inside the braces is allowed.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Render replaces every {{var}} placeholder in tmpl with the matching
// value from data. Unknown variables render as empty strings so a stale
// template never blocks delivery.
func Render(tmpl string, data map[string]interface{}) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		v, ok := data[name]
		if !ok || v == nil {
			return ""
		}
		return fmt.Sprintf("%v", v)
	})
}

// ExtractVariables returns the distinct placeholder names in tmpl in
// order of first appearance.
func ExtractVariables(tmpl string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(tmpl, -1)
	seen := make(map[string]struct{}, len(matches))
	vars := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		vars = append(vars, m[1])
	}
	return vars
}

// ValidateTemplate rejects templates with malformed placeholders. A brace
// pair left over after stripping all well-formed placeholders means a typo
// like {{foo} or {{1bad}} that would otherwise leak into the output.
func ValidateTemplate(tmpl string) error {
	stripped := placeholderPattern.ReplaceAllString(tmpl, "")
	if i := strings.Index(stripped, "{{"); i >= 0 {
		return fmt.Errorf("malformed placeholder near position %d", i)
	}
	if i := strings.Index(stripped, "}}"); i >= 0 {
		return fmt.Errorf("unmatched closing braces near position %d", i)
	}
	return nil
}

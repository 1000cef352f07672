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

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Env is the expression environment a rule condition evaluates against.
// One Env per record transition.
type Env struct {
	Action      string `expr:"action"`
	CurrentStep string `expr:"currentStep"`
	Error       string `expr:"error"`
	ProjectId   string `expr:"projectId"`
	Progress    int    `expr:"progress"`
}

// Data returns the environment as a map for template rendering.
func (e Env) Data() map[string]interface{} {
	return map[string]interface{}{
		"action":      e.Action,
		"currentStep": e.CurrentStep,
		"error":       e.Error,
		"projectId":   e.ProjectId,
		"progress":    e.Progress,
	}
}

// CompileCondition compiles a rule condition into an executable program.
// Conditions must evaluate to bool; type errors surface at compile time so
// a bad rule is rejected when it is written, not when it first fires.
func CompileCondition(src string) (*vm.Program, error) {
	program, err := expr.Compile(src, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile condition %q: %w", src, err)
	}
	return program, nil
}

// EvalCondition runs a compiled condition against env.
func EvalCondition(program *vm.Program, env Env) (bool, error) {
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	matched, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition returned %T, want bool", out)
	}
	return matched, nil
}

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

// Package catalog owns the ordered migration step list, the sentinel
// states a record's currentStep may take outside it, and the progress
// arithmetic derived from step position.
package catalog

import (
	"github.com/pkg/errors"
)

// Ordered migration steps. Execution follows this order; position in it
// drives the progress percentage.
const (
	StepClone              = "clone"
	StepClearState         = "clear-state"
	StepTechStackAnalysis  = "tech-stack-analysis"
	StepInventory          = "inventory"
	StepBusinessAnalysis   = "business-analysis"
	StepFunctionalAnalysis = "functional-analysis"
	StepIndexUpload        = "index-upload"
	StepModuleDetection    = "module-detection"
	StepTocGeneration      = "toc-generation"
	StepTocEnrichment      = "toc-enrichment"
	StepTocSanitization    = "toc-sanitization"
	StepDocumentGeneration = "document-generation"
)

// AnalysisStep is the step whose latest output feeds the analysis slice
// of the aggregated live view.
const AnalysisStep = StepTechStackAnalysis

// Sentinel currentStep values. Not catalog members; they never earn
// positional progress.
const (
	SentinelConfiguration = "configuration"
	SentinelQueue         = "queue"
	SentinelCompleted     = "completed"
	SentinelError         = "error"
)

var steps = []string{
	StepClone,
	StepClearState,
	StepTechStackAnalysis,
	StepInventory,
	StepBusinessAnalysis,
	StepFunctionalAnalysis,
	StepIndexUpload,
	StepModuleDetection,
	StepTocGeneration,
	StepTocEnrichment,
	StepTocSanitization,
	StepDocumentGeneration,
}

var stepIndex = func() map[string]int {
	m := make(map[string]int, len(steps))
	for i, s := range steps {
		m[s] = i
	}
	return m
}()

var (
	ErrUnknownStep   = errors.New("unknown step")
	ErrSentinelStep  = errors.New("sentinel is not an executable step")
	ErrDuplicateStep = errors.New("duplicate step")
)

// Steps returns a copy of the ordered step list.
func Steps() []string {
	out := make([]string, len(steps))
	copy(out, steps)
	return out
}

// Len returns the catalog length.
func Len() int {
	return len(steps)
}

// IsStep reports whether s is a catalog member.
func IsStep(s string) bool {
	_, ok := stepIndex[s]
	return ok
}

// IsSentinel reports whether s is one of the sentinel states.
func IsSentinel(s string) bool {
	switch s {
	case SentinelConfiguration, SentinelQueue, SentinelCompleted, SentinelError:
		return true
	}
	return false
}

// IndexOf returns the position of s in the catalog, or -1.
func IndexOf(s string) int {
	if i, ok := stepIndex[s]; ok {
		return i
	}
	return -1
}

// ValidateStep rejects anything that is not an executable catalog step.
// Sentinels get their own error so the API can say why.
func ValidateStep(s string) error {
	if IsSentinel(s) {
		return errors.Wrap(ErrSentinelStep, s)
	}
	if !IsStep(s) {
		return errors.Wrap(ErrUnknownStep, s)
	}
	return nil
}

// ValidateIgnoreSteps rejects unknown members and duplicates.
func ValidateIgnoreSteps(ignore []string) error {
	seen := make(map[string]struct{}, len(ignore))
	for _, s := range ignore {
		if err := ValidateStep(s); err != nil {
			return err
		}
		if _, dup := seen[s]; dup {
			return errors.Wrap(ErrDuplicateStep, s)
		}
		seen[s] = struct{}{}
	}
	return nil
}

// Progress maps currentStep to a 0-100 percentage against the package
// catalog. Empty string stands for a record that has not started.
func Progress(currentStep string) int {
	return ProgressIn(steps, currentStep)
}

// ProgressIn computes the position-based percentage for an arbitrary
// ordered step list:
//
//	completed            -> 100
//	not a member         -> 0  (sentinels, empty, garbage)
//	member at index i    -> floor(100 * i / len)
//
// An in-progress step earns nothing for itself; the percentage counts
// the steps strictly before it. Kept index-based for display
// compatibility with existing dashboards.
func ProgressIn(ordered []string, currentStep string) int {
	if currentStep == SentinelCompleted {
		return 100
	}
	for i, s := range ordered {
		if s == currentStep {
			return 100 * i / len(ordered)
		}
	}
	return 0
}

// StepsFrom returns the execution slice beginning at startFrom, or the
// whole catalog when startFrom is empty. Unknown startFrom yields nil;
// callers validate first.
func StepsFrom(startFrom string) []string {
	if startFrom == "" {
		return Steps()
	}
	i := IndexOf(startFrom)
	if i < 0 {
		return nil
	}
	out := make([]string, len(steps)-i)
	copy(out, steps[i:])
	return out
}

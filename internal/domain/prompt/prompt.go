// Package prompt provides the domain model for prompt optimization:
// typed components, reasoning tasks, target behaviors, and results.
package prompt

import (
	"errors"
	"strings"
	"time"
)

// ComponentType identifies the structural role of a prompt component.
type ComponentType string

const (
	ComponentPersona      ComponentType = "persona"
	ComponentInstruction  ComponentType = "instruction"
	ComponentContext      ComponentType = "context"
	ComponentExample      ComponentType = "example"
	ComponentConstraint   ComponentType = "constraint"
	ComponentOutputFormat ComponentType = "output_format"
)

// ComponentTypes lists all component types in canonical enumeration order.
// The order is load-bearing: the fallback optimizer uses it as the
// deterministic tie-break key.
var ComponentTypes = []ComponentType{
	ComponentPersona,
	ComponentInstruction,
	ComponentContext,
	ComponentExample,
	ComponentConstraint,
	ComponentOutputFormat,
}

// TaskType identifies a reasoning task the prompt should support.
type TaskType string

const (
	TaskDeduction      TaskType = "deduction"
	TaskInduction      TaskType = "induction"
	TaskAbduction      TaskType = "abduction"
	TaskComparison     TaskType = "comparison"
	TaskCounterfactual TaskType = "counterfactual"
)

// TaskTypes lists all task types in canonical order.
var TaskTypes = []TaskType{
	TaskDeduction,
	TaskInduction,
	TaskAbduction,
	TaskComparison,
	TaskCounterfactual,
}

// BehaviorType identifies a desired quality of the model's output.
type BehaviorType string

const (
	BehaviorPrecision     BehaviorType = "precision"
	BehaviorCreativity    BehaviorType = "creativity"
	BehaviorStepByStep    BehaviorType = "step_by_step"
	BehaviorConciseness   BehaviorType = "conciseness"
	BehaviorErrorChecking BehaviorType = "error_checking"
)

// BehaviorTypes lists all behavior types in canonical order.
var BehaviorTypes = []BehaviorType{
	BehaviorPrecision,
	BehaviorCreativity,
	BehaviorStepByStep,
	BehaviorConciseness,
	BehaviorErrorChecking,
}

// DomainNeutral is the domain used when a request does not specify one.
const DomainNeutral = "general"

// ValidComponentType reports whether s names a known component type.
func ValidComponentType(s string) bool {
	for _, c := range ComponentTypes {
		if string(c) == s {
			return true
		}
	}
	return false
}

// ValidTaskType reports whether s names a known task type.
func ValidTaskType(s string) bool {
	for _, t := range TaskTypes {
		if string(t) == s {
			return true
		}
	}
	return false
}

// ValidBehaviorType reports whether s names a known behavior type.
func ValidBehaviorType(s string) bool {
	for _, b := range BehaviorTypes {
		if string(b) == s {
			return true
		}
	}
	return false
}

// OptimizationRequest is the input for a prompt optimization.
type OptimizationRequest struct {
	UserPrompt      string         `json:"user_prompt"`
	TargetTasks     []TaskType     `json:"target_tasks"`
	TargetBehaviors []BehaviorType `json:"target_behaviors"`
	TargetModel     string         `json:"target_model"`
	Domain          string         `json:"domain,omitempty"`
}

// Validate checks required fields and enum membership.
func (r *OptimizationRequest) Validate() error {
	if strings.TrimSpace(r.UserPrompt) == "" {
		return errors.New("user_prompt is required")
	}
	for _, t := range r.TargetTasks {
		if !ValidTaskType(string(t)) {
			return errors.New("unknown task type: " + string(t))
		}
	}
	for _, b := range r.TargetBehaviors {
		if !ValidBehaviorType(string(b)) {
			return errors.New("unknown behavior type: " + string(b))
		}
	}
	return nil
}

// Normalize deduplicates task and behavior sets, preserving first-seen order,
// and fills in defaults for model and domain. Identical requests normalize to
// identical values, which the result cache fingerprint relies on.
func (r *OptimizationRequest) Normalize() {
	r.TargetTasks = dedupTasks(r.TargetTasks)
	r.TargetBehaviors = dedupBehaviors(r.TargetBehaviors)
	if r.TargetModel == "" {
		r.TargetModel = "gpt-4"
	}
	if r.Domain == "" {
		r.Domain = DomainNeutral
	}
}

func dedupTasks(in []TaskType) []TaskType {
	seen := make(map[TaskType]bool, len(in))
	var out []TaskType
	for _, t := range in {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func dedupBehaviors(in []BehaviorType) []BehaviorType {
	seen := make(map[BehaviorType]bool, len(in))
	var out []BehaviorType
	for _, b := range in {
		if seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}

// Component is a single selected prompt component in a result.
type Component struct {
	Type     ComponentType `json:"type"`
	Position int           `json:"position"` // 0-based, unique within a result
	Score    float64       `json:"score"`    // this component's contribution
	Content  string        `json:"content"`  // filled by content generation
}

// Result is an optimized prompt: ordered components, assembled text,
// the rationale for the structure, and the predicted effectiveness score.
type Result struct {
	ID          string      `json:"id"`
	Components  []Component `json:"components"`
	FullPrompt  string      `json:"full_prompt"`
	Rationale   string      `json:"rationale"`
	Score       float64     `json:"effectiveness_score"`
	TargetModel string      `json:"target_model"`
	Domain      string      `json:"domain"`
	UserPrompt  string      `json:"user_prompt"`
	FromCache   bool        `json:"from_cache"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Analysis is the outcome of free-text prompt analysis: which reasoning
// tasks and behaviors the text calls for, and an optional domain hint.
type Analysis struct {
	DetectedTasks     []TaskType     `json:"detected_tasks"`
	DetectedBehaviors []BehaviorType `json:"detected_behaviors"`
	DomainHint        string         `json:"domain_hint,omitempty"`
}

// Package efficacy provides the domain model for learned component
// effectiveness: typed context keys, records, and store snapshots.
package efficacy

import (
	"fmt"
	"time"

	"promptforge/internal/domain/prompt"
)

// Kind identifies which context an effectiveness value is keyed by.
type Kind string

const (
	KindComponentTask      Kind = "component_task"
	KindComponentBehavior  Kind = "component_behavior"
	KindPairOrder          Kind = "pair_order"
	KindModelComponentTask Kind = "model_component_task"
	KindDomainComponent    Kind = "domain_component"
)

// Key identifies a single effectiveness context. At most one current value
// exists per key; unused fields are zero. Keys are comparable and usable as
// map keys.
type Key struct {
	Kind      Kind
	Component prompt.ComponentType
	Second    prompt.ComponentType // pair_order: the component that follows
	Task      prompt.TaskType
	Behavior  prompt.BehaviorType
	Model     string
	Domain    string
}

// ComponentTask keys the effectiveness of a component for a reasoning task.
func ComponentTask(c prompt.ComponentType, t prompt.TaskType) Key {
	return Key{Kind: KindComponentTask, Component: c, Task: t}
}

// ComponentBehavior keys the effectiveness of a component for a behavior.
func ComponentBehavior(c prompt.ComponentType, b prompt.BehaviorType) Key {
	return Key{Kind: KindComponentBehavior, Component: c, Behavior: b}
}

// PairOrder keys the ordering bonus for placing first directly before second.
func PairOrder(first, second prompt.ComponentType) Key {
	return Key{Kind: KindPairOrder, Component: first, Second: second}
}

// ModelComponentTask keys a model-specific component×task override.
func ModelComponentTask(model string, c prompt.ComponentType, t prompt.TaskType) Key {
	return Key{Kind: KindModelComponentTask, Model: model, Component: c, Task: t}
}

// DomainComponent keys a domain-specific component override.
func DomainComponent(domain string, c prompt.ComponentType) Key {
	return Key{Kind: KindDomainComponent, Domain: domain, Component: c}
}

// String returns the canonical textual form of the key, used for persistence
// and logging. Two keys are equal iff their strings are equal.
func (k Key) String() string {
	switch k.Kind {
	case KindComponentTask:
		return fmt.Sprintf("%s/%s/%s", k.Kind, k.Component, k.Task)
	case KindComponentBehavior:
		return fmt.Sprintf("%s/%s/%s", k.Kind, k.Component, k.Behavior)
	case KindPairOrder:
		return fmt.Sprintf("%s/%s/%s", k.Kind, k.Component, k.Second)
	case KindModelComponentTask:
		return fmt.Sprintf("%s/%s/%s/%s", k.Kind, k.Model, k.Component, k.Task)
	case KindDomainComponent:
		return fmt.Sprintf("%s/%s/%s", k.Kind, k.Domain, k.Component)
	}
	return string(k.Kind)
}

// Record is the current effectiveness estimate for one context key.
type Record struct {
	Key       Key       `json:"key"`
	Value     float64   `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot is an immutable view of store values relevant to one request,
// taken at a single store version.
type Snapshot struct {
	Version uint64
	Values  map[Key]float64
}

// Value returns the snapshot value for k, or def when absent.
func (s Snapshot) Value(k Key, def float64) float64 {
	if v, ok := s.Values[k]; ok {
		return v
	}
	return def
}

// MinValue and MaxValue bound the effectiveness range. Feedback outside the
// range is rejected as a caller error.
const (
	MinValue = 0.0
	MaxValue = 1.0
)

// DefaultPrior is the effectiveness assumed for context keys that have never
// received feedback.
const DefaultPrior = 0.5

// Feedback is one observed effectiveness event for a component in a task
// and/or behavior context.
type Feedback struct {
	Component prompt.ComponentType `json:"component_type"`
	Task      prompt.TaskType      `json:"task_type,omitempty"`
	Behavior  prompt.BehaviorType  `json:"behavior_type,omitempty"`
	Observed  float64              `json:"effectiveness"`
}

// Keys expands the feedback into the context keys it updates.
func (f Feedback) Keys() []Key {
	var keys []Key
	if f.Task != "" {
		keys = append(keys, ComponentTask(f.Component, f.Task))
	}
	if f.Behavior != "" {
		keys = append(keys, ComponentBehavior(f.Component, f.Behavior))
	}
	return keys
}

// Priors returns the built-in effectiveness priors. These seed a fresh store
// and mirror the defaults the system shipped with before any learning.
func Priors() map[Key]float64 {
	return map[Key]float64{
		ComponentTask(prompt.ComponentInstruction, prompt.TaskDeduction):  0.8,
		ComponentTask(prompt.ComponentExample, prompt.TaskDeduction):      0.9,
		ComponentTask(prompt.ComponentContext, prompt.TaskAbduction):      0.75,
		ComponentTask(prompt.ComponentContext, prompt.TaskCounterfactual): 0.7,
		ComponentTask(prompt.ComponentExample, prompt.TaskInduction):      0.85,
		ComponentTask(prompt.ComponentConstraint, prompt.TaskComparison):  0.65,

		ComponentBehavior(prompt.ComponentConstraint, prompt.BehaviorPrecision):      0.7,
		ComponentBehavior(prompt.ComponentOutputFormat, prompt.BehaviorStepByStep):   0.8,
		ComponentBehavior(prompt.ComponentInstruction, prompt.BehaviorPrecision):     0.7,
		ComponentBehavior(prompt.ComponentExample, prompt.BehaviorStepByStep):        0.85,
		ComponentBehavior(prompt.ComponentOutputFormat, prompt.BehaviorConciseness):  0.75,
		ComponentBehavior(prompt.ComponentConstraint, prompt.BehaviorErrorChecking):  0.7,
		ComponentBehavior(prompt.ComponentPersona, prompt.BehaviorCreativity):        0.75,
		ComponentBehavior(prompt.ComponentInstruction, prompt.BehaviorConciseness):   0.6,
		ComponentBehavior(prompt.ComponentContext, prompt.BehaviorPrecision):         0.65,
		ComponentBehavior(prompt.ComponentExample, prompt.BehaviorCreativity):        0.6,
		ComponentBehavior(prompt.ComponentConstraint, prompt.BehaviorConciseness):    0.6,
		ComponentBehavior(prompt.ComponentOutputFormat, prompt.BehaviorErrorChecking): 0.6,

		PairOrder(prompt.ComponentPersona, prompt.ComponentInstruction):     0.9,
		PairOrder(prompt.ComponentInstruction, prompt.ComponentContext):     0.9,
		PairOrder(prompt.ComponentContext, prompt.ComponentExample):         0.8,
		PairOrder(prompt.ComponentExample, prompt.ComponentConstraint):      0.7,
		PairOrder(prompt.ComponentConstraint, prompt.ComponentOutputFormat): 0.8,
		PairOrder(prompt.ComponentInstruction, prompt.ComponentExample):     0.7,

		ModelComponentTask("gpt-4", prompt.ComponentInstruction, prompt.TaskDeduction): 0.9,
		ModelComponentTask("claude", prompt.ComponentExample, prompt.TaskInduction):    0.85,
		ModelComponentTask("llama", prompt.ComponentConstraint, prompt.TaskDeduction):  0.75,

		DomainComponent("legal", prompt.ComponentContext):      0.95,
		DomainComponent("medical", prompt.ComponentConstraint): 0.9,
		DomainComponent("code", prompt.ComponentExample):       0.85,
		DomainComponent("education", prompt.ComponentExample):  0.8,
	}
}

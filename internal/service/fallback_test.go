package service

import (
	"reflect"
	"testing"

	"promptforge/internal/domain/prompt"
)

func educationFacts(t *testing.T) Facts {
	t.Helper()
	store := NewEfficacyStore(0.3, nil)
	gen := NewFactGenerator()

	req := normalizedRequest(
		[]prompt.TaskType{prompt.TaskDeduction},
		[]prompt.BehaviorType{prompt.BehaviorStepByStep, prompt.BehaviorConciseness},
		"gpt-4", "education",
	)
	snap := store.Snapshot(req.TargetTasks, req.TargetBehaviors, req.TargetModel, req.Domain)
	return gen.Generate(req, snap)
}

func TestFallbackProducesValidSequence(t *testing.T) {
	rules := NewRuleSet(5, 2)
	fb := NewFallback(rules)

	sol := fb.Optimize(educationFacts(t))

	if err := rules.Validate(sol.Components); err != nil {
		t.Fatalf("fallback produced invalid sequence: %v", err)
	}
	if len(sol.Components) == 0 || len(sol.Components) > 5 {
		t.Fatalf("unexpected component count %d", len(sol.Components))
	}
}

func TestFallbackAlwaysIncludesInstruction(t *testing.T) {
	rules := NewRuleSet(5, 2)
	fb := NewFallback(rules)

	// Even with facts that give instruction the lowest relevance.
	facts := Facts{
		TaskScore: map[CompTask]float64{
			{Component: prompt.ComponentExample, Task: prompt.TaskDeduction}:    0.9,
			{Component: prompt.ComponentContext, Task: prompt.TaskDeduction}:    0.9,
			{Component: prompt.ComponentPersona, Task: prompt.TaskDeduction}:    0.9,
			{Component: prompt.ComponentConstraint, Task: prompt.TaskDeduction}: 0.9,
		},
		BehaviorScore: map[CompBehavior]float64{},
		DomainScore:   map[prompt.ComponentType]float64{},
		PairBonus:     map[Pair]float64{},
	}

	sol := fb.Optimize(facts)
	if !containsType(componentTypes(sol.Components), prompt.ComponentInstruction) {
		t.Fatal("fallback result must contain an instruction")
	}
}

func TestFallbackDeterministic(t *testing.T) {
	rules := NewRuleSet(5, 2)
	fb := NewFallback(rules)
	facts := educationFacts(t)

	first := fb.Optimize(facts)
	second := fb.Optimize(facts)

	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical facts must yield identical solutions")
	}
}

func TestFallbackScoreMatchesRuleSet(t *testing.T) {
	rules := NewRuleSet(5, 2)
	fb := NewFallback(rules)
	facts := educationFacts(t)

	sol := fb.Optimize(facts)
	if got := rules.Score(sol.Components, facts); got != sol.Score {
		t.Fatalf("solution score %v disagrees with rule set score %v", sol.Score, got)
	}
}

func TestFallbackRespectsComponentBound(t *testing.T) {
	rules := NewRuleSet(3, 2)
	fb := NewFallback(rules)

	sol := fb.Optimize(educationFacts(t))
	if len(sol.Components) > 3 {
		t.Fatalf("expected at most 3 components, got %d", len(sol.Components))
	}
	if err := rules.Validate(sol.Components); err != nil {
		t.Fatalf("invalid sequence: %v", err)
	}
}

func TestFallbackOrdersCanonically(t *testing.T) {
	rules := NewRuleSet(5, 2)
	fb := NewFallback(rules)

	sol := fb.Optimize(educationFacts(t))
	for i := 0; i+1 < len(sol.Components); i++ {
		if enumIndex(sol.Components[i].Type) > enumIndex(sol.Components[i+1].Type) {
			t.Fatalf("components out of canonical order at index %d: %v", i, componentTypes(sol.Components))
		}
	}
}

func TestFallbackEducationScenarioStartsWithInstruction(t *testing.T) {
	rules := NewRuleSet(5, 2)
	fb := NewFallback(rules)

	sol := fb.Optimize(educationFacts(t))

	if sol.Components[0].Type != prompt.ComponentInstruction {
		t.Fatalf("expected instruction first, got %v", componentTypes(sol.Components))
	}

	counts := make(map[prompt.ComponentType]int)
	for _, c := range sol.Components {
		counts[c.Type]++
	}
	for ct, n := range counts {
		if ct != prompt.ComponentExample && n > 1 {
			t.Fatalf("singleton type %s appears %d times", ct, n)
		}
	}
}

func componentTypes(components []prompt.Component) []prompt.ComponentType {
	out := make([]prompt.ComponentType, len(components))
	for i, c := range components {
		out[i] = c.Type
	}
	return out
}

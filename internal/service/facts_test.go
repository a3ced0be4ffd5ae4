package service

import (
	"math"
	"reflect"
	"testing"

	"promptforge/internal/domain/efficacy"
	"promptforge/internal/domain/prompt"
)

func normalizedRequest(tasks []prompt.TaskType, behaviors []prompt.BehaviorType, model, domainID string) prompt.OptimizationRequest {
	req := prompt.OptimizationRequest{
		UserPrompt:      "solve the puzzle",
		TargetTasks:     tasks,
		TargetBehaviors: behaviors,
		TargetModel:     model,
		Domain:          domainID,
	}
	req.Normalize()
	return req
}

func TestGenerateUsesSnapshotValues(t *testing.T) {
	store := NewEfficacyStore(0.3, nil)
	gen := NewFactGenerator()

	req := normalizedRequest([]prompt.TaskType{prompt.TaskInduction}, nil, "claude", "")
	snap := store.Snapshot(req.TargetTasks, req.TargetBehaviors, req.TargetModel, req.Domain)
	facts := gen.Generate(req, snap)

	// Example has prior 0.85 for induction, overridden to 0.85 for claude too.
	got := facts.TaskScore[CompTask{Component: prompt.ComponentExample, Task: prompt.TaskInduction}]
	if math.Abs(got-0.85) > 1e-9 {
		t.Fatalf("expected 0.85, got %v", got)
	}

	// Persona has no prior for induction and falls back to the default.
	got = facts.TaskScore[CompTask{Component: prompt.ComponentPersona, Task: prompt.TaskInduction}]
	if got != efficacy.DefaultPrior {
		t.Fatalf("expected default prior %v, got %v", efficacy.DefaultPrior, got)
	}
}

func TestGenerateAppliesModelOverride(t *testing.T) {
	store := NewEfficacyStore(0.3, nil)
	gen := NewFactGenerator()

	req := normalizedRequest([]prompt.TaskType{prompt.TaskDeduction}, nil, "gpt-4", "")
	snap := store.Snapshot(req.TargetTasks, req.TargetBehaviors, req.TargetModel, req.Domain)
	facts := gen.Generate(req, snap)

	// The gpt-4 override (0.9) replaces the base instruction value (0.8).
	got := facts.TaskScore[CompTask{Component: prompt.ComponentInstruction, Task: prompt.TaskDeduction}]
	if math.Abs(got-0.9) > 1e-9 {
		t.Fatalf("expected model override 0.9, got %v", got)
	}
}

func TestGenerateDomainScores(t *testing.T) {
	store := NewEfficacyStore(0.3, nil)
	gen := NewFactGenerator()

	req := normalizedRequest([]prompt.TaskType{prompt.TaskDeduction}, nil, "gpt-4", "legal")
	snap := store.Snapshot(req.TargetTasks, req.TargetBehaviors, req.TargetModel, req.Domain)
	facts := gen.Generate(req, snap)

	if got := facts.DomainScore[prompt.ComponentContext]; math.Abs(got-0.95) > 1e-9 {
		t.Fatalf("expected legal context score 0.95, got %v", got)
	}
	if _, ok := facts.DomainScore[prompt.ComponentPersona]; ok {
		t.Fatal("persona has no legal domain prior and must not receive a score")
	}
}

func TestGenerateNeutralDefaultForEmptyRequest(t *testing.T) {
	store := NewEfficacyStore(0.3, nil)
	gen := NewFactGenerator()

	req := normalizedRequest(nil, nil, "", "")
	snap := store.Snapshot(req.TargetTasks, req.TargetBehaviors, req.TargetModel, req.Domain)
	facts := gen.Generate(req, snap)

	for _, c := range prompt.ComponentTypes {
		if got := facts.DomainScore[c]; got != efficacy.DefaultPrior {
			t.Fatalf("component %s: expected neutral default %v, got %v", c, efficacy.DefaultPrior, got)
		}
	}
	if len(facts.TaskScore) != 0 || len(facts.BehaviorScore) != 0 {
		t.Fatal("empty request must not carry task or behavior scores")
	}
}

func TestRelevanceAggregates(t *testing.T) {
	facts := Facts{
		TaskScore: map[CompTask]float64{
			{Component: prompt.ComponentExample, Task: prompt.TaskDeduction}: 0.9,
			{Component: prompt.ComponentExample, Task: prompt.TaskInduction}: 0.85,
		},
		BehaviorScore: map[CompBehavior]float64{
			{Component: prompt.ComponentExample, Behavior: prompt.BehaviorStepByStep}: 0.85,
		},
		DomainScore: map[prompt.ComponentType]float64{
			prompt.ComponentExample: 0.8,
		},
		PairBonus: map[Pair]float64{},
	}

	got := facts.Relevance(prompt.ComponentExample)
	want := 0.9 + 0.85 + 0.85 + 0.8
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected relevance %v, got %v", want, got)
	}
}

func TestSolverFactsDeterministic(t *testing.T) {
	store := NewEfficacyStore(0.3, nil)
	gen := NewFactGenerator()

	req := normalizedRequest(
		[]prompt.TaskType{prompt.TaskDeduction, prompt.TaskInduction},
		[]prompt.BehaviorType{prompt.BehaviorStepByStep},
		"gpt-4", "education",
	)
	snap := store.Snapshot(req.TargetTasks, req.TargetBehaviors, req.TargetModel, req.Domain)

	first := gen.Generate(req, snap).SolverFacts()
	second := gen.Generate(req, snap).SolverFacts()

	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical inputs must render identical solver facts")
	}
}

func TestSolverFactRendering(t *testing.T) {
	facts := Facts{
		TaskScore: map[CompTask]float64{
			{Component: prompt.ComponentInstruction, Task: prompt.TaskDeduction}: 0.8,
		},
		BehaviorScore: map[CompBehavior]float64{},
		DomainScore:   map[prompt.ComponentType]float64{},
		PairBonus:     map[Pair]float64{},
	}

	rendered := facts.SolverFacts()
	if len(rendered) != 1 {
		t.Fatalf("expected 1 fact, got %d", len(rendered))
	}
	if got := rendered[0].String(); got != "task_score(instruction,deduction,800)." {
		t.Fatalf("unexpected rendering %q", got)
	}
}

package service

import (
	"math"
	"strings"
	"testing"

	"promptforge/internal/domain/prompt"
)

func seq(types ...prompt.ComponentType) []prompt.Component {
	out := make([]prompt.Component, len(types))
	for i, ct := range types {
		out[i] = prompt.Component{Type: ct, Position: i}
	}
	return out
}

func TestValidate(t *testing.T) {
	rules := NewRuleSet(5, 2)

	tests := []struct {
		name       string
		components []prompt.Component
		wantErr    bool
	}{
		{
			name:       "minimal valid",
			components: seq(prompt.ComponentInstruction),
		},
		{
			name: "full valid sequence",
			components: seq(
				prompt.ComponentPersona, prompt.ComponentInstruction,
				prompt.ComponentContext, prompt.ComponentExample,
				prompt.ComponentOutputFormat,
			),
		},
		{
			name: "repeated example within bound",
			components: seq(
				prompt.ComponentInstruction, prompt.ComponentExample,
				prompt.ComponentExample,
			),
		},
		{
			name:       "empty",
			components: nil,
			wantErr:    true,
		},
		{
			name: "too many components",
			components: seq(
				prompt.ComponentPersona, prompt.ComponentInstruction,
				prompt.ComponentContext, prompt.ComponentExample,
				prompt.ComponentConstraint, prompt.ComponentOutputFormat,
			),
			wantErr: true,
		},
		{
			name:       "missing instruction",
			components: seq(prompt.ComponentContext, prompt.ComponentExample),
			wantErr:    true,
		},
		{
			name: "persona not first",
			components: seq(
				prompt.ComponentInstruction, prompt.ComponentPersona,
			),
			wantErr: true,
		},
		{
			name: "duplicate singleton",
			components: seq(
				prompt.ComponentInstruction, prompt.ComponentContext,
				prompt.ComponentContext,
			),
			wantErr: true,
		},
		{
			name: "example repeated past bound",
			components: seq(
				prompt.ComponentInstruction, prompt.ComponentExample,
				prompt.ComponentExample, prompt.ComponentExample,
			),
			wantErr: true,
		},
		{
			name: "instruction after output format",
			components: seq(
				prompt.ComponentOutputFormat, prompt.ComponentInstruction,
			),
			wantErr: true,
		},
		{
			name: "position gap",
			components: []prompt.Component{
				{Type: prompt.ComponentInstruction, Position: 0},
				{Type: prompt.ComponentContext, Position: 2},
			},
			wantErr: true,
		},
		{
			name: "duplicate position",
			components: []prompt.Component{
				{Type: prompt.ComponentInstruction, Position: 0},
				{Type: prompt.ComponentContext, Position: 0},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rules.Validate(tt.components)
			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateOrderIndependent(t *testing.T) {
	rules := NewRuleSet(5, 2)

	// Positions decide; slice order must not matter.
	shuffled := []prompt.Component{
		{Type: prompt.ComponentContext, Position: 2},
		{Type: prompt.ComponentPersona, Position: 0},
		{Type: prompt.ComponentInstruction, Position: 1},
	}
	if err := rules.Validate(shuffled); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestScoreSumsRelevanceAndAdjacency(t *testing.T) {
	rules := NewRuleSet(5, 2)

	facts := Facts{
		TaskScore: map[CompTask]float64{
			{Component: prompt.ComponentInstruction, Task: prompt.TaskDeduction}: 0.8,
			{Component: prompt.ComponentExample, Task: prompt.TaskDeduction}:     0.9,
		},
		BehaviorScore: map[CompBehavior]float64{},
		DomainScore:   map[prompt.ComponentType]float64{},
		PairBonus: map[Pair]float64{
			{First: prompt.ComponentInstruction, Second: prompt.ComponentExample}: 0.7,
		},
	}

	components := seq(prompt.ComponentInstruction, prompt.ComponentExample)

	got := rules.Score(components, facts)
	want := 0.8 + 0.9 + 0.7
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected score %v, got %v", want, got)
	}
}

func TestScoreCountsRepeatedTypeOnce(t *testing.T) {
	rules := NewRuleSet(5, 2)

	facts := Facts{
		TaskScore: map[CompTask]float64{
			{Component: prompt.ComponentInstruction, Task: prompt.TaskDeduction}: 0.8,
			{Component: prompt.ComponentExample, Task: prompt.TaskDeduction}:     0.9,
		},
		BehaviorScore: map[CompBehavior]float64{},
		DomainScore:   map[prompt.ComponentType]float64{},
		PairBonus:     map[Pair]float64{},
	}

	components := seq(
		prompt.ComponentInstruction, prompt.ComponentExample, prompt.ComponentExample,
	)

	got := rules.Score(components, facts)
	want := 0.8 + 0.9
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("repeated type must score once: expected %v, got %v", want, got)
	}
}

func TestProgramReflectsBounds(t *testing.T) {
	rules := NewRuleSet(5, 2)
	program := rules.Program()

	for _, fragment := range []string{
		"position(1..5)",
		"#count { P : select(example,P) } > 2",
		"not selected(instruction)",
		"#maximize",
		"#show select/2.",
	} {
		if !strings.Contains(program, fragment) {
			t.Errorf("program missing %q", fragment)
		}
	}
}

package service

import (
	"fmt"
	"sort"

	"promptforge/internal/domain/prompt"
)

// RuleSet holds the static structural rules every optimization result must
// satisfy, in two equivalent forms: the declarative program submitted to the
// external solver, and a Go-side validator applied uniformly to solver and
// fallback output. A candidate violating cardinality, ordering, or required
// presence is invalid regardless of score.
type RuleSet struct {
	maxComponents int
	maxExamples   int
}

// NewRuleSet creates the rule set. maxComponents bounds result length;
// maxExamples bounds how often the example component may repeat.
func NewRuleSet(maxComponents, maxExamples int) *RuleSet {
	return &RuleSet{maxComponents: maxComponents, maxExamples: maxExamples}
}

// MaxComponents returns the result length bound.
func (r *RuleSet) MaxComponents() int { return r.maxComponents }

// MaxExamples returns the example repetition bound.
func (r *RuleSet) MaxExamples() int { return r.maxExamples }

// Program renders the static rule program in the solver's input language.
// Request-specific weighted facts are appended by the fact generator.
func (r *RuleSet) Program() string {
	return fmt.Sprintf(`%% Prompt component selection and ordering rules.
component(persona). component(instruction). component(context).
component(example). component(constraint). component(output_format).

position(1..%d).

%% At most one component occupies each position.
{ select(C,P) : component(C) } 1 :- position(P).

%% Positions fill left to right with no gaps.
filled(P) :- select(_,P).
:- filled(P), P > 1, not filled(P-1).

%% Every type is a singleton except example.
:- select(C,P1), select(C,P2), P1 < P2, C != example.
:- #count { P : select(example,P) } > %d.

selected(C) :- select(C,_).

%% An instruction is mandatory in every valid result.
:- not selected(instruction).

%% Persona, when present, comes first.
:- select(persona,P), P != 1.

%% Instructions never appear after the output format.
:- select(instruction,P1), select(output_format,P2), P1 > P2.

%% Objective: total relevance of the selected types plus adjacency bonuses.
relevance(C,S) :- component(C),
    S = #sum { V,task,T : task_score(C,T,V) ;
               V,behavior,B : behavior_score(C,B,V) ;
               V,domain : domain_score(C,V) }.
adjacent(C1,C2) :- select(C1,P), select(C2,P+1).
#maximize { S,C : selected(C), relevance(C,S) ;
            B,C1,C2 : adjacent(C1,C2), pair_bonus(C1,C2,B) }.

#show select/2.
`, r.maxComponents, r.maxExamples)
}

// Validate checks a candidate component sequence against every structural
// rule. Components may arrive in any order; positions decide.
func (r *RuleSet) Validate(components []prompt.Component) error {
	if len(components) == 0 {
		return fmt.Errorf("empty component sequence")
	}
	if len(components) > r.maxComponents {
		return fmt.Errorf("%d components exceeds maximum %d", len(components), r.maxComponents)
	}

	ordered := make([]prompt.Component, len(components))
	copy(ordered, components)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	counts := make(map[prompt.ComponentType]int)
	for i, c := range ordered {
		if !prompt.ValidComponentType(string(c.Type)) {
			return fmt.Errorf("unknown component type %q", c.Type)
		}
		if c.Position != i {
			return fmt.Errorf("positions must be contiguous from 0, got %d at index %d", c.Position, i)
		}
		counts[c.Type]++
	}

	for ct, n := range counts {
		switch {
		case ct == prompt.ComponentExample && n > r.maxExamples:
			return fmt.Errorf("example appears %d times, maximum %d", n, r.maxExamples)
		case ct != prompt.ComponentExample && n > 1:
			return fmt.Errorf("%s appears %d times, must be singleton", ct, n)
		}
	}

	if counts[prompt.ComponentInstruction] == 0 {
		return fmt.Errorf("instruction component is mandatory")
	}
	if counts[prompt.ComponentPersona] > 0 && ordered[0].Type != prompt.ComponentPersona {
		return fmt.Errorf("persona must be the first component")
	}

	instructionPos, outputPos := -1, -1
	for _, c := range ordered {
		if c.Type == prompt.ComponentInstruction {
			instructionPos = c.Position
		}
		if c.Type == prompt.ComponentOutputFormat && outputPos == -1 {
			outputPos = c.Position
		}
	}
	if outputPos != -1 && instructionPos > outputPos {
		return fmt.Errorf("instruction must not appear after output_format")
	}

	return nil
}

// Score computes the objective value of a valid sequence from the weighted
// facts: the summed relevance of each distinct selected type plus the
// adjacency bonus of each consecutive pair. Both the solver path and the
// fallback path are scored through here so results stay comparable.
func (r *RuleSet) Score(components []prompt.Component, f Facts) float64 {
	ordered := make([]prompt.Component, len(components))
	copy(ordered, components)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	seen := make(map[prompt.ComponentType]bool)
	var total float64
	for _, c := range ordered {
		if seen[c.Type] {
			continue
		}
		seen[c.Type] = true
		total += f.Relevance(c.Type)
	}

	for i := 0; i+1 < len(ordered); i++ {
		total += f.PairBonus[Pair{First: ordered[i].Type, Second: ordered[i+1].Type}]
	}

	return total
}

package service

import (
	"sort"

	"promptforge/internal/domain/prompt"
	"promptforge/internal/port/solver"
)

// Fallback is the deterministic greedy optimizer used whenever the external
// solver fails. It always produces a rule-valid result with no external
// dependency and no unbounded search; the result is best-effort rather than
// globally optimal, a deliberate trade of optimality for availability.
type Fallback struct {
	rules *RuleSet
}

// NewFallback creates a fallback optimizer bound to the shared rule set.
func NewFallback(rules *RuleSet) *Fallback {
	return &Fallback{rules: rules}
}

// Optimize greedily constructs a valid component sequence: the mandatory
// instruction first, then further types in descending aggregate relevance,
// stopping at the component bound. Relevance ties break by adjacency-bonus
// potential, then by canonical enumeration order, so identical facts always
// yield the identical sequence and score.
func (f *Fallback) Optimize(facts Facts) *solver.Solution {
	// Rank candidate types by relevance; sort.SliceStable over the canonical
	// enumeration keeps the final tie-break deterministic.
	ranked := make([]prompt.ComponentType, len(prompt.ComponentTypes))
	copy(ranked, prompt.ComponentTypes)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := facts.Relevance(ranked[i]), facts.Relevance(ranked[j])
		if ri != rj {
			return ri > rj
		}
		return pairPotential(facts, ranked[i]) > pairPotential(facts, ranked[j])
	})

	maxLen := f.rules.MaxComponents()
	selected := []prompt.ComponentType{prompt.ComponentInstruction}
	for _, c := range ranked {
		if len(selected) >= maxLen {
			break
		}
		if c == prompt.ComponentInstruction {
			continue
		}
		selected = append(selected, c)
	}

	// Spend any remaining capacity on repeated examples, up to the bound.
	if containsType(selected, prompt.ComponentExample) {
		examples := 1
		for len(selected) < maxLen && examples < f.rules.MaxExamples() {
			selected = append(selected, prompt.ComponentExample)
			examples++
		}
	}

	// Structural order: the canonical enumeration already places persona
	// first and instruction before output_format, so ordering by it
	// satisfies every ordering rule. Repeated examples stay adjacent.
	sort.SliceStable(selected, func(i, j int) bool {
		return enumIndex(selected[i]) < enumIndex(selected[j])
	})

	components := make([]prompt.Component, len(selected))
	for i, c := range selected {
		components[i] = prompt.Component{
			Type:     c,
			Position: i,
			Score:    facts.Relevance(c),
		}
	}

	return &solver.Solution{
		Components: components,
		Score:      f.rules.Score(components, facts),
	}
}

// pairPotential is the total adjacency bonus a type can participate in, on
// either side of a pair. A type tied on relevance but richer in ordering
// bonuses is the better pick.
func pairPotential(f Facts, c prompt.ComponentType) float64 {
	var total float64
	for k, v := range f.PairBonus {
		if k.First == c || k.Second == c {
			total += v
		}
	}
	return total
}

func containsType(list []prompt.ComponentType, c prompt.ComponentType) bool {
	for _, x := range list {
		if x == c {
			return true
		}
	}
	return false
}

func enumIndex(c prompt.ComponentType) int {
	for i, x := range prompt.ComponentTypes {
		if x == c {
			return i
		}
	}
	return len(prompt.ComponentTypes)
}

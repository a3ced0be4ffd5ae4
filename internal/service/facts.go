package service

import (
	"math"
	"strconv"

	"promptforge/internal/domain/efficacy"
	"promptforge/internal/domain/prompt"
	"promptforge/internal/port/solver"
)

// CompTask keys a component×task score inside a fact set.
type CompTask struct {
	Component prompt.ComponentType
	Task      prompt.TaskType
}

// CompBehavior keys a component×behavior score inside a fact set.
type CompBehavior struct {
	Component prompt.ComponentType
	Behavior  prompt.BehaviorType
}

// Pair keys an ordering preference between two component types.
type Pair struct {
	First  prompt.ComponentType
	Second prompt.ComponentType
}

// Facts is one declarative problem instance: every weighted fact derived
// from a request and an efficacy snapshot. The same fact set drives both the
// external solver and the fallback optimizer, so the two paths optimize the
// same objective.
type Facts struct {
	TaskScore     map[CompTask]float64
	BehaviorScore map[CompBehavior]float64
	DomainScore   map[prompt.ComponentType]float64
	PairBonus     map[Pair]float64
}

// Relevance returns the aggregate weighted relevance of a component type:
// the sum of its task, behavior, and domain scores.
func (f Facts) Relevance(c prompt.ComponentType) float64 {
	var total float64
	for k, v := range f.TaskScore {
		if k.Component == c {
			total += v
		}
	}
	for k, v := range f.BehaviorScore {
		if k.Component == c {
			total += v
		}
	}
	total += f.DomainScore[c]
	return total
}

// FactGenerator converts an optimization request plus an efficacy snapshot
// into a finite weighted fact set. Identical request and snapshot always
// yield an identical fact set.
type FactGenerator struct{}

// NewFactGenerator creates a fact generator.
func NewFactGenerator() *FactGenerator {
	return &FactGenerator{}
}

// Generate builds the problem instance for a normalized request. Model
// overrides replace the base component×task value where present. A request
// with neither tasks nor behaviors falls back to a domain-neutral default
// weighting so the optimizer never receives an empty problem.
func (g *FactGenerator) Generate(req prompt.OptimizationRequest, snap efficacy.Snapshot) Facts {
	f := Facts{
		TaskScore:     make(map[CompTask]float64),
		BehaviorScore: make(map[CompBehavior]float64),
		DomainScore:   make(map[prompt.ComponentType]float64),
		PairBonus:     make(map[Pair]float64),
	}

	for _, c := range prompt.ComponentTypes {
		for _, t := range req.TargetTasks {
			v := snap.Value(efficacy.ComponentTask(c, t), efficacy.DefaultPrior)
			if ov, ok := snap.Values[efficacy.ModelComponentTask(req.TargetModel, c, t)]; ok {
				v = ov
			}
			f.TaskScore[CompTask{Component: c, Task: t}] = v
		}
		for _, b := range req.TargetBehaviors {
			f.BehaviorScore[CompBehavior{Component: c, Behavior: b}] =
				snap.Value(efficacy.ComponentBehavior(c, b), efficacy.DefaultPrior)
		}
		if v, ok := snap.Values[efficacy.DomainComponent(req.Domain, c)]; ok {
			f.DomainScore[c] = v
		}
	}

	// Neutral default weighting for an effectively empty request.
	if len(req.TargetTasks) == 0 && len(req.TargetBehaviors) == 0 {
		for _, c := range prompt.ComponentTypes {
			if _, ok := f.DomainScore[c]; !ok {
				f.DomainScore[c] = efficacy.DefaultPrior
			}
		}
	}

	for k, v := range snap.Values {
		if k.Kind == efficacy.KindPairOrder {
			f.PairBonus[Pair{First: k.Component, Second: k.Second}] = v
		}
	}

	return f
}

// SolverFacts renders the fact set in the solver's input language, in a
// fixed deterministic order. Scores are scaled to integer millis because
// the solver optimizes over integers.
func (f Facts) SolverFacts() []solver.Fact {
	var out []solver.Fact

	for _, c := range prompt.ComponentTypes {
		for _, t := range prompt.TaskTypes {
			if v, ok := f.TaskScore[CompTask{Component: c, Task: t}]; ok {
				out = append(out, solver.Fact{
					Predicate: "task_score",
					Args:      []string{string(c), string(t), millis(v)},
				})
			}
		}
	}
	for _, c := range prompt.ComponentTypes {
		for _, b := range prompt.BehaviorTypes {
			if v, ok := f.BehaviorScore[CompBehavior{Component: c, Behavior: b}]; ok {
				out = append(out, solver.Fact{
					Predicate: "behavior_score",
					Args:      []string{string(c), string(b), millis(v)},
				})
			}
		}
	}
	for _, c := range prompt.ComponentTypes {
		if v, ok := f.DomainScore[c]; ok {
			out = append(out, solver.Fact{
				Predicate: "domain_score",
				Args:      []string{string(c), millis(v)},
			})
		}
	}
	for _, c1 := range prompt.ComponentTypes {
		for _, c2 := range prompt.ComponentTypes {
			if v, ok := f.PairBonus[Pair{First: c1, Second: c2}]; ok {
				out = append(out, solver.Fact{
					Predicate: "pair_bonus",
					Args:      []string{string(c1), string(c2), millis(v)},
				})
			}
		}
	}

	return out
}

// millis renders a [0,1] score as an integer thousandth for the solver.
func millis(v float64) string {
	return strconv.Itoa(int(math.Round(v * 1000)))
}

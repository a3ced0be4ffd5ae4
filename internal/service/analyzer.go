package service

import (
	"context"
	"log/slog"
	"strings"

	"promptforge/internal/domain/prompt"
	"promptforge/internal/port/contentgen"
)

// AnalyzerService detects reasoning tasks, behaviors, and a domain hint in
// free text. It prefers the meta-LLM collaborator and falls back to a
// deterministic keyword heuristic, so analysis never fails.
type AnalyzerService struct {
	gen contentgen.Generator // optional
}

// NewAnalyzerService creates the analyzer.
func NewAnalyzerService(gen contentgen.Generator) *AnalyzerService {
	return &AnalyzerService{gen: gen}
}

// Analyze returns the detected tasks and behaviors for the text.
func (s *AnalyzerService) Analyze(ctx context.Context, text string) *prompt.Analysis {
	if s.gen != nil {
		if a, err := s.gen.Analyze(ctx, text); err == nil && a != nil && len(a.DetectedTasks) > 0 {
			return a
		} else if err != nil {
			slog.Warn("llm analysis failed, using keyword heuristic", "error", err)
		}
	}
	return heuristicAnalysis(text)
}

var taskKeywords = map[prompt.TaskType][]string{
	prompt.TaskDeduction:      {"deduce", "therefore", "conclude", "prove", "follows that", "logically"},
	prompt.TaskInduction:      {"pattern", "generalize", "trend", "extrapolate", "based on these"},
	prompt.TaskAbduction:      {"explain why", "diagnose", "most likely cause", "hypothesis", "best explanation"},
	prompt.TaskComparison:     {"compare", "versus", "difference between", "contrast", "pros and cons"},
	prompt.TaskCounterfactual: {"what if", "suppose", "imagine", "had been", "hypothetically"},
}

var behaviorKeywords = map[prompt.BehaviorType][]string{
	prompt.BehaviorPrecision:     {"exact", "precise", "accurate", "specific"},
	prompt.BehaviorCreativity:    {"creative", "brainstorm", "novel", "original ideas"},
	prompt.BehaviorStepByStep:    {"step by step", "step-by-step", "walk through", "show your work"},
	prompt.BehaviorConciseness:   {"brief", "concise", "summary", "short answer"},
	prompt.BehaviorErrorChecking: {"verify", "double-check", "validate", "check for errors"},
}

var domainKeywords = map[string][]string{
	"legal":     {"contract", "lawsuit", "statute", "legal", "clause"},
	"medical":   {"patient", "diagnosis", "symptom", "treatment", "clinical"},
	"code":      {"code", "function", "bug", "compile", "refactor"},
	"education": {"teach", "student", "lesson", "curriculum", "explain to a"},
}

// heuristicAnalysis scans the text for task, behavior, and domain keywords.
// When nothing matches it assumes deduction with precision, the most common
// request shape.
func heuristicAnalysis(text string) *prompt.Analysis {
	lower := strings.ToLower(text)
	a := &prompt.Analysis{}

	for _, t := range prompt.TaskTypes {
		if matchesAny(lower, taskKeywords[t]) {
			a.DetectedTasks = append(a.DetectedTasks, t)
		}
	}
	for _, b := range prompt.BehaviorTypes {
		if matchesAny(lower, behaviorKeywords[b]) {
			a.DetectedBehaviors = append(a.DetectedBehaviors, b)
		}
	}
	for _, d := range []string{"legal", "medical", "code", "education"} {
		if matchesAny(lower, domainKeywords[d]) {
			a.DomainHint = d
			break
		}
	}

	if len(a.DetectedTasks) == 0 {
		a.DetectedTasks = []prompt.TaskType{prompt.TaskDeduction}
	}
	if len(a.DetectedBehaviors) == 0 {
		a.DetectedBehaviors = []prompt.BehaviorType{prompt.BehaviorPrecision}
	}

	return a
}

func matchesAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Package solver defines the port interface for the external declarative
// constraint solver that selects and orders prompt components.
package solver

import (
	"context"
	"fmt"
	"strings"

	"promptforge/internal/domain/prompt"
)

// Fact is a single ground fact in the solver's input language. Args are
// pre-rendered terms (lowercase constants or integers).
type Fact struct {
	Predicate string
	Args      []string
}

// String renders the fact as "predicate(a,b,c).".
func (f Fact) String() string {
	return f.Predicate + "(" + strings.Join(f.Args, ",") + ")."
}

// Problem is a complete solver input: the request-specific weighted facts
// plus the static rule program.
type Problem struct {
	Facts     []Fact
	Rules     string
	MaxModels int
}

// Program renders the full textual program submitted to the solver.
func (p Problem) Program() string {
	var b strings.Builder
	b.WriteString(p.Rules)
	b.WriteString("\n")
	for _, f := range p.Facts {
		b.WriteString(f.String())
		b.WriteString("\n")
	}
	return b.String()
}

// Solution is the best answer set returned by the solver, already mapped
// back into domain components ordered by position.
type Solution struct {
	Components []prompt.Component
	Score      float64
}

// Solver is the port interface for declarative optimization backends.
// Implementations must bound execution with the context deadline and must
// not hold any shared lock while blocked.
type Solver interface {
	Name() string
	Solve(ctx context.Context, p Problem) (*Solution, error)
}

// Reason classifies why a solve attempt failed.
type Reason string

const (
	// ReasonUnavailable means the solver binary or service cannot be invoked.
	ReasonUnavailable Reason = "unavailable"
	// ReasonSyntax means the solver rejected the program (version or grammar mismatch).
	ReasonSyntax Reason = "syntax"
	// ReasonTimeout means the time budget was exceeded.
	ReasonTimeout Reason = "timeout"
	// ReasonUnsatisfiable means the solver returned zero answer sets.
	ReasonUnsatisfiable Reason = "unsatisfiable"
)

// Error is the single failure type surfaced by solver implementations.
// Callers are expected to absorb it and fall back; it never propagates past
// the optimizer.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("solver %s: %v", e.Reason, e.Err)
	}
	return "solver " + string(e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient. Only timeouts are;
// syntax and availability failures are structural.
func (e *Error) Retryable() bool { return e.Reason == ReasonTimeout }

// Package clingo implements the solver port by invoking the clingo
// answer-set solver as an external process.
package clingo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"promptforge/internal/domain/prompt"
	"promptforge/internal/port/solver"
)

const solverName = "clingo"

// clingo exit codes are a bitmask: 10 = satisfiable, 20 = unsatisfiable,
// 30 = satisfiable with proven optimum.
const (
	exitSat     = 10
	exitUnsat   = 20
	exitOptimum = 30
)

// Solver runs the clingo binary with a textual fact+rule program on stdin
// and parses the highest-scoring answer set. Every invocation is bounded by
// the configured timeout; no shared lock is held while the process runs.
type Solver struct {
	binary      string
	timeout     time.Duration
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// New creates a clingo-backed solver.
func New(binary string, timeout time.Duration) *Solver {
	return &Solver{
		binary:      binary,
		timeout:     timeout,
		execCommand: exec.CommandContext,
	}
}

// Name returns "clingo".
func (s *Solver) Name() string { return solverName }

// Solve submits the problem and returns the best answer set mapped to
// domain components. All failure modes surface as *solver.Error so the
// caller can fall back without inspecting causes.
func (s *Solver) Solve(ctx context.Context, p solver.Problem) (*solver.Solution, error) {
	if _, err := exec.LookPath(s.binary); err != nil {
		return nil, &solver.Error{Reason: solver.ReasonUnavailable, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	models := p.MaxModels
	if models < 1 {
		models = 1
	}

	cmd := s.execCommand(ctx, s.binary, "--models="+strconv.Itoa(models), "--quiet=1") //nolint:gosec // binary from trusted config
	cmd.Stdin = strings.NewReader(p.Program())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return nil, &solver.Error{Reason: solver.ReasonTimeout, Err: ctx.Err()}
	}
	if ctx.Err() == context.Canceled {
		return nil, &solver.Error{Reason: solver.ReasonUnavailable, Err: ctx.Err()}
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, &solver.Error{Reason: solver.ReasonUnavailable, Err: runErr}
		}
		switch exitErr.ExitCode() {
		case exitSat, exitOptimum:
			// Normal termination; fall through to parsing.
		case exitUnsat:
			return nil, &solver.Error{Reason: solver.ReasonUnsatisfiable}
		default:
			return nil, &solver.Error{
				Reason: solver.ReasonSyntax,
				Err:    fmt.Errorf("exit %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String())),
			}
		}
	}

	return parseOutput(stdout.String())
}

// parseOutput extracts the last (best) answer set from clingo's plain text
// output. Answer atoms follow a line of the form "Answer: N"; the running
// objective appears on "Optimization:" lines in negated integer millis.
func parseOutput(out string) (*solver.Solution, error) {
	var lastAnswer string
	var lastCost int64
	haveCost := false

	lines := strings.Split(out, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Answer:"):
			if i+1 < len(lines) {
				lastAnswer = strings.TrimSpace(lines[i+1])
			}
		case strings.HasPrefix(line, "Optimization:"):
			v, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, "Optimization:")), 10, 64)
			if err == nil {
				lastCost = v
				haveCost = true
			}
		case line == "UNSATISFIABLE":
			return nil, &solver.Error{Reason: solver.ReasonUnsatisfiable}
		}
	}

	if lastAnswer == "" {
		return nil, &solver.Error{Reason: solver.ReasonUnsatisfiable}
	}

	components, err := parseAnswer(lastAnswer)
	if err != nil {
		return nil, &solver.Error{Reason: solver.ReasonSyntax, Err: err}
	}

	sol := &solver.Solution{Components: components}
	if haveCost {
		// Maximization is reported as a negated minimization cost.
		sol.Score = float64(-lastCost) / 1000.0
	}
	return sol, nil
}

// parseAnswer maps "select(comp,pos)" atoms (1-based positions) to domain
// components (0-based positions), ordered by position.
func parseAnswer(answer string) ([]prompt.Component, error) {
	var components []prompt.Component

	for _, atom := range strings.Fields(answer) {
		if !strings.HasPrefix(atom, "select(") || !strings.HasSuffix(atom, ")") {
			continue
		}
		inner := atom[len("select(") : len(atom)-1]
		parts := strings.Split(inner, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed atom %q", atom)
		}

		name := strings.TrimSpace(parts[0])
		if !prompt.ValidComponentType(name) {
			return nil, fmt.Errorf("unknown component %q in atom %q", name, atom)
		}

		pos, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || pos < 1 {
			return nil, fmt.Errorf("bad position in atom %q", atom)
		}

		components = append(components, prompt.Component{
			Type:     prompt.ComponentType(name),
			Position: pos - 1,
		})
	}

	if len(components) == 0 {
		return nil, fmt.Errorf("answer set contains no select atoms")
	}

	sort.Slice(components, func(i, j int) bool {
		return components[i].Position < components[j].Position
	})

	return components, nil
}

// Package contentgen defines the port interface for the meta-LLM that
// analyzes free-text prompts and writes component content.
package contentgen

import (
	"context"

	"promptforge/internal/domain/prompt"
)

// Generator is the port interface for LLM-backed text generation. Both
// operations are best-effort collaborators: callers degrade gracefully
// (heuristic analysis, placeholder content) when they fail.
type Generator interface {
	// Analyze detects reasoning tasks, behaviors, and a domain hint in
	// free text.
	Analyze(ctx context.Context, userPrompt string) (*prompt.Analysis, error)

	// Generate writes the text for one selected component.
	Generate(ctx context.Context, ct prompt.ComponentType, userPrompt string, analysis prompt.Analysis) (string, error)
}

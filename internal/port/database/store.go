// Package database defines the persistence port for optimization results
// and learned efficacy records.
package database

import (
	"context"

	"promptforge/internal/domain/efficacy"
	"promptforge/internal/domain/prompt"
)

// Store is the port interface for durable storage. The optimization core
// treats it as a synchronous dependency and implements no durability of
// its own.
type Store interface {
	// CreateResult persists an optimized prompt and its components.
	CreateResult(ctx context.Context, res *prompt.Result) error

	// GetResult returns a stored result by ID, including components.
	// Returns domain.ErrNotFound when absent.
	GetResult(ctx context.Context, id string) (*prompt.Result, error)

	// ListResults returns stored results newest-first with the total count.
	// model filters by target model when non-empty.
	ListResults(ctx context.Context, limit, offset int, model string) ([]prompt.Result, int, error)

	// UpsertEfficacy writes the current value for one context key.
	UpsertEfficacy(ctx context.Context, rec efficacy.Record) error

	// ListEfficacy returns all persisted efficacy records.
	ListEfficacy(ctx context.Context) ([]efficacy.Record, error)
}

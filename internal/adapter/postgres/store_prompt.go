package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"promptforge/internal/domain"
	"promptforge/internal/domain/prompt"
)

// CreateResult persists an optimized prompt together with its components in
// one transaction.
func (s *Store) CreateResult(ctx context.Context, res *prompt.Result) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertPrompt = `
		INSERT INTO optimized_prompts (id, user_prompt, full_prompt, rationale, score, target_model, domain, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if _, err := tx.Exec(ctx, insertPrompt,
		res.ID, res.UserPrompt, res.FullPrompt, res.Rationale,
		res.Score, res.TargetModel, res.Domain, res.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert prompt: %w", err)
	}

	const insertComponent = `
		INSERT INTO prompt_components (prompt_id, position, component_type, score, content)
		VALUES ($1, $2, $3, $4, $5)`

	for _, c := range res.Components {
		if _, err := tx.Exec(ctx, insertComponent,
			res.ID, c.Position, string(c.Type), c.Score, c.Content,
		); err != nil {
			return fmt.Errorf("insert component: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetResult returns a stored result by ID, including its components.
func (s *Store) GetResult(ctx context.Context, id string) (*prompt.Result, error) {
	const q = `
		SELECT id, user_prompt, full_prompt, rationale, score, target_model, domain, created_at
		FROM optimized_prompts
		WHERE id = $1`

	var res prompt.Result
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&res.ID, &res.UserPrompt, &res.FullPrompt, &res.Rationale,
		&res.Score, &res.TargetModel, &res.Domain, &res.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prompt: %w", err)
	}

	components, err := s.listComponents(ctx, res.ID)
	if err != nil {
		return nil, err
	}
	res.Components = components

	return &res, nil
}

// ListResults returns stored results newest-first with the total matching
// count. model filters by target model when non-empty.
func (s *Store) ListResults(ctx context.Context, limit, offset int, model string) ([]prompt.Result, int, error) {
	const countQ = `
		SELECT count(*) FROM optimized_prompts
		WHERE ($1 = '' OR target_model = $1)`

	var total int
	if err := s.pool.QueryRow(ctx, countQ, model).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count prompts: %w", err)
	}

	const q = `
		SELECT id, user_prompt, full_prompt, rationale, score, target_model, domain, created_at
		FROM optimized_prompts
		WHERE ($1 = '' OR target_model = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, q, model, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	var results []prompt.Result
	for rows.Next() {
		var res prompt.Result
		if err := rows.Scan(
			&res.ID, &res.UserPrompt, &res.FullPrompt, &res.Rationale,
			&res.Score, &res.TargetModel, &res.Domain, &res.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan prompt: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range results {
		components, err := s.listComponents(ctx, results[i].ID)
		if err != nil {
			return nil, 0, err
		}
		results[i].Components = components
	}

	return results, total, nil
}

func (s *Store) listComponents(ctx context.Context, promptID string) ([]prompt.Component, error) {
	const q = `
		SELECT position, component_type, score, content
		FROM prompt_components
		WHERE prompt_id = $1
		ORDER BY position ASC`

	rows, err := s.pool.Query(ctx, q, promptID)
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}
	defer rows.Close()

	var components []prompt.Component
	for rows.Next() {
		var c prompt.Component
		var ct string
		if err := rows.Scan(&c.Position, &ct, &c.Score, &c.Content); err != nil {
			return nil, fmt.Errorf("scan component: %w", err)
		}
		c.Type = prompt.ComponentType(ct)
		components = append(components, c)
	}
	return components, rows.Err()
}

package postgres

import (
	"context"
	"fmt"

	"promptforge/internal/domain/efficacy"
	"promptforge/internal/domain/prompt"
)

// UpsertEfficacy writes the current effectiveness value for one context key.
// The canonical key string is the conflict target, so repeated feedback for
// the same context overwrites in place.
func (s *Store) UpsertEfficacy(ctx context.Context, rec efficacy.Record) error {
	const q = `
		INSERT INTO efficacy_records (key, kind, component, second_component, task, behavior, model, domain, value, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	k := rec.Key
	if _, err := s.pool.Exec(ctx, q,
		k.String(), string(k.Kind), string(k.Component), string(k.Second),
		string(k.Task), string(k.Behavior), k.Model, k.Domain,
		rec.Value, rec.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upsert efficacy: %w", err)
	}
	return nil
}

// ListEfficacy returns all persisted efficacy records.
func (s *Store) ListEfficacy(ctx context.Context) ([]efficacy.Record, error) {
	const q = `
		SELECT kind, component, second_component, task, behavior, model, domain, value, updated_at
		FROM efficacy_records`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list efficacy: %w", err)
	}
	defer rows.Close()

	var records []efficacy.Record
	for rows.Next() {
		var rec efficacy.Record
		var kind, component, second, task, behavior string
		if err := rows.Scan(
			&kind, &component, &second, &task, &behavior,
			&rec.Key.Model, &rec.Key.Domain, &rec.Value, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan efficacy: %w", err)
		}
		rec.Key.Kind = efficacy.Kind(kind)
		rec.Key.Component = prompt.ComponentType(component)
		rec.Key.Second = prompt.ComponentType(second)
		rec.Key.Task = prompt.TaskType(task)
		rec.Key.Behavior = prompt.BehaviorType(behavior)
		records = append(records, rec)
	}
	return records, rows.Err()
}

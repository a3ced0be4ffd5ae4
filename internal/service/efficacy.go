package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"promptforge/internal/domain"
	"promptforge/internal/domain/efficacy"
	"promptforge/internal/domain/prompt"
	"promptforge/internal/port/database"
)

// EfficacyStore is the single source of truth for learned effectiveness
// values. It is an owned, versioned, in-memory store: every accepted update
// advances the version counter exactly once, and the version is folded into
// result cache fingerprints so stale cached results stop matching the moment
// the data changes.
//
// Updates blend rather than overwrite: new = old + alpha*(observed - old).
// Repeated identical feedback converges toward the observed value without
// overshooting it.
type EfficacyStore struct {
	mu      sync.RWMutex
	values  map[efficacy.Key]float64
	version uint64

	alpha float64
	store database.Store // optional write-through persistence
}

// NewEfficacyStore creates a store seeded with the built-in priors.
// alpha is the EMA learning rate in (0,1]. store may be nil.
func NewEfficacyStore(alpha float64, store database.Store) *EfficacyStore {
	return &EfficacyStore{
		values: efficacy.Priors(),
		alpha:  alpha,
		store:  store,
	}
}

// Warm overlays persisted efficacy records onto the priors. Called once at
// startup, before the store is shared.
func (s *EfficacyStore) Warm(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	recs, err := s.store.ListEfficacy(ctx)
	if err != nil {
		return fmt.Errorf("load efficacy records: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		s.values[rec.Key] = rec.Value
	}
	slog.Info("efficacy store warmed", "records", len(recs))
	return nil
}

// Get returns the current value for k, or the default prior when absent.
// It never fails.
func (s *EfficacyStore) Get(k efficacy.Key) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[k]; ok {
		return v
	}
	return efficacy.DefaultPrior
}

// Version returns the current store version. It starts at zero and advances
// by one per accepted update call.
func (s *EfficacyStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot collects every value relevant to the given request dimensions at
// a single version. The returned snapshot is immutable; identical inputs at
// the same version produce identical snapshots.
func (s *EfficacyStore) Snapshot(tasks []prompt.TaskType, behaviors []prompt.BehaviorType, model, domainID string) efficacy.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make(map[efficacy.Key]float64)
	read := func(k efficacy.Key) {
		if v, ok := s.values[k]; ok {
			values[k] = v
		}
	}

	for _, c := range prompt.ComponentTypes {
		for _, t := range tasks {
			read(efficacy.ComponentTask(c, t))
			read(efficacy.ModelComponentTask(model, c, t))
		}
		for _, b := range behaviors {
			read(efficacy.ComponentBehavior(c, b))
		}
		read(efficacy.DomainComponent(domainID, c))
		for _, c2 := range prompt.ComponentTypes {
			read(efficacy.PairOrder(c, c2))
		}
	}

	return efficacy.Snapshot{Version: s.version, Values: values}
}

// Update applies one observed effectiveness value to every given context key
// using the EMA blend, advancing the version exactly once. The value must
// already be range-checked by the caller; Update re-checks and rejects
// out-of-range input so the store can never absorb an invalid observation.
//
// Persistence is write-through best-effort after the in-memory state is
// committed; a storage failure is logged and does not roll back the update.
func (s *EfficacyStore) Update(ctx context.Context, keys []efficacy.Key, observed float64) ([]efficacy.Record, uint64, error) {
	if observed < efficacy.MinValue || observed > efficacy.MaxValue {
		return nil, 0, fmt.Errorf("%w: %v not in [%v,%v]",
			domain.ErrInvalidFeedback, observed, efficacy.MinValue, efficacy.MaxValue)
	}
	if len(keys) == 0 {
		return nil, 0, fmt.Errorf("%w: no context keys", domain.ErrInvalidFeedback)
	}

	now := time.Now().UTC()

	s.mu.Lock()
	records := make([]efficacy.Record, 0, len(keys))
	for _, k := range keys {
		old, ok := s.values[k]
		if !ok {
			old = efficacy.DefaultPrior
		}
		next := old + s.alpha*(observed-old)
		s.values[k] = next
		records = append(records, efficacy.Record{Key: k, Value: next, UpdatedAt: now})
	}
	s.version++
	version := s.version
	s.mu.Unlock()

	if s.store != nil {
		for _, rec := range records {
			if err := s.store.UpsertEfficacy(ctx, rec); err != nil {
				slog.Warn("efficacy write-through failed", "key", rec.Key.String(), "error", err)
			}
		}
	}

	return records, version, nil
}

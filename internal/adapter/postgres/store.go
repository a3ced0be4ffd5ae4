package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"promptforge/internal/port/database"
)

// Store implements the database.Store port backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ database.Store = (*Store)(nil)

// NewStore creates a Store using the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}
